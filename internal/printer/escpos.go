package printer

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	appLog "chorenote/internal/log"
)

const defaultPort = "9100"

// ESC/POS command bytes (Epson).
var (
	cmdInit        = []byte{0x1b, '@'}
	cmdAlignLeft   = []byte{0x1b, 'a', 0}
	cmdCodePage    = []byte{0x1b, 't', 39} // ISO-8859-2 (Latin 2)
	cmdFeedAndCut  = []byte{0x1d, 'V', 66, 0}
	defaultTimeout = time.Second
)

// ESCPOS prints to a network thermal printer speaking Epson ESC/POS on a
// raw TCP socket.
type ESCPOS struct {
	addr    string
	width   int
	timeout time.Duration
	dial    func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewESCPOS builds a printer for address ("host", "host:port" or
// "tcp://host:port"; port defaults to 9100).
func NewESCPOS(address string, width int, timeout time.Duration) *ESCPOS {
	if width <= 0 {
		width = DefaultWidth
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	d := &net.Dialer{Timeout: timeout}
	return &ESCPOS{
		addr:    normalizeAddr(address),
		width:   width,
		timeout: timeout,
		dial:    d.DialContext,
	}
}

// Addr returns the normalized host:port.
func (p *ESCPOS) Addr() string { return p.addr }

// Print sends the receipt as one job. Unsupported characters are replaced
// rather than failing the job.
func (p *ESCPOS) Print(ctx context.Context, r Receipt) error {
	job, err := Encode(r, p.width)
	if err != nil {
		return err
	}

	conn, err := p.dial(ctx, "tcp", p.addr)
	if err != nil {
		return fmt.Errorf("printer: connect %s: %w", p.addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("printer: %w", err)
	}
	if _, err := conn.Write(job); err != nil {
		return fmt.Errorf("printer: write to %s: %w", p.addr, err)
	}
	appLog.Info("receipt printed", "addr", p.addr, "bytes", len(job))
	return nil
}

// Encode builds the ESC/POS byte stream for r.
func Encode(r Receipt, width int) ([]byte, error) {
	enc := encoding.ReplaceUnsupported(charmap.ISO8859_2.NewEncoder())

	var buf bytes.Buffer
	buf.Write(cmdInit)
	buf.Write(cmdCodePage)
	buf.Write(cmdAlignLeft)
	for _, line := range r.Lines(width) {
		b, err := enc.Bytes([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("printer: encode %q: %w", line, err)
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	buf.Write(cmdFeedAndCut)
	return buf.Bytes(), nil
}

func normalizeAddr(address string) string {
	a := strings.TrimSpace(address)
	a = strings.TrimPrefix(a, "tcp://")
	a = strings.TrimSuffix(a, "/")
	if a == "" {
		return ""
	}
	if _, _, err := net.SplitHostPort(a); err != nil {
		return net.JoinHostPort(strings.Trim(a, "[]"), defaultPort)
	}
	return a
}
