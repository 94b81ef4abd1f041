package printer

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		line  string
		width int
		want  []string
	}{
		{name: "fits", line: "- [ ] Feed fish", width: 48, want: []string{"- [ ] Feed fish"}},
		{name: "empty", line: "", width: 10, want: []string{""}},
		{name: "words", line: "the quick brown fox jumps", width: 10, want: []string{"the quick", "brown fox", "jumps"}},
		{name: "long word", line: "abcdefghijklmno xy", width: 5, want: []string{"abcde", "fghij", "klmno", "xy"}},
		{name: "runes", line: "żółć gęślą jaźń", width: 10, want: []string{"żółć gęślą", "jaźń"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Wrap(tt.line, tt.width))
		})
	}
}

func TestReceiptLayout(t *testing.T) {
	t.Parallel()
	r := Receipt{
		Date:   "2023-07-23",
		Quote:  "Well begun is half done.",
		Author: "Aristotle",
		Body:   "- [ ] A\n- [ ] B",
	}
	assert.Equal(t, []string{
		"2023-07-23", "------",
		"Well begun is half done.", "Aristotle", "------",
		"- [ ] A", "- [ ] B", "------",
	}, r.Lines(48))

	bare := Receipt{Date: "2023-07-23"}
	assert.Equal(t, []string{"2023-07-23", "------"}, bare.Lines(0))
}

func TestTextPrinter(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	p := TextPrinter{W: &buf, Width: 48}
	require.NoError(t, p.Print(context.Background(), Receipt{Date: "2023-07-23", Body: "- [ ] A"}))
	assert.Equal(t, "2023-07-23\n------\n- [ ] A\n------\n", buf.String())
}

func TestEncodeFraming(t *testing.T) {
	t.Parallel()
	job, err := Encode(Receipt{Date: "2023-07-23", Body: "- [ ] Łóżko ✓"}, 48)
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(job, []byte{0x1b, '@', 0x1b, 't', 39, 0x1b, 'a', 0}))
	assert.True(t, bytes.HasSuffix(job, []byte{0x1d, 'V', 66, 0}))
	// Ł is 0xA3 and ż is 0xBF in ISO-8859-2; the check mark is replaced.
	assert.Contains(t, string(job), "- [ ] \xa3\xf3\xbfko ")
	assert.NotContains(t, string(job), "✓")
}

func TestNormalizeAddr(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "192.168.1.50:9100", normalizeAddr("192.168.1.50"))
	assert.Equal(t, "printer.lan:9101", normalizeAddr("tcp://printer.lan:9101"))
	assert.Equal(t, "[fe80::1]:9100", normalizeAddr("[fe80::1]"))
	assert.Equal(t, "", normalizeAddr("  "))
}

func TestESCPOSPrintOverTCP(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	p := NewESCPOS("tcp://"+ln.Addr().String(), 48, 2*time.Second)
	r := Receipt{Date: "2023-07-30", Body: "- [ ] Dish Washer"}
	require.NoError(t, p.Print(context.Background(), r))

	want, err := Encode(r, 48)
	require.NoError(t, err)
	select {
	case got := <-received:
		assert.Equal(t, want, got)
		assert.True(t, strings.Contains(string(got), "Dish Washer"))
	case <-time.After(3 * time.Second):
		t.Fatal("printer job not received")
	}
}

func TestESCPOSConnectError(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	p := NewESCPOS(addr, 48, 500*time.Millisecond)
	err = p.Print(context.Background(), Receipt{Date: "2023-07-30"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect")
}
