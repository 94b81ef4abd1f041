// Package printer lays out the daily receipt and sends it to an ESC/POS
// thermal printer over TCP.
package printer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultWidth is the characters per line on 80mm paper with font A.
	DefaultWidth = 48

	separator = "------"
)

// Receipt is the content of one printed note.
type Receipt struct {
	Date string
	// Quote and Author are optional; the quote block is omitted when
	// Quote is empty.
	Quote  string
	Author string
	// Body is the rendered checklist; omitted when empty.
	Body string
}

// Printer outputs a receipt.
type Printer interface {
	Print(ctx context.Context, r Receipt) error
}

// Lines returns the receipt layout: date, separator, optional quote block,
// optional body block, each block closed by a separator. Lines are wrapped
// at word boundaries to width.
func (r Receipt) Lines(width int) []string {
	if width <= 0 {
		width = DefaultWidth
	}
	var out []string
	add := func(text string) {
		for _, l := range strings.Split(text, "\n") {
			out = append(out, Wrap(l, width)...)
		}
	}

	add(r.Date)
	out = append(out, separator)
	if strings.TrimSpace(r.Quote) != "" {
		add(r.Quote)
		if r.Author != "" {
			add(r.Author)
		}
		out = append(out, separator)
	}
	if strings.TrimSpace(r.Body) != "" {
		add(r.Body)
		out = append(out, separator)
	}
	return out
}

// Text returns the plain-text rendering used in logs and dry runs.
func (r Receipt) Text(width int) string {
	return strings.Join(r.Lines(width), "\n") + "\n"
}

// Wrap breaks line into chunks of at most width runes, preferring spaces.
// Words longer than width are split. An empty line stays one empty line.
func Wrap(line string, width int) []string {
	line = strings.TrimRight(line, " ")
	if utf8.RuneCountInString(line) <= width {
		return []string{line}
	}
	var out []string
	var cur []rune
	for _, word := range strings.Fields(line) {
		w := []rune(word)
		for len(w) > width {
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = cur[:0]
			}
			out = append(out, string(w[:width]))
			w = w[width:]
		}
		switch {
		case len(cur) == 0:
			cur = append(cur, w...)
		case len(cur)+1+len(w) <= width:
			cur = append(cur, ' ')
			cur = append(cur, w...)
		default:
			out = append(out, string(cur))
			cur = append(cur[:0:0], w...)
		}
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}

// TextPrinter writes the plain layout to W. It is used when no printer
// address is configured or printing is disabled.
type TextPrinter struct {
	W     io.Writer
	Width int
}

func (p TextPrinter) Print(_ context.Context, r Receipt) error {
	if _, err := io.WriteString(p.W, r.Text(p.Width)); err != nil {
		return fmt.Errorf("printer: %w", err)
	}
	return nil
}
