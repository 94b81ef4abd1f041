// Package note renders the daily chore checklist and writes it into a copy
// of the markdown note template.
package note

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"chorenote/internal/recur"
)

// NoTasks is written in place of the checklist when nothing is due.
const NoTasks = "No tasks today!"

// Template placeholders.
const (
	PlaceholderDayOfWeek = "¤¤DayOfWeek¤¤"
	PlaceholderDailyToDo = "¤¤DailyToDo¤¤"
	PlaceholderDate      = "¤¤Date¤¤"

	// Banner is a marker line in the template that is stripped from
	// generated notes.
	Banner = "⚠️ This template is auto populated by #chorenote !\n"

	// LegacyBanner is the marker found in templates from the earlier
	// node script. It is stripped as well.
	LegacyBanner = "⚠️ This template is auto populated by #nodejs !\n"
)

// Checklist renders items as markdown task lines in order, one per line.
// An empty list renders as "".
func Checklist(items []string) string {
	if len(items) == 0 {
		return ""
	}
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = "- [ ] " + it
	}
	return strings.Join(lines, "\n")
}

// Body is the checklist, or NoTasks when items is empty.
func Body(items []string) string {
	if len(items) == 0 {
		return NoTasks
	}
	return Checklist(items)
}

// Fields are the values substituted into the template.
type Fields struct {
	Date recur.Date
	Body string
}

// Render fills a template. Banner lines are removed and every
// placeholder occurrence is replaced.
func Render(tmpl string, f Fields) string {
	r := strings.NewReplacer(
		Banner, "",
		LegacyBanner, "",
		PlaceholderDayOfWeek, f.Date.Weekday().String(),
		PlaceholderDailyToDo, f.Body,
		PlaceholderDate, f.Date.String(),
	)
	return r.Replace(tmpl)
}

// DailyPath returns <dir>/<YYYY-MM-DD><suffix>.md.
func DailyPath(dir string, date recur.Date, suffix string) string {
	return filepath.Join(dir, date.String()+suffix+".md")
}

// WriteDaily renders templatePath into the dated note under dir and returns
// the written path. An existing note for the same date is replaced, so
// repeated runs for one date converge on the same file.
func WriteDaily(templatePath, dir, suffix string, f Fields) (string, error) {
	if templatePath == "" || dir == "" {
		return "", errors.New("note: template path and daily dir are required")
	}
	tmpl, err := os.ReadFile(templatePath)
	if err != nil {
		return "", fmt.Errorf("note: read template: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("note: create daily dir: %w", err)
	}

	path := DailyPath(dir, f.Date, suffix)
	if err := writeAtomic(path, []byte(Render(string(tmpl), f))); err != nil {
		return "", fmt.Errorf("note: write %s: %w", path, err)
	}
	return path, nil
}

// writeAtomic writes via a temp file in the same directory plus rename.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".chorenote-note-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
