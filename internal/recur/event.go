package recur

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// EventDefinition is a recurring chore: it occurs on StartDate and then
// every FrequencyDays days. Values are static configuration and are never
// mutated after construction.
type EventDefinition struct {
	// Name is the display label. It is not required to be unique.
	Name string `json:"name"`

	StartDate Date `json:"start_date"`

	// FrequencyDays is the recurrence interval, at least 1.
	FrequencyDays int `json:"frequency_days"`
}

// NewEvent builds an EventDefinition from its textual configuration form.
//
// startDate must be YYYY-MM-DD; frequency is "<n>d" (e.g. "14d") or a bare
// "<n>". All failures wrap ErrInvalidEventDefinition.
func NewEvent(name, startDate, frequency string) (EventDefinition, error) {
	start, err := ParseDate(startDate)
	if err != nil {
		return EventDefinition{}, fmt.Errorf("%w: %q: start date: %w", ErrInvalidEventDefinition, name, err)
	}
	days, err := ParseFrequency(frequency)
	if err != nil {
		return EventDefinition{}, fmt.Errorf("%w: %q: %w", ErrInvalidEventDefinition, name, err)
	}
	ev := EventDefinition{
		Name:          strings.TrimSpace(name),
		StartDate:     start,
		FrequencyDays: days,
	}
	if err := ev.Validate(); err != nil {
		return EventDefinition{}, err
	}
	return ev, nil
}

// Validate reports whether the definition can be used for date arithmetic.
func (e EventDefinition) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidEventDefinition)
	}
	if e.FrequencyDays < 1 {
		return fmt.Errorf("%w: %q: frequency must be at least 1 day, got %d", ErrInvalidEventDefinition, e.Name, e.FrequencyDays)
	}
	return nil
}

// ParseFrequency parses an interval in whole days. Accepted forms are
// "<n>d" and "<n>" with n >= 1.
func ParseFrequency(s string) (int, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return 0, errors.New("frequency required")
	}
	num := v
	if last := v[len(v)-1]; last == 'd' || last == 'D' {
		num = v[:len(v)-1]
	}
	if !isDigits(num) {
		return 0, fmt.Errorf("invalid frequency %q (use a day count like '14d')", s)
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, fmt.Errorf("invalid frequency %q (use a day count like '14d')", s)
	}
	if n < 1 {
		return 0, fmt.Errorf("frequency must be at least 1 day, got %q", s)
	}
	return n, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ValidateAll validates every definition and returns all failures joined,
// each annotated with its position in the list.
func ValidateAll(events []EventDefinition) error {
	var errs []error
	for i, ev := range events {
		if err := ev.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("event #%d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
