// Package recur decides which recurring chores fall on a given calendar
// date. Every function here is pure: callers pass the reference date in
// explicitly and nothing reads the wall clock.
package recur

import (
	"fmt"
	"iter"
)

// maxPrealloc caps the slice capacity NextOccurrences reserves up front, so
// a very large count grows the slice as it fills instead of allocating it
// all at once.
const maxPrealloc = 1024

// IsDueOn reports whether referenceDate is an occurrence of event.
//
// The start date is always an occurrence, and so is every date a multiple
// of FrequencyDays after it. A reference date before the start date is
// rejected with ErrInvalidArgument.
func IsDueOn(event EventDefinition, referenceDate Date) (bool, error) {
	if err := event.Validate(); err != nil {
		return false, err
	}
	elapsed := referenceDate.DaysSince(event.StartDate)
	if elapsed < 0 {
		return false, fmt.Errorf("%w: reference date %s is before start date %s of %q",
			ErrInvalidArgument, referenceDate, event.StartDate, event.Name)
	}
	return elapsed%int64(event.FrequencyDays) == 0, nil
}

// NextOccurrences returns the next count occurrence dates strictly after
// after, in increasing order. Each is StartDate + k*FrequencyDays for some
// k >= 1.
func NextOccurrences(event EventDefinition, after Date, count int) ([]Date, error) {
	seq, err := Occurrences(event, after, count)
	if err != nil {
		return nil, err
	}
	out := make([]Date, 0, min(count, maxPrealloc))
	for d := range seq {
		out = append(out, d)
	}
	return out, nil
}

// Occurrences is the lazy form of NextOccurrences. The returned sequence
// yields exactly count dates and may be ranged over any number of times;
// each pass starts again from after.
func Occurrences(event EventDefinition, after Date, count int) (iter.Seq[Date], error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: occurrence count must not be negative, got %d", ErrInvalidArgument, count)
	}
	step := int64(event.FrequencyDays)
	first := event.StartDate.AddDays(step * firstStep(event.StartDate, after, step))

	return func(yield func(Date) bool) {
		d := first
		for range count {
			if !yield(d) {
				return
			}
			d = d.AddDays(step)
		}
	}, nil
}

// firstStep returns the smallest k >= 1 with start + k*step > after.
func firstStep(start, after Date, step int64) int64 {
	elapsed := after.DaysSince(start)
	if elapsed < 0 {
		return 1
	}
	return elapsed/step + 1
}

// SelectDueEvents returns the events due on referenceDate, keeping input
// order and duplicates. Events that have not started yet are not due.
// If any definition is invalid the whole call fails and nothing is
// returned.
func SelectDueEvents(events []EventDefinition, referenceDate Date) ([]EventDefinition, error) {
	if err := ValidateAll(events); err != nil {
		return nil, err
	}
	due := make([]EventDefinition, 0, len(events))
	for _, ev := range events {
		if referenceDate.Before(ev.StartDate) {
			continue
		}
		ok, err := IsDueOn(ev, referenceDate)
		if err != nil {
			return nil, err
		}
		if ok {
			due = append(due, ev)
		}
	}
	return due, nil
}

// Names returns the display names of events in order.
func Names(events []EventDefinition) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Name)
	}
	return out
}
