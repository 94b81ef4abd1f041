package ics

import (
	"errors"
	"fmt"

	"github.com/teambition/rrule-go"

	"chorenote/internal/recur"
)

// Rule returns the RFC 5545 recurrence rule equivalent to ev: daily with
// INTERVAL=FrequencyDays, anchored at midnight UTC of the start date.
func Rule(ev recur.EventDefinition) (*rrule.RRule, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	r, err := rrule.NewRRule(ruleOption(ev))
	if err != nil {
		return nil, fmt.Errorf("ics: build rrule for %q: %w", ev.Name, err)
	}
	return r, nil
}

func ruleOption(ev recur.EventDefinition) rrule.ROption {
	return rrule.ROption{
		Freq:     rrule.DAILY,
		Interval: ev.FrequencyDays,
		Dtstart:  ev.StartDate.Time(),
	}
}

// RuleString is the RRULE property value for ev, e.g. "FREQ=DAILY;INTERVAL=14".
func RuleString(ev recur.EventDefinition) string {
	opt := ruleOption(ev)
	return opt.RRuleString()
}

// Expand lists the first count occurrences strictly after after using the
// rrule library rather than the recurrence engine. It backs the
// engine=rrule view of the upcoming API and serves as a cross-check.
func Expand(ev recur.EventDefinition, after recur.Date, count int) ([]recur.Date, error) {
	if count < 0 {
		return nil, errors.New("ics: count must not be negative")
	}
	r, err := Rule(ev)
	if err != nil {
		return nil, err
	}

	out := make([]recur.Date, 0, count)
	next := r.Iterator()
	for len(out) < count {
		t, ok := next()
		if !ok {
			break
		}
		d := recur.DateOf(t)
		// The rule yields DTSTART itself; occurrences are k >= 1 steps.
		if !d.After(after) || d.Equal(ev.StartDate) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
