// Package ics publishes the chore list as an iCalendar feed so it can be
// subscribed to from a calendar app.
package ics

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"chorenote/internal/recur"
)

const productID = "-//chorenote//Chores//EN"

// Build creates a calendar with one all-day recurring VEVENT per
// definition. stamp is written as DTSTAMP on every event.
func Build(events []recur.EventDefinition, stamp time.Time) (*ical.Calendar, error) {
	if err := recur.ValidateAll(events); err != nil {
		return nil, err
	}

	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	// SetName also sets X-WR-CALNAME.
	cal.SetName("Chores")

	for i, ev := range events {
		vev := cal.AddEvent(uid(i, ev))
		vev.SetDtStampTime(stamp.UTC())
		vev.SetAllDayStartAt(ev.StartDate.Time())
		vev.SetAllDayEndAt(ev.StartDate.AddDays(1).Time())
		vev.SetSummary(ev.Name)
		vev.SetDescription(fmt.Sprintf("Every %d day(s) since %s", ev.FrequencyDays, ev.StartDate))
		vev.AddRrule(RuleString(ev))
	}
	return cal, nil
}

// Export writes the calendar for events to w.
func Export(w io.Writer, events []recur.EventDefinition, stamp time.Time) error {
	cal, err := Build(events, stamp)
	if err != nil {
		return err
	}
	return cal.SerializeTo(w)
}

// uid is stable for a definition at a given position, so re-exporting an
// unchanged config yields the same UIDs. Names are not unique, hence the
// index.
func uid(i int, ev recur.EventDefinition) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s|%d", i, ev.Name, ev.StartDate, ev.FrequencyDays)))
	return hex.EncodeToString(sum[:8]) + "@chorenote"
}
