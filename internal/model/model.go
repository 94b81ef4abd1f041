package model

import (
	"chorenote/internal/quote"
	"chorenote/internal/recur"
)

// DailyPlan is the outcome of one daily run for a reference date.
// It is recomputed from configuration on every run and never persisted.
type DailyPlan struct {
	Date    recur.Date `json:"date"`
	Weekday string     `json:"weekday"`

	// Tasks are the names of the chores due on Date, in config order,
	// duplicates included.
	Tasks []string `json:"tasks"`

	// Body is the markdown checklist, or the "no tasks" marker.
	Body string `json:"body"`

	Quote *quote.Quote `json:"quote,omitempty"`

	// NotePath is the daily note written for Date, if note output is set up.
	NotePath string `json:"note_path,omitempty"`

	// Printed reports whether a receipt was sent to the printer.
	Printed bool `json:"printed"`
}

// Occurrence is one future date of a chore, as listed by the upcoming API.
type Occurrence struct {
	Name  string     `json:"name"`
	Date  recur.Date `json:"date"`
	Every int        `json:"every_days"`
}
