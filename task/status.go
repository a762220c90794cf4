package task

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status represents the lifecycle state of a task, derived from its date
// window against a reference date.
type Status string

const (
	StatusUpcoming   Status = "upcoming"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

var titleCaser = cases.Title(language.English)

// Display returns the human-readable form of the status, e.g. "In Progress".
func (s Status) Display() string {
	return titleCaser.String(strings.ReplaceAll(string(s), "_", " "))
}

// Classify derives the canonical status of a date window as of ref.
// The rules are evaluated in priority order: before the window is upcoming,
// past the window is done, anything else is in progress. Malformed windows
// (due before start) are not rejected here; they classify literally in rule
// order, so a reversed range reads as upcoming until start and done after.
func Classify(start, due, ref time.Time) Status {
	start, due, ref = dateOnly(start), dateOnly(due), dateOnly(ref)
	switch {
	case ref.Before(start):
		return StatusUpcoming
	case ref.After(due):
		return StatusDone
	default:
		return StatusInProgress
	}
}

// dateOnly truncates t to its calendar day. Statuses flip at day boundaries,
// never mid-day.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
