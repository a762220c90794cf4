// Package task defines the team task model, its derived status lifecycle,
// and persistence.
package task

import (
	"errors"
	"time"
)

// Sentinel errors surfaced by the task service and store.
var (
	ErrNotFound        = errors.New("task not found")
	ErrTeamNotFound    = errors.New("team not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrNotMember       = errors.New("user is not a member of the team")
	ErrForbidden       = errors.New("actor is neither task creator nor assigned worker")
	ErrTeamMismatch    = errors.New("task does not belong to the referenced team")
	ErrVersionConflict = errors.New("task was modified concurrently")
	ErrInvalidDates    = errors.New("due date is before start date")
)

// Task is a unit of team work. Status is derived from the date window and is
// recomputed on every mutation and by the daily sweep; it is never set
// directly by a caller.
type Task struct {
	ID          string    `json:"id"`
	TeamID      string    `json:"team_id"`
	CreatorID   string    `json:"creator_id"`
	WorkerID    string    `json:"worker_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"`
	DueDate     time.Time `json:"due_date"`
	Status      Status    `json:"status"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store persists and retrieves tasks.
type Store interface {
	// Create persists a new task and returns its assigned ID.
	Create(t *Task) (string, error)

	// Get retrieves a task by ID.
	Get(id string) (*Task, error)

	// Update saves changes to an existing task. The write is a
	// compare-and-swap on t.Version: it returns ErrVersionConflict if the
	// stored row has moved on, and bumps t.Version on success.
	Update(t *Task) error

	// List returns tasks matching the given filter.
	List(filter Filter) ([]*Task, error)

	// Delete removes a task by ID.
	Delete(id string) error
}

// Filter controls which tasks are returned by List.
type Filter struct {
	Status      *Status `json:"status,omitempty"`
	TeamID      string  `json:"team_id,omitempty"`
	WorkerID    string  `json:"worker_id,omitempty"`
	CreatorID   string  `json:"creator_id,omitempty"`
	ExcludeDone bool    `json:"exclude_done,omitempty"`
	Limit       int     `json:"limit,omitempty"`
	Offset      int     `json:"offset,omitempty"`
}

// Clock supplies the current time. Injected so classification and the sweep
// are deterministic under test.
type Clock func() time.Time
