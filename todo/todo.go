// Package todo provides personal to-do items. A to-do carries the same
// date-derived status as a team task but has no daily sweep and no
// notification fan-out.
package todo

import (
	"errors"
	"time"

	"github.com/BlackHan26/taskboard/task"
)

// Sentinel errors surfaced by the to-do store and service.
var (
	ErrNotFound  = errors.New("todo not found")
	ErrForbidden = errors.New("todo belongs to another user")
)

// Todo is a single personal to-do item.
type Todo struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	StartDate   time.Time   `json:"start_date"`
	DueDate     time.Time   `json:"due_date"`
	Status      task.Status `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Store persists and retrieves to-dos.
type Store interface {
	Create(td *Todo) (string, error)
	Get(id string) (*Todo, error)
	Update(td *Todo) error
	ListByUser(userID string) ([]*Todo, error)
	Delete(id string) error
}
