package todo

import (
	"context"
	"fmt"
	"time"

	"github.com/BlackHan26/taskboard/task"
)

// Service is the to-do surface exposed to the HTTP handlers. Statuses are
// derived by the same classifier the team task lifecycle uses; there is no
// sweep and no notification here.
type Service struct {
	Store Store
	Now   task.Clock
}

// NewService wires a Service. clock may be nil, defaulting to time.Now.
func NewService(store Store, clock task.Clock) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{Store: store, Now: clock}
}

// CreateParams carries the caller-supplied fields for a new to-do.
type CreateParams struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"`
	DueDate     time.Time `json:"due_date"`
}

// UpdateParams carries a partial to-do update. Nil fields are left unchanged.
type UpdateParams struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// Create registers a new to-do with its status derived at creation time.
func (s *Service) Create(ctx context.Context, userID string, p CreateParams) (*Todo, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("create todo: name is required")
	}
	td := &Todo{
		UserID:      userID,
		Name:        p.Name,
		Description: p.Description,
		StartDate:   p.StartDate,
		DueDate:     p.DueDate,
		Status:      task.Classify(p.StartDate, p.DueDate, s.Now()),
	}
	if _, err := s.Store.Create(td); err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}
	return td, nil
}

// Update applies field changes and re-derives the status.
func (s *Service) Update(ctx context.Context, userID, todoID string, p UpdateParams) (*Todo, error) {
	td, err := s.owned(userID, todoID)
	if err != nil {
		return nil, fmt.Errorf("update todo: %w", err)
	}
	if p.Name != nil {
		td.Name = *p.Name
	}
	if p.Description != nil {
		td.Description = *p.Description
	}
	if p.StartDate != nil {
		td.StartDate = *p.StartDate
	}
	if p.DueDate != nil {
		td.DueDate = *p.DueDate
	}
	td.Status = task.Classify(td.StartDate, td.DueDate, s.Now())
	if err := s.Store.Update(td); err != nil {
		return nil, fmt.Errorf("update todo: %w", err)
	}
	return td, nil
}

// List returns the caller's to-dos.
func (s *Service) List(ctx context.Context, userID string) ([]*Todo, error) {
	todos, err := s.Store.ListByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

// Delete removes one of the caller's to-dos.
func (s *Service) Delete(ctx context.Context, userID, todoID string) error {
	if _, err := s.owned(userID, todoID); err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	if err := s.Store.Delete(todoID); err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	return nil
}

func (s *Service) owned(userID, todoID string) (*Todo, error) {
	td, err := s.Store.Get(todoID)
	if err != nil {
		return nil, err
	}
	if td.UserID != userID {
		return nil, ErrForbidden
	}
	return td, nil
}
