package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Directory resolves teams, users, and memberships for authorization checks.
// Implemented by team.SQLiteStore.
type Directory interface {
	TeamExists(teamID string) (bool, error)
	UserExists(userID string) (bool, error)
	IsMember(teamID, userID string) (bool, error)
}

// Service is the task mutation and query surface exposed to the HTTP
// handlers. Every write goes through the Engine so status derivation lives
// in exactly one place.
type Service struct {
	Store     Store
	Engine    *Engine
	Directory Directory
	Announcer Announcer // optional; nil disables notifications
	Now       Clock
	Logger    *slog.Logger
}

// NewService wires a Service. clock may be nil, defaulting to time.Now.
func NewService(store Store, dir Directory, announcer Announcer, clock Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Store:     store,
		Engine:    NewEngine(store, logger),
		Directory: dir,
		Announcer: announcer,
		Now:       clock,
		Logger:    logger,
	}
}

// CreateParams carries the caller-supplied fields for a new task.
type CreateParams struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"`
	DueDate     time.Time `json:"due_date"`
	WorkerID    string    `json:"worker_id"`
}

// UpdateParams carries a partial task update. Nil fields are left unchanged.
type UpdateParams struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	WorkerID    *string    `json:"worker_id,omitempty"`
}

// Create registers a new task for a team. The status is derived from the
// date window at creation time; no transition is reported because there is
// no prior status to transition from.
func (s *Service) Create(ctx context.Context, creatorID, teamID string, p CreateParams) (*Task, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("create task: name is required")
	}
	if dateOnly(p.DueDate).Before(dateOnly(p.StartDate)) {
		return nil, fmt.Errorf("create task: %w", ErrInvalidDates)
	}
	if err := s.checkMember(teamID, creatorID); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	if err := s.checkWorker(teamID, p.WorkerID); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	t := &Task{
		TeamID:      teamID,
		CreatorID:   creatorID,
		WorkerID:    p.WorkerID,
		Name:        p.Name,
		Description: p.Description,
		StartDate:   p.StartDate,
		DueDate:     p.DueDate,
		Status:      Classify(p.StartDate, p.DueDate, s.Now()),
	}
	if _, err := s.Store.Create(t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	s.Logger.Info("task created",
		slog.String("task_id", t.ID),
		slog.String("team_id", teamID),
		slog.String("status", string(t.Status)))
	return t, nil
}

// Update applies field changes to a task and re-derives its status. Only the
// creator or the assigned worker may update a task. If the derived status
// changed, the transition is announced to the task's team after the write
// has been committed.
func (s *Service) Update(ctx context.Context, actorID, teamID, taskID string, p UpdateParams) (*Task, error) {
	t, err := s.authorize(actorID, teamID, taskID)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.StartDate != nil {
		t.StartDate = *p.StartDate
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.WorkerID != nil {
		if err := s.checkWorker(teamID, *p.WorkerID); err != nil {
			return nil, fmt.Errorf("update task: %w", err)
		}
		t.WorkerID = *p.WorkerID
	}
	if dateOnly(t.DueDate).Before(dateOnly(t.StartDate)) {
		return nil, fmt.Errorf("update task: %w", ErrInvalidDates)
	}

	tr, err := s.Engine.Apply(t, s.Now())
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if tr != nil {
		s.announce(ctx, tr)
	}
	return t, nil
}

// Delete removes a task. Only the creator or the assigned worker may delete.
func (s *Service) Delete(ctx context.Context, actorID, teamID, taskID string) error {
	if _, err := s.authorize(actorID, teamID, taskID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if err := s.Store.Delete(taskID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	s.Logger.Info("task deleted", slog.String("task_id", taskID))
	return nil
}

// Get returns one task, scoped to the team the caller referenced.
func (s *Service) Get(ctx context.Context, actorID, teamID, taskID string) (*Task, error) {
	if err := s.checkMember(teamID, actorID); err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	t, err := s.Store.Get(taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if t.TeamID != teamID {
		return nil, fmt.Errorf("get task: %w", ErrTeamMismatch)
	}
	return t, nil
}

// ListTeam returns every task belonging to a team.
func (s *Service) ListTeam(ctx context.Context, actorID, teamID string) ([]*Task, error) {
	if err := s.checkMember(teamID, actorID); err != nil {
		return nil, fmt.Errorf("list team tasks: %w", err)
	}
	tasks, err := s.Store.List(Filter{TeamID: teamID})
	if err != nil {
		return nil, fmt.Errorf("list team tasks: %w", err)
	}
	return tasks, nil
}

// ListMine returns the caller's open tasks across all teams. Completed tasks
// are excluded.
func (s *Service) ListMine(ctx context.Context, userID string) ([]*Task, error) {
	tasks, err := s.Store.List(Filter{WorkerID: userID, ExcludeDone: true})
	if err != nil {
		return nil, fmt.Errorf("list my tasks: %w", err)
	}
	return tasks, nil
}

// ListMineInTeam returns the caller's open tasks within one team.
func (s *Service) ListMineInTeam(ctx context.Context, userID, teamID string) ([]*Task, error) {
	if err := s.checkMember(teamID, userID); err != nil {
		return nil, fmt.Errorf("list my team tasks: %w", err)
	}
	tasks, err := s.Store.List(Filter{TeamID: teamID, WorkerID: userID, ExcludeDone: true})
	if err != nil {
		return nil, fmt.Errorf("list my team tasks: %w", err)
	}
	return tasks, nil
}

// authorize loads a task and verifies that it belongs to teamID and that
// actorID is its creator or assigned worker.
func (s *Service) authorize(actorID, teamID, taskID string) (*Task, error) {
	ok, err := s.Directory.TeamExists(teamID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTeamNotFound
	}
	t, err := s.Store.Get(taskID)
	if err != nil {
		return nil, err
	}
	if t.TeamID != teamID {
		return nil, ErrTeamMismatch
	}
	if t.CreatorID != actorID && t.WorkerID != actorID {
		return nil, ErrForbidden
	}
	return t, nil
}

// checkMember verifies the team exists and userID belongs to it.
func (s *Service) checkMember(teamID, userID string) error {
	ok, err := s.Directory.TeamExists(teamID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTeamNotFound
	}
	member, err := s.Directory.IsMember(teamID, userID)
	if err != nil {
		return err
	}
	if !member {
		return ErrNotMember
	}
	return nil
}

// checkWorker verifies the assigned worker exists and is a team member.
func (s *Service) checkWorker(teamID, workerID string) error {
	ok, err := s.Directory.UserExists(workerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	member, err := s.Directory.IsMember(teamID, workerID)
	if err != nil {
		return err
	}
	if !member {
		return ErrNotMember
	}
	return nil
}

func (s *Service) announce(ctx context.Context, tr *Transition) {
	if s.Announcer == nil {
		return
	}
	s.Announcer.AnnounceTransition(ctx, tr)
}
