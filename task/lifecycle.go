package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Transition is the fact that a task's derived status changed. It is computed,
// reported, and consumed; it is never persisted on its own.
type Transition struct {
	Task *Task     `json:"task"`
	From Status    `json:"from"`
	To   Status    `json:"to"`
	At   time.Time `json:"at"`
}

// Announcer receives committed status transitions. Implementations deliver
// notifications; delivery failures stay on their side of the fence and never
// surface back into the mutation that caused the transition.
type Announcer interface {
	AnnounceTransition(ctx context.Context, tr *Transition)
}

// Engine recomputes a task's status and persists the result when it changed.
// It is the single owner of the classify-compare-save sequence; the create,
// update, and sweep paths all go through it.
type Engine struct {
	Store  Store
	Logger *slog.Logger
}

// NewEngine creates an Engine over the given store.
func NewEngine(store Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{Store: store, Logger: logger}
}

// Reconcile classifies t against ref and, when the derived status differs
// from the stored one, persists the change and returns the transition.
// An unchanged status is a no-op: no write, no transition, so repeated calls
// with the same reference date are idempotent. A version conflict on save is
// retried once against a fresh read; any persistence failure aborts without
// a transition, leaving the next reconcile to pick the task up again.
func (e *Engine) Reconcile(t *Task, ref time.Time) (*Transition, error) {
	for attempt := 0; ; attempt++ {
		next := Classify(t.StartDate, t.DueDate, ref)
		if next == t.Status {
			return nil, nil
		}

		prev := t.Status
		t.Status = next
		err := e.Store.Update(t)
		if err == nil {
			return &Transition{Task: t, From: prev, To: next, At: ref}, nil
		}
		t.Status = prev

		if !errors.Is(err, ErrVersionConflict) || attempt > 0 {
			return nil, fmt.Errorf("reconcile task %s: %w", t.ID, err)
		}

		fresh, getErr := e.Store.Get(t.ID)
		if getErr != nil {
			return nil, fmt.Errorf("reconcile task %s: reread after conflict: %w", t.ID, getErr)
		}
		*t = *fresh
	}
}

// Apply persists t with its status recomputed against ref and returns the
// transition if the derived status changed. Unlike Reconcile it always
// writes, so the update path uses it to save field edits and the status
// re-derivation in one step.
func (e *Engine) Apply(t *Task, ref time.Time) (*Transition, error) {
	prev := t.Status
	t.Status = Classify(t.StartDate, t.DueDate, ref)
	if err := e.Store.Update(t); err != nil {
		t.Status = prev
		return nil, fmt.Errorf("apply task %s: %w", t.ID, err)
	}
	if t.Status == prev {
		return nil, nil
	}
	return &Transition{Task: t, From: prev, To: t.Status, At: ref}, nil
}

// ReconcileAll reconciles every task in the store against a single reference
// date and returns the transitions that occurred. This is the sweep path, so
// it only moves statuses forward: tasks already done are skipped and never
// revert, even if their dates were edited into the future.
//
// One task's failure does not stop the run; failures are logged and folded
// into the returned error after every task has been visited.
func (e *Engine) ReconcileAll(ref time.Time) ([]*Transition, error) {
	tasks, err := e.Store.List(Filter{})
	if err != nil {
		return nil, fmt.Errorf("reconcile all: %w", err)
	}

	var transitions []*Transition
	var errs []error
	for _, t := range tasks {
		if t.Status == StatusDone {
			continue
		}
		tr, err := e.Reconcile(t, ref)
		if err != nil {
			e.Logger.Error("reconcile failed",
				slog.String("task_id", t.ID),
				slog.Any("err", err))
			errs = append(errs, err)
			continue
		}
		if tr != nil {
			transitions = append(transitions, tr)
		}
	}
	return transitions, errors.Join(errs...)
}
