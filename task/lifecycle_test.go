package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// memStore is an in-memory Store with the same compare-and-swap semantics as
// the SQLite store, plus failure injection hooks.
type memStore struct {
	mu    sync.Mutex
	tasks map[string]*Task
	seq   int

	failUpdateFor string // task ID whose updates always fail
	conflictOnce  bool   // next update fails with ErrVersionConflict
	updateCalls   int
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[string]*Task)}
}

func (m *memStore) Create(t *Task) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t.ID = fmt.Sprintf("task-%d", m.seq)
	t.Version = 1
	cp := *t
	m.tasks[t.ID] = &cp
	return t.ID, nil
}

func (m *memStore) Get(id string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) Update(t *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.failUpdateFor == t.ID {
		return fmt.Errorf("update task: disk full")
	}
	if m.conflictOnce {
		m.conflictOnce = false
		return fmt.Errorf("task %s: %w", t.ID, ErrVersionConflict)
	}
	stored, ok := m.tasks[t.ID]
	if !ok {
		return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}
	if stored.Version != t.Version {
		return fmt.Errorf("task %s: %w", t.ID, ErrVersionConflict)
	}
	t.Version++
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memStore) List(f Filter) ([]*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Task
	for _, t := range m.tasks {
		if f.TeamID != "" && t.TeamID != f.TeamID {
			continue
		}
		if f.WorkerID != "" && t.WorkerID != f.WorkerID {
			continue
		}
		if f.ExcludeDone && t.Status == StatusDone {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	delete(m.tasks, id)
	return nil
}

// recordingAnnouncer counts announced transitions.
type recordingAnnouncer struct {
	mu          sync.Mutex
	transitions []*Transition
}

func (r *recordingAnnouncer) AnnounceTransition(_ context.Context, tr *Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, tr)
}

func (r *recordingAnnouncer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.transitions)
}

func seedTask(t *testing.T, store *memStore, start, due time.Time, status Status) *Task {
	t.Helper()
	tk := &Task{
		TeamID:    "team-1",
		CreatorID: "user-1",
		WorkerID:  "user-2",
		Name:      "seeded",
		StartDate: start,
		DueDate:   due,
		Status:    status,
	}
	if _, err := store.Create(tk); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return tk
}

func TestReconcile_Transition(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store, nil)
	tk := seedTask(t, store, date(2024, 1, 10), date(2024, 1, 20), StatusUpcoming)

	tr, err := engine.Reconcile(tk, date(2024, 1, 15))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if tr == nil {
		t.Fatal("expected a transition")
	}
	if tr.From != StatusUpcoming || tr.To != StatusInProgress {
		t.Errorf("transition = %s -> %s, want upcoming -> in_progress", tr.From, tr.To)
	}

	saved, _ := store.Get(tk.ID)
	if saved.Status != StatusInProgress {
		t.Errorf("stored status = %q, want in_progress", saved.Status)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store, nil)
	tk := seedTask(t, store, date(2024, 1, 10), date(2024, 1, 20), StatusUpcoming)

	ref := date(2024, 1, 15)
	first, err := engine.Reconcile(tk, ref)
	if err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}
	if first == nil {
		t.Fatal("first call: expected a transition")
	}

	writes := store.updateCalls
	second, err := engine.Reconcile(tk, ref)
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if second != nil {
		t.Errorf("second call returned a transition, want no-op")
	}
	if store.updateCalls != writes {
		t.Errorf("second call wrote to the store")
	}
}

func TestReconcile_PersistFailureSuppressesTransition(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store, nil)
	tk := seedTask(t, store, date(2024, 1, 10), date(2024, 1, 20), StatusUpcoming)
	store.failUpdateFor = tk.ID

	tr, err := engine.Reconcile(tk, date(2024, 1, 15))
	if err == nil {
		t.Fatal("expected error from failed update")
	}
	if tr != nil {
		t.Error("transition reported despite failed persist")
	}
	if tk.Status != StatusUpcoming {
		t.Errorf("in-memory status mutated to %q after failed persist", tk.Status)
	}
	saved, _ := store.Get(tk.ID)
	if saved.Status != StatusUpcoming {
		t.Errorf("stored status = %q after failed persist, want upcoming", saved.Status)
	}
}

func TestReconcile_RetriesOnVersionConflict(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store, nil)
	tk := seedTask(t, store, date(2024, 1, 10), date(2024, 1, 20), StatusUpcoming)
	store.conflictOnce = true

	tr, err := engine.Reconcile(tk, date(2024, 1, 15))
	if err != nil {
		t.Fatalf("Reconcile after conflict: %v", err)
	}
	if tr == nil {
		t.Fatal("expected transition after retry")
	}
	saved, _ := store.Get(tk.ID)
	if saved.Status != StatusInProgress {
		t.Errorf("stored status = %q, want in_progress", saved.Status)
	}
}

func TestApply_FieldChangeWithoutStatusChange(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store, nil)
	tk := seedTask(t, store, date(2024, 1, 10), date(2024, 1, 20), StatusInProgress)

	tk.Description = "edited"
	tr, err := engine.Apply(tk, date(2024, 1, 15))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if tr != nil {
		t.Error("status unchanged but transition reported")
	}
	saved, _ := store.Get(tk.ID)
	if saved.Description != "edited" {
		t.Error("field edit not persisted")
	}
}

func TestApply_CanRevertDone(t *testing.T) {
	// The update path recomputes freely: pushing dates into the future
	// reverts a done task, unlike the sweep.
	store := newMemStore()
	engine := NewEngine(store, nil)
	tk := seedTask(t, store, date(2024, 1, 1), date(2024, 1, 5), StatusDone)

	tk.StartDate = date(2024, 2, 1)
	tk.DueDate = date(2024, 2, 10)
	tr, err := engine.Apply(tk, date(2024, 1, 15))
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if tr == nil || tr.To != StatusUpcoming {
		t.Fatalf("transition = %+v, want revert to upcoming", tr)
	}
}

func TestReconcileAll_SkipsDone(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store, nil)
	// Done but with future dates: the sweep must not revert it.
	done := seedTask(t, store, date(2024, 2, 1), date(2024, 2, 10), StatusDone)
	seedTask(t, store, date(2024, 1, 10), date(2024, 1, 20), StatusUpcoming)

	trs, err := engine.ReconcileAll(date(2024, 1, 15))
	if err != nil {
		t.Fatalf("ReconcileAll: %v", err)
	}
	if len(trs) != 1 {
		t.Fatalf("got %d transitions, want 1", len(trs))
	}
	saved, _ := store.Get(done.ID)
	if saved.Status != StatusDone {
		t.Errorf("done task reverted to %q by sweep", saved.Status)
	}
}

func TestReconcileAll_FailureIsolation(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store, nil)
	bad := seedTask(t, store, date(2024, 1, 10), date(2024, 1, 20), StatusUpcoming)
	good := seedTask(t, store, date(2024, 1, 1), date(2024, 1, 10), StatusInProgress)
	store.failUpdateFor = bad.ID

	trs, err := engine.ReconcileAll(date(2024, 1, 15))
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(trs) != 1 {
		t.Fatalf("got %d transitions, want 1 (the healthy task)", len(trs))
	}
	if trs[0].Task.ID != good.ID || trs[0].To != StatusDone {
		t.Errorf("unexpected transition %+v", trs[0])
	}
}

func TestReconcileAll_NoChangesIsQuiet(t *testing.T) {
	store := newMemStore()
	engine := NewEngine(store, nil)
	seedTask(t, store, date(2024, 1, 10), date(2024, 1, 20), StatusInProgress)

	trs, err := engine.ReconcileAll(date(2024, 1, 15))
	if err != nil {
		t.Fatalf("ReconcileAll: %v", err)
	}
	if len(trs) != 0 {
		t.Errorf("got %d transitions, want 0", len(trs))
	}
}

func TestReconcileAll_ListFailure(t *testing.T) {
	engine := NewEngine(failingListStore{}, nil)
	if _, err := engine.ReconcileAll(date(2024, 1, 15)); err == nil {
		t.Fatal("expected error when the scan fails")
	}
}

type failingListStore struct{}

func (failingListStore) Create(*Task) (string, error) { return "", errors.New("unused") }
func (failingListStore) Get(string) (*Task, error)    { return nil, errors.New("unused") }
func (failingListStore) Update(*Task) error           { return errors.New("unused") }
func (failingListStore) List(Filter) ([]*Task, error) { return nil, errors.New("db gone") }
func (failingListStore) Delete(string) error          { return errors.New("unused") }
