package task

import (
	"errors"
	"os"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	f, err := os.CreateTemp("", "taskboard-task-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	f.Close()
	path := f.Name()
	t.Cleanup(func() { os.Remove(path) })

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	store := newTestStore(t)

	task := &Task{
		TeamID:      "team-1",
		CreatorID:   "user-1",
		WorkerID:    "user-2",
		Name:        "Write report",
		Description: "Quarterly numbers",
		StartDate:   date(2024, 1, 10),
		DueDate:     date(2024, 1, 20),
		Status:      StatusUpcoming,
	}
	id, err := store.Create(task)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatal("Create returned empty ID")
	}
	if task.Version != 1 {
		t.Errorf("Version = %d, want 1", task.Version)
	}

	got, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != task.Name {
		t.Errorf("Name = %q, want %q", got.Name, task.Name)
	}
	if got.Status != StatusUpcoming {
		t.Errorf("Status = %q, want %q", got.Status, StatusUpcoming)
	}
	if got.WorkerID != "user-2" {
		t.Errorf("WorkerID = %q, want user-2", got.WorkerID)
	}
}

func TestSQLiteStore_Get_NotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Get("nonexistent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_Update(t *testing.T) {
	store := newTestStore(t)

	task := &Task{TeamID: "team-1", Name: "orig", Status: StatusUpcoming,
		StartDate: date(2024, 1, 10), DueDate: date(2024, 1, 20)}
	id, err := store.Create(task)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	task.Name = "updated"
	task.Status = StatusInProgress
	if err := store.Update(task); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if task.Version != 2 {
		t.Errorf("Version after update = %d, want 2", task.Version)
	}

	got, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if got.Name != "updated" {
		t.Errorf("Name = %q, want updated", got.Name)
	}
	if got.Status != StatusInProgress {
		t.Errorf("Status = %q, want in_progress", got.Status)
	}
}

func TestSQLiteStore_Update_VersionConflict(t *testing.T) {
	store := newTestStore(t)

	task := &Task{TeamID: "team-1", Name: "contested", Status: StatusUpcoming,
		StartDate: date(2024, 1, 10), DueDate: date(2024, 1, 20)}
	if _, err := store.Create(task); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Two readers load the same version; the second writer must lose.
	first, _ := store.Get(task.ID)
	second, _ := store.Get(task.ID)

	first.Name = "first writer"
	if err := store.Update(first); err != nil {
		t.Fatalf("first Update: %v", err)
	}

	second.Name = "second writer"
	if err := store.Update(second); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("second Update err = %v, want ErrVersionConflict", err)
	}

	got, _ := store.Get(task.ID)
	if got.Name != "first writer" {
		t.Errorf("Name = %q, lost update detected", got.Name)
	}
}

func TestSQLiteStore_Update_NotFound(t *testing.T) {
	store := newTestStore(t)
	task := &Task{ID: "nonexistent", Version: 1, Status: StatusUpcoming,
		StartDate: date(2024, 1, 10), DueDate: date(2024, 1, 20)}
	if err := store.Update(task); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := newTestStore(t)

	task := &Task{TeamID: "team-1", Name: "to delete", Status: StatusUpcoming,
		StartDate: date(2024, 1, 10), DueDate: date(2024, 1, 20)}
	id, err := store.Create(task)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete err = %v, want ErrNotFound", err)
	}
	if err := store.Delete(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_List(t *testing.T) {
	store := newTestStore(t)

	tasks := []*Task{
		{TeamID: "team-a", WorkerID: "u1", Name: "t1", Status: StatusUpcoming,
			StartDate: date(2024, 2, 1), DueDate: date(2024, 2, 10)},
		{TeamID: "team-a", WorkerID: "u2", Name: "t2", Status: StatusDone,
			StartDate: date(2024, 1, 1), DueDate: date(2024, 1, 5)},
		{TeamID: "team-b", WorkerID: "u1", Name: "t3", Status: StatusInProgress,
			StartDate: date(2024, 1, 10), DueDate: date(2024, 1, 20)},
	}
	for _, task := range tasks {
		if _, err := store.Create(task); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	all, err := store.List(Filter{})
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List all: got %d, want 3", len(all))
	}

	teamA, err := store.List(Filter{TeamID: "team-a"})
	if err != nil {
		t.Fatalf("List team-a: %v", err)
	}
	if len(teamA) != 2 {
		t.Errorf("List team-a: got %d, want 2", len(teamA))
	}

	mine, err := store.List(Filter{WorkerID: "u1", ExcludeDone: true})
	if err != nil {
		t.Fatalf("List mine: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("List mine open: got %d, want 2", len(mine))
	}

	upcoming := StatusUpcoming
	byStatus, err := store.List(Filter{Status: &upcoming})
	if err != nil {
		t.Fatalf("List by status: %v", err)
	}
	if len(byStatus) != 1 {
		t.Errorf("List upcoming: got %d, want 1", len(byStatus))
	}

	limited, err := store.List(Filter{Limit: 2})
	if err != nil {
		t.Fatalf("List limit: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("List limit 2: got %d, want 2", len(limited))
	}
}
