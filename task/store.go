package task

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	team_id     TEXT NOT NULL,
	creator_id  TEXT NOT NULL,
	worker_id   TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL,
	start_date  DATETIME NOT NULL,
	due_date    DATETIME NOT NULL,
	status      TEXT NOT NULL,
	version     INTEGER NOT NULL DEFAULT 1,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_team ON tasks(team_id);
CREATE INDEX IF NOT EXISTS idx_tasks_worker ON tasks(worker_id);
`

// SQLiteStore persists tasks in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the tasks table exists. The caller is responsible for calling Close.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Create persists a new task and sets its ID, Version, CreatedAt, and UpdatedAt.
func (s *SQLiteStore) Create(t *Task) (string, error) {
	t.ID = uuid.New().String()
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Version = 1

	_, err := s.db.Exec(`
		INSERT INTO tasks
			(id, team_id, creator_id, worker_id, name, description,
			 start_date, due_date, status, version, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.TeamID, t.CreatorID, t.WorkerID, t.Name, t.Description,
		t.StartDate, t.DueDate, string(t.Status), t.Version,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	return t.ID, nil
}

// Get retrieves a task by ID.
func (s *SQLiteStore) Get(id string) (*Task, error) {
	row := s.db.QueryRow(`SELECT * FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return t, err
}

// Update saves changes to an existing task. The UPDATE is guarded on the
// version the caller read, so a concurrent writer that got there first makes
// this write fail with ErrVersionConflict instead of silently clobbering it.
func (s *SQLiteStore) Update(t *Task) error {
	t.UpdatedAt = time.Now().UTC()

	res, err := s.db.Exec(`
		UPDATE tasks SET
			team_id=?, creator_id=?, worker_id=?, name=?, description=?,
			start_date=?, due_date=?, status=?, version=version+1, updated_at=?
		WHERE id=? AND version=?`,
		t.TeamID, t.CreatorID, t.WorkerID, t.Name, t.Description,
		t.StartDate, t.DueDate, string(t.Status), t.UpdatedAt,
		t.ID, t.Version,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Either the row is gone or someone else bumped the version.
		var n int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE id=?`, t.ID).Scan(&n); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
		}
		return fmt.Errorf("task %s: %w", t.ID, ErrVersionConflict)
	}
	t.Version++
	return nil
}

// List returns tasks matching the filter, ordered by due date.
func (s *SQLiteStore) List(filter Filter) ([]*Task, error) {
	q := strings.Builder{}
	q.WriteString("SELECT * FROM tasks WHERE 1=1")
	args := []any{}

	if filter.Status != nil {
		q.WriteString(" AND status=?")
		args = append(args, string(*filter.Status))
	}
	if filter.TeamID != "" {
		q.WriteString(" AND team_id=?")
		args = append(args, filter.TeamID)
	}
	if filter.WorkerID != "" {
		q.WriteString(" AND worker_id=?")
		args = append(args, filter.WorkerID)
	}
	if filter.CreatorID != "" {
		q.WriteString(" AND creator_id=?")
		args = append(args, filter.CreatorID)
	}
	if filter.ExcludeDone {
		q.WriteString(" AND status<>?")
		args = append(args, string(StatusDone))
	}
	q.WriteString(" ORDER BY due_date ASC, created_at ASC")
	if filter.Limit > 0 {
		q.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
		if filter.Offset > 0 {
			q.WriteString(fmt.Sprintf(" OFFSET %d", filter.Offset))
		}
	}

	rows, err := s.db.Query(q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Delete removes a task by ID.
func (s *SQLiteStore) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM tasks WHERE id=?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	var t Task
	var status string

	err := s.Scan(
		&t.ID, &t.TeamID, &t.CreatorID, &t.WorkerID, &t.Name, &t.Description,
		&t.StartDate, &t.DueDate, &status, &t.Version,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	return &t, nil
}
