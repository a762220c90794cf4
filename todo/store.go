package todo

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/BlackHan26/taskboard/task"
)

const schema = `
CREATE TABLE IF NOT EXISTS todos (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL,
	start_date  DATETIME NOT NULL,
	due_date    DATETIME NOT NULL,
	status      TEXT NOT NULL,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_todos_user ON todos(user_id);
`

// SQLiteStore persists to-dos in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the todos table exists. The caller is responsible for calling Close.
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

// Create persists a new to-do and sets its ID, CreatedAt, and UpdatedAt.
func (s *SQLiteStore) Create(td *Todo) (string, error) {
	td.ID = uuid.New().String()
	now := time.Now().UTC()
	td.CreatedAt = now
	td.UpdatedAt = now

	_, err := s.db.Exec(`
		INSERT INTO todos (id, user_id, name, description, start_date, due_date, status, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		td.ID, td.UserID, td.Name, td.Description,
		td.StartDate, td.DueDate, string(td.Status), td.CreatedAt, td.UpdatedAt)
	if err != nil {
		return "", fmt.Errorf("insert todo: %w", err)
	}
	return td.ID, nil
}

// Get retrieves a to-do by ID.
func (s *SQLiteStore) Get(id string) (*Todo, error) {
	row := s.db.QueryRow(`SELECT * FROM todos WHERE id=?`, id)
	td, err := scanTodo(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("todo %s: %w", id, ErrNotFound)
	}
	return td, err
}

// Update saves changes to an existing to-do, refreshing UpdatedAt.
func (s *SQLiteStore) Update(td *Todo) error {
	td.UpdatedAt = time.Now().UTC()
	res, err := s.db.Exec(`
		UPDATE todos SET name=?, description=?, start_date=?, due_date=?, status=?, updated_at=?
		WHERE id=?`,
		td.Name, td.Description, td.StartDate, td.DueDate, string(td.Status), td.UpdatedAt, td.ID)
	if err != nil {
		return fmt.Errorf("update todo: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("todo %s: %w", td.ID, ErrNotFound)
	}
	return nil
}

// ListByUser returns a user's to-dos ordered by due date.
func (s *SQLiteStore) ListByUser(userID string) ([]*Todo, error) {
	rows, err := s.db.Query(`SELECT * FROM todos WHERE user_id=? ORDER BY due_date ASC, created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	var todos []*Todo
	for rows.Next() {
		td, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, td)
	}
	return todos, rows.Err()
}

// Delete removes a to-do by ID.
func (s *SQLiteStore) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM todos WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("todo %s: %w", id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTodo(s scanner) (*Todo, error) {
	var td Todo
	var status string
	err := s.Scan(
		&td.ID, &td.UserID, &td.Name, &td.Description,
		&td.StartDate, &td.DueDate, &status, &td.CreatedAt, &td.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	td.Status = task.Status(status)
	return &td, nil
}
