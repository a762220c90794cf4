package team

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS teams (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	manager_id  TEXT NOT NULL,
	max_members INTEGER NOT NULL DEFAULT 6,
	created_at  DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS members (
	id        TEXT PRIMARY KEY,
	team_id   TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	role      TEXT NOT NULL DEFAULT 'member',
	joined_at DATETIME NOT NULL,
	UNIQUE(team_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_members_team ON members(team_id);
CREATE INDEX IF NOT EXISTS idx_members_user ON members(user_id);
`

// SQLiteStore persists the directory in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// the directory tables exist. The caller is responsible for calling Close.
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

// CreateTeam persists a new team and enrolls its manager as the first member.
func (s *SQLiteStore) CreateTeam(t *Team) (string, error) {
	t.ID = uuid.New().String()
	t.CreatedAt = time.Now().UTC()
	if t.MaxMembers <= 0 {
		t.MaxMembers = 6
	}
	_, err := s.db.Exec(`INSERT INTO teams (id, name, manager_id, max_members, created_at) VALUES (?,?,?,?,?)`,
		t.ID, t.Name, t.ManagerID, t.MaxMembers, t.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert team: %w", err)
	}
	if t.ManagerID != "" {
		if _, err := s.AddMember(&Member{TeamID: t.ID, UserID: t.ManagerID, Role: "manager"}); err != nil {
			return "", fmt.Errorf("enroll manager: %w", err)
		}
	}
	return t.ID, nil
}

// GetTeam retrieves a team by ID.
func (s *SQLiteStore) GetTeam(id string) (*Team, error) {
	var t Team
	err := s.db.QueryRow(`SELECT id, name, manager_id, max_members, created_at FROM teams WHERE id=?`, id).
		Scan(&t.ID, &t.Name, &t.ManagerID, &t.MaxMembers, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("team %s: %w", id, ErrTeamNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get team: %w", err)
	}
	return &t, nil
}

// ListTeams returns all teams.
func (s *SQLiteStore) ListTeams() ([]*Team, error) {
	rows, err := s.db.Query(`SELECT id, name, manager_id, max_members, created_at FROM teams ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.Name, &t.ManagerID, &t.MaxMembers, &t.CreatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, &t)
	}
	return teams, rows.Err()
}

// CreateUser persists a new user.
func (s *SQLiteStore) CreateUser(u *User) (string, error) {
	u.ID = uuid.New().String()
	u.CreatedAt = time.Now().UTC()
	_, err := s.db.Exec(`INSERT INTO users (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert user: %w", err)
	}
	return u.ID, nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(id string) (*User, error) {
	var u User
	err := s.db.QueryRow(`SELECT id, username, password_hash, created_at FROM users WHERE id=?`, id).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", id, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// GetUserByName retrieves a user by username.
func (s *SQLiteStore) GetUserByName(username string) (*User, error) {
	var u User
	err := s.db.QueryRow(`SELECT id, username, password_hash, created_at FROM users WHERE username=?`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", username, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by name: %w", err)
	}
	return &u, nil
}

// AddMember enrolls a user in a team, enforcing the team's member limit.
func (s *SQLiteStore) AddMember(m *Member) (string, error) {
	t, err := s.GetTeam(m.TeamID)
	if err != nil {
		return "", err
	}
	if _, err := s.GetUser(m.UserID); err != nil {
		return "", err
	}
	already, err := s.IsMember(m.TeamID, m.UserID)
	if err != nil {
		return "", err
	}
	if already {
		return "", fmt.Errorf("add member: %w", ErrAlreadyMember)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM members WHERE team_id=?`, m.TeamID).Scan(&count); err != nil {
		return "", fmt.Errorf("count members: %w", err)
	}
	if count >= t.MaxMembers {
		return "", fmt.Errorf("add member: %w", ErrTeamFull)
	}

	m.ID = uuid.New().String()
	m.JoinedAt = time.Now().UTC()
	if m.Role == "" {
		m.Role = "member"
	}
	_, err = s.db.Exec(`INSERT INTO members (id, team_id, user_id, role, joined_at) VALUES (?,?,?,?,?)`,
		m.ID, m.TeamID, m.UserID, m.Role, m.JoinedAt)
	if err != nil {
		return "", fmt.Errorf("insert member: %w", err)
	}
	return m.ID, nil
}

// MembersOf returns every membership record for a team.
func (s *SQLiteStore) MembersOf(teamID string) ([]*Member, error) {
	rows, err := s.db.Query(`SELECT id, team_id, user_id, role, joined_at FROM members WHERE team_id=? ORDER BY joined_at ASC`, teamID)
	if err != nil {
		return nil, fmt.Errorf("members of team: %w", err)
	}
	defer rows.Close()

	var members []*Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.TeamID, &m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

// TeamsOf returns every team a user belongs to.
func (s *SQLiteStore) TeamsOf(userID string) ([]*Team, error) {
	rows, err := s.db.Query(`
		SELECT t.id, t.name, t.manager_id, t.max_members, t.created_at
		FROM teams t JOIN members m ON m.team_id = t.id
		WHERE m.user_id=? ORDER BY t.created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("teams of user: %w", err)
	}
	defer rows.Close()

	var teams []*Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.Name, &t.ManagerID, &t.MaxMembers, &t.CreatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, &t)
	}
	return teams, rows.Err()
}

// TeamExists reports whether a team with the given ID exists.
func (s *SQLiteStore) TeamExists(teamID string) (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM teams WHERE id=?`, teamID).Scan(&n); err != nil {
		return false, fmt.Errorf("team exists: %w", err)
	}
	return n > 0, nil
}

// UserExists reports whether a user with the given ID exists.
func (s *SQLiteStore) UserExists(userID string) (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users WHERE id=?`, userID).Scan(&n); err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return n > 0, nil
}

// IsMember reports whether the user belongs to the team.
func (s *SQLiteStore) IsMember(teamID, userID string) (bool, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM members WHERE team_id=? AND user_id=?`, teamID, userID).Scan(&n); err != nil {
		return false, fmt.Errorf("is member: %w", err)
	}
	return n > 0, nil
}

// TeamName returns the display name of a team.
func (s *SQLiteStore) TeamName(teamID string) (string, error) {
	var name string
	err := s.db.QueryRow(`SELECT name FROM teams WHERE id=?`, teamID).Scan(&name)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("team %s: %w", teamID, ErrTeamNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("team name: %w", err)
	}
	return name, nil
}

// MemberUserIDs returns the user IDs of every member of a team.
func (s *SQLiteStore) MemberUserIDs(teamID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT user_id FROM members WHERE team_id=? ORDER BY joined_at ASC`, teamID)
	if err != nil {
		return nil, fmt.Errorf("member user ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
