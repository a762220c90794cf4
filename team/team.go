// Package team defines teams, users, and memberships.
package team

import (
	"errors"
	"time"
)

// Sentinel errors surfaced by the directory store.
var (
	ErrTeamNotFound   = errors.New("team not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrMemberNotFound = errors.New("member not found")
	ErrAlreadyMember  = errors.New("user is already a member of the team")
	ErrTeamFull       = errors.New("team is at its member limit")
)

// Team groups members who share a task board.
type Team struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ManagerID  string    `json:"manager_id"`
	MaxMembers int       `json:"max_members"`
	CreatedAt  time.Time `json:"created_at"`
}

// User is an account that can belong to teams and receive notifications.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // bcrypt
	CreatedAt    time.Time `json:"created_at"`
}

// Member links a user to a team.
type Member struct {
	ID       string    `json:"id"`
	TeamID   string    `json:"team_id"`
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"` // "manager" or "member"
	JoinedAt time.Time `json:"joined_at"`
}

// Store is the directory of teams, users, and memberships.
type Store interface {
	CreateTeam(t *Team) (string, error)
	GetTeam(id string) (*Team, error)
	ListTeams() ([]*Team, error)

	CreateUser(u *User) (string, error)
	GetUser(id string) (*User, error)
	GetUserByName(username string) (*User, error)

	AddMember(m *Member) (string, error)
	MembersOf(teamID string) ([]*Member, error)
	TeamsOf(userID string) ([]*Team, error)

	// TeamExists, UserExists, and IsMember back the task service's
	// authorization checks.
	TeamExists(teamID string) (bool, error)
	UserExists(userID string) (bool, error)
	IsMember(teamID, userID string) (bool, error)

	// MemberUserIDs and TeamName back the notification fan-out.
	MemberUserIDs(teamID string) ([]string, error)
	TeamName(teamID string) (string, error)
}
