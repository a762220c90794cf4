package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BlackHan26/taskboard/task"
)

// TeamNames resolves a team's display name for message formatting.
// Implemented by team.SQLiteStore.
type TeamNames interface {
	TeamName(teamID string) (string, error)
}

// Fanout delivers one message to every member of a team.
type Fanout interface {
	NotifyTeam(ctx context.Context, teamID, content string) error
}

// TransitionAnnouncer turns committed status transitions into team
// notifications. It implements task.Announcer, keeping delivery mechanics
// out of the transition engine.
type TransitionAnnouncer struct {
	Teams  TeamNames
	Fanout Fanout
	Now    task.Clock
	Logger *slog.Logger

	// Broadcast, if set, additionally pushes the transition to a realtime
	// sink such as the server's SSE stream.
	Broadcast func(event string, payload any)
}

// NewTransitionAnnouncer wires a TransitionAnnouncer. clock may be nil,
// defaulting to time.Now.
func NewTransitionAnnouncer(teams TeamNames, fanout Fanout, clock task.Clock, logger *slog.Logger) *TransitionAnnouncer {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TransitionAnnouncer{Teams: teams, Fanout: fanout, Now: clock, Logger: logger}
}

// AnnounceTransition formats the notification once and fans it out to the
// task's team. The transition is already durably saved by the time this
// runs, so every failure here is logged and dropped rather than returned.
func (a *TransitionAnnouncer) AnnounceTransition(ctx context.Context, tr *task.Transition) {
	teamName, err := a.Teams.TeamName(tr.Task.TeamID)
	if err != nil {
		a.Logger.Warn("team name lookup failed",
			slog.String("team_id", tr.Task.TeamID),
			slog.Any("err", err))
		teamName = tr.Task.TeamID
	}

	content := TransitionMessage(teamName, tr.Task.Name, tr.To, a.Now())
	if err := a.Fanout.NotifyTeam(ctx, tr.Task.TeamID, content); err != nil {
		a.Logger.Error("transition fan-out failed",
			slog.String("task_id", tr.Task.ID),
			slog.String("team_id", tr.Task.TeamID),
			slog.Any("err", err))
	}

	if a.Broadcast != nil {
		a.Broadcast("task_transition", tr)
	}
}

// TransitionMessage builds the notification body for a status change.
func TransitionMessage(teamName, taskName string, to task.Status, at time.Time) string {
	return fmt.Sprintf("Team '%s' task '%s' moved to '%s' at %s",
		teamName, taskName, to.Display(), at.Format("2006-01-02 15:04"))
}
