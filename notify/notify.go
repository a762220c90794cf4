// Package notify delivers task status notifications to team members.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Message is a notification delivered to one user.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Handler processes delivered messages for a subscribed user.
type Handler func(ctx context.Context, msg *Message) error

// Notifier delivers a message to a single recipient. Delivery is
// fire-and-forget from the caller's perspective.
type Notifier interface {
	Notify(ctx context.Context, userID, content string) error
}

// Membership resolves the recipients of a team fan-out.
// Implemented by team.SQLiteStore.
type Membership interface {
	MemberUserIDs(teamID string) ([]string, error)
}

// TeamNotifier fans one message out to every member of a team. The content
// is identical for all recipients and each delivery is independent: one
// member failing never blocks the rest, and no failure propagates back to
// the status change that triggered the fan-out.
type TeamNotifier struct {
	Members  Membership
	Delivery Notifier
	Logger   *slog.Logger
}

// NewTeamNotifier wires a TeamNotifier.
func NewTeamNotifier(members Membership, delivery Notifier, logger *slog.Logger) *TeamNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &TeamNotifier{Members: members, Delivery: delivery, Logger: logger}
}

// NotifyTeam delivers content to every member of teamID. Per-recipient
// failures are logged and skipped; only a membership lookup failure is
// returned, since without the member list nothing can be delivered at all.
func (n *TeamNotifier) NotifyTeam(ctx context.Context, teamID, content string) error {
	userIDs, err := n.Members.MemberUserIDs(teamID)
	if err != nil {
		return err
	}
	for _, uid := range userIDs {
		if err := n.Delivery.Notify(ctx, uid, content); err != nil {
			n.Logger.Warn("notification delivery failed",
				slog.String("user_id", uid),
				slog.String("team_id", teamID),
				slog.Any("err", err))
		}
	}
	return nil
}
