// Package notify emits fire-and-forget transition events after a formation
// mutation commits. Emission never runs inside the storage transaction and
// never fails the operation that produced the event.
package notify

import (
	"context"
	"log"
	"time"
)

// Event kinds.
const (
	KindTeamCreated        = "team.created"
	KindTeamApproved       = "team.approved"
	KindTeamRejected       = "team.rejected"
	KindTeamUpdated        = "team.updated"
	KindTeamDeleted        = "team.deleted"
	KindTeamPurged         = "team.purged"
	KindRequestSubmitted   = "request.submitted"
	KindRequestApproved    = "request.approved"
	KindRequestRejected    = "request.rejected"
	KindRequestExpired     = "request.expired"
	KindRequestWithdrawn   = "request.withdrawn"
	KindInvitationSent     = "invitation.sent"
	KindInvitationAccepted = "invitation.accepted"
	KindInvitationRejected = "invitation.rejected"
	KindMemberRemoved      = "member.removed"
	KindMemberLeft         = "member.left"
)

// Event describes one committed transition.
type Event struct {
	Kind       string
	TeamID     string
	UserID     string
	SubjectID  string // join request or invitation id, when applicable
	OccurredAt time.Time
}

// Notifier receives committed transition events.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// LogNotifier writes events to a standard logger.
type LogNotifier struct {
	logger *log.Logger
}

// NewLogNotifier creates a notifier backed by logger, or the default logger
// when logger is nil.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the event.
func (n *LogNotifier) Notify(_ context.Context, event Event) {
	if n == nil || n.logger == nil {
		return
	}
	n.logger.Printf("event kind=%s team=%s user=%s subject=%s",
		event.Kind, event.TeamID, event.UserID, event.SubjectID)
}

// NopNotifier discards every event.
type NopNotifier struct{}

// Notify discards the event.
func (NopNotifier) Notify(context.Context, Event) {}
