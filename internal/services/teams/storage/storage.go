// Package storage defines persistence contracts for team formation state.
//
// Every operation that combines an invariant check with a mutation is exposed
// as one composite method; implementations must execute the whole method,
// including its cascades, inside a single write transaction so concurrent
// acceptances cannot both pass a capacity or uniqueness check.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/improperboy/Hackmate-sub002/internal/services/teams/domain/invitation"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/domain/joinrequest"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/domain/team"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/filter"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrTransient indicates a storage conflict that persisted after the
	// implementation's internal retry; the operation did not apply.
	ErrTransient = errors.New("transient storage conflict")
)

// TeamRecord stores one team row.
type TeamRecord struct {
	ID          string
	Name        string
	Description string
	LeaderID    string
	Status      team.Status
	LocationRef string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TeamPage stores one page of team rows.
type TeamPage struct {
	Teams         []TeamRecord
	NextPageToken string
}

// MembershipRecord stores one (team, user) membership fact.
type MembershipRecord struct {
	TeamID   string
	UserID   string
	JoinedAt time.Time
}

// JoinRequestRecord stores one join request row.
type JoinRequestRecord struct {
	ID          string
	UserID      string
	TeamID      string
	Status      joinrequest.Status
	Message     string
	CreatedAt   time.Time
	RespondedAt *time.Time
}

// InvitationRecord stores one invitation row.
type InvitationRecord struct {
	ID          string
	TeamID      string
	FromUserID  string
	ToUserID    string
	Status      invitation.Status
	Message     string
	CreatedAt   time.Time
	RespondedAt *time.Time
}

// CreateTeamResult reports the cascade outcome of a team creation.
type CreateTeamResult struct {
	Team              TeamRecord
	PurgedTeamIDs     []string
	ExpiredRequestIDs []string
}

// ApproveTeamResult reports the cascade outcome of a team approval.
type ApproveTeamResult struct {
	Team                  TeamRecord
	Membership            MembershipRecord
	ExpiredRequestIDs     []string
	RejectedInvitationIDs []string
}

// ApproveJoinRequestResult reports the cascade outcome of a request approval.
type ApproveJoinRequestResult struct {
	Request               JoinRequestRecord
	Membership            MembershipRecord
	ExpiredRequestIDs     []string
	RejectedInvitationIDs []string
}

// AcceptInvitationResult reports the cascade outcome of an invitation acceptance.
type AcceptInvitationResult struct {
	Invitation            InvitationRecord
	Membership            MembershipRecord
	RejectedInvitationIDs []string
	ExpiredRequestIDs     []string
}

// TeamReader exposes read paths over team state.
type TeamReader interface {
	GetTeam(ctx context.Context, teamID string) (TeamRecord, error)
	// ListTeams returns a page of teams matching an optional translated
	// filter condition, ordered by id for stable pagination.
	ListTeams(ctx context.Context, cond filter.SQLCondition, pageSize int, pageToken string) (TeamPage, error)
	// GetActiveTeamByLeader returns the leader's pending or approved team.
	GetActiveTeamByLeader(ctx context.Context, leaderID string) (TeamRecord, error)
}

// MembershipReader exposes read paths over membership state.
type MembershipReader interface {
	GetMembershipByUser(ctx context.Context, userID string) (MembershipRecord, error)
	ListMembers(ctx context.Context, teamID string) ([]MembershipRecord, error)
	MemberCount(ctx context.Context, teamID string) (int, error)
}

// JoinRequestReader exposes read paths over join request state.
type JoinRequestReader interface {
	GetJoinRequest(ctx context.Context, requestID string) (JoinRequestRecord, error)
	ListJoinRequestsByTeam(ctx context.Context, teamID string, status joinrequest.Status) ([]JoinRequestRecord, error)
	ListJoinRequestsByUser(ctx context.Context, userID string) ([]JoinRequestRecord, error)
}

// InvitationReader exposes read paths over invitation state.
type InvitationReader interface {
	GetInvitation(ctx context.Context, invitationID string) (InvitationRecord, error)
	ListInvitationsByTeam(ctx context.Context, teamID string) ([]InvitationRecord, error)
	ListInvitationsByUser(ctx context.Context, toUserID string) ([]InvitationRecord, error)
}

// TeamWriter executes team lifecycle mutations.
type TeamWriter interface {
	// CreateTeam inserts a pending team after verifying, in the same
	// transaction, that the name is free and the leader neither leads a
	// non-rejected team nor holds a membership. It purges the leader's
	// rejected teams and expires the leader's pending join requests.
	CreateTeam(ctx context.Context, rec TeamRecord) (CreateTeamResult, error)
	// ApproveTeam transitions pending->approved, assigns the location, seeds
	// the leader membership, and forces the leader's pending join requests
	// and received invitations to terminal states.
	ApproveTeam(ctx context.Context, teamID, locationRef string, now time.Time) (ApproveTeamResult, error)
	// RejectTeam transitions pending->rejected.
	RejectTeam(ctx context.Context, teamID string, now time.Time) (TeamRecord, error)
	// UpdateTeamDescription replaces descriptive fields of an approved team.
	UpdateTeamDescription(ctx context.Context, teamID, description string, now time.Time) (TeamRecord, error)
	// DeleteTeam removes the team and every membership, join request, and
	// invitation scoped to it.
	DeleteTeam(ctx context.Context, teamID string) error
}

// MembershipWriter executes membership mutations outside the accept cascades.
type MembershipWriter interface {
	// RemoveMember deletes one membership fact.
	RemoveMember(ctx context.Context, teamID, userID string) error
}

// JoinRequestWriter executes join request mutations.
type JoinRequestWriter interface {
	// CreateJoinRequest inserts a pending request after verifying, in the
	// same transaction, team capacity, the requester's freedom, the absence
	// of a pending duplicate, and the historical per-team cap.
	CreateJoinRequest(ctx context.Context, rec JoinRequestRecord, maxMembers int) (JoinRequestRecord, error)
	// ApproveJoinRequest adds the membership, approves this request, expires
	// the requester's other pending requests, and rejects the requester's
	// pending received invitations, all in one transaction.
	ApproveJoinRequest(ctx context.Context, requestID string, maxMembers int, now time.Time) (ApproveJoinRequestResult, error)
	// RejectJoinRequest transitions pending->rejected.
	RejectJoinRequest(ctx context.Context, requestID string, now time.Time) (JoinRequestRecord, error)
	// WithdrawJoinRequest deletes the requester's own still-pending request.
	// Returns ErrNotFound when no pending request owned by userID matches.
	WithdrawJoinRequest(ctx context.Context, requestID, userID string) error
}

// InvitationWriter executes invitation mutations.
type InvitationWriter interface {
	// CreateInvitation inserts a pending invitation after verifying, in the
	// same transaction, team capacity, the invitee's freedom, and the
	// absence of a pending duplicate.
	CreateInvitation(ctx context.Context, rec InvitationRecord, maxMembers int) (InvitationRecord, error)
	// AcceptInvitation adds the membership, accepts this invitation, rejects
	// the invitee's other pending invitations, and expires the invitee's
	// pending join requests, all in one transaction.
	AcceptInvitation(ctx context.Context, invitationID string, maxMembers int, now time.Time) (AcceptInvitationResult, error)
	// RejectInvitation transitions pending->rejected.
	RejectInvitation(ctx context.Context, invitationID string, now time.Time) (InvitationRecord, error)
}

// EngineStore bundles every contract the formation engine depends on.
type EngineStore interface {
	TeamReader
	MembershipReader
	JoinRequestReader
	InvitationReader
	TeamWriter
	MembershipWriter
	JoinRequestWriter
	InvitationWriter
}
