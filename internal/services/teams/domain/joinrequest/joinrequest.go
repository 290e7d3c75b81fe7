// Package joinrequest provides participant-initiated requests to join a team.
package joinrequest

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/improperboy/Hackmate-sub002/internal/platform/errors"
	"github.com/improperboy/Hackmate-sub002/internal/platform/id"
)

const (
	// MaxMessageLength bounds the optional message to the team leader.
	MaxMessageLength = 500
	// MaxRequestsPerTeam caps historical requests (any surviving status) a
	// user may accumulate toward the same team. Withdrawn requests are
	// deleted rows and do not count.
	MaxRequestsPerTeam = 3
)

var (
	// ErrEmptyUserID indicates a missing requester id.
	ErrEmptyUserID = apperrors.New(apperrors.CodeValidation, "user id is required")
	// ErrEmptyTeamID indicates a missing team id.
	ErrEmptyTeamID = apperrors.New(apperrors.CodeValidation, "team id is required")
	// ErrMessageTooLong indicates a message over the length bound.
	ErrMessageTooLong = apperrors.New(apperrors.CodeValidation, "request message is too long")
)

// Status represents the lifecycle status of a join request.
type Status int

const (
	// StatusUnspecified represents an invalid request status.
	StatusUnspecified Status = iota
	// StatusPending indicates a request awaiting a leader decision.
	StatusPending
	// StatusApproved indicates a request the leader accepted.
	StatusApproved
	// StatusRejected indicates a request the leader turned down.
	StatusRejected
	// StatusExpired indicates a request foreclosed by a competing acceptance
	// or by the requester creating or joining a team.
	StatusExpired
)

// JoinRequest represents one participant-initiated request to join a team.
type JoinRequest struct {
	ID          string
	UserID      string
	TeamID      string
	Status      Status
	Message     string
	CreatedAt   time.Time
	RespondedAt *time.Time
}

// CreateInput describes the fields needed to submit a join request.
type CreateInput struct {
	UserID  string
	TeamID  string
	Message string
}

// Create creates a new pending join request with a generated ID.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (JoinRequest, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateInput(input)
	if err != nil {
		return JoinRequest{}, err
	}

	requestID, err := idGenerator()
	if err != nil {
		return JoinRequest{}, fmt.Errorf("generate join request id: %w", err)
	}

	return JoinRequest{
		ID:        requestID,
		UserID:    normalized.UserID,
		TeamID:    normalized.TeamID,
		Status:    StatusPending,
		Message:   normalized.Message,
		CreatedAt: now().UTC(),
	}, nil
}

// NormalizeCreateInput trims and validates join request input.
func NormalizeCreateInput(input CreateInput) (CreateInput, error) {
	input.UserID = strings.TrimSpace(input.UserID)
	if input.UserID == "" {
		return CreateInput{}, ErrEmptyUserID
	}
	input.TeamID = strings.TrimSpace(input.TeamID)
	if input.TeamID == "" {
		return CreateInput{}, ErrEmptyTeamID
	}
	input.Message = strings.TrimSpace(input.Message)
	if len(input.Message) > MaxMessageLength {
		return CreateInput{}, ErrMessageTooLong
	}
	return input, nil
}

// Approve transitions a pending request to approved.
func (r JoinRequest) Approve(now time.Time) (JoinRequest, error) {
	return r.transition(StatusApproved, now)
}

// Reject transitions a pending request to rejected.
func (r JoinRequest) Reject(now time.Time) (JoinRequest, error) {
	return r.transition(StatusRejected, now)
}

// Expire transitions a pending request to expired.
func (r JoinRequest) Expire(now time.Time) (JoinRequest, error) {
	return r.transition(StatusExpired, now)
}

// transition moves a pending request to a terminal status. Terminal statuses
// admit no further transitions.
func (r JoinRequest) transition(to Status, now time.Time) (JoinRequest, error) {
	if r.Status != StatusPending {
		return JoinRequest{}, apperrors.WithMetadata(apperrors.CodeStateConflict,
			"join request is not pending",
			map[string]string{"from": StatusLabel(r.Status), "to": StatusLabel(to)})
	}
	respondedAt := now.UTC()
	r.Status = to
	r.RespondedAt = &respondedAt
	return r, nil
}

// StatusLabel returns the string label for a request status.
func StatusLabel(status Status) string {
	switch status {
	case StatusPending:
		return "PENDING"
	case StatusApproved:
		return "APPROVED"
	case StatusRejected:
		return "REJECTED"
	case StatusExpired:
		return "EXPIRED"
	default:
		return "UNSPECIFIED"
	}
}

// StatusFromLabel converts a status label to a Status value.
func StatusFromLabel(label string) Status {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "PENDING":
		return StatusPending
	case "APPROVED":
		return StatusApproved
	case "REJECTED":
		return StatusRejected
	case "EXPIRED":
		return StatusExpired
	default:
		return StatusUnspecified
	}
}
