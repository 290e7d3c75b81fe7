// Package invitation provides leader-initiated invitations to join a team.
package invitation

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/improperboy/Hackmate-sub002/internal/platform/errors"
	"github.com/improperboy/Hackmate-sub002/internal/platform/id"
)

// MaxMessageLength bounds the optional message to the invitee.
const MaxMessageLength = 500

var (
	// ErrEmptyTeamID indicates a missing team id.
	ErrEmptyTeamID = apperrors.New(apperrors.CodeValidation, "team id is required")
	// ErrEmptyFromUserID indicates a missing inviting leader id.
	ErrEmptyFromUserID = apperrors.New(apperrors.CodeValidation, "inviting user id is required")
	// ErrEmptyToUserID indicates a missing invitee id.
	ErrEmptyToUserID = apperrors.New(apperrors.CodeValidation, "invitee user id is required")
	// ErrSelfInvite indicates a leader inviting themself.
	ErrSelfInvite = apperrors.New(apperrors.CodeValidation, "invitee must differ from the inviting leader")
	// ErrMessageTooLong indicates a message over the length bound.
	ErrMessageTooLong = apperrors.New(apperrors.CodeValidation, "invitation message is too long")
)

// Status represents the lifecycle status of an invitation.
type Status int

const (
	// StatusUnspecified represents an invalid invitation status.
	StatusUnspecified Status = iota
	// StatusPending indicates an invitation awaiting the invitee's decision.
	StatusPending
	// StatusAccepted indicates an invitation the invitee accepted.
	StatusAccepted
	// StatusRejected indicates an invitation the invitee declined, or one
	// foreclosed by the invitee accepting a competing invitation.
	StatusRejected
)

// Invitation represents one leader-initiated invitation to a participant.
type Invitation struct {
	ID          string
	TeamID      string
	FromUserID  string
	ToUserID    string
	Status      Status
	Message     string
	CreatedAt   time.Time
	RespondedAt *time.Time
}

// CreateInput describes the fields needed to create an invitation.
type CreateInput struct {
	TeamID     string
	FromUserID string
	ToUserID   string
	Message    string
}

// Create creates a new pending invitation with a generated ID.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Invitation, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateInput(input)
	if err != nil {
		return Invitation{}, err
	}

	invitationID, err := idGenerator()
	if err != nil {
		return Invitation{}, fmt.Errorf("generate invitation id: %w", err)
	}

	return Invitation{
		ID:         invitationID,
		TeamID:     normalized.TeamID,
		FromUserID: normalized.FromUserID,
		ToUserID:   normalized.ToUserID,
		Status:     StatusPending,
		Message:    normalized.Message,
		CreatedAt:  now().UTC(),
	}, nil
}

// NormalizeCreateInput trims and validates invitation input.
func NormalizeCreateInput(input CreateInput) (CreateInput, error) {
	input.TeamID = strings.TrimSpace(input.TeamID)
	if input.TeamID == "" {
		return CreateInput{}, ErrEmptyTeamID
	}
	input.FromUserID = strings.TrimSpace(input.FromUserID)
	if input.FromUserID == "" {
		return CreateInput{}, ErrEmptyFromUserID
	}
	input.ToUserID = strings.TrimSpace(input.ToUserID)
	if input.ToUserID == "" {
		return CreateInput{}, ErrEmptyToUserID
	}
	if input.ToUserID == input.FromUserID {
		return CreateInput{}, ErrSelfInvite
	}
	input.Message = strings.TrimSpace(input.Message)
	if len(input.Message) > MaxMessageLength {
		return CreateInput{}, ErrMessageTooLong
	}
	return input, nil
}

// Accept transitions a pending invitation to accepted.
func (i Invitation) Accept(now time.Time) (Invitation, error) {
	return i.transition(StatusAccepted, now)
}

// Reject transitions a pending invitation to rejected.
func (i Invitation) Reject(now time.Time) (Invitation, error) {
	return i.transition(StatusRejected, now)
}

func (i Invitation) transition(to Status, now time.Time) (Invitation, error) {
	if i.Status != StatusPending {
		return Invitation{}, apperrors.WithMetadata(apperrors.CodeStateConflict,
			"invitation is not pending",
			map[string]string{"from": StatusLabel(i.Status), "to": StatusLabel(to)})
	}
	respondedAt := now.UTC()
	i.Status = to
	i.RespondedAt = &respondedAt
	return i, nil
}

// StatusLabel returns the string label for an invitation status.
func StatusLabel(status Status) string {
	switch status {
	case StatusPending:
		return "PENDING"
	case StatusAccepted:
		return "ACCEPTED"
	case StatusRejected:
		return "REJECTED"
	default:
		return "UNSPECIFIED"
	}
}

// StatusFromLabel converts a status label to a Status value.
func StatusFromLabel(label string) Status {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "PENDING":
		return StatusPending
	case "ACCEPTED":
		return StatusAccepted
	case "REJECTED":
		return StatusRejected
	default:
		return StatusUnspecified
	}
}
