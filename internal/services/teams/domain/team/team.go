// Package team provides the team entity and its lifecycle transitions.
package team

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/improperboy/Hackmate-sub002/internal/platform/errors"
	"github.com/improperboy/Hackmate-sub002/internal/platform/id"
)

const (
	// MaxNameLength bounds team names.
	MaxNameLength = 100
	// MaxDescriptionLength bounds team descriptions.
	MaxDescriptionLength = 500
)

var (
	// ErrEmptyName indicates a missing team name.
	ErrEmptyName = apperrors.New(apperrors.CodeValidation, "team name is required")
	// ErrNameTooLong indicates a team name over the length bound.
	ErrNameTooLong = apperrors.New(apperrors.CodeValidation, "team name is too long")
	// ErrDescriptionTooLong indicates a description over the length bound.
	ErrDescriptionTooLong = apperrors.New(apperrors.CodeValidation, "team description is too long")
	// ErrEmptyLeaderID indicates a missing leader id.
	ErrEmptyLeaderID = apperrors.New(apperrors.CodeValidation, "leader id is required")
)

// Status represents the lifecycle status of a team.
type Status int

const (
	// StatusUnspecified represents an invalid team status.
	StatusUnspecified Status = iota
	// StatusPending indicates a team awaiting admin approval.
	StatusPending
	// StatusApproved indicates a team cleared to accept members.
	StatusApproved
	// StatusRejected indicates a team turned down by an admin. Rejected teams
	// are inert and are purged when their leader creates a new team.
	StatusRejected
)

// Team represents one competition team.
type Team struct {
	ID          string
	Name        string
	Description string
	LeaderID    string
	Status      Status
	LocationRef string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateTeamInput describes the fields needed to create a team.
type CreateTeamInput struct {
	Name        string
	Description string
	LeaderID    string
}

// CreateTeam creates a new pending team with a generated ID and timestamps.
func CreateTeam(input CreateTeamInput, now func() time.Time, idGenerator func() (string, error)) (Team, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateTeamInput(input)
	if err != nil {
		return Team{}, err
	}

	teamID, err := idGenerator()
	if err != nil {
		return Team{}, fmt.Errorf("generate team id: %w", err)
	}

	createdAt := now().UTC()
	return Team{
		ID:          teamID,
		Name:        normalized.Name,
		Description: normalized.Description,
		LeaderID:    normalized.LeaderID,
		Status:      StatusPending,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}

// NormalizeCreateTeamInput trims and validates team creation input.
func NormalizeCreateTeamInput(input CreateTeamInput) (CreateTeamInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return CreateTeamInput{}, ErrEmptyName
	}
	if len(input.Name) > MaxNameLength {
		return CreateTeamInput{}, ErrNameTooLong
	}
	input.Description = strings.TrimSpace(input.Description)
	if len(input.Description) > MaxDescriptionLength {
		return CreateTeamInput{}, ErrDescriptionTooLong
	}
	input.LeaderID = strings.TrimSpace(input.LeaderID)
	if input.LeaderID == "" {
		return CreateTeamInput{}, ErrEmptyLeaderID
	}
	return input, nil
}

// Approve transitions a pending team to approved and assigns its location.
func (t Team) Approve(locationRef string, now time.Time) (Team, error) {
	if t.Status != StatusPending {
		return Team{}, transitionError(t.Status, StatusApproved)
	}
	t.Status = StatusApproved
	t.LocationRef = strings.TrimSpace(locationRef)
	t.UpdatedAt = now.UTC()
	return t, nil
}

// Reject transitions a pending team to rejected.
func (t Team) Reject(now time.Time) (Team, error) {
	if t.Status != StatusPending {
		return Team{}, transitionError(t.Status, StatusRejected)
	}
	t.Status = StatusRejected
	t.UpdatedAt = now.UTC()
	return t, nil
}

// UpdateDescription replaces the descriptive fields of an approved team.
func (t Team) UpdateDescription(description string, now time.Time) (Team, error) {
	if t.Status != StatusApproved {
		return Team{}, apperrors.WithMetadata(apperrors.CodeStateConflict,
			"only approved teams can be edited",
			map[string]string{"status": StatusLabel(t.Status)})
	}
	description = strings.TrimSpace(description)
	if len(description) > MaxDescriptionLength {
		return Team{}, ErrDescriptionTooLong
	}
	t.Description = description
	t.UpdatedAt = now.UTC()
	return t, nil
}

func transitionError(from, to Status) error {
	return apperrors.WithMetadata(apperrors.CodeStateConflict,
		"invalid team status transition",
		map[string]string{"from": StatusLabel(from), "to": StatusLabel(to)})
}

// StatusLabel returns the string label for a team status.
func StatusLabel(status Status) string {
	switch status {
	case StatusPending:
		return "PENDING"
	case StatusApproved:
		return "APPROVED"
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
	case "APPROVED":
		return StatusApproved
	case "REJECTED":
		return StatusRejected
	default:
		return StatusUnspecified
	}
}
