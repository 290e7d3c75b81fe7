// Package membership provides the team membership fact.
package membership

import (
	"strings"
	"time"

	apperrors "github.com/improperboy/Hackmate-sub002/internal/platform/errors"
)

var (
	// ErrEmptyTeamID indicates a missing team id.
	ErrEmptyTeamID = apperrors.New(apperrors.CodeValidation, "team id is required")
	// ErrEmptyUserID indicates a missing user id.
	ErrEmptyUserID = apperrors.New(apperrors.CodeValidation, "user id is required")
)

// Membership relates one user to one approved team. A user holds at most one
// membership system-wide; the (team, user) pair is unique.
type Membership struct {
	TeamID   string
	UserID   string
	JoinedAt time.Time
}

// New creates a membership fact for a user joining a team.
func New(teamID, userID string, now time.Time) (Membership, error) {
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return Membership{}, ErrEmptyTeamID
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Membership{}, ErrEmptyUserID
	}
	return Membership{
		TeamID:   teamID,
		UserID:   userID,
		JoinedAt: now.UTC(),
	}, nil
}
