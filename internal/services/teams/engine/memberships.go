package engine

import (
	"context"
	"strings"

	apperrors "github.com/improperboy/Hackmate-sub002/internal/platform/errors"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/domain/membership"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/notify"
)

// RemoveMember removes a non-leader member from the actor's team. Only the
// team leader (or an admin) may remove members; the leader cannot be removed.
func (e *Engine) RemoveMember(ctx context.Context, actor Actor, teamID, userID string) error {
	ctx, span := e.tracer.Start(ctx, "engine.RemoveMember")
	defer span.End()

	if err := validActor(actor); err != nil {
		return err
	}
	current, err := e.requireTeamAuthority(ctx, actor, teamID)
	if err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	if userID == current.LeaderID {
		return apperrors.WithMetadata(apperrors.CodeStateConflict,
			"the team leader cannot be removed",
			map[string]string{"team_id": current.ID})
	}

	if err := e.store.RemoveMember(ctx, current.ID, userID); err != nil {
		return storeError(err, "membership not found")
	}

	e.emit(ctx, notify.Event{Kind: notify.KindMemberRemoved, TeamID: current.ID, UserID: userID})
	return nil
}

// LeaveTeam removes the actor's own membership. The leader may not leave;
// they delete the team instead.
func (e *Engine) LeaveTeam(ctx context.Context, actor Actor, teamID string) error {
	ctx, span := e.tracer.Start(ctx, "engine.LeaveTeam")
	defer span.End()

	if err := validActor(actor); err != nil {
		return err
	}

	rec, err := e.store.GetTeam(ctx, strings.TrimSpace(teamID))
	if err != nil {
		return storeError(err, "team not found")
	}
	if rec.LeaderID == actor.ID {
		return apperrors.WithMetadata(apperrors.CodeStateConflict,
			"the leader cannot leave, delete the team instead",
			map[string]string{"team_id": rec.ID})
	}

	if err := e.store.RemoveMember(ctx, rec.ID, actor.ID); err != nil {
		return storeError(err, "membership not found")
	}

	e.emit(ctx, notify.Event{Kind: notify.KindMemberLeft, TeamID: rec.ID, UserID: actor.ID})
	return nil
}

// MemberCount returns the current member count of a team.
func (e *Engine) MemberCount(ctx context.Context, teamID string) (int, error) {
	ctx, span := e.tracer.Start(ctx, "engine.MemberCount")
	defer span.End()

	count, err := e.store.MemberCount(ctx, strings.TrimSpace(teamID))
	if err != nil {
		return 0, storeError(err, "team not found")
	}
	return count, nil
}

// ListMembers returns a team's memberships ordered by join time.
func (e *Engine) ListMembers(ctx context.Context, teamID string) ([]membership.Membership, error) {
	ctx, span := e.tracer.Start(ctx, "engine.ListMembers")
	defer span.End()

	records, err := e.store.ListMembers(ctx, strings.TrimSpace(teamID))
	if err != nil {
		return nil, storeError(err, "team not found")
	}
	members := make([]membership.Membership, 0, len(records))
	for _, rec := range records {
		members = append(members, membership.Membership{
			TeamID:   rec.TeamID,
			UserID:   rec.UserID,
			JoinedAt: rec.JoinedAt,
		})
	}
	return members, nil
}

// MembershipOf returns the actor's own membership, or a not found error.
func (e *Engine) MembershipOf(ctx context.Context, actor Actor) (membership.Membership, error) {
	ctx, span := e.tracer.Start(ctx, "engine.MembershipOf")
	defer span.End()

	if err := validActor(actor); err != nil {
		return membership.Membership{}, err
	}
	rec, err := e.store.GetMembershipByUser(ctx, actor.ID)
	if err != nil {
		return membership.Membership{}, storeError(err, "membership not found")
	}
	return membership.Membership{
		TeamID:   rec.TeamID,
		UserID:   rec.UserID,
		JoinedAt: rec.JoinedAt,
	}, nil
}
