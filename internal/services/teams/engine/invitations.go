package engine

import (
	"context"
	"strings"

	apperrors "github.com/improperboy/Hackmate-sub002/internal/platform/errors"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/domain/invitation"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/notify"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/storage"
)

// InviteUser files an invitation from the actor's team to a specific
// participant. Only the team leader may invite.
func (e *Engine) InviteUser(ctx context.Context, actor Actor, teamID, inviteeID, message string) (invitation.Invitation, error) {
	ctx, span := e.tracer.Start(ctx, "engine.InviteUser")
	defer span.End()

	if err := validActor(actor); err != nil {
		return invitation.Invitation{}, err
	}
	current, err := e.requireTeamAuthority(ctx, actor, teamID)
	if err != nil {
		return invitation.Invitation{}, err
	}

	created, err := invitation.Create(invitation.CreateInput{
		TeamID:     current.ID,
		FromUserID: actor.ID,
		ToUserID:   inviteeID,
		Message:    message,
	}, e.now, e.newID)
	if err != nil {
		return invitation.Invitation{}, err
	}

	maxMembers, err := e.maxTeamSize(ctx)
	if err != nil {
		return invitation.Invitation{}, err
	}

	rec, err := e.store.CreateInvitation(ctx, invitationToRecord(created), maxMembers)
	if err != nil {
		return invitation.Invitation{}, storeError(err, "team not found")
	}

	e.emit(ctx, notify.Event{
		Kind:      notify.KindInvitationSent,
		TeamID:    rec.TeamID,
		UserID:    rec.ToUserID,
		SubjectID: rec.ID,
	})
	return recordToInvitation(rec), nil
}

// AcceptInvitation joins the actor to the inviting team. Only the invitee may
// accept; the membership, the acceptance, and the cascade over the invitee's
// other open channels commit atomically.
func (e *Engine) AcceptInvitation(ctx context.Context, actor Actor, invitationID string) (invitation.Invitation, error) {
	ctx, span := e.tracer.Start(ctx, "engine.AcceptInvitation")
	defer span.End()

	rec, err := e.requireInvitee(ctx, actor, invitationID)
	if err != nil {
		return invitation.Invitation{}, err
	}

	maxMembers, err := e.maxTeamSize(ctx)
	if err != nil {
		return invitation.Invitation{}, err
	}

	result, err := e.store.AcceptInvitation(ctx, rec.ID, maxMembers, e.now())
	if err != nil {
		return invitation.Invitation{}, storeError(err, "invitation not found")
	}

	e.emitRejectedInvitations(ctx, result.RejectedInvitationIDs)
	e.emitExpiredRequests(ctx, result.ExpiredRequestIDs)
	e.emit(ctx, notify.Event{
		Kind:      notify.KindInvitationAccepted,
		TeamID:    result.Invitation.TeamID,
		UserID:    result.Invitation.ToUserID,
		SubjectID: result.Invitation.ID,
	})
	return recordToInvitation(result.Invitation), nil
}

// RejectInvitation declines a pending invitation. Terminal, no cascade.
func (e *Engine) RejectInvitation(ctx context.Context, actor Actor, invitationID string) (invitation.Invitation, error) {
	ctx, span := e.tracer.Start(ctx, "engine.RejectInvitation")
	defer span.End()

	rec, err := e.requireInvitee(ctx, actor, invitationID)
	if err != nil {
		return invitation.Invitation{}, err
	}

	rejected, err := e.store.RejectInvitation(ctx, rec.ID, e.now())
	if err != nil {
		return invitation.Invitation{}, storeError(err, "invitation not found")
	}

	e.emit(ctx, notify.Event{
		Kind:      notify.KindInvitationRejected,
		TeamID:    rejected.TeamID,
		UserID:    rejected.ToUserID,
		SubjectID: rejected.ID,
	})
	return recordToInvitation(rejected), nil
}

// ListOwnInvitations returns every invitation addressed to the actor.
func (e *Engine) ListOwnInvitations(ctx context.Context, actor Actor) ([]invitation.Invitation, error) {
	ctx, span := e.tracer.Start(ctx, "engine.ListOwnInvitations")
	defer span.End()

	if err := validActor(actor); err != nil {
		return nil, err
	}
	records, err := e.store.ListInvitationsByUser(ctx, actor.ID)
	if err != nil {
		return nil, storeError(err, "invitation not found")
	}
	return invitationsFromRecords(records), nil
}

// ListTeamInvitations returns every invitation a team has sent. Only the
// leader (or an admin) may list them.
func (e *Engine) ListTeamInvitations(ctx context.Context, actor Actor, teamID string) ([]invitation.Invitation, error) {
	ctx, span := e.tracer.Start(ctx, "engine.ListTeamInvitations")
	defer span.End()

	if err := validActor(actor); err != nil {
		return nil, err
	}
	current, err := e.requireTeamAuthority(ctx, actor, teamID)
	if err != nil {
		return nil, err
	}
	records, err := e.store.ListInvitationsByTeam(ctx, current.ID)
	if err != nil {
		return nil, storeError(err, "team not found")
	}
	return invitationsFromRecords(records), nil
}

// requireInvitee loads the invitation and verifies the actor is its
// addressee.
func (e *Engine) requireInvitee(ctx context.Context, actor Actor, invitationID string) (storage.InvitationRecord, error) {
	if err := validActor(actor); err != nil {
		return storage.InvitationRecord{}, err
	}
	rec, err := e.store.GetInvitation(ctx, strings.TrimSpace(invitationID))
	if err != nil {
		return storage.InvitationRecord{}, storeError(err, "invitation not found")
	}
	if rec.ToUserID != actor.ID {
		return storage.InvitationRecord{}, apperrors.WithMetadata(apperrors.CodePermission,
			"only the invited user may respond to an invitation",
			map[string]string{"invitation_id": rec.ID})
	}
	return rec, nil
}

func invitationsFromRecords(records []storage.InvitationRecord) []invitation.Invitation {
	invitations := make([]invitation.Invitation, 0, len(records))
	for _, rec := range records {
		invitations = append(invitations, recordToInvitation(rec))
	}
	return invitations
}

func recordToInvitation(rec storage.InvitationRecord) invitation.Invitation {
	return invitation.Invitation{
		ID:          rec.ID,
		TeamID:      rec.TeamID,
		FromUserID:  rec.FromUserID,
		ToUserID:    rec.ToUserID,
		Status:      rec.Status,
		Message:     rec.Message,
		CreatedAt:   rec.CreatedAt,
		RespondedAt: rec.RespondedAt,
	}
}

func invitationToRecord(i invitation.Invitation) storage.InvitationRecord {
	return storage.InvitationRecord{
		ID:          i.ID,
		TeamID:      i.TeamID,
		FromUserID:  i.FromUserID,
		ToUserID:    i.ToUserID,
		Status:      i.Status,
		Message:     i.Message,
		CreatedAt:   i.CreatedAt,
		RespondedAt: i.RespondedAt,
	}
}
