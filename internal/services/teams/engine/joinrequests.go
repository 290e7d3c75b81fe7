package engine

import (
	"context"
	"strings"

	apperrors "github.com/improperboy/Hackmate-sub002/internal/platform/errors"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/domain/joinrequest"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/notify"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/storage"
)

// SubmitJoinRequest files the actor's request to join a team. A user may
// hold concurrent pending requests to different teams but only one pending
// request per team, and at most three requests to the same team counting
// every surviving status.
func (e *Engine) SubmitJoinRequest(ctx context.Context, actor Actor, teamID, message string) (joinrequest.JoinRequest, error) {
	ctx, span := e.tracer.Start(ctx, "engine.SubmitJoinRequest")
	defer span.End()

	if err := validActor(actor); err != nil {
		return joinrequest.JoinRequest{}, err
	}

	created, err := joinrequest.Create(joinrequest.CreateInput{
		UserID:  actor.ID,
		TeamID:  teamID,
		Message: message,
	}, e.now, e.newID)
	if err != nil {
		return joinrequest.JoinRequest{}, err
	}

	maxMembers, err := e.maxTeamSize(ctx)
	if err != nil {
		return joinrequest.JoinRequest{}, err
	}

	rec, err := e.store.CreateJoinRequest(ctx, joinRequestToRecord(created), maxMembers)
	if err != nil {
		return joinrequest.JoinRequest{}, storeError(err, "team not found")
	}

	e.emit(ctx, notify.Event{
		Kind:      notify.KindRequestSubmitted,
		TeamID:    rec.TeamID,
		UserID:    rec.UserID,
		SubjectID: rec.ID,
	})
	return recordToJoinRequest(rec), nil
}

// ApproveJoinRequest grants the requested membership. Only the leader of the
// requested team (or an admin) may approve; the membership, the approval, and
// the cascade over the requester's other open channels commit atomically.
func (e *Engine) ApproveJoinRequest(ctx context.Context, actor Actor, requestID string) (joinrequest.JoinRequest, error) {
	ctx, span := e.tracer.Start(ctx, "engine.ApproveJoinRequest")
	defer span.End()

	request, err := e.requireRequestAuthority(ctx, actor, requestID)
	if err != nil {
		return joinrequest.JoinRequest{}, err
	}

	maxMembers, err := e.maxTeamSize(ctx)
	if err != nil {
		return joinrequest.JoinRequest{}, err
	}

	result, err := e.store.ApproveJoinRequest(ctx, request.ID, maxMembers, e.now())
	if err != nil {
		return joinrequest.JoinRequest{}, storeError(err, "join request not found")
	}

	e.emitExpiredRequests(ctx, result.ExpiredRequestIDs)
	e.emitRejectedInvitations(ctx, result.RejectedInvitationIDs)
	e.emit(ctx, notify.Event{
		Kind:      notify.KindRequestApproved,
		TeamID:    result.Request.TeamID,
		UserID:    result.Request.UserID,
		SubjectID: result.Request.ID,
	})
	return recordToJoinRequest(result.Request), nil
}

// RejectJoinRequest turns down a pending request. Terminal, no cascade.
func (e *Engine) RejectJoinRequest(ctx context.Context, actor Actor, requestID string) (joinrequest.JoinRequest, error) {
	ctx, span := e.tracer.Start(ctx, "engine.RejectJoinRequest")
	defer span.End()

	request, err := e.requireRequestAuthority(ctx, actor, requestID)
	if err != nil {
		return joinrequest.JoinRequest{}, err
	}

	rec, err := e.store.RejectJoinRequest(ctx, request.ID, e.now())
	if err != nil {
		return joinrequest.JoinRequest{}, storeError(err, "join request not found")
	}

	e.emit(ctx, notify.Event{
		Kind:      notify.KindRequestRejected,
		TeamID:    rec.TeamID,
		UserID:    rec.UserID,
		SubjectID: rec.ID,
	})
	return recordToJoinRequest(rec), nil
}

// WithdrawJoinRequest deletes the actor's own still-pending request.
func (e *Engine) WithdrawJoinRequest(ctx context.Context, actor Actor, requestID string) error {
	ctx, span := e.tracer.Start(ctx, "engine.WithdrawJoinRequest")
	defer span.End()

	if err := validActor(actor); err != nil {
		return err
	}

	if err := e.store.WithdrawJoinRequest(ctx, strings.TrimSpace(requestID), actor.ID); err != nil {
		return storeError(err, "join request not found")
	}

	e.emit(ctx, notify.Event{
		Kind:      notify.KindRequestWithdrawn,
		UserID:    actor.ID,
		SubjectID: strings.TrimSpace(requestID),
	})
	return nil
}

// ListJoinRequestsByTeam returns a team's requests, optionally narrowed to
// one status. Only the leader (or an admin) may list them.
func (e *Engine) ListJoinRequestsByTeam(ctx context.Context, actor Actor, teamID string, status joinrequest.Status) ([]joinrequest.JoinRequest, error) {
	ctx, span := e.tracer.Start(ctx, "engine.ListJoinRequestsByTeam")
	defer span.End()

	if err := validActor(actor); err != nil {
		return nil, err
	}
	current, err := e.requireTeamAuthority(ctx, actor, teamID)
	if err != nil {
		return nil, err
	}

	records, err := e.store.ListJoinRequestsByTeam(ctx, current.ID, status)
	if err != nil {
		return nil, storeError(err, "team not found")
	}
	return joinRequestsFromRecords(records), nil
}

// ListOwnJoinRequests returns every request the actor has submitted.
func (e *Engine) ListOwnJoinRequests(ctx context.Context, actor Actor) ([]joinrequest.JoinRequest, error) {
	ctx, span := e.tracer.Start(ctx, "engine.ListOwnJoinRequests")
	defer span.End()

	if err := validActor(actor); err != nil {
		return nil, err
	}
	records, err := e.store.ListJoinRequestsByUser(ctx, actor.ID)
	if err != nil {
		return nil, storeError(err, "join request not found")
	}
	return joinRequestsFromRecords(records), nil
}

// requireRequestAuthority loads the request and verifies the actor leads the
// requested team or is an admin.
func (e *Engine) requireRequestAuthority(ctx context.Context, actor Actor, requestID string) (storage.JoinRequestRecord, error) {
	if err := validActor(actor); err != nil {
		return storage.JoinRequestRecord{}, err
	}
	request, err := e.store.GetJoinRequest(ctx, strings.TrimSpace(requestID))
	if err != nil {
		return storage.JoinRequestRecord{}, storeError(err, "join request not found")
	}
	if actor.IsAdmin() {
		return request, nil
	}
	rec, err := e.store.GetTeam(ctx, request.TeamID)
	if err != nil {
		return storage.JoinRequestRecord{}, storeError(err, "team not found")
	}
	if rec.LeaderID != actor.ID {
		return storage.JoinRequestRecord{}, apperrors.WithMetadata(apperrors.CodePermission,
			"only the team leader may respond to join requests",
			map[string]string{"team_id": rec.ID})
	}
	return request, nil
}

func joinRequestsFromRecords(records []storage.JoinRequestRecord) []joinrequest.JoinRequest {
	requests := make([]joinrequest.JoinRequest, 0, len(records))
	for _, rec := range records {
		requests = append(requests, recordToJoinRequest(rec))
	}
	return requests
}

func recordToJoinRequest(rec storage.JoinRequestRecord) joinrequest.JoinRequest {
	return joinrequest.JoinRequest{
		ID:          rec.ID,
		UserID:      rec.UserID,
		TeamID:      rec.TeamID,
		Status:      rec.Status,
		Message:     rec.Message,
		CreatedAt:   rec.CreatedAt,
		RespondedAt: rec.RespondedAt,
	}
}

func joinRequestToRecord(r joinrequest.JoinRequest) storage.JoinRequestRecord {
	return storage.JoinRequestRecord{
		ID:          r.ID,
		UserID:      r.UserID,
		TeamID:      r.TeamID,
		Status:      r.Status,
		Message:     r.Message,
		CreatedAt:   r.CreatedAt,
		RespondedAt: r.RespondedAt,
	}
}
