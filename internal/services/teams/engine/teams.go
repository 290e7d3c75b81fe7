package engine

import (
	"context"
	"strings"

	apperrors "github.com/improperboy/Hackmate-sub002/internal/platform/errors"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/domain/team"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/filter"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/notify"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/storage"
)

// CreateTeamInput describes a team creation call.
type CreateTeamInput struct {
	Name        string
	Description string
}

// CreateTeam registers a new pending team led by the actor. The actor's
// previously rejected teams are purged and their pending join requests
// expired in the same transaction as the insert.
func (e *Engine) CreateTeam(ctx context.Context, actor Actor, input CreateTeamInput) (team.Team, error) {
	ctx, span := e.tracer.Start(ctx, "engine.CreateTeam")
	defer span.End()

	if err := validActor(actor); err != nil {
		return team.Team{}, err
	}

	created, err := team.CreateTeam(team.CreateTeamInput{
		Name:        input.Name,
		Description: input.Description,
		LeaderID:    actor.ID,
	}, e.now, e.newID)
	if err != nil {
		return team.Team{}, err
	}

	result, err := e.store.CreateTeam(ctx, teamToRecord(created))
	if err != nil {
		return team.Team{}, storeError(err, "team not found")
	}

	for _, purgedID := range result.PurgedTeamIDs {
		e.emit(ctx, notify.Event{Kind: notify.KindTeamPurged, TeamID: purgedID, UserID: actor.ID})
	}
	e.emitExpiredRequests(ctx, result.ExpiredRequestIDs)
	e.emit(ctx, notify.Event{Kind: notify.KindTeamCreated, TeamID: created.ID, UserID: actor.ID})
	return recordToTeam(result.Team), nil
}

// ApproveTeam transitions a pending team to approved and assigns its
// location. Admin only. The leader becomes the team's first member and the
// leader's open channels are forced terminal in the same transaction.
func (e *Engine) ApproveTeam(ctx context.Context, actor Actor, teamID, locationRef string) (team.Team, error) {
	ctx, span := e.tracer.Start(ctx, "engine.ApproveTeam")
	defer span.End()

	if err := requireAdmin(actor); err != nil {
		return team.Team{}, err
	}

	result, err := e.store.ApproveTeam(ctx, strings.TrimSpace(teamID), locationRef, e.now())
	if err != nil {
		return team.Team{}, storeError(err, "team not found")
	}

	e.emitExpiredRequests(ctx, result.ExpiredRequestIDs)
	e.emitRejectedInvitations(ctx, result.RejectedInvitationIDs)
	e.emit(ctx, notify.Event{
		Kind:   notify.KindTeamApproved,
		TeamID: result.Team.ID,
		UserID: result.Team.LeaderID,
	})
	return recordToTeam(result.Team), nil
}

// RejectTeam transitions a pending team to rejected. Admin only, no cascade.
func (e *Engine) RejectTeam(ctx context.Context, actor Actor, teamID string) (team.Team, error) {
	ctx, span := e.tracer.Start(ctx, "engine.RejectTeam")
	defer span.End()

	if err := requireAdmin(actor); err != nil {
		return team.Team{}, err
	}

	rec, err := e.store.RejectTeam(ctx, strings.TrimSpace(teamID), e.now())
	if err != nil {
		return team.Team{}, storeError(err, "team not found")
	}

	e.emit(ctx, notify.Event{Kind: notify.KindTeamRejected, TeamID: rec.ID, UserID: rec.LeaderID})
	return recordToTeam(rec), nil
}

// UpdateTeam replaces the descriptive fields of an approved team. Only the
// leader (or an admin) may edit; the name stays immutable.
func (e *Engine) UpdateTeam(ctx context.Context, actor Actor, teamID, description string) (team.Team, error) {
	ctx, span := e.tracer.Start(ctx, "engine.UpdateTeam")
	defer span.End()

	if err := validActor(actor); err != nil {
		return team.Team{}, err
	}
	current, err := e.requireTeamAuthority(ctx, actor, teamID)
	if err != nil {
		return team.Team{}, err
	}

	rec, err := e.store.UpdateTeamDescription(ctx, current.ID, description, e.now())
	if err != nil {
		return team.Team{}, storeError(err, "team not found")
	}

	e.emit(ctx, notify.Event{Kind: notify.KindTeamUpdated, TeamID: rec.ID, UserID: actor.ID})
	return recordToTeam(rec), nil
}

// DeleteTeam removes a team and everything scoped to it. Only the leader (or
// an admin) may delete. Irreversible.
func (e *Engine) DeleteTeam(ctx context.Context, actor Actor, teamID string) error {
	ctx, span := e.tracer.Start(ctx, "engine.DeleteTeam")
	defer span.End()

	if err := validActor(actor); err != nil {
		return err
	}
	current, err := e.requireTeamAuthority(ctx, actor, teamID)
	if err != nil {
		return err
	}

	if err := e.store.DeleteTeam(ctx, current.ID); err != nil {
		return storeError(err, "team not found")
	}

	e.emit(ctx, notify.Event{Kind: notify.KindTeamDeleted, TeamID: current.ID, UserID: actor.ID})
	return nil
}

// GetTeam returns one team.
func (e *Engine) GetTeam(ctx context.Context, teamID string) (team.Team, error) {
	ctx, span := e.tracer.Start(ctx, "engine.GetTeam")
	defer span.End()

	rec, err := e.store.GetTeam(ctx, strings.TrimSpace(teamID))
	if err != nil {
		return team.Team{}, storeError(err, "team not found")
	}
	return recordToTeam(rec), nil
}

// TeamPage is one page of teams with a continuation token.
type TeamPage struct {
	Teams         []team.Team
	NextPageToken string
}

// ListTeams returns a page of teams matching an optional AIP-160 filter
// expression. Admin only.
func (e *Engine) ListTeams(ctx context.Context, actor Actor, filterExpr string, pageSize int, pageToken string) (TeamPage, error) {
	ctx, span := e.tracer.Start(ctx, "engine.ListTeams")
	defer span.End()

	if err := requireAdmin(actor); err != nil {
		return TeamPage{}, err
	}

	cond, err := filter.ParseTeamFilter(filterExpr)
	if err != nil {
		return TeamPage{}, apperrors.Wrap(apperrors.CodeValidation, "invalid filter expression", err)
	}

	page, err := e.store.ListTeams(ctx, cond, pageSize, pageToken)
	if err != nil {
		return TeamPage{}, storeError(err, "team not found")
	}
	return teamPageFromRecords(page), nil
}

// ListPendingTeams returns the approval queue. Admin only.
func (e *Engine) ListPendingTeams(ctx context.Context, actor Actor, pageSize int, pageToken string) (TeamPage, error) {
	ctx, span := e.tracer.Start(ctx, "engine.ListPendingTeams")
	defer span.End()

	if err := requireAdmin(actor); err != nil {
		return TeamPage{}, err
	}

	cond := filter.SQLCondition{
		Clause: "status = ?",
		Params: []any{team.StatusLabel(team.StatusPending)},
	}
	page, err := e.store.ListTeams(ctx, cond, pageSize, pageToken)
	if err != nil {
		return TeamPage{}, storeError(err, "team not found")
	}
	return teamPageFromRecords(page), nil
}

// requireTeamAuthority loads the team and verifies the actor is its leader
// or an admin.
func (e *Engine) requireTeamAuthority(ctx context.Context, actor Actor, teamID string) (team.Team, error) {
	rec, err := e.store.GetTeam(ctx, strings.TrimSpace(teamID))
	if err != nil {
		return team.Team{}, storeError(err, "team not found")
	}
	if rec.LeaderID != actor.ID && !actor.IsAdmin() {
		return team.Team{}, apperrors.WithMetadata(apperrors.CodePermission,
			"only the team leader may perform this operation",
			map[string]string{"team_id": rec.ID})
	}
	return recordToTeam(rec), nil
}

func teamPageFromRecords(page storage.TeamPage) TeamPage {
	result := TeamPage{NextPageToken: page.NextPageToken}
	for _, rec := range page.Teams {
		result.Teams = append(result.Teams, recordToTeam(rec))
	}
	return result
}

func recordToTeam(rec storage.TeamRecord) team.Team {
	return team.Team{
		ID:          rec.ID,
		Name:        rec.Name,
		Description: rec.Description,
		LeaderID:    rec.LeaderID,
		Status:      rec.Status,
		LocationRef: rec.LocationRef,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

func teamToRecord(t team.Team) storage.TeamRecord {
	return storage.TeamRecord{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		LeaderID:    t.LeaderID,
		Status:      t.Status,
		LocationRef: t.LocationRef,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
