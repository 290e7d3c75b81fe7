package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/improperboy/Hackmate-sub002/internal/platform/errors"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/domain/invitation"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/storage"
)

// GetInvitation returns one invitation by id.
func (s *Store) GetInvitation(ctx context.Context, invitationID string) (storage.InvitationRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.InvitationRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.InvitationRecord{}, fmt.Errorf("storage is not configured")
	}
	invitationID = strings.TrimSpace(invitationID)
	if invitationID == "" {
		return storage.InvitationRecord{}, fmt.Errorf("invitation id is required")
	}
	return getInvitation(ctx, s.sqlDB, invitationID)
}

// ListInvitationsByTeam returns every invitation a team has sent.
func (s *Store) ListInvitationsByTeam(ctx context.Context, teamID string) ([]storage.InvitationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return nil, fmt.Errorf("team id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, team_id, from_user_id, to_user_id, status, message, created_at, responded_at
		 FROM team_invitations
		 WHERE team_id = ?
		 ORDER BY created_at ASC, id ASC`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("list invitations by team: %w", err)
	}
	defer rows.Close()
	return scanInvitations(rows)
}

// ListInvitationsByUser returns every invitation addressed to a user.
func (s *Store) ListInvitationsByUser(ctx context.Context, toUserID string) ([]storage.InvitationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	toUserID = strings.TrimSpace(toUserID)
	if toUserID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, team_id, from_user_id, to_user_id, status, message, created_at, responded_at
		 FROM team_invitations
		 WHERE to_user_id = ?
		 ORDER BY created_at ASC, id ASC`,
		toUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("list invitations by user: %w", err)
	}
	defer rows.Close()
	return scanInvitations(rows)
}

// CreateInvitation inserts a pending invitation after running every admission
// check against the same transactional snapshot.
func (s *Store) CreateInvitation(ctx context.Context, rec storage.InvitationRecord, maxMembers int) (storage.InvitationRecord, error) {
	var result storage.InvitationRecord
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		teamRec, err := getTeam(ctx, tx, rec.TeamID)
		if err != nil {
			return err
		}
		if err := ensureTeamAccepting(teamRec); err != nil {
			return err
		}
		if err := ensureUserUncommitted(ctx, tx, rec.ToUserID); err != nil {
			return err
		}
		if err := ensureTeamHasRoom(ctx, tx, rec.TeamID, maxMembers); err != nil {
			return err
		}

		var pending int
		row := tx.QueryRowContext(
			ctx,
			`SELECT COUNT(*) FROM team_invitations
			 WHERE team_id = ? AND to_user_id = ? AND status = 'PENDING'`,
			rec.TeamID, rec.ToUserID,
		)
		if err := row.Scan(&pending); err != nil {
			return fmt.Errorf("count pending invitations: %w", err)
		}
		if pending > 0 {
			return apperrors.WithMetadata(apperrors.CodeDuplicateRequest,
				"a pending invitation to this user already exists",
				map[string]string{"team_id": rec.TeamID, "user_id": rec.ToUserID})
		}

		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO team_invitations (id, team_id, from_user_id, to_user_id, status, message, created_at, responded_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID,
			rec.TeamID,
			rec.FromUserID,
			rec.ToUserID,
			invitation.StatusLabel(rec.Status),
			rec.Message,
			toMillis(rec.CreatedAt),
			toNullMillis(rec.RespondedAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperrors.Wrap(apperrors.CodeDuplicateRequest,
					"a pending invitation to this user already exists", err)
			}
			return fmt.Errorf("insert invitation: %w", err)
		}
		result = rec
		return nil
	})
	if err != nil {
		return storage.InvitationRecord{}, err
	}
	return result, nil
}

// AcceptInvitation grants the membership and runs the full cascade in one
// transaction: the invitation flips to accepted, the invitee's other pending
// invitations reject, and the invitee's pending join requests expire.
func (s *Store) AcceptInvitation(ctx context.Context, invitationID string, maxMembers int, now time.Time) (storage.AcceptInvitationResult, error) {
	var result storage.AcceptInvitationResult
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		result = storage.AcceptInvitationResult{}

		rec, err := getInvitation(ctx, tx, invitationID)
		if err != nil {
			return err
		}
		accepted, err := recordToInvitation(rec).Accept(now)
		if err != nil {
			return err
		}

		teamRec, err := getTeam(ctx, tx, rec.TeamID)
		if err != nil {
			return err
		}
		if err := ensureTeamAccepting(teamRec); err != nil {
			return err
		}
		if err := ensureUserUncommitted(ctx, tx, rec.ToUserID); err != nil {
			return err
		}
		if err := ensureTeamHasRoom(ctx, tx, rec.TeamID, maxMembers); err != nil {
			return err
		}

		membership := storage.MembershipRecord{
			TeamID:   rec.TeamID,
			UserID:   rec.ToUserID,
			JoinedAt: now.UTC(),
		}
		if err := insertMembership(ctx, tx, membership); err != nil {
			return err
		}
		result.Membership = membership

		if err := updateInvitationStatus(ctx, tx, accepted); err != nil {
			return err
		}
		result.Invitation = invitationToRecord(accepted)

		rejected, err := rejectPendingInvitations(ctx, tx, rec.ToUserID, rec.ID, now)
		if err != nil {
			return err
		}
		result.RejectedInvitationIDs = rejected

		expired, err := expirePendingJoinRequests(ctx, tx, rec.ToUserID, "", now)
		if err != nil {
			return err
		}
		result.ExpiredRequestIDs = expired
		return nil
	})
	if err != nil {
		return storage.AcceptInvitationResult{}, err
	}
	return result, nil
}

// RejectInvitation transitions a pending invitation to rejected.
func (s *Store) RejectInvitation(ctx context.Context, invitationID string, now time.Time) (storage.InvitationRecord, error) {
	var result storage.InvitationRecord
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		rec, err := getInvitation(ctx, tx, invitationID)
		if err != nil {
			return err
		}
		rejected, err := recordToInvitation(rec).Reject(now)
		if err != nil {
			return err
		}
		if err := updateInvitationStatus(ctx, tx, rejected); err != nil {
			return err
		}
		result = invitationToRecord(rejected)
		return nil
	})
	if err != nil {
		return storage.InvitationRecord{}, err
	}
	return result, nil
}

func getInvitation(ctx context.Context, q dbtx, invitationID string) (storage.InvitationRecord, error) {
	var rec storage.InvitationRecord
	var status string
	var createdAt int64
	var respondedAt sql.NullInt64
	row := q.QueryRowContext(
		ctx,
		`SELECT id, team_id, from_user_id, to_user_id, status, message, created_at, responded_at
		 FROM team_invitations
		 WHERE id = ?`,
		invitationID,
	)
	err := row.Scan(
		&rec.ID,
		&rec.TeamID,
		&rec.FromUserID,
		&rec.ToUserID,
		&status,
		&rec.Message,
		&createdAt,
		&respondedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.InvitationRecord{}, storage.ErrNotFound
		}
		return storage.InvitationRecord{}, fmt.Errorf("get invitation: %w", err)
	}
	rec.Status = invitation.StatusFromLabel(status)
	rec.CreatedAt = fromMillis(createdAt)
	rec.RespondedAt = fromNullMillis(respondedAt)
	return rec, nil
}

func scanInvitations(rows *sql.Rows) ([]storage.InvitationRecord, error) {
	var invitations []storage.InvitationRecord
	for rows.Next() {
		var rec storage.InvitationRecord
		var status string
		var createdAt int64
		var respondedAt sql.NullInt64
		err := rows.Scan(
			&rec.ID,
			&rec.TeamID,
			&rec.FromUserID,
			&rec.ToUserID,
			&status,
			&rec.Message,
			&createdAt,
			&respondedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		rec.Status = invitation.StatusFromLabel(status)
		rec.CreatedAt = fromMillis(createdAt)
		rec.RespondedAt = fromNullMillis(respondedAt)
		invitations = append(invitations, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invitations: %w", err)
	}
	return invitations, nil
}

func updateInvitationStatus(ctx context.Context, q dbtx, i invitation.Invitation) error {
	_, err := q.ExecContext(
		ctx,
		`UPDATE team_invitations SET status = ?, responded_at = ? WHERE id = ?`,
		invitation.StatusLabel(i.Status),
		toNullMillis(i.RespondedAt),
		i.ID,
	)
	if err != nil {
		return fmt.Errorf("update invitation: %w", err)
	}
	return nil
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
