package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/improperboy/Hackmate-sub002/internal/platform/errors"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/domain/joinrequest"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/storage"
)

// GetJoinRequest returns one join request by id.
func (s *Store) GetJoinRequest(ctx context.Context, requestID string) (storage.JoinRequestRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.JoinRequestRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.JoinRequestRecord{}, fmt.Errorf("storage is not configured")
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return storage.JoinRequestRecord{}, fmt.Errorf("request id is required")
	}
	return getJoinRequest(ctx, s.sqlDB, requestID)
}

// ListJoinRequestsByTeam returns a team's requests, optionally narrowed to one
// status when status is not StatusUnspecified.
func (s *Store) ListJoinRequestsByTeam(ctx context.Context, teamID string, status joinrequest.Status) ([]storage.JoinRequestRecord, error) {
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

	query := `SELECT id, user_id, team_id, status, message, created_at, responded_at
	 FROM join_requests
	 WHERE team_id = ?`
	params := []any{teamID}
	if status != joinrequest.StatusUnspecified {
		query += ` AND status = ?`
		params = append(params, joinrequest.StatusLabel(status))
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("list join requests by team: %w", err)
	}
	defer rows.Close()
	return scanJoinRequests(rows)
}

// ListJoinRequestsByUser returns every request the user has submitted.
func (s *Store) ListJoinRequestsByUser(ctx context.Context, userID string) ([]storage.JoinRequestRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, user_id, team_id, status, message, created_at, responded_at
		 FROM join_requests
		 WHERE user_id = ?
		 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list join requests by user: %w", err)
	}
	defer rows.Close()
	return scanJoinRequests(rows)
}

// CreateJoinRequest inserts a pending request after running every admission
// check against the same transactional snapshot.
func (s *Store) CreateJoinRequest(ctx context.Context, rec storage.JoinRequestRecord, maxMembers int) (storage.JoinRequestRecord, error) {
	var result storage.JoinRequestRecord
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		teamRec, err := getTeam(ctx, tx, rec.TeamID)
		if err != nil {
			return err
		}
		if err := ensureTeamAccepting(teamRec); err != nil {
			return err
		}
		if teamRec.LeaderID == rec.UserID {
			return apperrors.WithMetadata(apperrors.CodeStateConflict,
				"leader cannot request to join their own team",
				map[string]string{"team_id": rec.TeamID})
		}
		if err := ensureUserUncommitted(ctx, tx, rec.UserID); err != nil {
			return err
		}
		if err := ensureTeamHasRoom(ctx, tx, rec.TeamID, maxMembers); err != nil {
			return err
		}

		var pending int
		row := tx.QueryRowContext(
			ctx,
			`SELECT COUNT(*) FROM join_requests
			 WHERE user_id = ? AND team_id = ? AND status = 'PENDING'`,
			rec.UserID, rec.TeamID,
		)
		if err := row.Scan(&pending); err != nil {
			return fmt.Errorf("count pending requests: %w", err)
		}
		if pending > 0 {
			return apperrors.WithMetadata(apperrors.CodeDuplicateRequest,
				"a pending request to this team already exists",
				map[string]string{"team_id": rec.TeamID})
		}

		var total int
		row = tx.QueryRowContext(
			ctx,
			`SELECT COUNT(*) FROM join_requests WHERE user_id = ? AND team_id = ?`,
			rec.UserID, rec.TeamID,
		)
		if err := row.Scan(&total); err != nil {
			return fmt.Errorf("count requests: %w", err)
		}
		if total >= joinrequest.MaxRequestsPerTeam {
			return apperrors.WithMetadata(apperrors.CodeLimitExceeded,
				"request limit for this team reached",
				map[string]string{
					"team_id": rec.TeamID,
					"max":     fmt.Sprintf("%d", joinrequest.MaxRequestsPerTeam),
				})
		}

		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO join_requests (id, user_id, team_id, status, message, created_at, responded_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID,
			rec.UserID,
			rec.TeamID,
			joinrequest.StatusLabel(rec.Status),
			rec.Message,
			toMillis(rec.CreatedAt),
			toNullMillis(rec.RespondedAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperrors.Wrap(apperrors.CodeDuplicateRequest,
					"a pending request to this team already exists", err)
			}
			return fmt.Errorf("insert join request: %w", err)
		}
		result = rec
		return nil
	})
	if err != nil {
		return storage.JoinRequestRecord{}, err
	}
	return result, nil
}

// ApproveJoinRequest grants the membership and runs the full cascade in one
// transaction: the request flips to approved, the requester's other pending
// requests expire, and the requester's pending received invitations reject.
func (s *Store) ApproveJoinRequest(ctx context.Context, requestID string, maxMembers int, now time.Time) (storage.ApproveJoinRequestResult, error) {
	var result storage.ApproveJoinRequestResult
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		result = storage.ApproveJoinRequestResult{}

		rec, err := getJoinRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		approved, err := recordToJoinRequest(rec).Approve(now)
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
		if err := ensureUserUncommitted(ctx, tx, rec.UserID); err != nil {
			return err
		}
		if err := ensureTeamHasRoom(ctx, tx, rec.TeamID, maxMembers); err != nil {
			return err
		}

		membership := storage.MembershipRecord{
			TeamID:   rec.TeamID,
			UserID:   rec.UserID,
			JoinedAt: now.UTC(),
		}
		if err := insertMembership(ctx, tx, membership); err != nil {
			return err
		}
		result.Membership = membership

		if err := updateJoinRequestStatus(ctx, tx, approved); err != nil {
			return err
		}
		result.Request = joinRequestToRecord(approved)

		expired, err := expirePendingJoinRequests(ctx, tx, rec.UserID, rec.ID, now)
		if err != nil {
			return err
		}
		result.ExpiredRequestIDs = expired

		rejected, err := rejectPendingInvitations(ctx, tx, rec.UserID, "", now)
		if err != nil {
			return err
		}
		result.RejectedInvitationIDs = rejected
		return nil
	})
	if err != nil {
		return storage.ApproveJoinRequestResult{}, err
	}
	return result, nil
}

// RejectJoinRequest transitions a pending request to rejected.
func (s *Store) RejectJoinRequest(ctx context.Context, requestID string, now time.Time) (storage.JoinRequestRecord, error) {
	var result storage.JoinRequestRecord
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		rec, err := getJoinRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		rejected, err := recordToJoinRequest(rec).Reject(now)
		if err != nil {
			return err
		}
		if err := updateJoinRequestStatus(ctx, tx, rejected); err != nil {
			return err
		}
		result = joinRequestToRecord(rejected)
		return nil
	})
	if err != nil {
		return storage.JoinRequestRecord{}, err
	}
	return result, nil
}

// WithdrawJoinRequest deletes the requester's own still-pending request.
func (s *Store) WithdrawJoinRequest(ctx context.Context, requestID, userID string) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`DELETE FROM join_requests
			 WHERE id = ? AND user_id = ? AND status = 'PENDING'`,
			requestID,
			userID,
		)
		if err != nil {
			return fmt.Errorf("withdraw join request: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("withdraw join request rows: %w", err)
		}
		if affected == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}

func getJoinRequest(ctx context.Context, q dbtx, requestID string) (storage.JoinRequestRecord, error) {
	var rec storage.JoinRequestRecord
	var status string
	var createdAt int64
	var respondedAt sql.NullInt64
	row := q.QueryRowContext(
		ctx,
		`SELECT id, user_id, team_id, status, message, created_at, responded_at
		 FROM join_requests
		 WHERE id = ?`,
		requestID,
	)
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.TeamID,
		&status,
		&rec.Message,
		&createdAt,
		&respondedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.JoinRequestRecord{}, storage.ErrNotFound
		}
		return storage.JoinRequestRecord{}, fmt.Errorf("get join request: %w", err)
	}
	rec.Status = joinrequest.StatusFromLabel(status)
	rec.CreatedAt = fromMillis(createdAt)
	rec.RespondedAt = fromNullMillis(respondedAt)
	return rec, nil
}

func scanJoinRequests(rows *sql.Rows) ([]storage.JoinRequestRecord, error) {
	var requests []storage.JoinRequestRecord
	for rows.Next() {
		var rec storage.JoinRequestRecord
		var status string
		var createdAt int64
		var respondedAt sql.NullInt64
		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.TeamID,
			&status,
			&rec.Message,
			&createdAt,
			&respondedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan join request: %w", err)
		}
		rec.Status = joinrequest.StatusFromLabel(status)
		rec.CreatedAt = fromMillis(createdAt)
		rec.RespondedAt = fromNullMillis(respondedAt)
		requests = append(requests, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate join requests: %w", err)
	}
	return requests, nil
}

func updateJoinRequestStatus(ctx context.Context, q dbtx, r joinrequest.JoinRequest) error {
	_, err := q.ExecContext(
		ctx,
		`UPDATE join_requests SET status = ?, responded_at = ? WHERE id = ?`,
		joinrequest.StatusLabel(r.Status),
		toNullMillis(r.RespondedAt),
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("update join request: %w", err)
	}
	return nil
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
