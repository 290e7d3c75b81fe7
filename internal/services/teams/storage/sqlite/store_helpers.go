package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/improperboy/Hackmate-sub002/internal/platform/errors"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/domain/invitation"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/domain/joinrequest"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/domain/team"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/storage"
)

// In-transaction helpers shared by the composite operations. Each takes a
// dbtx so the same query runs against the pool or inside a transaction.

func getTeam(ctx context.Context, q dbtx, teamID string) (storage.TeamRecord, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT id, name, description, leader_id, status, location_ref, created_at, updated_at
		 FROM teams
		 WHERE id = ?`,
		teamID,
	)
	return scanTeam(row)
}

func scanTeam(row *sql.Row) (storage.TeamRecord, error) {
	var rec storage.TeamRecord
	var status string
	var createdAt, updatedAt int64
	err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Description,
		&rec.LeaderID,
		&status,
		&rec.LocationRef,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.TeamRecord{}, storage.ErrNotFound
		}
		return storage.TeamRecord{}, fmt.Errorf("scan team: %w", err)
	}
	rec.Status = team.StatusFromLabel(status)
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}

func teamMemberCount(ctx context.Context, q dbtx, teamID string) (int, error) {
	var count int
	row := q.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM team_memberships WHERE team_id = ?`,
		teamID,
	)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return count, nil
}

func userHasMembership(ctx context.Context, q dbtx, userID string) (bool, error) {
	var one int
	row := q.QueryRowContext(
		ctx,
		`SELECT 1 FROM team_memberships WHERE user_id = ? LIMIT 1`,
		userID,
	)
	err := row.Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check membership: %w", err)
	}
	return true, nil
}

func userLeadsActiveTeam(ctx context.Context, q dbtx, userID string) (bool, error) {
	var one int
	row := q.QueryRowContext(
		ctx,
		`SELECT 1 FROM teams WHERE leader_id = ? AND status != 'REJECTED' LIMIT 1`,
		userID,
	)
	err := row.Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check active team lead: %w", err)
	}
	return true, nil
}

// ensureUserUncommitted verifies the user neither leads a non-rejected team
// nor holds any membership. Every path that grants a membership runs this
// inside its transaction.
func ensureUserUncommitted(ctx context.Context, q dbtx, userID string) error {
	leads, err := userLeadsActiveTeam(ctx, q, userID)
	if err != nil {
		return err
	}
	if leads {
		return apperrors.WithMetadata(apperrors.CodeStateConflict,
			"user already leads a team",
			map[string]string{"user_id": userID})
	}
	member, err := userHasMembership(ctx, q, userID)
	if err != nil {
		return err
	}
	if member {
		return apperrors.WithMetadata(apperrors.CodeStateConflict,
			"user already belongs to a team",
			map[string]string{"user_id": userID})
	}
	return nil
}

// ensureTeamHasRoom re-reads the member count inside the transaction so two
// concurrent acceptances cannot both pass the capacity check.
func ensureTeamHasRoom(ctx context.Context, q dbtx, teamID string, maxMembers int) error {
	count, err := teamMemberCount(ctx, q, teamID)
	if err != nil {
		return err
	}
	if count >= maxMembers {
		return apperrors.WithMetadata(apperrors.CodeCapacityExceeded,
			"team is already at capacity",
			map[string]string{"team_id": teamID, "max": fmt.Sprintf("%d", maxMembers)})
	}
	return nil
}

func ensureTeamAccepting(rec storage.TeamRecord) error {
	if rec.Status != team.StatusApproved {
		return apperrors.WithMetadata(apperrors.CodeStateConflict,
			"team is not accepting members",
			map[string]string{"team_id": rec.ID, "status": team.StatusLabel(rec.Status)})
	}
	return nil
}

func insertMembership(ctx context.Context, q dbtx, rec storage.MembershipRecord) error {
	_, err := q.ExecContext(
		ctx,
		`INSERT INTO team_memberships (team_id, user_id, joined_at)
		 VALUES (?, ?, ?)`,
		rec.TeamID,
		rec.UserID,
		toMillis(rec.JoinedAt),
	)
	if err != nil {
		// Unique index backstop: the explicit checks above already ran in
		// this transaction, so a violation here means a same-tx logic bug.
		if isUniqueViolation(err) {
			return apperrors.Wrap(apperrors.CodeStateConflict,
				"user already belongs to a team", err)
		}
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

// expirePendingJoinRequests forces the user's pending join requests to
// EXPIRED, optionally sparing one request id, and returns the affected ids.
func expirePendingJoinRequests(ctx context.Context, q dbtx, userID, excludeID string, now time.Time) ([]string, error) {
	ids, err := collectIDs(ctx, q,
		`SELECT id FROM join_requests
		 WHERE user_id = ? AND status = 'PENDING' AND id != ?
		 ORDER BY id ASC`,
		userID, excludeID)
	if err != nil {
		return nil, fmt.Errorf("list pending join requests: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	_, err = q.ExecContext(
		ctx,
		`UPDATE join_requests
		 SET status = ?, responded_at = ?
		 WHERE user_id = ? AND status = 'PENDING' AND id != ?`,
		joinrequest.StatusLabel(joinrequest.StatusExpired),
		toMillis(now),
		userID,
		excludeID,
	)
	if err != nil {
		return nil, fmt.Errorf("expire join requests: %w", err)
	}
	return ids, nil
}

// rejectPendingInvitations forces the user's pending received invitations to
// REJECTED, optionally sparing one invitation id, and returns the affected ids.
func rejectPendingInvitations(ctx context.Context, q dbtx, toUserID, excludeID string, now time.Time) ([]string, error) {
	ids, err := collectIDs(ctx, q,
		`SELECT id FROM team_invitations
		 WHERE to_user_id = ? AND status = 'PENDING' AND id != ?
		 ORDER BY id ASC`,
		toUserID, excludeID)
	if err != nil {
		return nil, fmt.Errorf("list pending invitations: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	_, err = q.ExecContext(
		ctx,
		`UPDATE team_invitations
		 SET status = ?, responded_at = ?
		 WHERE to_user_id = ? AND status = 'PENDING' AND id != ?`,
		invitation.StatusLabel(invitation.StatusRejected),
		toMillis(now),
		toUserID,
		excludeID,
	)
	if err != nil {
		return nil, fmt.Errorf("reject invitations: %w", err)
	}
	return ids, nil
}

func collectIDs(ctx context.Context, q dbtx, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
