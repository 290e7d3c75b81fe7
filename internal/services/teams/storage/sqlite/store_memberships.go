package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/improperboy/Hackmate-sub002/internal/services/teams/storage"
)

// GetMembershipByUser returns the user's single membership.
func (s *Store) GetMembershipByUser(ctx context.Context, userID string) (storage.MembershipRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.MembershipRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.MembershipRecord{}, fmt.Errorf("storage is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.MembershipRecord{}, fmt.Errorf("user id is required")
	}

	var rec storage.MembershipRecord
	var joinedAt int64
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT team_id, user_id, joined_at FROM team_memberships WHERE user_id = ?`,
		userID,
	)
	if err := row.Scan(&rec.TeamID, &rec.UserID, &joinedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.MembershipRecord{}, storage.ErrNotFound
		}
		return storage.MembershipRecord{}, fmt.Errorf("get membership: %w", err)
	}
	rec.JoinedAt = fromMillis(joinedAt)
	return rec, nil
}

// ListMembers returns every membership of a team ordered by join time.
func (s *Store) ListMembers(ctx context.Context, teamID string) ([]storage.MembershipRecord, error) {
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
		`SELECT team_id, user_id, joined_at
		 FROM team_memberships
		 WHERE team_id = ?
		 ORDER BY joined_at ASC, user_id ASC`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []storage.MembershipRecord
	for rows.Next() {
		var rec storage.MembershipRecord
		var joinedAt int64
		if err := rows.Scan(&rec.TeamID, &rec.UserID, &joinedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		rec.JoinedAt = fromMillis(joinedAt)
		members = append(members, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return members, nil
}

// MemberCount returns the current member count of a team.
func (s *Store) MemberCount(ctx context.Context, teamID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return 0, fmt.Errorf("team id is required")
	}
	return teamMemberCount(ctx, s.sqlDB, teamID)
}

// RemoveMember deletes one membership fact. Returns storage.ErrNotFound when
// no such membership exists.
func (s *Store) RemoveMember(ctx context.Context, teamID, userID string) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`DELETE FROM team_memberships WHERE team_id = ? AND user_id = ?`,
			teamID,
			userID,
		)
		if err != nil {
			return fmt.Errorf("remove member: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("remove member rows: %w", err)
		}
		if affected == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}
