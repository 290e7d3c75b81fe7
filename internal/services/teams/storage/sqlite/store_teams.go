package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/improperboy/Hackmate-sub002/internal/platform/errors"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/domain/team"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/filter"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/storage"
)

const maxTeamPageSize = 100

// GetTeam returns one team by id.
func (s *Store) GetTeam(ctx context.Context, teamID string) (storage.TeamRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.TeamRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.TeamRecord{}, fmt.Errorf("storage is not configured")
	}
	teamID = strings.TrimSpace(teamID)
	if teamID == "" {
		return storage.TeamRecord{}, fmt.Errorf("team id is required")
	}
	rec, err := getTeam(ctx, s.sqlDB, teamID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.TeamRecord{}, err
		}
		return storage.TeamRecord{}, fmt.Errorf("get team: %w", err)
	}
	return rec, nil
}

// GetActiveTeamByLeader returns the leader's pending or approved team.
func (s *Store) GetActiveTeamByLeader(ctx context.Context, leaderID string) (storage.TeamRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.TeamRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.TeamRecord{}, fmt.Errorf("storage is not configured")
	}
	leaderID = strings.TrimSpace(leaderID)
	if leaderID == "" {
		return storage.TeamRecord{}, fmt.Errorf("leader id is required")
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, name, description, leader_id, status, location_ref, created_at, updated_at
		 FROM teams
		 WHERE leader_id = ? AND status != 'REJECTED'`,
		leaderID,
	)
	rec, err := scanTeam(row)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.TeamRecord{}, err
		}
		return storage.TeamRecord{}, fmt.Errorf("get active team by leader: %w", err)
	}
	return rec, nil
}

// ListTeams returns a page of teams ordered by id, optionally narrowed by a
// translated filter condition. The next page token is the last id on the page.
func (s *Store) ListTeams(ctx context.Context, cond filter.SQLCondition, pageSize int, pageToken string) (storage.TeamPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.TeamPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.TeamPage{}, fmt.Errorf("storage is not configured")
	}
	if pageSize <= 0 || pageSize > maxTeamPageSize {
		pageSize = maxTeamPageSize
	}

	query := `SELECT id, name, description, leader_id, status, location_ref, created_at, updated_at
	 FROM teams`
	var clauses []string
	var params []any
	if !cond.IsEmpty() {
		clauses = append(clauses, cond.Clause)
		params = append(params, cond.Params...)
	}
	if pageToken = strings.TrimSpace(pageToken); pageToken != "" {
		clauses = append(clauses, "id > ?")
		params = append(params, pageToken)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id ASC LIMIT ?"
	params = append(params, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return storage.TeamPage{}, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var teams []storage.TeamRecord
	for rows.Next() {
		var rec storage.TeamRecord
		var status string
		var createdAt, updatedAt int64
		err := rows.Scan(
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
			return storage.TeamPage{}, fmt.Errorf("scan team: %w", err)
		}
		rec.Status = team.StatusFromLabel(status)
		rec.CreatedAt = fromMillis(createdAt)
		rec.UpdatedAt = fromMillis(updatedAt)
		teams = append(teams, rec)
	}
	if err := rows.Err(); err != nil {
		return storage.TeamPage{}, fmt.Errorf("iterate teams: %w", err)
	}

	page := storage.TeamPage{Teams: teams}
	if len(teams) > pageSize {
		page.Teams = teams[:pageSize]
		page.NextPageToken = page.Teams[pageSize-1].ID
	}
	return page, nil
}

// CreateTeam inserts a pending team inside one transaction. The leader's
// rejected teams are purged first so their names and request history do not
// block a fresh attempt, then uniqueness and freedom checks run against the
// cleaned state, and finally the leader's pending join requests expire.
func (s *Store) CreateTeam(ctx context.Context, rec storage.TeamRecord) (storage.CreateTeamResult, error) {
	var result storage.CreateTeamResult
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		result = storage.CreateTeamResult{}

		leads, err := userLeadsActiveTeam(ctx, tx, rec.LeaderID)
		if err != nil {
			return err
		}
		if leads {
			return apperrors.WithMetadata(apperrors.CodeStateConflict,
				"user already leads a team",
				map[string]string{"user_id": rec.LeaderID})
		}
		member, err := userHasMembership(ctx, tx, rec.LeaderID)
		if err != nil {
			return err
		}
		if member {
			return apperrors.WithMetadata(apperrors.CodeStateConflict,
				"user already belongs to a team",
				map[string]string{"user_id": rec.LeaderID})
		}

		purged, err := purgeRejectedTeams(ctx, tx, rec.LeaderID)
		if err != nil {
			return err
		}
		result.PurgedTeamIDs = purged

		taken, err := teamNameTaken(ctx, tx, rec.Name)
		if err != nil {
			return err
		}
		if taken {
			return apperrors.WithMetadata(apperrors.CodeDuplicateName,
				"team name is already taken",
				map[string]string{"name": rec.Name})
		}

		_, err = tx.ExecContext(
			ctx,
			`INSERT INTO teams (id, name, description, leader_id, status, location_ref, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID,
			rec.Name,
			rec.Description,
			rec.LeaderID,
			team.StatusLabel(rec.Status),
			rec.LocationRef,
			toMillis(rec.CreatedAt),
			toMillis(rec.UpdatedAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperrors.Wrap(apperrors.CodeDuplicateName,
					"team name is already taken", err)
			}
			return fmt.Errorf("insert team: %w", err)
		}
		result.Team = rec

		expired, err := expirePendingJoinRequests(ctx, tx, rec.LeaderID, "", rec.CreatedAt)
		if err != nil {
			return err
		}
		result.ExpiredRequestIDs = expired
		return nil
	})
	if err != nil {
		return storage.CreateTeamResult{}, err
	}
	return result, nil
}

// ApproveTeam transitions the team to approved, seeds the leader membership,
// and forces the leader's pending join requests and received invitations to
// terminal states inside one transaction.
func (s *Store) ApproveTeam(ctx context.Context, teamID, locationRef string, now time.Time) (storage.ApproveTeamResult, error) {
	var result storage.ApproveTeamResult
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		result = storage.ApproveTeamResult{}

		rec, err := getTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		current := recordToTeam(rec)
		approved, err := current.Approve(locationRef, now)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(
			ctx,
			`UPDATE teams SET status = ?, location_ref = ?, updated_at = ? WHERE id = ?`,
			team.StatusLabel(approved.Status),
			approved.LocationRef,
			toMillis(approved.UpdatedAt),
			approved.ID,
		)
		if err != nil {
			return fmt.Errorf("update team: %w", err)
		}
		result.Team = teamToRecord(approved)

		membership := storage.MembershipRecord{
			TeamID:   approved.ID,
			UserID:   approved.LeaderID,
			JoinedAt: now.UTC(),
		}
		if err := insertMembership(ctx, tx, membership); err != nil {
			return err
		}
		result.Membership = membership

		expired, err := expirePendingJoinRequests(ctx, tx, approved.LeaderID, "", now)
		if err != nil {
			return err
		}
		result.ExpiredRequestIDs = expired

		rejected, err := rejectPendingInvitations(ctx, tx, approved.LeaderID, "", now)
		if err != nil {
			return err
		}
		result.RejectedInvitationIDs = rejected
		return nil
	})
	if err != nil {
		return storage.ApproveTeamResult{}, err
	}
	return result, nil
}

// RejectTeam transitions a pending team to rejected.
func (s *Store) RejectTeam(ctx context.Context, teamID string, now time.Time) (storage.TeamRecord, error) {
	var result storage.TeamRecord
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		rec, err := getTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		rejected, err := recordToTeam(rec).Reject(now)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(
			ctx,
			`UPDATE teams SET status = ?, updated_at = ? WHERE id = ?`,
			team.StatusLabel(rejected.Status),
			toMillis(rejected.UpdatedAt),
			rejected.ID,
		)
		if err != nil {
			return fmt.Errorf("update team: %w", err)
		}
		result = teamToRecord(rejected)
		return nil
	})
	if err != nil {
		return storage.TeamRecord{}, err
	}
	return result, nil
}

// UpdateTeamDescription replaces the descriptive fields of an approved team.
func (s *Store) UpdateTeamDescription(ctx context.Context, teamID, description string, now time.Time) (storage.TeamRecord, error) {
	var result storage.TeamRecord
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		rec, err := getTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		updated, err := recordToTeam(rec).UpdateDescription(description, now)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(
			ctx,
			`UPDATE teams SET description = ?, updated_at = ? WHERE id = ?`,
			updated.Description,
			toMillis(updated.UpdatedAt),
			updated.ID,
		)
		if err != nil {
			return fmt.Errorf("update team: %w", err)
		}
		result = teamToRecord(updated)
		return nil
	})
	if err != nil {
		return storage.TeamRecord{}, err
	}
	return result, nil
}

// DeleteTeam removes the team and everything scoped to it.
func (s *Store) DeleteTeam(ctx context.Context, teamID string) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := getTeam(ctx, tx, teamID); err != nil {
			return err
		}
		if err := deleteTeamScoped(ctx, tx, teamID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, teamID); err != nil {
			return fmt.Errorf("delete team: %w", err)
		}
		return nil
	})
}

// purgeRejectedTeams deletes the leader's rejected teams along with the join
// requests and invitations scoped to them, returning the purged team ids.
func purgeRejectedTeams(ctx context.Context, q dbtx, leaderID string) ([]string, error) {
	ids, err := collectIDs(ctx, q,
		`SELECT id FROM teams WHERE leader_id = ? AND status = 'REJECTED' ORDER BY id ASC`,
		leaderID)
	if err != nil {
		return nil, fmt.Errorf("list rejected teams: %w", err)
	}
	for _, teamID := range ids {
		if err := deleteTeamScoped(ctx, q, teamID); err != nil {
			return nil, err
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, teamID); err != nil {
			return nil, fmt.Errorf("delete rejected team: %w", err)
		}
	}
	return ids, nil
}

// deleteTeamScoped removes the rows that hang off one team.
func deleteTeamScoped(ctx context.Context, q dbtx, teamID string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM team_memberships WHERE team_id = ?`, teamID); err != nil {
		return fmt.Errorf("delete team memberships: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM join_requests WHERE team_id = ?`, teamID); err != nil {
		return fmt.Errorf("delete team join requests: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM team_invitations WHERE team_id = ?`, teamID); err != nil {
		return fmt.Errorf("delete team invitations: %w", err)
	}
	return nil
}

func teamNameTaken(ctx context.Context, q dbtx, name string) (bool, error) {
	var one int
	row := q.QueryRowContext(ctx, `SELECT 1 FROM teams WHERE name = ? LIMIT 1`, name)
	err := row.Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check team name: %w", err)
	}
	return true, nil
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
