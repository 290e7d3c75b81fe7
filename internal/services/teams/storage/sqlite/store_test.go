package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	apperrors "github.com/improperboy/Hackmate-sub002/internal/platform/errors"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/domain/invitation"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/domain/joinrequest"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/domain/team"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/filter"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "teams.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

var testTime = time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC)

func teamFixture(id, name, leaderID string) storage.TeamRecord {
	return storage.TeamRecord{
		ID:        id,
		Name:      name,
		LeaderID:  leaderID,
		Status:    team.StatusPending,
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
}

func requestFixture(id, userID, teamID string) storage.JoinRequestRecord {
	return storage.JoinRequestRecord{
		ID:        id,
		UserID:    userID,
		TeamID:    teamID,
		Status:    joinrequest.StatusPending,
		CreatedAt: testTime,
	}
}

func invitationFixture(id, teamID, fromUserID, toUserID string) storage.InvitationRecord {
	return storage.InvitationRecord{
		ID:         id,
		TeamID:     teamID,
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Status:     invitation.StatusPending,
		CreatedAt:  testTime,
	}
}

// createApprovedTeam seeds an approved team led by leaderID.
func createApprovedTeam(t *testing.T, store *Store, id, name, leaderID string) storage.TeamRecord {
	t.Helper()
	ctx := context.Background()
	if _, err := store.CreateTeam(ctx, teamFixture(id, name, leaderID)); err != nil {
		t.Fatalf("create team: %v", err)
	}
	result, err := store.ApproveTeam(ctx, id, "table-1", testTime)
	if err != nil {
		t.Fatalf("approve team: %v", err)
	}
	return result.Team
}

func TestCreateTeam(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	result, err := store.CreateTeam(ctx, teamFixture("team-1", "Rocket", "user-1"))
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	if result.Team.ID != "team-1" {
		t.Fatalf("team id = %q", result.Team.ID)
	}

	got, err := store.GetTeam(ctx, "team-1")
	if err != nil {
		t.Fatalf("get team: %v", err)
	}
	if got.Status != team.StatusPending {
		t.Fatalf("status = %v, want pending", got.Status)
	}
	if got.Name != "Rocket" {
		t.Fatalf("name = %q", got.Name)
	}
}

func TestCreateTeamDuplicateName(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateTeam(ctx, teamFixture("team-1", "Rocket", "user-1")); err != nil {
		t.Fatalf("create team: %v", err)
	}
	_, err := store.CreateTeam(ctx, teamFixture("team-2", "rocket", "user-2"))
	if !apperrors.IsCode(err, apperrors.CodeDuplicateName) {
		t.Fatalf("err = %v, want duplicate name", err)
	}
}

func TestCreateTeamLeaderAlreadyLeads(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateTeam(ctx, teamFixture("team-1", "Rocket", "user-1")); err != nil {
		t.Fatalf("create team: %v", err)
	}
	_, err := store.CreateTeam(ctx, teamFixture("team-2", "Comet", "user-1"))
	if !apperrors.IsCode(err, apperrors.CodeStateConflict) {
		t.Fatalf("err = %v, want state conflict", err)
	}
}

func TestCreateTeamMemberCannotLead(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	createApprovedTeam(t, store, "team-1", "Rocket", "user-1")
	req := requestFixture("req-1", "user-2", "team-1")
	if _, err := store.CreateJoinRequest(ctx, req, 4); err != nil {
		t.Fatalf("create join request: %v", err)
	}
	if _, err := store.ApproveJoinRequest(ctx, "req-1", 4, testTime); err != nil {
		t.Fatalf("approve join request: %v", err)
	}

	_, err := store.CreateTeam(ctx, teamFixture("team-2", "Comet", "user-2"))
	if !apperrors.IsCode(err, apperrors.CodeStateConflict) {
		t.Fatalf("err = %v, want state conflict", err)
	}
}

func TestCreateTeamPurgesRejectedAndReusesName(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateTeam(ctx, teamFixture("team-1", "Rocket", "user-1")); err != nil {
		t.Fatalf("create team: %v", err)
	}
	if _, err := store.RejectTeam(ctx, "team-1", testTime); err != nil {
		t.Fatalf("reject team: %v", err)
	}

	result, err := store.CreateTeam(ctx, teamFixture("team-2", "Rocket", "user-1"))
	if err != nil {
		t.Fatalf("recreate team: %v", err)
	}
	if len(result.PurgedTeamIDs) != 1 || result.PurgedTeamIDs[0] != "team-1" {
		t.Fatalf("purged = %v, want [team-1]", result.PurgedTeamIDs)
	}
	if _, err := store.GetTeam(ctx, "team-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestCreateTeamExpiresLeaderPendingRequests(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	createApprovedTeam(t, store, "team-1", "Rocket", "user-1")
	req := requestFixture("req-1", "user-2", "team-1")
	if _, err := store.CreateJoinRequest(ctx, req, 4); err != nil {
		t.Fatalf("create join request: %v", err)
	}

	result, err := store.CreateTeam(ctx, teamFixture("team-2", "Comet", "user-2"))
	if err != nil {
		t.Fatalf("create team: %v", err)
	}
	if len(result.ExpiredRequestIDs) != 1 || result.ExpiredRequestIDs[0] != "req-1" {
		t.Fatalf("expired = %v, want [req-1]", result.ExpiredRequestIDs)
	}

	got, err := store.GetJoinRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("get join request: %v", err)
	}
	if got.Status != joinrequest.StatusExpired {
		t.Fatalf("status = %v, want expired", got.Status)
	}
	if got.RespondedAt == nil {
		t.Fatal("responded at not stamped")
	}
}

func TestApproveTeam(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateTeam(ctx, teamFixture("team-1", "Rocket", "user-1")); err != nil {
		t.Fatalf("create team: %v", err)
	}
	result, err := store.ApproveTeam(ctx, "team-1", "table-7", testTime)
	if err != nil {
		t.Fatalf("approve team: %v", err)
	}
	if result.Team.Status != team.StatusApproved {
		t.Fatalf("status = %v, want approved", result.Team.Status)
	}
	if result.Team.LocationRef != "table-7" {
		t.Fatalf("location = %q", result.Team.LocationRef)
	}
	if result.Membership.UserID != "user-1" || result.Membership.TeamID != "team-1" {
		t.Fatalf("membership = %+v", result.Membership)
	}

	count, err := store.MemberCount(ctx, "team-1")
	if err != nil {
		t.Fatalf("member count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestApproveTeamTwiceConflicts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	createApprovedTeam(t, store, "team-1", "Rocket", "user-1")
	_, err := store.ApproveTeam(ctx, "team-1", "table-2", testTime)
	if !apperrors.IsCode(err, apperrors.CodeStateConflict) {
		t.Fatalf("err = %v, want state conflict", err)
	}
}

func TestApproveTeamForcesLeaderChannelsTerminal(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	createApprovedTeam(t, store, "team-1", "Rocket", "user-1")

	// user-2 asks to join team-1 and is invited by team-1, then files a
	// pending team of their own.
	req := requestFixture("req-1", "user-2", "team-1")
	if _, err := store.CreateJoinRequest(ctx, req, 4); err != nil {
		t.Fatalf("create join request: %v", err)
	}
	inv := invitationFixture("inv-1", "team-1", "user-1", "user-2")
	if _, err := store.CreateInvitation(ctx, inv, 4); err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	if _, err := store.CreateTeam(ctx, teamFixture("team-2", "Comet", "user-2")); err != nil {
		t.Fatalf("create team: %v", err)
	}

	// Creating the team already expired the request; approval must still
	// reject the pending invitation.
	result, err := store.ApproveTeam(ctx, "team-2", "table-9", testTime)
	if err != nil {
		t.Fatalf("approve team: %v", err)
	}
	if len(result.RejectedInvitationIDs) != 1 || result.RejectedInvitationIDs[0] != "inv-1" {
		t.Fatalf("rejected = %v, want [inv-1]", result.RejectedInvitationIDs)
	}

	got, err := store.GetInvitation(ctx, "inv-1")
	if err != nil {
		t.Fatalf("get invitation: %v", err)
	}
	if got.Status != invitation.StatusRejected {
		t.Fatalf("status = %v, want rejected", got.Status)
	}
}

func TestRejectTeam(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateTeam(ctx, teamFixture("team-1", "Rocket", "user-1")); err != nil {
		t.Fatalf("create team: %v", err)
	}
	rec, err := store.RejectTeam(ctx, "team-1", testTime)
	if err != nil {
		t.Fatalf("reject team: %v", err)
	}
	if rec.Status != team.StatusRejected {
		t.Fatalf("status = %v, want rejected", rec.Status)
	}

	// Rejecting twice conflicts.
	if _, err := store.RejectTeam(ctx, "team-1", testTime); !apperrors.IsCode(err, apperrors.CodeStateConflict) {
		t.Fatalf("err = %v, want state conflict", err)
	}
}

func TestUpdateTeamDescription(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	createApprovedTeam(t, store, "team-1", "Rocket", "user-1")
	rec, err := store.UpdateTeamDescription(ctx, "team-1", "we build rockets", testTime.Add(time.Hour))
	if err != nil {
		t.Fatalf("update description: %v", err)
	}
	if rec.Description != "we build rockets" {
		t.Fatalf("description = %q", rec.Description)
	}
}

func TestUpdateTeamDescriptionPendingConflicts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateTeam(ctx, teamFixture("team-1", "Rocket", "user-1")); err != nil {
		t.Fatalf("create team: %v", err)
	}
	_, err := store.UpdateTeamDescription(ctx, "team-1", "soon", testTime)
	if !apperrors.IsCode(err, apperrors.CodeStateConflict) {
		t.Fatalf("err = %v, want state conflict", err)
	}
}

func TestDeleteTeamCascades(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	createApprovedTeam(t, store, "team-1", "Rocket", "user-1")
	req := requestFixture("req-1", "user-2", "team-1")
	if _, err := store.CreateJoinRequest(ctx, req, 4); err != nil {
		t.Fatalf("create join request: %v", err)
	}
	inv := invitationFixture("inv-1", "team-1", "user-1", "user-3")
	if _, err := store.CreateInvitation(ctx, inv, 4); err != nil {
		t.Fatalf("create invitation: %v", err)
	}

	if err := store.DeleteTeam(ctx, "team-1"); err != nil {
		t.Fatalf("delete team: %v", err)
	}
	if _, err := store.GetTeam(ctx, "team-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("team err = %v, want not found", err)
	}
	if _, err := store.GetJoinRequest(ctx, "req-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("request err = %v, want not found", err)
	}
	if _, err := store.GetInvitation(ctx, "inv-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("invitation err = %v, want not found", err)
	}
	if _, err := store.GetMembershipByUser(ctx, "user-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("membership err = %v, want not found", err)
	}
}

func TestListTeamsPagination(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		rec := teamFixture(fmt.Sprintf("team-%d", i), fmt.Sprintf("Team %d", i), fmt.Sprintf("user-%d", i))
		if _, err := store.CreateTeam(ctx, rec); err != nil {
			t.Fatalf("create team %d: %v", i, err)
		}
	}

	page, err := store.ListTeams(ctx, filter.SQLCondition{}, 2, "")
	if err != nil {
		t.Fatalf("list teams: %v", err)
	}
	if len(page.Teams) != 2 {
		t.Fatalf("page size = %d, want 2", len(page.Teams))
	}
	if page.NextPageToken == "" {
		t.Fatal("expected next page token")
	}

	var seen []string
	for _, rec := range page.Teams {
		seen = append(seen, rec.ID)
	}
	token := page.NextPageToken
	for token != "" {
		page, err = store.ListTeams(ctx, filter.SQLCondition{}, 2, token)
		if err != nil {
			t.Fatalf("list teams page: %v", err)
		}
		for _, rec := range page.Teams {
			seen = append(seen, rec.ID)
		}
		token = page.NextPageToken
	}
	if len(seen) != 5 {
		t.Fatalf("saw %d teams, want 5", len(seen))
	}
}

func TestListTeamsFiltered(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	createApprovedTeam(t, store, "team-1", "Rocket", "user-1")
	if _, err := store.CreateTeam(ctx, teamFixture("team-2", "Comet", "user-2")); err != nil {
		t.Fatalf("create team: %v", err)
	}

	cond, err := filter.ParseTeamFilter(`status = "PENDING"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	page, err := store.ListTeams(ctx, cond, 10, "")
	if err != nil {
		t.Fatalf("list teams: %v", err)
	}
	if len(page.Teams) != 1 || page.Teams[0].ID != "team-2" {
		t.Fatalf("teams = %+v, want only team-2", page.Teams)
	}
}

func TestCreateJoinRequestChecks(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	createApprovedTeam(t, store, "team-1", "Rocket", "user-1")

	if _, err := store.CreateJoinRequest(ctx, requestFixture("req-1", "user-2", "team-1"), 4); err != nil {
		t.Fatalf("create join request: %v", err)
	}

	// Duplicate pending request.
	_, err := store.CreateJoinRequest(ctx, requestFixture("req-2", "user-2", "team-1"), 4)
	if !apperrors.IsCode(err, apperrors.CodeDuplicateRequest) {
		t.Fatalf("err = %v, want duplicate request", err)
	}

	// Leader cannot request their own team.
	_, err = store.CreateJoinRequest(ctx, requestFixture("req-3", "user-1", "team-1"), 4)
	if !apperrors.IsCode(err, apperrors.CodeStateConflict) {
		t.Fatalf("err = %v, want state conflict", err)
	}

	// Pending team does not accept requests.
	if _, err := store.CreateTeam(ctx, teamFixture("team-2", "Comet", "user-3")); err != nil {
		t.Fatalf("create team: %v", err)
	}
	_, err = store.CreateJoinRequest(ctx, requestFixture("req-4", "user-4", "team-2"), 4)
	if !apperrors.IsCode(err, apperrors.CodeStateConflict) {
		t.Fatalf("err = %v, want state conflict", err)
	}

	// Unknown team.
	_, err = store.CreateJoinRequest(ctx, requestFixture("req-5", "user-4", "missing"), 4)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestCreateJoinRequestHistoricalCap(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	createApprovedTeam(t, store, "team-1", "Rocket", "user-1")

	for i := 1; i <= joinrequest.MaxRequestsPerTeam; i++ {
		reqID := fmt.Sprintf("req-%d", i)
		if _, err := store.CreateJoinRequest(ctx, requestFixture(reqID, "user-2", "team-1"), 4); err != nil {
			t.Fatalf("create request %d: %v", i, err)
		}
		if _, err := store.RejectJoinRequest(ctx, reqID, testTime); err != nil {
			t.Fatalf("reject request %d: %v", i, err)
		}
	}

	_, err := store.CreateJoinRequest(ctx, requestFixture("req-4", "user-2", "team-1"), 4)
	if !apperrors.IsCode(err, apperrors.CodeLimitExceeded) {
		t.Fatalf("err = %v, want limit exceeded", err)
	}
}

func TestWithdrawnRequestDoesNotCountTowardCap(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	createApprovedTeam(t, store, "team-1", "Rocket", "user-1")

	for i := 1; i <= joinrequest.MaxRequestsPerTeam+2; i++ {
		reqID := fmt.Sprintf("req-%d", i)
		if _, err := store.CreateJoinRequest(ctx, requestFixture(reqID, "user-2", "team-1"), 4); err != nil {
			t.Fatalf("create request %d: %v", i, err)
		}
		if err := store.WithdrawJoinRequest(ctx, reqID, "user-2"); err != nil {
			t.Fatalf("withdraw request %d: %v", i, err)
		}
	}
}

func TestCreateJoinRequestCapacity(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	createApprovedTeam(t, store, "team-1", "Rocket", "user-1")

	// maxMembers 1 means the leader alone fills the team.
	_, err := store.CreateJoinRequest(ctx, requestFixture("req-1", "user-2", "team-1"), 1)
	if !apperrors.IsCode(err, apperrors.CodeCapacityExceeded) {
		t.Fatalf("err = %v, want capacity exceeded", err)
	}
}

func TestApproveJoinRequestCascade(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	createApprovedTeam(t, store, "team-1", "Rocket", "user-1")
	createApprovedTeam(t, store, "team-2", "Comet", "user-2")

	// user-3 requests both teams and holds an invitation from team-2.
	if _, err := store.CreateJoinRequest(ctx, requestFixture("req-1", "user-3", "team-1"), 4); err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, err := store.CreateJoinRequest(ctx, requestFixture("req-2", "user-3", "team-2"), 4); err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, err := store.CreateInvitation(ctx, invitationFixture("inv-1", "team-2", "user-2", "user-3"), 4); err != nil {
		t.Fatalf("create invitation: %v", err)
	}

	result, err := store.ApproveJoinRequest(ctx, "req-1", 4, testTime)
	if err != nil {
		t.Fatalf("approve request: %v", err)
	}
	if result.Request.Status != joinrequest.StatusApproved {
		t.Fatalf("request status = %v, want approved", result.Request.Status)
	}
	if result.Membership.TeamID != "team-1" || result.Membership.UserID != "user-3" {
		t.Fatalf("membership = %+v", result.Membership)
	}
	if len(result.ExpiredRequestIDs) != 1 || result.ExpiredRequestIDs[0] != "req-2" {
		t.Fatalf("expired = %v, want [req-2]", result.ExpiredRequestIDs)
	}
	if len(result.RejectedInvitationIDs) != 1 || result.RejectedInvitationIDs[0] != "inv-1" {
		t.Fatalf("rejected = %v, want [inv-1]", result.RejectedInvitationIDs)
	}

	other, err := store.GetJoinRequest(ctx, "req-2")
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if other.Status != joinrequest.StatusExpired {
		t.Fatalf("other request status = %v, want expired", other.Status)
	}
}

func TestApproveJoinRequestAtCapacity(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	createApprovedTeam(t, store, "team-1", "Rocket", "user-1")
	if _, err := store.CreateJoinRequest(ctx, requestFixture("req-1", "user-2", "team-1"), 2); err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, err := store.CreateJoinRequest(ctx, requestFixture("req-2", "user-3", "team-1"), 2); err != nil {
		t.Fatalf("create request: %v", err)
	}

	if _, err := store.ApproveJoinRequest(ctx, "req-1", 2, testTime); err != nil {
		t.Fatalf("approve first: %v", err)
	}
	_, err := store.ApproveJoinRequest(ctx, "req-2", 2, testTime)
	if !apperrors.IsCode(err, apperrors.CodeCapacityExceeded) {
		t.Fatalf("err = %v, want capacity exceeded", err)
	}

	// The losing request is untouched, still pending.
	rec, err := store.GetJoinRequest(ctx, "req-2")
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if rec.Status != joinrequest.StatusPending {
		t.Fatalf("status = %v, want pending", rec.Status)
	}
}

func TestConcurrentApprovalsRespectCapacity(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	const maxMembers = 4
	createApprovedTeam(t, store, "team-1", "Rocket", "user-1")

	// Fill to one short of capacity.
	for i := 2; i <= 3; i++ {
		reqID := fmt.Sprintf("seed-%d", i)
		userID := fmt.Sprintf("user-%d", i)
		if _, err := store.CreateJoinRequest(ctx, requestFixture(reqID, userID, "team-1"), maxMembers); err != nil {
			t.Fatalf("seed request: %v", err)
		}
		if _, err := store.ApproveJoinRequest(ctx, reqID, maxMembers, testTime); err != nil {
			t.Fatalf("seed approve: %v", err)
		}
	}

	if _, err := store.CreateJoinRequest(ctx, requestFixture("req-a", "user-8", "team-1"), maxMembers); err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, err := store.CreateJoinRequest(ctx, requestFixture("req-b", "user-9", "team-1"), maxMembers); err != nil {
		t.Fatalf("create request: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, reqID := range []string{"req-a", "req-b"} {
		wg.Add(1)
		go func(i int, reqID string) {
			defer wg.Done()
			_, errs[i] = store.ApproveJoinRequest(ctx, reqID, maxMembers, testTime)
		}(i, reqID)
	}
	wg.Wait()

	var approved, capacity int
	for _, err := range errs {
		switch {
		case err == nil:
			approved++
		case apperrors.IsCode(err, apperrors.CodeCapacityExceeded):
			capacity++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if approved != 1 || capacity != 1 {
		t.Fatalf("approved = %d, capacity = %d, want 1 and 1", approved, capacity)
	}

	count, err := store.MemberCount(ctx, "team-1")
	if err != nil {
		t.Fatalf("member count: %v", err)
	}
	if count != maxMembers {
		t.Fatalf("count = %d, want %d", count, maxMembers)
	}
}

func TestRejectJoinRequestIdempotencyConflict(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	createApprovedTeam(t, store, "team-1", "Rocket", "user-1")
	if _, err := store.CreateJoinRequest(ctx, requestFixture("req-1", "user-2", "team-1"), 4); err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, err := store.RejectJoinRequest(ctx, "req-1", testTime); err != nil {
		t.Fatalf("reject request: %v", err)
	}
	_, err := store.RejectJoinRequest(ctx, "req-1", testTime)
	if !apperrors.IsCode(err, apperrors.CodeStateConflict) {
		t.Fatalf("err = %v, want state conflict", err)
	}
}

func TestWithdrawJoinRequest(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	createApprovedTeam(t, store, "team-1", "Rocket", "user-1")
	if _, err := store.CreateJoinRequest(ctx, requestFixture("req-1", "user-2", "team-1"), 4); err != nil {
		t.Fatalf("create request: %v", err)
	}

	// A different user cannot withdraw it.
	if err := store.WithdrawJoinRequest(ctx, "req-1", "user-3"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}

	if err := store.WithdrawJoinRequest(ctx, "req-1", "user-2"); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if _, err := store.GetJoinRequest(ctx, "req-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestCreateInvitationChecks(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	createApprovedTeam(t, store, "team-1", "Rocket", "user-1")

	if _, err := store.CreateInvitation(ctx, invitationFixture("inv-1", "team-1", "user-1", "user-2"), 4); err != nil {
		t.Fatalf("create invitation: %v", err)
	}

	// Duplicate pending invitation to the same user.
	_, err := store.CreateInvitation(ctx, invitationFixture("inv-2", "team-1", "user-1", "user-2"), 4)
	if !apperrors.IsCode(err, apperrors.CodeDuplicateRequest) {
		t.Fatalf("err = %v, want duplicate request", err)
	}

	// Invitee already on a team.
	createApprovedTeam(t, store, "team-2", "Comet", "user-3")
	_, err = store.CreateInvitation(ctx, invitationFixture("inv-3", "team-1", "user-1", "user-3"), 4)
	if !apperrors.IsCode(err, apperrors.CodeStateConflict) {
		t.Fatalf("err = %v, want state conflict", err)
	}
}

func TestAcceptInvitationCascade(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	createApprovedTeam(t, store, "team-1", "Rocket", "user-1")
	createApprovedTeam(t, store, "team-2", "Comet", "user-2")

	// user-3 holds invitations from both teams and a pending request to team-1.
	if _, err := store.CreateInvitation(ctx, invitationFixture("inv-1", "team-1", "user-1", "user-3"), 4); err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	if _, err := store.CreateInvitation(ctx, invitationFixture("inv-2", "team-2", "user-2", "user-3"), 4); err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	if _, err := store.CreateJoinRequest(ctx, requestFixture("req-1", "user-3", "team-1"), 4); err != nil {
		t.Fatalf("create request: %v", err)
	}

	result, err := store.AcceptInvitation(ctx, "inv-2", 4, testTime)
	if err != nil {
		t.Fatalf("accept invitation: %v", err)
	}
	if result.Invitation.Status != invitation.StatusAccepted {
		t.Fatalf("status = %v, want accepted", result.Invitation.Status)
	}
	if result.Membership.TeamID != "team-2" || result.Membership.UserID != "user-3" {
		t.Fatalf("membership = %+v", result.Membership)
	}
	if len(result.RejectedInvitationIDs) != 1 || result.RejectedInvitationIDs[0] != "inv-1" {
		t.Fatalf("rejected = %v, want [inv-1]", result.RejectedInvitationIDs)
	}
	if len(result.ExpiredRequestIDs) != 1 || result.ExpiredRequestIDs[0] != "req-1" {
		t.Fatalf("expired = %v, want [req-1]", result.ExpiredRequestIDs)
	}

	req, err := store.GetJoinRequest(ctx, "req-1")
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if req.Status != joinrequest.StatusExpired {
		t.Fatalf("request status = %v, want expired", req.Status)
	}
}

func TestAcceptInvitationAtCapacity(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	createApprovedTeam(t, store, "team-1", "Rocket", "user-1")
	if _, err := store.CreateInvitation(ctx, invitationFixture("inv-1", "team-1", "user-1", "user-2"), 2); err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	if _, err := store.CreateInvitation(ctx, invitationFixture("inv-2", "team-1", "user-1", "user-3"), 2); err != nil {
		t.Fatalf("create invitation: %v", err)
	}

	if _, err := store.AcceptInvitation(ctx, "inv-1", 2, testTime); err != nil {
		t.Fatalf("accept first: %v", err)
	}
	_, err := store.AcceptInvitation(ctx, "inv-2", 2, testTime)
	if !apperrors.IsCode(err, apperrors.CodeCapacityExceeded) {
		t.Fatalf("err = %v, want capacity exceeded", err)
	}
}

func TestRejectInvitation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	createApprovedTeam(t, store, "team-1", "Rocket", "user-1")
	if _, err := store.CreateInvitation(ctx, invitationFixture("inv-1", "team-1", "user-1", "user-2"), 4); err != nil {
		t.Fatalf("create invitation: %v", err)
	}
	rec, err := store.RejectInvitation(ctx, "inv-1", testTime)
	if err != nil {
		t.Fatalf("reject invitation: %v", err)
	}
	if rec.Status != invitation.StatusRejected {
		t.Fatalf("status = %v, want rejected", rec.Status)
	}
	if _, err := store.RejectInvitation(ctx, "inv-1", testTime); !apperrors.IsCode(err, apperrors.CodeStateConflict) {
		t.Fatalf("err = %v, want state conflict", err)
	}
}

func TestRemoveMember(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	createApprovedTeam(t, store, "team-1", "Rocket", "user-1")
	if _, err := store.CreateJoinRequest(ctx, requestFixture("req-1", "user-2", "team-1"), 4); err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, err := store.ApproveJoinRequest(ctx, "req-1", 4, testTime); err != nil {
		t.Fatalf("approve request: %v", err)
	}

	if err := store.RemoveMember(ctx, "team-1", "user-2"); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	if err := store.RemoveMember(ctx, "team-1", "user-2"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}

	count, err := store.MemberCount(ctx, "team-1")
	if err != nil {
		t.Fatalf("member count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestListMembers(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	createApprovedTeam(t, store, "team-1", "Rocket", "user-1")
	if _, err := store.CreateJoinRequest(ctx, requestFixture("req-1", "user-2", "team-1"), 4); err != nil {
		t.Fatalf("create request: %v", err)
	}
	if _, err := store.ApproveJoinRequest(ctx, "req-1", 4, testTime.Add(time.Minute)); err != nil {
		t.Fatalf("approve request: %v", err)
	}

	members, err := store.ListMembers(ctx, "team-1")
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members = %d, want 2", len(members))
	}
	if members[0].UserID != "user-1" {
		t.Fatalf("first member = %q, want leader", members[0].UserID)
	}
}

func TestGetActiveTeamByLeader(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.GetActiveTeamByLeader(ctx, "user-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}

	if _, err := store.CreateTeam(ctx, teamFixture("team-1", "Rocket", "user-1")); err != nil {
		t.Fatalf("create team: %v", err)
	}
	rec, err := store.GetActiveTeamByLeader(ctx, "user-1")
	if err != nil {
		t.Fatalf("get active team: %v", err)
	}
	if rec.ID != "team-1" {
		t.Fatalf("team id = %q", rec.ID)
	}

	if _, err := store.RejectTeam(ctx, "team-1", testTime); err != nil {
		t.Fatalf("reject team: %v", err)
	}
	if _, err := store.GetActiveTeamByLeader(ctx, "user-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want not found after rejection", err)
	}
}
