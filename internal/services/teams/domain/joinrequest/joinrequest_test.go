package joinrequest

import (
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "github.com/improperboy/Hackmate-sub002/internal/platform/errors"
)

func fixedClock() time.Time {
	return time.Date(2026, time.March, 14, 9, 0, 0, 0, time.UTC)
}

func staticID() (string, error) {
	return "req-1", nil
}

func TestCreateDefaultsToPending(t *testing.T) {
	got, err := Create(CreateInput{UserID: " user-1 ", TeamID: "team-1", Message: " pick me "}, fixedClock, staticID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got.Status != StatusPending {
		t.Fatalf("status = %v", got.Status)
	}
	if got.UserID != "user-1" || got.Message != "pick me" {
		t.Fatalf("expected trimmed fields, got %+v", got)
	}
	if got.RespondedAt != nil {
		t.Fatal("expected nil responded_at on creation")
	}
}

func TestCreateValidation(t *testing.T) {
	cases := []struct {
		name  string
		input CreateInput
		want  error
	}{
		{"empty user", CreateInput{TeamID: "t"}, ErrEmptyUserID},
		{"empty team", CreateInput{UserID: "u"}, ErrEmptyTeamID},
		{"long message", CreateInput{UserID: "u", TeamID: "t", Message: strings.Repeat("m", MaxMessageLength+1)}, ErrMessageTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Create(tc.input, fixedClock, staticID)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestTransitionsOnlyFromPending(t *testing.T) {
	pending := JoinRequest{ID: "r", Status: StatusPending}

	approved, err := pending.Approve(fixedClock())
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != StatusApproved {
		t.Fatalf("status = %v", approved.Status)
	}
	if approved.RespondedAt == nil || !approved.RespondedAt.Equal(fixedClock()) {
		t.Fatal("expected responded_at stamped")
	}

	// Terminal states admit no further transitions.
	for _, terminal := range []JoinRequest{approved} {
		if _, err := terminal.Reject(fixedClock()); apperrors.GetCode(err) != apperrors.CodeStateConflict {
			t.Fatalf("reject after approve: code = %v", apperrors.GetCode(err))
		}
		if _, err := terminal.Expire(fixedClock()); apperrors.GetCode(err) != apperrors.CodeStateConflict {
			t.Fatalf("expire after approve: code = %v", apperrors.GetCode(err))
		}
	}
}

func TestRejectTwiceIsStateConflictBothTimes(t *testing.T) {
	rejected, err := JoinRequest{Status: StatusPending}.Reject(fixedClock())
	if err != nil {
		t.Fatalf("first reject: %v", err)
	}
	for range 2 {
		_, err := rejected.Reject(fixedClock())
		if apperrors.GetCode(err) != apperrors.CodeStateConflict {
			t.Fatalf("repeat reject: code = %v, want state conflict", apperrors.GetCode(err))
		}
	}
}

func TestStatusLabelRoundTrip(t *testing.T) {
	for _, status := range []Status{StatusPending, StatusApproved, StatusRejected, StatusExpired} {
		if got := StatusFromLabel(StatusLabel(status)); got != status {
			t.Fatalf("round trip %v -> %v", status, got)
		}
	}
}
