package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/improperboy/Hackmate-sub002/internal/platform/errors"
	"github.com/improperboy/Hackmate-sub002/internal/platform/errors/i18n"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/domain/invitation"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/domain/joinrequest"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/domain/membership"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/domain/team"
)

type teamResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	LeaderID    string `json:"leader_id"`
	Status      string `json:"status"`
	LocationRef string `json:"location_ref,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type membershipResponse struct {
	TeamID   string `json:"team_id"`
	UserID   string `json:"user_id"`
	JoinedAt string `json:"joined_at"`
}

type joinRequestResponse struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	TeamID      string `json:"team_id"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	CreatedAt   string `json:"created_at"`
	RespondedAt string `json:"responded_at,omitempty"`
}

type invitationResponse struct {
	ID          string `json:"id"`
	TeamID      string `json:"team_id"`
	FromUserID  string `json:"from_user_id"`
	ToUserID    string `json:"to_user_id"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	CreatedAt   string `json:"created_at"`
	RespondedAt string `json:"responded_at,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func renderTeam(t team.Team) teamResponse {
	return teamResponse{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		LeaderID:    t.LeaderID,
		Status:      team.StatusLabel(t.Status),
		LocationRef: t.LocationRef,
		CreatedAt:   t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339),
	}
}

func renderTeams(teams []team.Team) []teamResponse {
	out := make([]teamResponse, 0, len(teams))
	for _, t := range teams {
		out = append(out, renderTeam(t))
	}
	return out
}

func renderMembership(m membership.Membership) membershipResponse {
	return membershipResponse{
		TeamID:   m.TeamID,
		UserID:   m.UserID,
		JoinedAt: m.JoinedAt.Format(time.RFC3339),
	}
}

func renderJoinRequest(r joinrequest.JoinRequest) joinRequestResponse {
	resp := joinRequestResponse{
		ID:        r.ID,
		UserID:    r.UserID,
		TeamID:    r.TeamID,
		Status:    joinrequest.StatusLabel(r.Status),
		Message:   r.Message,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
	if r.RespondedAt != nil {
		resp.RespondedAt = r.RespondedAt.Format(time.RFC3339)
	}
	return resp
}

func renderInvitation(i invitation.Invitation) invitationResponse {
	resp := invitationResponse{
		ID:         i.ID,
		TeamID:     i.TeamID,
		FromUserID: i.FromUserID,
		ToUserID:   i.ToUserID,
		Status:     invitation.StatusLabel(i.Status),
		Message:    i.Message,
		CreatedAt:  i.CreatedAt.Format(time.RFC3339),
	}
	if i.RespondedAt != nil {
		resp.RespondedAt = i.RespondedAt.Format(time.RFC3339)
	}
	return resp
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Printf("encode response: %v", err)
	}
}

// writeError maps a domain error to an HTTP status and a localized message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		h.logger.Printf("request failed: %v", err)
	}

	catalog := i18n.GetCatalog(preferredLocale(r))
	message := catalog.Format(string(code), apperrors.GetMetadata(err))
	h.writeJSON(w, status, errorResponse{Error: errorBody{
		Code:    string(code),
		Message: message,
	}})
}

// preferredLocale picks the first language range of Accept-Language.
func preferredLocale(r *http.Request) string {
	header := r.Header.Get("Accept-Language")
	if header == "" {
		return i18n.BaseLocale
	}
	first, _, _ := strings.Cut(header, ",")
	locale, _, _ := strings.Cut(strings.TrimSpace(first), ";")
	if locale == "" || locale == "*" {
		return i18n.BaseLocale
	}
	return locale
}
