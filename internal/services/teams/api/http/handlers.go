// Package httpapi exposes the formation engine over a JSON HTTP API. Routes
// use method+path patterns on the standard mux; a bearer-token middleware
// resolves the acting user before each authenticated handler runs.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	apperrors "github.com/improperboy/Hackmate-sub002/internal/platform/errors"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/domain/joinrequest"
	"github.com/improperboy/Hackmate-sub002/internal/services/teams/engine"
)

// Handler serves the formation JSON API.
type Handler struct {
	engine    *engine.Engine
	jwtSecret []byte
	logger    *log.Logger
}

// New creates the API handler. logger defaults to the standard logger.
func New(eng *engine.Engine, jwtSecret []byte, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{engine: eng, jwtSecret: jwtSecret, logger: logger}
}

// Routes returns the fully wired mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.handleHealth)

	mux.HandleFunc("POST /v1/teams", h.authenticate(h.handleCreateTeam))
	mux.HandleFunc("GET /v1/teams", h.authenticate(h.handleListTeams))
	mux.HandleFunc("GET /v1/teams/pending", h.authenticate(h.handleListPendingTeams))
	mux.HandleFunc("GET /v1/teams/{id}", h.authenticate(h.handleGetTeam))
	mux.HandleFunc("PATCH /v1/teams/{id}", h.authenticate(h.handleUpdateTeam))
	mux.HandleFunc("DELETE /v1/teams/{id}", h.authenticate(h.handleDeleteTeam))
	mux.HandleFunc("POST /v1/teams/{id}/approve", h.authenticate(h.handleApproveTeam))
	mux.HandleFunc("POST /v1/teams/{id}/reject", h.authenticate(h.handleRejectTeam))

	mux.HandleFunc("GET /v1/teams/{id}/members", h.authenticate(h.handleListMembers))
	mux.HandleFunc("DELETE /v1/teams/{id}/members/{userID}", h.authenticate(h.handleRemoveMember))
	mux.HandleFunc("POST /v1/teams/{id}/leave", h.authenticate(h.handleLeaveTeam))
	mux.HandleFunc("GET /v1/membership", h.authenticate(h.handleOwnMembership))

	mux.HandleFunc("POST /v1/teams/{id}/requests", h.authenticate(h.handleSubmitJoinRequest))
	mux.HandleFunc("GET /v1/teams/{id}/requests", h.authenticate(h.handleListTeamRequests))
	mux.HandleFunc("GET /v1/requests", h.authenticate(h.handleOwnRequests))
	mux.HandleFunc("POST /v1/requests/{id}/approve", h.authenticate(h.handleApproveJoinRequest))
	mux.HandleFunc("POST /v1/requests/{id}/reject", h.authenticate(h.handleRejectJoinRequest))
	mux.HandleFunc("DELETE /v1/requests/{id}", h.authenticate(h.handleWithdrawJoinRequest))

	mux.HandleFunc("POST /v1/teams/{id}/invitations", h.authenticate(h.handleInviteUser))
	mux.HandleFunc("GET /v1/teams/{id}/invitations", h.authenticate(h.handleListTeamInvitations))
	mux.HandleFunc("GET /v1/invitations", h.authenticate(h.handleOwnInvitations))
	mux.HandleFunc("POST /v1/invitations/{id}/accept", h.authenticate(h.handleAcceptInvitation))
	mux.HandleFunc("POST /v1/invitations/{id}/reject", h.authenticate(h.handleRejectInvitation))

	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, r, apperrors.Wrap(apperrors.CodeValidation, "malformed request body", err))
		return false
	}
	return true
}

type createTeamRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var body createTeamRequest
	if !h.decode(w, r, &body) {
		return
	}
	created, err := h.engine.CreateTeam(r.Context(), actorFrom(r), engine.CreateTeamInput{
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, renderTeam(created))
}

func (h *Handler) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	t, err := h.engine.GetTeam(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, renderTeam(t))
}

type teamPageResponse struct {
	Teams         []teamResponse `json:"teams"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

func (h *Handler) handleListTeams(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	pageSize, _ := strconv.Atoi(query.Get("page_size"))
	page, err := h.engine.ListTeams(r.Context(), actorFrom(r),
		query.Get("filter"), pageSize, query.Get("page_token"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, teamPageResponse{
		Teams:         renderTeams(page.Teams),
		NextPageToken: page.NextPageToken,
	})
}

func (h *Handler) handleListPendingTeams(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	pageSize, _ := strconv.Atoi(query.Get("page_size"))
	page, err := h.engine.ListPendingTeams(r.Context(), actorFrom(r), pageSize, query.Get("page_token"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, teamPageResponse{
		Teams:         renderTeams(page.Teams),
		NextPageToken: page.NextPageToken,
	})
}

type updateTeamRequest struct {
	Description string `json:"description"`
}

func (h *Handler) handleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	var body updateTeamRequest
	if !h.decode(w, r, &body) {
		return
	}
	t, err := h.engine.UpdateTeam(r.Context(), actorFrom(r), r.PathValue("id"), body.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, renderTeam(t))
}

func (h *Handler) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteTeam(r.Context(), actorFrom(r), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusNoContent, nil)
}

type approveTeamRequest struct {
	LocationRef string `json:"location_ref"`
}

func (h *Handler) handleApproveTeam(w http.ResponseWriter, r *http.Request) {
	var body approveTeamRequest
	if !h.decode(w, r, &body) {
		return
	}
	t, err := h.engine.ApproveTeam(r.Context(), actorFrom(r), r.PathValue("id"), body.LocationRef)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, renderTeam(t))
}

func (h *Handler) handleRejectTeam(w http.ResponseWriter, r *http.Request) {
	t, err := h.engine.RejectTeam(r.Context(), actorFrom(r), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, renderTeam(t))
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.engine.ListMembers(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]membershipResponse, 0, len(members))
	for _, m := range members {
		out = append(out, renderMembership(m))
	}
	h.writeJSON(w, http.StatusOK, map[string][]membershipResponse{"members": out})
}

func (h *Handler) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	err := h.engine.RemoveMember(r.Context(), actorFrom(r), r.PathValue("id"), r.PathValue("userID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleLeaveTeam(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.LeaveTeam(r.Context(), actorFrom(r), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleOwnMembership(w http.ResponseWriter, r *http.Request) {
	m, err := h.engine.MembershipOf(r.Context(), actorFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, renderMembership(m))
}

type submitRequestRequest struct {
	Message string `json:"message"`
}

func (h *Handler) handleSubmitJoinRequest(w http.ResponseWriter, r *http.Request) {
	var body submitRequestRequest
	if !h.decode(w, r, &body) {
		return
	}
	req, err := h.engine.SubmitJoinRequest(r.Context(), actorFrom(r), r.PathValue("id"), body.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, renderJoinRequest(req))
}

func (h *Handler) handleListTeamRequests(w http.ResponseWriter, r *http.Request) {
	status := joinrequest.StatusFromLabel(r.URL.Query().Get("status"))
	requests, err := h.engine.ListJoinRequestsByTeam(r.Context(), actorFrom(r), r.PathValue("id"), status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]joinRequestResponse, 0, len(requests))
	for _, req := range requests {
		out = append(out, renderJoinRequest(req))
	}
	h.writeJSON(w, http.StatusOK, map[string][]joinRequestResponse{"requests": out})
}

func (h *Handler) handleOwnRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.engine.ListOwnJoinRequests(r.Context(), actorFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]joinRequestResponse, 0, len(requests))
	for _, req := range requests {
		out = append(out, renderJoinRequest(req))
	}
	h.writeJSON(w, http.StatusOK, map[string][]joinRequestResponse{"requests": out})
}

func (h *Handler) handleApproveJoinRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.engine.ApproveJoinRequest(r.Context(), actorFrom(r), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, renderJoinRequest(req))
}

func (h *Handler) handleRejectJoinRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.engine.RejectJoinRequest(r.Context(), actorFrom(r), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, renderJoinRequest(req))
}

func (h *Handler) handleWithdrawJoinRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.WithdrawJoinRequest(r.Context(), actorFrom(r), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusNoContent, nil)
}

type inviteUserRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

func (h *Handler) handleInviteUser(w http.ResponseWriter, r *http.Request) {
	var body inviteUserRequest
	if !h.decode(w, r, &body) {
		return
	}
	inv, err := h.engine.InviteUser(r.Context(), actorFrom(r), r.PathValue("id"), body.UserID, body.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, renderInvitation(inv))
}

func (h *Handler) handleListTeamInvitations(w http.ResponseWriter, r *http.Request) {
	invitations, err := h.engine.ListTeamInvitations(r.Context(), actorFrom(r), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]invitationResponse, 0, len(invitations))
	for _, inv := range invitations {
		out = append(out, renderInvitation(inv))
	}
	h.writeJSON(w, http.StatusOK, map[string][]invitationResponse{"invitations": out})
}

func (h *Handler) handleOwnInvitations(w http.ResponseWriter, r *http.Request) {
	invitations, err := h.engine.ListOwnInvitations(r.Context(), actorFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]invitationResponse, 0, len(invitations))
	for _, inv := range invitations {
		out = append(out, renderInvitation(inv))
	}
	h.writeJSON(w, http.StatusOK, map[string][]invitationResponse{"invitations": out})
}

func (h *Handler) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	inv, err := h.engine.AcceptInvitation(r.Context(), actorFrom(r), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, renderInvitation(inv))
}

func (h *Handler) handleRejectInvitation(w http.ResponseWriter, r *http.Request) {
	inv, err := h.engine.RejectInvitation(r.Context(), actorFrom(r), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, renderInvitation(inv))
}
