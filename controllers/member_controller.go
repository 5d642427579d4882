package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"skillswap_server/models"
	"skillswap_server/services"
)

// MemberController serves member profiles, approval and matching.
type MemberController struct {
	Members      *services.MemberService
	Verification *services.VerificationService
	Matches      *services.MatchService
	Timeout      time.Duration
	Log          *zap.Logger
}

// NewMemberController initializes the member controller
func NewMemberController(members *services.MemberService, verification *services.VerificationService, matches *services.MatchService, timeout time.Duration, log *zap.Logger) *MemberController {
	return &MemberController{Members: members, Verification: verification, Matches: matches, Timeout: timeout, Log: log}
}

// Register creates the calling member's profile.
func (c *MemberController) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName     string   `json:"displayName" validate:"required,max=100"`
		PossessedSkills []string `json:"possessedSkills" validate:"max=50,dive,max=100"`
		WantedSkills    []string `json:"wantedSkills" validate:"max=50,dive,max=100"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	actor := ActorFrom(r.Context())
	m, err := c.Members.Register(ctx, actor.ID, req.DisplayName, req.PossessedSkills, req.WantedSkills)
	if err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// Get returns one member.
func (c *MemberController) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	m, err := c.Members.Get(ctx, mux.Vars(r)["memberId"])
	if err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Update applies a partial profile edit.
func (c *MemberController) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.MemberPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	m, err := c.Members.Update(ctx, ActorFrom(r.Context()), mux.Vars(r)["memberId"], patch)
	if err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Delete removes a member.
func (c *MemberController) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	memberID := mux.Vars(r)["memberId"]
	if err := c.Members.Remove(ctx, ActorFrom(r.Context()), memberID); err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Member deleted successfully", "memberId": memberID})
}

// SetApproval sets or clears the member-level approval flag.
func (c *MemberController) SetApproval(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Approved *bool `json:"approved" validate:"required"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	m, err := c.Verification.ApproveMember(ctx, ActorFrom(r.Context()), mux.Vars(r)["memberId"], *req.Approved)
	if err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListMatches lists the mutual matches of a member.
func (c *MemberController) ListMatches(w http.ResponseWriter, r *http.Request) {
	verifiedOnly := false
	if raw := r.URL.Query().Get("verifiedOnly"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(http.StatusBadRequest, "verifiedOnly must be a boolean"))
			return
		}
		verifiedOnly = v
	}
	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	matches, err := c.Matches.FindMatchesFor(ctx, mux.Vars(r)["memberId"], verifiedOnly)
	if err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}
