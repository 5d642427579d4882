package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"skillswap_server/models"
	"skillswap_server/services"
)

// ClaimController serves the skill verification workflow.
type ClaimController struct {
	Verification *services.VerificationService
	Timeout      time.Duration
	Log          *zap.Logger
}

// NewClaimController initializes the claim controller
func NewClaimController(verification *services.VerificationService, timeout time.Duration, log *zap.Logger) *ClaimController {
	return &ClaimController{Verification: verification, Timeout: timeout, Log: log}
}

// Submit queues a claim for review. evidenceRef may be omitted.
func (c *ClaimController) Submit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EvidenceRef string `json:"evidenceRef" validate:"omitempty,max=2048"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	vars := mux.Vars(r)
	claim, err := c.Verification.SubmitClaim(ctx, ActorFrom(r.Context()), vars["memberId"], vars["skill"], req.EvidenceRef)
	if err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

type claimDecision func(ctx context.Context, actor models.Actor, memberID, skill string) (models.SkillClaim, error)

func (c *ClaimController) decide(w http.ResponseWriter, r *http.Request, decide claimDecision) {
	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	vars := mux.Vars(r)
	claim, err := decide(ctx, ActorFrom(r.Context()), vars["memberId"], vars["skill"])
	if err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// Approve accepts a pending claim.
func (c *ClaimController) Approve(w http.ResponseWriter, r *http.Request) {
	c.decide(w, r, c.Verification.Approve)
}

// Reject declines a pending claim.
func (c *ClaimController) Reject(w http.ResponseWriter, r *http.Request) {
	c.decide(w, r, c.Verification.Reject)
}

// Undo reverts an approved claim.
func (c *ClaimController) Undo(w http.ResponseWriter, r *http.Request) {
	c.decide(w, r, c.Verification.Undo)
}

// Pending lists the reviewer queue.
func (c *ClaimController) Pending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	pending, err := c.Verification.PendingClaims(ctx, ActorFrom(r.Context()))
	if err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

// History returns the audit trail of a claim.
func (c *ClaimController) History(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	vars := mux.Vars(r)
	entries, err := c.Verification.ClaimHistory(ctx, ActorFrom(r.Context()), vars["memberId"], vars["skill"])
	if err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
