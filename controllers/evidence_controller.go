package controllers

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"skillswap_server/models"
	"skillswap_server/services"
)

// EvidenceController hands out presigned URLs for claim evidence.
type EvidenceController struct {
	Evidence *services.EvidenceService
	Timeout  time.Duration
	Log      *zap.Logger
}

// NewEvidenceController initializes the evidence controller
func NewEvidenceController(evidence *services.EvidenceService, timeout time.Duration, log *zap.Logger) *EvidenceController {
	return &EvidenceController{Evidence: evidence, Timeout: timeout, Log: log}
}

// UploadURL presigns an upload for the caller's evidence file.
func (c *EvidenceController) UploadURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Skill    string `json:"skill" validate:"required"`
		FileName string `json:"fileName" validate:"required"`
		FileType string `json:"fileType"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	ticket, err := c.Evidence.UploadURL(ctx, ActorFrom(r.Context()).ID, req.Skill, req.FileName, req.FileType)
	if err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// ReadURL presigns a download. Members read their own evidence; reviewers read any.
func (c *EvidenceController) ReadURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EvidenceRef string `json:"evidenceRef" validate:"required"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	actor := ActorFrom(r.Context())
	owner, err := services.EvidenceOwner(req.EvidenceRef)
	if err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	if owner != actor.ID && !actor.IsReviewer() {
		writeError(w, c.Log, r, fmt.Errorf("evidence of '%s': %w", owner, models.ErrUnauthorized))
		return
	}
	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	url, err := c.Evidence.ReadURL(ctx, req.EvidenceRef)
	if err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
