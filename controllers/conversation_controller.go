package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"skillswap_server/models"
	"skillswap_server/services"
)

// ConversationController serves chat and the match handshake.
type ConversationController struct {
	Chat      *services.ChatService
	Handshake *services.HandshakeService
	Timeout   time.Duration
	Log       *zap.Logger
}

// NewConversationController initializes the conversation controller
func NewConversationController(chat *services.ChatService, handshake *services.HandshakeService, timeout time.Duration, log *zap.Logger) *ConversationController {
	return &ConversationController{Chat: chat, Handshake: handshake, Timeout: timeout, Log: log}
}

// Connect opens (or returns) the conversation with another member.
func (c *ConversationController) Connect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PartnerID string `json:"partnerId" validate:"required"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	conv, err := c.Chat.Connect(ctx, ActorFrom(r.Context()).ID, req.PartnerID)
	if err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// List returns the chat list of the caller, or of memberId for reviewers.
func (c *ConversationController) List(w http.ResponseWriter, r *http.Request) {
	actor := ActorFrom(r.Context())
	memberID := r.URL.Query().Get("memberId")
	if memberID == "" {
		memberID = actor.ID
	}
	if memberID != actor.ID && !actor.IsReviewer() {
		writeError(w, c.Log, r, models.ErrUnauthorized)
		return
	}
	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	summaries, err := c.Chat.ListConversations(ctx, memberID)
	if err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// Messages returns messages after afterSeq (default 0), at most limit (default 50).
func (c *ConversationController) Messages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	afterSeq, err := strconv.ParseInt(query.Get("afterSeq"), 10, 64)
	if err != nil || afterSeq < 0 {
		afterSeq = 0
	}
	limit, err := strconv.Atoi(query.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	msgs, err := c.Chat.Messages(ctx, mux.Vars(r)["conversationId"], ActorFrom(r.Context()).ID, afterSeq, limit)
	if err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// SendMessage appends a user message.
func (c *ConversationController) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text" validate:"required,max=4000"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	msg, err := c.Chat.SendMessage(ctx, mux.Vars(r)["conversationId"], ActorFrom(r.Context()).ID, req.Text)
	if err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// MatchRequest sends a match request. An outstanding request is reported as a notice, not an
// error.
func (c *ConversationController) MatchRequest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	msg, err := c.Handshake.SendMatchRequest(ctx, mux.Vars(r)["conversationId"], ActorFrom(r.Context()).ID)
	if errors.Is(err, models.ErrAlreadyOutstanding) {
		writeJSON(w, http.StatusOK, map[string]string{"notice": "A match request is already pending."})
		return
	}
	if err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// MatchResponse approves or rejects the open match request.
func (c *ConversationController) MatchResponse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Decision string `json:"decision" validate:"required,oneof=approve reject"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	ctx, cancel := withTimeout(r, c.Timeout)
	defer cancel()

	result, err := c.Handshake.Respond(ctx, mux.Vars(r)["conversationId"], ActorFrom(r.Context()).ID, models.Decision(req.Decision))
	if err != nil {
		writeError(w, c.Log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
