package socket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	socketio "github.com/googollee/go-socket.io"
	"go.uber.org/zap"

	"skillswap_server/models"
)

// Event names
const (
	EventJoin       = "join"
	EventLeave      = "leave"
	EventNewMessage = "newMessage"
	EventError      = "error"
)

const namespace = "/"

// MessageSource checks membership and returns the backlog a client missed.
type MessageSource interface {
	Messages(ctx context.Context, conversationID, viewerID string, afterSeq int64, limit int) ([]models.Message, error)
}

// JoinRequest is the payload of a join event. AfterSeq is the last seq the client has seen.
type JoinRequest struct {
	ConversationID string `json:"conversationId"`
	MemberID       string `json:"memberId"`
	AfterSeq       int64  `json:"afterSeq"`
}

// Validate checks the fields a join needs.
func (j JoinRequest) Validate() error {
	if strings.TrimSpace(j.ConversationID) == "" || strings.TrimSpace(j.MemberID) == "" {
		return fmt.Errorf("conversationId and memberId are required: %w", models.ErrValidation)
	}
	if j.AfterSeq < 0 {
		return fmt.Errorf("afterSeq must not be negative: %w", models.ErrValidation)
	}
	return nil
}

// Hub fans appended messages out to the socket room of their conversation.
type Hub struct {
	Server  *socketio.Server
	Source  MessageSource
	Timeout time.Duration
	Log     *zap.Logger
}

// NewHub builds the socket server and registers its handlers. Source may be attached later,
// before Serve is called.
func NewHub(source MessageSource, timeout time.Duration, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	h := &Hub{Server: socketio.NewServer(nil), Source: source, Timeout: timeout, Log: log}

	h.Server.OnConnect(namespace, func(c socketio.Conn) error {
		h.Log.Debug("socket connected", zap.String("socket_id", c.ID()))
		return nil
	})
	h.Server.OnEvent(namespace, EventJoin, h.join)
	h.Server.OnEvent(namespace, EventLeave, func(c socketio.Conn, req JoinRequest) {
		c.Leave(req.ConversationID)
	})
	h.Server.OnError(namespace, func(c socketio.Conn, err error) {
		h.Log.Warn("socket error", zap.Error(err))
	})
	h.Server.OnDisconnect(namespace, func(c socketio.Conn, reason string) {
		h.Log.Debug("socket disconnected", zap.String("socket_id", c.ID()), zap.String("reason", reason))
	})
	return h
}

func (h *Hub) join(c socketio.Conn, req JoinRequest) {
	if err := req.Validate(); err != nil {
		c.Emit(EventError, err.Error())
		return
	}
	if h.Source == nil {
		c.Emit(EventError, "chat is not available")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.Timeout)
	defer cancel()

	backlog, err := h.Source.Messages(ctx, req.ConversationID, req.MemberID, req.AfterSeq, 0)
	if err != nil {
		h.Log.Info("socket join refused",
			zap.String("socket_id", c.ID()),
			zap.String("conversation_id", req.ConversationID),
			zap.String("member_id", req.MemberID),
			zap.Error(err))
		c.Emit(EventError, joinErrorText(err))
		return
	}

	c.Join(req.ConversationID)
	h.Log.Debug("socket joined conversation",
		zap.String("socket_id", c.ID()),
		zap.String("conversation_id", req.ConversationID),
		zap.Int("backlog", len(backlog)))
	for _, msg := range backlog {
		c.Emit(EventNewMessage, msg)
	}
}

// NotifyMessage broadcasts msg to everyone in its conversation room.
func (h *Hub) NotifyMessage(_ context.Context, msg models.Message) error {
	if !h.Server.BroadcastToRoom(namespace, msg.ConversationID, EventNewMessage, msg) {
		return fmt.Errorf("broadcast to '%s': namespace %q not registered", msg.ConversationID, namespace)
	}
	return nil
}

func joinErrorText(err error) string {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return "conversation not found"
	case errors.Is(err, models.ErrUnauthorized):
		return "not a participant"
	default:
		return "unable to join conversation"
	}
}
