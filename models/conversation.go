package models

import (
	"sort"
	"strings"
	"time"
)

// HandshakeState is the state of the match request carried by a conversation.
type HandshakeState string

const (
	HandshakeIdle        HandshakeState = "idle"
	HandshakeRequestSent HandshakeState = "request_sent"
	HandshakeApproved    HandshakeState = "approved"
	HandshakeRejected    HandshakeState = "rejected"
)

// Decision is a responder's answer to a match request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool { return d == DecisionApprove || d == DecisionReject }

// State returns the handshake state the decision leads to.
func (d Decision) State() HandshakeState {
	if d == DecisionApprove {
		return HandshakeApproved
	}
	return HandshakeRejected
}

// ConversationIDSeparator joins the two sorted participant ids.
const ConversationIDSeparator = "_"

// ConversationID derives the canonical id for the pair; argument order does not matter.
func ConversationID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, ConversationIDSeparator)
}

// Conversation is the single channel between two members.
type Conversation struct {
	ConversationID          string         `dynamodbav:"conversationId" json:"conversationId"` // Partition Key
	Users                   []string       `dynamodbav:"users" json:"users"`                   // sorted pair
	MatchRequestOutstanding bool           `dynamodbav:"matchRequestOutstanding" json:"matchRequestOutstanding"`
	RequestState            HandshakeState `dynamodbav:"requestState,omitempty" json:"requestState"`
	RequesterID             string         `dynamodbav:"requesterId,omitempty" json:"requesterId,omitempty"`
	MessageCount            int64          `dynamodbav:"messageCount" json:"messageCount"` // seq of the last appended message
	LastMessageAt           time.Time      `dynamodbav:"lastMessageAt" json:"lastMessageAt"`
	CreatedAt               time.Time      `dynamodbav:"createdAt" json:"createdAt"`
}

// NewConversation builds the conversation between a and b.
func NewConversation(a, b string, now time.Time) Conversation {
	users := []string{a, b}
	sort.Strings(users)
	return Conversation{
		ConversationID: ConversationID(a, b),
		Users:          users,
		RequestState:   HandshakeIdle,
		CreatedAt:      now,
	}
}

// Normalize fills defaults for documents written before a field existed.
func (c Conversation) Normalize() Conversation {
	if c.RequestState == "" {
		if c.MatchRequestOutstanding {
			c.RequestState = HandshakeRequestSent
		} else {
			c.RequestState = HandshakeIdle
		}
	}
	return c
}

// HasParticipant reports whether id is one of the two members.
func (c Conversation) HasParticipant(id string) bool {
	for _, u := range c.Users {
		if u == id {
			return true
		}
	}
	return false
}

// Other returns the participant that is not id.
func (c Conversation) Other(id string) string {
	for _, u := range c.Users {
		if u != id {
			return u
		}
	}
	return ""
}

// ConversationSummary is one row of a member's chat list.
type ConversationSummary struct {
	ConversationID          string    `json:"conversationId"`
	PartnerID               string    `json:"partnerId"`
	PartnerName             string    `json:"partnerName"`
	PartnerFullyBooked      bool      `json:"partnerFullyBooked"`
	LastMessage             string    `json:"lastMessage"`
	LastMessageAt           time.Time `json:"lastMessageAt"`
	MatchRequestOutstanding bool      `json:"matchRequestOutstanding"`
}
