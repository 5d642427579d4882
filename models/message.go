package models

import "time"

// MessageKind separates user text from handshake system messages.
type MessageKind string

const (
	KindUser          MessageKind = "user"
	KindMatchRequest  MessageKind = "match_request"
	KindMatchApproved MessageKind = "match_approved"
	KindMatchRejected MessageKind = "match_rejected"
)

// System message texts
const (
	TextMatchRequest  = "Match request sent! Approve or reject below."
	TextMatchApproved = "Match request approved!"
	TextMatchRejected = "Match request rejected."
	NoMessagesYet     = "No messages yet"
)

// Message is immutable once appended.
type Message struct {
	ConversationID string      `dynamodbav:"conversationId" json:"conversationId"` // Partition Key
	Seq            int64       `dynamodbav:"seq" json:"seq"`                       // Sort Key, 1-based and gapless
	MessageID      string      `dynamodbav:"messageId" json:"messageId"`
	SenderID       string      `dynamodbav:"senderId" json:"senderId"`
	Text           string      `dynamodbav:"text" json:"text"`
	Timestamp      time.Time   `dynamodbav:"timestamp" json:"timestamp"`
	System         bool        `dynamodbav:"systemMessage" json:"systemMessage"`
	Kind           MessageKind `dynamodbav:"kind" json:"kind"`
}

// DecisionMessageKind returns the system message kind recording d.
func DecisionMessageKind(d Decision) (MessageKind, string) {
	if d == DecisionApprove {
		return KindMatchApproved, TextMatchApproved
	}
	return KindMatchRejected, TextMatchRejected
}
