package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"skillswap_server/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxAppendAttempts bounds the optimistic seq allocation loop. Losing the race only means another
// message took the next seq; it is not a state-machine failure.
const maxAppendAttempts = 5

// DynamoConversationStore keeps conversation items in one table and messages in another
// (pk conversationId, sk seq). Every append is a transaction that bumps messageCount on the
// conversation under a condition and puts the message, so seq is gapless and the handshake flag
// changes together with its system message.
type DynamoConversationStore struct {
	Dynamo             *DynamoService
	ConversationsTable string
	MessagesTable      string
	PollInterval       time.Duration
	Log                *zap.Logger
	now                func() time.Time
}

// NewDynamoConversationStore wires a conversation store onto the two tables.
func NewDynamoConversationStore(dynamo *DynamoService, conversationsTable, messagesTable string, pollInterval time.Duration, log *zap.Logger) *DynamoConversationStore {
	return &DynamoConversationStore{
		Dynamo:             dynamo,
		ConversationsTable: conversationsTable,
		MessagesTable:      messagesTable,
		PollInterval:       pollInterval,
		Log:                log,
		now:                time.Now,
	}
}

func (s *DynamoConversationStore) GetOrCreate(ctx context.Context, a, b string) (models.Conversation, error) {
	if a == "" || b == "" || a == b {
		return models.Conversation{}, fmt.Errorf("conversation needs two distinct members: %w", models.ErrValidation)
	}
	conv := models.NewConversation(a, b, s.now().UTC())
	err := s.Dynamo.PutItem(ctx, s.ConversationsTable, conv, &Expression{
		Expression: "attribute_not_exists(#conversationId)",
		Names:      map[string]string{"#conversationId": "conversationId"},
	})
	var cfe *ConditionFailedError
	if errors.As(err, &cfe) {
		return s.Get(ctx, conv.ConversationID)
	}
	if err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

func (s *DynamoConversationStore) Get(ctx context.Context, conversationID string) (models.Conversation, error) {
	var conv models.Conversation
	if err := s.Dynamo.GetItem(ctx, s.ConversationsTable, stringKey("conversationId", conversationID), &conv); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.Conversation{}, fmt.Errorf("conversation %q: %w", conversationID, models.ErrNotFound)
		}
		return models.Conversation{}, err
	}
	return conv.Normalize(), nil
}

func (s *DynamoConversationStore) ListForMember(ctx context.Context, memberID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := s.Dynamo.ScanAll(ctx, s.ConversationsTable, &Expression{
		Expression: "contains(#users, :member)",
		Names:      map[string]string{"#users": "users"},
		Values:     map[string]types.AttributeValue{":member": &types.AttributeValueMemberS{Value: memberID}},
	}, &convs)
	if err != nil {
		return nil, err
	}
	for i := range convs {
		convs[i] = convs[i].Normalize()
	}
	sort.Slice(convs, func(i, j int) bool { return convs[i].ConversationID < convs[j].ConversationID })
	return convs, nil
}

func (s *DynamoConversationStore) AppendMessage(ctx context.Context, conversationID string, msg models.Message) (models.Message, error) {
	_, m, err := s.appendTx(ctx, conversationID, msg, convMutation{})
	return m, err
}

func (s *DynamoConversationStore) Messages(ctx context.Context, conversationID string, afterSeq int64, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := s.Dynamo.QueryItemsWithOptions(ctx, s.MessagesTable, Expression{
		Expression: "#conversationId = :id AND #seq > :after",
		Names:      map[string]string{"#conversationId": "conversationId", "#seq": "seq"},
		Values: map[string]types.AttributeValue{
			":id":    &types.AttributeValueMemberS{Value: conversationID},
			":after": &types.AttributeValueMemberN{Value: fmt.Sprint(afterSeq)},
		},
	}, int32(limit), true, &msgs)
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *DynamoConversationStore) LastMessage(ctx context.Context, conversationID string) (*models.Message, error) {
	var msgs []models.Message
	err := s.Dynamo.QueryItemsWithOptions(ctx, s.MessagesTable, Expression{
		Expression: "#conversationId = :id",
		Names:      map[string]string{"#conversationId": "conversationId"},
		Values:     map[string]types.AttributeValue{":id": &types.AttributeValueMemberS{Value: conversationID}},
	}, 1, false, &msgs)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

// Subscribe polls the message table for seq > last seen. The first poll runs immediately and
// doubles as the snapshot.
func (s *DynamoConversationStore) Subscribe(ctx context.Context, conversationID string, afterSeq int64) (<-chan models.Message, error) {
	if _, err := s.Get(ctx, conversationID); err != nil {
		return nil, err
	}

	out := make(chan models.Message)
	go func() {
		defer close(out)

		last := afterSeq
		ticker := time.NewTicker(s.interval())
		defer ticker.Stop()
		for {
			msgs, err := s.Messages(ctx, conversationID, last, 0)
			if err != nil && ctx.Err() == nil {
				s.logger().Warn("message poll failed",
					zap.String("conversation_id", conversationID),
					zap.Error(err))
			}
			for _, m := range msgs {
				if !send(ctx, out, m) {
					return
				}
				last = m.Seq
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out, nil
}

func (s *DynamoConversationStore) OpenRequest(ctx context.Context, conversationID, requesterID string, announcement models.Message) (models.Conversation, models.Message, error) {
	return s.appendTx(ctx, conversationID, announcement, convMutation{
		check: func(c models.Conversation) error {
			if c.MatchRequestOutstanding {
				return models.ErrAlreadyOutstanding
			}
			return nil
		},
		set: []string{
			"#outstanding = :true",
			"#requestState = :sent",
			"#requesterId = :requester",
		},
		condition: []string{"#outstanding = :false"},
		names: map[string]string{
			"#outstanding":  "matchRequestOutstanding",
			"#requestState": "requestState",
			"#requesterId":  "requesterId",
		},
		values: map[string]types.AttributeValue{
			":true":      &types.AttributeValueMemberBOOL{Value: true},
			":false":     &types.AttributeValueMemberBOOL{Value: false},
			":sent":      &types.AttributeValueMemberS{Value: string(models.HandshakeRequestSent)},
			":requester": &types.AttributeValueMemberS{Value: requesterID},
		},
		apply: func(c *models.Conversation) {
			c.MatchRequestOutstanding = true
			c.RequestState = models.HandshakeRequestSent
			c.RequesterID = requesterID
		},
	})
}

func (s *DynamoConversationStore) RecordDecision(ctx context.Context, conversationID string, decision models.Decision, msg models.Message, resetOutstanding bool) (models.Conversation, models.Message, error) {
	mut := convMutation{
		check: func(c models.Conversation) error {
			if c.RequestState != models.HandshakeRequestSent {
				return fmt.Errorf("conversation %q is %s: %w", conversationID, c.RequestState, models.ErrInvalidState)
			}
			return nil
		},
		set:       []string{"#requestState = :decided"},
		condition: []string{"#requestState = :sent"},
		names:     map[string]string{"#requestState": "requestState"},
		values: map[string]types.AttributeValue{
			":sent":    &types.AttributeValueMemberS{Value: string(models.HandshakeRequestSent)},
			":decided": &types.AttributeValueMemberS{Value: string(decision.State())},
		},
		apply: func(c *models.Conversation) {
			c.RequestState = decision.State()
			if resetOutstanding {
				c.MatchRequestOutstanding = false
			}
		},
	}
	if resetOutstanding {
		mut.set = append(mut.set, "#outstanding = :false")
		mut.names["#outstanding"] = "matchRequestOutstanding"
		mut.values[":false"] = &types.AttributeValueMemberBOOL{Value: false}
	}
	return s.appendTx(ctx, conversationID, msg, mut)
}

// convMutation describes conversation changes that must land together with an appended message.
type convMutation struct {
	check     func(models.Conversation) error
	set       []string
	condition []string
	names     map[string]string
	values    map[string]types.AttributeValue
	apply     func(*models.Conversation)
}

func (s *DynamoConversationStore) appendTx(ctx context.Context, conversationID string, msg models.Message, mut convMutation) (models.Conversation, models.Message, error) {
	if msg.MessageID == "" {
		msg.MessageID = uuid.NewString()
	}

	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		conv, err := s.Get(ctx, conversationID)
		if err != nil {
			return models.Conversation{}, models.Message{}, err
		}
		if mut.check != nil {
			if err := mut.check(conv); err != nil {
				return conv, models.Message{}, err
			}
		}

		ts := s.now().UTC()
		if ts.Before(conv.LastMessageAt) {
			ts = conv.LastMessageAt
		}
		m := msg
		m.ConversationID = conversationID
		m.Seq = conv.MessageCount + 1
		m.Timestamp = ts

		item, err := attributevalue.MarshalMap(m)
		if err != nil {
			return conv, models.Message{}, fmt.Errorf("marshal message: %w", err)
		}
		tsValue, err := attributevalue.Marshal(ts)
		if err != nil {
			return conv, models.Message{}, fmt.Errorf("marshal timestamp: %w", err)
		}

		names := map[string]string{"#messageCount": "messageCount", "#lastMessageAt": "lastMessageAt"}
		values := map[string]types.AttributeValue{
			":cur":  &types.AttributeValueMemberN{Value: fmt.Sprint(conv.MessageCount)},
			":next": &types.AttributeValueMemberN{Value: fmt.Sprint(m.Seq)},
			":ts":   tsValue,
		}
		for k, v := range mut.names {
			names[k] = v
		}
		for k, v := range mut.values {
			values[k] = v
		}
		set := append([]string{"#messageCount = :next", "#lastMessageAt = :ts"}, mut.set...)
		cond := append([]string{"#messageCount = :cur"}, mut.condition...)

		err = s.Dynamo.TransactWrite(ctx, []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName:                 aws.String(s.ConversationsTable),
					Key:                       stringKey("conversationId", conversationID),
					UpdateExpression:          aws.String("SET " + strings.Join(set, ", ")),
					ConditionExpression:       aws.String(strings.Join(cond, " AND ")),
					ExpressionAttributeNames:  names,
					ExpressionAttributeValues: values,
				},
			},
			{
				Put: &types.Put{
					TableName:                aws.String(s.MessagesTable),
					Item:                     item,
					ConditionExpression:      aws.String("attribute_not_exists(#seq)"),
					ExpressionAttributeNames: map[string]string{"#seq": "seq"},
				},
			},
		})
		var cfe *ConditionFailedError
		if errors.As(err, &cfe) {
			// Someone else appended or changed the handshake first; re-read and re-check.
			s.logger().Debug("conversation append contended",
				zap.String("conversation_id", conversationID),
				zap.Int("attempt", attempt),
				zap.Bool("conversation_changed", cfe.FailedAt(0)),
				zap.Bool("seq_taken", cfe.FailedAt(1)))
			continue
		}
		if err != nil {
			return conv, models.Message{}, err
		}

		conv.MessageCount = m.Seq
		conv.LastMessageAt = ts
		if mut.apply != nil {
			mut.apply(&conv)
		}
		return conv, m, nil
	}
	return models.Conversation{}, models.Message{}, fmt.Errorf("conversation %q: append contended %d times: %w",
		conversationID, maxAppendAttempts, models.ErrStoreUnavailable)
}

func (s *DynamoConversationStore) interval() time.Duration {
	if s.PollInterval <= 0 {
		return 2 * time.Second
	}
	return s.PollInterval
}

func (s *DynamoConversationStore) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
