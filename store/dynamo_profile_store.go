package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"skillswap_server/models"
	"skillswap_server/utils"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// DynamoProfileStore keeps one item per member, keyed by memberId. Whole-document writes are
// guarded by the version attribute; partner links use a contains() condition so they apply once.
type DynamoProfileStore struct {
	Dynamo       *DynamoService
	Table        string
	PollInterval time.Duration
	Log          *zap.Logger
	now          func() time.Time
}

// NewDynamoProfileStore wires a profile store onto table.
func NewDynamoProfileStore(dynamo *DynamoService, table string, pollInterval time.Duration, log *zap.Logger) *DynamoProfileStore {
	return &DynamoProfileStore{Dynamo: dynamo, Table: table, PollInterval: pollInterval, Log: log, now: time.Now}
}

func (s *DynamoProfileStore) Create(ctx context.Context, m models.Member) (models.Member, error) {
	now := s.now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	m.Version = 1
	doc := m.Document()

	err := s.Dynamo.PutItem(ctx, s.Table, doc, &Expression{
		Expression: "attribute_not_exists(#memberId)",
		Names:      map[string]string{"#memberId": "memberId"},
	})
	var cfe *ConditionFailedError
	if errors.As(err, &cfe) {
		return models.Member{}, fmt.Errorf("member %q already exists: %w", m.MemberID, models.ErrInvalidState)
	}
	if err != nil {
		return models.Member{}, err
	}
	return models.FromDocument(doc), nil
}

func (s *DynamoProfileStore) Get(ctx context.Context, memberID string) (models.Member, error) {
	var doc models.MemberDocument
	if err := s.Dynamo.GetItem(ctx, s.Table, stringKey("memberId", memberID), &doc); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.Member{}, fmt.Errorf("member %q: %w", memberID, models.ErrNotFound)
		}
		return models.Member{}, err
	}
	return models.FromDocument(doc), nil
}

func (s *DynamoProfileStore) Set(ctx context.Context, memberID string, patch models.MemberPatch) (models.Member, error) {
	fields := map[string]interface{}{}
	if patch.DisplayName != nil {
		fields["displayName"] = *patch.DisplayName
	}
	if patch.PossessedSkills != nil {
		fields["possessedSkills"] = models.NormalizeSkills(patch.PossessedSkills)
	}
	if patch.WantedSkills != nil {
		fields["wantedSkills"] = models.NormalizeSkills(patch.WantedSkills)
	}
	if patch.Active != nil {
		fields["active"] = *patch.Active
	}
	fields["updatedAt"] = s.now().UTC().Format(time.RFC3339Nano)

	update := Expression{
		Expression: "SET #version = #version + :one",
		Names:      map[string]string{"#version": "version", "#memberId": "memberId"},
		Values:     map[string]types.AttributeValue{":one": &types.AttributeValueMemberN{Value: "1"}},
	}
	for k, v := range fields {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return models.Member{}, fmt.Errorf("marshal %s: %w", k, err)
		}
		update.Expression += fmt.Sprintf(", #%s = :%s", k, k)
		update.Names["#"+k] = k
		update.Values[":"+k] = av
	}

	attrs, err := s.Dynamo.UpdateItem(ctx, s.Table, stringKey("memberId", memberID), update, "attribute_exists(#memberId)")
	var cfe *ConditionFailedError
	if errors.As(err, &cfe) {
		return models.Member{}, fmt.Errorf("member %q: %w", memberID, models.ErrNotFound)
	}
	if err != nil {
		return models.Member{}, err
	}
	var doc models.MemberDocument
	if err := attributevalue.UnmarshalMap(attrs, &doc); err != nil {
		return models.Member{}, fmt.Errorf("unmarshal member %q: %w", memberID, err)
	}
	return models.FromDocument(doc), nil
}

func (s *DynamoProfileStore) Replace(ctx context.Context, m models.Member, expectedVersion int64) (models.Member, error) {
	m.Version = expectedVersion + 1
	m.UpdatedAt = s.now().UTC()
	doc := m.Document()

	err := s.Dynamo.PutItem(ctx, s.Table, doc, &Expression{
		Expression: "#version = :expected",
		Names:      map[string]string{"#version": "version"},
		Values: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: fmt.Sprint(expectedVersion)},
		},
	})
	var cfe *ConditionFailedError
	if errors.As(err, &cfe) {
		if cfe.Item == nil {
			return models.Member{}, fmt.Errorf("member %q: %w", m.MemberID, models.ErrNotFound)
		}
		return models.Member{}, fmt.Errorf("member %q changed concurrently (version %d, expected %d): %w",
			m.MemberID, utils.ExtractInt64(cfe.Item, "version"), expectedVersion, models.ErrInvalidState)
	}
	if err != nil {
		return models.Member{}, err
	}
	return models.FromDocument(doc), nil
}

func (s *DynamoProfileStore) AddPartner(ctx context.Context, ownerID, partnerID string) (bool, error) {
	update := Expression{
		Expression: "SET #partnerIds = list_append(if_not_exists(#partnerIds, :empty), :partner), " +
			"#matchedCount = if_not_exists(#matchedCount, :zero) + :one, " +
			"#version = #version + :one, #updatedAt = :now",
		Names: map[string]string{
			"#memberId":     "memberId",
			"#partnerIds":   "partnerIds",
			"#matchedCount": "matchedCount",
			"#version":      "version",
			"#updatedAt":    "updatedAt",
		},
		Values: map[string]types.AttributeValue{
			":empty":   &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":partner": &types.AttributeValueMemberL{Value: []types.AttributeValue{&types.AttributeValueMemberS{Value: partnerID}}},
			":pid":     &types.AttributeValueMemberS{Value: partnerID},
			":zero":    &types.AttributeValueMemberN{Value: "0"},
			":one":     &types.AttributeValueMemberN{Value: "1"},
			":now":     &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339Nano)},
		},
	}
	condition := "attribute_exists(#memberId) AND (attribute_not_exists(#partnerIds) OR NOT contains(#partnerIds, :pid))"

	_, err := s.Dynamo.UpdateItem(ctx, s.Table, stringKey("memberId", ownerID), update, condition)
	var cfe *ConditionFailedError
	if errors.As(err, &cfe) {
		if cfe.Item == nil {
			return false, fmt.Errorf("member %q: %w", ownerID, models.ErrNotFound)
		}
		if utils.Contains(cfe.Item, "partnerIds", partnerID) {
			return false, nil
		}
		return false, fmt.Errorf("link %s -> %s: %w", ownerID, partnerID, models.ErrInvalidState)
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *DynamoProfileStore) QueryApproved(ctx context.Context) ([]models.Member, error) {
	return s.scan(ctx, &Expression{
		Expression: "#approved = :true",
		Names:      map[string]string{"#approved": "approved"},
		Values:     map[string]types.AttributeValue{":true": &types.AttributeValueMemberBOOL{Value: true}},
	})
}

func (s *DynamoProfileStore) List(ctx context.Context) ([]models.Member, error) {
	return s.scan(ctx, nil)
}

func (s *DynamoProfileStore) Delete(ctx context.Context, memberID string) error {
	err := s.Dynamo.DeleteItem(ctx, s.Table, stringKey("memberId", memberID), "attribute_exists(memberId)")
	var cfe *ConditionFailedError
	if errors.As(err, &cfe) {
		return fmt.Errorf("member %q: %w", memberID, models.ErrNotFound)
	}
	return err
}

// SubscribeApproved polls the approved population and emits the difference between scans.
// A failed poll is logged and retried on the next tick; the feed itself stays open.
func (s *DynamoProfileStore) SubscribeApproved(ctx context.Context) (<-chan MemberEvent, error) {
	snapshot, err := s.QueryApproved(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan MemberEvent)
	go func() {
		defer close(out)

		seen := make(map[string]models.Member, len(snapshot))
		for _, m := range snapshot {
			seen[m.MemberID] = m
			if !send(ctx, out, MemberEvent{Member: m, Snapshot: true}) {
				return
			}
		}

		ticker := time.NewTicker(s.interval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			current, err := s.QueryApproved(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.logger().Warn("approved member poll failed", zap.Error(err))
				}
				continue
			}
			for _, ev := range diffMembers(seen, current) {
				if !send(ctx, out, ev) {
					return
				}
			}
		}
	}()
	return out, nil
}

// diffMembers updates seen to current and returns the events that get a subscriber there.
func diffMembers(seen map[string]models.Member, current []models.Member) []MemberEvent {
	var events []MemberEvent
	present := make(map[string]struct{}, len(current))
	for _, m := range current {
		present[m.MemberID] = struct{}{}
		if old, ok := seen[m.MemberID]; ok && old.Version == m.Version {
			continue
		}
		seen[m.MemberID] = m
		events = append(events, MemberEvent{Member: m})
	}
	var removed []string
	for id := range seen {
		if _, ok := present[id]; !ok {
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	for _, id := range removed {
		events = append(events, MemberEvent{Member: seen[id], Removed: true})
		delete(seen, id)
	}
	return events
}

func (s *DynamoProfileStore) scan(ctx context.Context, filter *Expression) ([]models.Member, error) {
	var docs []models.MemberDocument
	if err := s.Dynamo.ScanAll(ctx, s.Table, filter, &docs); err != nil {
		return nil, err
	}
	out := make([]models.Member, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.FromDocument(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out, nil
}

func (s *DynamoProfileStore) interval() time.Duration {
	if s.PollInterval <= 0 {
		return 2 * time.Second
	}
	return s.PollInterval
}

func (s *DynamoProfileStore) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
