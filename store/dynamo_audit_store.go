package store

import (
	"context"
	"errors"
	"fmt"

	"skillswap_server/models"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAuditStore writes audit entries keyed by memberId and a time-ordered entryId.
type DynamoAuditStore struct {
	Dynamo *DynamoService
	Table  string
}

func NewDynamoAuditStore(dynamo *DynamoService, table string) *DynamoAuditStore {
	return &DynamoAuditStore{Dynamo: dynamo, Table: table}
}

func (s *DynamoAuditStore) Append(ctx context.Context, entry models.ClaimAuditEntry) error {
	err := s.Dynamo.PutItem(ctx, s.Table, entry, &Expression{
		Expression: "attribute_not_exists(#entryId)",
		Names:      map[string]string{"#entryId": "entryId"},
	})
	var cfe *ConditionFailedError
	if errors.As(err, &cfe) {
		return fmt.Errorf("audit entry %q already recorded: %w", entry.EntryID, models.ErrInvalidState)
	}
	return err
}

func (s *DynamoAuditStore) List(ctx context.Context, memberID, skill string) ([]models.ClaimAuditEntry, error) {
	var entries []models.ClaimAuditEntry
	err := s.Dynamo.QueryItemsWithOptions(ctx, s.Table, Expression{
		Expression: "#memberId = :member",
		Names:      map[string]string{"#memberId": "memberId"},
		Values:     map[string]types.AttributeValue{":member": &types.AttributeValueMemberS{Value: memberID}},
	}, 0, true, &entries)
	if err != nil {
		return nil, err
	}

	skill = models.NormalizeSkill(skill)
	if skill == "" {
		return entries, nil
	}
	out := entries[:0]
	for _, e := range entries {
		if e.Skill == skill {
			out = append(out, e)
		}
	}
	return out, nil
}
