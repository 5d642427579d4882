package store

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"skillswap_server/models"
)

func auditEntry(member, skill, action string, at time.Time) models.ClaimAuditEntry {
	return models.ClaimAuditEntry{
		MemberID: member,
		EntryID:  models.AuditEntryID(at, action),
		Skill:    skill,
		Action:   action,
		At:       at,
	}
}

func TestMemoryAudit_ListFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryAuditStore()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, auditEntry("alice", "go", models.AuditSubmit, base)))
	require.NoError(t, s.Append(ctx, auditEntry("alice", "rust", models.AuditSubmit, base.Add(time.Second))))
	require.NoError(t, s.Append(ctx, auditEntry("bob", "go", models.AuditSubmit, base.Add(2*time.Second))))
	require.NoError(t, s.Append(ctx, auditEntry("alice", "go", models.AuditApprove, base.Add(3*time.Second))))

	all, err := s.List(ctx, "alice", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	goOnly, err := s.List(ctx, "alice", " Go ")
	require.NoError(t, err)
	require.Len(t, goOnly, 2)
	assert.Equal(t, models.AuditSubmit, goOnly[0].Action)
	assert.Equal(t, models.AuditApprove, goOnly[1].Action)

	none, err := s.List(ctx, "carol", "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDynamoAudit_AppendAndList(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var stored []map[string]types.AttributeValue

	fake := &fakeDynamo{
		putItem: func(in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			assert.Equal(t, "attribute_not_exists(#entryId)", *in.ConditionExpression)
			for _, item := range stored {
				if item["entryId"].(*types.AttributeValueMemberS).Value == in.Item["entryId"].(*types.AttributeValueMemberS).Value {
					return nil, &types.ConditionalCheckFailedException{Item: item}
				}
			}
			stored = append(stored, in.Item)
			return &dynamodb.PutItemOutput{}, nil
		},
		query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			assert.True(t, *in.ScanIndexForward)
			return &dynamodb.QueryOutput{Items: stored}, nil
		},
	}
	s := NewDynamoAuditStore(&DynamoService{Client: fake, Log: zap.NewNop()}, "SkillClaimAudit")

	first := auditEntry("alice", "go", models.AuditSubmit, base)
	require.NoError(t, s.Append(ctx, first))
	require.NoError(t, s.Append(ctx, auditEntry("alice", "rust", models.AuditSubmit, base.Add(time.Second))))
	assert.ErrorIs(t, s.Append(ctx, first), models.ErrInvalidState)

	entries, err := s.List(ctx, "alice", "go")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var decoded models.ClaimAuditEntry
	require.NoError(t, attributevalue.UnmarshalMap(stored[0], &decoded))
	assert.Equal(t, first.EntryID, entries[0].EntryID)
	assert.True(t, decoded.At.Equal(base))
}
