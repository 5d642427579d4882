package store

import (
	"context"

	"skillswap_server/models"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoRatingStore writes ratings keyed by memberId and ratedBy, so a repeated rating from the
// same rater overwrites the earlier item.
type DynamoRatingStore struct {
	Dynamo *DynamoService
	Table  string
}

func NewDynamoRatingStore(dynamo *DynamoService, table string) *DynamoRatingStore {
	return &DynamoRatingStore{Dynamo: dynamo, Table: table}
}

func (s *DynamoRatingStore) Put(ctx context.Context, r models.Rating) error {
	return s.Dynamo.PutItem(ctx, s.Table, r, nil)
}

func (s *DynamoRatingStore) List(ctx context.Context, memberID string) ([]models.Rating, error) {
	ratings := []models.Rating{}
	err := s.Dynamo.QueryItemsWithOptions(ctx, s.Table, Expression{
		Expression: "#memberId = :member",
		Names:      map[string]string{"#memberId": "memberId"},
		Values:     map[string]types.AttributeValue{":member": &types.AttributeValueMemberS{Value: memberID}},
	}, 0, true, &ratings)
	if err != nil {
		return nil, err
	}
	return ratings, nil
}
