package store

import (
	"context"
	"errors"
	"fmt"

	"skillswap_server/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// DynamoAPI is the subset of *dynamodb.Client the stores use.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// ConditionFailedError is returned when DynamoDB rejected a write because its condition did not
// hold. Item is the stored item at the time of the check (nil when it did not exist). For
// transactions Reasons holds one cancellation code per write, in request order.
type ConditionFailedError struct {
	Item    map[string]types.AttributeValue
	Reasons []string
}

func (e *ConditionFailedError) Error() string {
	if len(e.Reasons) > 0 {
		return fmt.Sprintf("conditional check failed: %v", e.Reasons)
	}
	return "conditional check failed"
}

// FailedAt reports whether the transaction write at index i failed its condition.
func (e *ConditionFailedError) FailedAt(i int) bool {
	return i < len(e.Reasons) && e.Reasons[i] == "ConditionalCheckFailed"
}

// Expression bundles the pieces of a DynamoDB expression.
type Expression struct {
	Expression string
	Names      map[string]string
	Values     map[string]types.AttributeValue
}

// DynamoService wraps the DynamoDB client and turns SDK failures into ConditionFailedError or
// models.ErrStoreUnavailable.
type DynamoService struct {
	Client DynamoAPI
	Log    *zap.Logger
}

// InitializeDynamoDBClient builds a client from the default credential chain. A non-empty endpoint
// points it at a local DynamoDB.
func InitializeDynamoDBClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// PutItem marshals item and writes it, optionally guarded by a condition.
func (ds *DynamoService) PutItem(ctx context.Context, tableName string, item interface{}, cond *Expression) error {
	marshaledItem, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item for table '%s': %w", tableName, err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item:      marshaledItem,
	}
	if cond != nil {
		input.ConditionExpression = aws.String(cond.Expression)
		input.ExpressionAttributeNames = cond.Names
		input.ExpressionAttributeValues = cond.Values
		input.ReturnValuesOnConditionCheckFailure = types.ReturnValuesOnConditionCheckFailureAllOld
	}

	if _, err := ds.Client.PutItem(ctx, input); err != nil {
		return ds.classify(ctx, "put item", tableName, err)
	}
	return nil
}

// GetItem retrieves an item and unmarshals it into out. A missing item is models.ErrNotFound.
func (ds *DynamoService) GetItem(ctx context.Context, tableName string, key map[string]types.AttributeValue, out interface{}) error {
	output, err := ds.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(tableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return ds.classify(ctx, "get item", tableName, err)
	}
	if output.Item == nil {
		return fmt.Errorf("item in table '%s': %w", tableName, models.ErrNotFound)
	}
	if err := attributevalue.UnmarshalMap(output.Item, out); err != nil {
		return fmt.Errorf("failed to unmarshal item from table '%s': %w", tableName, err)
	}
	return nil
}

// UpdateItem runs an update expression, optionally guarded by a condition, and returns the new
// attributes.
func (ds *DynamoService) UpdateItem(
	ctx context.Context,
	tableName string,
	key map[string]types.AttributeValue,
	update Expression,
	condition string,
) (map[string]types.AttributeValue, error) {
	if len(key) == 0 {
		return nil, errors.New("update failed: key cannot be empty")
	}
	if update.Expression == "" {
		return nil, errors.New("update failed: updateExpression cannot be empty")
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(tableName),
		Key:                       key,
		UpdateExpression:          aws.String(update.Expression),
		ExpressionAttributeNames:  update.Names,
		ExpressionAttributeValues: update.Values,
		ReturnValues:              types.ReturnValueAllNew,
	}
	if len(update.Values) == 0 {
		input.ExpressionAttributeValues = nil
	}
	if condition != "" {
		input.ConditionExpression = aws.String(condition)
		input.ReturnValuesOnConditionCheckFailure = types.ReturnValuesOnConditionCheckFailureAllOld
	}

	output, err := ds.Client.UpdateItem(ctx, input)
	if err != nil {
		return nil, ds.classify(ctx, "update item", tableName, err)
	}
	if output.Attributes == nil {
		return map[string]types.AttributeValue{}, nil
	}
	return output.Attributes, nil
}

// DeleteItem removes an item, optionally guarded by a condition.
func (ds *DynamoService) DeleteItem(ctx context.Context, tableName string, key map[string]types.AttributeValue, condition string) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(tableName),
		Key:       key,
	}
	if condition != "" {
		input.ConditionExpression = aws.String(condition)
	}
	if _, err := ds.Client.DeleteItem(ctx, input); err != nil {
		return ds.classify(ctx, "delete item", tableName, err)
	}
	return nil
}

// ScanAll scans every page of a table, applying filter when it is non-nil, and unmarshals the
// items into result (a pointer to a slice).
func (ds *DynamoService) ScanAll(ctx context.Context, tableName string, filter *Expression, result interface{}) error {
	input := &dynamodb.ScanInput{
		TableName:      aws.String(tableName),
		ConsistentRead: aws.Bool(true),
	}
	if filter != nil {
		input.FilterExpression = aws.String(filter.Expression)
		input.ExpressionAttributeNames = filter.Names
		input.ExpressionAttributeValues = filter.Values
	}

	var items []map[string]types.AttributeValue
	for {
		output, err := ds.Client.Scan(ctx, input)
		if err != nil {
			return ds.classify(ctx, "scan", tableName, err)
		}
		items = append(items, output.Items...)
		if len(output.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	if err := attributevalue.UnmarshalListOfMaps(items, result); err != nil {
		return fmt.Errorf("failed to unmarshal scan result: %w", err)
	}
	return nil
}

// QueryItemsWithOptions queries by key condition. forward=true returns ascending sort-key order;
// limit <= 0 reads every page.
func (ds *DynamoService) QueryItemsWithOptions(
	ctx context.Context,
	tableName string,
	keyCondition Expression,
	limit int32,
	forward bool,
	result interface{},
) error {
	input := &dynamodb.QueryInput{
		TableName:                 aws.String(tableName),
		KeyConditionExpression:    aws.String(keyCondition.Expression),
		ExpressionAttributeNames:  keyCondition.Names,
		ExpressionAttributeValues: keyCondition.Values,
		ScanIndexForward:          aws.Bool(forward),
		ConsistentRead:            aws.Bool(true),
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	var items []map[string]types.AttributeValue
	for {
		output, err := ds.Client.Query(ctx, input)
		if err != nil {
			return ds.classify(ctx, "query", tableName, err)
		}
		items = append(items, output.Items...)
		if limit > 0 || len(output.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	if err := attributevalue.UnmarshalListOfMaps(items, result); err != nil {
		return fmt.Errorf("failed to unmarshal query result: %w", err)
	}
	return nil
}

// TransactWrite applies all writes or none.
func (ds *DynamoService) TransactWrite(ctx context.Context, items []types.TransactWriteItem) error {
	_, err := ds.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		return ds.classify(ctx, "transact write", "", err)
	}
	return nil
}

func (ds *DynamoService) classify(ctx context.Context, op, tableName string, err error) error {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return &ConditionFailedError{Item: ccf.Item}
	}

	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		cfe := &ConditionFailedError{}
		conditional := false
		for _, r := range tce.CancellationReasons {
			code := aws.ToString(r.Code)
			cfe.Reasons = append(cfe.Reasons, code)
			if code == "ConditionalCheckFailed" {
				conditional = true
			}
		}
		if conditional {
			return cfe
		}
	}

	if ctx.Err() != nil {
		return fmt.Errorf("%s on '%s': %w: %w", op, tableName, models.ErrStoreUnavailable, ctx.Err())
	}
	ds.logger().Warn("dynamodb call failed",
		zap.String("op", op),
		zap.String("table", tableName),
		zap.Error(err))
	return fmt.Errorf("%s on '%s': %w: %w", op, tableName, models.ErrStoreUnavailable, err)
}

func (ds *DynamoService) logger() *zap.Logger {
	if ds.Log == nil {
		return zap.NewNop()
	}
	return ds.Log
}

func stringKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{name: &types.AttributeValueMemberS{Value: value}}
}
