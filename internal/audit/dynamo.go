package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore appends records to a DynamoDB table keyed by id.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	now       func() time.Time
}

// NewDynamoStore builds a store over client.
func NewDynamoStore(client dynamoAPI, tableName string) *DynamoStore {
	if client == nil {
		panic("audit: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("audit: table name cannot be empty")
	}
	return &DynamoStore{client: client, tableName: tableName, now: time.Now}
}

// Append implements Store. Existing ids are never overwritten.
func (s *DynamoStore) Append(ctx context.Context, rec Record) (Record, error) {
	rec.CreatedAt = s.now().UTC()
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return Record{}, fmt.Errorf("audit: marshal record: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return Record{}, fmt.Errorf("audit: put record: %w", err)
	}
	return rec, nil
}
