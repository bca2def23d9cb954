package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"inquiry-agent/internal/domain"
)

// InquiryStore writes leads to a DynamoDB table keyed by id.
type InquiryStore struct {
	api       dynamodbAPI
	tableName string
}

func NewInquiryStore(api dynamodbAPI, tableName string) (*InquiryStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &InquiryStore{api: api, tableName: tableName}, nil
}

// InsertInquiry persists a new lead. An existing id is treated as an error;
// records are never overwritten.
func (s *InquiryStore) InsertInquiry(ctx context.Context, rec domain.InquiryRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("repository: InsertInquiry: id is required")
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("repository: InsertInquiry marshal: %w", err)
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String(conditionNewIDKey),
	})
	if err != nil {
		return fmt.Errorf("repository: InsertInquiry: %w", err)
	}
	return nil
}
