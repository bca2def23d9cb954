package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

const (
	pkPrefixRateLimit = "RL#"
	// sortTimeLayout is fixed width so lexical order on SK matches time order.
	sortTimeLayout = "2006-01-02T15:04:05.000000000Z"
	// entryTTL lets DynamoDB expire rows the sweep missed.
	entryTTL = 48 * time.Hour
)

// RateLimitStore persists rate-limit entries in DynamoDB, one item per
// accepted request, partitioned by (endpoint, identity).
type RateLimitStore struct {
	api       dynamodbAPI
	tableName string
}

func NewRateLimitStore(api dynamodbAPI, tableName string) (*RateLimitStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &RateLimitStore{api: api, tableName: tableName}, nil
}

func rateLimitPK(identity, endpoint string) string {
	return pkPrefixRateLimit + endpoint + "#" + identity
}

func rateLimitSK(at time.Time) string {
	return at.UTC().Format(sortTimeLayout) + "#" + uuid.NewString()
}

// CountSince counts entries for (identity, endpoint) at or after since.
func (s *RateLimitStore) CountSince(ctx context.Context, identity, endpoint string, since time.Time) (int, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND SK >= :since"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":    &types.AttributeValueMemberS{Value: rateLimitPK(identity, endpoint)},
			":since": &types.AttributeValueMemberS{Value: since.UTC().Format(sortTimeLayout)},
		},
		Select:         types.SelectCount,
		ConsistentRead: aws.Bool(true),
	}

	total := 0
	for {
		out, err := s.api.Query(ctx, in)
		if err != nil {
			return 0, fmt.Errorf("repository: CountSince query: %w", err)
		}
		total += int(out.Count)
		if len(out.LastEvaluatedKey) == 0 {
			return total, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// Record writes one entry for (identity, endpoint) at the given time.
func (s *RateLimitStore) Record(ctx context.Context, identity, endpoint string, at time.Time) error {
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"PK":         &types.AttributeValueMemberS{Value: rateLimitPK(identity, endpoint)},
			"SK":         &types.AttributeValueMemberS{Value: rateLimitSK(at)},
			"identity":   &types.AttributeValueMemberS{Value: identity},
			"endpoint":   &types.AttributeValueMemberS{Value: endpoint},
			"created_at": numAttr(at.UTC().UnixMilli()),
			"ttl":        numAttr(at.Add(entryTTL).Unix()),
		},
		ConditionExpression: aws.String(conditionNewPKey),
	})
	if err != nil {
		return fmt.Errorf("repository: Record: %w", err)
	}
	return nil
}

// DeleteBefore removes every rate-limit entry created before cutoff.
func (s *RateLimitStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	in := &dynamodb.ScanInput{
		TableName:            aws.String(s.tableName),
		FilterExpression:     aws.String("begins_with(PK, :prefix) AND created_at < :cutoff"),
		ProjectionExpression: aws.String("PK, SK"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: pkPrefixRateLimit},
			":cutoff": numAttr(cutoff.UTC().UnixMilli()),
		},
	}

	deleted := 0
	for {
		out, err := s.api.Scan(ctx, in)
		if err != nil {
			return deleted, fmt.Errorf("repository: DeleteBefore scan: %w", err)
		}
		for start := 0; start < len(out.Items); start += batchWriteLimit {
			end := min(start+batchWriteLimit, len(out.Items))
			n, err := s.deleteBatch(ctx, out.Items[start:end])
			deleted += n
			if err != nil {
				return deleted, err
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			return deleted, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (s *RateLimitStore) deleteBatch(ctx context.Context, items []map[string]types.AttributeValue) (int, error) {
	requests := make([]types.WriteRequest, 0, len(items))
	for _, item := range items {
		pk, err := strAttr(item, "PK")
		if err != nil {
			return 0, fmt.Errorf("repository: DeleteBefore: %w", err)
		}
		sk, err := strAttr(item, "SK")
		if err != nil {
			return 0, fmt.Errorf("repository: DeleteBefore: %w", err)
		}
		requests = append(requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: pk},
				"SK": &types.AttributeValueMemberS{Value: sk},
			}},
		})
	}

	pending := requests
	for attempt := 0; attempt <= maxBatchRetries && len(pending) > 0; attempt++ {
		out, err := s.api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{s.tableName: pending},
		})
		if err != nil {
			return len(requests) - len(pending), fmt.Errorf("repository: DeleteBefore batch write: %w", err)
		}
		if out == nil {
			pending = nil
			break
		}
		pending = out.UnprocessedItems[s.tableName]
	}
	if len(pending) > 0 {
		return len(requests) - len(pending), fmt.Errorf("repository: DeleteBefore: %d items left unprocessed", len(pending))
	}
	return len(requests), nil
}
