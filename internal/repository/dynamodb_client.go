package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"oldschool-site/internal/domain"
)

const (
	pkPrefixDay  = "DAY#"
	skPrefixExch = "EXCH#"
	skStats      = "STATS#"
	ttlDuration  = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client writes chat exchange metadata to a single DynamoDB table. Items are
// partitioned by UTC day so a day's traffic can be read with one query.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// dayPK returns the partition key for the UTC day of ts.
func dayPK(ts time.Time) string {
	return pkPrefixDay + ts.UTC().Format(time.DateOnly)
}

// exchangeSK orders exchanges chronologically within a day.
func exchangeSK(ts time.Time, id string) string {
	return skPrefixExch + ts.UTC().Format(time.RFC3339Nano) + "#" + id
}

// ttlValue returns a Unix timestamp 30 days after ts.
func ttlValue(ts time.Time) int64 {
	return ts.Add(ttlDuration).Unix()
}

// RecordExchange writes the exchange item and bumps the daily counters in one
// transaction.
func (c *Client) RecordExchange(ctx context.Context, rec domain.ExchangeRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("repository: RecordExchange: exchange id is required")
	}
	started := rec.StartedAt
	if started.IsZero() {
		started = c.now()
	}
	ttl := ttlValue(c.now())

	failures := 0
	if rec.Status != domain.ExchangeCompleted {
		failures = 1
	}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                exchangeItem(rec, started, ttl),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Update: &types.Update{
					TableName: aws.String(c.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: dayPK(started)},
						"SK": &types.AttributeValueMemberS{Value: skStats},
					},
					UpdateExpression: aws.String("ADD exchanges :one, failures :failures, outputBytes :bytes, promptTokens :prompt, completionTokens :completion SET lastActivity = :now, #ttl = :ttl"),
					ExpressionAttributeNames: map[string]string{
						"#ttl": "ttl",
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":one":        numAttr(1),
						":failures":   numAttr(int64(failures)),
						":bytes":      numAttr(int64(rec.OutputBytes)),
						":prompt":     numAttr(int64(rec.PromptTokens)),
						":completion": numAttr(int64(rec.CompletionTokens)),
						":now":        &types.AttributeValueMemberS{Value: c.now().UTC().Format(time.RFC3339)},
						":ttl":        numAttr(ttl),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: RecordExchange: %w", err)
	}
	return nil
}

func exchangeItem(rec domain.ExchangeRecord, started time.Time, ttl int64) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"PK":               &types.AttributeValueMemberS{Value: dayPK(started)},
		"SK":               &types.AttributeValueMemberS{Value: exchangeSK(started, rec.ID)},
		"exchangeId":       &types.AttributeValueMemberS{Value: rec.ID},
		"model":            &types.AttributeValueMemberS{Value: rec.Model},
		"status":           &types.AttributeValueMemberS{Value: rec.Status},
		"messages":         numAttr(int64(rec.Messages)),
		"chunks":           numAttr(int64(rec.Chunks)),
		"outputBytes":      numAttr(int64(rec.OutputBytes)),
		"promptTokens":     numAttr(int64(rec.PromptTokens)),
		"completionTokens": numAttr(int64(rec.CompletionTokens)),
		"durationMs":       numAttr(rec.Duration.Milliseconds()),
		"startedAt":        &types.AttributeValueMemberS{Value: started.UTC().Format(time.RFC3339Nano)},
		"ttl":              numAttr(ttl),
	}
	// Empty strings are legal in DynamoDB but noisy; optional fields are
	// only written when set.
	if rec.CorrelationID != "" {
		item["correlationId"] = &types.AttributeValueMemberS{Value: rec.CorrelationID}
	}
	if rec.FinishReason != "" {
		item["finishReason"] = &types.AttributeValueMemberS{Value: rec.FinishReason}
	}
	if rec.ErrorReason != "" {
		item["errorReason"] = &types.AttributeValueMemberS{Value: rec.ErrorReason}
	}
	return item
}

func numAttr(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}
