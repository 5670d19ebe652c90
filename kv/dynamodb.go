package kv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute names of items written by [DynamoDB].
const (
	AttrKey       = "name"
	AttrValue     = "value"
	AttrUpdatedAt = "updated_at"
)

// DynamoDBAPI is the subset of *dynamodb.Client used by [DynamoDB].
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoDBConfig holds configuration for the DynamoDB backend.
type DynamoDBConfig struct {
	// Table is the DynamoDB table holding one item per key. Its partition
	// key must be a string attribute named "name".
	// Default: "doctable"
	Table string

	// ReadyTimeout bounds how long Ready waits for the table to become
	// ACTIVE.
	// Default: 2m
	ReadyTimeout time.Duration
}

// DefaultDynamoDBConfig returns the default backend configuration.
func DefaultDynamoDBConfig() DynamoDBConfig {
	return DynamoDBConfig{
		Table:        "doctable",
		ReadyTimeout: 2 * time.Minute,
	}
}

func (c *DynamoDBConfig) validate() {
	if c.Table == "" {
		c.Table = "doctable"
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 2 * time.Minute
	}
}

// entry is the item layout. Values are kept as a JSON string, which bounds a
// single table to the 400 KB DynamoDB item limit.
type entry struct {
	Key       string `dynamodbav:"name"`
	Value     string `dynamodbav:"value"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

// DynamoDB is a Store backed by a single DynamoDB table.
type DynamoDB struct {
	client DynamoDBAPI
	config DynamoDBConfig

	mu    sync.Mutex
	ready bool
}

// NewDynamoDB creates a DynamoDB backend.
func NewDynamoDB(client DynamoDBAPI, config DynamoDBConfig) *DynamoDB {
	config.validate()
	return &DynamoDB{client: client, config: config}
}

// TableName returns the DynamoDB table in use.
func (d *DynamoDB) TableName() string {
	return d.config.Table
}

// Ready waits for the table to be ACTIVE. Success is remembered; failures
// are retried on the next call.
func (d *DynamoDB) Ready(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ready {
		return nil
	}

	input := &dynamodb.DescribeTableInput{TableName: aws.String(d.config.Table)}
	out, err := d.client.DescribeTable(ctx, input)
	if err != nil {
		return fmt.Errorf("%w: describe %s: %w", ErrNotReady, d.config.Table, err)
	}
	if out.Table == nil || out.Table.TableStatus != types.TableStatusActive {
		waiter := dynamodb.NewTableExistsWaiter(d.client)
		if err := waiter.Wait(ctx, input, d.config.ReadyTimeout); err != nil {
			return fmt.Errorf("%w: wait for %s: %w", ErrNotReady, d.config.Table, err)
		}
	}
	d.ready = true
	return nil
}

// Get reads the item for key with a strongly consistent read.
func (d *DynamoDB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	keyAttr, err := attributevalue.MarshalMap(map[string]string{AttrKey: key})
	if err != nil {
		return nil, false, fmt.Errorf("marshal key: %w", err)
	}
	result, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.config.Table),
		Key:            keyAttr,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, err
	}
	if result.Item == nil {
		return nil, false, nil
	}

	var e entry
	if err := attributevalue.UnmarshalMap(result.Item, &e); err != nil {
		return nil, false, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return []byte(e.Value), true, nil
}

// Set writes the item for key, replacing any prior item.
func (d *DynamoDB) Set(ctx context.Context, key string, value []byte) error {
	item, err := attributevalue.MarshalMap(entry{
		Key:       key,
		Value:     string(value),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.config.Table),
		Item:      item,
	})
	return err
}
