package cache

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rzpsarthak13/modstore/internal/core"
	"github.com/rzpsarthak13/modstore/internal/document"
	"github.com/rzpsarthak13/modstore/internal/registry"
)

// DynamoAPI is the slice of the DynamoDB client the cache needs.
type DynamoAPI interface {
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoKVStore implements core.KVStore on a DynamoDB table keyed by a
// string attribute "key". Expired entries are hidden on read even before
// DynamoDB TTL removes them.
type DynamoKVStore struct {
	client DynamoAPI
	table  string
	closed bool
	now    func() time.Time
}

// dynamoItem is one cache entry. TTL holds unix seconds, the unit DynamoDB
// TTL expects.
type dynamoItem struct {
	Key       string `dynamodbav:"key"`
	Value     []byte `dynamodbav:"value"`
	TTL       *int64 `dynamodbav:"ttl,omitempty"`
	CreatedAt string `dynamodbav:"created_at"`
}

// NewDynamoKVStore connects to DynamoDB and checks that the table exists.
func NewDynamoKVStore(ctx context.Context, cfg registry.DynamoConfig) (*DynamoKVStore, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("table name is required")
	}
	endpoint, err := document.ParseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	client, err := document.NewDynamoClient(ctx, endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, err
	}
	return NewDynamoKVStoreFromClient(ctx, client, cfg.Table)
}

// NewDynamoKVStoreFromClient wraps an existing client after checking that
// the table exists.
func NewDynamoKVStoreFromClient(ctx context.Context, client DynamoAPI, table string) (*DynamoKVStore, error) {
	describeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := client.DescribeTable(describeCtx, &dynamodb.DescribeTableInput{TableName: aws.String(table)}); err != nil {
		return nil, fmt.Errorf("failed to connect to DynamoDB table %s: %w", table, err)
	}
	log.Printf("[DYNAMODB] Cache table %s ready", table)
	return &DynamoKVStore{client: client, table: table, now: time.Now}, nil
}

func (d *DynamoKVStore) key(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"key": &types.AttributeValueMemberS{Value: key}}
}

// Get retrieves a value by key from the store.
func (d *DynamoKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if d.closed {
		return nil, ErrStoreClosed
	}

	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            d.key(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		log.Printf("[DYNAMODB] ERROR: Failed to get key %s: %v", key, err)
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	if out.Item == nil {
		return nil, core.ErrKeyNotFound
	}

	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("invalid value format for key %s: %w", key, err)
	}
	if d.expired(item) {
		return nil, core.ErrKeyNotFound
	}
	return item.Value, nil
}

func (d *DynamoKVStore) expired(item dynamoItem) bool {
	return item.TTL != nil && d.now().Unix() >= *item.TTL
}

// Set stores a key-value pair. A ttl of 0 never expires.
func (d *DynamoKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if d.closed {
		return ErrStoreClosed
	}

	now := d.now()
	item := dynamoItem{Key: key, Value: value, CreatedAt: now.UTC().Format(time.RFC3339)}
	if ttl > 0 {
		// Round up so a sub-second ttl does not expire on write.
		expires := now.Add(ttl + time.Second - 1).Unix()
		item.TTL = &expires
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to encode key %s: %w", key, err)
	}

	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(d.table), Item: av}); err != nil {
		log.Printf("[DYNAMODB] ERROR: Failed to set key %s: %v", key, err)
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key from the store.
func (d *DynamoKVStore) Delete(ctx context.Context, key string) error {
	if d.closed {
		return ErrStoreClosed
	}
	if _, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{TableName: aws.String(d.table), Key: d.key(key)}); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Exists checks if a live key exists in the store.
func (d *DynamoKVStore) Exists(ctx context.Context, key string) (bool, error) {
	if d.closed {
		return false, ErrStoreClosed
	}

	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(d.table),
		Key:                      d.key(key),
		ProjectionExpression:     aws.String("#k, #t"),
		ExpressionAttributeNames: map[string]string{"#k": "key", "#t": "ttl"},
		ConsistentRead:           aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("failed to check existence of key %s: %w", key, err)
	}
	if out.Item == nil {
		return false, nil
	}
	if attr, ok := out.Item["ttl"].(*types.AttributeValueMemberN); ok {
		if ttl, err := strconv.ParseInt(attr.Value, 10, 64); err == nil && d.now().Unix() >= ttl {
			return false, nil
		}
	}
	return true, nil
}

// Close marks the store closed. The AWS client holds no connection to release.
func (d *DynamoKVStore) Close() error {
	d.closed = true
	return nil
}
