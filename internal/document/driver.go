package document

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/rzpsarthak13/modstore/internal/core"
)

const (
	// DefaultTableWait bounds how long the driver waits for a new table or
	// index to become ACTIVE.
	DefaultTableWait = 2 * time.Minute

	defaultIndexPoll = 2 * time.Second
)

// API is the part of the DynamoDB client the driver uses. *dynamodb.Client
// satisfies it.
type API interface {
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	UpdateTable(ctx context.Context, params *dynamodb.UpdateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTableOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	ExecuteStatement(ctx context.Context, params *dynamodb.ExecuteStatementInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ExecuteStatementOutput, error)
}

// ClientFactory builds the client used for a session.
type ClientFactory func(ctx context.Context, endpoint Endpoint, username, password string) (API, error)

// Option configures a Driver.
type Option func(*Driver)

// WithClientFactory replaces the AWS client constructor.
func WithClientFactory(factory ClientFactory) Option {
	return func(d *Driver) {
		d.newClient = factory
	}
}

// WithTableWait sets the maximum wait for tables and indexes to become ACTIVE.
func WithTableWait(wait time.Duration) Option {
	return func(d *Driver) {
		d.tableWait = wait
	}
}

// tableInfo caches what the driver learned about a collection's table.
type tableInfo struct {
	// indexes maps field name to the uniqueness of its secondary index.
	indexes map[string]bool
}

// checkIndexed rejects indexed fields whose value is not a string, since
// index key attributes are declared as strings.
func (t *tableInfo) checkIndexed(item map[string]types.AttributeValue) error {
	for field := range t.indexes {
		av, ok := item[field]
		if !ok {
			continue
		}
		if _, ok := av.(*types.AttributeValueMemberS); !ok {
			return fmt.Errorf("%w: indexed field '%s' must be a string", core.ErrInvalidRecord, field)
		}
	}
	return nil
}

func (t *tableInfo) uniqueFields() []string {
	var fields []string
	for field, unique := range t.indexes {
		if unique {
			fields = append(fields, field)
		}
	}
	return fields
}

// Driver implements core.DataStore on Amazon DynamoDB. Each collection is a
// table keyed by a string _id. Transactions are not supported.
type Driver struct {
	newClient ClientFactory
	tableWait time.Duration
	indexPoll time.Duration

	client API
	tables map[string]*tableInfo
}

var _ core.DataStore = (*Driver)(nil)

// NewDriver creates an unconnected DOCUMENT driver.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{
		newClient: NewAWSClient,
		tableWait: DefaultTableWait,
		indexPoll: defaultIndexPoll,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewAWSClient builds the DynamoDB client a Driver talks to.
func NewAWSClient(ctx context.Context, endpoint Endpoint, username, password string) (API, error) {
	client, err := NewDynamoClient(ctx, endpoint, username, password)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// NewDynamoClient builds a DynamoDB client. Username and password are used
// as a static access key pair; when empty the default credential chain
// applies.
func NewDynamoClient(ctx context.Context, endpoint Endpoint, username, password string) (*dynamodb.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(endpoint.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if username != "" && password != "" {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(username, password, "")
	}

	clientOptions := []func(*dynamodb.Options){}
	if endpoint.BaseURL != "" {
		clientOptions = append(clientOptions, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpoint.BaseURL)
		})
	}
	return dynamodb.NewFromConfig(cfg, clientOptions...), nil
}

// Type implements core.DataStore.
func (d *Driver) Type() core.DriverType {
	return core.DriverDocument
}

// Connect implements core.DataStore. The session is verified with ListTables.
func (d *Driver) Connect(ctx context.Context, endpoint, username, password string) error {
	if d.client != nil {
		return d.fail("connect", "", core.ErrAlreadyConnected)
	}

	ep, err := ParseEndpoint(endpoint)
	if err != nil {
		return d.fail("connect", "", err)
	}

	log.Printf("[DYNAMODB] Connecting to %s (region %s)", endpoint, ep.Region)
	client, err := d.newClient(ctx, ep, username, password)
	if err != nil {
		return d.fail("connect", "", err)
	}
	if _, err := client.ListTables(ctx, &dynamodb.ListTablesInput{Limit: aws.Int32(1)}); err != nil {
		return d.fail("connect", "", fmt.Errorf("failed to reach DynamoDB: %w", err))
	}

	d.client = client
	d.tables = make(map[string]*tableInfo)
	log.Printf("[DYNAMODB] Connected")
	return nil
}

// Disconnect implements core.DataStore. The SDK client holds no socket of its
// own, so this only drops the session.
func (d *Driver) Disconnect() error {
	if d.client == nil {
		return nil
	}
	d.client = nil
	d.tables = nil
	log.Printf("[DYNAMODB] Disconnected")
	return nil
}

// IsConnected implements core.DataStore.
func (d *Driver) IsConnected() bool {
	return d.client != nil
}

// InTransaction always reports false.
func (d *Driver) InTransaction() bool {
	return false
}

// Insert implements core.DataStore. A missing _id is generated. Indexed
// fields must hold strings, and unique secondary indexes are checked before
// the put.
func (d *Driver) Insert(ctx context.Context, collection string, record core.Record) error {
	if d.client == nil {
		return d.fail("insert", collection, core.ErrNotConnected)
	}
	if record.Len() == 0 {
		return d.fail("insert", collection, fmt.Errorf("%w: no fields to insert", core.ErrInvalidRecord))
	}

	item, err := toItem(record)
	if err != nil {
		return d.fail("insert", collection, err)
	}
	if _, ok := item[idField]; !ok {
		item[idField] = &types.AttributeValueMemberS{Value: uuid.NewString()}
		item[autoIDField] = &types.AttributeValueMemberBOOL{Value: true}
	}

	info, err := d.ensureTable(ctx, collection)
	if err != nil {
		return d.fail("insert", collection, err)
	}
	if err := info.checkIndexed(item); err != nil {
		return d.fail("insert", collection, err)
	}
	for _, field := range info.uniqueFields() {
		av, ok := item[field]
		if !ok {
			continue
		}
		holders, err := d.indexHolders(ctx, collection, field, av)
		if err != nil {
			return d.fail("insert", collection, err)
		}
		if len(holders) > 0 {
			return d.fail("insert", collection, fmt.Errorf("%w: %s", core.ErrDuplicate, field))
		}
	}

	log.Printf("[DYNAMODB] PUT into %s (%d attributes)", collection, len(item))
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(collection),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": idField},
	})
	if err != nil {
		var conditionErr *types.ConditionalCheckFailedException
		if errors.As(err, &conditionErr) {
			return d.fail("insert", collection, fmt.Errorf("%w: %s", core.ErrDuplicate, idField))
		}
		return d.fail("insert", collection, fmt.Errorf("failed to put item: %w", err))
	}
	return nil
}

// Update implements core.DataStore. Every item whose keyField equals keyValue
// gets the record's fields SET on it; other attributes are kept. Setting a
// unique field fails with core.ErrDuplicate when another item holds the value
// or when more than one item matches.
func (d *Driver) Update(ctx context.Context, collection, keyField string, keyValue interface{}, record core.Record) error {
	if d.client == nil {
		return d.fail("update", collection, core.ErrNotConnected)
	}

	names := make(map[string]string)
	values := make(map[string]types.AttributeValue)
	fields := make(map[string]types.AttributeValue)
	var sets []string
	for i, key := range record.Keys() {
		if key == idField || key == autoIDField {
			continue
		}
		av, err := toAttribute(record.Value(key))
		if err != nil {
			return d.fail("update", collection, fmt.Errorf("%w: field '%s': %v", core.ErrInvalidRecord, key, err))
		}
		name, placeholder := fmt.Sprintf("#u%d", i), fmt.Sprintf(":u%d", i)
		names[name] = key
		values[placeholder] = av
		fields[key] = av
		sets = append(sets, name+" = "+placeholder)
	}
	if len(sets) == 0 {
		return d.fail("update", collection, fmt.Errorf("%w: no fields to update", core.ErrInvalidRecord))
	}

	matches, err := d.matching(ctx, collection, keyField, keyValue, 0)
	if err != nil {
		return d.fail("update", collection, err)
	}
	if len(matches) == 0 {
		log.Printf("[DYNAMODB] UPDATE %s: no item with %s = %v", collection, keyField, keyValue)
		return nil
	}

	info, err := d.ensureTable(ctx, collection)
	if err != nil {
		return d.fail("update", collection, err)
	}
	if err := info.checkIndexed(fields); err != nil {
		return d.fail("update", collection, err)
	}
	if err := d.checkUniqueUpdate(ctx, collection, info, fields, matches); err != nil {
		return d.fail("update", collection, err)
	}

	expression := "SET " + strings.Join(sets, ", ")
	for _, item := range matches {
		_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(collection),
			Key:                       map[string]types.AttributeValue{idField: item[idField]},
			UpdateExpression:          aws.String(expression),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
		})
		if err != nil {
			return d.fail("update", collection, fmt.Errorf("failed to update item: %w", err))
		}
	}
	log.Printf("[DYNAMODB] UPDATE %s: %d items updated", collection, len(matches))
	return nil
}

// Delete implements core.DataStore, removing the first match.
func (d *Driver) Delete(ctx context.Context, collection, keyField string, keyValue interface{}) error {
	if d.client == nil {
		return d.fail("delete", collection, core.ErrNotConnected)
	}

	matches, err := d.matching(ctx, collection, keyField, keyValue, 1)
	if err != nil {
		return d.fail("delete", collection, err)
	}
	if len(matches) == 0 {
		log.Printf("[DYNAMODB] DELETE %s: no item with %s = %v", collection, keyField, keyValue)
		return nil
	}

	_, err = d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(collection),
		Key:       map[string]types.AttributeValue{idField: matches[0][idField]},
	})
	if err != nil {
		return d.fail("delete", collection, fmt.Errorf("failed to delete item: %w", err))
	}
	return nil
}

// Select implements core.DataStore. The filter must be a core.DocumentFilter
// and is handed to Scan unchanged. A nil filter scans everything.
func (d *Driver) Select(ctx context.Context, collection string, filter core.Filter) ([]core.Record, error) {
	if d.client == nil {
		return nil, d.fail("select", collection, core.ErrNotConnected)
	}

	var df core.DocumentFilter
	switch f := filter.(type) {
	case nil:
	case core.DocumentFilter:
		df = f
	case *core.DocumentFilter:
		if f != nil {
			df = *f
		}
	case *core.SQLFilter:
		if f != nil {
			return nil, d.fail("select", collection, fmt.Errorf("%w: got %s filter", core.ErrFilterMismatch, core.FilterSQL))
		}
		// A nil pointer of either kind is no filter.
	default:
		return nil, d.fail("select", collection, fmt.Errorf("%w: got %s filter", core.ErrFilterMismatch, filter.Backend()))
	}

	input := &dynamodb.ScanInput{TableName: aws.String(collection)}
	if strings.TrimSpace(df.Expression) != "" {
		values, err := expressionValues(df.Values)
		if err != nil {
			return nil, d.fail("select", collection, err)
		}
		input.FilterExpression = aws.String(df.Expression)
		if len(df.Names) > 0 {
			input.ExpressionAttributeNames = df.Names
		}
		input.ExpressionAttributeValues = values
	}

	items, err := d.scan(ctx, input, 0)
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return []core.Record{}, nil
	}
	if err != nil {
		return nil, d.fail("select", collection, err)
	}
	records, err := toRecords(items)
	if err != nil {
		return nil, d.fail("select", collection, err)
	}
	return records, nil
}

// SelectAll implements core.DataStore with a paginated Scan.
func (d *Driver) SelectAll(ctx context.Context, collection string) ([]core.Record, error) {
	return d.Select(ctx, collection, nil)
}

// ExecuteQuery runs a PartiQL statement and returns every result item.
func (d *Driver) ExecuteQuery(ctx context.Context, raw string, args ...interface{}) ([]core.Record, error) {
	if d.client == nil {
		return nil, d.fail("execute query", "", core.ErrNotConnected)
	}
	items, err := d.statement(ctx, raw, args)
	if err != nil {
		return nil, d.fail("execute query", "", err)
	}
	records, err := toRecords(items)
	if err != nil {
		return nil, d.fail("execute query", "", err)
	}
	return records, nil
}

// Query runs a PartiQL statement and discards its result.
func (d *Driver) Query(ctx context.Context, raw string, args ...interface{}) error {
	if d.client == nil {
		return d.fail("query", "", core.ErrNotConnected)
	}
	_, err := d.statement(ctx, raw, args)
	return d.fail("query", "", err)
}

// CreateIndex implements core.DataStore with a global secondary index named
// idx_<field> or uidx_<field>. Index key attributes are strings.
func (d *Driver) CreateIndex(ctx context.Context, spec core.IndexSpec) error {
	if d.client == nil {
		return d.fail("create index", spec.Collection, core.ErrNotConnected)
	}

	info, err := d.ensureTable(ctx, spec.Collection)
	if err != nil {
		return d.fail("create index", spec.Collection, err)
	}
	if unique, exists := info.indexes[spec.Field]; exists {
		if unique == spec.Unique {
			log.Printf("[DYNAMODB] Index %s already exists on %s", indexName(spec.Field, unique), spec.Collection)
			return nil
		}
		return d.fail("create index", spec.Collection,
			fmt.Errorf("%w: %s on %s", core.ErrIndexConflict, indexName(spec.Field, unique), spec.Field))
	}

	name := indexName(spec.Field, spec.Unique)
	log.Printf("[DYNAMODB] Creating index %s on %s", name, spec.Collection)
	_, err = d.client.UpdateTable(ctx, &dynamodb.UpdateTableInput{
		TableName: aws.String(spec.Collection),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(spec.Field), AttributeType: types.ScalarAttributeTypeS},
		},
		GlobalSecondaryIndexUpdates: []types.GlobalSecondaryIndexUpdate{{
			Create: &types.CreateGlobalSecondaryIndexAction{
				IndexName: aws.String(name),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String(spec.Field), KeyType: types.KeyTypeHash},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeKeysOnly},
			},
		}},
	})
	if err != nil {
		return d.fail("create index", spec.Collection, fmt.Errorf("failed to create index %s: %w", name, err))
	}
	if err := d.waitIndex(ctx, spec.Collection, name); err != nil {
		return d.fail("create index", spec.Collection, err)
	}

	info.indexes[spec.Field] = spec.Unique
	return nil
}

// StartTransaction always fails with core.ErrUnsupported.
func (d *Driver) StartTransaction(ctx context.Context) error {
	return d.fail("start transaction", "", core.ErrUnsupported)
}

// CommitTransaction always fails with core.ErrUnsupported.
func (d *Driver) CommitTransaction(ctx context.Context) error {
	return d.fail("commit", "", core.ErrUnsupported)
}

// RollbackTransaction always fails with core.ErrUnsupported.
func (d *Driver) RollbackTransaction(ctx context.Context) error {
	return d.fail("rollback", "", core.ErrUnsupported)
}

// ensureTable returns the cached table description, creating the table when
// it does not exist.
func (d *Driver) ensureTable(ctx context.Context, collection string) (*tableInfo, error) {
	if info, ok := d.tables[collection]; ok {
		return info, nil
	}

	out, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(collection)})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to describe table %s: %w", collection, err)
		}
		if err := d.createTable(ctx, collection); err != nil {
			return nil, err
		}
		info := &tableInfo{indexes: make(map[string]bool)}
		d.tables[collection] = info
		return info, nil
	}

	info := &tableInfo{indexes: make(map[string]bool)}
	if out.Table != nil {
		for _, gsi := range out.Table.GlobalSecondaryIndexes {
			if field, unique, ok := parseIndexName(aws.ToString(gsi.IndexName)); ok {
				info.indexes[field] = unique
			}
		}
	}
	d.tables[collection] = info
	return info, nil
}

func (d *Driver) createTable(ctx context.Context, collection string) error {
	log.Printf("[DYNAMODB] Creating table %s", collection)
	_, err := d.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(collection),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(idField), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(idField), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			return fmt.Errorf("failed to create table %s: %w", collection, err)
		}
	}

	waiter := dynamodb.NewTableExistsWaiter(d.client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(collection)}, d.tableWait); err != nil {
		return fmt.Errorf("table %s did not become active: %w", collection, err)
	}
	return nil
}

// waitIndex polls DescribeTable until the named index is ACTIVE.
func (d *Driver) waitIndex(ctx context.Context, collection, name string) error {
	ctx, cancel := context.WithTimeout(ctx, d.tableWait)
	defer cancel()

	ticker := time.NewTicker(d.indexPoll)
	defer ticker.Stop()

	for {
		out, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(collection)})
		if err != nil {
			return fmt.Errorf("failed to describe table %s: %w", collection, err)
		}
		if out.Table != nil {
			for _, gsi := range out.Table.GlobalSecondaryIndexes {
				if aws.ToString(gsi.IndexName) == name && gsi.IndexStatus == types.IndexStatusActive {
					return nil
				}
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("index %s did not become active: %w", name, ctx.Err())
		case <-ticker.C:
		}
	}
}

// indexHolders returns the _id of every item a unique index maps value to.
func (d *Driver) indexHolders(ctx context.Context, collection, field string, value types.AttributeValue) ([]types.AttributeValue, error) {
	var ids []types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(d.client, &dynamodb.QueryInput{
		TableName:                 aws.String(collection),
		IndexName:                 aws.String(indexName(field, true)),
		KeyConditionExpression:    aws.String("#k = :v"),
		ExpressionAttributeNames:  map[string]string{"#k": field},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": value},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query index %s: %w", indexName(field, true), err)
		}
		for _, item := range page.Items {
			ids = append(ids, item[idField])
		}
	}
	return ids, nil
}

// checkUniqueUpdate fails when setting fields on matches would leave two
// items with the same value under a unique index.
func (d *Driver) checkUniqueUpdate(ctx context.Context, collection string, info *tableInfo, fields map[string]types.AttributeValue, matches []map[string]types.AttributeValue) error {
	for _, field := range info.uniqueFields() {
		av, ok := fields[field]
		if !ok {
			continue
		}
		if len(matches) > 1 {
			return fmt.Errorf("%w: %s set on %d items", core.ErrDuplicate, field, len(matches))
		}
		holders, err := d.indexHolders(ctx, collection, field, av)
		if err != nil {
			return err
		}
		own, err := fromAttribute(matches[0][idField])
		if err != nil {
			return err
		}
		for _, holder := range holders {
			id, err := fromAttribute(holder)
			if err != nil {
				return err
			}
			if !core.ValuesEqual(id, own) {
				return fmt.Errorf("%w: %s", core.ErrDuplicate, field)
			}
		}
	}
	return nil
}

// matching scans for items whose keyField equals keyValue. A limit of zero
// returns every match. A missing table has no matches.
func (d *Driver) matching(ctx context.Context, collection, keyField string, keyValue interface{}, limit int) ([]map[string]types.AttributeValue, error) {
	av, err := toAttribute(keyValue)
	if err != nil {
		return nil, fmt.Errorf("%w: key '%s': %v", core.ErrInvalidRecord, keyField, err)
	}
	items, err := d.scan(ctx, &dynamodb.ScanInput{
		TableName:                 aws.String(collection),
		FilterExpression:          aws.String("#k = :k"),
		ExpressionAttributeNames:  map[string]string{"#k": keyField},
		ExpressionAttributeValues: map[string]types.AttributeValue{":k": av},
	}, limit)
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return nil, nil
	}
	return items, err
}

// scan pages through a strongly consistent Scan, so a read after a write in
// the same session sees it. A limit above zero stops once that many items
// were collected.
func (d *Driver) scan(ctx context.Context, input *dynamodb.ScanInput, limit int) ([]map[string]types.AttributeValue, error) {
	input.ConsistentRead = aws.Bool(true)
	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewScanPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", aws.ToString(input.TableName), err)
		}
		items = append(items, page.Items...)
		if limit > 0 && len(items) >= limit {
			return items[:limit], nil
		}
	}
	log.Printf("[DYNAMODB] SCAN %s returned %d items", aws.ToString(input.TableName), len(items))
	return items, nil
}

// statement runs a PartiQL statement, following NextToken.
func (d *Driver) statement(ctx context.Context, raw string, args []interface{}) ([]map[string]types.AttributeValue, error) {
	params, err := statementParameters(args)
	if err != nil {
		return nil, err
	}

	log.Printf("[DYNAMODB] Executing statement: %s with args: %v", raw, args)
	var items []map[string]types.AttributeValue
	var next *string
	for {
		out, err := d.client.ExecuteStatement(ctx, &dynamodb.ExecuteStatementInput{
			Statement:  aws.String(raw),
			Parameters: params,
			NextToken:  next,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to execute statement: %w", err)
		}
		items = append(items, out.Items...)
		if out.NextToken == nil || *out.NextToken == "" {
			return items, nil
		}
		next = out.NextToken
	}
}

func (d *Driver) fail(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		log.Printf("[DYNAMODB] ERROR: %s failed: %s (%s fault): %s", op, apiErr.ErrorCode(), apiErr.ErrorFault(), apiErr.ErrorMessage())
	} else {
		log.Printf("[DYNAMODB] ERROR: %s failed: %v", op, err)
	}
	return core.NewStoreError(core.DriverDocument, op, collection, err)
}

func toRecords(items []map[string]types.AttributeValue) ([]core.Record, error) {
	records := make([]core.Record, 0, len(items))
	for _, item := range items {
		record, err := toRecord(item)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func indexName(field string, unique bool) string {
	if unique {
		return "uidx_" + field
	}
	return "idx_" + field
}

func parseIndexName(name string) (field string, unique bool, ok bool) {
	switch {
	case strings.HasPrefix(name, "uidx_"):
		return strings.TrimPrefix(name, "uidx_"), true, true
	case strings.HasPrefix(name, "idx_"):
		return strings.TrimPrefix(name, "idx_"), false, true
	}
	return "", false, false
}
