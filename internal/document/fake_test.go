package document

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rzpsarthak13/modstore/internal/core"
)

// fakeDynamo is an in-memory stand-in for the DynamoDB API. It understands
// the expression shapes the driver and the tests produce: equality terms
// joined by AND, attribute_not_exists, and SET lists.
type fakeDynamo struct {
	mu       sync.Mutex
	tables   map[string]*fakeTable
	pageSize int
	calls    map[string]int
	failList error
	// weakScans counts Scans that did not ask for a consistent read.
	weakScans int
}

type fakeTable struct {
	order []string
	items map[string]map[string]types.AttributeValue
	gsis  []types.GlobalSecondaryIndexDescription
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{tables: make(map[string]*fakeTable), calls: make(map[string]int)}
}

func (f *fakeDynamo) factory() ClientFactory {
	return func(ctx context.Context, endpoint Endpoint, username, password string) (API, error) {
		return f, nil
	}
}

func (f *fakeDynamo) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeDynamo) table(name *string) (*fakeTable, error) {
	t, ok := f.tables[aws.ToString(name)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("table not found: " + aws.ToString(name))}
	}
	return t, nil
}

func (f *fakeDynamo) ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ListTables"]++
	if f.failList != nil {
		return nil, f.failList
	}
	var names []string
	for name := range f.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return &dynamodb.ListTablesOutput{TableNames: names}, nil
}

func (f *fakeDynamo) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["DescribeTable"]++
	t, err := f.table(params.TableName)
	if err != nil {
		return nil, err
	}
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{
		TableName:              params.TableName,
		TableStatus:            types.TableStatusActive,
		GlobalSecondaryIndexes: append([]types.GlobalSecondaryIndexDescription(nil), t.gsis...),
	}}, nil
}

func (f *fakeDynamo) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateTable"]++
	name := aws.ToString(params.TableName)
	if _, ok := f.tables[name]; ok {
		return nil, &types.ResourceInUseException{Message: aws.String("table exists: " + name)}
	}
	f.tables[name] = &fakeTable{items: make(map[string]map[string]types.AttributeValue)}
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *fakeDynamo) UpdateTable(ctx context.Context, params *dynamodb.UpdateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["UpdateTable"]++
	t, err := f.table(params.TableName)
	if err != nil {
		return nil, err
	}
	for _, update := range params.GlobalSecondaryIndexUpdates {
		if update.Create == nil {
			continue
		}
		t.gsis = append(t.gsis, types.GlobalSecondaryIndexDescription{
			IndexName:   update.Create.IndexName,
			KeySchema:   update.Create.KeySchema,
			IndexStatus: types.IndexStatusActive,
		})
	}
	return &dynamodb.UpdateTableOutput{}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["PutItem"]++
	t, err := f.table(params.TableName)
	if err != nil {
		return nil, err
	}
	id := keyOf(params.Item)
	if _, exists := t.items[id]; exists && aws.ToString(params.ConditionExpression) != "" {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("conditional request failed")}
	}
	if _, exists := t.items[id]; !exists {
		t.order = append(t.order, id)
	}
	t.items[id] = copyItem(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

var setTerm = regexp.MustCompile(`^(#\w+)\s*=\s*(:\w+)$`)

func (f *fakeDynamo) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["UpdateItem"]++
	t, err := f.table(params.TableName)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[keyOf(params.Key)]
	if !ok {
		item = copyItem(params.Key)
		t.items[keyOf(params.Key)] = item
		t.order = append(t.order, keyOf(params.Key))
	}
	expr := strings.TrimPrefix(aws.ToString(params.UpdateExpression), "SET ")
	for _, term := range strings.Split(expr, ",") {
		m := setTerm.FindStringSubmatch(strings.TrimSpace(term))
		if m == nil {
			return nil, fmt.Errorf("fake: unsupported update term %q", term)
		}
		item[params.ExpressionAttributeNames[m[1]]] = params.ExpressionAttributeValues[m[2]]
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["DeleteItem"]++
	t, err := f.table(params.TableName)
	if err != nil {
		return nil, err
	}
	id := keyOf(params.Key)
	delete(t.items, id)
	for i, k := range t.order {
		if k == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Scan"]++
	if !aws.ToBool(params.ConsistentRead) {
		f.weakScans++
	}
	t, err := f.table(params.TableName)
	if err != nil {
		return nil, err
	}

	start := 0
	if params.ExclusiveStartKey != nil {
		last := keyOf(params.ExclusiveStartKey)
		for i, k := range t.order {
			if k == last {
				start = i + 1
				break
			}
		}
	}
	end := len(t.order)
	if f.pageSize > 0 && start+f.pageSize < end {
		end = start + f.pageSize
	}

	out := &dynamodb.ScanOutput{}
	for _, id := range t.order[start:end] {
		item := t.items[id]
		match, err := evaluate(aws.ToString(params.FilterExpression), params.ExpressionAttributeNames, params.ExpressionAttributeValues, item)
		if err != nil {
			return nil, err
		}
		if match {
			out.Items = append(out.Items, copyItem(item))
		}
	}
	out.Count = int32(len(out.Items))
	if end < len(t.order) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{idField: t.items[t.order[end-1]][idField]}
	}
	return out, nil
}

func (f *fakeDynamo) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Query"]++
	t, err := f.table(params.TableName)
	if err != nil {
		return nil, err
	}
	found := false
	for _, gsi := range t.gsis {
		if aws.ToString(gsi.IndexName) == aws.ToString(params.IndexName) {
			found = true
		}
	}
	if !found {
		return nil, &types.ResourceNotFoundException{Message: aws.String("index not found")}
	}
	out := &dynamodb.QueryOutput{}
	for _, id := range t.order {
		match, err := evaluate(aws.ToString(params.KeyConditionExpression), params.ExpressionAttributeNames, params.ExpressionAttributeValues, t.items[id])
		if err != nil {
			return nil, err
		}
		if match {
			out.Count++
			if params.Select != types.SelectCount {
				out.Items = append(out.Items, map[string]types.AttributeValue{idField: t.items[id][idField]})
			}
		}
	}
	return out, nil
}

var selectStatement = regexp.MustCompile(`^SELECT \* FROM "?(\w+)"?$`)

func (f *fakeDynamo) ExecuteStatement(ctx context.Context, params *dynamodb.ExecuteStatementInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ExecuteStatementOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ExecuteStatement"]++
	m := selectStatement.FindStringSubmatch(strings.TrimSpace(aws.ToString(params.Statement)))
	if m == nil {
		return nil, fmt.Errorf("fake: unsupported statement %q", aws.ToString(params.Statement))
	}
	t, err := f.table(aws.String(m[1]))
	if err != nil {
		return nil, err
	}
	out := &dynamodb.ExecuteStatementOutput{}
	for _, id := range t.order {
		out.Items = append(out.Items, copyItem(t.items[id]))
	}
	return out, nil
}

var (
	equalTerm    = regexp.MustCompile(`^(#?\w+)\s*=\s*(:\w+)$`)
	notExistTerm = regexp.MustCompile(`^attribute_not_exists\((#?\w+)\)$`)
)

// evaluate supports "a = :v", "attribute_not_exists(a)" and AND chains of them.
func evaluate(expr string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}
	resolve := func(name string) string {
		if strings.HasPrefix(name, "#") {
			return names[name]
		}
		return name
	}
	for _, term := range strings.Split(expr, " AND ") {
		term = strings.TrimSpace(term)
		if m := notExistTerm.FindStringSubmatch(term); m != nil {
			if _, ok := item[resolve(m[1])]; ok {
				return false, nil
			}
			continue
		}
		m := equalTerm.FindStringSubmatch(term)
		if m == nil {
			return false, fmt.Errorf("fake: unsupported expression %q", term)
		}
		want, ok := values[m[2]]
		if !ok {
			return false, fmt.Errorf("fake: missing value %s", m[2])
		}
		got, ok := item[resolve(m[1])]
		if !ok {
			return false, nil
		}
		a, err := fromAttribute(got)
		if err != nil {
			return false, err
		}
		b, err := fromAttribute(want)
		if err != nil {
			return false, err
		}
		if !core.ValuesEqual(a, b) {
			return false, nil
		}
	}
	return true, nil
}

func keyOf(item map[string]types.AttributeValue) string {
	if s, ok := item[idField].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
