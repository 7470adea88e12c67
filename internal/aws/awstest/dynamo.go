// Package awstest provides in-memory stand-ins for the AWS clients used by the
// service. The DynamoDB fake understands the small expression dialect the
// stores emit: "SET a = :v, ..." updates and conditions/filters built from
// attribute_exists, attribute_not_exists, "=" and numeric "<" joined with
// AND, optionally OR-ed together.
package awstest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type table struct {
	key   string
	items map[string]map[string]types.AttributeValue
}

// Dynamo is a concurrency-safe in-memory DynamoDB.
type Dynamo struct {
	mu     sync.Mutex
	tables map[string]*table

	// Err, when set, is returned by every call.
	Err error

	Calls map[string]int
}

func NewDynamo() *Dynamo {
	return &Dynamo{
		tables: map[string]*table{},
		Calls:  map[string]int{},
	}
}

// CreateTable registers a table whose partition key is the string attribute key.
func (d *Dynamo) CreateTable(name, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables[name] = &table{key: key, items: map[string]map[string]types.AttributeValue{}}
}

// Seed stores item directly, bypassing conditions.
func (d *Dynamo) Seed(tableName string, item map[string]types.AttributeValue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.mustTable(tableName)
	pk, err := t.pk(item)
	if err != nil {
		panic(err)
	}
	t.items[pk] = copyItem(item)
}

// Item returns a copy of the stored item, or nil.
func (d *Dynamo) Item(tableName, pk string) map[string]types.AttributeValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	item, ok := d.mustTable(tableName).items[pk]
	if !ok {
		return nil
	}
	return copyItem(item)
}

// Len returns the number of items in a table.
func (d *Dynamo) Len(tableName string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.mustTable(tableName).items)
}

func (d *Dynamo) mustTable(name string) *table {
	t, ok := d.tables[name]
	if !ok {
		panic(fmt.Sprintf("awstest: table %q not created", name))
	}
	return t
}

func (t *table) pk(item map[string]types.AttributeValue) (string, error) {
	v, ok := item[t.key].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("missing string key %q", t.key)
	}
	return v.Value, nil
}

func (d *Dynamo) begin(op string) error {
	d.Calls[op]++
	return d.Err
}

func (d *Dynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("GetItem"); err != nil {
		return nil, err
	}
	t := d.mustTable(*params.TableName)
	pk, err := t.pk(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (d *Dynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("PutItem"); err != nil {
		return nil, err
	}
	t := d.mustTable(*params.TableName)
	pk, err := t.pk(params.Item)
	if err != nil {
		return nil, err
	}
	ok, err := evalCondition(params.ConditionExpression, t.items[pk], params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
	}
	t.items[pk] = copyItem(params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (d *Dynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("UpdateItem"); err != nil {
		return nil, err
	}
	t := d.mustTable(*params.TableName)
	pk, err := t.pk(params.Key)
	if err != nil {
		return nil, err
	}
	current := t.items[pk]
	ok, err := evalCondition(params.ConditionExpression, current, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
	}
	next := copyItem(current)
	if next == nil {
		next = copyItem(params.Key)
	}
	if err := applyUpdate(params.UpdateExpression, next, params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	t.items[pk] = next
	out := &dyn.UpdateItemOutput{}
	if params.ReturnValues == types.ReturnValueAllNew {
		out.Attributes = copyItem(next)
	}
	return out, nil
}

func (d *Dynamo) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("DeleteItem"); err != nil {
		return nil, err
	}
	t := d.mustTable(*params.TableName)
	pk, err := t.pk(params.Key)
	if err != nil {
		return nil, err
	}
	ok, err := evalCondition(params.ConditionExpression, t.items[pk], params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
	}
	delete(t.items, pk)
	return &dyn.DeleteItemOutput{}, nil
}

// Scan returns every matching item in a single page.
func (d *Dynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("Scan"); err != nil {
		return nil, err
	}
	t := d.mustTable(*params.TableName)
	out := &dyn.ScanOutput{}
	for _, item := range t.items {
		ok, err := evalCondition(params.FilterExpression, item, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Items = append(out.Items, copyItem(item))
		}
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

// TransactWriteItems supports Put and Update entries. Conditions are checked
// for every entry before anything is written.
func (d *Dynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("TransactWriteItems"); err != nil {
		return nil, err
	}

	reasons := make([]types.CancellationReason, len(params.TransactItems))
	canceled := false
	for i, it := range params.TransactItems {
		var (
			ok  bool
			err error
		)
		switch {
		case it.Put != nil:
			t := d.mustTable(*it.Put.TableName)
			pk, perr := t.pk(it.Put.Item)
			if perr != nil {
				return nil, perr
			}
			ok, err = evalCondition(it.Put.ConditionExpression, t.items[pk], it.Put.ExpressionAttributeNames, it.Put.ExpressionAttributeValues)
		case it.Update != nil:
			t := d.mustTable(*it.Update.TableName)
			pk, perr := t.pk(it.Update.Key)
			if perr != nil {
				return nil, perr
			}
			ok, err = evalCondition(it.Update.ConditionExpression, t.items[pk], it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues)
		default:
			return nil, errors.New("awstest: unsupported transact item")
		}
		if err != nil {
			return nil, err
		}
		code := "None"
		if !ok {
			code = "ConditionalCheckFailed"
			canceled = true
		}
		reasons[i] = types.CancellationReason{Code: strPtr(code)}
	}
	if canceled {
		return nil, &types.TransactionCanceledException{
			Message:             strPtr("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}

	for _, it := range params.TransactItems {
		switch {
		case it.Put != nil:
			t := d.tables[*it.Put.TableName]
			pk, _ := t.pk(it.Put.Item)
			t.items[pk] = copyItem(it.Put.Item)
		case it.Update != nil:
			t := d.tables[*it.Update.TableName]
			pk, _ := t.pk(it.Update.Key)
			next := copyItem(t.items[pk])
			if next == nil {
				next = copyItem(it.Update.Key)
			}
			if err := applyUpdate(it.Update.UpdateExpression, next, it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues); err != nil {
				return nil, err
			}
			t.items[pk] = next
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

// evalCondition supports disjunctions of AND-joined terms. Parentheses are
// not supported.
func evalCondition(expr *string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	if expr == nil || strings.TrimSpace(*expr) == "" {
		return true, nil
	}
	for _, alt := range strings.Split(*expr, " OR ") {
		ok, err := evalAnd(alt, item, names, values)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func evalAnd(expr string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	for _, term := range strings.Split(expr, " AND ") {
		term = strings.TrimSpace(term)
		switch {
		case strings.HasPrefix(term, "attribute_exists(") && strings.HasSuffix(term, ")"):
			attr := resolveName(term[len("attribute_exists("):len(term)-1], names)
			if _, ok := item[attr]; !ok {
				return false, nil
			}
		case strings.HasPrefix(term, "attribute_not_exists(") && strings.HasSuffix(term, ")"):
			attr := resolveName(term[len("attribute_not_exists("):len(term)-1], names)
			if _, ok := item[attr]; ok {
				return false, nil
			}
		case strings.Contains(term, " < "):
			parts := strings.SplitN(term, " < ", 2)
			attr := resolveName(strings.TrimSpace(parts[0]), names)
			want, ok := values[strings.TrimSpace(parts[1])].(*types.AttributeValueMemberN)
			if !ok {
				return false, fmt.Errorf("awstest: %s is not a number value", parts[1])
			}
			got, exists := item[attr].(*types.AttributeValueMemberN)
			if !exists {
				return false, nil
			}
			g, gerr := strconv.ParseFloat(got.Value, 64)
			w, werr := strconv.ParseFloat(want.Value, 64)
			if gerr != nil || werr != nil {
				return false, fmt.Errorf("awstest: bad number in %q", term)
			}
			if !(g < w) {
				return false, nil
			}
		case strings.Contains(term, " = "):
			parts := strings.SplitN(term, " = ", 2)
			attr := resolveName(strings.TrimSpace(parts[0]), names)
			want, ok := values[strings.TrimSpace(parts[1])]
			if !ok {
				return false, fmt.Errorf("awstest: missing value %s", parts[1])
			}
			got, exists := item[attr]
			if !exists || !equalValue(got, want) {
				return false, nil
			}
		default:
			return false, fmt.Errorf("awstest: unsupported expression term %q", term)
		}
	}
	return true, nil
}

func applyUpdate(expr *string, item map[string]types.AttributeValue, names map[string]string, values map[string]types.AttributeValue) error {
	if expr == nil {
		return errors.New("awstest: missing update expression")
	}
	e := strings.TrimSpace(*expr)
	if !strings.HasPrefix(e, "SET ") {
		return fmt.Errorf("awstest: unsupported update expression %q", e)
	}
	for _, assignment := range strings.Split(strings.TrimPrefix(e, "SET "), ",") {
		parts := strings.SplitN(assignment, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("awstest: bad assignment %q", assignment)
		}
		attr := resolveName(strings.TrimSpace(parts[0]), names)
		v, ok := values[strings.TrimSpace(parts[1])]
		if !ok {
			return fmt.Errorf("awstest: missing value %s", parts[1])
		}
		item[attr] = v
	}
	return nil
}

func resolveName(ref string, names map[string]string) string {
	if strings.HasPrefix(ref, "#") {
		if n, ok := names[ref]; ok {
			return n
		}
	}
	return ref
}

func equalValue(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	}
	return reflect.DeepEqual(a, b)
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func strPtr(s string) *string { return &s }
