package refunds

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-refundflow/internal/aws"
	"github.com/imrishuroy/go-refundflow/internal/idempotency"
)

// item is the DynamoDB shape of a refund request. Amounts are stored as
// strings to keep exact decimals.
type item struct {
	RequestID       string     `dynamodbav:"request_id"` // PK
	OrderID         string     `dynamodbav:"order_id"`
	CustomerID      string     `dynamodbav:"customer_id"`
	VendorID        string     `dynamodbav:"vendor_id"`
	Amount          string     `dynamodbav:"amount"`
	Reason          string     `dynamodbav:"reason"`
	Category        string     `dynamodbav:"refund_reason_category"`
	Notes           string     `dynamodbav:"notes,omitempty"`
	Attachments     []string   `dynamodbav:"attachments,omitempty"`
	RequestStatus   string     `dynamodbav:"request_status"`
	ProcessedBy     string     `dynamodbav:"processed_by,omitempty"`
	ProcessedAt     *time.Time `dynamodbav:"processed_at,omitempty"`
	AdminNotes      string     `dynamodbav:"admin_notes,omitempty"`
	RejectionReason string     `dynamodbav:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `dynamodbav:"created_at"`
	UpdatedAt       time.Time  `dynamodbav:"updated_at"`
}

func toItem(r *RefundRequest) item {
	return item{
		RequestID:       r.ID,
		OrderID:         r.OrderID,
		CustomerID:      r.CustomerID,
		VendorID:        r.VendorID,
		Amount:          r.Amount.String(),
		Reason:          r.Reason,
		Category:        string(r.Category),
		Notes:           r.Notes,
		Attachments:     r.Attachments,
		RequestStatus:   string(r.Status),
		ProcessedBy:     r.ProcessedBy,
		ProcessedAt:     r.ProcessedAt,
		AdminNotes:      r.AdminNotes,
		RejectionReason: r.RejectionReason,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func (it item) toRequest() (*RefundRequest, error) {
	amount, err := decimal.NewFromString(it.Amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount of %s: %w", it.RequestID, err)
	}
	return &RefundRequest{
		ID:              it.RequestID,
		OrderID:         it.OrderID,
		CustomerID:      it.CustomerID,
		VendorID:        it.VendorID,
		Amount:          amount,
		Reason:          it.Reason,
		Category:        Category(it.Category),
		Notes:           it.Notes,
		Attachments:     it.Attachments,
		Status:          Status(it.RequestStatus),
		ProcessedBy:     it.ProcessedBy,
		ProcessedAt:     it.ProcessedAt,
		AdminNotes:      it.AdminNotes,
		RejectionReason: it.RejectionReason,
		CreatedAt:       it.CreatedAt,
		UpdatedAt:       it.UpdatedAt,
	}, nil
}

func decodeItem(av map[string]types.AttributeValue) (*RefundRequest, error) {
	var it item
	if err := attributevalue.UnmarshalMap(av, &it); err != nil {
		return nil, fmt.Errorf("unmarshal refund request: %w", err)
	}
	return it.toRequest()
}

// DynamoStore is the DynamoDB Repository.
type DynamoStore struct {
	client           aws.DynamoDBAPI
	tableName        string
	idempotencyTable string
	ttlWindow        time.Duration
	nowFunc          func() time.Time
}

// NewDynamoStore returns a store over tableName. idempotencyTable receives
// the idempotency record written alongside keyed inserts.
func NewDynamoStore(client aws.DynamoDBAPI, tableName, idempotencyTable string, ttlWindow time.Duration) *DynamoStore {
	return &DynamoStore{
		client:           client,
		tableName:        tableName,
		idempotencyTable: idempotencyTable,
		ttlWindow:        ttlWindow,
		nowFunc:          time.Now,
	}
}

func (s *DynamoStore) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"request_id": &types.AttributeValueMemberS{Value: id},
	}
}

// Insert writes r. With an idempotency key, the idempotency record and the
// request are written in one transaction.
func (s *DynamoStore) Insert(ctx context.Context, r *RefundRequest, idempotencyKey string) error {
	reqMap, err := attributevalue.MarshalMap(toItem(r))
	if err != nil {
		return fmt.Errorf("marshal refund request: %w", err)
	}

	if idempotencyKey == "" {
		_, err := s.client.PutItem(ctx, &dyn.PutItemInput{
			TableName:           &s.tableName,
			Item:                reqMap,
			ConditionExpression: awsString("attribute_not_exists(request_id)"),
		})
		if err != nil {
			if idempotency.IsConditionalCheckFailed(err) {
				return ErrConditionFailed
			}
			return fmt.Errorf("put refund request: %w", err)
		}
		return nil
	}

	now := s.nowFunc()
	rec := idempotency.NewRecord(idempotencyKey, r.ID, now, s.ttlWindow)
	idempMap, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal idempotency item: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:                 &s.idempotencyTable,
					Item:                      idempMap,
					ConditionExpression:       awsString(idempotency.ClaimCondition),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":now": idempotency.NowValue(now),
					},
				},
			},
			{
				Put: &types.Put{
					TableName:           &s.tableName,
					Item:                reqMap,
					ConditionExpression: awsString("attribute_not_exists(request_id)"),
				},
			},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			if len(tce.CancellationReasons) > 0 && tce.CancellationReasons[0].Code != nil &&
				*tce.CancellationReasons[0].Code == "ConditionalCheckFailed" {
				return ErrIdempotencyConflict
			}
			return fmt.Errorf("transaction canceled: %w", err)
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

func (s *DynamoStore) FindOne(ctx context.Context, id string, scope Scope) (*RefundRequest, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            s.key(id),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get refund request: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	r, err := decodeItem(out.Item)
	if err != nil {
		return nil, err
	}
	if !scope.Matches(r) {
		return nil, nil
	}
	return r, nil
}

// Find scans the table with the filter pushed down as a FilterExpression.
func (s *DynamoStore) Find(ctx context.Context, f Filter) ([]*RefundRequest, error) {
	b := newExpr()
	if f.Status != "" {
		b.eq("request_status", string(f.Status))
	}
	if f.OrderID != "" {
		b.eq("order_id", f.OrderID)
	}
	if f.Category != "" {
		b.eq("refund_reason_category", string(f.Category))
	}
	if f.CustomerID != "" {
		b.eq("customer_id", f.CustomerID)
	}
	if f.VendorID != "" {
		b.eq("vendor_id", f.VendorID)
	}

	input := &dyn.ScanInput{TableName: &s.tableName}
	if len(b.conds) > 0 {
		input.FilterExpression = awsString(strings.Join(b.conds, " AND "))
		input.ExpressionAttributeNames = b.names
		input.ExpressionAttributeValues = b.values
	}

	var out []*RefundRequest
	p := dyn.NewScanPaginator(s.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan refund requests: %w", err)
		}
		for _, av := range page.Items {
			r, err := decodeItem(av)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// FindByIDAndUpdate issues one UpdateItem conditioned on existence, scope and
// optionally the pending status.
func (s *DynamoStore) FindByIDAndUpdate(ctx context.Context, id string, scope Scope, patch Patch, stamp Stamp, requirePending bool) (*RefundRequest, error) {
	b := newExpr()
	if patch.RequestStatus != nil {
		b.set("request_status", &types.AttributeValueMemberS{Value: string(*patch.RequestStatus)})
	}
	if patch.AdminNotes != nil {
		b.set("admin_notes", &types.AttributeValueMemberS{Value: *patch.AdminNotes})
	}
	if patch.RejectionReason != nil {
		b.set("rejection_reason", &types.AttributeValueMemberS{Value: *patch.RejectionReason})
	}
	if patch.Notes != nil {
		b.set("notes", &types.AttributeValueMemberS{Value: *patch.Notes})
	}
	if patch.Attachments != nil {
		av, err := attributevalue.Marshal(*patch.Attachments)
		if err != nil {
			return nil, fmt.Errorf("marshal attachments: %w", err)
		}
		b.set("attachments", av)
	}
	if patch.Amount != nil {
		b.set("amount", &types.AttributeValueMemberS{Value: patch.Amount.String()})
	}
	if patch.Reason != nil {
		b.set("reason", &types.AttributeValueMemberS{Value: *patch.Reason})
	}
	if patch.Category != nil {
		b.set("refund_reason_category", &types.AttributeValueMemberS{Value: string(*patch.Category)})
	}
	at, err := attributevalue.Marshal(stamp.At)
	if err != nil {
		return nil, fmt.Errorf("marshal timestamp: %w", err)
	}
	b.set("processed_by", &types.AttributeValueMemberS{Value: stamp.ProcessedBy})
	b.set("processed_at", at)
	b.set("updated_at", at)

	b.conds = append(b.conds, "attribute_exists(request_id)")
	if scope.CustomerID != "" {
		b.names["#customer_id"] = "customer_id"
		b.values[":scope_customer"] = &types.AttributeValueMemberS{Value: scope.CustomerID}
		b.conds = append(b.conds, "#customer_id = :scope_customer")
	}
	if scope.VendorID != "" {
		b.names["#vendor_id"] = "vendor_id"
		b.values[":scope_vendor"] = &types.AttributeValueMemberS{Value: scope.VendorID}
		b.conds = append(b.conds, "#vendor_id = :scope_vendor")
	}
	if requirePending {
		b.names["#request_status"] = "request_status"
		b.values[":expected_status"] = &types.AttributeValueMemberS{Value: string(StatusPending)}
		b.conds = append(b.conds, "#request_status = :expected_status")
	}

	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       s.key(id),
		UpdateExpression:          awsString("SET " + strings.Join(b.sets, ", ")),
		ConditionExpression:       awsString(strings.Join(b.conds, " AND ")),
		ExpressionAttributeNames:  b.names,
		ExpressionAttributeValues: b.values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if idempotency.IsConditionalCheckFailed(err) {
			return nil, ErrConditionFailed
		}
		return nil, fmt.Errorf("update refund request: %w", err)
	}
	return decodeItem(out.Attributes)
}

func (s *DynamoStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 s.key(id),
		ConditionExpression: awsString("attribute_exists(request_id)"),
	})
	if err != nil {
		if idempotency.IsConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete refund request: %w", err)
	}
	return true, nil
}

// expr accumulates placeholders for SET clauses and equality conditions.
type expr struct {
	sets   []string
	conds  []string
	names  map[string]string
	values map[string]types.AttributeValue
}

func newExpr() *expr {
	return &expr{
		names:  map[string]string{},
		values: map[string]types.AttributeValue{},
	}
}

func (e *expr) set(attr string, v types.AttributeValue) {
	e.names["#"+attr] = attr
	e.values[":"+attr] = v
	e.sets = append(e.sets, fmt.Sprintf("#%s = :%s", attr, attr))
}

func (e *expr) eq(attr, v string) {
	e.names["#"+attr] = attr
	e.values[":"+attr] = &types.AttributeValueMemberS{Value: v}
	e.conds = append(e.conds, fmt.Sprintf("#%s = :%s", attr, attr))
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
