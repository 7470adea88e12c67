package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-refundflow/internal/aws"
	"github.com/imrishuroy/go-refundflow/internal/idempotency"
	"github.com/imrishuroy/go-refundflow/internal/refunds"
)

var (
	// ErrStatusMismatch is returned when the stored status is not the expected one.
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")

	ErrInvalidTransition = errors.New("invalid settlement transition")
)

type item struct {
	RefundID          string    `dynamodbav:"refund_id"` // PK
	OrderID           string    `dynamodbav:"order_id"`
	CustomerID        string    `dynamodbav:"customer_id"`
	VendorID          string    `dynamodbav:"vendor_id"`
	RequestRefundID   string    `dynamodbav:"request_refund_id"`
	RefundAmount      string    `dynamodbav:"refund_amount"`
	RefundStatus      string    `dynamodbav:"refund_status"`
	RazorpayPaymentID string    `dynamodbav:"razorpay_payment_id,omitempty"`
	RazorpayRefundID  string    `dynamodbav:"razorpay_refund_id,omitempty"`
	RefundMethod      string    `dynamodbav:"refund_method"`
	FailureReason     string    `dynamodbav:"failure_reason,omitempty"`
	CreatedAt         time.Time `dynamodbav:"created_at"`
	UpdatedAt         time.Time `dynamodbav:"updated_at"`
}

func (it item) toRefund() (*Refund, error) {
	amount, err := decimal.NewFromString(it.RefundAmount)
	if err != nil {
		return nil, fmt.Errorf("parse refund amount of %s: %w", it.RefundID, err)
	}
	return &Refund{
		RefundID:          it.RefundID,
		OrderID:           it.OrderID,
		CustomerID:        it.CustomerID,
		VendorID:          it.VendorID,
		RequestRefundID:   it.RequestRefundID,
		RefundAmount:      amount,
		RefundStatus:      Status(it.RefundStatus),
		RazorpayPaymentID: it.RazorpayPaymentID,
		RazorpayRefundID:  it.RazorpayRefundID,
		RefundMethod:      Method(it.RefundMethod),
		FailureReason:     it.FailureReason,
		CreatedAt:         it.CreatedAt,
		UpdatedAt:         it.UpdatedAt,
	}, nil
}

// Store encapsulates operations on the refunds table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) key(refundID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"refund_id": &types.AttributeValueMemberS{Value: refundID},
	}
}

// CreateForRequest creates the initiated refund for an accepted request. A
// refund that already exists is returned with created=false.
func (s *Store) CreateForRequest(ctx context.Context, ev refunds.Event, razorpayPaymentID string) (*Refund, bool, error) {
	if ev.Status != refunds.StatusAccepted {
		return nil, false, fmt.Errorf("refund request %s is %s, not accepted", ev.RequestID, ev.Status)
	}
	now := s.nowFunc()
	it := item{
		RefundID:          RefundIDFor(ev.RequestID),
		OrderID:           ev.OrderID,
		CustomerID:        ev.CustomerID,
		VendorID:          ev.VendorID,
		RequestRefundID:   ev.RequestID,
		RefundAmount:      ev.Amount.String(),
		RefundStatus:      string(StatusInitiated),
		RazorpayPaymentID: razorpayPaymentID,
		RefundMethod:      string(MethodOriginalPayment),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return nil, false, fmt.Errorf("marshal refund: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                av,
		ConditionExpression: awsString("attribute_not_exists(refund_id)"),
	})
	if err != nil {
		if idempotency.IsConditionalCheckFailed(err) {
			existing, gerr := s.Get(ctx, it.RefundID)
			if gerr != nil {
				return nil, false, gerr
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("put refund: %w", err)
	}
	r, err := it.toRefund()
	return r, true, err
}

// Get fetches a refund by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, refundID string) (*Refund, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            s.key(refundID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get refund: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal refund: %w", err)
	}
	return it.toRefund()
}

// GetByRequest returns the refund created for a refund request, if any.
func (s *Store) GetByRequest(ctx context.Context, requestID string) (*Refund, error) {
	return s.Get(ctx, RefundIDFor(requestID))
}

// UpdateStatus conditionally moves a refund from expected to next.
// Returns ErrStatusMismatch if the stored status is not expected.
func (s *Store) UpdateStatus(ctx context.Context, refundID string, expected, next Status, d Details) (*Refund, error) {
	if !CanTransition(expected, next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, expected, next)
	}
	now, err := attributevalue.Marshal(s.nowFunc())
	if err != nil {
		return nil, fmt.Errorf("marshal timestamp: %w", err)
	}

	updateExpr := "SET #s = :new, updated_at = :ua"
	values := map[string]types.AttributeValue{
		":new":      &types.AttributeValueMemberS{Value: string(next)},
		":expected": &types.AttributeValueMemberS{Value: string(expected)},
		":ua":       now,
	}
	if d.RazorpayRefundID != "" {
		updateExpr += ", razorpay_refund_id = :rrid"
		values[":rrid"] = &types.AttributeValueMemberS{Value: d.RazorpayRefundID}
	}
	if d.FailureReason != "" {
		updateExpr += ", failure_reason = :fr"
		values[":fr"] = &types.AttributeValueMemberS{Value: d.FailureReason}
	}

	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       s.key(refundID),
		UpdateExpression:          &updateExpr,
		ConditionExpression:       awsString("#s = :expected"),
		ExpressionAttributeNames:  map[string]string{"#s": "refund_status"},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if idempotency.IsConditionalCheckFailed(err) {
			return nil, ErrStatusMismatch
		}
		return nil, fmt.Errorf("update refund status: %w", err)
	}
	var it item
	if err := attributevalue.UnmarshalMap(out.Attributes, &it); err != nil {
		return nil, fmt.Errorf("unmarshal refund: %w", err)
	}
	return it.toRefund()
}

// Advance moves a refund to next from whatever status it currently holds,
// provided the transition is allowed. Returns (nil, nil) if the refund does
// not exist.
func (s *Store) Advance(ctx context.Context, refundID string, next Status, d Details) (*Refund, error) {
	current, err := s.Get(ctx, refundID)
	if err != nil || current == nil {
		return nil, err
	}
	return s.UpdateStatus(ctx, refundID, current.RefundStatus, next, d)
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
