package orders

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-refundflow/internal/aws"
	"github.com/imrishuroy/go-refundflow/internal/cache"
	"github.com/imrishuroy/go-refundflow/internal/refunds"
)

// Store encapsulates read operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	cache     cache.Service
}

// NewStore creates a new orders Store. c may be nil to disable caching.
func NewStore(client aws.DynamoDBAPI, tableName string, c cache.Service) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		cache:     c,
	}
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	key := map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// GetOrderSummary returns the refund-relevant view of an order, cached.
func (s *Store) GetOrderSummary(ctx context.Context, orderID string) (*refunds.OrderSummary, error) {
	return cache.GetOrLoad(ctx, s.cache, "order:"+orderID, func(ctx context.Context) (*refunds.OrderSummary, error) {
		o, err := s.Get(ctx, orderID)
		if err != nil || o == nil {
			return nil, err
		}
		return o.Summary(), nil
	})
}

// Summary converts the order to the shape refund requests consume.
func (o *Order) Summary() *refunds.OrderSummary {
	return &refunds.OrderSummary{
		OrderID:           o.OrderID,
		CustomerID:        o.CustomerID,
		VendorID:          o.VendorID,
		PaidAmount:        decimal.NewFromFloat(o.PaidAmount).Round(2),
		Status:            o.Status,
		RazorpayPaymentID: o.RazorpayPaymentID,
	}
}
