// Package directory reads customer and vendor profiles from the users table.
package directory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-refundflow/internal/aws"
	"github.com/imrishuroy/go-refundflow/internal/cache"
	"github.com/imrishuroy/go-refundflow/internal/refunds"
)

// User is the item stored in the users table.
type User struct {
	UserID string `dynamodbav:"user_id"` // PK
	Name   string `dynamodbav:"name"`
	Email  string `dynamodbav:"email,omitempty"`
	Role   string `dynamodbav:"role"`
}

type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	cache     cache.Service
}

func NewStore(client aws.DynamoDBAPI, tableName string, c cache.Service) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		cache:     c,
	}
}

// Get returns the user or (nil, nil).
func (s *Store) Get(ctx context.Context, userID string) (*User, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"user_id": &types.AttributeValueMemberS{Value: userID},
		},
		ProjectionExpression:     awsString("user_id, #n, email, #r"),
		ExpressionAttributeNames: map[string]string{"#n": "name", "#r": "role"},
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var u User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}

func (s *Store) GetPartySummary(ctx context.Context, id string) (*refunds.PartySummary, error) {
	return cache.GetOrLoad(ctx, s.cache, "party:"+id, func(ctx context.Context) (*refunds.PartySummary, error) {
		u, err := s.Get(ctx, id)
		if err != nil || u == nil {
			return nil, err
		}
		return &refunds.PartySummary{
			ID:    u.UserID,
			Name:  u.Name,
			Email: u.Email,
			Role:  u.Role,
		}, nil
	})
}

func awsString(s string) *string { return &s }
