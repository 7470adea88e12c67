package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"

	"github.com/imrishuroy/go-refundflow/internal/aws/awstest"
	"github.com/imrishuroy/go-refundflow/internal/cache"
)

func TestGetPartySummary(t *testing.T) {
	db := awstest.NewDynamo()
	db.CreateTable("users", "user_id")
	item, _ := attributevalue.MarshalMap(User{UserID: "V1", Name: "Acme Goods", Email: "ops@acme.test", Role: "vendor"})
	db.Seed("users", item)

	s := NewStore(db, "users", cache.NewMemoryCache(time.Minute, time.Minute))
	ctx := context.Background()

	p, err := s.GetPartySummary(ctx, "V1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if p.Name != "Acme Goods" || p.Role != "vendor" {
		t.Fatalf("unexpected summary %+v", p)
	}
	if _, err := s.GetPartySummary(ctx, "V1"); err != nil {
		t.Fatalf("cached summary: %v", err)
	}
	if db.Calls["GetItem"] != 1 {
		t.Fatalf("expected the second lookup to hit the cache, calls=%d", db.Calls["GetItem"])
	}

	missing, err := s.GetPartySummary(ctx, "nobody")
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil), got %+v %v", missing, err)
	}
}

func TestGet_Error(t *testing.T) {
	db := awstest.NewDynamo()
	db.CreateTable("users", "user_id")
	db.Err = errors.New("throttled")

	if _, err := NewStore(db, "users", nil).Get(context.Background(), "C1"); err == nil {
		t.Fatalf("expected error")
	}
}
