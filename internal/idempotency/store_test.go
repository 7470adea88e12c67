package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-refundflow/internal/aws/awstest"
)

const table = "idempotency-table"

func newTestStore(t *testing.T) (*Store, *awstest.Dynamo) {
	t.Helper()
	db := awstest.NewDynamo()
	db.CreateTable(table, "idempotency_key")
	return NewStore(db, table, 48*time.Hour), db
}

func TestCreateIfNotExists_Get_MarkDone_MarkFailed(t *testing.T) {
	s, db := newTestStore(t)

	ctx := context.Background()
	key := "test-key-1"
	requestID := "rr-123"

	created, err := s.CreateIfNotExists(ctx, key, requestID)
	if err != nil {
		t.Fatalf("CreateIfNotExists error: %v", err)
	}
	if !created {
		t.Fatalf("expected created=true")
	}

	// second create should return created=false (exists)
	created2, err := s.CreateIfNotExists(ctx, key, requestID)
	if err != nil {
		t.Fatalf("second CreateIfNotExists error: %v", err)
	}
	if created2 {
		t.Fatalf("expected created=false on duplicate create")
	}

	rec, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec == nil {
		t.Fatalf("expected record, got nil")
	}
	if rec.Status != StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", rec.Status)
	}
	if rec.ResourceID != requestID {
		t.Fatalf("resource id mismatch: %s", rec.ResourceID)
	}

	if err := s.MarkDone(ctx, key, `{"ok":true}`, 201); err != nil {
		t.Fatalf("MarkDone error: %v", err)
	}

	item := db.Item(table, key)
	if item == nil {
		t.Fatalf("item missing")
	}
	if st, ok := item["status"].(*types.AttributeValueMemberS); !ok || st.Value != StatusDone {
		t.Fatalf("status not updated to DONE, got %+v", item["status"])
	}
	if rb, ok := item["response_body"].(*types.AttributeValueMemberS); !ok || rb.Value != `{"ok":true}` {
		t.Fatalf("response_body not set correctly: %+v", item["response_body"])
	}

	rec, err = s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after done: %v", err)
	}
	if rec.ResponseStatus != 201 {
		t.Fatalf("expected response status 201, got %d", rec.ResponseStatus)
	}

	// MarkFailed overwrites status
	if err := s.MarkFailed(ctx, key, "failed-reason"); err != nil {
		t.Fatalf("MarkFailed error: %v", err)
	}
	item2 := db.Item(table, key)
	if st, ok := item2["status"].(*types.AttributeValueMemberS); !ok || st.Value != StatusFailed {
		t.Fatalf("status not updated to FAILED, got %+v", item2["status"])
	}
	if n, ok := item2["note"].(*types.AttributeValueMemberS); !ok || n.Value != "failed-reason" {
		t.Fatalf("note not set, got %+v", item2["note"])
	}
}

func TestMarkDone_UnknownKey(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.MarkDone(context.Background(), "missing", "{}", 201); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestGet_ExpiredRecordIsIgnored(t *testing.T) {
	s, _ := newTestStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.nowFunc = func() time.Time { return base }

	ctx := context.Background()
	if _, err := s.CreateIfNotExists(ctx, "k", "rr-1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	s.nowFunc = func() time.Time { return base.Add(49 * time.Hour) }
	rec, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected expired record to be ignored, got %+v", rec)
	}
}

func TestCreateIfNotExists_ReclaimsExpiredKey(t *testing.T) {
	s, _ := newTestStore(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.nowFunc = func() time.Time { return base }

	ctx := context.Background()
	if _, err := s.CreateIfNotExists(ctx, "k", "rr-1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.MarkDone(ctx, "k", `{"ok":true}`, 201); err != nil {
		t.Fatalf("mark done: %v", err)
	}

	// still live: the key stays claimed
	s.nowFunc = func() time.Time { return base.Add(47 * time.Hour) }
	created, err := s.CreateIfNotExists(ctx, "k", "rr-2")
	if err != nil || created {
		t.Fatalf("expected live key to stay claimed, got created=%v err=%v", created, err)
	}

	// expired but not yet swept by TTL
	s.nowFunc = func() time.Time { return base.Add(49 * time.Hour) }
	created, err = s.CreateIfNotExists(ctx, "k", "rr-2")
	if err != nil || !created {
		t.Fatalf("expected expired key to be reclaimed, got created=%v err=%v", created, err)
	}
	rec, err := s.Get(ctx, "k")
	if err != nil || rec == nil {
		t.Fatalf("get: %v %v", rec, err)
	}
	if rec.ResourceID != "rr-2" || rec.Status != StatusInProgress {
		t.Fatalf("expected fresh record for rr-2, got %+v", rec)
	}
}

func TestIsConditionalCheckFailed(t *testing.T) {
	if !IsConditionalCheckFailed(&types.ConditionalCheckFailedException{}) {
		t.Fatalf("expected typed exception to match")
	}
	if IsConditionalCheckFailed(context.Canceled) {
		t.Fatalf("unexpected match")
	}
}

func TestAttributevalueMarshal_Unmarshal(t *testing.T) {
	now := time.Now().Round(time.Second)
	rec := NewRecord("k1", "rr-1", now, 24*time.Hour)
	m, err := attributevalue.MarshalMap(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out IdempotencyRecord
	if err := attributevalue.UnmarshalMap(m, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.IdempotencyKey != rec.IdempotencyKey || out.ResourceID != "rr-1" {
		t.Fatalf("unmarshal mismatch: %+v", out)
	}
	if out.ExpiresAt != now.Add(24*time.Hour).Unix() {
		t.Fatalf("unexpected expiry %d", out.ExpiresAt)
	}
}
