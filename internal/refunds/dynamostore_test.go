package refunds

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-refundflow/internal/aws/awstest"
)

const (
	requestsTable    = "refund-requests"
	idempotencyTable = "idempotency"
)

func newTestDynamoStore(t *testing.T) (*DynamoStore, *awstest.Dynamo) {
	t.Helper()
	db := awstest.NewDynamo()
	db.CreateTable(requestsTable, "request_id")
	db.CreateTable(idempotencyTable, "idempotency_key")
	return NewDynamoStore(db, requestsTable, idempotencyTable, 48*time.Hour), db
}

func sampleRequest(id, customer, vendor string, created time.Time) *RefundRequest {
	return &RefundRequest{
		ID:          id,
		OrderID:     "O-" + id,
		CustomerID:  customer,
		VendorID:    vendor,
		Amount:      decimal.RequireFromString("199.99"),
		Reason:      "arrived broken",
		Category:    CategoryDefective,
		Attachments: []string{"photo.jpg"},
		Status:      StatusPending,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestDynamoStore_InsertAndFindOne(t *testing.T) {
	s, db := newTestDynamoStore(t)
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	r := sampleRequest("r1", "C1", "V1", now)
	if err := s.Insert(ctx, r, ""); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.Insert(ctx, r, ""); !errors.Is(err, ErrConditionFailed) {
		t.Fatalf("duplicate id: expected ErrConditionFailed, got %v", err)
	}

	item := db.Item(requestsTable, "r1")
	if amt, ok := item["amount"].(*types.AttributeValueMemberS); !ok || amt.Value != "199.99" {
		t.Fatalf("amount should be stored as an exact string, got %+v", item["amount"])
	}

	got, err := s.FindOne(ctx, "r1", Scope{CustomerID: "C1"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got == nil || !got.Amount.Equal(r.Amount) || got.Category != CategoryDefective || len(got.Attachments) != 1 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("createdAt mismatch: %v", got.CreatedAt)
	}

	for _, scope := range []Scope{{CustomerID: "C2"}, {VendorID: "V2"}} {
		got, err := s.FindOne(ctx, "r1", scope)
		if err != nil || got != nil {
			t.Fatalf("scope %+v: expected nil, got %+v %v", scope, got, err)
		}
	}
	if got, _ := s.FindOne(ctx, "nope", Scope{}); got != nil {
		t.Fatalf("expected nil for unknown id")
	}
}

func TestDynamoStore_InsertWithIdempotencyKey(t *testing.T) {
	s, db := newTestDynamoStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.Insert(ctx, sampleRequest("r1", "C1", "V1", now), "C1:key-1"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if db.Len(idempotencyTable) != 1 || db.Len(requestsTable) != 1 {
		t.Fatalf("expected one item in each table")
	}
	rec := db.Item(idempotencyTable, "C1:key-1")
	if rid, ok := rec["resource_id"].(*types.AttributeValueMemberS); !ok || rid.Value != "r1" {
		t.Fatalf("idempotency record should point at r1, got %+v", rec["resource_id"])
	}

	err := s.Insert(ctx, sampleRequest("r2", "C1", "V1", now), "C1:key-1")
	if !errors.Is(err, ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict, got %v", err)
	}
	if db.Len(requestsTable) != 1 {
		t.Fatalf("conflicting insert must not write the request")
	}
}

func TestDynamoStore_InsertReusesExpiredIdempotencyKey(t *testing.T) {
	s, db := newTestDynamoStore(t)
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	s.nowFunc = func() time.Time { return base }

	if err := s.Insert(ctx, sampleRequest("r1", "C1", "V1", base), "C1:key-1"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	s.nowFunc = func() time.Time { return base.Add(49 * time.Hour) }
	if err := s.Insert(ctx, sampleRequest("r2", "C1", "V1", base.Add(49*time.Hour)), "C1:key-1"); err != nil {
		t.Fatalf("expected expired key to be reusable, got %v", err)
	}
	if db.Len(requestsTable) != 2 {
		t.Fatalf("expected both requests stored, got %d", db.Len(requestsTable))
	}
	rec := db.Item(idempotencyTable, "C1:key-1")
	if rid, ok := rec["resource_id"].(*types.AttributeValueMemberS); !ok || rid.Value != "r2" {
		t.Fatalf("idempotency record should now point at r2, got %+v", rec["resource_id"])
	}
}

func TestDynamoStore_ConditionalTransition(t *testing.T) {
	s, _ := newTestDynamoStore(t)
	ctx := context.Background()
	created := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	if err := s.Insert(ctx, sampleRequest("r1", "C1", "V1", created), ""); err != nil {
		t.Fatalf("insert: %v", err)
	}

	accepted := StatusAccepted
	note := "ok"
	stamp := Stamp{ProcessedBy: "V1", At: created.Add(time.Hour)}

	if _, err := s.FindByIDAndUpdate(ctx, "r1", Scope{VendorID: "V2"}, Patch{RequestStatus: &accepted}, stamp, true); !errors.Is(err, ErrConditionFailed) {
		t.Fatalf("foreign vendor: expected ErrConditionFailed, got %v", err)
	}

	got, err := s.FindByIDAndUpdate(ctx, "r1", Scope{VendorID: "V1"}, Patch{RequestStatus: &accepted, AdminNotes: &note}, stamp, true)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Status != StatusAccepted || got.AdminNotes != "ok" || got.ProcessedBy != "V1" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.ProcessedAt == nil || !got.ProcessedAt.Equal(stamp.At) || !got.UpdatedAt.Equal(stamp.At) {
		t.Fatalf("stamp not applied: %+v", got)
	}

	rejected := StatusRejected
	if _, err := s.FindByIDAndUpdate(ctx, "r1", Scope{}, Patch{RequestStatus: &rejected}, stamp, true); !errors.Is(err, ErrConditionFailed) {
		t.Fatalf("terminal record: expected ErrConditionFailed, got %v", err)
	}

	// non-status fields can still change without the pending guard
	amount := decimal.RequireFromString("10.10")
	atts := []string{"a.png", "b.png"}
	got, err = s.FindByIDAndUpdate(ctx, "r1", Scope{}, Patch{Amount: &amount, Attachments: &atts}, Stamp{ProcessedBy: "A1", At: stamp.At.Add(time.Minute)}, false)
	if err != nil {
		t.Fatalf("field update: %v", err)
	}
	if !got.Amount.Equal(amount) || len(got.Attachments) != 2 || got.Status != StatusAccepted || got.ProcessedBy != "A1" {
		t.Fatalf("unexpected record: %+v", got)
	}

	if _, err := s.FindByIDAndUpdate(ctx, "missing", Scope{}, Patch{AdminNotes: &note}, stamp, false); !errors.Is(err, ErrConditionFailed) {
		t.Fatalf("missing record: expected ErrConditionFailed, got %v", err)
	}
}

func TestDynamoStore_FindAndDelete(t *testing.T) {
	s, _ := newTestDynamoStore(t)
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	for i, tc := range []struct{ id, customer, vendor string }{
		{"r1", "C1", "V1"},
		{"r2", "C1", "V2"},
		{"r3", "C2", "V1"},
	} {
		if err := s.Insert(ctx, sampleRequest(tc.id, tc.customer, tc.vendor, base.Add(time.Duration(i)*time.Minute)), ""); err != nil {
			t.Fatalf("insert %s: %v", tc.id, err)
		}
	}

	all, err := s.Find(ctx, Filter{})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(all) != 3 || all[0].ID != "r3" || all[2].ID != "r1" {
		t.Fatalf("expected newest first, got %v", ids(all))
	}

	byVendor, _ := s.Find(ctx, Filter{VendorID: "V1", Status: StatusPending})
	if len(byVendor) != 2 {
		t.Fatalf("vendor filter: got %v", ids(byVendor))
	}
	byOrder, _ := s.Find(ctx, Filter{OrderID: "O-r2", Category: CategoryDefective})
	if len(byOrder) != 1 || byOrder[0].ID != "r2" {
		t.Fatalf("order filter: got %v", ids(byOrder))
	}

	ok, err := s.DeleteByID(ctx, "r2")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	ok, err = s.DeleteByID(ctx, "r2")
	if err != nil || ok {
		t.Fatalf("second delete: expected (false, nil), got %v %v", ok, err)
	}
}

func TestDynamoStore_ClientErrorsPropagate(t *testing.T) {
	s, db := newTestDynamoStore(t)
	db.Err = errors.New("throttled")

	if _, err := s.FindOne(context.Background(), "r1", Scope{}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := s.Find(context.Background(), Filter{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_WithDynamoStore(t *testing.T) {
	s, _ := newTestDynamoStore(t)
	svc := NewService(s, Dependencies{})
	ctx := context.Background()

	r := mustCreate(t, svc, customerC1, "O1", "V1")
	if _, err := svc.Approve(ctx, vendorV1, r.ID, "confirmed"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, err := svc.Reject(ctx, vendorV1, r.ID, "")
	if err == nil {
		t.Fatalf("expected reject after approve to fail")
	}
	if _, err := svc.Reject(ctx, vendorV2, r.ID, ""); err == nil {
		t.Fatalf("expected foreign vendor reject to fail")
	}
}
