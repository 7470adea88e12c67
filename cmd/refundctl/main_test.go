package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-refundflow/internal/aws/awstest"
	"github.com/imrishuroy/go-refundflow/internal/config"
	"github.com/imrishuroy/go-refundflow/internal/identity"
	"github.com/imrishuroy/go-refundflow/internal/refunds"
	"github.com/imrishuroy/go-refundflow/internal/settlement"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("STORE_DRIVER", config.DriverMemory)
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("JWT_ISSUER", "storefront")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTokenCommand(t *testing.T) {
	out, err := run(t, "token", "vendor", "--id", "V1", "--ttl", "10m")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	p, err := identity.NewVerifier("cli-secret", "storefront").Principal(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.ID != "V1" || p.Role != identity.RoleVendor {
		t.Fatalf("unexpected principal %+v", p)
	}

	if _, err := run(t, "token", "root", "--id", "X"); err == nil {
		t.Fatalf("expected unknown role error")
	}
	if _, err := run(t, "token", "admin"); err == nil {
		t.Fatalf("expected missing id error")
	}
}

func TestSettleCommand(t *testing.T) {
	db := awstest.NewDynamo()
	db.CreateTable("refunds", "refund_id")
	store := settlement.NewStore(db, "refunds")

	prev := newAdvancer
	newAdvancer = func(context.Context, *config.Config) (settlementAdvancer, error) { return store, nil }
	t.Cleanup(func() { newAdvancer = prev })

	refund, _, err := store.CreateForRequest(context.Background(), refunds.Event{
		Type:        refunds.EventAccepted,
		RequestID:   "rr-1",
		OrderID:     "O1",
		CustomerID:  "C1",
		VendorID:    "V1",
		Amount:      decimal.NewFromInt(100),
		Status:      refunds.StatusAccepted,
		ProcessedBy: "V1",
		ProcessedAt: time.Now(),
	}, "pay_1")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := run(t, "settle", refund.RefundID, "failed"); err == nil {
		t.Fatalf("expected failure reason to be required")
	}
	if _, err := run(t, "settle", refund.RefundID, "completed"); err == nil {
		t.Fatalf("expected initiated -> completed to be refused")
	}

	out, err := run(t, "settle", refund.RefundID, "processing")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !strings.Contains(out, `"refundStatus": "processing"`) {
		t.Fatalf("unexpected output %s", out)
	}

	if _, err := run(t, "settle", "missing", "processing"); err == nil {
		t.Fatalf("expected not found")
	}
}
