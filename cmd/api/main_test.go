package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-refundflow/internal/aws"
	"github.com/imrishuroy/go-refundflow/internal/aws/awstest"
	"github.com/imrishuroy/go-refundflow/internal/config"
	"github.com/imrishuroy/go-refundflow/internal/handlers"
	"github.com/imrishuroy/go-refundflow/internal/identity"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:                "test",
		StoreDriver:        config.DriverMemory,
		JWTSecret:          "secret",
		JWTIssuer:          "storefront",
		RefundRequestTable: "refund_requests",
		IdempotencyTable:   "idempotency",
		OrdersTable:        "orders",
		UsersTable:         "users",
		RefundsTable:       "refunds",
		EventsQueueURL:     "https://sqs.local/refund-events",
		IdempotencyTTL:     time.Hour,
		SummaryCacheTTL:    time.Minute,
		RequestTimeout:     time.Second,
	}
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	hc, err := buildHandlerConfig(t.Context(), cfg)
	if err != nil {
		t.Fatalf("wire: %v", err)
	}
	r := setupRouter(cfg, hc, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestWireAWS_CreateThroughRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()
	cfg.StoreDriver = config.DriverDynamoDB

	db := awstest.NewDynamo()
	db.CreateTable(cfg.RefundRequestTable, "request_id")
	db.CreateTable(cfg.IdempotencyTable, "idempotency_key")
	db.CreateTable(cfg.OrdersTable, "order_id")
	db.CreateTable(cfg.UsersTable, "user_id")
	db.CreateTable(cfg.RefundsTable, "refund_id")
	clients := &aws.AWSClients{DynamoDB: db, SQS: &awstest.SQS{}, CloudWatch: &awstest.CloudWatch{}}

	v := identity.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	hc := wireAWS(cfg, clients, handlers.HandlerConfig{Verifier: v})
	if hc.Idempotency == nil || hc.Settlements == nil {
		t.Fatalf("expected idempotency and settlement stores to be wired")
	}
	r := setupRouter(cfg, hc, nil)

	tok, _ := v.Issue(identity.Principal{ID: "C1", Role: identity.RoleCustomer}, time.Hour)
	body := `{"orderId":"O404","vendorId":"V1","amount":10,"reason":"broken"}`
	req := httptest.NewRequest(http.MethodPost, "/refund-requests", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// the order lookup is wired, so an unknown order is refused
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown order, got %d: %s", w.Code, w.Body.String())
	}
}
