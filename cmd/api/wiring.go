package main

import (
	"context"
	"fmt"
	"time"

	"github.com/imrishuroy/go-refundflow/internal/aws"
	"github.com/imrishuroy/go-refundflow/internal/cache"
	"github.com/imrishuroy/go-refundflow/internal/config"
	"github.com/imrishuroy/go-refundflow/internal/directory"
	"github.com/imrishuroy/go-refundflow/internal/handlers"
	"github.com/imrishuroy/go-refundflow/internal/identity"
	"github.com/imrishuroy/go-refundflow/internal/idempotency"
	"github.com/imrishuroy/go-refundflow/internal/logger"
	"github.com/imrishuroy/go-refundflow/internal/metrics"
	"github.com/imrishuroy/go-refundflow/internal/orders"
	"github.com/imrishuroy/go-refundflow/internal/refunds"
	"github.com/imrishuroy/go-refundflow/internal/settlement"
)

// buildHandlerConfig wires the lifecycle service for the configured store
// driver. The memory driver has no lookups, events or settlements.
func buildHandlerConfig(ctx context.Context, cfg *config.Config) (handlers.HandlerConfig, error) {
	hc := handlers.HandlerConfig{
		Verifier: identity.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer),
	}

	if cfg.StoreDriver == config.DriverMemory {
		logger.Get().Warn().Msg("using in-memory store, data is lost on restart")
		hc.Service = refunds.NewService(refunds.NewMemoryStore(), refunds.Dependencies{Metrics: metrics.Noop{}})
		return hc, nil
	}

	clients, err := aws.NewAWSClients(ctx, cfg.AWSRegion, cfg.AWSEndpoint)
	if err != nil {
		return hc, fmt.Errorf("init aws clients: %w", err)
	}
	return wireAWS(cfg, clients, hc), nil
}

func wireAWS(cfg *config.Config, clients *aws.AWSClients, hc handlers.HandlerConfig) handlers.HandlerConfig {
	summaries := cache.NewMemoryCache(cfg.SummaryCacheTTL, 2*cfg.SummaryCacheTTL+time.Minute)

	deps := refunds.Dependencies{
		Metrics: metrics.NewRecorder(clients.CloudWatch, cfg.MetricsNamespace),
	}
	if cfg.OrdersTable != "" {
		deps.Orders = orders.NewStore(clients.DynamoDB, cfg.OrdersTable, summaries)
	}
	if cfg.UsersTable != "" {
		deps.Parties = directory.NewStore(clients.DynamoDB, cfg.UsersTable, summaries)
	}
	if cfg.EventsQueueURL != "" {
		deps.Notifier = refunds.NewQueueNotifier(aws.NewPublisher(clients.SQS, cfg.EventsQueueURL))
	} else {
		logger.Get().Warn().Msg("REFUND_EVENTS_QUEUE_URL not set, transitions will not be published")
	}

	repo := refunds.NewDynamoStore(clients.DynamoDB, cfg.RefundRequestTable, cfg.IdempotencyTable, cfg.IdempotencyTTL)
	hc.Service = refunds.NewService(repo, deps)
	hc.Idempotency = idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL)
	if cfg.RefundsTable != "" {
		hc.Settlements = settlement.NewStore(clients.DynamoDB, cfg.RefundsTable)
	}
	return hc
}
