package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/goccy/go-json"

	"github.com/imrishuroy/go-refundflow/internal/aws"
	"github.com/imrishuroy/go-refundflow/internal/config"
	"github.com/imrishuroy/go-refundflow/internal/idempotency"
	"github.com/imrishuroy/go-refundflow/internal/logger"
	"github.com/imrishuroy/go-refundflow/internal/orders"
	"github.com/imrishuroy/go-refundflow/internal/refunds"
	"github.com/imrishuroy/go-refundflow/internal/settlement"
)

var errOrderNotFound = errors.New("order not found")

// Processor turns refund request events into settlement refunds.
type Processor struct {
	idempStore  *idempotency.Store
	orderStore  *orders.Store
	settlements *settlement.Store
}

// NewProcessor creates a new worker processor with AWS clients injected.
func NewProcessor(clients *aws.AWSClients, cfg *config.Config) *Processor {
	return &Processor{
		idempStore:  idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL),
		orderStore:  orders.NewStore(clients.DynamoDB, cfg.OrdersTable, nil),
		settlements: settlement.NewStore(clients.DynamoDB, cfg.RefundsTable),
	}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	log := logger.FromContext(ctx)
	log.Info().Int("records", len(ev.Records)).Msg("received SQS batch")
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Lambda retries the batch; repeated failures land in the DLQ.
			log.Error().Err(err).Str("message_id", rec.MessageId).Msg("worker error")
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var ev refunds.Event
	if err := json.Unmarshal([]byte(rec.Body), &ev); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if ev.RequestID == "" {
		return fmt.Errorf("invalid message body: missing requestId")
	}

	log := logger.FromContext(ctx).With().
		Str("message_id", rec.MessageId).
		Str("event_type", ev.Type).
		Str("refund_request_id", ev.RequestID).
		Logger()

	switch ev.Type {
	case refunds.EventAccepted:
	case refunds.EventRejected:
		log.Info().Msg("rejected request, nothing to settle")
		return nil
	default:
		log.Warn().Msg("unknown event type, skipping")
		return nil
	}

	// Step 1: claim the event; redeliveries of a settled event are no-ops
	key := "settle:" + ev.RequestID
	refundID := settlement.RefundIDFor(ev.RequestID)
	created, err := p.idempStore.CreateIfNotExists(ctx, key, refundID)
	if err != nil {
		return fmt.Errorf("claim event: %w", err)
	}
	if !created {
		existing, err := p.idempStore.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("read idempotency record: %w", err)
		}
		if existing != nil && existing.Status == idempotency.StatusDone {
			log.Info().Str("refund_id", refundID).Msg("already settled")
			return nil
		}
		// IN_PROGRESS or FAILED: the refund write below is idempotent, retry it
	}

	// Step 2: the payment id lives on the order
	order, err := p.orderStore.Get(ctx, ev.OrderID)
	if err != nil {
		return fmt.Errorf("failed to fetch order: %w", err)
	}
	if order == nil {
		p.markFailed(ctx, key, "order not found")
		return fmt.Errorf("%w: %s", errOrderNotFound, ev.OrderID)
	}

	// Step 3: create the initiated refund
	refund, fresh, err := p.settlements.CreateForRequest(ctx, ev, order.RazorpayPaymentID)
	if err != nil {
		p.markFailed(ctx, key, err.Error())
		return fmt.Errorf("create settlement refund: %w", err)
	}

	// Step 4: mark idempotency DONE
	body, err := json.Marshal(map[string]string{
		"refundId":     refund.RefundID,
		"refundStatus": string(refund.RefundStatus),
	})
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := p.idempStore.MarkDone(ctx, key, string(body), 200); err != nil {
		return fmt.Errorf("failed to update idempotency: %w", err)
	}

	log.Info().
		Str("refund_id", refund.RefundID).
		Bool("created", fresh).
		Str("razorpay_payment_id", order.RazorpayPaymentID).
		Msg("settlement refund initiated")
	return nil
}

func (p *Processor) markFailed(ctx context.Context, key, note string) {
	if err := p.idempStore.MarkFailed(ctx, key, note); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("idempotency_key", key).Msg("mark failed")
	}
}
