package refunds

import (
	"context"

	"github.com/imrishuroy/go-refundflow/internal/aws"
	"github.com/imrishuroy/go-refundflow/internal/logger"
)

// QueueNotifier publishes lifecycle events to SQS.
type QueueNotifier struct {
	publisher *aws.Publisher
}

func NewQueueNotifier(p *aws.Publisher) *QueueNotifier {
	return &QueueNotifier{publisher: p}
}

func (n *QueueNotifier) Publish(ctx context.Context, ev Event) error {
	msgID, err := n.publisher.SendJSON(ctx, ev, map[string]string{
		"event_type": ev.Type,
		"request_id": ev.RequestID,
		"order_id":   ev.OrderID,
	})
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Debug().
		Str("message_id", msgID).
		Str("event_type", ev.Type).
		Str("refund_request_id", ev.RequestID).
		Msg("refund event published")
	return nil
}
