package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/go-refundflow/internal/aws"
	"github.com/imrishuroy/go-refundflow/internal/config"
	"github.com/imrishuroy/go-refundflow/internal/logger"
)

const sampleBody = `{"type":"refund_request.accepted","requestId":"local-rr-1","orderId":"local-order-1","customerId":"C1","vendorId":"V1","amount":"100.00","status":"accepted","processedBy":"V1"}`

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Get().Fatal().Err(err).Msg("invalid configuration")
	}
	logger.Init(cfg.Env, cfg.LogLevel)
	log := logger.Get()

	ctx := context.Background()
	clients, err := aws.NewAWSClients(ctx, cfg.AWSRegion, cfg.AWSEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init aws clients")
	}
	p := NewProcessor(clients, cfg)

	// If RUN_LOCAL=true, process a single simulated SQS event and exit.
	if cfg.RunLocal {
		body := sampleBody
		if b := os.Getenv("LOCAL_SQS_BODY"); b != "" {
			body = b
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{{MessageId: "local-1", Body: body}},
		}
		if err := p.Handle(ctx, event); err != nil {
			log.Fatal().Err(err).Msg("local handler error")
		}
		return
	}

	lambda.Start(p.Handle)
}
