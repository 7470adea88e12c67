package main

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/imrishuroy/go-refundflow/internal/aws"
	"github.com/imrishuroy/go-refundflow/internal/config"
	"github.com/imrishuroy/go-refundflow/internal/settlement"
)

type settlementAdvancer interface {
	Advance(ctx context.Context, refundID string, next settlement.Status, d settlement.Details) (*settlement.Refund, error)
}

// newAdvancer is swapped in tests.
var newAdvancer = func(ctx context.Context, cfg *config.Config) (settlementAdvancer, error) {
	clients, err := aws.NewAWSClients(ctx, cfg.AWSRegion, cfg.AWSEndpoint)
	if err != nil {
		return nil, fmt.Errorf("init aws clients: %w", err)
	}
	return settlement.NewStore(clients.DynamoDB, cfg.RefundsTable), nil
}

func settleCmd() *cobra.Command {
	var d settlement.Details
	cmd := &cobra.Command{
		Use:   "settle <refundId> <processing|completed|failed>",
		Short: "Advance a settlement refund to the next status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			next := settlement.Status(args[1])
			if !next.Valid() || next == settlement.StatusInitiated {
				return fmt.Errorf("invalid target status %q", args[1])
			}
			if next == settlement.StatusFailed && d.FailureReason == "" {
				return fmt.Errorf("--failure-reason is required when failing a refund")
			}

			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			store, err := newAdvancer(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			refund, err := store.Advance(cmd.Context(), args[0], next, d)
			if err != nil {
				return err
			}
			if refund == nil {
				return fmt.Errorf("refund %s not found", args[0])
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(refund)
		},
	}
	cmd.Flags().StringVar(&d.RazorpayRefundID, "razorpay-refund-id", "", "gateway refund id")
	cmd.Flags().StringVar(&d.FailureReason, "failure-reason", "", "reason recorded on failure")
	return cmd
}
