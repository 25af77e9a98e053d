// Command ledger-audit consumes ledger events from the broker and writes
// them to the structured log.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"calmledger/internal/amqp"
	"calmledger/internal/cli"
	"calmledger/internal/core"
	"calmledger/internal/log"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "ledger-audit:", err)
		os.Exit(1)
	}
}

func run() error {
	if err := cli.LoadEnvFile(); err != nil {
		return err
	}
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if cfg.AMQPURL == "" {
		return errors.New("AMQP_URL is required")
	}
	logger := cli.SetupLogger(cfg).WithComponent(log.ComponentAudit)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize AMQP client: %w", err)
	}
	defer client.Close()

	logger.Info("Starting ledger-audit", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)

	err = client.ConsumeWithReconnect(ctx, func(ctx context.Context, ev core.LedgerEvent) error {
		logger.InfoContext(ctx, "Ledger event",
			log.FieldEventType, string(ev.Type),
			log.FieldEntity, ev.Type.Entity(),
			log.FieldEntityID, ev.EntityID,
			log.FieldRevision, ev.Revision,
			"at", ev.At)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("ledger-audit stopped")
	return nil
}
