package backend

import (
	"context"
	"fmt"

	"calmledger/internal/amqp"
	"calmledger/internal/log"
	"calmledger/internal/storage"
)

// Factory builds backends. The AMQP dialer is swappable for tests.
type Factory struct {
	logger   *log.Logger
	dialAMQP func(url, exchange, queue string, logger *log.Logger) (*amqp.Client, error)
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &Factory{
		logger:   logger.WithComponent(log.ComponentBackend),
		dialAMQP: amqp.NewClient,
	}
}

// Create opens the configured slot. An unreachable broker is logged and
// the backend comes up without publishing.
func (f *Factory) Create(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slot, err := f.openSlot(cfg)
	if err != nil {
		return nil, err
	}
	res := &Result{Type: cfg.Type, Slot: slot, closers: []func() error{slot.Close}}

	if cfg.AMQPURL != "" {
		client, err := f.dialAMQP(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events",
				log.FieldError, err.Error())
		} else {
			res.Publisher = client
			res.closers = append(res.closers, client.Close)
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	f.logger.InfoContext(ctx, "Initialized backend",
		log.FieldBackend, cfg.Type.String(),
		"events_enabled", res.Publisher != nil)
	return res, nil
}

func (f *Factory) openSlot(cfg Config) (storage.Slot, error) {
	switch cfg.Type {
	case SQLiteBackend:
		slot, err := storage.NewSQLiteSlot(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite slot: %w", err)
		}
		return slot, nil
	case FileBackend:
		slot, err := storage.NewFileSlot(cfg.StateDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file slot: %w", err)
		}
		return slot, nil
	case MemoryBackend:
		return storage.NewMemorySlot(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}
