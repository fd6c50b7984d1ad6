package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/vector-scene-tiler/internal/core/observability"
	"github.com/mohammed-shakir/vector-scene-tiler/internal/output"
)

// Invalidator drops cached objects named by consumed events.
type Invalidator interface {
	Invalidate(paths ...string)
	InvalidateLayer(l output.Layout) int
}

type ConsumerConfig struct {
	Brokers             []string
	Topic               string
	GroupID             string
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	InitialOffsetOldest bool
}

// Consumer follows the cell event topic and evicts tile server cache
// entries that a compile run has rewritten.
type Consumer struct {
	cfg    ConsumerConfig
	logger *slog.Logger
	inv    Invalidator
}

func NewConsumer(cfg ConsumerConfig, logger *slog.Logger, inv Invalidator) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = 30 * time.Second
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 3 * time.Second
	}
	if cfg.RebalanceTimeout <= 0 {
		cfg.RebalanceTimeout = 30 * time.Second
	}
	return &Consumer{cfg: cfg, logger: logger, inv: inv}
}

// Start consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if c.inv == nil {
		return errors.New("events: consumer needs an invalidator")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("events: create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}
	c.logger.Info("cell event consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil && ctx.Err() == nil {
			c.logger.Error("consumer error", "err", err, "topic", c.cfg.Topic)
			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}
		}
		if ctx.Err() != nil {
			c.logger.Info("cell event consumer shutting down")
			return nil
		}
	}
}

// ProcessOne applies a single event. Undecodable messages are logged and
// skipped so they cannot stall the partition.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		observability.IncEventConsumed("invalid", err)
		c.logger.WarnContext(ctx, "skipping undecodable event",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}

	switch {
	case ev.Status == StatusIndexed && ev.Path != "":
		l := output.Layout{Prefix: strings.TrimSuffix(ev.Path, ".json")}
		n := c.inv.InvalidateLayer(l)
		c.logger.DebugContext(ctx, "invalidated layer indexes", "layer", ev.Layer, "run_id", ev.RunID, "entries", n)
	case ev.Path != "":
		c.inv.Invalidate(ev.Path)
		c.logger.DebugContext(ctx, "invalidated content", "layer", ev.Layer, "cell", ev.Cell, "path", ev.Path)
	}
	observability.IncEventConsumed(ev.Status, nil)
	return nil
}
