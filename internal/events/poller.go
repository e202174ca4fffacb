package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/kennethcatiis/ecommerce-platform/internal/metrics"
)

const defaultBatchSize = 100

// Poller drains the outbox on a ticker. An event is marked published only
// after the publisher accepted it, so delivery is at-least-once.
type Poller struct {
	store     Store
	publisher Publisher
	interval  time.Duration
	batchSize int
	timeout   time.Duration
	log       *slog.Logger
}

func NewPoller(store Store, publisher Publisher, interval time.Duration, log *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: defaultBatchSize,
		timeout:   5 * time.Second,
		log:       log,
	}
}

func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Info("outbox poller started", "interval", p.interval.String())
	for {
		select {
		case <-ticker.C:
			if _, err := p.ProcessPending(ctx); err != nil {
				p.log.Error("outbox poll failed", "error", err)
			}
		case <-ctx.Done():
			p.log.Info("outbox poller stopped")
			return
		}
	}
}

// ProcessPending publishes one batch and returns how many events went out.
// A failed publish stops the batch so events of one order keep their order.
func (p *Poller) ProcessPending(ctx context.Context) (int, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	pending, err := p.store.PendingEvents(fetchCtx, p.batchSize)
	cancel()
	if err != nil {
		return 0, err
	}

	published := 0
	for _, e := range pending {
		pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := p.publisher.Publish(pubCtx, e)
		cancel()
		if err != nil {
			metrics.OutboxEvents.WithLabelValues(e.Type, "failed").Inc()
			p.log.Warn("publish event failed", "event_id", e.ID, "type", e.Type, "error", err)
			return published, nil
		}

		markCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err = p.store.MarkPublished(markCtx, e.ID)
		cancel()
		if err != nil {
			return published, err
		}
		metrics.OutboxEvents.WithLabelValues(e.Type, "published").Inc()
		published++
	}
	return published, nil
}
