package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/vivekvardhan7/homesaloon/libs/db"
	"github.com/vivekvardhan7/homesaloon/libs/kafkax"
	otelx "github.com/vivekvardhan7/homesaloon/libs/otel"
)

// Publisher relays committed booking events from the outbox table to Kafka.
// Messages are keyed by booking id so every consumer sees one booking's
// lifecycle in order.
type Publisher struct {
	pool      *db.Pool
	repo      *Repository
	logger    *slog.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
}

func NewPublisher(pool *db.Pool, repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Publisher{
		pool:      pool,
		repo:      repo,
		logger:    logger,
		brokers:   brokers,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      p.brokers,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 100 * time.Millisecond,
	})
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	prune := time.NewTicker(time.Hour)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-prune.C:
			n, err := p.repo.PrunePublished(ctx, 48*time.Hour)
			if err != nil {
				p.logger.Error("outbox prune failed", "err", err)
				continue
			}
			if n > 0 {
				p.logger.Info("published outbox rows pruned", "rows", n)
			}
		case <-ticker.C:
			n, err := p.drain(ctx, writer)
			if err != nil {
				p.logger.Error("outbox publish failed", "err", err)
				continue
			}
			if n > 0 {
				p.logger.Info("booking events published", "count", n)
			}
		}
	}
}

func (p *Publisher) drain(ctx context.Context, writer *kafka.Writer) (int, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records, err := p.repo.FetchUnpublished(ctx, tx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(records))
	for _, r := range records {
		msgCtx := otelx.ContextWithTraceContext(ctx, r.Traceparent, r.Tracestate)
		msg := kafka.Message{
			Topic: r.EventType,
			Key:   []byte(r.AggregateID),
			Value: r.Payload,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(r.EventID)},
				{Key: "event_type", Value: []byte(r.EventType)},
			},
		}
		msg.Headers = kafkax.InjectTraceHeaders(msgCtx, msg.Headers)
		if err := writer.WriteMessages(ctx, msg); err != nil {
			return 0, err
		}
		ids = append(ids, r.ID)
	}

	if err := p.repo.MarkPublished(ctx, tx, ids); err != nil {
		return 0, err
	}
	return len(ids), tx.Commit(ctx)
}
