package outbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

type Store interface {
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, ids []int64) error
}

// Publisher is satisfied by *kafka.Writer.
type Publisher interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter returns a writer without a fixed topic; each message carries
// the topic stored with its outbox row.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// Relay moves committed outbox rows to the broker. Delivery is at-least-once:
// a crash between publish and MarkSent republishes the batch.
type Relay struct {
	store     Store
	publisher Publisher
	interval  time.Duration
	batchSize int
}

func NewRelay(store Store, publisher Publisher, interval time.Duration, batchSize int) *Relay {
	return &Relay{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run flushes on every tick until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", r.interval).Msg("Outbox relay started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Outbox relay stopped")
			return
		case <-ticker.C:
			for {
				n, err := r.Flush(ctx)
				if err != nil {
					log.Error().Err(err).Msg("Outbox relay flush failed")
					break
				}
				if n < r.batchSize {
					break
				}
			}
		}
	}
}

// Flush publishes one batch of pending events and returns how many were sent.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	records, err := r.store.FetchPending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, 0, len(records))
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		msgs = append(msgs, kafka.Message{
			Topic: rec.Topic,
			Key:   []byte(rec.Key),
			Value: rec.Payload,
			Time:  rec.CreatedAt,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(rec.EventID.String())},
			},
		})
		ids = append(ids, rec.ID)
	}

	if err := r.publisher.WriteMessages(ctx, msgs...); err != nil {
		return 0, fmt.Errorf("outbox: failed to publish %d events: %w", len(msgs), err)
	}
	if err := r.store.MarkSent(ctx, ids); err != nil {
		return 0, err
	}

	log.Debug().Int("events", len(ids)).Str("topics", topics(records)).Msg("Outbox events published")
	return len(ids), nil
}

func topics(records []Record) string {
	seen := map[string]bool{}
	var out []string
	for _, rec := range records {
		if !seen[rec.Topic] {
			seen[rec.Topic] = true
			out = append(out, rec.Topic)
		}
	}
	return strings.Join(out, ",")
}
