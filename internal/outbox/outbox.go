package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/secondhand-marketplace/internal/db"
)

const EventOrderCompleted = "order.completed"

type Record struct {
	ID        int64
	EventID   uuid.UUID
	Topic     string
	Key       string
	Payload   json.RawMessage
	CreatedAt time.Time
	SentAt    *time.Time
}

// Envelope is the JSON document published for every event.
type Envelope struct {
	EventID    uuid.UUID       `json:"event_id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Insert writes an event with q, which is normally the caller's transaction,
// so the event exists if and only if the business change committed.
func Insert(ctx context.Context, q db.Querier, topic, key, eventType string, data any) (uuid.UUID, error) {
	eventID, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, fmt.Errorf("outbox: failed to generate event ID: %w", err)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return uuid.Nil, fmt.Errorf("outbox: failed to encode %s payload: %w", eventType, err)
	}
	payload, err := json.Marshal(Envelope{
		EventID:    eventID,
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("outbox: failed to encode envelope: %w", err)
	}

	_, err = q.Exec(ctx,
		`INSERT INTO outbox (event_id, topic, key, payload) VALUES ($1, $2, $3, $4)`,
		eventID, topic, key, payload,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("outbox: failed to insert %s event: %w", eventType, err)
	}
	return eventID, nil
}

type PostgresStore struct {
	db db.Querier
}

func NewPostgresStore(q db.Querier) *PostgresStore {
	return &PostgresStore{db: q}
}

func (s *PostgresStore) FetchPending(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, event_id, topic, key, payload, created_at, sent_at
		 FROM outbox WHERE sent_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("outbox: failed to query pending events: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Key, &rec.Payload, &rec.CreatedAt, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("outbox: failed to scan event: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkSent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, `UPDATE outbox SET sent_at = now() WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("outbox: failed to mark events sent: %w", err)
	}
	return nil
}
