package events

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of pgxpool.Pool used by PostgresStore.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore appends events to the domain_events table.
type PostgresStore struct {
	db Execer
}

func NewPostgresStore(db Execer) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, ev Event) error {
	_, err := s.db.Exec(ctx, `INSERT INTO domain_events (id, topic, aggregate_id, payload, occurred_at)
		VALUES ($1::uuid, $2, $3, $4::jsonb, $5)`,
		ev.ID, ev.Topic, ev.AggregateID, string(ev.Payload), ev.OccurredAt)
	return err
}
