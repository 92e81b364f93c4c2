package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// MemorySlot keeps the last receipt in process.
type MemorySlot struct {
	mu   sync.RWMutex
	last *Receipt
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

func (s *MemorySlot) Save(_ context.Context, r Receipt) error {
	c := r.clone()
	s.mu.Lock()
	s.last = &c
	s.mu.Unlock()
	return nil
}

func (s *MemorySlot) Load(_ context.Context) (Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Receipt{}, ErrNoReceipt
	}
	return s.last.clone(), nil
}

// DefaultRedisKey is the key RedisSlot writes to when none is configured.
const DefaultRedisKey = "pos:receipt:last"

// RedisSlot stores the last receipt as JSON under a single key.
type RedisSlot struct {
	client *redis.Client
	key    string
	logger zerolog.Logger
}

func NewRedisSlot(client *redis.Client, key string, logger zerolog.Logger) *RedisSlot {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSlot{client: client, key: key, logger: logger}
}

func (s *RedisSlot) Save(ctx context.Context, r Receipt) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("save receipt: %w", err)
	}
	return nil
}

func (s *RedisSlot) Load(ctx context.Context) (Receipt, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Receipt{}, ErrNoReceipt
		}
		return Receipt{}, fmt.Errorf("load receipt: %w", err)
	}
	return decode(data, s.logger)
}

// PGExecutor is the subset of pgxpool.Pool used by PostgresSlot.
type PGExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSlot keeps the last receipt in a single-row table.
type PostgresSlot struct {
	db     PGExecutor
	logger zerolog.Logger
}

func NewPostgresSlot(db PGExecutor, logger zerolog.Logger) *PostgresSlot {
	return &PostgresSlot{db: db, logger: logger}
}

func (s *PostgresSlot) Save(ctx context.Context, r Receipt) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}
	_, err = s.db.Exec(ctx, `INSERT INTO last_receipt (slot, receipt_id, payload, saved_at)
		VALUES (1, $1, $2::jsonb, now())
		ON CONFLICT (slot) DO UPDATE
		SET receipt_id = EXCLUDED.receipt_id, payload = EXCLUDED.payload, saved_at = EXCLUDED.saved_at`,
		r.ID, string(data))
	if err != nil {
		return fmt.Errorf("save receipt: %w", err)
	}
	return nil
}

func (s *PostgresSlot) Load(ctx context.Context) (Receipt, error) {
	var payload string
	err := s.db.QueryRow(ctx, `SELECT payload::text FROM last_receipt WHERE slot = 1`).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Receipt{}, ErrNoReceipt
		}
		return Receipt{}, fmt.Errorf("load receipt: %w", err)
	}
	return decode([]byte(payload), s.logger)
}

// decode treats an unreadable payload as an empty slot.
func decode(data []byte, logger zerolog.Logger) (Receipt, error) {
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		logger.Warn().Err(err).Msg("receipt_slot_corrupt")
		return Receipt{}, ErrNoReceipt
	}
	if r.ID == "" {
		logger.Warn().Msg("receipt_slot_missing_id")
		return Receipt{}, ErrNoReceipt
	}
	return r, nil
}
