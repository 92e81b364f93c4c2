package sales

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-pos/internal/events"
	"github.com/noah-isme/toko-pos/internal/obs"
)

// TaskRecordSale is the asynq task type carrying a Sale payload.
const TaskRecordSale = "sales:record"

// LedgerNotifier records sale.completed events directly into a ledger.
type LedgerNotifier struct {
	Ledger Ledger
	Logger zerolog.Logger
}

func (n LedgerNotifier) Notify(ctx context.Context, ev events.Event) error {
	if ev.Topic != events.TopicSaleCompleted {
		return nil
	}
	var s Sale
	if err := ev.Decode(&s); err != nil {
		obs.IncSalesRecorded("inline", "invalid")
		return fmt.Errorf("decode sale: %w", err)
	}
	if err := n.Ledger.Record(ctx, s); err != nil {
		obs.IncSalesRecorded("inline", "error")
		return err
	}
	obs.IncSalesRecorded("inline", "ok")
	n.Logger.Debug().Str("receipt_id", s.ReceiptID).Msg("sale_recorded")
	return nil
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskNotifier hands sale.completed events to the worker through asynq. The
// receipt id is the task id so a repeated event is not queued twice.
type TaskNotifier struct {
	Client    Enqueuer
	Queue     string
	MaxRetry  int
	Retention time.Duration
	Logger    zerolog.Logger
}

func (n TaskNotifier) Notify(ctx context.Context, ev events.Event) error {
	if ev.Topic != events.TopicSaleCompleted {
		return nil
	}
	opts := []asynq.Option{asynq.TaskID(ev.AggregateID)}
	if n.Queue != "" {
		opts = append(opts, asynq.Queue(n.Queue))
	}
	if n.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(n.MaxRetry))
	}
	if n.Retention > 0 {
		opts = append(opts, asynq.Retention(n.Retention))
	}
	info, err := n.Client.EnqueueContext(ctx, asynq.NewTask(TaskRecordSale, ev.Payload), opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		n.Logger.Debug().Str("receipt_id", ev.AggregateID).Msg("sale_task_already_queued")
		return nil
	}
	if err != nil {
		obs.IncSalesRecorded("queue", "enqueue_error")
		return fmt.Errorf("enqueue %s: %w", TaskRecordSale, err)
	}
	obs.IncSalesRecorded("queue", "enqueued")
	n.Logger.Debug().Str("receipt_id", ev.AggregateID).Str("task_id", info.ID).Str("queue", info.Queue).Msg("sale_task_enqueued")
	return nil
}

// RecordHandler processes sales:record tasks on the worker. Malformed
// payloads are not retried.
func RecordHandler(ledger Ledger, logger zerolog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var s Sale
		if err := json.Unmarshal(t.Payload(), &s); err != nil {
			obs.IncSalesRecorded("queue", "invalid")
			return fmt.Errorf("decode sale: %v: %w", err, asynq.SkipRetry)
		}
		if s.ReceiptID == "" {
			obs.IncSalesRecorded("queue", "invalid")
			return fmt.Errorf("%w: %w", ErrInvalidSale, asynq.SkipRetry)
		}
		if err := ledger.Record(ctx, s); err != nil {
			obs.IncSalesRecorded("queue", "error")
			return err
		}
		obs.IncSalesRecorded("queue", "ok")
		logger.Info().Str("receipt_id", s.ReceiptID).Str("grand_total", s.GrandTotal.String()).Msg("sale_recorded")
		return nil
	}
}
