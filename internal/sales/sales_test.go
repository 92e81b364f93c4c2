package sales_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pos/internal/events"
	"github.com/noah-isme/toko-pos/internal/receipt"
	"github.com/noah-isme/toko-pos/internal/sales"
)

var day = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func sale(id string, at time.Time, total int64) sales.Sale {
	return sales.Sale{
		ReceiptID:  id,
		OccurredAt: at,
		ItemsCount: 1,
		Subtotal:   decimal.NewFromInt(total),
		GrandTotal: decimal.NewFromInt(total),
	}
}

func TestFromReceipt(t *testing.T) {
	r := receipt.Receipt{
		ID: "r1",
		Items: []receipt.Item{
			{Code: "A", Quantity: 2},
			{Code: "B", Quantity: 3},
		},
		Subtotal:   decimal.NewFromInt(420),
		TaxAmount:  decimal.NewFromInt(72),
		GrandTotal: decimal.NewFromInt(472),
		CreatedAt:  day.Add(time.Hour),
	}
	s := sales.FromReceipt(r)
	require.Equal(t, "r1", s.ReceiptID)
	require.Equal(t, 5, s.ItemsCount)
	require.True(t, s.GrandTotal.Equal(decimal.NewFromInt(472)))
	require.Equal(t, r.CreatedAt, s.OccurredAt)
}

func TestMemoryLedger(t *testing.T) {
	l := sales.NewMemoryLedger()
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, sale("b", day.Add(3*time.Hour), 200)))
	require.NoError(t, l.Record(ctx, sale("a", day.Add(time.Hour), 100)))
	require.NoError(t, l.Record(ctx, sale("a", day.Add(time.Hour), 100)))
	require.NoError(t, l.Record(ctx, sale("next", day.Add(24*time.Hour), 50)))
	require.ErrorIs(t, l.Record(ctx, sale("", day, 1)), sales.ErrInvalidSale)

	got, err := l.Between(ctx, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].ReceiptID)
	require.Equal(t, "b", got[1].ReceiptID)
}

func TestLedgerNotifier(t *testing.T) {
	l := sales.NewMemoryLedger()
	bus := &events.Bus{Notifiers: []events.Notifier{sales.LedgerNotifier{Ledger: l, Logger: zerolog.Nop()}}}

	_, err := bus.Emit(context.Background(), events.TopicSaleCompleted, "r1", sale("r1", day, 472))
	require.NoError(t, err)
	_, err = bus.Emit(context.Background(), "other.topic", "x", sale("x", day, 1))
	require.NoError(t, err)

	got, err := l.Between(context.Background(), day, day.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "472", got[0].GrandTotal.String())
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{ID: "task", Queue: "sales"}, nil
}

func TestTaskNotifierEnqueuesWithReceiptID(t *testing.T) {
	q := &fakeEnqueuer{}
	n := sales.TaskNotifier{Client: q, Queue: "sales", MaxRetry: 5, Logger: zerolog.Nop()}
	bus := &events.Bus{Notifiers: []events.Notifier{n}}

	_, err := bus.Emit(context.Background(), events.TopicSaleCompleted, "r-77", sale("r-77", day, 10))
	require.NoError(t, err)
	require.Len(t, q.tasks, 1)
	require.Equal(t, sales.TaskRecordSale, q.tasks[0].Type())

	var s sales.Sale
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &s))
	require.Equal(t, "r-77", s.ReceiptID)

	var taskID, queue string
	for _, o := range q.opts[0] {
		switch o.Type() {
		case asynq.TaskIDOpt:
			taskID = o.Value().(string)
		case asynq.QueueOpt:
			queue = o.Value().(string)
		}
	}
	require.Equal(t, "r-77", taskID)
	require.Equal(t, "sales", queue)
}

func TestTaskNotifierTreatsConflictAsDone(t *testing.T) {
	n := sales.TaskNotifier{Client: &fakeEnqueuer{err: asynq.ErrTaskIDConflict}, Logger: zerolog.Nop()}
	_, err := (&events.Bus{Notifiers: []events.Notifier{n}}).Emit(context.Background(), events.TopicSaleCompleted, "r", sale("r", day, 1))
	require.NoError(t, err)

	boom := errors.New("redis down")
	n = sales.TaskNotifier{Client: &fakeEnqueuer{err: boom}, Logger: zerolog.Nop()}
	_, err = (&events.Bus{Notifiers: []events.Notifier{n}}).Emit(context.Background(), events.TopicSaleCompleted, "r", sale("r", day, 1))
	require.ErrorIs(t, err, boom)
}

func TestRecordHandler(t *testing.T) {
	l := sales.NewMemoryLedger()
	h := sales.RecordHandler(l, zerolog.Nop())

	payload, err := json.Marshal(sale("r1", day, 99))
	require.NoError(t, err)
	require.NoError(t, h(context.Background(), asynq.NewTask(sales.TaskRecordSale, payload)))
	require.NoError(t, h(context.Background(), asynq.NewTask(sales.TaskRecordSale, payload)))

	got, err := l.Between(context.Background(), day, day.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)

	err = h(context.Background(), asynq.NewTask(sales.TaskRecordSale, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = h(context.Background(), asynq.NewTask(sales.TaskRecordSale, []byte(`{"grandTotal":"1"}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.ErrorIs(t, err, sales.ErrInvalidSale)
}
