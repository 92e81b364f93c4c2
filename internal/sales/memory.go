package sales

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryLedger keeps sales in process.
type MemoryLedger struct {
	mu    sync.RWMutex
	sales []Sale
	seen  map[string]struct{}
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{seen: make(map[string]struct{})}
}

func (l *MemoryLedger) Record(_ context.Context, s Sale) error {
	if s.ReceiptID == "" {
		return ErrInvalidSale
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[s.ReceiptID]; ok {
		return nil
	}
	l.seen[s.ReceiptID] = struct{}{}
	l.sales = append(l.sales, s)
	return nil
}

func (l *MemoryLedger) Between(_ context.Context, from, to time.Time) ([]Sale, error) {
	l.mu.RLock()
	out := make([]Sale, 0)
	for _, s := range l.sales {
		if !s.OccurredAt.Before(from) && s.OccurredAt.Before(to) {
			out = append(out, s)
		}
	}
	l.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}
