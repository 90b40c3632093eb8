package memory

import (
	"context"
	"sync"

	"edurumble-service/internal/domain"
	"github.com/google/uuid"
)

// Ledger keeps credit entries in process; used when Postgres is not configured.
type Ledger struct {
	mu      sync.RWMutex
	entries []domain.CreditEntry
}

func NewLedger() *Ledger {
	return &Ledger{}
}

func (l *Ledger) Record(_ context.Context, entry domain.CreditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
	return nil
}

// History returns the newest entries first.
func (l *Ledger) History(_ context.Context, userID string, limit int) ([]domain.CreditEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.CreditEntry, 0)
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].UserID != userID {
			continue
		}
		out = append(out, l.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
