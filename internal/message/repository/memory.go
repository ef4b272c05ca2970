package repository

import (
	"context"
	"sync"

	"github.com/webchat/webchat/internal/message"
)

// MemoryRepo keeps records in process memory. Used by tests and as the
// development sink when no MongoDB URI is configured.
type MemoryRepo struct {
	mu      sync.RWMutex
	records []message.StoredRecord
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (m *MemoryRepo) InsertOne(ctx context.Context, rec *message.StoredRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *rec)
	return nil
}

// List returns a copy of the stored records in insertion order.
func (m *MemoryRepo) List() []message.StoredRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]message.StoredRecord, len(m.records))
	copy(out, m.records)
	return out
}

func (m *MemoryRepo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
