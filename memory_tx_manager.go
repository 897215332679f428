package signoff

import (
	"context"
	"sync"
)

var _ TxManager = (*MemoryTxManager)(nil)

// MemoryTxManager serializes transactions with a single mutex. Coarser than
// the per-workflow row locks of the Postgres store, but it preserves the
// same guarantee: read-decide-write sequences on one workflow never
// interleave.
type MemoryTxManager struct {
	mu sync.Mutex
}

func NewMemoryTxManager() *MemoryTxManager {
	return &MemoryTxManager{}
}

func (m *MemoryTxManager) ReadCommitted(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return fn(ctx)
}
