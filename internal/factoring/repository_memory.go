package factoring

import (
	"context"
	"sync"
)

// MemoryRepository keeps ledger state in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{slots: make(map[string][]byte)}
}

func (r *MemoryRepository) get(_ context.Context, key string) ([]byte, bool, error) {
	raw, ok := r.slots[key]
	return raw, ok, nil
}

func (r *MemoryRepository) locked(ctx context.Context, key string) ([]byte, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(ctx, key)
}

// InvoiceCount implements Reader.
func (r *MemoryRepository) InvoiceCount(ctx context.Context) (uint64, error) {
	return slotGetter(r.locked).InvoiceCount(ctx)
}

// Invoice implements Reader.
func (r *MemoryRepository) Invoice(ctx context.Context, id uint64) (Invoice, bool, error) {
	return slotGetter(r.locked).Invoice(ctx, id)
}

// Stats implements Reader.
func (r *MemoryRepository) Stats(ctx context.Context) (PlatformStats, error) {
	return slotGetter(r.locked).Stats(ctx)
}

// WithTx runs fn with the repository locked and applies the staged commit
// only when fn succeeds.
func (r *MemoryRepository) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &memoryTx{slotGetter: r.get, staged: stagedCommit{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for k, v := range tx.staged {
		r.slots[k] = v
	}
	return nil
}

// ExtendRetention is a no-op; memory state lives as long as the process.
func (r *MemoryRepository) ExtendRetention(context.Context, Retention) error {
	return nil
}

type memoryTx struct {
	slotGetter
	staged stagedCommit
}

func (t *memoryTx) Commit(_ context.Context, c Commit) error {
	return t.staged.add(c)
}
