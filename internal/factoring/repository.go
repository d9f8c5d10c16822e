package factoring

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Reader exposes the three persisted slots.
type Reader interface {
	// InvoiceCount returns the last assigned invoice id, 0 when none.
	InvoiceCount(ctx context.Context) (uint64, error)
	// Invoice returns the invoice stored under id and whether it exists.
	Invoice(ctx context.Context, id uint64) (Invoice, bool, error)
	// Stats returns the aggregate record, zero valued when absent.
	Stats(ctx context.Context) (PlatformStats, error)
}

// Commit is the set of writes one operation produces. Nil fields are left
// untouched.
type Commit struct {
	Counter *uint64
	Invoice *Invoice
	Stats   *PlatformStats
}

// Empty reports whether the commit writes nothing.
func (c Commit) Empty() bool {
	return c.Counter == nil && c.Invoice == nil && c.Stats == nil
}

// Tx reads state and stages a commit. Staged writes become visible only
// after the transaction function returns nil.
type Tx interface {
	Reader
	Commit(ctx context.Context, c Commit) error
}

// Retention mirrors a host extend-ttl call: when the remaining lifetime of
// the ledger state drops below Threshold it is extended to ExtendTo.
type Retention struct {
	Threshold time.Duration
	ExtendTo  time.Duration
}

// Enabled reports whether the retention hint should be issued at all.
func (r Retention) Enabled() bool {
	return r.ExtendTo > 0
}

// Repository persists ledger state with atomic multi-slot commits.
type Repository interface {
	Reader
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
	ExtendRetention(ctx context.Context, r Retention) error
}

// entries flattens a commit into slot key to JSON value pairs.
func (c Commit) entries() (map[string][]byte, error) {
	out := make(map[string][]byte, 3)
	if c.Counter != nil {
		raw, err := json.Marshal(*c.Counter)
		if err != nil {
			return nil, fmt.Errorf("factoring: encode counter: %w", err)
		}
		out[CounterKey] = raw
	}
	if c.Invoice != nil {
		raw, err := json.Marshal(c.Invoice)
		if err != nil {
			return nil, fmt.Errorf("factoring: encode invoice %d: %w", c.Invoice.ID, err)
		}
		out[InvoiceKey(c.Invoice.ID)] = raw
	}
	if c.Stats != nil {
		raw, err := json.Marshal(c.Stats)
		if err != nil {
			return nil, fmt.Errorf("factoring: encode stats: %w", err)
		}
		out[StatsKey] = raw
	}
	return out, nil
}

func decodeCounter(raw []byte) (uint64, error) {
	var n uint64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("factoring: decode counter: %w", err)
	}
	return n, nil
}

func decodeInvoice(raw []byte) (Invoice, error) {
	var inv Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return Invoice{}, fmt.Errorf("factoring: decode invoice: %w", err)
	}
	return inv, nil
}

func decodeStats(raw []byte) (PlatformStats, error) {
	var s PlatformStats
	if err := json.Unmarshal(raw, &s); err != nil {
		return PlatformStats{}, fmt.Errorf("factoring: decode stats: %w", err)
	}
	return s, nil
}

// slotGetter loads the raw value of one slot.
type slotGetter func(ctx context.Context, key string) ([]byte, bool, error)

func (g slotGetter) InvoiceCount(ctx context.Context) (uint64, error) {
	raw, ok, err := g(ctx, CounterKey)
	if err != nil || !ok {
		return 0, err
	}
	return decodeCounter(raw)
}

func (g slotGetter) Invoice(ctx context.Context, id uint64) (Invoice, bool, error) {
	raw, ok, err := g(ctx, InvoiceKey(id))
	if err != nil || !ok {
		return Invoice{}, false, err
	}
	inv, err := decodeInvoice(raw)
	if err != nil {
		return Invoice{}, false, err
	}
	return inv, true, nil
}

func (g slotGetter) Stats(ctx context.Context) (PlatformStats, error) {
	raw, ok, err := g(ctx, StatsKey)
	if err != nil || !ok {
		return PlatformStats{}, err
	}
	return decodeStats(raw)
}

// stagedCommit collects writes during a transaction. Later commits for the
// same slot replace earlier ones.
type stagedCommit map[string][]byte

func (s stagedCommit) add(c Commit) error {
	if c.Empty() {
		return nil
	}
	entries, err := c.entries()
	if err != nil {
		return err
	}
	for k, v := range entries {
		s[k] = v
	}
	return nil
}
