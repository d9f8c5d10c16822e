// Package factoring implements the invoice-factoring ledger: sellers list
// invoices at a discount, buyers purchase them, and the ledger keeps the
// per-invoice state together with platform-wide statistics.
package factoring

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"
)

// Locker grants exclusive access across processes sharing one store.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Config collects the collaborators of a Ledger. Zero fields get defaults:
// CallerAuth, SystemClock, no cross-process lock, slog.Default, no metrics,
// no retention hint.
type Config struct {
	Auth      Authenticator
	Clock     Clock
	Locker    Locker
	Logger    *slog.Logger
	Metrics   *Metrics
	Retention Retention
}

// Ledger owns the invoice counter, the invoice records and the platform
// stats. Mutating operations run one at a time and commit atomically.
type Ledger struct {
	repo      Repository
	auth      Authenticator
	clock     Clock
	locker    Locker
	logger    *slog.Logger
	metrics   *Metrics
	retention Retention

	mu sync.Mutex
}

// NewLedger builds a Ledger on repo.
func NewLedger(repo Repository, cfg Config) *Ledger {
	l := &Ledger{
		repo:      repo,
		auth:      cfg.Auth,
		clock:     cfg.Clock,
		locker:    cfg.Locker,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		retention: cfg.Retention,
	}
	if l.auth == nil {
		l.auth = CallerAuth{}
	}
	if l.clock == nil {
		l.clock = SystemClock{}
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// ListInvoice registers a new unsold invoice for seller and returns its id.
func (l *Ledger) ListInvoice(ctx context.Context, seller Identity, faceAmount int64, discountRateBps uint64) (invoiceID uint64, err error) {
	tracker := l.metrics.Track(OpListInvoice)
	defer func() { err = tracker.End(err) }()

	// an id is never consumed by a rejected caller
	if err := l.auth.RequireAuth(ctx, seller); err != nil {
		l.reject(OpListInvoice, "", err, slog.String("seller", seller.String()))
		return 0, err
	}

	price, err := SellingPrice(faceAmount, discountRateBps)
	if err != nil {
		l.reject(OpListInvoice, "", err, slog.Int64("invoice_amount", faceAmount), slog.Uint64("discount_rate", discountRateBps))
		return 0, err
	}

	opID := uuid.NewString()
	var stats PlatformStats
	err = l.exclusive(ctx, func() error {
		return l.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
			count, err := tx.InvoiceCount(ctx)
			if err != nil {
				return err
			}
			if count == math.MaxUint64 {
				return ErrOverflow
			}
			id := count + 1

			inv := Invoice{
				ID:              id,
				Seller:          seller,
				Buyer:           Unassigned,
				FaceAmount:      faceAmount,
				DiscountRateBps: discountRateBps,
				SellingPrice:    price,
				Sold:            false,
				CreatedAt:       l.clock.Now(),
			}

			stats, err = tx.Stats(ctx)
			if err != nil {
				return err
			}
			stats.TotalInvoices++
			stats.ActiveInvoices++

			if err := tx.Commit(ctx, Commit{Counter: &id, Invoice: &inv, Stats: &stats}); err != nil {
				return err
			}
			invoiceID = id
			return nil
		})
	})
	if err != nil {
		l.reject(OpListInvoice, opID, err, slog.String("seller", seller.String()))
		return 0, err
	}

	l.afterCommit(ctx, opID, stats)
	l.logger.Info("invoice listed",
		slog.String("op_id", opID),
		slog.Uint64("invoice_id", invoiceID),
		slog.String("seller", seller.String()),
		slog.Int64("selling_price", price),
	)
	return invoiceID, nil
}

// PurchaseInvoice transfers an unsold invoice to buyer.
func (l *Ledger) PurchaseInvoice(ctx context.Context, invoiceID uint64, buyer Identity) (err error) {
	tracker := l.metrics.Track(OpPurchaseInvoice)
	defer func() { err = tracker.End(err) }()

	if err := l.auth.RequireAuth(ctx, buyer); err != nil {
		l.reject(OpPurchaseInvoice, "", err, slog.Uint64("invoice_id", invoiceID))
		return err
	}

	opID := uuid.NewString()
	var (
		stats PlatformStats
		price int64
	)
	err = l.exclusive(ctx, func() error {
		return l.repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
			inv, ok, err := tx.Invoice(ctx, invoiceID)
			if err != nil {
				return err
			}
			if !ok || !inv.Exists() {
				return ErrInvoiceNotFound
			}
			if inv.Sold {
				return ErrAlreadySold
			}

			stats, err = tx.Stats(ctx)
			if err != nil {
				return err
			}
			if stats.ActiveInvoices == 0 {
				return ErrStatsInconsistent
			}
			volume, ok := addInt64(stats.TotalVolume, inv.SellingPrice)
			if !ok {
				return ErrOverflow
			}

			inv.Buyer = buyer
			inv.Sold = true
			stats.ActiveInvoices--
			stats.SoldInvoices++
			stats.TotalVolume = volume
			price = inv.SellingPrice

			return tx.Commit(ctx, Commit{Invoice: &inv, Stats: &stats})
		})
	})
	if err != nil {
		l.reject(OpPurchaseInvoice, opID, err, slog.Uint64("invoice_id", invoiceID))
		return err
	}

	l.afterCommit(ctx, opID, stats)
	l.logger.Info("invoice purchased",
		slog.String("op_id", opID),
		slog.Uint64("invoice_id", invoiceID),
		slog.String("buyer", buyer.String()),
		slog.Int64("selling_price", price),
	)
	return nil
}

// GetInvoice returns the invoice stored under id, or the zero Invoice
// (ID == 0) when there is none. The error reports storage failures only.
func (l *Ledger) GetInvoice(ctx context.Context, id uint64) (Invoice, error) {
	inv, ok, err := l.LookupInvoice(ctx, id)
	if err != nil || !ok {
		return Invoice{}, err
	}
	return inv, nil
}

// LookupInvoice is GetInvoice with an explicit presence flag.
func (l *Ledger) LookupInvoice(ctx context.Context, id uint64) (Invoice, bool, error) {
	if id == 0 {
		return Invoice{}, false, nil
	}
	return l.repo.Invoice(ctx, id)
}

// GetPlatformStats returns the aggregate, zero valued before any listing.
func (l *Ledger) GetPlatformStats(ctx context.Context) (PlatformStats, error) {
	return l.repo.Stats(ctx)
}

func (l *Ledger) exclusive(ctx context.Context, fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locker != nil {
		release, err := l.locker.Acquire(ctx)
		if err != nil {
			return err
		}
		defer release()
	}
	return fn()
}

func (l *Ledger) afterCommit(ctx context.Context, opID string, stats PlatformStats) {
	l.metrics.ObserveStats(stats)
	if !l.retention.Enabled() {
		return
	}
	if err := l.repo.ExtendRetention(ctx, l.retention); err != nil {
		l.logger.Warn("extend retention",
			slog.String("op_id", opID),
			slog.Any("error", err),
		)
	}
}

func (l *Ledger) reject(op, opID string, err error, attrs ...slog.Attr) {
	level := slog.LevelWarn
	if !IsRejection(err) && !errors.Is(err, ErrConflict) {
		level = slog.LevelError
	}
	args := make([]any, 0, len(attrs)+3)
	args = append(args, slog.String("op", op))
	if opID != "" {
		args = append(args, slog.String("op_id", opID))
	}
	for _, a := range attrs {
		args = append(args, a)
	}
	args = append(args, slog.Any("error", err))
	l.logger.Log(context.Background(), level, "ledger operation rejected", args...)
}
