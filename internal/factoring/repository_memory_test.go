package factoring

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepositoryEmpty(t *testing.T) {
	testEmptyRepository(t, NewMemoryRepository())
}

func TestMemoryRepositoryCommit(t *testing.T) {
	testRepositoryCommit(t, NewMemoryRepository())
}

func TestMemoryRepositoryRollback(t *testing.T) {
	testRepositoryRollback(t, NewMemoryRepository())
}

// Shared contract checks, run against every backend.

func testEmptyRepository(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()

	count, err := repo.InvoiceCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, ok, err := repo.Invoice(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, PlatformStats{}, stats)
}

func testRepositoryCommit(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	counter := uint64(1)
	inv := Invoice{ID: 1, Seller: alice, Buyer: Unassigned, FaceAmount: 1000, DiscountRateBps: 5, SellingPrice: 950, CreatedAt: 42}
	stats := PlatformStats{TotalInvoices: 1, ActiveInvoices: 1}

	err := repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Commit(ctx, Commit{Counter: &counter, Invoice: &inv, Stats: &stats})
	})
	require.NoError(t, err)

	count, err := repo.InvoiceCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	got, ok, err := repo.Invoice(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, inv, got)

	gotStats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats, gotStats)

	// a partial commit leaves the other slots alone
	stats.ActiveInvoices, stats.SoldInvoices, stats.TotalVolume = 0, 1, 950
	err = repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Commit(ctx, Commit{Stats: &stats})
	})
	require.NoError(t, err)

	count, err = repo.InvoiceCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
	gotStats, err = repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats, gotStats)
}

func testRepositoryRollback(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	boom := errors.New("boom")
	counter := uint64(7)

	err := repo.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Commit(ctx, Commit{Counter: &counter}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	count, err := repo.InvoiceCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryRepositoryEmptyCommit(t *testing.T) {
	repo := NewMemoryRepository()
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.Commit(ctx, Commit{})
	})
	require.NoError(t, err)
	assert.Empty(t, repo.slots)
}
