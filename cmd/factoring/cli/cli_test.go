package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/factoring/internal/app"
	"github.com/odyssey-erp/factoring/internal/factoring"
	_ "github.com/odyssey-erp/factoring/testing"
)

type harness struct {
	t  *testing.T
	rt *Runtime
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{t: t, rt: NewMemoryRuntime(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))}
}

func (h *harness) exec(args ...string) (string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand(
		WithOutput(&out, &errOut),
		WithRuntimeFactory(func(context.Context, *app.Config, *slog.Logger) (*Runtime, error) {
			return h.rt, nil
		}),
	)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustExec(args ...string) string {
	h.t.Helper()
	out, err := h.exec(args...)
	require.NoError(h.t, err)
	return out
}

func TestListAndPurchase(t *testing.T) {
	h := newHarness(t)

	out := h.mustExec("list", "--as", "alice", "--amount", "1000", "--discount", "5")
	assert.Equal(t, "Invoice listed with ID: 1\n", out)

	out = h.mustExec("purchase", "1", "--as", "bob")
	assert.Equal(t, "Invoice 1 purchased by bob\n", out)

	out = h.mustExec("invoice", "1")
	assert.Contains(t, out, "Status          sold")
	assert.Contains(t, out, "Face amount     1,000")
	assert.Contains(t, out, "Selling price   950")
	assert.Contains(t, out, "Buyer           bob")

	out = h.mustExec("stats")
	assert.Contains(t, out, "Total invoices   1")
	assert.Contains(t, out, "Sold invoices    1")
	assert.Contains(t, out, "Total volume     950")
}

func TestJSONOutput(t *testing.T) {
	h := newHarness(t)

	out := h.mustExec("list", "--as", "alice", "--amount", "2000", "--discount", "10", "--json")
	assert.JSONEq(t, `{"invoice_id": 1}`, out)

	out = h.mustExec("invoice", "1", "--json")
	var inv factoring.Invoice
	require.NoError(t, json.Unmarshal([]byte(out), &inv))
	assert.Equal(t, int64(1800), inv.SellingPrice)
	assert.Equal(t, factoring.Unassigned, inv.Buyer)

	out = h.mustExec("invoice", "42", "--json")
	require.NoError(t, json.Unmarshal([]byte(out), &inv))
	assert.Equal(t, factoring.Invoice{}, inv)

	out = h.mustExec("stats", "--json")
	assert.JSONEq(t, `{"total_invoices":1,"active_invoices":1,"sold_invoices":0,"total_volume":0}`, out)
}

func TestInvoiceNotFound(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, "Invoice 7 not found\n", h.mustExec("invoice", "7"))
}

func TestRejections(t *testing.T) {
	h := newHarness(t)
	h.mustExec("list", "--as", "alice", "--amount", "100")

	_, err := h.exec("list", "--as", "bob", "--seller", "alice", "--amount", "100")
	require.ErrorIs(t, err, factoring.ErrUnauthorized)
	assert.Equal(t, 2, ExitCode(err))

	_, err = h.exec("purchase", "9", "--as", "bob")
	require.ErrorIs(t, err, factoring.ErrInvoiceNotFound)

	h.mustExec("purchase", "1", "--as", "bob")
	_, err = h.exec("purchase", "1", "--as", "carol")
	require.ErrorIs(t, err, factoring.ErrAlreadySold)

	_, err = h.exec("purchase", "x", "--as", "bob")
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))

	_, err = h.exec("list", "--amount", "100")
	require.Error(t, err)
}

func TestMetricsOut(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "factoring.prom")

	h.mustExec("list", "--as", "alice", "--amount", "100", "--metrics-out", path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `factoring_operations_total{op="list_invoice",status="success"} 1`)
}

func TestMetricsOutAfterRejection(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "factoring.prom")

	_, err := h.exec("purchase", "9", "--as", "bob", "--metrics-out", path)
	require.ErrorIs(t, err, factoring.ErrInvoiceNotFound)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `factoring_operations_total{op="purchase_invoice",status="failure"} 1`)
	assert.Contains(t, string(raw), `factoring_operation_failures_total{op="purchase_invoice",reason="not_found"} 1`)
}

func TestStateSurvivesInvocationsOnRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("FACTORING_STORE", app.StoreRedis)
	t.Setenv("REDIS_ADDR", mr.Addr())
	t.Setenv("REDIS_LOCK", "true")

	exec := func(args ...string) (string, error) {
		var out, errOut bytes.Buffer
		cmd := NewRootCommand(WithOutput(&out, &errOut))
		cmd.SetArgs(args)
		err := cmd.ExecuteContext(context.Background())
		return out.String(), err
	}

	out, err := exec("list", "--as", "alice", "--amount", "1000", "--discount", "5")
	require.NoError(t, err)
	assert.Equal(t, "Invoice listed with ID: 1\n", out)

	out, err = exec("purchase", "1", "--as", "bob")
	require.NoError(t, err)
	assert.Equal(t, "Invoice 1 purchased by bob\n", out)

	out, err = exec("stats", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_invoices":1,"active_invoices":0,"sold_invoices":1,"total_volume":950}`, out)
}

func TestMemoryStoreRefusedOutsideTestMode(t *testing.T) {
	// registered first so it runs after the variable is restored
	t.Cleanup(app.RefreshTestMode)
	t.Setenv("FACTORING_TEST_MODE", "0")
	app.RefreshTestMode()
	h := newHarness(t)

	_, err := h.exec("list", "--as", "alice", "--amount", "100")
	require.ErrorIs(t, err, app.ErrEphemeralStore)
	assert.Equal(t, 1, ExitCode(err))

	// reads stay available
	assert.Equal(t, "Invoice 1 not found\n", h.mustExec("invoice", "1"))
}

func TestMigrateMemoryStore(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, "store memory has no schema\n", h.mustExec("migrate"))
}

func TestRuntimeRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &app.Config{
		Store:     app.StoreRedis,
		RedisAddr: mr.Addr(),
		RedisKey:  "factoring:test",
		RedisLock: true,
		LockKey:   "factoring:test:lock",
	}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	rt, err := NewRuntime(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer rt.Close()

	ctx := factoring.WithCaller(context.Background(), "alice")
	id, err := rt.Ledger.ListInvoice(ctx, "alice", 1000, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
	assert.NotEmpty(t, mr.HGet("factoring:test", factoring.InvoiceKey(1)))
	// the lock is released after the operation
	assert.False(t, mr.Exists("factoring:test:lock"))
}

func TestRuntimeUnknownStore(t *testing.T) {
	_, err := NewRuntime(context.Background(), &app.Config{Store: "sqlite"}, slog.Default())
	require.Error(t, err)
}
