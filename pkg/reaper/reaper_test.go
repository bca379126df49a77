package reaper

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/purgatory-reaper/internal/metrics"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatorystore/storetest"
	"github.com/chainsafe/purgatory-reaper/pkg/schedule"
	"github.com/chainsafe/purgatory-reaper/pkg/sui"
)

const retention = 90 * 24 * time.Hour

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		RetentionPeriod: retention,
		FetchBatchSize:  500,
		SubmitBatchSize: 50,
		GasBudget:       100_000_000,
		Interval:        6 * time.Hour,
		RunTimeout:      30 * time.Minute,
		RequestTimeout:  5 * time.Second,
	}
}

// seedExpired inserts n holdings deposited one millisecond apart, all past
// the retention period.
func seedExpired(t *testing.T, store *storetest.Memory, n int) {
	t.Helper()
	base := testNow.Add(-retention - 24*time.Hour).UnixMilli()
	for i := 0; i < n; i++ {
		h := storetest.Holding(fmt.Sprintf("0x%04d", i), "0xnft::kiosk::Card", "0xalice", base+int64(i))
		_, err := store.InsertHolding(context.Background(), h)
		require.NoError(t, err)
	}
}

func newTestReaper(cfg Config, ledger Ledger, store Store, clock schedule.Clock) *Reaper {
	return New(cfg, ledger, store, zap.NewNop(), WithClock(clock))
}

func TestRunOnce_NothingExpired(t *testing.T) {
	store := storetest.NewMemory()
	young := storetest.Holding("0xyoung", "T", "0xalice", testNow.Add(-time.Hour).UnixMilli())
	_, err := store.InsertHolding(context.Background(), young)
	require.NoError(t, err)

	ledger := &MockLedger{}
	r := newTestReaper(testConfig(), ledger, store, schedule.NewFakeClock(testNow))

	run, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, purgatory.RunSuccess, run.Status)
	assert.Zero(t, run.ItemsScanned)
	assert.Zero(t, run.ItemsPurged)
	assert.Nil(t, run.GasUsed)
	assert.Empty(t, ledger.submissions())

	runs := store.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, run.RunID, runs[0].RunID)
}

func TestRunOnce_PartialRunAccounting(t *testing.T) {
	ctx := context.Background()
	store := storetest.NewMemory()
	seedExpired(t, store, 120)

	calls := 0
	ledger := &MockLedger{
		SubmitTransactionFunc: func(_ context.Context, tx sui.TxBody, budget uint64) (*sui.TxResult, error) {
			calls++
			assert.Equal(t, uint64(100_000_000), budget)
			if calls == 3 {
				return nil, errors.New("request timed out")
			}
			return &sui.TxResult{Success: true, Digest: fmt.Sprintf("TX%d", calls), GasUsed: 2500}, nil
		},
	}
	r := newTestReaper(testConfig(), ledger, store, schedule.NewFakeClock(testNow))

	run, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, purgatory.RunPartial, run.Status)
	assert.Equal(t, 120, run.ItemsScanned)
	assert.Equal(t, 100, run.ItemsPurged)
	assert.Equal(t, 20, run.ItemsFailed)
	assert.Equal(t, []string{"TX1", "TX2"}, run.TxIDs)
	require.NotNil(t, run.GasUsed)
	assert.Equal(t, int64(5000), *run.GasUsed)

	subs := ledger.submissions()
	require.Len(t, subs, 3)
	assert.Len(t, subs[0].Calls, 50)
	assert.Len(t, subs[2].Calls, 20)
	assert.Equal(t, []any{"0xglobal", "0x0000", "0x6"}, subs[0].Calls[0].Arguments)
	assert.Equal(t, []string{"0xnft::kiosk::Card"}, subs[0].Calls[0].TypeArguments)

	h, err := store.GetHolding(ctx, "0x0000")
	require.NoError(t, err)
	assert.Equal(t, purgatory.StatusPurged, h.Status)
	assert.Equal(t, "TX1", h.PurgeTxID)

	// The failed batch is still held and is the whole of the next run's work.
	next, err := store.ListExpired(ctx, testNow.Add(-retention).UnixMilli(), 500)
	require.NoError(t, err)
	require.Len(t, next, 20)
	assert.Equal(t, "0x0100", next[0].ItemID)

	ledger.SubmitTransactionFunc = nil
	run, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, purgatory.RunSuccess, run.Status)
	assert.Equal(t, 20, run.ItemsPurged)
	assert.Len(t, store.Runs(), 2)
}

func TestRunOnce_FailedEffectsLeaveItemsHeld(t *testing.T) {
	ctx := context.Background()
	store := storetest.NewMemory()
	seedExpired(t, store, 3)

	ledger := &MockLedger{
		SubmitTransactionFunc: func(context.Context, sui.TxBody, uint64) (*sui.TxResult, error) {
			return &sui.TxResult{Success: false, Digest: "TXBAD", Error: "InsufficientGas"}, nil
		},
	}
	r := newTestReaper(testConfig(), ledger, store, schedule.NewFakeClock(testNow))

	run, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, purgatory.RunPartial, run.Status)
	assert.Equal(t, 3, run.ItemsFailed)
	assert.Empty(t, run.TxIDs)
	assert.Nil(t, run.GasUsed)

	h, err := store.GetHolding(ctx, "0x0001")
	require.NoError(t, err)
	assert.Equal(t, purgatory.StatusHeld, h.Status)
}

func TestRunOnce_FetchFailureRecordsFailedRun(t *testing.T) {
	mem := storetest.NewMemory()
	store := &failingStore{
		Store: mem,
		ListExpiredFunc: func(context.Context, int64, int) ([]*purgatory.Holding, error) {
			return nil, errors.New("connection refused")
		},
	}
	r := newTestReaper(testConfig(), &MockLedger{}, store, schedule.NewFakeClock(testNow))

	run, err := r.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, purgatory.RunFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "connection refused")

	runs := mem.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, purgatory.RunFailed, runs[0].Status)
}

func TestRunOnce_MarkFailureStillCountsPurged(t *testing.T) {
	ctx := context.Background()
	store := storetest.NewMemory()
	seedExpired(t, store, 2)
	store.FailMarkPurgedBatch = errors.New("deadlock detected")

	r := newTestReaper(testConfig(), &MockLedger{}, store, schedule.NewFakeClock(testNow))

	run, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, purgatory.RunSuccess, run.Status)
	assert.Equal(t, 2, run.ItemsPurged)
	assert.Equal(t, []string{"TX1"}, run.TxIDs)

	// The indexer moves these to PURGED once it sees the ledger events.
	h, err := store.GetHolding(ctx, "0x0000")
	require.NoError(t, err)
	assert.Equal(t, purgatory.StatusHeld, h.Status)
}

func TestRunOnce_RunLogWriteFailure(t *testing.T) {
	mem := storetest.NewMemory()
	seedExpired(t, mem, 1)
	store := &failingStore{
		Store: mem,
		InsertRunLogFunc: func(context.Context, *purgatory.RunLog) error {
			return errors.New("disk full")
		},
	}
	r := newTestReaper(testConfig(), &MockLedger{}, store, schedule.NewFakeClock(testNow))

	run, err := r.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, run.ItemsPurged)
}

func TestRunOnce_ShutdownBetweenBatches(t *testing.T) {
	store := storetest.NewMemory()
	seedExpired(t, store, 120)

	cfg := testConfig()
	cfg.BatchDelay = 2 * time.Second
	clock := schedule.NewFakeClock(testNow)
	ledger := &MockLedger{}
	r := newTestReaper(cfg, ledger, store, clock)

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		run *purgatory.RunLog
		err error
	}
	done := make(chan result, 1)
	go func() {
		run, err := r.RunOnce(ctx)
		done <- result{run, err}
	}()

	require.NoError(t, clock.BlockUntilWaiters(context.Background(), 1))
	cancel()

	var res result
	select {
	case res = <-done:
	case <-time.After(time.Second):
		t.Fatal("RunOnce did not return after cancel")
	}
	require.NoError(t, res.err)
	assert.Equal(t, purgatory.RunPartial, res.run.Status)
	assert.Equal(t, errInterrupted.Error(), res.run.ErrorMessage)
	assert.Equal(t, 50, res.run.ItemsPurged)
	assert.Equal(t, 70, res.run.ItemsFailed)
	assert.Equal(t, res.run.ItemsScanned, res.run.ItemsPurged+res.run.ItemsFailed)
	assert.Len(t, ledger.submissions(), 1)
	require.Len(t, store.Runs(), 1)
	assert.Equal(t, 70, store.Runs()[0].ItemsFailed)

	held, err := store.ListExpired(context.Background(), testNow.UnixMilli(), 0)
	require.NoError(t, err)
	assert.Len(t, held, 70)
}

func TestRunOnce_InFlightBatchSurvivesCancel(t *testing.T) {
	store := storetest.NewMemory()
	seedExpired(t, store, 60)

	ctx, cancel := context.WithCancel(context.Background())
	var submitErr error
	ledger := &MockLedger{
		SubmitTransactionFunc: func(ctx context.Context, _ sui.TxBody, _ uint64) (*sui.TxResult, error) {
			cancel()
			submitErr = ctx.Err()
			return &sui.TxResult{Success: true, Digest: "TXA", GasUsed: 10}, nil
		},
	}
	r := newTestReaper(testConfig(), ledger, store, schedule.NewFakeClock(testNow))

	run, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.NoError(t, submitErr)
	assert.Equal(t, 50, run.ItemsPurged)
	assert.Equal(t, errInterrupted.Error(), run.ErrorMessage)
	assert.Len(t, ledger.submissions(), 1)

	h, err := store.GetHolding(context.Background(), "0x0049")
	require.NoError(t, err)
	assert.Equal(t, purgatory.StatusPurged, h.Status)
}

func TestStart_SkipsTickWhileRunInFlight(t *testing.T) {
	store := storetest.NewMemory()
	seedExpired(t, store, 1)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	ledger := &MockLedger{
		AddressValue: "0xreaper",
		SubmitTransactionFunc: func(context.Context, sui.TxBody, uint64) (*sui.TxResult, error) {
			started <- struct{}{}
			<-release
			return &sui.TxResult{Success: true, Digest: "TX1"}, nil
		},
	}
	cfg := testConfig()
	cfg.Interval = time.Hour
	clock := schedule.NewFakeClock(testNow)
	r := newTestReaper(cfg, ledger, store, clock)

	skippedBefore := testutil.ToFloat64(metrics.ReaperRunsSkipped)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	<-started
	require.NoError(t, clock.BlockUntilWaiters(context.Background(), 1))
	clock.Advance(time.Hour)
	require.NoError(t, clock.BlockUntilWaiters(context.Background(), 1))

	assert.Equal(t, skippedBefore+1, testutil.ToFloat64(metrics.ReaperRunsSkipped))

	cancel()
	close(release)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}

	assert.Len(t, ledger.submissions(), 1)
	runs := store.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].ItemsPurged)
}

func TestBalance(t *testing.T) {
	ledger := &MockLedger{
		AddressValue: "0xreaper",
		GetBalanceFunc: func(_ context.Context, owner string) (*sui.Balance, error) {
			assert.Equal(t, "0xreaper", owner)
			return &sui.Balance{Owner: owner, CoinType: sui.SuiCoinType, Mist: decimal.NewFromInt(2_500_000_000)}, nil
		},
	}
	r := newTestReaper(testConfig(), ledger, storetest.NewMemory(), schedule.NewFakeClock(testNow))

	b, err := r.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.5", b.Sui().String())
	assert.Equal(t, 2.5, testutil.ToFloat64(metrics.ReaperBalance))
}

func TestBalance_NoSigner(t *testing.T) {
	r := newTestReaper(testConfig(), &MockLedger{}, storetest.NewMemory(), schedule.NewFakeClock(testNow))

	_, err := r.Balance(context.Background())
	assert.ErrorIs(t, err, sui.ErrNoSigner)
}

func TestChunk(t *testing.T) {
	items := make([]*purgatory.Holding, 7)
	for i := range items {
		items[i] = &purgatory.Holding{ItemID: fmt.Sprint(i)}
	}

	got := chunk(items, 3)
	require.Len(t, got, 3)
	assert.Len(t, got[0], 3)
	assert.Len(t, got[2], 1)
	assert.Empty(t, chunk(nil, 50))
}
