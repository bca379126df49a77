package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatorystore"
)

// Holding builds a HELD holding deposited at depositMs.
func Holding(itemID, itemType, depositor string, depositMs int64) *purgatory.Holding {
	return &purgatory.Holding{
		ItemID:           itemID,
		ItemType:         itemType,
		Depositor:        depositor,
		DepositTimestamp: depositMs,
		FeePaid:          10_000_000,
		DisposalReason:   purgatory.ReasonJunk,
		Status:           purgatory.StatusHeld,
	}
}

// RunContract exercises the behaviour every purgatorystore.Store must share.
// newStore must return an empty store.
func RunContract(t *testing.T, newStore func(t *testing.T) purgatorystore.Store) {
	t.Run("InsertHoldingIsIdempotent", func(t *testing.T) {
		s, ctx := newStore(t), context.Background()

		inserted, err := s.InsertHolding(ctx, Holding("0x1", "0x2::nft::A", "0xalice", 1000))
		require.NoError(t, err)
		assert.True(t, inserted)

		dup := Holding("0x1", "0x2::nft::B", "0xbob", 2000)
		inserted, err = s.InsertHolding(ctx, dup)
		require.NoError(t, err)
		assert.False(t, inserted)

		got, err := s.GetHolding(ctx, "0x1")
		require.NoError(t, err)
		assert.Equal(t, "0x2::nft::A", got.ItemType)
		assert.Equal(t, purgatory.StatusHeld, got.Status)
		assert.Equal(t, int64(10_000_000), got.FeePaid)
	})

	t.Run("GetHoldingNotFound", func(t *testing.T) {
		s, ctx := newStore(t), context.Background()
		_, err := s.GetHolding(ctx, "0xmissing")
		assert.True(t, errors.Is(err, purgatorystore.ErrHoldingNotFound))
	})

	t.Run("TerminalStatesNeverChange", func(t *testing.T) {
		s, ctx := newStore(t), context.Background()
		_, err := s.InsertHolding(ctx, Holding("0xa", "T", "0xalice", 1))
		require.NoError(t, err)
		_, err = s.InsertHolding(ctx, Holding("0xb", "T", "0xalice", 1))
		require.NoError(t, err)

		ok, err := s.MarkPurged(ctx, "0xa", "digestA")
		require.NoError(t, err)
		assert.True(t, ok)

		// Restored after Purged stays PURGED.
		ok, err = s.MarkRestored(ctx, "0xa")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = s.MarkRestored(ctx, "0xb")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = s.MarkPurged(ctx, "0xb", "digestB")
		require.NoError(t, err)
		assert.False(t, ok)

		a, err := s.GetHolding(ctx, "0xa")
		require.NoError(t, err)
		assert.Equal(t, purgatory.StatusPurged, a.Status)
		assert.Equal(t, "digestA", a.PurgeTxID)
		assert.NotNil(t, a.PurgedAt)

		b, err := s.GetHolding(ctx, "0xb")
		require.NoError(t, err)
		assert.Equal(t, purgatory.StatusRestored, b.Status)
		assert.Empty(t, b.PurgeTxID)
		assert.NotNil(t, b.RestoredAt)

		ok, err = s.MarkRestored(ctx, "0xunknown")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("MarkPurgedBatchOnlyTouchesHeld", func(t *testing.T) {
		s, ctx := newStore(t), context.Background()
		for i := 0; i < 3; i++ {
			_, err := s.InsertHolding(ctx, Holding(fmt.Sprintf("0x%d", i), "T", "0xalice", int64(i)))
			require.NoError(t, err)
		}
		_, err := s.MarkRestored(ctx, "0x1")
		require.NoError(t, err)

		n, err := s.MarkPurgedBatch(ctx, []string{"0x0", "0x1", "0x2", "0x9"}, "digest")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = s.MarkPurgedBatch(ctx, nil, "digest")
		require.NoError(t, err)
		assert.Zero(t, n)

		stats, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.Held)
		assert.Equal(t, int64(1), stats.Restored)
		assert.Equal(t, int64(2), stats.Purged)
		assert.Equal(t, int64(3), stats.Total)
		assert.Equal(t, int64(30_000_000), stats.FeesPaid)
	})

	t.Run("ListExpiredOrderedAndLimited", func(t *testing.T) {
		s, ctx := newStore(t), context.Background()
		for _, h := range []*purgatory.Holding{
			Holding("0xc", "T", "0xalice", 300),
			Holding("0xa", "T", "0xalice", 100),
			Holding("0xb", "T", "0xbob", 200),
			Holding("0xd", "T", "0xbob", 900),
		} {
			_, err := s.InsertHolding(ctx, h)
			require.NoError(t, err)
		}
		_, err := s.MarkPurged(ctx, "0xb", "d")
		require.NoError(t, err)

		expired, err := s.ListExpired(ctx, 500, 10)
		require.NoError(t, err)
		require.Len(t, expired, 2)
		assert.Equal(t, "0xa", expired[0].ItemID)
		assert.Equal(t, "0xc", expired[1].ItemID)

		expired, err = s.ListExpired(ctx, 500, 1)
		require.NoError(t, err)
		require.Len(t, expired, 1)
		assert.Equal(t, "0xa", expired[0].ItemID)

		// Strictly before the threshold.
		expired, err = s.ListExpired(ctx, 100, 10)
		require.NoError(t, err)
		assert.Empty(t, expired)
	})

	t.Run("ListByDepositorNewestFirst", func(t *testing.T) {
		s, ctx := newStore(t), context.Background()
		for _, h := range []*purgatory.Holding{
			Holding("0x1", "T", "0xalice", 100),
			Holding("0x2", "T", "0xalice", 300),
			Holding("0x3", "T", "0xbob", 200),
		} {
			_, err := s.InsertHolding(ctx, h)
			require.NoError(t, err)
		}
		got, err := s.ListByDepositor(ctx, "0xalice")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "0x2", got[0].ItemID)
		assert.Equal(t, "0x1", got[1].ItemID)

		got, err = s.ListByDepositor(ctx, "0xnobody")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("DisposalReportsOncePerItem", func(t *testing.T) {
		s, ctx := newStore(t), context.Background()
		report := &purgatory.DisposalReport{
			ItemID: "0x1", ItemType: "T", ReporterAddress: "0xalice",
			Reason: purgatory.ReasonSpam, LedgerTxID: "tx1", Timestamp: 1,
		}
		inserted, err := s.InsertDisposalReport(ctx, report)
		require.NoError(t, err)
		assert.True(t, inserted)
		inserted, err = s.InsertDisposalReport(ctx, report)
		require.NoError(t, err)
		assert.False(t, inserted)

		_, err = s.InsertDisposalReport(ctx, &purgatory.DisposalReport{
			ItemID: "0x2", ItemType: "T", ReporterAddress: "0xalice", LedgerTxID: "tx2",
		})
		require.NoError(t, err)
		_, err = s.InsertDisposalReport(ctx, &purgatory.DisposalReport{
			ItemID: "0x3", ItemType: "T", ReporterAddress: "0xbob", LedgerTxID: "tx3",
		})
		require.NoError(t, err)

		n, err := s.CountReporters(ctx, "T")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("ReputationRoundTrip", func(t *testing.T) {
		s, ctx := newStore(t), context.Background()

		_, err := s.GetReputation(ctx, "T")
		assert.True(t, errors.Is(err, purgatorystore.ErrReputationNotFound))

		require.NoError(t, s.EnsureReputation(ctx, "T"))
		require.NoError(t, s.EnsureReputation(ctx, "T"))

		rep, err := s.GetReputationForUpdate(ctx, "T")
		require.NoError(t, err)
		assert.Equal(t, int64(0), rep.TotalReports)
		assert.Equal(t, 100.0, rep.ReputationScore)

		rep.JunkCount, rep.MaliciousCount, rep.TotalReports = 1, 1, 2
		rep.UniqueReporters = 2
		rep.ReputationScore = 47.5
		require.NoError(t, s.SaveReputation(ctx, rep))

		got, err := s.GetReputation(ctx, "T")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.MaliciousCount)
		assert.Equal(t, int64(2), got.TotalReports)
		assert.Equal(t, int64(2), got.UniqueReporters)
		assert.Equal(t, 47.5, got.ReputationScore)
	})

	t.Run("ListReputationsOrders", func(t *testing.T) {
		s, ctx := newStore(t), context.Background()
		seed := []purgatory.CollectionReputation{
			{ItemType: "A", MaliciousCount: 5, TotalReports: 5, ReputationScore: 0},
			{ItemType: "B", SpamCount: 7, TotalReports: 7, ReputationScore: 80},
			{ItemType: "C", JunkCount: 2, TotalReports: 2, ReputationScore: 100},
		}
		for i := range seed {
			require.NoError(t, s.EnsureReputation(ctx, seed[i].ItemType))
			require.NoError(t, s.SaveReputation(ctx, &seed[i]))
		}

		cases := []struct {
			order purgatory.ReputationOrder
			first string
		}{
			{purgatory.OrderMostMalicious, "A"},
			{purgatory.OrderMostSpam, "B"},
			{purgatory.OrderLowestReputation, "A"},
		}
		for _, tc := range cases {
			got, err := s.ListReputations(ctx, tc.order, 2)
			require.NoError(t, err)
			require.Len(t, got, 2, "order %s", tc.order)
			assert.Equal(t, tc.first, got[0].ItemType, "order %s", tc.order)
		}

		_, err := s.ListReputations(ctx, "loudest", 2)
		assert.Error(t, err)
	})

	t.Run("RunLogsNewestFirst", func(t *testing.T) {
		s, ctx := newStore(t), context.Background()
		first := purgatory.NewRunLog(testEpoch)
		first.ItemsScanned, first.ItemsPurged = 3, 3
		first.TxIDs = []string{"d1"}
		first.Finish(testEpoch.Add(1500 * time.Millisecond))

		second := purgatory.NewRunLog(testEpoch.Add(testHour))
		second.Abort(errors.New("db down"), testEpoch.Add(testHour))

		require.NoError(t, s.InsertRunLog(ctx, first))
		require.NoError(t, s.InsertRunLog(ctx, second))

		logs, err := s.ListRunLogs(ctx, 10)
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, second.RunID, logs[0].RunID)
		assert.Equal(t, purgatory.RunFailed, logs[0].Status)
		assert.Equal(t, "db down", logs[0].ErrorMessage)
		assert.Equal(t, purgatory.RunSuccess, logs[1].Status)
		assert.Equal(t, []string{"d1"}, logs[1].TxIDs)

		logs, err = s.ListRunLogs(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, logs, 1)
	})

	t.Run("CursorUpsert", func(t *testing.T) {
		s, ctx := newStore(t), context.Background()

		_, err := s.GetCursor(ctx, "live")
		assert.True(t, errors.Is(err, purgatorystore.ErrCursorNotFound))

		require.NoError(t, s.SaveCursor(ctx, &purgatory.Cursor{Name: "live", TxDigest: "d1", EventSeq: "0", EventsProcessed: 1}))
		require.NoError(t, s.SaveCursor(ctx, &purgatory.Cursor{Name: "live", TxDigest: "d2", EventSeq: "3", EventsProcessed: 5}))

		c, err := s.GetCursor(ctx, "live")
		require.NoError(t, err)
		assert.Equal(t, "d2", c.TxDigest)
		assert.Equal(t, "3", c.EventSeq)
		assert.Equal(t, int64(5), c.EventsProcessed)
	})

	t.Run("RunInTxRollsBack", func(t *testing.T) {
		s, ctx := newStore(t), context.Background()
		boom := errors.New("boom")

		err := s.RunInTx(ctx, func(ctx context.Context, tx purgatorystore.Store) error {
			if _, err := tx.InsertHolding(ctx, Holding("0x1", "T", "0xalice", 1)); err != nil {
				return err
			}
			return boom
		})
		assert.True(t, errors.Is(err, boom))

		_, err = s.GetHolding(ctx, "0x1")
		assert.True(t, errors.Is(err, purgatorystore.ErrHoldingNotFound))

		err = s.RunInTx(ctx, func(ctx context.Context, tx purgatorystore.Store) error {
			_, err := tx.InsertHolding(ctx, Holding("0x1", "T", "0xalice", 1))
			return err
		})
		require.NoError(t, err)
		_, err = s.GetHolding(ctx, "0x1")
		assert.NoError(t, err)
	})
}

var testEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

const testHour = time.Hour
