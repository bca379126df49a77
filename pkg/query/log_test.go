package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatorystore/storetest"
	"github.com/chainsafe/purgatory-reaper/pkg/reputation"
)

var testRunTime = time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC)

func newObservedService(store Store) (Service, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewLog(NewService(store, reputation.DefaultThresholds(), zap.NewNop()), zap.New(core)), logs
}

func TestLog_LevelsByErrorCategory(t *testing.T) {
	ctx := context.Background()
	store := storetest.NewMemory()
	_, err := store.InsertHolding(ctx, storetest.Holding("0x1", cardType, "0xalice", 1000))
	require.NoError(t, err)
	svc, logs := newObservedService(store)

	_, err = svc.GetHolding(ctx, "0x1")
	require.NoError(t, err)
	_, err = svc.GetHolding(ctx, "0x404")
	require.Error(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "GetHolding completed", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, "GetHolding rejected", entries[1].Message)
	assert.Equal(t, "0x404", entries[1].ContextMap()["item_id"])
}

func TestLog_InternalErrorsAtErrorLevel(t *testing.T) {
	svc, logs := newObservedService(&MockStore{
		ListRunLogsFunc: func(context.Context, int) ([]*purgatory.RunLog, error) {
			return nil, errors.New("timeout")
		},
	})

	_, err := svc.GetRunHistory(context.Background(), 5)
	require.Error(t, err)

	failed := logs.FilterMessage("GetRunHistory failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
	assert.Equal(t, int64(5), failed[0].ContextMap()["limit"])
	assert.Equal(t, serviceName, failed[0].ContextMap()["service"])
}

func TestLog_CheckBatchCountsFlagged(t *testing.T) {
	store := storetest.NewMemory()
	report(t, store, "0xa::bad::Drop", purgatory.ReasonMalicious, 10)
	svc, logs := newObservedService(store)

	_, err := svc.CheckBatch(context.Background(), []string{"0xa::bad::Drop", "0xa::ok::Drop"})
	require.NoError(t, err)

	entries := logs.FilterMessage("CheckBatch completed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ContextMap()["flagged"])
	assert.Equal(t, int64(2), entries[0].ContextMap()["item_types"])
}
