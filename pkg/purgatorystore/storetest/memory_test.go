package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatorystore"
)

func TestMemoryContract(t *testing.T) {
	RunContract(t, func(*testing.T) purgatorystore.Store { return NewMemory() })
}

func TestMemory_RollbackKeepsConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.InsertHolding(ctx, Holding("0xold", "0x2::card::Card", "0xalice", 1))
	require.NoError(t, err)

	inTx := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- m.RunInTx(ctx, func(ctx context.Context, tx purgatorystore.Store) error {
			if _, err := tx.InsertHolding(ctx, Holding("0xnew", "0x2::card::Card", "0xbob", 2)); err != nil {
				return err
			}
			close(inTx)
			<-release
			return errors.New("handler failed")
		})
	}()

	<-inTx
	markDone := make(chan int, 1)
	go func() {
		n, _ := m.MarkPurgedBatch(ctx, []string{"0xold"}, "TX1")
		markDone <- n
	}()

	select {
	case <-markDone:
		t.Fatal("write outside the transaction did not wait for it")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)

	require.EqualError(t, <-txDone, "handler failed")
	assert.Equal(t, 1, <-markDone)

	_, err = m.GetHolding(ctx, "0xnew")
	assert.ErrorIs(t, err, purgatorystore.ErrHoldingNotFound)

	h, err := m.GetHolding(ctx, "0xold")
	require.NoError(t, err)
	assert.Equal(t, purgatory.StatusPurged, h.Status)
	assert.Equal(t, "TX1", h.PurgeTxID)
}
