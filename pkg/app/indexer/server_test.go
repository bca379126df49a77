package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/purgatory-reaper/pkg/config"
	"github.com/chainsafe/purgatory-reaper/pkg/sui"
)

const minimalConfig = `
database:
  user: reaper
sui:
  rpc_url: http://127.0.0.1:9000
  package_id: "0xabc"
  global_purgatory_id: "0xdef"
indexer:
  start_tx_digest: GENESIS
  start_event_seq: "0"
  poll_interval: 5s
`

func TestIndexerConfig(t *testing.T) {
	cfg, err := config.Parse([]byte(minimalConfig))
	require.NoError(t, err)

	got := indexerConfig(cfg, sui.ModuleFilter{Package: "0xabc", Module: "core"})
	assert.Equal(t, "purgatory", got.CursorName)
	assert.Equal(t, 50, got.PageSize)
	assert.Equal(t, 5*time.Second, got.PollInterval)
	assert.Equal(t, 30*time.Second, got.ErrorBackoff)
	assert.Equal(t, "GENESIS", got.Start.TxDigest)
	assert.Equal(t, "0", got.Start.EventSeq)
	assert.Equal(t, int64(10_000_000), got.ServiceFee)
	assert.Equal(t, "core", got.Filter.Module)
}

func TestRun_NilConfig(t *testing.T) {
	err := NewServer(nil, ModeLive, false).Run()
	assert.EqualError(t, err, "nil config")
}

func TestRun_StoreUnreachableKeepsRunning(t *testing.T) {
	cfg, err := config.Parse([]byte(minimalConfig))
	require.NoError(t, err)
	cfg.Database.Host = "127.0.0.1"
	cfg.Database.Port = 1
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Indexer.ErrorBackoff = 20 * time.Millisecond
	cfg.Monitoring.Enabled = false
	cfg.Logging.Level = "error"

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = NewServer(cfg, ModeLive, false).run(ctx)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)
}
