package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatorystore"
	"github.com/chainsafe/purgatory-reaper/pkg/sui"
)

// MockLedger is a mock implementation of Ledger
type MockLedger struct {
	QueryEventsFunc func(ctx context.Context, filter sui.ModuleFilter, cursor *sui.EventID, limit int) (*sui.EventPage, error)
}

func (m *MockLedger) QueryEvents(ctx context.Context, filter sui.ModuleFilter, cursor *sui.EventID, limit int) (*sui.EventPage, error) {
	if m.QueryEventsFunc != nil {
		return m.QueryEventsFunc(ctx, filter, cursor, limit)
	}
	return &sui.EventPage{}, nil
}

// fakeChain serves a fixed event history in pages, like a full node would.
type fakeChain struct {
	mu      sync.Mutex
	events  []sui.Event
	errs    []error
	queries []*sui.EventID
}

func (c *fakeChain) append(evs ...sui.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evs...)
}

func (c *fakeChain) failNext(errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, errs...)
}

func (c *fakeChain) QueryEvents(_ context.Context, _ sui.ModuleFilter, cursor *sui.EventID, limit int) (*sui.EventPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queries = append(c.queries, cursor)
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		return nil, err
	}

	start := 0
	if cursor != nil {
		start = -1
		for i, ev := range c.events {
			if ev.ID == *cursor {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return nil, fmt.Errorf("cursor %v not found", *cursor)
		}
	}

	end := start + limit
	if end > len(c.events) {
		end = len(c.events)
	}
	page := &sui.EventPage{Data: append([]sui.Event(nil), c.events[start:end]...)}
	if end > start {
		last := c.events[end-1].ID
		page.NextCursor = &last
	}
	page.HasNextPage = end < len(c.events)
	return page, nil
}

func (c *fakeChain) lastQuery() *sui.EventID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queries) == 0 {
		return nil
	}
	return c.queries[len(c.queries)-1]
}

// failingStore wraps the in-memory store and fails selected operations.
type failingStore struct {
	purgatorystore.Store
	MarkRestoredFunc func(ctx context.Context, itemID string) (bool, error)
	SaveCursorFunc   func(ctx context.Context, c *purgatory.Cursor) error
}

func (s *failingStore) MarkRestored(ctx context.Context, itemID string) (bool, error) {
	if s.MarkRestoredFunc != nil {
		return s.MarkRestoredFunc(ctx, itemID)
	}
	return s.Store.MarkRestored(ctx, itemID)
}

func (s *failingStore) SaveCursor(ctx context.Context, c *purgatory.Cursor) error {
	if s.SaveCursorFunc != nil {
		return s.SaveCursorFunc(ctx, c)
	}
	return s.Store.SaveCursor(ctx, c)
}

func event(digest string, seq int, name string, payload map[string]any) sui.Event {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return sui.Event{
		ID:         sui.EventID{TxDigest: digest, EventSeq: fmt.Sprint(seq)},
		Type:       "0xpkg::core::" + name,
		ParsedJSON: raw,
	}
}

func thrown(digest, itemID, itemType, owner string, reason int, ts int64) sui.Event {
	return event(digest, 0, EventItemThrown, map[string]any{
		"item_id":        itemID,
		"item_type":      itemType,
		"original_owner": owner,
		"reason":         reason,
		"timestamp":      fmt.Sprint(ts),
	})
}

func restored(digest, itemID string) sui.Event {
	return event(digest, 0, EventItemRestored, map[string]any{"item_id": itemID})
}

func purged(digest, itemID string) sui.Event {
	return event(digest, 0, EventItemPurged, map[string]any{"item_id": itemID})
}
