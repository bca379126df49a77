package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
	"github.com/chainsafe/purgatory-reaper/pkg/sui"
)

// Event names emitted by the custody module.
const (
	EventItemThrown   = "ItemThrown"
	EventItemRestored = "ItemRestored"
	EventItemPurged   = "ItemPurged"
)

// unknownItemType is recorded when a deposit event carries no type.
const unknownItemType = "Unknown"

var (
	// ErrUnknownEventKind is returned by Decode for events outside the closed set.
	ErrUnknownEventKind = errors.New("unknown event kind")
	// ErrMalformedEvent is returned by Decode when a known event has a bad payload.
	ErrMalformedEvent = errors.New("malformed event payload")
)

// Event is one decoded custody event. The set is closed: Deposited, Restored
// and Purged are the only implementations.
type Event interface {
	Kind() string
	Item() string
	isEvent()
}

// Deposited records an item entering custody.
type Deposited struct {
	ItemID    string
	ItemType  string
	Depositor string
	Reason    purgatory.DisposalReason
	Timestamp int64
	Fee       int64
	TxDigest  string
}

// Restored records an item returned to its depositor.
type Restored struct {
	ItemID   string
	TxDigest string
}

// Purged records an item destroyed after its retention period.
type Purged struct {
	ItemID   string
	TxDigest string
}

func (Deposited) Kind() string { return EventItemThrown }
func (Restored) Kind() string  { return EventItemRestored }
func (Purged) Kind() string    { return EventItemPurged }

func (e Deposited) Item() string { return e.ItemID }
func (e Restored) Item() string  { return e.ItemID }
func (e Purged) Item() string    { return e.ItemID }

func (Deposited) isEvent() {}
func (Restored) isEvent()  {}
func (Purged) isEvent()    {}

type payload struct {
	ItemID        string          `json:"item_id"`
	ItemType      json.RawMessage `json:"item_type"`
	OriginalOwner string          `json:"original_owner"`
	Reason        json.RawMessage `json:"reason"`
	Timestamp     json.RawMessage `json:"timestamp"`
	Fee           json.RawMessage `json:"fee"`
}

// Decode maps a ledger event onto the closed event set. defaultFee is used for
// deposits whose payload carries no fee.
func Decode(ev *sui.Event, defaultFee int64) (Event, error) {
	name := ev.Name()
	switch name {
	case EventItemThrown, EventItemRestored, EventItemPurged:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventKind, name)
	}

	var p payload
	if err := json.Unmarshal(ev.ParsedJSON, &p); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, name, err)
	}
	if p.ItemID == "" {
		return nil, fmt.Errorf("%w: %s: missing item_id", ErrMalformedEvent, name)
	}

	switch name {
	case EventItemRestored:
		return Restored{ItemID: p.ItemID, TxDigest: ev.ID.TxDigest}, nil
	case EventItemPurged:
		return Purged{ItemID: p.ItemID, TxDigest: ev.ID.TxDigest}, nil
	}

	if p.OriginalOwner == "" {
		return nil, fmt.Errorf("%w: %s: missing original_owner", ErrMalformedEvent, name)
	}

	d := Deposited{
		ItemID:    p.ItemID,
		ItemType:  typeName(p.ItemType),
		Depositor: p.OriginalOwner,
		Fee:       defaultFee,
		TxDigest:  ev.ID.TxDigest,
	}

	if len(p.Reason) > 0 {
		v, err := parseU64(p.Reason)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: reason: %v", ErrMalformedEvent, name, err)
		}
		if d.Reason, err = purgatory.ParseDisposalReason(v); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, name, err)
		}
	}

	ts := p.Timestamp
	if len(ts) == 0 && ev.TimestampMs != "" {
		ts = json.RawMessage(strconv.Quote(ev.TimestampMs))
	}
	if len(ts) == 0 {
		return nil, fmt.Errorf("%w: %s: missing timestamp", ErrMalformedEvent, name)
	}
	v, err := parseU64(ts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: timestamp: %v", ErrMalformedEvent, name, err)
	}
	d.Timestamp = v

	if len(p.Fee) > 0 {
		if fee, err := parseU64(p.Fee); err == nil {
			d.Fee = fee
		}
	}
	return d, nil
}

// parseU64 accepts a JSON number or a decimal string; the ledger renders u64
// values as strings.
func parseU64(raw json.RawMessage) (int64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "null" {
		return 0, errors.New("null value")
	}
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative value %d", v)
	}
	return v, nil
}

// typeName reads a type either as a plain string or as a TypeName struct
// {"name": "..."}; the latter omits the 0x address prefix.
func typeName(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return unknownItemType
	}

	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		var tn struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &tn); err != nil {
			return unknownItemType
		}
		name = tn.Name
	}
	if name == "" {
		return unknownItemType
	}
	if !strings.HasPrefix(name, "0x") && strings.Contains(name, "::") {
		name = "0x" + name
	}
	return name
}
