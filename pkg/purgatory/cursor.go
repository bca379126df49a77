package purgatory

import (
	"fmt"
	"time"
)

// Cursor is a durable position in the ledger's ordered event stream.
// The zero value means "before the first event".
type Cursor struct {
	Name            string
	TxDigest        string
	EventSeq        string
	EventsProcessed int64
	UpdatedAt       time.Time
}

// IsZero reports whether the cursor points before the first event.
func (c Cursor) IsZero() bool {
	return c.TxDigest == ""
}

func (c Cursor) String() string {
	if c.IsZero() {
		return "<start>"
	}
	return fmt.Sprintf("%s:%s", c.TxDigest, c.EventSeq)
}
