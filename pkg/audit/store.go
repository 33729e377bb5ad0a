package audit

import (
	"context"
)

// Store is the append-only persistence boundary for the ledger. Insert adds
// one immutable row; Select reads rows most-recent-first under a Filter.
// The core never updates or deletes through this interface.
type Store interface {
	Insert(ctx context.Context, e *Entry) error
	Select(ctx context.Context, f Filter) ([]*Entry, error)
}
