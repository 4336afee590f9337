// Package seen persists the set of order ids the admin operator has already
// been shown. The set only grows; losing it is not fatal, it just means the
// tracker re-baselines on next start.
package seen

import "context"

// DefaultKey namespaces the persisted set so several services can share one
// storage backend.
const DefaultKey = "tkani_admin_seen_order_ids"

type Store interface {
	// Load returns the persisted ids. A missing or corrupted value loads
	// as an empty set, not an error.
	Load(ctx context.Context) ([]string, error)
	// Save replaces the persisted set with the given ids.
	Save(ctx context.Context, ids []string) error
	// Reset erases the persisted set entirely.
	Reset(ctx context.Context) error
}
