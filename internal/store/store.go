package store

import (
	"context"
	"strings"
)

// keyPrefix scopes every record this application writes, so the store
// can be shared with other tools without collisions.
const keyPrefix = "mindease"

// RecordStore is flat keyed persistence for JSON-serializable records.
// A Put is durable once it returns. A stored value that no longer
// parses is reported as absent by Get, never as a fatal error; the
// caller re-initializes that record.
type RecordStore interface {
	// Put marshals value and overwrites the record at key.
	Put(ctx context.Context, key string, value any) error
	// Get unmarshals the record at key into out. The bool reports
	// whether a usable record existed.
	Get(ctx context.Context, key string, out any) (bool, error)
	// GetRaw returns the stored JSON verbatim, for export bundles.
	GetRaw(ctx context.Context, key string) (string, bool, error)
	// Delete removes the record at key; absent keys are a no-op.
	Delete(ctx context.Context, key string) error
	// ListKeys returns every key beginning with prefix.
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

// CurrentUserKey locates the single current-user pointer record.
func CurrentUserKey() string {
	return keyPrefix + "-user"
}

// EntityKey builds the per-user record key for one entity collection,
// e.g. "mindease-mood-42".
func EntityKey(entity, userID string) string {
	return keyPrefix + "-" + entity + "-" + userID
}

// AppPrefix is the prefix shared by every record of this application.
func AppPrefix() string {
	return keyPrefix + "-"
}

// BelongsTo reports whether key is scoped to the given user.
func BelongsTo(key, userID string) bool {
	return strings.HasSuffix(key, "-"+userID)
}
