package store

import (
	"context"
	"errors"

	"bookcourier/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
)

// CacheStore maps (book, variant) to the transport handle of the last
// successful upload. One live record per pair; a put replaces the prior
// record.
type CacheStore interface {
	Get(ctx context.Context, bookID int, variant model.Variant) (string, error)
	Put(ctx context.Context, bookID int, variant model.Variant, handle string) error
	Delete(ctx context.Context, bookID int, variant model.Variant) error
}

// ArchiveIndex maps (book, variant) to a message id in the archive
// channel. Best-effort and possibly stale: the referenced message may
// no longer exist upstream.
type ArchiveIndex interface {
	Get(ctx context.Context, bookID int, variant model.Variant) (int64, error)
}

// SettingsStore holds per-user language policies.
type SettingsStore interface {
	Get(ctx context.Context, userID int64) (model.LanguagePolicy, error)
	Put(ctx context.Context, userID int64, policy model.LanguagePolicy) error
}
