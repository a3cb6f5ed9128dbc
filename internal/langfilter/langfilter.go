// Package langfilter resolves the ordered set of catalog languages a
// user is allowed to see. A user with no stored policy gets the full
// default allow-list without a record being written; the record appears
// only on the first explicit toggle.
package langfilter

import (
	"context"
	"errors"
	"fmt"

	"bookcourier/internal/model"
	"bookcourier/internal/store"

	"go.uber.org/zap"
)

var (
	// ErrNoLanguages means the user has switched every language off.
	// Catalog-facing operations must short-circuit on it with a single
	// instruction message and no catalog call.
	ErrNoLanguages = errors.New("no languages enabled")
	// ErrUnknownLanguage rejects a toggle for a code outside
	// model.SupportedLanguages.
	ErrUnknownLanguage = errors.New("unknown language code")
)

// Filter reads and mutates per-user language policies.
type Filter struct {
	settings store.SettingsStore
	logger   *zap.Logger
}

func New(settings store.SettingsStore, logger *zap.Logger) *Filter {
	return &Filter{settings: settings, logger: logger}
}

// Resolve returns the user's allow-list in SupportedLanguages order.
// Absent policy means everything is allowed; no record is created.
func (f *Filter) Resolve(ctx context.Context, userID int64) ([]string, error) {
	policy, err := f.settings.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return model.DefaultPolicy(userID).Allowed, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve language policy: %w", err)
	}
	return policy.Allowed, nil
}

// Guard resolves the allow-list and fails with ErrNoLanguages when it
// is empty.
func (f *Filter) Guard(ctx context.Context, userID int64) ([]string, error) {
	langs, err := f.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(langs) == 0 {
		return nil, ErrNoLanguages
	}
	return langs, nil
}

// Toggle switches one language on or off: read latest, apply the single
// change, write back. Racing toggles for the same user resolve by last
// write wins, which is acceptable for human-paced settings changes.
func (f *Filter) Toggle(ctx context.Context, userID int64, code string, on bool) (model.LanguagePolicy, error) {
	known := false
	for _, c := range model.SupportedLanguages {
		if c == code {
			known = true
			break
		}
	}
	if !known {
		return model.LanguagePolicy{}, fmt.Errorf("%w: %q", ErrUnknownLanguage, code)
	}

	policy, err := f.settings.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		policy = model.DefaultPolicy(userID)
	} else if err != nil {
		return model.LanguagePolicy{}, fmt.Errorf("read language policy: %w", err)
	}

	next := policy.Toggle(code, on)
	if err := f.settings.Put(ctx, userID, next); err != nil {
		return model.LanguagePolicy{}, fmt.Errorf("write language policy: %w", err)
	}
	f.logger.Info("language toggled",
		zap.Int64("user_id", userID),
		zap.String("lang", code),
		zap.Bool("on", on),
		zap.Strings("allowed", next.Allowed))
	return next, nil
}
