package langfilter

import (
	"context"
	"testing"

	"bookcourier/internal/model"
	"bookcourier/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memSettings is an in-memory SettingsStore that counts writes.
type memSettings struct {
	policies map[int64]model.LanguagePolicy
	puts     int
}

func newMemSettings() *memSettings {
	return &memSettings{policies: make(map[int64]model.LanguagePolicy)}
}

func (m *memSettings) Get(ctx context.Context, userID int64) (model.LanguagePolicy, error) {
	p, ok := m.policies[userID]
	if !ok {
		return model.LanguagePolicy{}, store.ErrNotFound
	}
	return p, nil
}

func (m *memSettings) Put(ctx context.Context, userID int64, policy model.LanguagePolicy) error {
	m.puts++
	m.policies[userID] = policy
	return nil
}

func TestResolve_DefaultWithoutWrite(t *testing.T) {
	settings := newMemSettings()
	f := New(settings, zap.NewNop())

	langs, err := f.Resolve(context.Background(), 1001)
	require.NoError(t, err)
	assert.Equal(t, []string{"ru", "be", "uk"}, langs)
	assert.Zero(t, settings.puts, "resolving a missing policy must not create a record")
}

func TestResolve_StoredPolicy(t *testing.T) {
	settings := newMemSettings()
	settings.policies[7] = model.LanguagePolicy{UserID: 7, Allowed: []string{"uk"}}
	f := New(settings, zap.NewNop())

	langs, err := f.Resolve(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"uk"}, langs)
}

func TestGuard_EmptyAllowList(t *testing.T) {
	settings := newMemSettings()
	settings.policies[7] = model.LanguagePolicy{UserID: 7, Allowed: nil}
	f := New(settings, zap.NewNop())

	_, err := f.Guard(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNoLanguages)
}

func TestToggle_OffThenOn(t *testing.T) {
	settings := newMemSettings()
	f := New(settings, zap.NewNop())
	ctx := context.Background()

	// first toggle creates the record from the default policy
	policy, err := f.Toggle(ctx, 9, "ru", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"be", "uk"}, policy.Allowed)
	assert.Equal(t, 1, settings.puts)

	policy, err = f.Toggle(ctx, 9, "uk", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"be"}, policy.Allowed)

	// toggling back on restores the canonical order
	policy, err = f.Toggle(ctx, 9, "ru", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"ru", "be"}, policy.Allowed)
}

func TestToggle_UnknownLanguage(t *testing.T) {
	f := New(newMemSettings(), zap.NewNop())

	_, err := f.Toggle(context.Background(), 9, "fr", true)
	assert.ErrorIs(t, err, ErrUnknownLanguage)
}

func TestToggle_Idempotent(t *testing.T) {
	settings := newMemSettings()
	f := New(settings, zap.NewNop())
	ctx := context.Background()

	first, err := f.Toggle(ctx, 3, "be", false)
	require.NoError(t, err)
	second, err := f.Toggle(ctx, 3, "be", false)
	require.NoError(t, err)
	assert.Equal(t, first.Allowed, second.Allowed)
}
