package deliver

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"bookcourier/internal/catalog"
	"bookcourier/internal/model"
	"bookcourier/internal/store"
	"bookcourier/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCatalog struct {
	book        *model.Book
	bookErr     error
	data        []byte
	downloadErr error
	downloads   atomic.Int32
}

func (f *fakeCatalog) BookByID(ctx context.Context, id int) (*model.Book, error) {
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	return f.book, nil
}

func (f *fakeCatalog) Download(ctx context.Context, id int, variant model.Variant) ([]byte, error) {
	f.downloads.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return f.data, nil
}

func (f *fakeCatalog) PublicDownloadLink(id int, variant model.Variant) string {
	return fmt.Sprintf("https://books.example.com/book/download/%d/%s", id, variant)
}

type memCache struct {
	records map[string]string
	putErr  error
	puts    int
}

func newMemCache() *memCache { return &memCache{records: make(map[string]string)} }

func cacheTestKey(bookID int, v model.Variant) string { return fmt.Sprintf("%d:%s", bookID, v) }

func (m *memCache) Get(ctx context.Context, bookID int, v model.Variant) (string, error) {
	h, ok := m.records[cacheTestKey(bookID, v)]
	if !ok {
		return "", store.ErrNotFound
	}
	return h, nil
}

func (m *memCache) Put(ctx context.Context, bookID int, v model.Variant, handle string) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.records[cacheTestKey(bookID, v)] = handle
	return nil
}

func (m *memCache) Delete(ctx context.Context, bookID int, v model.Variant) error {
	delete(m.records, cacheTestKey(bookID, v))
	return nil
}

type memArchive struct {
	refs map[string]int64
}

func (m *memArchive) Get(ctx context.Context, bookID int, v model.Variant) (int64, error) {
	ref, ok := m.refs[cacheTestKey(bookID, v)]
	if !ok {
		return 0, store.ErrNotFound
	}
	return ref, nil
}

func testBook() *model.Book {
	return &model.Book{
		ID: 42, Title: "Пикник на обочине", Lang: "ru", FileType: model.VariantFB2,
		Authors: []model.Author{{ID: 1, FirstName: "Аркадий", LastName: "Стругацкий"}},
	}
}

type fixture struct {
	cat *fakeCatalog
	cc  *memCache
	arc *memArchive
	rec *transport.Recorder
	p   *Pipeline
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	if cfg.NotifyInterval == 0 {
		cfg.NotifyInterval = time.Hour // keep presence noise out of assertions
	}
	f := &fixture{
		cat: &fakeCatalog{book: testBook(), data: []byte("document bytes")},
		cc:  newMemCache(),
		arc: &memArchive{refs: make(map[string]int64)},
		rec: transport.NewRecorder(),
	}
	f.p = New(f.cat, f.cc, f.arc, f.rec, zap.NewNop(), cfg)
	return f
}

func req() Request {
	return Request{BookID: 42, Variant: model.VariantFB2, ChatID: 1001, ReplyTo: 55}
}

func TestDeliver_NotFound(t *testing.T) {
	f := newFixture(t, Config{})
	f.cat.bookErr = catalog.ErrNotFound

	_, err := f.p.Deliver(context.Background(), req())
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	texts := f.rec.OfKind("text")
	require.Len(t, texts, 1, "exactly one user-visible message")
	assert.Equal(t, "Книга не найдена!", texts[0].Text)
	assert.Zero(t, f.cc.puts, "no cache write on failure")
	assert.Zero(t, f.cat.downloads.Load())
}

func TestDeliver_ViaArchiveForward(t *testing.T) {
	f := newFixture(t, Config{ArchiveChannelID: -100500})
	f.arc.refs[cacheTestKey(42, model.VariantFB2)] = 777

	outcome, err := f.p.Deliver(context.Background(), req())
	require.NoError(t, err)
	assert.Equal(t, model.ViaArchive, outcome.Via)

	require.Len(t, f.rec.OfKind("forward"), 1)
	assert.Zero(t, f.cat.downloads.Load(), "archive hit must not touch origin")
}

func TestDeliver_StaleArchiveFallsThrough(t *testing.T) {
	f := newFixture(t, Config{ArchiveChannelID: -100500})
	f.arc.refs[cacheTestKey(42, model.VariantFB2)] = 777
	f.rec.ForwardErr = transport.ErrNotFound

	outcome, err := f.p.Deliver(context.Background(), req())
	require.NoError(t, err)
	assert.Equal(t, model.ViaUpload, outcome.Via, "stale archive degrades to the next tiers")

	// the stale reference is left in place: lazy, no eviction
	_, ok := f.arc.refs[cacheTestKey(42, model.VariantFB2)]
	assert.True(t, ok)
}

func TestDeliver_ViaCacheResend(t *testing.T) {
	f := newFixture(t, Config{})
	f.cc.records[cacheTestKey(42, model.VariantFB2)] = "file-abc"

	outcome, err := f.p.Deliver(context.Background(), req())
	require.NoError(t, err)
	assert.Equal(t, model.ViaCache, outcome.Via)

	sends := f.rec.OfKind("document_handle")
	require.Len(t, sends, 1)
	assert.Equal(t, "file-abc", sends[0].Handle)
	assert.EqualValues(t, 55, sends[0].Opts.ReplyTo)
	assert.Zero(t, f.cat.downloads.Load())
}

func TestDeliver_CacheResendRetriesWithoutReply(t *testing.T) {
	f := newFixture(t, Config{})
	f.cc.records[cacheTestKey(42, model.VariantFB2)] = "file-abc"
	f.rec.HandleErr = transport.ErrRejected
	f.rec.FailHandleOnce = true

	outcome, err := f.p.Deliver(context.Background(), req())
	require.NoError(t, err)
	assert.Equal(t, model.ViaCache, outcome.Via)

	sends := f.rec.OfKind("document_handle")
	require.Len(t, sends, 1)
	assert.Zero(t, sends[0].Opts.ReplyTo, "retry drops the reply framing")
}

func TestDeliver_CacheResendOtherErrorIsTerminal(t *testing.T) {
	f := newFixture(t, Config{})
	f.cc.records[cacheTestKey(42, model.VariantFB2)] = "file-abc"
	f.rec.HandleErr = transport.ErrDisconnected

	_, err := f.p.Deliver(context.Background(), req())
	assert.ErrorIs(t, err, transport.ErrDisconnected)

	texts := f.rec.OfKind("text")
	require.Len(t, texts, 1)
	assert.Equal(t, "Ошибка! Попробуйте позже :(", texts[0].Text)
	assert.Zero(t, f.cat.downloads.Load(), "a terminal cache failure never reaches origin")
}

func TestDeliver_UploadThenCacheIdempotence(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	outcome, err := f.p.Deliver(ctx, req())
	require.NoError(t, err)
	assert.Equal(t, model.ViaUpload, outcome.Via)
	assert.EqualValues(t, 1, f.cat.downloads.Load())

	// second request for the same pair resolves from the cache without
	// touching origin again
	outcome, err = f.p.Deliver(ctx, req())
	require.NoError(t, err)
	assert.Equal(t, model.ViaCache, outcome.Via)
	assert.EqualValues(t, 1, f.cat.downloads.Load())

	sends := f.rec.OfKind("document_handle")
	require.Len(t, sends, 1)
	assert.Equal(t, "handle-1", sends[0].Handle, "resend uses the handle from the first upload")
}

func TestDeliver_SizeLimitBoundary(t *testing.T) {
	const limit = 64

	t.Run("exactly at the limit is attachable", func(t *testing.T) {
		f := newFixture(t, Config{MaxPayload: limit})
		f.cat.data = make([]byte, limit)

		outcome, err := f.p.Deliver(context.Background(), req())
		require.NoError(t, err)
		assert.Equal(t, model.ViaUpload, outcome.Via)
	})

	t.Run("one byte over falls back to a link", func(t *testing.T) {
		f := newFixture(t, Config{MaxPayload: limit})
		f.cat.data = make([]byte, limit+1)

		outcome, err := f.p.Deliver(context.Background(), req())
		require.NoError(t, err)
		assert.Equal(t, model.ViaLink, outcome.Via)

		assert.Empty(t, f.rec.OfKind("document"), "oversized payload is never uploaded")
		texts := f.rec.OfKind("text")
		require.Len(t, texts, 1)
		assert.Contains(t, texts[0].Text, "https://books.example.com/book/download/42/fb2")
		assert.Zero(t, f.cc.puts, "link fallback does not populate the cache")
	})
}

func TestDeliver_UploadRejectedRetriesWithFreshCopy(t *testing.T) {
	f := newFixture(t, Config{})
	f.rec.DocumentErr = transport.ErrRejected
	f.rec.FailDocumentOnce = true

	outcome, err := f.p.Deliver(context.Background(), req())
	require.NoError(t, err)
	assert.Equal(t, model.ViaUpload, outcome.Via)

	attempts := f.rec.OfKind("document_attempt")
	require.Len(t, attempts, 1)
	assert.EqualValues(t, 55, attempts[0].Opts.ReplyTo)

	uploads := f.rec.OfKind("document")
	require.Len(t, uploads, 1)
	assert.Zero(t, uploads[0].Opts.ReplyTo, "retry drops the reply framing")
	assert.Equal(t, f.cat.data, uploads[0].Data, "retry payload is byte-identical")
	assert.Equal(t, 1, f.cc.puts)
}

func TestDeliver_UploadGenericFailureIsTerminal(t *testing.T) {
	f := newFixture(t, Config{})
	f.rec.DocumentErr = transport.ErrDisconnected

	_, err := f.p.Deliver(context.Background(), req())
	assert.ErrorIs(t, err, transport.ErrDisconnected)

	texts := f.rec.OfKind("text")
	require.Len(t, texts, 1)
	assert.Zero(t, f.cc.puts, "no cache write on failure")
}

func TestDeliver_DownloadUnavailable(t *testing.T) {
	f := newFixture(t, Config{})
	f.cat.downloadErr = catalog.ErrUnavailable

	_, err := f.p.Deliver(context.Background(), req())
	assert.ErrorIs(t, err, catalog.ErrUnavailable)

	texts := f.rec.OfKind("text")
	require.Len(t, texts, 1)
	assert.Equal(t, "Ошибка! Попробуйте позже :(", texts[0].Text)
	assert.EqualValues(t, 1, f.cat.downloads.Load(), "no retry loop on unavailable origin")
}

func TestDeliver_CacheWriteFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t, Config{})
	f.cc.putErr = errors.New("store down")

	outcome, err := f.p.Deliver(context.Background(), req())
	require.NoError(t, err, "the user already has the document")
	assert.Equal(t, model.ViaUpload, outcome.Via)
}

func TestRemoveCached_ForcesFreshUpload(t *testing.T) {
	f := newFixture(t, Config{})
	f.cc.records[cacheTestKey(42, model.VariantFB2)] = "broken-handle"

	outcome, err := f.p.RemoveCached(context.Background(), req())
	require.NoError(t, err)
	assert.Equal(t, model.ViaUpload, outcome.Via)
	assert.EqualValues(t, 1, f.cat.downloads.Load())
	assert.Equal(t, "handle-1", f.cc.records[cacheTestKey(42, model.VariantFB2)])
}

func TestDeliver_DownloadDetachedFromCallerCancel(t *testing.T) {
	f := newFixture(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// a caller that gave up must not fail the origin fetch another
	// concurrent request may be sharing
	outcome, err := f.p.Deliver(ctx, req())
	require.NoError(t, err)
	assert.Equal(t, model.ViaUpload, outcome.Via)
	assert.EqualValues(t, 1, f.cat.downloads.Load())
}

func TestDeliver_NotifierStopsOnEveryPath(t *testing.T) {
	f := newFixture(t, Config{NotifyInterval: 10 * time.Millisecond})
	f.cat.bookErr = catalog.ErrNotFound

	_, _ = f.p.Deliver(context.Background(), req())

	before := len(f.rec.OfKind("action"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, len(f.rec.OfKind("action")), "no chat actions after Deliver returned")
}
