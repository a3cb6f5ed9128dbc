// Package deliver implements the tiered delivery pipeline. A request
// for (book, variant) is resolved against the cheapest source first:
// forward an archived copy, resend a cached transport handle, and only
// then fetch the bytes from the origin catalog. Every successful upload
// seeds the cache so the next request for the same pair is cheaper.
package deliver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookcourier/internal/catalog"
	"bookcourier/internal/model"
	"bookcourier/internal/store"
	"bookcourier/internal/transport"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxPayload is the transport attachment limit in bytes. A
// download of exactly this size is still attachable; one byte more gets
// a link instead.
const DefaultMaxPayload = 50_000_000

const (
	msgNotFound  = "Книга не найдена!"
	msgTransient = "Ошибка! Попробуйте позже :("
)

// Catalog is the slice of the catalog client the pipeline needs.
type Catalog interface {
	BookByID(ctx context.Context, id int) (*model.Book, error)
	Download(ctx context.Context, id int, variant model.Variant) ([]byte, error)
	PublicDownloadLink(id int, variant model.Variant) string
}

// Config tunes one pipeline instance.
type Config struct {
	// MaxPayload is the attachment size limit; larger documents are
	// delivered as an external link.
	MaxPayload int
	// ArchiveChannelID is the chat the archive index points into. Zero
	// disables tier 0 entirely.
	ArchiveChannelID int64
	// NotifyInterval is the presence-indicator period.
	NotifyInterval time.Duration
}

// Request identifies what to deliver and where.
type Request struct {
	BookID  int
	Variant model.Variant
	ChatID  int64
	// ReplyTo frames the delivery as a reply to the user's command.
	// Zero means no reply framing.
	ReplyTo int64
}

// Pipeline resolves delivery requests through the cache tiers. All
// collaborators are constructor-injected; the pipeline itself holds no
// mutable state beyond the single-flight group.
type Pipeline struct {
	catalog   Catalog
	cache     store.CacheStore
	archive   store.ArchiveIndex
	messenger transport.Messenger
	logger    *zap.Logger
	cfg       Config

	// flight deduplicates concurrent origin fetches for the same pair.
	// Pure optimization: correctness only requires that the last
	// successful upload wins in the cache store.
	flight singleflight.Group
}

func New(cat Catalog, cache store.CacheStore, archive store.ArchiveIndex, m transport.Messenger, logger *zap.Logger, cfg Config) *Pipeline {
	if cfg.MaxPayload == 0 {
		cfg.MaxPayload = DefaultMaxPayload
	}
	if cfg.NotifyInterval == 0 {
		cfg.NotifyInterval = 3 * time.Second
	}
	return &Pipeline{
		catalog:   cat,
		cache:     cache,
		archive:   archive,
		messenger: m,
		logger:    logger,
		cfg:       cfg,
	}
}

func replyOpt(req Request) []transport.SendOption {
	if req.ReplyTo == 0 {
		return nil
	}
	return []transport.SendOption{transport.WithReplyTo(req.ReplyTo)}
}

// Deliver sends the requested document to the requester. Tiers run
// strictly in order; every terminal failure produces exactly one
// user-visible message and leaves the cache untouched.
func (p *Pipeline) Deliver(ctx context.Context, req Request) (model.DeliveryOutcome, error) {
	logger := p.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.Int("book_id", req.BookID),
		zap.String("variant", req.Variant.String()),
		zap.Int64("chat_id", req.ChatID),
	)

	stop := startNotifier(ctx, p.messenger, req.ChatID, "upload_document", p.cfg.NotifyInterval)
	defer stop()

	book, err := p.catalog.BookByID(ctx, req.BookID)
	if errors.Is(err, catalog.ErrNotFound) {
		transport.ReplyOrSend(ctx, p.messenger, req.ChatID, msgNotFound, req.ReplyTo)
		return model.DeliveryOutcome{}, err
	}
	if err != nil {
		transport.ReplyOrSend(ctx, p.messenger, req.ChatID, msgTransient, req.ReplyTo)
		return model.DeliveryOutcome{}, fmt.Errorf("book metadata: %w", err)
	}

	// Tier 0: forward the archived copy.
	if outcome, ok := p.tryArchive(ctx, req, book, logger); ok {
		return outcome, nil
	}

	// Tier 1: resend the cached handle.
	if outcome, done, err := p.tryCache(ctx, req, book, logger); done {
		return outcome, err
	}

	// Tier 2: fetch from origin.
	return p.fetchAndUpload(ctx, req, book, logger)
}

// tryArchive attempts tier 0. It reports delivered=false on any miss or
// failure: the archive is best-effort, a stale reference degrades
// silently to the next tier and is deliberately not evicted.
func (p *Pipeline) tryArchive(ctx context.Context, req Request, book *model.Book, logger *zap.Logger) (model.DeliveryOutcome, bool) {
	if p.cfg.ArchiveChannelID == 0 {
		return model.DeliveryOutcome{}, false
	}
	msgID, err := p.archive.Get(ctx, req.BookID, req.Variant)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("archive lookup failed", zap.Error(err))
		}
		return model.DeliveryOutcome{}, false
	}
	forwarded, err := p.messenger.Forward(ctx, req.ChatID, p.cfg.ArchiveChannelID, msgID)
	if err != nil {
		if errors.Is(err, transport.ErrNotFound) {
			logger.Info("archived copy is gone, falling through", zap.Int64("message_id", msgID))
		} else {
			logger.Warn("archive forward failed", zap.Error(err))
		}
		return model.DeliveryOutcome{}, false
	}
	// caption arrives as a reply to the forwarded copy
	transport.ReplyOrSend(ctx, p.messenger, req.ChatID, book.Caption(), forwarded.MessageID)
	logger.Info("delivered", zap.String("via", string(model.ViaArchive)))
	return model.DeliveryOutcome{Via: model.ViaArchive}, true
}

// tryCache attempts tier 1. done=false means a cache miss: continue to
// tier 2. done=true with a nil error is a delivery; with a non-nil
// error the request is terminal and the user has been told.
func (p *Pipeline) tryCache(ctx context.Context, req Request, book *model.Book, logger *zap.Logger) (model.DeliveryOutcome, bool, error) {
	handle, err := p.cache.Get(ctx, req.BookID, req.Variant)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("cache lookup failed", zap.Error(err))
		}
		return model.DeliveryOutcome{}, false, nil
	}

	_, err = p.messenger.SendDocumentByHandle(ctx, req.ChatID, handle, book.Caption(), replyOpt(req)...)
	if errors.Is(err, transport.ErrRejected) && req.ReplyTo != 0 {
		// the original command may no longer be reply-able
		_, err = p.messenger.SendDocumentByHandle(ctx, req.ChatID, handle, book.Caption())
	}
	if err != nil {
		transport.ReplyOrSend(ctx, p.messenger, req.ChatID, msgTransient, req.ReplyTo)
		return model.DeliveryOutcome{}, true, fmt.Errorf("cached resend: %w", err)
	}
	logger.Info("delivered", zap.String("via", string(model.ViaCache)))
	return model.DeliveryOutcome{Via: model.ViaCache}, true, nil
}

// fetchAndUpload is tier 2: download from origin, enforce the size
// limit, upload, then seed the cache. The origin fetch runs under
// single flight so concurrent first-time requests for the same pair
// share one download; each request still uploads to its own chat.
func (p *Pipeline) fetchAndUpload(ctx context.Context, req Request, book *model.Book, logger *zap.Logger) (model.DeliveryOutcome, error) {
	key := fmt.Sprintf("%d:%s", req.BookID, req.Variant)
	v, err, shared := p.flight.Do(key, func() (any, error) {
		// the winning caller's cancellation must not fail the fetch for
		// waiters still in flight; the download client's own timeout
		// bounds the detached call
		return p.catalog.Download(context.WithoutCancel(ctx), req.BookID, req.Variant)
	})
	if err != nil {
		transport.ReplyOrSend(ctx, p.messenger, req.ChatID, msgTransient, req.ReplyTo)
		return model.DeliveryOutcome{}, fmt.Errorf("origin download: %w", err)
	}
	data := v.([]byte)
	if shared {
		logger.Debug("origin fetch was shared with a concurrent request")
	}

	if len(data) > p.cfg.MaxPayload {
		link := p.catalog.PublicDownloadLink(req.BookID, req.Variant)
		if _, err := transport.ReplyOrSend(ctx, p.messenger, req.ChatID, book.DownloadCaption(link), req.ReplyTo); err != nil {
			return model.DeliveryOutcome{}, fmt.Errorf("send download link: %w", err)
		}
		logger.Info("delivered", zap.String("via", string(model.ViaLink)), zap.Int("size", len(data)))
		return model.DeliveryOutcome{Via: model.ViaLink}, nil
	}

	filename := Filename(book, req.Variant)
	ref, err := p.messenger.SendDocument(ctx, req.ChatID, filename, data, book.Caption(), replyOpt(req)...)
	if errors.Is(err, transport.ErrRejected) {
		// exactly one retry: a fresh byte-identical copy of the
		// payload, without the reply framing
		fresh := make([]byte, len(data))
		copy(fresh, data)
		ref, err = p.messenger.SendDocument(ctx, req.ChatID, filename, fresh, book.Caption())
	}
	if err != nil {
		transport.ReplyOrSend(ctx, p.messenger, req.ChatID, msgTransient, req.ReplyTo)
		return model.DeliveryOutcome{}, fmt.Errorf("upload: %w", err)
	}

	// The user already has the document; a failed cache write only
	// costs the next request an extra origin fetch.
	if err := p.cache.Put(ctx, req.BookID, req.Variant, ref.Handle); err != nil {
		logger.Warn("cache write failed", zap.Error(err))
	}
	logger.Info("delivered", zap.String("via", string(model.ViaUpload)), zap.Int("size", len(data)))
	return model.DeliveryOutcome{Via: model.ViaUpload}, nil
}

// RemoveCached drops the cache record for the pair and delivers a fresh
// copy. Used when a user reports that the cached document does not
// open.
func (p *Pipeline) RemoveCached(ctx context.Context, req Request) (model.DeliveryOutcome, error) {
	if err := p.cache.Delete(ctx, req.BookID, req.Variant); err != nil {
		p.logger.Warn("cache delete failed",
			zap.Int("book_id", req.BookID),
			zap.String("variant", req.Variant.String()),
			zap.Error(err))
	}
	return p.Deliver(ctx, req)
}
