// Package browse orchestrates the paged catalog views: searches,
// by-author and by-series listings, random picks and annotations. Every
// operation resolves the user's language allow-list first; a user who
// switched every language off gets one instruction message and no
// catalog call.
package browse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookcourier/internal/catalog"
	"bookcourier/internal/langfilter"
	"bookcourier/internal/model"
	"bookcourier/internal/page"
	"bookcourier/internal/transport"

	"go.uber.org/zap"
)

const (
	msgPickLanguage    = "Нужно выбрать хотя бы один язык! /settings"
	msgNoBooks         = "Книги не найдены!"
	msgNoAuthors       = "Автор не найден!"
	msgNoSequences     = "Ошибка! Серии не найдены!"
	msgNoAuthorBooks   = "Ошибка! Книги не найдены!"
	msgNoSequenceBooks = "Ошибка! Книги в серии не найдены!"
	msgNotYet          = "Пока бот не может это сделать, но скоро это исправят!"
	msgNoUpdates       = "Обновления не найдены!"
	msgNoAnnotation    = "Нет аннотации для этой книги!"
	msgNoAuthorInfo    = "Нет информации для этого автора!"
)

// sequencesShown caps how many series render on one page; the catalog
// page itself is larger.
const sequencesShown = 5

const (
	photoCaptionLimit = 1024
	textChunkLimit    = 4096
)

// Catalog is the slice of the catalog client the browser needs.
type Catalog interface {
	SearchBooks(ctx context.Context, query string, langs []string, limit, pg int) (model.Page[model.Book], error)
	SearchAuthors(ctx context.Context, query string, langs []string, limit, pg int) (model.Page[model.Author], error)
	SearchSequences(ctx context.Context, query string, langs []string, limit, pg int) (model.Page[model.Sequence], error)
	AuthorByID(ctx context.Context, id int, langs []string, limit, pg int) (*model.Author, int, error)
	SequenceByID(ctx context.Context, id int, langs []string, limit, pg int) (*model.Sequence, int, error)
	UpdateLog(ctx context.Context, day time.Time, langs []string, limit, pg int) (model.Page[model.Book], error)
	RandomBook(ctx context.Context, langs []string) (*model.Book, error)
	RandomAuthor(ctx context.Context, langs []string) (*model.Author, error)
	RandomSequence(ctx context.Context, langs []string) (*model.Sequence, error)
	BookAnnotation(ctx context.Context, bookID int) (*model.Annotation, error)
	AuthorAnnotation(ctx context.Context, authorID int) (*model.Annotation, error)
}

// Browser renders paged catalog views through the messenger.
type Browser struct {
	catalog   Catalog
	filter    *langfilter.Filter
	messenger transport.Messenger
	logger    *zap.Logger
}

func New(cat Catalog, filter *langfilter.Filter, m transport.Messenger, logger *zap.Logger) *Browser {
	return &Browser{catalog: cat, filter: filter, messenger: m, logger: logger}
}

// SearchRequest is a paged text search bound to the message being
// edited in place as the user navigates.
type SearchRequest struct {
	UserID    int64
	ChatID    int64
	MessageID int64 // the results message, edited on every page turn
	ReplyTo   int64
	Query     string
	Page      int
}

// ListRequest is a paged by-id listing (author's or series' books).
// MessageID zero means this is the first invocation and a new message
// is sent; later page turns edit it in place.
type ListRequest struct {
	UserID    int64
	ChatID    int64
	MessageID int64
	ReplyTo   int64
	ID        int
	Page      int
}

// guard resolves the allow-list; on an empty one it emits the single
// instruction message and reports handled=true.
func (b *Browser) guard(ctx context.Context, userID, chatID, replyTo int64) ([]string, bool, error) {
	langs, err := b.filter.Guard(ctx, userID)
	if errors.Is(err, langfilter.ErrNoLanguages) {
		b.logger.Info("empty language policy, catalog call skipped", zap.Int64("user_id", userID))
		_, serr := transport.ReplyOrSend(ctx, b.messenger, chatID, msgPickLanguage, replyTo)
		return nil, true, serr
	}
	if err != nil {
		return nil, true, err
	}
	return langs, false, nil
}

func footer(pg, pageMax int) string {
	return fmt.Sprintf("<code>Страница %d/%d</code>", pg, pageMax)
}

// SearchBooks renders one page of a title search.
func (b *Browser) SearchBooks(ctx context.Context, req SearchRequest) error {
	langs, handled, err := b.guard(ctx, req.UserID, req.ChatID, req.ReplyTo)
	if handled {
		return err
	}
	b.messenger.ChatAction(ctx, req.ChatID, "typing")

	result, err := b.catalog.SearchBooks(ctx, req.Query, langs, page.PageSize, req.Page)
	if err != nil {
		return fmt.Errorf("search books: %w", err)
	}
	if result.Empty() {
		return b.messenger.EditText(ctx, req.ChatID, req.MessageID, msgNoBooks)
	}

	pageMax := page.Max(result.TotalCount, page.PageSize)
	var text strings.Builder
	for _, book := range result.Items {
		text.WriteString(book.ListEntry())
	}
	text.WriteString(footer(req.Page, pageMax))
	return b.messenger.EditText(ctx, req.ChatID, req.MessageID, text.String(),
		transport.WithNavigation(page.Navigate(req.Page, pageMax, "b")))
}

// SearchAuthors renders one page of an author search.
func (b *Browser) SearchAuthors(ctx context.Context, req SearchRequest) error {
	langs, handled, err := b.guard(ctx, req.UserID, req.ChatID, req.ReplyTo)
	if handled {
		return err
	}
	b.messenger.ChatAction(ctx, req.ChatID, "typing")

	result, err := b.catalog.SearchAuthors(ctx, req.Query, langs, page.PageSize, req.Page)
	if err != nil {
		return fmt.Errorf("search authors: %w", err)
	}
	if result.Empty() {
		return b.messenger.EditText(ctx, req.ChatID, req.MessageID, msgNoAuthors)
	}

	pageMax := page.Max(result.TotalCount, page.PageSize)
	var text strings.Builder
	for _, author := range result.Items {
		text.WriteString(author.ListEntry())
	}
	text.WriteString(footer(req.Page, pageMax))
	return b.messenger.EditText(ctx, req.ChatID, req.MessageID, text.String(),
		transport.WithNavigation(page.Navigate(req.Page, pageMax, "a")))
}

// SearchSequences renders one page of a series search.
func (b *Browser) SearchSequences(ctx context.Context, req SearchRequest) error {
	langs, handled, err := b.guard(ctx, req.UserID, req.ChatID, req.ReplyTo)
	if handled {
		return err
	}
	b.messenger.ChatAction(ctx, req.ChatID, "typing")

	result, err := b.catalog.SearchSequences(ctx, req.Query, langs, page.PageSize, req.Page)
	if err != nil {
		return fmt.Errorf("search sequences: %w", err)
	}
	if result.Empty() {
		_, err := transport.ReplyOrSend(ctx, b.messenger, req.ChatID, msgNoSequences, req.ReplyTo)
		return err
	}

	pageMax := page.Max(result.TotalCount, page.PageSize)
	var text strings.Builder
	for i, seq := range result.Items {
		if i == sequencesShown {
			break
		}
		text.WriteString(seq.ListEntry())
	}
	text.WriteString(footer(req.Page, pageMax))
	return b.messenger.EditText(ctx, req.ChatID, req.MessageID, text.String(),
		transport.WithNavigation(page.Navigate(req.Page, pageMax, "s")))
}

// BooksByAuthor renders one page of an author's books.
func (b *Browser) BooksByAuthor(ctx context.Context, req ListRequest) error {
	langs, handled, err := b.guard(ctx, req.UserID, req.ChatID, req.ReplyTo)
	if handled {
		return err
	}
	b.messenger.ChatAction(ctx, req.ChatID, "typing")

	author, count, err := b.catalog.AuthorByID(ctx, req.ID, langs, page.PageSize, req.Page)
	if errors.Is(err, catalog.ErrNotFound) {
		_, serr := transport.ReplyOrSend(ctx, b.messenger, req.ChatID, msgNoAuthors, req.ReplyTo)
		return serr
	}
	if err != nil {
		return fmt.Errorf("author by id: %w", err)
	}
	if len(author.Books) == 0 {
		_, serr := transport.ReplyOrSend(ctx, b.messenger, req.ChatID, msgNoAuthorBooks, req.ReplyTo)
		return serr
	}

	pageMax := page.Max(count, page.PageSize)
	var text strings.Builder
	fmt.Fprintf(&text, "<b>%s:</b>", author.FullName())
	if author.AnnotationExists {
		fmt.Fprintf(&text, "\nОб авторе: /a_info_%d\n\n", author.ID)
	} else {
		text.WriteString("\n\n")
	}
	for _, book := range author.Books {
		text.WriteString(book.ListEntryNoAuthor())
	}
	text.WriteString(footer(req.Page, pageMax))
	return b.sendOrEdit(ctx, req, text.String(), page.Navigate(req.Page, pageMax, "ba"))
}

// BooksBySequence renders one page of a series' books.
func (b *Browser) BooksBySequence(ctx context.Context, req ListRequest) error {
	langs, handled, err := b.guard(ctx, req.UserID, req.ChatID, req.ReplyTo)
	if handled {
		return err
	}
	b.messenger.ChatAction(ctx, req.ChatID, "typing")

	seq, count, err := b.catalog.SequenceByID(ctx, req.ID, langs, page.PageSize, req.Page)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return fmt.Errorf("sequence by id: %w", err)
	}
	if err != nil || len(seq.Books) == 0 {
		_, serr := transport.ReplyOrSend(ctx, b.messenger, req.ChatID, msgNoSequenceBooks, req.ReplyTo)
		return serr
	}

	pageMax := page.Max(count, page.PageSize)
	var text strings.Builder
	fmt.Fprintf(&text, "<b>%s:</b>\n\n", seq.Name)
	for _, book := range seq.Books {
		text.WriteString(book.ListEntry())
	}
	text.WriteString(footer(req.Page, pageMax))
	return b.sendOrEdit(ctx, req, text.String(), page.Navigate(req.Page, pageMax, "bs"))
}

// UpdatesRequest is a paged view of the books added to the catalog on
// one day. The day travels in the navigation namespace so page turns
// route back to the same date.
type UpdatesRequest struct {
	UserID    int64
	ChatID    int64
	MessageID int64 // always edited in place
	ReplyTo   int64
	Day       time.Time
	Page      int
}

// DayUpdates renders one page of a day's catalog additions.
func (b *Browser) DayUpdates(ctx context.Context, req UpdatesRequest) error {
	langs, handled, err := b.guard(ctx, req.UserID, req.ChatID, req.ReplyTo)
	if handled {
		return err
	}
	b.messenger.ChatAction(ctx, req.ChatID, "typing")

	result, err := b.catalog.UpdateLog(ctx, req.Day, langs, page.PageSize, req.Page)
	if err != nil {
		return fmt.Errorf("update log: %w", err)
	}
	if result.Empty() {
		return b.messenger.EditText(ctx, req.ChatID, req.MessageID, msgNoUpdates)
	}

	day := req.Day.Format("2006-01-02")
	pageMax := page.Max(result.TotalCount, page.PageSize)
	var text strings.Builder
	fmt.Fprintf(&text, "Обновления за %s\n\n", day)
	for _, book := range result.Items {
		text.WriteString(book.ListEntry())
	}
	text.WriteString(footer(req.Page, pageMax))
	return b.messenger.EditText(ctx, req.ChatID, req.MessageID, text.String(),
		transport.WithNavigation(page.Navigate(req.Page, pageMax, "ul_d_"+day)))
}

// sendOrEdit sends a fresh message on the first invocation and edits in
// place on page turns.
func (b *Browser) sendOrEdit(ctx context.Context, req ListRequest, text string, nav *page.Nav) error {
	if req.MessageID == 0 {
		opts := []transport.SendOption{transport.WithNavigation(nav)}
		if req.ReplyTo != 0 {
			opts = append(opts, transport.WithReplyTo(req.ReplyTo))
		}
		_, err := b.messenger.SendText(ctx, req.ChatID, text, opts...)
		if errors.Is(err, transport.ErrRejected) {
			_, err = b.messenger.SendText(ctx, req.ChatID, text, transport.WithNavigation(nav))
		}
		return err
	}
	return b.messenger.EditText(ctx, req.ChatID, req.MessageID, text, transport.WithNavigation(nav))
}

// RandomBook sends one random book entry.
func (b *Browser) RandomBook(ctx context.Context, userID, chatID, replyTo int64) error {
	langs, handled, err := b.guard(ctx, userID, chatID, replyTo)
	if handled {
		return err
	}
	b.messenger.ChatAction(ctx, chatID, "typing")

	book, err := b.catalog.RandomBook(ctx, langs)
	if errors.Is(err, catalog.ErrNotFound) {
		_, serr := transport.ReplyOrSend(ctx, b.messenger, chatID, msgNotYet, replyTo)
		return serr
	}
	if err != nil {
		return fmt.Errorf("random book: %w", err)
	}
	_, err = transport.ReplyOrSend(ctx, b.messenger, chatID, book.ListEntry(), replyTo)
	return err
}

// RandomAuthor sends one random author entry.
func (b *Browser) RandomAuthor(ctx context.Context, userID, chatID, replyTo int64) error {
	langs, handled, err := b.guard(ctx, userID, chatID, replyTo)
	if handled {
		return err
	}
	b.messenger.ChatAction(ctx, chatID, "typing")

	author, err := b.catalog.RandomAuthor(ctx, langs)
	if errors.Is(err, catalog.ErrNotFound) {
		_, serr := transport.ReplyOrSend(ctx, b.messenger, chatID, msgNotYet, replyTo)
		return serr
	}
	if err != nil {
		return fmt.Errorf("random author: %w", err)
	}
	_, err = transport.ReplyOrSend(ctx, b.messenger, chatID, author.ListEntry(), replyTo)
	return err
}

// RandomSequence sends one random series entry.
func (b *Browser) RandomSequence(ctx context.Context, userID, chatID, replyTo int64) error {
	langs, handled, err := b.guard(ctx, userID, chatID, replyTo)
	if handled {
		return err
	}
	b.messenger.ChatAction(ctx, chatID, "typing")

	seq, err := b.catalog.RandomSequence(ctx, langs)
	if errors.Is(err, catalog.ErrNotFound) {
		_, serr := transport.ReplyOrSend(ctx, b.messenger, chatID, msgNotYet, replyTo)
		return serr
	}
	if err != nil {
		return fmt.Errorf("random sequence: %w", err)
	}
	_, err = transport.ReplyOrSend(ctx, b.messenger, chatID, seq.ListEntry(), replyTo)
	return err
}
