// Package catalog is the HTTP client for the remote book catalog. All
// metadata and search calls use a short timeout; document downloads get
// a long one sized for multi-megabyte files. The catalog reports "no
// such thing" as 204 or a non-200 status; those become ErrNotFound (or
// an empty page, for searches) rather than transport errors.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"bookcourier/internal/model"

	"go.uber.org/zap"
)

var (
	// ErrNotFound means the catalog has no such book/author/sequence.
	ErrNotFound = errors.New("catalog: not found")
	// ErrUnavailable means the catalog was reachable but returned no
	// usable content, or dropped the connection mid-transfer.
	ErrUnavailable = errors.New("catalog: content unavailable")
)

// Client talks to the catalog service.
type Client struct {
	baseURL       string
	publicBaseURL string
	logger        *zap.Logger

	meta     *http.Client // metadata and search
	download *http.Client // document bytes
}

// New builds a Client. publicBaseURL is what download links handed to
// users point at; baseURL is what the backend itself calls.
func New(baseURL, publicBaseURL string, metaTimeout, downloadTimeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:       baseURL,
		publicBaseURL: publicBaseURL,
		logger:        logger,
		meta:          &http.Client{Timeout: metaTimeout},
		download:      &http.Client{Timeout: downloadTimeout},
	}
}

// langsSegment encodes the allow-list into the path the way the catalog
// expects: a JSON array, e.g. ["ru","uk"].
func langsSegment(langs []string) string {
	if langs == nil {
		langs = []string{}
	}
	data, _ := json.Marshal(langs)
	return url.PathEscape(string(data))
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.meta.Do(req)
	if err != nil {
		return 0, fmt.Errorf("catalog request %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return resp.StatusCode, fmt.Errorf("catalog decode %s: %w", path, err)
	}
	return resp.StatusCode, nil
}

// BookByID fetches a single book's metadata.
func (c *Client) BookByID(ctx context.Context, id int) (*model.Book, error) {
	var book model.Book
	status, err := c.getJSON(ctx, fmt.Sprintf("/book/%d", id), &book)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, ErrNotFound
	}
	return &book, nil
}

// countedResult is the catalog's paged envelope.
type countedResult[T any] struct {
	Result []T `json:"result"`
	Count  int `json:"count"`
}

func searchPage[T any](c *Client, ctx context.Context, kind, query string, langs []string, limit, pg int) (model.Page[T], error) {
	out := model.Page[T]{Page: pg, PageSize: limit}
	path := fmt.Sprintf("/%s/search/%s/%d/%d/%s", kind, langsSegment(langs), limit, pg, url.PathEscape(query))
	var res countedResult[T]
	status, err := c.getJSON(ctx, path, &res)
	if err != nil {
		return out, err
	}
	if status != http.StatusOK {
		// the catalog answers non-200 for "nothing matched"
		return out, nil
	}
	out.Items = res.Result
	out.TotalCount = res.Count
	return out, nil
}

// SearchBooks runs a title search within the allowed languages.
func (c *Client) SearchBooks(ctx context.Context, query string, langs []string, limit, pg int) (model.Page[model.Book], error) {
	return searchPage[model.Book](c, ctx, "book", query, langs, limit, pg)
}

// SearchAuthors runs an author-name search.
func (c *Client) SearchAuthors(ctx context.Context, query string, langs []string, limit, pg int) (model.Page[model.Author], error) {
	return searchPage[model.Author](c, ctx, "author", query, langs, limit, pg)
}

// SearchSequences runs a series-name search.
func (c *Client) SearchSequences(ctx context.Context, query string, langs []string, limit, pg int) (model.Page[model.Sequence], error) {
	return searchPage[model.Sequence](c, ctx, "sequence", query, langs, limit, pg)
}

// AuthorByID fetches an author together with one page of their books.
// TotalCount counts the author's books, not authors.
func (c *Client) AuthorByID(ctx context.Context, id int, langs []string, limit, pg int) (*model.Author, int, error) {
	var res struct {
		Result model.Author `json:"result"`
		Count  int          `json:"count"`
	}
	path := fmt.Sprintf("/author/%d/%s/%d/%d", id, langsSegment(langs), limit, pg)
	status, err := c.getJSON(ctx, path, &res)
	if err != nil {
		return nil, 0, err
	}
	if status != http.StatusOK {
		return nil, 0, ErrNotFound
	}
	return &res.Result, res.Count, nil
}

// SequenceByID fetches a series together with one page of its books.
func (c *Client) SequenceByID(ctx context.Context, id int, langs []string, limit, pg int) (*model.Sequence, int, error) {
	var res struct {
		Result model.Sequence `json:"result"`
		Count  int            `json:"count"`
	}
	path := fmt.Sprintf("/sequence/%d/%s/%d/%d", id, langsSegment(langs), limit, pg)
	status, err := c.getJSON(ctx, path, &res)
	if err != nil {
		return nil, 0, err
	}
	if status != http.StatusOK {
		return nil, 0, ErrNotFound
	}
	return &res.Result, res.Count, nil
}

// RandomBook picks a random book within the allowed languages.
func (c *Client) RandomBook(ctx context.Context, langs []string) (*model.Book, error) {
	var book model.Book
	status, err := c.getJSON(ctx, "/book/random/"+langsSegment(langs), &book)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, ErrNotFound
	}
	return &book, nil
}

// RandomAuthor picks a random author.
func (c *Client) RandomAuthor(ctx context.Context, langs []string) (*model.Author, error) {
	var author model.Author
	status, err := c.getJSON(ctx, "/author/random/"+langsSegment(langs), &author)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, ErrNotFound
	}
	return &author, nil
}

// RandomSequence picks a random series.
func (c *Client) RandomSequence(ctx context.Context, langs []string) (*model.Sequence, error) {
	var seq model.Sequence
	status, err := c.getJSON(ctx, "/sequence/random/"+langsSegment(langs), &seq)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, ErrNotFound
	}
	return &seq, nil
}

// UpdateLog fetches one page of the books added to the catalog on the
// given day, within the allowed languages. No additions that day is an
// empty page, not an error.
func (c *Client) UpdateLog(ctx context.Context, day time.Time, langs []string, limit, pg int) (model.Page[model.Book], error) {
	out := model.Page[model.Book]{Page: pg, PageSize: limit}
	path := fmt.Sprintf("/book/update_log/%s/%d/%d/%s", langsSegment(langs), limit, pg, day.Format("2006-01-02"))
	var res countedResult[model.Book]
	status, err := c.getJSON(ctx, path, &res)
	if err != nil {
		return out, err
	}
	if status != http.StatusOK {
		return out, nil
	}
	out.Items = res.Result
	out.TotalCount = res.Count
	return out, nil
}

// BookAnnotation fetches a book's annotation.
func (c *Client) BookAnnotation(ctx context.Context, bookID int) (*model.Annotation, error) {
	return c.annotation(ctx, fmt.Sprintf("/annotation/book/%d", bookID), "ib")
}

// AuthorAnnotation fetches an author's annotation.
func (c *Client) AuthorAnnotation(ctx context.Context, authorID int) (*model.Annotation, error) {
	return c.annotation(ctx, fmt.Sprintf("/annotation/author/%d", authorID), "ia")
}

func (c *Client) annotation(ctx context.Context, path, photoDir string) (*model.Annotation, error) {
	var res struct {
		Title string `json:"title"`
		Body  string `json:"body"`
		File  string `json:"file"`
	}
	status, err := c.getJSON(ctx, path, &res)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, ErrNotFound
	}
	ann := &model.Annotation{Title: res.Title, Body: res.Body}
	if res.File != "" {
		ann.PhotoURL = fmt.Sprintf("https://flibusta.is/%s/%s", photoDir, res.File)
	}
	return ann, nil
}

// Download fetches the raw document bytes. Single attempt, long
// timeout; any non-200, empty body or mid-transfer disconnect is
// ErrUnavailable. The next user request retries naturally.
func (c *Client) Download(ctx context.Context, id int, variant model.Variant) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+downloadPath(id, variant), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.download.Do(req)
	if err != nil {
		c.logger.Warn("download failed", zap.Int("book_id", id), zap.Error(err))
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, ErrUnavailable
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("download interrupted", zap.Int("book_id", id), zap.Error(err))
		return nil, ErrUnavailable
	}
	if len(data) == 0 {
		return nil, ErrUnavailable
	}
	return data, nil
}

func downloadPath(id int, variant model.Variant) string {
	return fmt.Sprintf("/book/download/%d/%s", id, variant)
}

// DownloadLink is the backend-facing download URL.
func (c *Client) DownloadLink(id int, variant model.Variant) string {
	return c.baseURL + downloadPath(id, variant)
}

// PublicDownloadLink is the URL safe to hand to users when the document
// exceeds the attachment limit.
func (c *Client) PublicDownloadLink(id int, variant model.Variant) string {
	return c.publicBaseURL + downloadPath(id, variant)
}
