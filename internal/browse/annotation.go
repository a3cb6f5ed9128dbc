package browse

import (
	"context"
	"errors"
	"fmt"

	"bookcourier/internal/catalog"
	"bookcourier/internal/model"
	"bookcourier/internal/transport"
)

// BookAnnotation sends a book's annotation, photo first when one
// exists, with the text split into transport-sized chunks.
func (b *Browser) BookAnnotation(ctx context.Context, userID, chatID, replyTo int64, bookID int) error {
	_, handled, err := b.guard(ctx, userID, chatID, replyTo)
	if handled {
		return err
	}
	b.messenger.ChatAction(ctx, chatID, "typing")

	ann, err := b.catalog.BookAnnotation(ctx, bookID)
	if errors.Is(err, catalog.ErrNotFound) {
		_, serr := transport.ReplyOrSend(ctx, b.messenger, chatID, msgNoAnnotation, replyTo)
		return serr
	}
	if err != nil {
		return fmt.Errorf("book annotation: %w", err)
	}
	return b.sendAnnotation(ctx, chatID, replyTo, ann)
}

// AuthorAnnotation sends an author's annotation.
func (b *Browser) AuthorAnnotation(ctx context.Context, userID, chatID, replyTo int64, authorID int) error {
	_, handled, err := b.guard(ctx, userID, chatID, replyTo)
	if handled {
		return err
	}
	b.messenger.ChatAction(ctx, chatID, "typing")

	ann, err := b.catalog.AuthorAnnotation(ctx, authorID)
	if errors.Is(err, catalog.ErrNotFound) {
		_, serr := transport.ReplyOrSend(ctx, b.messenger, chatID, msgNoAuthorInfo, replyTo)
		return serr
	}
	if err != nil {
		return fmt.Errorf("author annotation: %w", err)
	}
	return b.sendAnnotation(ctx, chatID, replyTo, ann)
}

func (b *Browser) sendAnnotation(ctx context.Context, chatID, replyTo int64, ann *model.Annotation) error {
	text := []rune(ann.Render())

	if ann.PhotoURL != "" {
		caption := text
		if len(caption) > photoCaptionLimit {
			caption = caption[:photoCaptionLimit]
		}
		ref, err := b.messenger.SendPhoto(ctx, chatID, ann.PhotoURL, string(caption), transport.WithReplyTo(replyTo))
		if errors.Is(err, transport.ErrRejected) {
			ref, err = b.messenger.SendPhoto(ctx, chatID, ann.PhotoURL, string(caption))
		}
		if err != nil {
			return err
		}
		return b.sendChunks(ctx, chatID, ref.MessageID, text[len(caption):])
	}

	first := text
	if len(first) > textChunkLimit {
		first = first[:textChunkLimit]
	}
	ref, err := transport.ReplyOrSend(ctx, b.messenger, chatID, string(first), replyTo)
	if err != nil {
		return err
	}
	return b.sendChunks(ctx, chatID, ref.MessageID, text[len(first):])
}

// sendChunks delivers the overflow of a long annotation as a chain of
// replies, each chunk replying to the previous message.
func (b *Browser) sendChunks(ctx context.Context, chatID, replyTo int64, rest []rune) error {
	for len(rest) > 0 {
		chunk := rest
		if len(chunk) > textChunkLimit {
			chunk = chunk[:textChunkLimit]
		}
		ref, err := transport.ReplyOrSend(ctx, b.messenger, chatID, string(chunk), replyTo)
		if err != nil {
			return err
		}
		replyTo = ref.MessageID
		rest = rest[len(chunk):]
	}
	return nil
}
