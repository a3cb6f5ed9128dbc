// Package transport declares the messaging effect boundary of the
// delivery backend. The real chat transport lives outside this module;
// the core only needs these operations and their typed failures.
package transport

import (
	"context"
	"errors"

	"bookcourier/internal/page"
)

var (
	// ErrRejected means the receiving side rejected the message shape,
	// e.g. a reply to a message that can no longer be replied to, or a
	// payload the transport refused.
	ErrRejected = errors.New("transport rejected message")
	// ErrNotFound means the referenced message no longer exists, e.g. a
	// forward source that was deleted from the archive channel.
	ErrNotFound = errors.New("transport message not found")
	// ErrDisconnected means the transport dropped mid-operation.
	ErrDisconnected = errors.New("transport disconnected")
)

// MessageRef identifies a sent message within a chat.
type MessageRef struct {
	ChatID    int64
	MessageID int64
}

// DocumentRef is a MessageRef plus the transport-assigned document
// handle, which lets the same payload be resent without re-uploading.
type DocumentRef struct {
	MessageRef
	Handle string
}

// SendOptions carries the optional framing of an outgoing message.
type SendOptions struct {
	ReplyTo    int64
	Navigation *page.Nav
}

// SendOption mutates SendOptions.
type SendOption func(*SendOptions)

// WithReplyTo frames the message as a reply to msgID.
func WithReplyTo(msgID int64) SendOption {
	return func(o *SendOptions) { o.ReplyTo = msgID }
}

// WithNavigation attaches pagination actions to the message. A nil nav
// is valid and attaches nothing.
func WithNavigation(nav *page.Nav) SendOption {
	return func(o *SendOptions) { o.Navigation = nav }
}

// Apply folds opts into a SendOptions value.
func Apply(opts []SendOption) SendOptions {
	var o SendOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Messenger is the produced effect boundary. Implementations classify
// their transport's failures into the package sentinels; no other error
// kinds cross this interface.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, opts ...SendOption) (MessageRef, error)
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, opts ...SendOption) (MessageRef, error)
	SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string, opts ...SendOption) (DocumentRef, error)
	SendDocumentByHandle(ctx context.Context, chatID int64, handle, caption string, opts ...SendOption) (DocumentRef, error)
	Forward(ctx context.Context, chatID, fromChatID, messageID int64) (MessageRef, error)
	EditText(ctx context.Context, chatID, messageID int64, text string, opts ...SendOption) error
	ChatAction(ctx context.Context, chatID int64, action string) error
}

// ReplyOrSend sends text as a reply and, if the transport rejects the
// reply framing, retries once without it.
func ReplyOrSend(ctx context.Context, m Messenger, chatID int64, text string, replyTo int64) (MessageRef, error) {
	if replyTo != 0 {
		ref, err := m.SendText(ctx, chatID, text, WithReplyTo(replyTo))
		if err == nil || !errors.Is(err, ErrRejected) {
			return ref, err
		}
	}
	return m.SendText(ctx, chatID, text)
}
