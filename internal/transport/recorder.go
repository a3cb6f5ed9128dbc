package transport

import (
	"context"
	"sync"
)

// Sent is one recorded outgoing message.
type Sent struct {
	Kind     string // "text", "photo", "document", "document_handle", "forward", "edit", "action"
	ChatID   int64
	Text     string
	Filename string
	Data     []byte
	Handle   string
	Opts     SendOptions
}

// Recorder is an in-memory Messenger for tests. Error hooks let a test
// fail specific operations, optionally only on the first attempt.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent

	NextMessageID int64
	HandleForSend string

	// TextErr etc. are returned by the matching operation when set.
	TextErr     error
	ForwardErr  error
	DocumentErr error
	HandleErr   error

	// FailDocumentOnce / FailHandleOnce return the error once, then
	// clear it. Used for reply-framing retry tests.
	FailDocumentOnce bool
	FailHandleOnce   bool
}

// NewRecorder returns a Recorder that assigns message ids from 100 and
// hands out "handle-1" style document handles.
func NewRecorder() *Recorder {
	return &Recorder{NextMessageID: 100, HandleForSend: "handle-1"}
}

// Messages returns a copy of everything recorded so far.
func (r *Recorder) Messages() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Sent, len(r.sent))
	copy(out, r.sent)
	return out
}

// OfKind returns recorded messages of one kind.
func (r *Recorder) OfKind(kind string) []Sent {
	var out []Sent
	for _, s := range r.Messages() {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func (r *Recorder) record(s Sent) MessageRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, s)
	r.NextMessageID++
	return MessageRef{ChatID: s.ChatID, MessageID: r.NextMessageID}
}

func (r *Recorder) SendText(ctx context.Context, chatID int64, text string, opts ...SendOption) (MessageRef, error) {
	o := Apply(opts)
	if r.TextErr != nil {
		// reply framing is what gets rejected; a bare send succeeds
		if o.ReplyTo != 0 {
			return MessageRef{}, r.TextErr
		}
	}
	return r.record(Sent{Kind: "text", ChatID: chatID, Text: text, Opts: o}), nil
}

func (r *Recorder) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, opts ...SendOption) (MessageRef, error) {
	return r.record(Sent{Kind: "photo", ChatID: chatID, Text: caption, Handle: photoURL, Opts: Apply(opts)}), nil
}

func (r *Recorder) SendDocument(ctx context.Context, chatID int64, filename string, data []byte, caption string, opts ...SendOption) (DocumentRef, error) {
	o := Apply(opts)
	if r.DocumentErr != nil {
		err := r.DocumentErr
		if r.FailDocumentOnce {
			r.DocumentErr = nil
		}
		r.record(Sent{Kind: "document_attempt", ChatID: chatID, Filename: filename, Data: data, Opts: o})
		return DocumentRef{}, err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	ref := r.record(Sent{Kind: "document", ChatID: chatID, Filename: filename, Data: cp, Text: caption, Opts: o})
	return DocumentRef{MessageRef: ref, Handle: r.HandleForSend}, nil
}

func (r *Recorder) SendDocumentByHandle(ctx context.Context, chatID int64, handle, caption string, opts ...SendOption) (DocumentRef, error) {
	o := Apply(opts)
	if r.HandleErr != nil {
		err := r.HandleErr
		if r.FailHandleOnce {
			r.HandleErr = nil
		}
		r.record(Sent{Kind: "document_handle_attempt", ChatID: chatID, Handle: handle, Opts: o})
		return DocumentRef{}, err
	}
	ref := r.record(Sent{Kind: "document_handle", ChatID: chatID, Handle: handle, Text: caption, Opts: o})
	return DocumentRef{MessageRef: ref, Handle: handle}, nil
}

func (r *Recorder) Forward(ctx context.Context, chatID, fromChatID, messageID int64) (MessageRef, error) {
	if r.ForwardErr != nil {
		return MessageRef{}, r.ForwardErr
	}
	return r.record(Sent{Kind: "forward", ChatID: chatID, Handle: "", Opts: SendOptions{}}), nil
}

func (r *Recorder) EditText(ctx context.Context, chatID, messageID int64, text string, opts ...SendOption) error {
	r.record(Sent{Kind: "edit", ChatID: chatID, Text: text, Opts: Apply(opts)})
	return nil
}

func (r *Recorder) ChatAction(ctx context.Context, chatID int64, action string) error {
	r.record(Sent{Kind: "action", ChatID: chatID, Text: action})
	return nil
}

var _ Messenger = (*Recorder)(nil)
