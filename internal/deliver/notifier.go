package deliver

import (
	"context"
	"time"

	"bookcourier/internal/transport"
)

// startNotifier runs the "upload_document" presence indicator: one chat
// action immediately, then one per interval, until the returned stop
// function is called or ctx is cancelled. stop blocks until the loop
// goroutine has exited, so the indicator can never outlive the request.
func startNotifier(ctx context.Context, m transport.Messenger, chatID int64, action string, interval time.Duration) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			// send errors are irrelevant: the indicator is cosmetic
			_ = m.ChatAction(ctx, chatID, action)
			select {
			case <-ticker.C:
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var once bool
	return func() {
		if !once {
			once = true
			close(done)
		}
		<-finished
	}
}
