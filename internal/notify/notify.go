// Package notify delivers plain-text notices about borrowings. Delivery is
// best effort: nothing here reports back to the caller that produced the
// message.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Sink sends one message somewhere.
type Sink interface {
	Send(ctx context.Context, text string) error
}

// LogSink writes messages to the log. It is used when no chat is configured.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Send(ctx context.Context, text string) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification", "text", text)
	return nil
}

// Recorder keeps every message it receives. It can stand in both as a Sink
// and as a notifier.
type Recorder struct {
	mu       sync.Mutex
	messages []string

	// Err, when set, is returned from every Send after recording.
	Err error
}

func (r *Recorder) Send(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, text)
	return r.Err
}

func (r *Recorder) Notify(ctx context.Context, text string) {
	_ = r.Send(ctx, text)
}

// Messages returns a copy of what was recorded so far.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}
