package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	rec := &Recorder{}
	d := NewDispatcher(rec, discard(), 16, 2)

	for _, text := range []string{"a", "b", "c"} {
		d.Notify(context.Background(), text)
	}
	require.NoError(t, d.Close(context.Background()))

	assert.ElementsMatch(t, []string{"a", "b", "c"}, rec.Messages())
}

func TestDispatcherNotifyAfterCloseIsDropped(t *testing.T) {
	rec := &Recorder{}
	d := NewDispatcher(rec, discard(), 1, 1)
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))

	d.Notify(context.Background(), "late")
	assert.Empty(t, rec.Messages())
}

// blockingSink holds every Send until release is closed.
type blockingSink struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingSink) Send(ctx context.Context, _ string) error {
	s.once.Do(func() { close(s.started) })
	<-s.release
	return nil
}

func TestDispatcherNotifyDoesNotBlockWhenFull(t *testing.T) {
	sink := &blockingSink{started: make(chan struct{}), release: make(chan struct{})}
	d := NewDispatcher(sink, discard(), 1, 1)

	d.Notify(context.Background(), "first")
	<-sink.started

	done := make(chan struct{})
	go func() {
		for range 10 {
			d.Notify(context.Background(), "more")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a full queue")
	}

	close(sink.release)
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcherSinkErrorIsSwallowed(t *testing.T) {
	rec := &Recorder{Err: errors.New("boom")}
	d := NewDispatcher(rec, discard(), 4, 1)

	d.Notify(context.Background(), "x")
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, []string{"x"}, rec.Messages())
}

func TestTelegramSinkPostsMessage(t *testing.T) {
	type posted struct {
		path string
		body sendMessageRequest
	}
	seen := make(chan posted, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p posted
		p.path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &p.body)
		seen <- p
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewTelegramSink(TelegramConfig{Token: "tok", ChatID: "42", BaseURL: srv.URL})
	require.NoError(t, sink.Send(context.Background(), "hello"))

	got := <-seen
	assert.Equal(t, "/bottok/sendMessage", got.path)
	assert.Equal(t, "42", got.body.ChatID)
	assert.Equal(t, "hello", got.body.Text)
}

func TestTelegramSinkRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewTelegramSink(TelegramConfig{Token: "tok", ChatID: "1", BaseURL: srv.URL})
	require.NoError(t, sink.Send(context.Background(), "hello"))
	assert.Equal(t, int32(2), calls.Load())
}

func TestTelegramSinkDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	sink := NewTelegramSink(TelegramConfig{Token: "tok", ChatID: "1", BaseURL: srv.URL})
	require.Error(t, sink.Send(context.Background(), "hello"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestTelegramSinkTransportErrorHidesToken(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	sink := NewTelegramSink(TelegramConfig{Token: "SECRET123", ChatID: "1", BaseURL: base, MaxTries: 1})
	err := sink.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET123")
	assert.Contains(t, err.Error(), "sendMessage")
}
