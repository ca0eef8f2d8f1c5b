package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/markdave123-py/studygalaxy/internal/models"
)

// Subscribe keeps a change feed connection open until ctx is done, applying
// every event to the store. Dropped connections are redialled with backoff,
// and the chatbot list is reloaded after each redial since events sent while
// disconnected are lost.
func (s *Store) Subscribe(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.minBackoff
	b.MaxInterval = s.maxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	resync := false
	for {
		connected, err := s.consume(ctx, resync)
		if ctx.Err() != nil {
			return
		}
		if connected {
			resync = true
			b.Reset()
		}
		wait := b.NextBackOff()
		slog.Warn("change feed disconnected", "error", err, "retry_in", wait)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// consume reads one connection until it fails. connected reports whether the
// dial succeeded.
func (s *Store) consume(ctx context.Context, resync bool) (connected bool, err error) {
	conn, err := s.api.DialFeed(ctx)
	if err != nil {
		return false, err
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		conn.Close()
	}()

	if resync {
		if err := s.Load(ctx); err != nil {
			slog.Warn("chatbot reload after redial failed", "error", err)
		}
	}

	for {
		var ev models.ChangeEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return true, err
		}
		s.ApplyEvent(ev)
	}
}
