package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

var errStreamClosed = errors.New("stream closed")

// sseWriter writes Server-Sent Events frames. Once the client has gone away
// or the stream has been closed further sends are dropped.
type sseWriter struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	rc     *http.ResponseController
	closed bool
	opened bool
	done   chan struct{}
	once   sync.Once
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	return &sseWriter{
		w:    w,
		rc:   http.NewResponseController(w),
		done: make(chan struct{}),
	}
}

// Open writes the stream headers and flushes them. It closes the writer when
// ctx, the client connection, is done.
func (s *sseWriter) Open(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.rc.Flush()
	s.opened = true

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
}

// Send writes v as one data frame
func (s *sseWriter) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.opened {
		return errStreamClosed
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		s.closed = true
		return err
	}
	if err := s.rc.Flush(); err != nil {
		s.closed = true
		return err
	}
	return nil
}

// Close stops further writes. It does not end the HTTP response; that
// happens when the handler returns.
func (s *sseWriter) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.once.Do(func() { close(s.done) })
}
