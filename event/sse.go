package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"sync"
)

// SSE writes events as server-sent-event data frames.
type SSE struct {
	w     io.Writer
	flush func()
	mu    sync.Mutex
}

// NewSSE prepares w for an event stream.
func NewSSE(w http.ResponseWriter) *SSE {
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")

	var flushFn func()
	if f, ok := w.(http.Flusher); ok {
		flushFn = f.Flush
	}
	return &SSE{w: w, flush: flushFn}
}

// NewSSEWriter writes frames to an arbitrary writer (e.g. in tests).
func NewSSEWriter(w io.Writer) *SSE {
	return &SSE{w: w}
}

// Encode returns the frame for evt: "data: {json}\n\n".
func Encode(evt Event) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("data: ")
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(evt); err != nil {
		return nil, fmt.Errorf("event: marshal %s: %w", evt.Type, err)
	}
	// Encode appended one newline; the frame needs a blank line.
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// Send writes a single frame and flushes it.
func (s *SSE) Send(evt Event) error {
	if s == nil || s.w == nil {
		return errors.New("event: stream writer not configured")
	}
	frame, err := Encode(evt)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(frame); err != nil {
		return err
	}
	if s.flush != nil {
		s.flush()
	}
	return nil
}

// Pipe sends every event of seq. A write failure stops the range, which
// tells the producer the client is gone.
func (s *SSE) Pipe(seq iter.Seq[Event]) error {
	var werr error
	for evt := range seq {
		if werr = s.Send(evt); werr != nil {
			break
		}
	}
	return werr
}
