package event_test

import (
	"bytes"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thecxx/fcstream/event"
)

func TestEncode(t *testing.T) {
	frame, err := event.Encode(event.Event{Type: event.TypeContent, ConversationID: "c1", Content: "<b>你好</b>"})
	require.NoError(t, err)
	assert.Equal(t, `data: {"type":"content","conversation_id":"c1","content":"<b>你好</b>"}`+"\n\n", string(frame))

	frame, err = event.Encode(event.Event{Type: event.TypeDone, ConversationID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, `data: {"type":"done","conversation_id":"c1"}`+"\n\n", string(frame))

	frame, err = event.Encode(event.Event{
		Type:           event.TypeFunctionCallDetected,
		ConversationID: "c1",
		Content:        event.FunctionCallDetected{FunctionType: "web_search", Description: "搜索"},
	})
	require.NoError(t, err)
	assert.Contains(t, string(frame), `"content":{"function_type":"web_search","description":"搜索"}`)
}

func TestSSEPipe(t *testing.T) {
	rec := httptest.NewRecorder()
	sse := event.NewSSE(rec)

	events := func(yield func(event.Event) bool) {
		for _, typ := range []event.Type{event.TypeStreamStart, event.TypeContent, event.TypeDone} {
			if !yield(event.Event{Type: typ, ConversationID: "c1"}) {
				return
			}
		}
	}
	require.NoError(t, sse.Pipe(events))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.True(t, rec.Flushed)
	assert.Equal(t, 3, bytes.Count(rec.Body.Bytes(), []byte("data: ")))
}

type brokenWriter struct{ writes int }

func (w *brokenWriter) Write(p []byte) (int, error) {
	w.writes++
	return 0, errors.New("broken pipe")
}

func TestSSEPipeStopsOnWriteError(t *testing.T) {
	w := &brokenWriter{}
	stopped := false
	events := func(yield func(event.Event) bool) {
		if !yield(event.Event{Type: event.TypeStreamStart}) {
			stopped = true
			return
		}
		yield(event.Event{Type: event.TypeDone})
	}

	err := event.NewSSEWriter(w).Pipe(events)
	assert.Error(t, err)
	assert.True(t, stopped)
	assert.Equal(t, 1, w.writes)
}
