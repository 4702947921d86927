package event

import (
	"errors"
	"fmt"
)

var (
	// ErrClientGone is returned once the consumer stopped accepting events.
	ErrClientGone = errors.New("event consumer stopped")
	// ErrOutOfOrder is returned for an event the protocol does not allow at this point.
	ErrOutOfOrder = errors.New("event out of order")
)

// Emitter hands events of one turn to a consumer in protocol order:
// stream_start first, exactly one terminal event last, and no content
// between function_call_detected and the start of the answer phase.
type Emitter struct {
	conversationID string
	yield          func(Event) bool

	started  bool
	finished bool
	gone     bool
	// muted is set while content would belong to an abandoned stream.
	muted bool
}

// NewEmitter returns an Emitter delivering to yield. yield returns false
// when the consumer wants no more events.
func NewEmitter(conversationID string, yield func(Event) bool) *Emitter {
	return &Emitter{conversationID: conversationID, yield: yield}
}

// Finished reports whether a terminal event was delivered.
func (e *Emitter) Finished() bool {
	return e.finished
}

// Gone reports whether the consumer stopped accepting events.
func (e *Emitter) Gone() bool {
	return e.gone
}

// Emit delivers one event.
func (e *Emitter) Emit(typ Type, content any) error {
	if e.gone {
		return ErrClientGone
	}
	if e.finished {
		return fmt.Errorf("%s after terminal event: %w", typ, ErrOutOfOrder)
	}
	if !e.started && typ != TypeStreamStart {
		return fmt.Errorf("%s before %s: %w", typ, TypeStreamStart, ErrOutOfOrder)
	}
	if e.started && typ == TypeStreamStart {
		return fmt.Errorf("duplicate %s: %w", typ, ErrOutOfOrder)
	}

	switch typ {
	case TypeStreamStart:
		e.started = true
	case TypeFunctionCallDetected:
		e.muted = true
	case TypeGeneratingResponse, TypeContentDirect:
		e.muted = false
	case TypeContent:
		if e.muted {
			return fmt.Errorf("%s after %s: %w", typ, TypeFunctionCallDetected, ErrOutOfOrder)
		}
	}
	if typ.Terminal() {
		e.finished = true
	}

	if !e.yield(Event{Type: typ, ConversationID: e.conversationID, Content: content}) {
		e.gone = true
		return ErrClientGone
	}
	return nil
}
