package fcstream

import (
	"strings"

	"github.com/thecxx/fcstream/constants"
	"github.com/tidwall/gjson"
)

// pendingCall accumulates the fragments of one streamed call.
type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

// Detector turns a sequence of Deltas into Chunks, assembling call fragments
// until a usable Invocation appears. It accepts both dialects' shapes. A
// Detector serves a single stream and is not safe for concurrent use.
type Detector struct {
	calls  map[int]*pendingCall
	order  []int
	legacy *pendingCall
	found  bool
	call   Invocation
}

// NewDetector returns an empty Detector.
func NewDetector() *Detector {
	return &Detector{calls: make(map[int]*pendingCall)}
}

// Detected reports whether a complete call has been observed.
func (d *Detector) Detected() bool {
	return d.found
}

// Feed consumes one delta. Malformed or partial fragments never fail; they
// just keep the detector waiting. Deltas fed after detection are ignored.
func (d *Detector) Feed(delta Delta) Chunk {
	if d.found {
		return Chunk{Kind: ChunkPartialCall}
	}

	sawCall := false
	for _, tc := range delta.ToolCalls {
		sawCall = true
		p, ok := d.calls[tc.Index]
		if !ok {
			p = &pendingCall{}
			d.calls[tc.Index] = p
			d.order = append(d.order, tc.Index)
		}
		if tc.ID != "" {
			p.id = tc.ID
		}
		if p.name == "" {
			p.name = tc.Function.Name
		}
		p.args.WriteString(tc.Function.Arguments)
	}
	if fc := delta.FunctionCall; fc != nil {
		sawCall = true
		if d.legacy == nil {
			d.legacy = &pendingCall{}
		}
		if d.legacy.name == "" {
			d.legacy.name = fc.Name
		}
		d.legacy.args.WriteString(fc.Arguments)
	}

	if inv, ok := d.complete(isCallFinish(delta.FinishReason)); ok {
		d.found, d.call = true, inv
		return Chunk{Kind: ChunkCompleteCall, Text: delta.Content, Call: inv}
	}
	if sawCall {
		return Chunk{Kind: ChunkPartialCall, Text: delta.Content}
	}
	return Chunk{Kind: ChunkText, Text: delta.Content}
}

// Finish is called when the stream ends. A named call still pending at that
// point is complete by definition.
func (d *Detector) Finish() (Invocation, bool) {
	if d.found {
		return d.call, true
	}
	if inv, ok := d.complete(true); ok {
		d.found, d.call = true, inv
		return inv, true
	}
	return Invocation{}, false
}

// DetectCall feeds delta and reports whether it completed a call.
func (d *Detector) DetectCall(delta Delta) (bool, Invocation) {
	chunk := d.Feed(delta)
	return chunk.Kind == ChunkCompleteCall, chunk.Call
}

// complete returns the first named call whose arguments form a JSON object,
// or any named call when final is set.
func (d *Detector) complete(final bool) (Invocation, bool) {
	for _, idx := range d.order {
		p := d.calls[idx]
		if p.name == "" {
			continue
		}
		args := p.args.String()
		if final || isObject(args) {
			return Invocation{Name: p.name, Arguments: args, CallID: p.id}, true
		}
		// only the first named call is ever considered
		return Invocation{}, false
	}
	if p := d.legacy; p != nil && p.name != "" {
		args := p.args.String()
		if final || isObject(args) {
			return Invocation{Name: p.name, Arguments: args}, true
		}
	}
	return Invocation{}, false
}

func isCallFinish(reason string) bool {
	switch reason {
	case constants.FinishReasonToolCalls, constants.FinishReasonFunctionCall, constants.FinishReasonToolUse:
		return true
	}
	return false
}

func isObject(s string) bool {
	return gjson.Valid(s) && gjson.Parse(s).IsObject()
}
