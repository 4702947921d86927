package fcstream

// Delta is one incremental unit of a streamed completion as the provider
// shaped it. Call payloads may be split across many deltas.
type Delta struct {
	// Content is the text fragment carried by this delta, if any.
	Content string
	// ToolCalls holds tool_calls-style call fragments.
	ToolCalls []ToolCall
	// FunctionCall holds a legacy function_call fragment.
	FunctionCall *FunctionCall
	// FinishReason is set on the last delta of a choice.
	FinishReason string
}

// ChunkKind tags the variant of a Chunk.
type ChunkKind int

const (
	// ChunkText carries only text.
	ChunkText ChunkKind = iota
	// ChunkPartialCall is a call fragment that is not yet usable. Text may ride along.
	ChunkPartialCall
	// ChunkCompleteCall carries a complete Invocation.
	ChunkCompleteCall
)

func (k ChunkKind) String() string {
	switch k {
	case ChunkText:
		return "text"
	case ChunkPartialCall:
		return "partial_call"
	case ChunkCompleteCall:
		return "complete_call"
	}
	return "unknown"
}

// Chunk is the provider-independent view of a Delta. Components past the
// adapter boundary only ever see Chunks.
type Chunk struct {
	Kind ChunkKind
	// Text is the content fragment to forward to the client.
	Text string
	// Call is set when Kind is ChunkCompleteCall.
	Call Invocation
}
