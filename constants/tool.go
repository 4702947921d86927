package constants

import (
	openai "github.com/sashabaranov/go-openai"
)

const (
	ToolTypeFunction = string(openai.ToolTypeFunction)
)

// Finish reasons that mark the end of a function-call payload.
const (
	FinishReasonToolCalls    = string(openai.FinishReasonToolCalls)
	FinishReasonFunctionCall = string(openai.FinishReasonFunctionCall)
	FinishReasonToolUse      = "tool_use"
)

// Builtin function names.
const (
	FunctionWebSearch = "web_search"
	FunctionHotTopics = "hot_topics"
)
