package orchestrator

import (
	"errors"
	"fmt"

	"github.com/thecxx/fcstream/render"
)

// Kind classifies turn failures.
type Kind int

const (
	// MalformedArguments is recovered locally with empty arguments.
	MalformedArguments Kind = iota + 1
	// UnknownFunction is recovered by passing the invocation through as the result.
	UnknownFunction
	ExecutorFailure
	FormatterMismatch
	ModelTransportFailure
	PersistenceFailure
)

func (k Kind) String() string {
	switch k {
	case MalformedArguments:
		return "malformed_arguments"
	case UnknownFunction:
		return "unknown_function"
	case ExecutorFailure:
		return "executor_failure"
	case FormatterMismatch:
		return "formatter_mismatch"
	case ModelTransportFailure:
		return "model_transport_failure"
	case PersistenceFailure:
		return "persistence_failure"
	}
	return "unknown"
}

// ErrConversationNotFound is returned for an id no sink knows.
var ErrConversationNotFound = errors.New("conversation not found")

// TurnError is a terminal failure of one turn.
type TurnError struct {
	Kind     Kind
	Op       string
	Function string
	Err      error
}

func (e *TurnError) Error() string {
	if e.Function != "" {
		return fmt.Sprintf("%s %s (%s): %v", e.Op, e.Function, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }

// Redacted returns the message that may be shown to the client. It never
// contains the underlying error text.
func (e *TurnError) Redacted() string {
	switch e.Kind {
	case FormatterMismatch:
		var me *render.MismatchError
		if errors.As(e.Err, &me) {
			return me.Message
		}
		return "结果格式不正确"
	case ExecutorFailure:
		return fmt.Sprintf("处理出错: 函数 %s 执行失败", e.Function)
	case ModelTransportFailure:
		return "处理出错: 模型服务暂时不可用"
	case PersistenceFailure:
		return "处理出错: 保存对话失败"
	}
	return "处理出错"
}

// redact returns the client-safe text for any error.
func redact(err error) string {
	var te *TurnError
	if errors.As(err, &te) {
		return te.Redacted()
	}
	return "处理出错"
}
