package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/thecxx/fcstream"
	"github.com/thecxx/fcstream/constants"
	"github.com/thecxx/fcstream/event"
	"github.com/thecxx/fcstream/function"
)

// run is the working state of one turn. It is never shared.
type run struct {
	o         *Orchestrator
	conv      *fcstream.Conversation
	model     fcstream.Model
	functions bool
	dialect   fcstream.Dialect
	env       function.Env
	logger    *slog.Logger
	emit      func(typ event.Type, content any) error
	// strict surfaces persistence failures instead of only logging them.
	strict bool
}

// answer is the outcome of the execute step.
type answer struct {
	text string
	// direct is set when a specialized renderer produced text, so no second
	// generation is needed.
	direct bool
}

func (o *Orchestrator) newRun(t Turn, emit func(event.Type, any) error, strict bool) *run {
	provider, name := t.Model.Provider(), t.Model.Name()
	return &run{
		o:         o,
		conv:      t.Conversation,
		model:     t.Model,
		functions: t.Functions,
		dialect:   o.adapter.Dialect(provider),
		env: function.Env{
			ConversationID: t.Conversation.ID,
			Provider:       provider,
			Model:          name,
		},
		logger: o.logger.With("conversation_id", t.Conversation.ID, "provider", provider, "model", name),
		emit:   emit,
		strict: strict,
	}
}

func (r *run) schema() []fcstream.ChatOption {
	if !r.functions {
		return nil
	}
	return r.o.adapter.PrepareCallSchema(r.env.Provider, r.env.Model)
}

func (r *run) history() []fcstream.Message {
	return fcstream.ReplayableHistory(r.conv.Messages)
}

func (r *run) stream(ctx context.Context) {
	if err := r.emit(event.TypeStreamStart, nil); err != nil {
		r.fail(err)
		return
	}

	inv, transcript, detected, err := r.firstPhase(ctx)
	if err != nil {
		r.fail(err)
		return
	}
	if !detected {
		r.logger.Debug("turn finished without call", "state", "DONE")
		_ = r.commit(ctx, fcstream.AssistantMessage(transcript))
		r.fail(r.emit(event.TypeDone, nil))
		return
	}

	ans, err := r.call(ctx, inv, r.intentText(inv.Name, transcript))
	if err != nil {
		r.fail(err)
		return
	}

	final := ans.text
	if ans.direct {
		if err := r.emit(event.TypeContentDirect, event.ContentDirect{FunctionType: inv.Name, Status: statusProcessing}); err != nil {
			r.fail(err)
			return
		}
		if err := r.emit(event.TypeContent, final); err != nil {
			r.fail(err)
			return
		}
	} else {
		if err := r.emit(event.TypeGeneratingResponse, statusGeneratingResponse); err != nil {
			r.fail(err)
			return
		}
		if final, err = r.secondPhase(ctx); err != nil {
			r.fail(err)
			return
		}
	}

	_ = r.commit(ctx, fcstream.AssistantMessage(final))
	r.fail(r.emit(event.TypeDone, nil))
}

// firstPhase consumes the first stream until it ends or a call completes.
// On detection the stream is closed without draining it.
func (r *run) firstPhase(ctx context.Context) (inv fcstream.Invocation, transcript string, detected bool, err error) {
	r.logger.Debug("opening stream", "state", "START")
	stream, err := r.model.ChatCompletionStream(ctx, r.history(), r.schema()...)
	if err != nil {
		return inv, "", false, &TurnError{Kind: ModelTransportFailure, Op: "open stream", Err: err}
	}
	defer stream.Close()

	var (
		text strings.Builder
		det  = fcstream.NewDetector()
	)
	for stream.Next() {
		chunk := det.Feed(stream.Current())
		// the delta completing a call may still carry text
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
			if err := r.emit(event.TypeContent, chunk.Text); err != nil {
				return inv, text.String(), false, err
			}
		}
		if chunk.Kind == fcstream.ChunkCompleteCall {
			r.logger.Debug("function call detected", "state", "CALL_DETECTED", "function", chunk.Call.Name)
			return chunk.Call, text.String(), true, nil
		}
	}
	if err := stream.Err(); err != nil {
		return inv, text.String(), false, &TurnError{Kind: ModelTransportFailure, Op: "stream", Err: err}
	}
	if call, ok := det.Finish(); ok {
		r.logger.Debug("function call detected at end of stream", "state", "CALL_DETECTED", "function", call.Name)
		return call, text.String(), true, nil
	}
	return inv, text.String(), false, nil
}

// secondPhase streams the final answer over the history that now holds the
// intent and the function result. Call fragments are ignored.
func (r *run) secondPhase(ctx context.Context) (string, error) {
	r.logger.Debug("opening second stream", "state", "DEFAULT_RENDER")
	stream, err := r.model.ChatCompletionStream(ctx, r.history())
	if err != nil {
		return "", &TurnError{Kind: ModelTransportFailure, Op: "open second stream", Err: err}
	}
	defer stream.Close()

	var text strings.Builder
	for stream.Next() {
		content := stream.Current().Content
		if content == "" {
			continue
		}
		text.WriteString(content)
		if err := r.emit(event.TypeContent, content); err != nil {
			return "", err
		}
	}
	if err := stream.Err(); err != nil {
		return "", &TurnError{Kind: ModelTransportFailure, Op: "second stream", Err: err}
	}
	return text.String(), nil
}

// call runs CALL_DETECTED through RESULT_READY. Query synthesis and
// execution are detached from ctx so they finish once started.
func (r *run) call(ctx context.Context, inv fcstream.Invocation, intent string) (answer, error) {
	name := inv.Name
	logger := r.logger.With("function", name)

	if inv.CallID == "" && r.dialect == fcstream.DialectToolCalls {
		inv.CallID = newCallID()
	}
	args, ok := fcstream.ParseArguments(inv.Arguments)
	if !ok {
		logger.Warn("malformed function arguments, using empty arguments",
			"kind", MalformedArguments, "arguments", inv.Arguments)
	}
	inv.Arguments = string(args)

	if err := r.commit(ctx, fcstream.BuildCallMessage(r.dialect, inv, intent)); err != nil {
		return answer{}, err
	}
	if err := r.emit(event.TypeFunctionCallDetected, event.FunctionCallDetected{
		FunctionType: name,
		Description:  callDescription(name),
	}); err != nil {
		return answer{}, err
	}

	if name == constants.FunctionWebSearch && fcstream.ArgumentString(args, "query") == "" {
		if err := r.emit(event.TypeGeneratingQuery, statusGeneratingQuery); err != nil {
			return answer{}, err
		}
		if user := r.conv.LastUserMessage(); user != "" {
			logger.Debug("synthesizing search query", "state", "QUERY_SYNTHESIS")
			query, err := r.synthesizeQuery(context.WithoutCancel(ctx), user)
			if err != nil {
				return answer{}, &TurnError{Kind: ModelTransportFailure, Op: "synthesize query", Function: name, Err: err}
			}
			if args, err = fcstream.SetArgument(args, "query", query); err != nil {
				return answer{}, &TurnError{Kind: MalformedArguments, Op: "set query", Function: name, Err: err}
			}
			inv.Arguments = string(args)
			if err := r.emit(event.TypeQueryGenerated, queryStatus(query)); err != nil {
				return answer{}, err
			}
		}
	}

	if err := r.emit(event.TypeExecutingFunction, executingStatus(name)); err != nil {
		return answer{}, err
	}
	logger.Debug("executing function", "state", "EXECUTING")
	res, err := r.o.executor.Execute(context.WithoutCancel(ctx), name, args, r.env)
	switch {
	case errors.Is(err, function.ErrUnknownFunction):
		logger.Warn("unknown function, passing invocation through", "kind", UnknownFunction)
		res = function.Passthrough(name, inv.Arguments)
	case err != nil:
		return answer{}, &TurnError{Kind: ExecutorFailure, Op: "execute", Function: name, Err: err}
	}

	if err := r.commit(ctx, fcstream.BuildToolMessage(r.dialect, name, res.String(), inv.CallID)); err != nil {
		return answer{}, err
	}
	if err := r.emit(event.TypeFunctionExecuted, event.FunctionExecuted{
		FunctionType: name,
		Result:       res.String(),
	}); err != nil {
		return answer{}, err
	}

	logger.Debug("result ready", "state", "RESULT_READY")
	renderer := r.o.formatter.Resolve(name)
	if renderer == nil {
		return answer{}, nil
	}
	text, err := renderer.Render(inv, res)
	if err != nil {
		return answer{}, &TurnError{Kind: FormatterMismatch, Op: "render", Function: name, Err: err}
	}
	return answer{text: text, direct: true}, nil
}

func (r *run) synthesizeQuery(ctx context.Context, user string) (string, error) {
	prompt := fmt.Sprintf(r.o.queryPrompt, user)
	resp, err := r.model.ChatCompletion(ctx, []fcstream.Message{fcstream.UserMessage(prompt)})
	if err != nil {
		return "", err
	}
	query := strings.Trim(strings.TrimSpace(resp.Answer().Content), `"'`)
	return strings.TrimSpace(query), nil
}

func (r *run) intentText(name, transcript string) string {
	if r.o.persistStreamedText && strings.TrimSpace(transcript) != "" {
		return transcript
	}
	return statusLine(name)
}

// commit appends msgs to the working conversation and saves it. Saving is
// detached from ctx so committed messages survive a client disconnect.
func (r *run) commit(ctx context.Context, msgs ...fcstream.Message) error {
	r.conv.Append(msgs...)
	if err := r.o.sink.Save(context.WithoutCancel(ctx), r.conv); err != nil {
		r.logger.Error("persist conversation failed", "kind", PersistenceFailure, "err", err)
		if r.strict {
			return &TurnError{Kind: PersistenceFailure, Op: "save", Err: err}
		}
	}
	return nil
}

// fail ends a streaming turn. A vanished client gets nothing more; any
// other error is logged in full and reported as one redacted error event.
func (r *run) fail(err error) {
	switch {
	case err == nil:
		return
	case errors.Is(err, event.ErrClientGone):
		r.logger.Info("client disconnected, turn stopped")
		return
	case errors.Is(err, event.ErrOutOfOrder):
		r.logger.Error("protocol violation", "err", err)
		return
	}

	var te *TurnError
	if errors.As(err, &te) {
		r.logger.Error("turn failed", "kind", te.Kind, "function", te.Function, "state", "ERROR", "err", err)
	} else {
		r.logger.Error("turn failed", "state", "ERROR", "err", err)
	}
	if emitErr := r.emit(event.TypeError, redact(err)); emitErr != nil && !errors.Is(emitErr, event.ErrClientGone) {
		r.logger.Error("emit error event", "err", emitErr)
	}
}

// blocking is the collapsed, non-streaming form of the turn.
func (r *run) blocking(ctx context.Context) (*Reply, error) {
	resp, err := r.model.ChatCompletion(ctx, r.history(), r.schema()...)
	if err != nil {
		return nil, r.report(&TurnError{Kind: ModelTransportFailure, Op: "complete", Err: err})
	}

	reply := resp.Answer()
	final := reply.Content
	if inv, ok := fcstream.ExtractCall(resp); ok {
		intent := reply.Content
		if intent == "" {
			intent = statusLine(inv.Name)
		}
		ans, err := r.call(ctx, inv, intent)
		if err != nil {
			return nil, r.report(err)
		}
		final = ans.text
		if !ans.direct {
			resp, err := r.model.ChatCompletion(ctx, r.history())
			if err != nil {
				return nil, r.report(&TurnError{Kind: ModelTransportFailure, Op: "complete final", Err: err})
			}
			final = resp.Answer().Content
		}
	}

	msg := fcstream.AssistantMessage(final)
	if err := r.commit(ctx, msg); err != nil {
		return nil, err
	}
	return &Reply{
		ID:             uuid.NewString(),
		Provider:       r.env.Provider,
		Model:          r.env.Model,
		Message:        msg,
		ConversationID: r.conv.ID,
	}, nil
}

// report logs a non-streaming failure and returns it.
func (r *run) report(err error) error {
	var te *TurnError
	if errors.As(err, &te) && te.Kind != PersistenceFailure {
		r.logger.Error("turn failed", "kind", te.Kind, "function", te.Function, "err", err)
	}
	return err
}

func newCallID() string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}
