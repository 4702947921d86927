package function_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thecxx/fcstream"
	"github.com/thecxx/fcstream/function"
)

func echo() function.Handler {
	return function.HandlerFunc(func(_ context.Context, args json.RawMessage, env function.Env) (function.Result, error) {
		return function.NewResult(map[string]any{"args": args, "conversation": env.ConversationID})
	})
}

func TestRegistryExecute(t *testing.T) {
	r := function.NewRegistry()
	require.NoError(t, r.Register("echo", echo()))

	res, err := r.Execute(context.Background(), "echo", json.RawMessage(`{"a":1}`), function.Env{ConversationID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Get("args.a").Int())
	assert.Equal(t, "c1", res.Get("conversation").String())
	assert.False(t, res.IsFailure())
}

func TestRegistryRegister(t *testing.T) {
	r := function.NewRegistry()
	require.NoError(t, r.Register("b", echo()))
	require.NoError(t, r.Register("a", echo()))

	err := r.Register("a", echo())
	assert.ErrorIs(t, err, function.ErrDuplicateFunction)
	assert.Error(t, r.Register("", echo()))
	assert.Error(t, r.Register("c", nil))

	assert.Equal(t, []string{"a", "b"}, r.Names())
}

func TestRegistryUnknownFunction(t *testing.T) {
	r := function.NewRegistry()
	_, err := r.Execute(context.Background(), "missing", nil, function.Env{})
	assert.ErrorIs(t, err, function.ErrUnknownFunction)

	var execErr *function.ExecError
	assert.False(t, errors.As(err, &execErr))
}

func TestRegistryHandlerError(t *testing.T) {
	boom := errors.New("upstream down")
	r := function.NewRegistry()
	require.NoError(t, r.Register("fail", function.HandlerFunc(func(context.Context, json.RawMessage, function.Env) (function.Result, error) {
		return nil, boom
	})))

	_, err := r.Execute(context.Background(), "fail", nil, function.Env{})
	var execErr *function.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "fail", execErr.Function)
	assert.False(t, execErr.Panic)
	assert.ErrorIs(t, err, boom)
}

func TestRegistryRecoversPanic(t *testing.T) {
	r := function.NewRegistry()
	require.NoError(t, r.Register("explode", function.HandlerFunc(func(context.Context, json.RawMessage, function.Env) (function.Result, error) {
		panic("secret internal state")
	})))

	res, err := r.Execute(context.Background(), "explode", nil, function.Env{})
	assert.Nil(t, res)
	var execErr *function.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.True(t, execErr.Panic)
	assert.NotContains(t, err.Error(), "secret")
}

func TestRegistryTimeout(t *testing.T) {
	r := function.NewRegistry(function.WithTimeout(10 * time.Millisecond))
	require.NoError(t, r.Register("slow", function.HandlerFunc(func(ctx context.Context, _ json.RawMessage, _ function.Env) (function.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})))

	_, err := r.Execute(context.Background(), "slow", nil, function.Env{})
	assert.ErrorIs(t, err, function.ErrTimeout)
}

type declared struct{ function.Handler }

func (declared) Declaration() fcstream.Tool {
	return fcstream.DefineFunction("declared", "has a schema")
}

func TestRegistryDeclarations(t *testing.T) {
	r := function.NewRegistry()
	require.NoError(t, r.Register("declared", declared{echo()}))
	require.NoError(t, r.Register("bare", echo()))

	tools := r.Declarations("openai", "gpt-4o-mini")
	require.Len(t, tools, 2)

	bare := fcstream.FunctionDefinitionOf(tools[0])
	require.NotNil(t, bare)
	assert.Equal(t, "bare", bare.Name)

	decl := fcstream.FunctionDefinitionOf(tools[1])
	require.NotNil(t, decl)
	assert.Equal(t, "has a schema", decl.Description)
}

func TestResult(t *testing.T) {
	assert.Equal(t, "{}", function.Result(nil).String())

	f := function.Failure("bad input")
	assert.True(t, f.IsFailure())
	assert.Equal(t, "bad input", f.Get("error").String())

	p := function.Passthrough("nope", `{"x":1}`)
	assert.True(t, p.IsFailure())
	assert.Equal(t, "nope", p.Get("name").String())
	assert.Equal(t, `{"x":1}`, p.Get("arguments").String())

	data, err := json.Marshal(map[string]function.Result{"r": nil})
	require.NoError(t, err)
	assert.JSONEq(t, `{"r":{}}`, string(data))
}
