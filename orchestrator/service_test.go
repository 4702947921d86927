package orchestrator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thecxx/fcstream"
	"github.com/thecxx/fcstream/constants"
	"github.com/thecxx/fcstream/event"
	"github.com/thecxx/fcstream/orchestrator"
	"github.com/thecxx/fcstream/testutil"
)

type serviceFixture struct {
	*fixture
	helper *testutil.Model
	svc    *orchestrator.Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := newFixture(t, constants.ProviderOpenAI)
	helper := testutil.NewModel("helper", "small")

	models := fcstream.NewModels(nil)
	models.Register(f.model)
	models.Register(helper)

	svc := orchestrator.NewService(f.sink, models, f.orch,
		orchestrator.WithDefaultModel("helper", "small"),
		orchestrator.WithServiceLogger(discard))
	return &serviceFixture{fixture: f, helper: helper, svc: svc}
}

func (s *serviceFixture) request(id, message string) orchestrator.Request {
	return orchestrator.Request{
		ConversationID: id,
		Message:        message,
		Provider:       constants.ProviderOpenAI,
		Model:          "test-model",
		UseFunctions:   true,
	}
}

func (s *serviceFixture) seed(t *testing.T, id string, msgs ...fcstream.Message) {
	t.Helper()
	require.NoError(t, s.memory.Save(context.Background(), &fcstream.Conversation{ID: id, Messages: msgs}))
}

func TestServiceStreamCreatesConversation(t *testing.T) {
	s := newServiceFixture(t)
	s.model.AddStream(testutil.Text("你好"))

	message := "这是一个非常非常长的问题，用来检查标题会不会被截断到三十个字符以内的长度"
	events, id, err := s.svc.Stream(context.Background(), s.request("", message))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// the user message is saved before any event is pulled
	conv, err := s.svc.Conversation(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{"user"}, roles(conv.Messages))
	assert.Equal(t, []rune(message)[:30], []rune(conv.Title)[:30])
	assert.Equal(t, "...", conv.Title[len(conv.Title)-3:])
	assert.Equal(t, constants.ProviderOpenAI, conv.Provider)

	got := drain(events)
	assert.Equal(t, event.TypeDone, got[len(got)-1].Type)
	assert.Equal(t, id, got[0].ConversationID)

	conv, err = s.svc.Conversation(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []string{"user", "assistant"}, roles(conv.Messages))
}

func TestServiceStreamContinuesConversation(t *testing.T) {
	s := newServiceFixture(t)
	s.seed(t, "existing", fcstream.UserMessage("之前的问题"), fcstream.AssistantMessage("之前的回答"))
	s.model.AddStream(testutil.Text("新的回答"))

	events, id, err := s.svc.Stream(context.Background(), s.request("existing", "新的问题"))
	require.NoError(t, err)
	assert.Equal(t, "existing", id)
	drain(events)

	sent := s.model.StreamCalls[0].Messages
	assert.Equal(t, []string{"user", "assistant", "user"}, roles(sent))

	conv, err := s.svc.Conversation(context.Background(), "existing")
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 4)
}

func TestServiceStreamUnknownIDStartsConversation(t *testing.T) {
	s := newServiceFixture(t)
	s.model.AddStream(testutil.Text("ok"))

	events, id, err := s.svc.Stream(context.Background(), s.request("client-chosen", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "client-chosen", id)
	drain(events)
}

func TestServiceSetupErrors(t *testing.T) {
	s := newServiceFixture(t)

	_, _, err := s.svc.Stream(context.Background(), s.request("", "   "))
	assert.Error(t, err)

	req := s.request("", "hi")
	req.Provider = "nowhere"
	_, _, err = s.svc.Stream(context.Background(), req)
	assert.ErrorIs(t, err, fcstream.ErrUnsupportedProvider)

	list, err := s.svc.Conversations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestServiceSend(t *testing.T) {
	s := newServiceFixture(t)
	s.model.AddReply(fcstream.AssistantMessage("你好"))

	reply, err := s.svc.Send(context.Background(), s.request("", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "你好", reply.Message.Content)

	conv, err := s.svc.Conversation(context.Background(), reply.ConversationID)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 2)
}

func TestServiceConversations(t *testing.T) {
	s := newServiceFixture(t)
	s.seed(t, "a", fcstream.UserMessage("x"))

	list, err := s.svc.Conversations(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = s.svc.Conversation(context.Background(), "missing")
	assert.ErrorIs(t, err, orchestrator.ErrConversationNotFound)

	ok, err := s.svc.DeleteConversation(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.svc.DeleteConversation(context.Background(), "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestServiceGenerateTitle(t *testing.T) {
	t.Run("from conversation", func(t *testing.T) {
		s := newServiceFixture(t)
		s.seed(t, "c1", fcstream.UserMessage("巴黎明天天气"), fcstream.AssistantMessage("晴"))
		s.helper.AddReply(fcstream.AssistantMessage(`标题："巴黎天气查询"`))

		title, err := s.svc.GenerateTitle(context.Background(), "c1", "")
		require.NoError(t, err)
		assert.Equal(t, "巴黎天气查询", title)

		prompt := s.helper.CompletionCalls[0].Messages[0].Content
		assert.Contains(t, prompt, "用户: 巴黎明天天气")
		assert.Contains(t, prompt, "助手: 晴")

		conv, err := s.svc.Conversation(context.Background(), "c1")
		require.NoError(t, err)
		assert.Equal(t, "巴黎天气查询", conv.Title)
	})

	t.Run("from message", func(t *testing.T) {
		s := newServiceFixture(t)
		s.helper.AddReply(fcstream.AssistantMessage("Go 入门"))

		title, err := s.svc.GenerateTitle(context.Background(), "", "怎么学 Go")
		require.NoError(t, err)
		assert.Equal(t, "Go 入门", title)
	})

	t.Run("model failure", func(t *testing.T) {
		s := newServiceFixture(t)
		s.seed(t, "0123456789abcdef", fcstream.UserMessage("hi"))
		s.helper.AddReplyError(errors.New("down"))
		s.helper.AddReplyError(errors.New("down"))

		title, err := s.svc.GenerateTitle(context.Background(), "0123456789abcdef", "")
		require.NoError(t, err)
		assert.Equal(t, "对话 01234567...", title)

		title, err = s.svc.GenerateTitle(context.Background(), "", "hi")
		require.NoError(t, err)
		assert.Equal(t, "新对话", title)
	})

	t.Run("nothing to title", func(t *testing.T) {
		s := newServiceFixture(t)
		_, err := s.svc.GenerateTitle(context.Background(), "", "")
		assert.Error(t, err)

		_, err = s.svc.GenerateTitle(context.Background(), "missing", "")
		assert.ErrorIs(t, err, orchestrator.ErrConversationNotFound)
	})
}

// hookedModel runs before ahead of every blocking completion.
type hookedModel struct {
	*testutil.Model
	before func()
}

func (m *hookedModel) ChatCompletion(ctx context.Context, messages []fcstream.Message, opts ...fcstream.ChatOption) (fcstream.Response, error) {
	if m.before != nil {
		m.before()
	}
	return m.Model.ChatCompletion(ctx, messages, opts...)
}

func newHookedService(f *fixture) (*orchestrator.Service, *hookedModel) {
	helper := &hookedModel{Model: testutil.NewModel("helper", "small")}
	models := fcstream.NewModels(nil)
	models.Register(f.model)
	models.Register(helper)
	svc := orchestrator.NewService(f.sink, models, f.orch,
		orchestrator.WithDefaultModel("helper", "small"),
		orchestrator.WithServiceLogger(discard))
	return svc, helper
}

func TestServiceGenerateTitleDuringTurn(t *testing.T) {
	f := newFixture(t, constants.ProviderOpenAI)
	f.model.AddStream(testutil.Text("明天晴"))
	svc, helper := newHookedService(f)
	helper.AddReply(fcstream.AssistantMessage("巴黎天气"))

	ctx := context.Background()
	events, id, err := svc.Stream(ctx, orchestrator.Request{
		Message:  "巴黎明天天气",
		Provider: constants.ProviderOpenAI,
		Model:    "test-model",
	})
	require.NoError(t, err)

	// the turn finishes while the title is being generated
	helper.before = func() { drain(events) }
	title, err := svc.GenerateTitle(ctx, id, "")
	require.NoError(t, err)
	assert.Equal(t, "巴黎天气", title)

	conv, err := svc.Conversation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "巴黎天气", conv.Title)
	assert.Equal(t, []string{"user", "assistant"}, roles(conv.Messages))
	assert.Equal(t, "明天晴", conv.Messages[1].Content)
}

func TestServiceGenerateTitleDeletedConversation(t *testing.T) {
	f := newFixture(t, constants.ProviderOpenAI)
	svc, helper := newHookedService(f)
	require.NoError(t, f.memory.Save(context.Background(),
		&fcstream.Conversation{ID: "c1", Messages: []fcstream.Message{fcstream.UserMessage("hi")}}))
	helper.AddReply(fcstream.AssistantMessage("问候"))

	helper.before = func() {
		_, err := f.memory.Delete(context.Background(), "c1")
		require.NoError(t, err)
	}
	_, err := svc.GenerateTitle(context.Background(), "c1", "")
	assert.ErrorIs(t, err, orchestrator.ErrConversationNotFound)

	conv, err := f.memory.Load(context.Background(), "c1")
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestServiceSuggestQuestions(t *testing.T) {
	t.Run("numbered", func(t *testing.T) {
		s := newServiceFixture(t)
		s.seed(t, "c1", fcstream.UserMessage("Go 是什么"), fcstream.AssistantMessage("一门编程语言"))
		s.helper.AddReply(fcstream.AssistantMessage("好的：\n1. Go 有哪些特点？\n2) Go 适合做什么？\n3、如何安装 Go？\n4. 多余的问题"))

		questions, err := s.svc.SuggestQuestions(context.Background(), "c1")
		require.NoError(t, err)
		assert.Equal(t, []string{"Go 有哪些特点？", "Go 适合做什么？", "如何安装 Go？"}, questions)
	})

	t.Run("lines", func(t *testing.T) {
		s := newServiceFixture(t)
		s.seed(t, "c1", fcstream.UserMessage("Go 是什么"))
		s.helper.AddReply(fcstream.AssistantMessage("第一个问题\n\n第二个问题"))

		questions, err := s.svc.SuggestQuestions(context.Background(), "c1")
		require.NoError(t, err)
		assert.Equal(t, []string{"第一个问题", "第二个问题"}, questions)
	})

	t.Run("empty dialog", func(t *testing.T) {
		s := newServiceFixture(t)
		s.seed(t, "c1")

		questions, err := s.svc.SuggestQuestions(context.Background(), "c1")
		require.NoError(t, err)
		assert.Len(t, questions, 3)
		assert.Empty(t, s.helper.CompletionCalls)
	})

	t.Run("model failure", func(t *testing.T) {
		s := newServiceFixture(t)
		s.seed(t, "c1", fcstream.UserMessage("hi"))
		s.helper.AddReplyError(errors.New("down"))

		questions, err := s.svc.SuggestQuestions(context.Background(), "c1")
		require.NoError(t, err)
		assert.Len(t, questions, 3)
	})

	t.Run("missing conversation", func(t *testing.T) {
		s := newServiceFixture(t)
		_, err := s.svc.SuggestQuestions(context.Background(), "missing")
		assert.ErrorIs(t, err, orchestrator.ErrConversationNotFound)
	})
}
