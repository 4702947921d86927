package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/thecxx/fcstream"
)

func TestCleanTitle(t *testing.T) {
	tests := []struct{ in, want string }{
		{`"巴黎天气"`, "巴黎天气"},
		{"标题：Go 入门", "Go 入门"},
		{"主题: “并发模型”", "并发模型"},
		{"  plain  ", "plain"},
		{"一二三四五六七八九十一二三四五六七八九十一二三四五六七八九十多余", "一二三四五六七八九十一二三四五六七八九十一二三四五六七八九十..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanTitle(tt.in), tt.in)
	}
}

func TestLatestExchange(t *testing.T) {
	user, assistant := latestExchange([]fcstream.Message{
		fcstream.UserMessage("q1"),
		fcstream.AssistantMessage("a1"),
		fcstream.UserMessage("q2"),
		{Role: "tool", Content: "{}"},
		fcstream.AssistantMessage("a2"),
	})
	assert.Equal(t, "q2", user)
	assert.Equal(t, "a2", assistant)

	user, assistant = latestExchange(nil)
	assert.Empty(t, user)
	assert.Empty(t, assistant)
}

func TestStatusLine(t *testing.T) {
	assert.Equal(t, "我需要搜索网络获取更多信息...", statusLine("web_search"))
	assert.Equal(t, "我将查询最新的热点话题...", statusLine("hot_topics"))
	assert.Equal(t, "我需要调用 get_weather 函数获取信息...", statusLine("get_weather"))
}
