package function

import (
	"context"
	"encoding/json"

	"github.com/thecxx/fcstream"
	"github.com/thecxx/fcstream/constants"
)

const defaultTopicLimit = 10

// Topic is one trending topic.
type Topic struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Category    string `json:"category"`
}

// TopicSource lists current topics, optionally filtered by category.
type TopicSource interface {
	Topics(ctx context.Context, category string, limit int) ([]Topic, error)
}

// TopicArgs are the arguments of hot_topics.
type TopicArgs struct {
	Category string `json:"category,omitempty" fcstream:"category,desc=话题类别，如科技、财经、体育；为空表示全部"`
	Limit    int    `json:"limit,omitempty" fcstream:"limit,desc=返回话题数量上限"`
}

type hotTopics struct {
	source TopicSource
}

// HotTopics returns the hot_topics handler backed by src.
func HotTopics(src TopicSource) Handler {
	return &hotTopics{source: src}
}

// Declaration implements Declarer.
func (h *hotTopics) Declaration() fcstream.Tool {
	return fcstream.DefineFunction(constants.FunctionHotTopics,
		"获取当前的热点话题和新闻。当用户询问最新热点、热门话题或新闻时使用。",
		fcstream.WithParametersOf(TopicArgs{}))
}

// Call implements Handler. The result is {"topics": [topics...]}.
func (h *hotTopics) Call(ctx context.Context, args json.RawMessage, _ Env) (Result, error) {
	var in TopicArgs
	_ = json.Unmarshal(args, &in)
	if in.Limit <= 0 {
		in.Limit = defaultTopicLimit
	}

	topics, err := h.source.Topics(ctx, in.Category, in.Limit)
	if err != nil {
		return nil, err
	}
	if topics == nil {
		topics = []Topic{}
	}
	return NewResult(struct {
		Topics []Topic `json:"topics"`
	}{topics})
}
