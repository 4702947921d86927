package function_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thecxx/fcstream/function"
)

type topicList []function.Topic

func (l topicList) Topics(_ context.Context, category string, limit int) ([]function.Topic, error) {
	var out []function.Topic
	for _, t := range l {
		if category != "" && t.Category != category {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, t)
	}
	return out, nil
}

func TestHotTopics(t *testing.T) {
	src := topicList{
		{Title: "芯片", Category: "科技", Source: "新华社"},
		{Title: "股市", Category: "财经", Source: "财新"},
		{Title: "大模型", Category: "科技", Source: "36氪"},
	}
	h := function.HotTopics(src)

	res, err := h.Call(context.Background(), json.RawMessage(`{"category":"科技","limit":1}`), function.Env{})
	require.NoError(t, err)
	topics := res.Get("topics").Array()
	require.Len(t, topics, 1)
	assert.Equal(t, "芯片", topics[0].Get("title").String())

	res, err = h.Call(context.Background(), json.RawMessage(`{}`), function.Env{})
	require.NoError(t, err)
	assert.Len(t, res.Get("topics").Array(), 3)

	res, err = h.Call(context.Background(), json.RawMessage(`{"category":"体育"}`), function.Env{})
	require.NoError(t, err)
	assert.True(t, res.Get("topics").IsArray())
}
