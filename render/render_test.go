package render_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thecxx/fcstream"
	"github.com/thecxx/fcstream/function"
	"github.com/thecxx/fcstream/render"
)

func TestSearch(t *testing.T) {
	res := function.Result(`{"query":"Go 1.24","results":[
		{"title":"Go 1.24 is released","snippet":"Swiss tables","link":"https://go.dev/blog/go1.24"}
	]}`)

	out, err := render.Search(fcstream.Invocation{}, res)
	require.NoError(t, err)
	assert.Equal(t, "以下是关于Go 1.24的搜索结果：\n\n"+
		"1. Go 1.24 is released\n"+
		"   Swiss tables\n"+
		"   来源: https://go.dev/blog/go1.24\n\n", out)
}

func TestSearchNoResults(t *testing.T) {
	out, err := render.Search(fcstream.Invocation{}, function.Result(`{"query":"xyz","results":[]}`))
	require.NoError(t, err)
	assert.Equal(t, "未找到关于xyz的搜索结果。", out)
}

func TestSearchMismatch(t *testing.T) {
	_, err := render.Search(fcstream.Invocation{}, function.Failure("boom"))
	var mismatch *render.MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "web_search", mismatch.Function)
	assert.Equal(t, "搜索结果格式不正确", mismatch.Message)
}

func TestTopics(t *testing.T) {
	res := function.Result(`{"topics":[
		{"title":"大模型","description":"开源进展","source":"36氪","category":"科技"},
		{"title":"股市","description":"收盘","source":"财新","category":"财经"}
	]}`)

	out, err := render.Topics(fcstream.Invocation{}, res)
	require.NoError(t, err)
	assert.Equal(t, "以下是最新热点话题：\n\n"+
		"1. 大模型\n   开源进展\n   来源: 36氪, 类别: 科技\n\n"+
		"2. 股市\n   收盘\n   来源: 财新, 类别: 财经\n\n", out)

	out, err = render.Topics(fcstream.Invocation{}, function.Result(`{"topics":[]}`))
	require.NoError(t, err)
	assert.Equal(t, "当前没有热点话题信息。", out)

	_, err = render.Topics(fcstream.Invocation{}, function.Result(`{}`))
	var mismatch *render.MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "热点话题结果格式不正确", mismatch.Message)
}

func TestFormatter(t *testing.T) {
	f := render.Default()
	assert.NotNil(t, f.Resolve("web_search"))
	assert.NotNil(t, f.Resolve("hot_topics"))
	assert.Nil(t, f.Resolve("get_weather"))

	f.Register("get_weather", render.RendererFunc(func(inv fcstream.Invocation, res function.Result) (string, error) {
		return inv.Name + ":" + res.Get("temp").String(), nil
	}))
	out, err := f.Resolve("get_weather").Render(fcstream.Invocation{Name: "get_weather"}, function.Result(`{"temp":"21"}`))
	require.NoError(t, err)
	assert.Equal(t, "get_weather:21", out)
}
