// Package render turns function results into user-facing text.
package render

import (
	"fmt"
	"strings"
	"sync"

	"github.com/thecxx/fcstream"
	"github.com/thecxx/fcstream/constants"
	"github.com/thecxx/fcstream/function"
)

// Renderer produces the final answer text for one function without a
// second model call.
type Renderer interface {
	Render(inv fcstream.Invocation, res function.Result) (string, error)
}

// RendererFunc adapts an ordinary function to Renderer.
type RendererFunc func(inv fcstream.Invocation, res function.Result) (string, error)

// Render implements Renderer.
func (f RendererFunc) Render(inv fcstream.Invocation, res function.Result) (string, error) {
	return f(inv, res)
}

// MismatchError reports a result that lacks the shape its renderer expects.
// Message is safe to show to the user.
type MismatchError struct {
	Function string
	Message  string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("render %s: %s", e.Function, e.Message)
}

// Formatter maps function names to specialized renderers.
type Formatter struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
}

// NewFormatter returns an empty Formatter.
func NewFormatter() *Formatter {
	return &Formatter{renderers: make(map[string]Renderer)}
}

// Default returns a Formatter with the web_search and hot_topics renderers.
func Default() *Formatter {
	f := NewFormatter()
	f.Register(constants.FunctionWebSearch, RendererFunc(Search))
	f.Register(constants.FunctionHotTopics, RendererFunc(Topics))
	return f
}

// Register sets the renderer for name.
func (f *Formatter) Register(name string, r Renderer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renderers[name] = r
}

// Resolve returns the specialized renderer for name, or nil when the
// default strategy (a second generation over the raw result) applies.
func (f *Formatter) Resolve(name string) Renderer {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.renderers[name]
}

// Search renders a web_search result.
func Search(_ fcstream.Invocation, res function.Result) (string, error) {
	results := res.Get("results")
	if !results.Exists() {
		return "", &MismatchError{Function: constants.FunctionWebSearch, Message: "搜索结果格式不正确"}
	}

	query := res.Get("query").String()
	hits := results.Array()
	if len(hits) == 0 {
		return fmt.Sprintf("未找到关于%s的搜索结果。", query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "以下是关于%s的搜索结果：\n\n", query)
	for i, hit := range hits {
		fmt.Fprintf(&b, "%d. %s\n", i+1, hit.Get("title").String())
		fmt.Fprintf(&b, "   %s\n", hit.Get("snippet").String())
		fmt.Fprintf(&b, "   来源: %s\n\n", hit.Get("link").String())
	}
	return b.String(), nil
}

// Topics renders a hot_topics result.
func Topics(_ fcstream.Invocation, res function.Result) (string, error) {
	topics := res.Get("topics")
	if !topics.Exists() {
		return "", &MismatchError{Function: constants.FunctionHotTopics, Message: "热点话题结果格式不正确"}
	}

	items := topics.Array()
	if len(items) == 0 {
		return "当前没有热点话题信息。", nil
	}

	var b strings.Builder
	b.WriteString("以下是最新热点话题：\n\n")
	for i, topic := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, topic.Get("title").String())
		fmt.Fprintf(&b, "   %s\n", topic.Get("description").String())
		fmt.Fprintf(&b, "   来源: %s, 类别: %s\n\n", topic.Get("source").String(), topic.Get("category").String())
	}
	return b.String(), nil
}
