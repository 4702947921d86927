package orchestrator

import (
	"fmt"

	"github.com/thecxx/fcstream/constants"
)

const (
	// DefaultQueryPrompt asks the model to turn the user's question into a search query.
	DefaultQueryPrompt = "基于用户的问题: '%s'，生成一个简洁明确的搜索查询。只返回查询文本，不要有任何其他说明。"

	titlePrompt = "请为以下对话内容生成一个简短的标题（不超过15个字），只返回标题本身，不要有任何解释：\n\n%s"

	suggestionsPrompt = "根据以下对话，推荐3个用户可能会继续提问的问题。每行一个问题，使用数字编号，不要有其他说明：\n\n%s"
)

// Status strings carried by progress events.
const (
	statusGeneratingQuery    = "正在优化搜索查询..."
	statusGeneratingResponse = "正在生成最终回答..."
	statusProcessing         = "processing"
)

func callDescription(name string) string {
	return "需要调用函数: " + name
}

func executingStatus(name string) string {
	return fmt.Sprintf("正在执行函数 %s...", name)
}

func queryStatus(query string) string {
	return "搜索查询: " + query
}

// statusLine is the persisted text of the intent-to-call message.
func statusLine(name string) string {
	switch name {
	case constants.FunctionWebSearch:
		return "我需要搜索网络获取更多信息..."
	case constants.FunctionHotTopics:
		return "我将查询最新的热点话题..."
	}
	return fmt.Sprintf("我需要调用 %s 函数获取信息...", name)
}

var (
	emptyDialogQuestions = []string{
		"有什么我可以帮您解答的问题吗？",
		"您想了解更多哪方面的信息？",
		"还有其他我能帮助您的事情吗？",
	}
	fallbackQuestions = []string{
		"您对这个主题还有其他问题吗？",
		"您想了解更多相关信息吗？",
		"您想要探讨这个话题的哪些方面？",
	}
)
