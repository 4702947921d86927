package function

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/thecxx/fcstream"
	"github.com/thecxx/fcstream/constants"
)

const defaultSearchLimit = 5

// Hit is one web search result.
type Hit struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// Searcher retrieves web search hits.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
}

// SearchArgs are the arguments of web_search.
type SearchArgs struct {
	Query string `json:"query" fcstream:"query,desc=搜索查询文本"`
	Limit int    `json:"limit,omitempty" fcstream:"limit,desc=返回结果数量上限"`
}

type webSearch struct {
	searcher Searcher
}

// WebSearch returns the web_search handler backed by s.
func WebSearch(s Searcher) Handler {
	return &webSearch{searcher: s}
}

// Declaration implements Declarer.
func (w *webSearch) Declaration() fcstream.Tool {
	return fcstream.DefineFunction(constants.FunctionWebSearch,
		"搜索互联网获取最新信息。当用户的问题涉及实时信息、最新事件或需要外部资料时使用。",
		fcstream.WithParametersOf(SearchArgs{}))
}

// Call implements Handler. The result is {"query": q, "results": [hits...]}.
func (w *webSearch) Call(ctx context.Context, args json.RawMessage, _ Env) (Result, error) {
	var in SearchArgs
	_ = json.Unmarshal(args, &in)
	in.Query = strings.TrimSpace(in.Query)
	if in.Query == "" {
		return nil, ErrMissingQuery
	}
	if in.Limit <= 0 {
		in.Limit = defaultSearchLimit
	}

	hits, err := w.searcher.Search(ctx, in.Query, in.Limit)
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []Hit{}
	}
	return NewResult(struct {
		Query   string `json:"query"`
		Results []Hit  `json:"results"`
	}{in.Query, hits})
}

// SearXNG queries a SearXNG-compatible JSON search endpoint.
type SearXNG struct {
	BaseURL string
	Client  *http.Client
}

type searxResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search implements Searcher.
func (s *SearXNG) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if s.BaseURL == "" {
		return nil, fmt.Errorf("search endpoint not configured")
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(s.BaseURL, "/")+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: unexpected status %d", resp.StatusCode)
	}

	var out searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("search: decode: %w", err)
	}

	hits := make([]Hit, 0, min(limit, len(out.Results)))
	for _, r := range out.Results {
		if len(hits) == limit {
			break
		}
		hits = append(hits, Hit{
			Title:   plainText(r.Title),
			Snippet: plainText(r.Content),
			Link:    r.URL,
		})
	}
	return hits, nil
}

// plainText converts an HTML fragment to markdown text, falling back to the
// input when conversion fails.
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	md, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(md)
}
