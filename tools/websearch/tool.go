// Package websearch searches the web for information, news and references.
package websearch

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bububa/wowagent/tools"
)

// Searcher runs one query against a search backend
type Searcher interface {
	Search(ctx context.Context, query string, category Category) ([]Result, error)
}

// Input for searching information, news, references and other content.
// Returns a list of results with a short markdown snippet and URLs for further exploration.
type Input struct {
	// Queries list of search queries.
	Queries []string `json:"queries" jsonschema:"title=queries,description=List of search queries." validate:"required,min=1"`
	// Category of the search queries.
	Category Category `json:"category,omitempty" jsonschema:"title=category,enum=general,enum=news,enum=social_media,default=general,description=Category of the search queries."`
}

func NewInput(category Category, queries []string) *Input {
	return &Input{
		Queries:  queries,
		Category: category,
	}
}

// Output the results of every query, deduplicated by URL
type Output struct {
	Results  []Result `json:"results" jsonschema:"title=results,description=List of search result items"`
	Category Category `json:"category,omitempty" jsonschema:"title=category,description=Category of the search results."`
}

func (o Output) String() string {
	bs, _ := json.Marshal(o)
	return string(bs)
}

type Config struct {
	tools.Config
	searcher   Searcher
	baseURL    string
	searxngURL string
	language   string
	maxResults int
	httpClient *http.Client
}

// WebSearch is a tool for searching the web with the configured backend
type WebSearch struct {
	Config
}

// New returns a DuckDuckGo backed search unless another searcher is configured
func New(opts ...Option) *WebSearch {
	ret := new(WebSearch)
	for _, opt := range opts {
		opt(&ret.Config)
	}
	if ret.Title() == "" {
		ret.SetTitle("web_search")
	}
	if ret.Description() == "" {
		ret.SetDescription("Searches the web and returns result titles, URLs and snippets.")
	}
	if ret.maxResults == 0 {
		ret.maxResults = 10
	}
	switch {
	case ret.searcher != nil:
	case ret.searxngURL != "":
		ret.searcher = NewSearxng(ret.searxngURL, ret.language, ret.httpClient)
	default:
		ret.searcher = NewDuckDuckGo(ret.baseURL, ret.httpClient)
	}
	return ret
}

// Run searches every query and keeps complete results up to the maximum
func (t *WebSearch) Run(ctx context.Context, input *Input) (*Output, error) {
	category := input.Category
	if category == EmptyCategory {
		category = GeneralCategory
	}
	var (
		results []Result
		seen    = make(map[string]struct{})
	)
	for _, query := range input.Queries {
		list, err := t.searcher.Search(ctx, query, category)
		if err != nil {
			return nil, err
		}
		for _, item := range list {
			if !item.complete() {
				continue
			}
			if _, found := seen[item.URL]; found {
				continue
			}
			seen[item.URL] = struct{}{}
			if item.Query == "" {
				item.Query = query
			}
			results = append(results, item)
		}
	}
	if len(results) > t.maxResults {
		results = results[:t.maxResults]
	}
	return &Output{Results: results, Category: category}, nil
}

// Tool exposes the search to a tool agent
func (t *WebSearch) Tool() tools.Tool {
	return tools.NewFunc(t.Title(), t.Run, tools.WithDescription(t.Description()))
}
