package websearch

import (
	"encoding/json"
	"strings"
)

type Category = string

const (
	EmptyCategory       Category = ""
	GeneralCategory     Category = "general"
	NewsCategory        Category = "news"
	SocialMediaCategory Category = "social_media"
)

// Result a single search result item
type Result struct {
	// URL The URL of the search result
	URL string `json:"url" jsonschema:"title=url,description=The URL of the search result"`
	// Title The title of the search result
	Title string `json:"title" jsonschema:"title=title,description=The title of the search result"`
	// Content The content snippet of the search result, in markdown
	Content string `json:"content,omitempty" jsonschema:"title=content,description=The content snippet of the search result"`
	// Query The query used to obtain this search result
	Query string `json:"query,omitempty" jsonschema:"title=query,description=The query used to obtain this search result"`
	// Category of the search result
	Category Category `json:"category,omitempty" jsonschema:"title=category,description=Category of the search result"`
}

func (r Result) String() string {
	bs, _ := json.Marshal(r)
	return string(bs)
}

// complete reports whether the result carries everything the model needs
func (r Result) complete() bool {
	return strings.TrimSpace(r.URL) != "" && strings.TrimSpace(r.Title) != "" && strings.TrimSpace(r.Content) != ""
}
