package websearch

import "net/http"

type Option func(*Config)

// WithSearxng uses the SearxNG instance at baseURL instead of DuckDuckGo
func WithSearxng(baseURL string) Option {
	return func(c *Config) {
		c.searxngURL = baseURL
	}
}

func WithSearcher(s Searcher) Option {
	return func(c *Config) {
		c.searcher = s
	}
}

// WithBaseURL overrides the DuckDuckGo endpoint
func WithBaseURL(baseURL string) Option {
	return func(c *Config) {
		c.baseURL = baseURL
	}
}

func WithLanguage(lang string) Option {
	return func(c *Config) {
		c.language = lang
	}
}

func WithMaxResults(n int) Option {
	return func(c *Config) {
		c.maxResults = n
	}
}

func WithHttpClient(clt *http.Client) Option {
	return func(c *Config) {
		c.httpClient = clt
	}
}
