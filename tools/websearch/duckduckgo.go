package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultDuckDuckGoURL = "https://html.duckduckgo.com"
	DefaultUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// DuckDuckGo scrapes the keyless HTML endpoint of DuckDuckGo
type DuckDuckGo struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

var _ Searcher = (*DuckDuckGo)(nil)

func NewDuckDuckGo(baseURL string, clt *http.Client) *DuckDuckGo {
	if baseURL == "" {
		baseURL = DefaultDuckDuckGoURL
	}
	if clt == nil {
		clt = http.DefaultClient
	}
	return &DuckDuckGo{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  DefaultUserAgent,
		httpClient: clt,
	}
}

func (d *DuckDuckGo) Search(ctx context.Context, query string, category Category) ([]Result, error) {
	values := url.Values{}
	values.Set("q", query)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/html/?%s", d.baseURL, values.Encode()), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("User-Agent", d.userAgent)
	httpResp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error querying duckduckgo: %w", err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("non-200 response from duckduckgo: %d", httpResp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(httpResp.Body)
	if err != nil {
		return nil, err
	}
	var ret []Result
	doc.Find(".result").Each(func(_ int, s *goquery.Selection) {
		link := s.Find("a.result__a").First()
		href, _ := link.Attr("href")
		item := Result{
			URL:      resolveLink(href),
			Title:    strings.TrimSpace(link.Text()),
			Query:    query,
			Category: category,
		}
		if snippet, err := s.Find(".result__snippet").First().Html(); err == nil && snippet != "" {
			if md, err := htmltomarkdown.ConvertString(snippet); err == nil {
				item.Content = strings.TrimSpace(md)
			}
		}
		ret = append(ret, item)
	})
	return ret, nil
}

// resolveLink unwraps DuckDuckGo redirect links of the form //duckduckgo.com/l/?uddg=<target>
func resolveLink(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
