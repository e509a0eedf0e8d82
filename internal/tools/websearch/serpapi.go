package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// SerpAPIProvider queries SerpApi's Google-results-as-JSON proxy.
type SerpAPIProvider struct {
	APIKey string
	Client *http.Client
}

// NewSerpAPIProvider constructs a SerpAPIProvider with a bounded HTTP client.
func NewSerpAPIProvider(apiKey string) *SerpAPIProvider {
	return &SerpAPIProvider{APIKey: apiKey, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (p *SerpAPIProvider) Name() string { return "serpapi" }

type serpAPIResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

func (p *SerpAPIProvider) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	endpoint := fmt.Sprintf("https://serpapi.com/search.json?engine=google&q=%s&num=%d&api_key=%s",
		url.QueryEscape(query), maxResults, url.QueryEscape(p.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("serpapi search: http %d: %s", resp.StatusCode, body)
	}

	var decoded serpAPIResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(decoded.OrganicResults))
	for _, r := range decoded.OrganicResults {
		out = append(out, Result{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return out, nil
}
