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

// GoogleProvider queries the Google Programmable Search Engine JSON API.
type GoogleProvider struct {
	APIKey         string
	SearchEngineID string
	Client         *http.Client
}

// NewGoogleProvider constructs a GoogleProvider with a bounded HTTP client.
func NewGoogleProvider(apiKey, searchEngineID string) *GoogleProvider {
	return &GoogleProvider{APIKey: apiKey, SearchEngineID: searchEngineID, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (p *GoogleProvider) Name() string { return "google" }

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

func (p *GoogleProvider) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	endpoint := fmt.Sprintf("https://www.googleapis.com/customsearch/v1?key=%s&cx=%s&q=%s&num=%d",
		url.QueryEscape(p.APIKey), url.QueryEscape(p.SearchEngineID), url.QueryEscape(query), clampGoogleNum(maxResults))
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
		return nil, fmt.Errorf("google search: http %d: %s", resp.StatusCode, body)
	}

	var decoded googleResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(decoded.Items))
	for _, r := range decoded.Items {
		out = append(out, Result{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return out, nil
}

// clampGoogleNum enforces the Custom Search API's hard limit of 10 results
// per request.
func clampGoogleNum(n int) int {
	if n > 10 {
		return 10
	}
	if n < 1 {
		return 1
	}
	return n
}
