package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ExaProvider queries the Exa (formerly Metaphor) search API.
type ExaProvider struct {
	APIKey string
	Client *http.Client
}

// NewExaProvider constructs an ExaProvider with a bounded HTTP client.
func NewExaProvider(apiKey string) *ExaProvider {
	return &ExaProvider{APIKey: apiKey, Client: &http.Client{Timeout: 10 * time.Second}}
}

func (p *ExaProvider) Name() string { return "exa" }

type exaRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"numResults"`
}

type exaResponse struct {
	Results []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
		Text  string `json:"text"`
	} `json:"results"`
}

func (p *ExaProvider) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	payload, err := json.Marshal(exaRequest{Query: query, NumResults: maxResults})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.exa.ai/search", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-api-key", p.APIKey)
	req.Header.Set("Content-Type", "application/json")

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
		return nil, fmt.Errorf("exa search: http %d: %s", resp.StatusCode, body)
	}

	var decoded exaResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		out = append(out, Result{Title: r.Title, URL: r.URL, Snippet: r.Text})
	}
	return out, nil
}
