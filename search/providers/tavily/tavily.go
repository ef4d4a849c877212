// Package tavily implements search.Provider against the Tavily-style
// JSON search API: POST a query, get back an optional answer plus scored
// sources. Request/response shapes mirror the real Tavily API contract
// (search_depth basic/advanced, include_answer, include_raw_content,
// include/exclude_domains).
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tangerg/deepresearch/flowpool"
	"github.com/tangerg/deepresearch/resilience"
	"github.com/tangerg/deepresearch/search"
)

const (
	ProviderID  = "tavily"
	searchURL   = "https://api.tavily.com/search"
	defaultMaxResults = 5
)

// Provider implements search.Provider against the Tavily search API.
type Provider struct {
	apiKey      string
	client      *resilience.Client
	maxParallel int
	baseURL     string
}

// Config configures a new Provider.
type Config struct {
	APIKey      string
	Client      *resilience.Client
	MaxParallel int // SearchBatch concurrency, default 5
	// BaseURL overrides the Tavily search endpoint, mainly for tests.
	BaseURL string
}

// New builds a tavily Provider. Returns an auth error immediately if
// apiKey is empty: the provider must fail fast when its key is missing,
// before any search is attempted.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, &search.Error{Provider: ProviderID, Type: search.ErrorAuth,
			Err: fmt.Errorf("tavily: API key is required")}
	}
	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 5
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = searchURL
	}
	return &Provider{apiKey: cfg.APIKey, client: cfg.Client, maxParallel: maxParallel, baseURL: baseURL}, nil
}

func (p *Provider) ProviderID() string { return ProviderID }

func (p *Provider) Capabilities() search.Capability {
	return search.CapabilityWebSearch | search.CapabilityNewsSearch | search.CapabilitySemanticSearch
}

type apiRequest struct {
	Query             string   `json:"query"`
	SearchDepth       string   `json:"search_depth"`
	IncludeAnswer     bool     `json:"include_answer"`
	IncludeRawContent bool     `json:"include_raw_content"`
	MaxResults        int      `json:"max_results"`
	IncludeDomains    []string `json:"include_domains,omitempty"`
	ExcludeDomains    []string `json:"exclude_domains,omitempty"`
}

type apiResult struct {
	URL           string  `json:"url"`
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	RawContent    string  `json:"raw_content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date"`
}

type apiResponse struct {
	Query        string      `json:"query"`
	Answer       string      `json:"answer"`
	Results      []apiResult `json:"results"`
	ResponseTime float64     `json:"response_time"`
}

func mapDepth(d search.Depth) string {
	if d == search.DepthDeep {
		return "advanced"
	}
	return "basic"
}

// Search issues a single POST request for query.
func (p *Provider) Search(ctx context.Context, query *search.Query) (*search.Result, error) {
	maxResults := query.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	body := apiRequest{
		Query:             query.Text,
		SearchDepth:       mapDepth(query.Depth),
		IncludeAnswer:     true,
		IncludeRawContent: query.IncludeRawContent,
		MaxResults:        maxResults,
		IncludeDomains:    query.IncludeDomains,
		ExcludeDomains:    query.ExcludeDomains,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &search.Error{Provider: ProviderID, Type: search.ErrorParse, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, &search.Error{Provider: ProviderID, Type: search.ErrorNetwork, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		if err == resilience.ErrCircuitOpen {
			return nil, &search.Error{Provider: ProviderID, Type: search.ErrorCircuitOpen, Err: err}
		}
		return nil, &search.Error{Provider: ProviderID, Type: search.ErrorNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &search.Error{Provider: ProviderID, Type: search.ErrorAuth,
			Err: fmt.Errorf("tavily: status %d", resp.StatusCode)}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &search.Error{Provider: ProviderID, Type: search.ErrorRateLimited,
			Err: fmt.Errorf("tavily: status %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &search.Error{Provider: ProviderID, Type: search.ErrorNetwork, Err: err}
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &search.Error{Provider: ProviderID, Type: search.ErrorParse,
			Err: fmt.Errorf("tavily: decode response: %w", err)}
	}

	result := &search.Result{
		Query:     query,
		Provider:  ProviderID,
		Answer:    parsed.Answer,
		Timestamp: time.Now(),
	}
	for _, r := range parsed.Results {
		if len(result.Sources) >= maxResults {
			break
		}
		result.Sources = append(result.Sources, search.Source{
			URL:        r.URL,
			Title:      r.Title,
			Snippet:    r.Content,
			RawContent: r.RawContent,
			Score:      r.Score,
			PublishedDate: parsePublishedDate(r.PublishedDate),
		})
	}
	return result, nil
}

func parsePublishedDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// SearchBatch runs queries concurrently, bounded by maxParallel. A
// per-query failure is caught and replaced with an empty result; the
// batch itself only fails if every query fails, in which case the first
// query error is returned (whatever its type) alongside the empty results.
func (p *Provider) SearchBatch(ctx context.Context, queries []*search.Query) ([]*search.Result, error) {
	results, errs := flowpool.MapErr(ctx, queries, p.maxParallel, func(ctx context.Context, q *search.Query) (*search.Result, error) {
		return p.Search(ctx, q)
	})

	out := make([]*search.Result, len(results))
	successes := 0
	var firstErr error
	for i, r := range results {
		if errs[i] != nil {
			if firstErr == nil {
				firstErr = errs[i]
			}
			out[i] = &search.Result{Query: queries[i], Provider: ProviderID, Timestamp: time.Now()}
			continue
		}
		successes++
		out[i] = r
	}
	// The batch itself only fails when every query failed; a single
	// success degrades the rest to empty results instead.
	if successes == 0 && len(queries) > 0 {
		return out, firstErr
	}
	return out, nil
}

var _ search.Provider = (*Provider)(nil)
