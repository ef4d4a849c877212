// Package duckduckgo implements search.Provider against DuckDuckGo's
// HTML-scraping endpoint (html.duckduckgo.com) with full bot-protection
// awareness: a 202 response is a bot-protection signal retried with
// jitter, and SearchBatch sequentializes with jittered inter-query
// delays — parallel requests here trip the same protection.
package duckduckgo

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/tangerg/deepresearch/resilience"
	"github.com/tangerg/deepresearch/search"
)

const (
	ProviderID  = "duckduckgo"
	endpoint    = "https://html.duckduckgo.com/html/"
	maxAttempts = 3
)

// Provider implements search.Provider by scraping DuckDuckGo's HTML
// results page. It has no API key and no structured JSON contract —
// everything is parsed out of rendered HTML.
type Provider struct {
	httpClient *http.Client
	region     string
	endpoint   string
}

// Config configures a new Provider.
type Config struct {
	// Region is DuckDuckGo's "kl" region parameter, e.g. "us-en". Empty
	// uses DuckDuckGo's own default.
	Region string
	// HTTPClient overrides the default client (mainly for tests).
	HTTPClient *http.Client
	// Endpoint overrides the results-page URL, mainly for tests.
	Endpoint string
}

// New builds a duckduckgo Provider.
func New(cfg Config) *Provider {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	ep := cfg.Endpoint
	if ep == "" {
		ep = endpoint
	}
	return &Provider{httpClient: client, region: cfg.Region, endpoint: ep}
}

func (p *Provider) ProviderID() string { return ProviderID }

func (p *Provider) Capabilities() search.Capability {
	return search.CapabilityWebSearch
}

func (p *Provider) setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
}

// Search posts query to DuckDuckGo's HTML endpoint, retrying on bot
// protection (HTTP 202, or a 200 with zero parsed results) up to
// maxAttempts times with a jittered delay. If every attempt is rejected,
// an empty Result is returned: bot protection is not an error, just an
// empty outcome.
func (p *Provider) Search(ctx context.Context, query *search.Query) (*search.Result, error) {
	var sources []Source
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := 2*time.Second + resilience.Jitter(500*time.Millisecond, 1500*time.Millisecond)
			select {
			case <-ctx.Done():
				return emptyResult(query), ctx.Err()
			case <-time.After(delay):
			}
		}

		status, body, err := p.post(ctx, query.Text)
		if err != nil {
			return emptyResult(query), nil
		}
		if status == http.StatusAccepted {
			continue // bot-protection challenge; retry
		}
		sources = parseResults(body)
		if len(sources) > 0 {
			break
		}
		// 200 with zero results is also treated as a bot-protection
		// signal worth one more attempt.
	}

	maxResults := query.MaxResults
	if maxResults > 0 && len(sources) > maxResults {
		sources = sources[:maxResults]
	}

	result := emptyResult(query)
	for _, s := range sources {
		result.Sources = append(result.Sources, search.Source{
			URL:     s.URL,
			Title:   s.Title,
			Snippet: s.Snippet,
		})
	}
	return result, nil
}

func emptyResult(query *search.Query) *search.Result {
	return &search.Result{Query: query, Provider: ProviderID, Timestamp: time.Now()}
}

func (p *Provider) post(ctx context.Context, query string) (int, string, error) {
	form := url.Values{}
	form.Set("q", query)
	if p.region != "" {
		form.Set("kl", p.region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	p.setBrowserHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(raw), nil
}

// Source is a single parsed DuckDuckGo HTML result.
type Source struct {
	URL     string
	Title   string
	Snippet string
}

var (
	// primaryResultPattern targets DuckDuckGo's explicit result markup.
	primaryResultPattern = regexp.MustCompile(`(?s)<div class="result results_links[^"]*"[^>]*>.*?<a[^>]*class="result__a"[^>]*href="([^"]+)"[^>]*>(.*?)</a>.*?<a[^>]*class="result__snippet"[^>]*>(.*?)</a>`)
	// fallbackAnchorPattern is a looser match for any result-class anchor
	// with an absolute http(s) URL, used when the primary pattern finds
	// nothing (DuckDuckGo varies its markup across rollouts).
	fallbackAnchorPattern = regexp.MustCompile(`(?s)<a[^>]*class="[^"]*result[^"]*"[^>]*href="(https?://[^"]+)"[^>]*>(.*?)</a>`)
	tagStripPattern       = regexp.MustCompile(`<[^>]+>`)
)

func parseResults(html string) []Source {
	sources := parsePrimary(html)
	if len(sources) == 0 {
		sources = parseFallback(html)
	}
	return sources
}

func parsePrimary(html string) []Source {
	matches := primaryResultPattern.FindAllStringSubmatch(html, -1)
	sources := make([]Source, 0, len(matches))
	for _, m := range matches {
		sources = append(sources, Source{
			URL:     unwrapRedirect(m[1]),
			Title:   cleanText(m[2]),
			Snippet: cleanText(m[3]),
		})
	}
	return sources
}

func parseFallback(html string) []Source {
	matches := fallbackAnchorPattern.FindAllStringSubmatch(html, -1)
	sources := make([]Source, 0, len(matches))
	for _, m := range matches {
		u := unwrapRedirect(m[1])
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			continue
		}
		sources = append(sources, Source{URL: u, Title: cleanText(m[2])})
	}
	return sources
}

func cleanText(s string) string {
	return strings.TrimSpace(tagStripPattern.ReplaceAllString(s, ""))
}

// unwrapRedirect extracts the "uddg" query parameter DuckDuckGo wraps
// outbound links in (e.g. "//duckduckgo.com/l/?uddg=<encoded-url>&..."),
// falling back to the raw link if it isn't a redirect wrapper.
func unwrapRedirect(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if target := u.Query().Get("uddg"); target != "" {
		if decoded, err := url.QueryUnescape(target); err == nil {
			return decoded
		}
		return target
	}
	return raw
}

// SearchBatch runs queries sequentially with a jittered 1.5-2.5s delay
// between each — parallel requests to this endpoint trip bot protection.
// This asymmetric batch policy (vs. the JSON-API provider's parallel
// batch) is intentionally opaque to callers of search.Provider.
func (p *Provider) SearchBatch(ctx context.Context, queries []*search.Query) ([]*search.Result, error) {
	results := make([]*search.Result, len(queries))
	for i, q := range queries {
		if i > 0 {
			delay := resilience.Jitter(1500*time.Millisecond, 2500*time.Millisecond)
			select {
			case <-ctx.Done():
				results[i] = emptyResult(q)
				continue
			case <-time.After(delay):
			}
		}
		r, err := p.Search(ctx, q)
		if err != nil {
			r = emptyResult(q)
		}
		results[i] = r
	}
	return results, nil
}

var _ search.Provider = (*Provider)(nil)
