// Package extract fetches a URL and reduces it to clean text plus
// metadata, or records why it couldn't. HTML parsing goes through
// golang.org/x/net/html rather than hand-rolled regex.
package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/tangerg/deepresearch/flowpool"
	"github.com/tangerg/deepresearch/pkg/safe"
	"github.com/tangerg/deepresearch/resilience"
)

// FailureKind classifies why a single URL could not be extracted.
type FailureKind string

const (
	FailureNetwork     FailureKind = "network_error"
	FailureTimeout     FailureKind = "timeout"
	FailureAccessDenied FailureKind = "access_denied"
	FailureNoContent   FailureKind = "no_content"
	FailureParse       FailureKind = "parse_error"
	FailureUnsupported FailureKind = "unsupported_content_type"
	FailureUnknown     FailureKind = "unknown"
)

// Failure records one failed extraction within a batch.
type Failure struct {
	URL     string
	Kind    FailureKind
	Message string
}

// Document is the cleaned result of a successful extraction.
type Document struct {
	URL             string
	CanonicalURL    string
	Title           string
	Text            string
	Author          string
	PublishedDate   *time.Time
	Links           []string
	Images          []string
	ExtractedAt     time.Time
	Truncated       bool
}

// Options controls a single extraction or a batch of them.
type Options struct {
	MaxContentLength   int // default 50_000
	Timeout            time.Duration
	ExtractLinks       bool
	ExtractImages      bool
	ExtractAuthorDate  bool
	Parallelism        int // batch only, default 10
}

func (o Options) withDefaults() Options {
	if o.MaxContentLength <= 0 {
		o.MaxContentLength = 50_000
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.Parallelism <= 0 {
		o.Parallelism = 10
	}
	return o
}

// Extractor fetches and cleans URLs.
type Extractor struct {
	client *resilience.Client
}

// New builds an Extractor using client for outbound fetches.
func New(client *resilience.Client) *Extractor {
	return &Extractor{client: client}
}

// CanonicalizeURL lowercases the host, strips the fragment, and retains
// the query string with its parameters sorted by key — enough to
// deduplicate the same page reached through trivially different
// spellings.
func CanonicalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.RawQuery != "" {
		values := u.Query()
		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sorted := url.Values{}
		for _, k := range keys {
			sorted[k] = values[k]
		}
		u.RawQuery = sorted.Encode()
	}
	return u.String(), nil
}

// Extract fetches a single URL and returns a cleaned Document.
func (e *Extractor) Extract(ctx context.Context, rawURL string, opts Options) (*Document, error) {
	opts = opts.withDefaults()

	canonical, err := CanonicalizeURL(rawURL)
	if err != nil {
		return nil, &extractionError{FailureParse, err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &extractionError{FailureUnknown, err.Error()}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; DeepResearchBot/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &extractionError{FailureTimeout, err.Error()}
		}
		return nil, &extractionError{FailureNetwork, err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return nil, &extractionError{FailureAccessDenied, fmt.Sprintf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return nil, &extractionError{FailureNetwork, fmt.Sprintf("status %d", resp.StatusCode)}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isHTMLContentType(contentType) {
		return nil, &extractionError{FailureUnsupported, contentType}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, &extractionError{FailureNetwork, err.Error()}
	}

	doc, err := parseHTML(body, opts)
	if err != nil {
		return nil, &extractionError{FailureParse, err.Error()}
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, &extractionError{FailureNoContent, "no text content after cleaning"}
	}

	doc.URL = rawURL
	doc.CanonicalURL = canonical
	doc.ExtractedAt = time.Now()
	return doc, nil
}

type extractionError struct {
	kind FailureKind
	msg  string
}

func (e *extractionError) Error() string { return fmt.Sprintf("extract: %s: %s", e.kind, e.msg) }

func isHTMLContentType(ct string) bool {
	if ct == "" {
		return true // best-effort: assume HTML when unspecified
	}
	lower := strings.ToLower(ct)
	return strings.Contains(lower, "text/html") || strings.Contains(lower, "application/xhtml")
}

// BatchResult is the outcome of extracting a set of URLs.
type BatchResult struct {
	Documents []*Document
	Failures  []Failure
}

// ExtractBatch fetches every URL in urls with bounded parallelism,
// deduplicating canonically-equal URLs before fetching so the same page
// is fetched at most once per batch. It always returns both the
// successes and the failure list; a failed subset never aborts the rest.
func (e *Extractor) ExtractBatch(ctx context.Context, urls []string, opts Options) *BatchResult {
	opts = opts.withDefaults()

	seen := make(map[string]bool, len(urls))
	unique := make([]string, 0, len(urls))
	for _, u := range urls {
		canon, err := CanonicalizeURL(u)
		if err != nil {
			canon = u
		}
		if seen[canon] {
			continue
		}
		seen[canon] = true
		unique = append(unique, u)
	}

	type outcome struct {
		doc *Document
		fail *Failure
	}

	outcomes := flowpool.Map(ctx, unique, opts.Parallelism, func(ctx context.Context, u string) outcome {
		var result outcome
		safe.WithRecover(func() {
			doc, err := e.Extract(ctx, u, opts)
			if err != nil {
				kind := FailureUnknown
				msg := err.Error()
				if ee, ok := err.(*extractionError); ok {
					kind = ee.kind
					msg = ee.msg
				}
				result.fail = &Failure{URL: u, Kind: kind, Message: msg}
				return
			}
			result.doc = doc
		}, func(panicErr error) {
			result.fail = &Failure{URL: u, Kind: FailureUnknown, Message: panicErr.Error()}
		})()
		return result
	})

	batch := &BatchResult{}
	for _, o := range outcomes {
		if o.fail != nil {
			batch.Failures = append(batch.Failures, *o.fail)
		} else if o.doc != nil {
			batch.Documents = append(batch.Documents, o.doc)
		}
	}
	return batch
}
