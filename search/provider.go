package search

import "context"

// Provider is the uniform interface every search backend implements,
// whether it's a JSON HTTP API (Tavily-style) or a scraped HTML engine
// (DuckDuckGo-style). SearchBatch's concurrency policy is owned entirely
// by the implementation: a JSON-API provider parallelizes it, a
// bot-protection-sensitive scraper sequentializes it with jittered
// delays. Callers must not assume either.
type Provider interface {
	ProviderID() string
	Capabilities() Capability
	Search(ctx context.Context, query *Query) (*Result, error)
	SearchBatch(ctx context.Context, queries []*Query) ([]*Result, error)
}
