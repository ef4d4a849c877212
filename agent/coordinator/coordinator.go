// Package coordinator implements the Search Coordinator Agent: it turns
// planner.ExpandedQuery values into search.Query requests, dispatches them
// through a search.Factory, and deduplicates sources across providers by
// URL before handing results back to the orchestrator.
//
// Dispatch runs over flowpool.Map (one provider's query batch per
// goroutine, bounded parallelism, panic-safe), the same pattern used by
// extract.ExtractBatch.
package coordinator

import (
	"context"
	"log/slog"
	"strings"

	"github.com/samber/lo"

	"github.com/tangerg/deepresearch/agent/planner"
	"github.com/tangerg/deepresearch/flowpool"
	"github.com/tangerg/deepresearch/search"
)

// Options configures a coordination pass.
type Options struct {
	MaxResultsPerQuery int // default 5
	SearchDepth        search.Depth
	IncludeDomains     []string
	ExcludeDomains     []string
	Parallelism        int // default 5
}

func (o Options) withDefaults() Options {
	if o.MaxResultsPerQuery <= 0 {
		o.MaxResultsPerQuery = 5
	}
	if o.SearchDepth == "" {
		o.SearchDepth = search.DepthBasic
	}
	if o.Parallelism <= 0 {
		o.Parallelism = 5
	}
	return o
}

// Outcome is the coordinator's output: every raw provider result (for
// bookkeeping) plus the deduplicated set of sources across all of them.
type Outcome struct {
	Queries []*search.Query
	Raw     []*search.Result
	Sources []search.Source
	Errors  []error
}

// Coordinator dispatches ExpandedQueries through a provider factory.
type Coordinator struct {
	factory *search.Factory
}

// New builds a Coordinator backed by factory.
func New(factory *search.Factory) *Coordinator {
	return &Coordinator{factory: factory}
}

func buildQuery(eq planner.ExpandedQuery, opts Options) *search.Query {
	return &search.Query{
		Text:           eq.Text,
		Type:           eq.SearchType,
		Depth:          opts.SearchDepth,
		MaxResults:     opts.MaxResultsPerQuery,
		IncludeDomains: opts.IncludeDomains,
		ExcludeDomains: opts.ExcludeDomains,
	}
}

type dispatchResult struct {
	query  *search.Query
	result *search.Result
	err    error
}

// Coordinate groups queries by the provider that serves their search type,
// dispatches each group as a batch, and merges + deduplicates the sources
// across all results.
func (c *Coordinator) Coordinate(ctx context.Context, expanded []planner.ExpandedQuery, opts Options) Outcome {
	opts = opts.withDefaults()

	type group struct {
		provider search.Provider
		queries  []*search.Query
	}
	groups := make(map[string]*group)
	var order []string

	for _, eq := range expanded {
		provider, err := c.factory.SelectForType(eq.SearchType)
		if err != nil {
			slog.Warn("coordinator: no provider available for search type", "type", eq.SearchType, "error", err)
			continue
		}
		id := provider.ProviderID()
		g, ok := groups[id]
		if !ok {
			g = &group{provider: provider}
			groups[id] = g
			order = append(order, id)
		}
		g.queries = append(g.queries, buildQuery(eq, opts))
	}

	outcome := Outcome{}

	dispatch := func(_ context.Context, id string) []dispatchResult {
		g := groups[id]
		results, err := g.provider.SearchBatch(ctx, g.queries)
		if err != nil {
			return []dispatchResult{{err: err}}
		}
		out := make([]dispatchResult, len(g.queries))
		for i, q := range g.queries {
			var r *search.Result
			if i < len(results) {
				r = results[i]
			}
			out[i] = dispatchResult{query: q, result: r}
		}
		return out
	}

	batches := flowpool.Map(ctx, order, opts.Parallelism, dispatch)

	var allSources []search.Source
	for _, batch := range batches {
		for _, dr := range batch {
			if dr.err != nil {
				outcome.Errors = append(outcome.Errors, dr.err)
				continue
			}
			outcome.Queries = append(outcome.Queries, dr.query)
			outcome.Raw = append(outcome.Raw, dr.result)
			if dr.result == nil {
				continue
			}
			allSources = append(allSources, dr.result.Sources...)
		}
	}

	allSources = lo.Filter(allSources, func(src search.Source, _ int) bool {
		return normalizeKey(src.URL) != ""
	})
	outcome.Sources = lo.UniqBy(allSources, func(src search.Source) string {
		return normalizeKey(src.URL)
	})

	return outcome
}

func normalizeKey(rawURL string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(rawURL)), "/")
}
