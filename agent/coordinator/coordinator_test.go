package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangerg/deepresearch/agent/planner"
	"github.com/tangerg/deepresearch/search"
)

type stubProvider struct {
	id      string
	caps    search.Capability
	results []*search.Result
	err     error
}

func (p *stubProvider) ProviderID() string              { return p.id }
func (p *stubProvider) Capabilities() search.Capability { return p.caps }
func (p *stubProvider) Search(ctx context.Context, q *search.Query) (*search.Result, error) {
	return nil, errors.New("unused in these tests")
}
func (p *stubProvider) SearchBatch(ctx context.Context, qs []*search.Query) ([]*search.Result, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.results, nil
}

func factoryWith(providers ...search.Provider) *search.Factory {
	f, err := search.NewFactory(providers[0].ProviderID(), providers...)
	if err != nil {
		panic(err)
	}
	return f
}

// TestCoordinate_MergesAndDedupsSources tests that sources returned
// across multiple queries are merged and deduplicated by normalized URL.
func TestCoordinate_MergesAndDedupsSources(t *testing.T) {
	result := &search.Result{
		Sources: []search.Source{
			{URL: "https://example.com/a", Title: "A"},
			{URL: "https://example.com/a/", Title: "A duplicate with trailing slash"},
			{URL: "https://example.com/b", Title: "B"},
		},
	}
	provider := &stubProvider{id: "tavily", caps: search.CapabilityWebSearch, results: []*search.Result{result}}
	c := New(factoryWith(provider))

	outcome := c.Coordinate(context.Background(), []planner.ExpandedQuery{
		{Text: "golang", SearchType: search.TypeWeb},
	}, Options{})

	require.Len(t, outcome.Sources, 2)
	urls := []string{outcome.Sources[0].URL, outcome.Sources[1].URL}
	assert.Contains(t, urls, "https://example.com/a")
	assert.Contains(t, urls, "https://example.com/b")
}

// TestCoordinate_DropsSourcesWithEmptyURL tests that a source with a
// blank URL is filtered out rather than colliding under the empty key.
func TestCoordinate_DropsSourcesWithEmptyURL(t *testing.T) {
	result := &search.Result{
		Sources: []search.Source{
			{URL: "", Title: "no url"},
			{URL: "https://example.com/c", Title: "C"},
		},
	}
	provider := &stubProvider{id: "tavily", caps: search.CapabilityWebSearch, results: []*search.Result{result}}
	c := New(factoryWith(provider))

	outcome := c.Coordinate(context.Background(), []planner.ExpandedQuery{
		{Text: "golang", SearchType: search.TypeWeb},
	}, Options{})

	require.Len(t, outcome.Sources, 1)
	assert.Equal(t, "https://example.com/c", outcome.Sources[0].URL)
}

// TestCoordinate_RecordsProviderErrors tests that a provider-level
// failure is captured in Outcome.Errors without aborting the whole
// coordination pass.
func TestCoordinate_RecordsProviderErrors(t *testing.T) {
	failing := &stubProvider{id: "tavily", caps: search.CapabilityWebSearch, err: errors.New("provider down")}
	c := New(factoryWith(failing))

	outcome := c.Coordinate(context.Background(), []planner.ExpandedQuery{
		{Text: "golang", SearchType: search.TypeWeb},
	}, Options{})

	require.Len(t, outcome.Errors, 1)
	assert.Empty(t, outcome.Sources)
}

// TestCoordinate_GroupsQueriesByProvider tests that queries requiring
// different search types are routed to, and batched per, their
// respective capable providers.
func TestCoordinate_GroupsQueriesByProvider(t *testing.T) {
	webProvider := &stubProvider{
		id: "tavily", caps: search.CapabilityWebSearch,
		results: []*search.Result{{Sources: []search.Source{{URL: "https://web.example.com"}}}},
	}
	newsProvider := &stubProvider{
		id: "duckduckgo", caps: search.CapabilityNewsSearch,
		results: []*search.Result{{Sources: []search.Source{{URL: "https://news.example.com"}}}},
	}
	c := New(factoryWith(webProvider, newsProvider))

	outcome := c.Coordinate(context.Background(), []planner.ExpandedQuery{
		{Text: "web query", SearchType: search.TypeWeb},
		{Text: "news query", SearchType: search.TypeNews},
	}, Options{})

	require.Len(t, outcome.Sources, 2)
	assert.Len(t, outcome.Queries, 2)
}

// TestBuildQuery_CarriesOptionsThrough tests that coordinator options
// (depth, domain filters, per-query result cap) are applied to every
// constructed search.Query.
func TestBuildQuery_CarriesOptionsThrough(t *testing.T) {
	opts := Options{MaxResultsPerQuery: 3, SearchDepth: search.DepthDeep, IncludeDomains: []string{"go.dev"}}.withDefaults()
	q := buildQuery(planner.ExpandedQuery{Text: "generics", SearchType: search.TypeAcademic}, opts)

	assert.Equal(t, "generics", q.Text)
	assert.Equal(t, search.TypeAcademic, q.Type)
	assert.Equal(t, search.DepthDeep, q.Depth)
	assert.Equal(t, 3, q.MaxResults)
	assert.Equal(t, []string{"go.dev"}, q.IncludeDomains)
}
