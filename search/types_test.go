package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestCapability_Has tests the bit-flag membership check across a
// combined mask.
func TestCapability_Has(t *testing.T) {
	mask := CapabilityWebSearch | CapabilityNewsSearch
	assert.True(t, mask.Has(CapabilityWebSearch))
	assert.True(t, mask.Has(CapabilityNewsSearch))
	assert.False(t, mask.Has(CapabilityAcademicSearch))
}

// TestSearchType_RequiredCapability tests that each search type maps to
// its expected capability, defaulting to web search.
func TestSearchType_RequiredCapability(t *testing.T) {
	assert.Equal(t, CapabilityNewsSearch, TypeNews.RequiredCapability())
	assert.Equal(t, CapabilityAcademicSearch, TypeAcademic.RequiredCapability())
	assert.Equal(t, CapabilityWebSearch, TypeWeb.RequiredCapability())
	assert.Equal(t, CapabilityWebSearch, SearchType("unknown").RequiredCapability())
}

// TestQuery_Clone tests that Clone deep-copies slice fields so mutating
// the clone's domain lists doesn't affect the original.
func TestQuery_Clone(t *testing.T) {
	q := &Query{
		Text:           "golang concurrency",
		IncludeDomains: []string{"go.dev"},
		ExcludeDomains: []string{"spam.example"},
	}
	clone := q.Clone()
	clone.IncludeDomains[0] = "mutated"

	assert.Equal(t, "go.dev", q.IncludeDomains[0])
	assert.Equal(t, "mutated", clone.IncludeDomains[0])
	assert.Equal(t, q.Text, clone.Text)
}

// TestQuery_CloneNil tests that cloning a nil Query returns nil rather
// than panicking.
func TestQuery_CloneNil(t *testing.T) {
	var q *Query
	assert.Nil(t, q.Clone())
}

// TestResult_HasSources tests the nil-safe, empty-safe source check used
// by the cache's admission policy.
func TestResult_HasSources(t *testing.T) {
	var nilResult *Result
	assert.False(t, nilResult.HasSources())

	empty := &Result{}
	assert.False(t, empty.HasSources())

	withSources := &Result{Sources: []Source{{URL: "https://example.com"}}}
	assert.True(t, withSources.HasSources())
}
