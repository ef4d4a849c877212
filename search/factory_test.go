package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	id    string
	caps  Capability
}

func (p *fakeProvider) ProviderID() string          { return p.id }
func (p *fakeProvider) Capabilities() Capability      { return p.caps }
func (p *fakeProvider) Search(ctx context.Context, q *Query) (*Result, error) {
	return &Result{Query: q, Provider: p.id}, nil
}
func (p *fakeProvider) SearchBatch(ctx context.Context, qs []*Query) ([]*Result, error) {
	results := make([]*Result, len(qs))
	for i, q := range qs {
		results[i] = &Result{Query: q, Provider: p.id}
	}
	return results, nil
}

// TestNewFactory_UnknownDefault tests that constructing a Factory with a
// default id not among the registered providers fails.
func TestNewFactory_UnknownDefault(t *testing.T) {
	_, err := NewFactory("missing", &fakeProvider{id: "tavily", caps: CapabilityWebSearch})
	require.Error(t, err)
}

// TestFactory_GetDefault tests that GetDefault is case-insensitive with
// respect to the id it was constructed with.
func TestFactory_GetDefault(t *testing.T) {
	f, err := NewFactory("Tavily", &fakeProvider{id: "tavily", caps: CapabilityWebSearch})
	require.NoError(t, err)

	def, err := f.GetDefault()
	require.NoError(t, err)
	assert.Equal(t, "tavily", def.ProviderID())
}

// TestFactory_Get_NotFound tests that Get on an unregistered id returns a
// typed search.Error with ErrorProviderNotFound.
func TestFactory_Get_NotFound(t *testing.T) {
	f, err := NewFactory("tavily", &fakeProvider{id: "tavily", caps: CapabilityWebSearch})
	require.NoError(t, err)

	_, err = f.Get("nope")
	require.Error(t, err)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrorProviderNotFound, se.Type)
}

// TestFactory_SelectForType_PrefersDefault tests that SelectForType
// returns the default provider when it already has the capability.
func TestFactory_SelectForType_PrefersDefault(t *testing.T) {
	f, err := NewFactory("tavily",
		&fakeProvider{id: "tavily", caps: CapabilityWebSearch | CapabilityNewsSearch},
		&fakeProvider{id: "duckduckgo", caps: CapabilityNewsSearch},
	)
	require.NoError(t, err)

	p, err := f.SelectForType(TypeNews)
	require.NoError(t, err)
	assert.Equal(t, "tavily", p.ProviderID())
}

// TestFactory_SelectForType_FallsBackToCapableProvider tests that when
// the default lacks the capability, the first (sorted-by-id) capable
// provider is chosen instead.
func TestFactory_SelectForType_FallsBackToCapableProvider(t *testing.T) {
	f, err := NewFactory("tavily",
		&fakeProvider{id: "tavily", caps: CapabilityWebSearch},
		&fakeProvider{id: "duckduckgo", caps: CapabilityNewsSearch},
	)
	require.NoError(t, err)

	p, err := f.SelectForType(TypeNews)
	require.NoError(t, err)
	assert.Equal(t, "duckduckgo", p.ProviderID())
}

// TestFactory_SelectForType_DegradesToDefault tests that when no
// registered provider has the required capability, SelectForType falls
// back to the default rather than erroring.
func TestFactory_SelectForType_DegradesToDefault(t *testing.T) {
	f, err := NewFactory("tavily", &fakeProvider{id: "tavily", caps: CapabilityWebSearch})
	require.NoError(t, err)

	p, err := f.SelectForType(TypeAcademic)
	require.NoError(t, err)
	assert.Equal(t, "tavily", p.ProviderID())
}

// TestFactory_Register tests that a provider registered after
// construction becomes selectable.
func TestFactory_Register(t *testing.T) {
	f, err := NewFactory("tavily", &fakeProvider{id: "tavily", caps: CapabilityWebSearch})
	require.NoError(t, err)

	f.Register(&fakeProvider{id: "academic-db", caps: CapabilityAcademicSearch})
	p, err := f.SelectForType(TypeAcademic)
	require.NoError(t, err)
	assert.Equal(t, "academic-db", p.ProviderID())
}
