package tavily

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangerg/deepresearch/resilience"
	"github.com/tangerg/deepresearch/search"
)

// TestNew_RequiresAPIKey tests that constructing a provider without an
// API key fails fast with an auth error rather than deferring the
// failure to the first search call.
func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	var serr *search.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, search.ErrorAuth, serr.Type)
}

// TestSearch_ParsesResultsAndAnswer tests a successful round trip against
// a stub server, including respecting MaxResults truncation.
func TestSearch_ParsesResultsAndAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		resp := apiResponse{
			Answer: "the answer",
			Results: []apiResult{
				{URL: "https://a.example.com", Title: "A", Content: "snippet a", Score: 0.9},
				{URL: "https://b.example.com", Title: "B", Content: "snippet b", Score: 0.8},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := resilience.New("tavily-test", resilience.Config{InitialWait: time.Millisecond, MaxRetries: 1})
	p, err := New(Config{APIKey: "test-key", Client: client, BaseURL: server.URL})
	require.NoError(t, err)

	result, err := p.Search(t.Context(), &search.Query{Text: "q", MaxResults: 1})
	require.NoError(t, err)
	assert.Equal(t, "the answer", result.Answer)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "https://a.example.com", result.Sources[0].URL)
}

// TestSearch_MapsUnauthorizedToAuthError tests that a 401 response is
// classified as search.ErrorAuth.
func TestSearch_MapsUnauthorizedToAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := resilience.New("tavily-test", resilience.Config{InitialWait: time.Millisecond, MaxRetries: 1})
	p, err := New(Config{APIKey: "test-key", Client: client, BaseURL: server.URL})
	require.NoError(t, err)

	_, err = p.Search(t.Context(), &search.Query{Text: "q"})
	require.Error(t, err)
	var serr *search.Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, search.ErrorAuth, serr.Type)
}

// TestMapDepth tests the search_depth mapping for both depth levels.
func TestMapDepth(t *testing.T) {
	assert.Equal(t, "advanced", mapDepth(search.DepthDeep))
	assert.Equal(t, "basic", mapDepth(search.DepthBasic))
}
