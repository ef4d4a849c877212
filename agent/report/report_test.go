package report

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangerg/deepresearch/llm"
	"github.com/tangerg/deepresearch/research/model"
)

type scriptedGenerator struct {
	raw string
	err error
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (llm.GenerateResult, error) {
	return llm.GenerateResult{}, nil
}

func (g *scriptedGenerator) GenerateStructured(ctx context.Context, prompt string, opts llm.GenerateOptions, target llm.StructuredTarget) (bool, llm.Usage, error) {
	if g.err != nil {
		return false, llm.Usage{}, g.err
	}
	if g.raw == "" {
		return false, llm.Usage{}, nil
	}
	if err := target.UnmarshalRaw(g.raw); err != nil {
		return false, llm.Usage{}, nil
	}
	return true, llm.Usage{}, nil
}

// TestPlanOutline_FallbackIsSingleSection tests that a failed outline
// call falls back to a single "Findings" section carrying every
// finding's claim as a key point.
func TestPlanOutline_FallbackIsSingleSection(t *testing.T) {
	g := New(&scriptedGenerator{})
	findings := []model.Finding{{Claim: "claim one"}, {Claim: "claim two"}}
	outline := g.PlanOutline(context.Background(), "query", findings)

	require.Len(t, outline.Sections, 1)
	assert.Equal(t, "Findings", outline.Sections[0].Title)
	assert.Equal(t, []string{"claim one", "claim two"}, outline.Sections[0].KeyPoints)
}

// TestPlanOutline_UsesStructuredResponse tests that a well-formed
// outline response populates sections from the model's output.
func TestPlanOutline_UsesStructuredResponse(t *testing.T) {
	raw := `{"title": "Custom Title", "sections": [
		{"title": "Background", "purpose": "set the stage", "key_points": ["a", "b"]},
		{"title": "Analysis", "purpose": "dig in", "key_points": ["c"]}
	]}`
	g := New(&scriptedGenerator{raw: raw})
	outline := g.PlanOutline(context.Background(), "query", nil)

	assert.Equal(t, "Custom Title", outline.Title)
	require.Len(t, outline.Sections, 2)
	assert.Equal(t, "Background", outline.Sections[0].Title)
}

// TestFindingsForSection_FiltersByKeywordOverlap tests that only
// findings whose claim shares a keyword with the section's key points
// are selected.
func TestFindingsForSection_FiltersByKeywordOverlap(t *testing.T) {
	section := model.OutlineSection{Title: "Economics", KeyPoints: []string{"inflation rate trends"}}
	findings := []model.Finding{
		{Claim: "The inflation rate rose sharply in 2025"},
		{Claim: "Completely unrelated claim about astronomy"},
	}
	relevant := findingsForSection(section, findings)

	require.Len(t, relevant, 1)
	assert.Contains(t, relevant[0].Claim, "inflation")
}

// TestFindingsForSection_FallsBackToAllWhenNoneMatch tests that when no
// finding overlaps the section's keywords, every finding is returned
// rather than leaving the section empty.
func TestFindingsForSection_FallsBackToAllWhenNoneMatch(t *testing.T) {
	section := model.OutlineSection{Title: "X", KeyPoints: []string{"zzzznomatch"}}
	findings := []model.Finding{{Claim: "irrelevant claim text"}}
	relevant := findingsForSection(section, findings)
	assert.Equal(t, findings, relevant)
}

// TestGenerateSections_AttachesCitations tests that synthesized sections
// carry a Citation per source the model actually cited, and that the
// ordinal marker it emitted is rewritten to a source-keyed token rather
// than left as a bare "[1]" scoped only to this section.
func TestGenerateSections_AttachesCitations(t *testing.T) {
	raw := `{"body": "Synthesized prose citing [1]."}`
	g := New(&scriptedGenerator{raw: raw})
	outline := &model.Outline{Title: "T", Sections: []model.OutlineSection{{Title: "S", KeyPoints: []string{"topic"}}}}
	findings := []model.Finding{{Claim: "topic finding", SourceID: "src-1", EvidenceQuote: "quote"}}

	sections := g.GenerateSections(context.Background(), "query", outline, findings, Options{})
	require.Len(t, sections, 1)
	assert.Equal(t, "Synthesized prose citing "+citeToken("src-1")+".", sections[0].Body)
	require.Len(t, sections[0].Citations, 1)
	assert.Equal(t, "src-1", sections[0].Citations[0].SourceID)
}

// TestGenerateSections_OmitsUncitedFindings tests that a finding shown to
// the model but never referenced inline produces no Citation — a
// reference list entry with no matching in-text marker would break the
// bijection between the two.
func TestGenerateSections_OmitsUncitedFindings(t *testing.T) {
	raw := `{"body": "Prose that cites only [1]."}`
	g := New(&scriptedGenerator{raw: raw})
	outline := &model.Outline{Title: "T", Sections: []model.OutlineSection{{Title: "S", KeyPoints: []string{"topic"}}}}
	findings := []model.Finding{
		{Claim: "topic finding one", SourceID: "src-1", EvidenceQuote: "quote one"},
		{Claim: "topic finding two", SourceID: "src-2", EvidenceQuote: "quote two"},
	}

	sections := g.GenerateSections(context.Background(), "query", outline, findings, Options{})
	require.Len(t, sections, 1)
	require.Len(t, sections[0].Citations, 1)
	assert.Equal(t, "src-1", sections[0].Citations[0].SourceID)
}

// TestAssemble_RenumbersCitationsInFirstAppearanceOrder tests that
// citation numbers are assigned in the order source IDs first appear in
// the rendered text, that the in-body markers are rewritten to match,
// and that the reference list follows the same order.
func TestAssemble_RenumbersCitationsInFirstAppearanceOrder(t *testing.T) {
	outline := &model.Outline{Title: "Report"}
	sections := []model.ReportSection{
		{Title: "First", Body: "intro " + citeToken("b") + " and " + citeToken("a")},
		{Title: "Second", Body: "more " + citeToken("a") + " and " + citeToken("c")},
	}
	docs := map[string]model.SourceDocument{
		"a": {CanonicalURL: "https://a.example.com", Title: "A"},
		"b": {CanonicalURL: "https://b.example.com", Title: "B"},
		"c": {CanonicalURL: "https://c.example.com", Title: "C"},
	}
	lookup := func(id string) (model.SourceDocument, bool) {
		d, ok := docs[id]
		return d, ok
	}

	body, cited := Assemble(outline, sections, lookup)

	require.Len(t, cited, 3)
	assert.Equal(t, "B", cited[0].Title) // "b" appeared first, in section one
	assert.Equal(t, "A", cited[1].Title)
	assert.Equal(t, "C", cited[2].Title)
	assert.Contains(t, body, "intro [1] and [2]")
	assert.Contains(t, body, "more [2] and [3]")
	assert.NotContains(t, body, "\x00cite:")
	assert.Contains(t, body, "## References")
	assert.Contains(t, body, "1. [B](https://b.example.com)")
	assert.Contains(t, body, "2. [A](https://a.example.com)")
	assert.Contains(t, body, "3. [C](https://c.example.com)")
}

// TestAssemble_NoReferencesSectionWhenUncited tests that a report with
// no citations anywhere omits the References section entirely.
func TestAssemble_NoReferencesSectionWhenUncited(t *testing.T) {
	outline := &model.Outline{Title: "Report"}
	sections := []model.ReportSection{{Title: "Only", Body: "no citations here"}}
	body, cited := Assemble(outline, sections, func(id string) (model.SourceDocument, bool) { return model.SourceDocument{}, false })

	assert.Empty(t, cited)
	assert.NotContains(t, body, "## References")
}
