// Package planner implements the Query Planner Agent: three sequential,
// schema-validated LLM calls (decompose -> discover perspectives ->
// expand into search queries), each with a deterministic fallback.
// Each stage is a prompt-driven LLM call with a fallback on empty/invalid
// output — generalized from single-string output to schema-validated
// structured output via llm.GenerateStructured.
package planner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/tangerg/deepresearch/llm"
	"github.com/tangerg/deepresearch/search"
)

// SubQuestion is one searchable decomposition of the original query
// (Self-Ask pattern).
type SubQuestion struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	Intent       string   `json:"intent"`
	Priority     int      `json:"priority"` // 1 (highest) - 3
	DependsOn    []string `json:"depends_on,omitempty"`
}

// Perspective is a distinct research viewpoint used to diversify query
// expansion (STORM pattern).
type Perspective struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	KeyTopics   []string `json:"key_topics"`
}

// ExpandedQuery is an engine-optimized search string produced by the
// final planning step, optionally linked back to the sub-question or
// perspective that motivated it.
type ExpandedQuery struct {
	Text            string            `json:"text"`
	Intent          string            `json:"intent"`
	Priority        int               `json:"priority"`
	SearchType      search.SearchType `json:"search_type"`
	PerspectiveName string            `json:"perspective_name,omitempty"`
	SubQuestionID   string            `json:"sub_question_id,omitempty"`
}

// Plan is the full output of the planning pipeline.
type Plan struct {
	SubQuestions  []SubQuestion
	Perspectives  []Perspective
	Queries       []ExpandedQuery
}

// Options configures a Plan call.
type Options struct {
	Language           string
	MaxExpandedQueries int // default 10
	IncludeNews        bool
	IncludeAcademic    bool
	// PriorGaps, when non-empty, is threaded into the decompose prompt so
	// a subsequent iteration's planner sees what was missing last time.
	PriorGaps []string
}

func (o Options) withDefaults() Options {
	if o.Language == "" {
		o.Language = "en"
	}
	if o.MaxExpandedQueries <= 0 {
		o.MaxExpandedQueries = 10
	}
	return o
}

// Planner drives the three-call planning pipeline.
type Planner struct {
	gen llm.Generator
}

// New builds a Planner backed by gen.
func New(gen llm.Generator) *Planner {
	return &Planner{gen: gen}
}

type decomposeResponse struct {
	SubQuestions []SubQuestion `json:"sub_questions"`
}

// decompose asks for 5-N searchable sub-questions. Falls back to a
// single sub-question equal to the original query on empty/invalid
// output.
func (p *Planner) decompose(ctx context.Context, query string, opts Options) []SubQuestion {
	var priorGapsSection string
	if len(opts.PriorGaps) > 0 {
		priorGapsSection = "\n\nPreviously identified gaps to address:\n- " + strings.Join(opts.PriorGaps, "\n- ")
	}
	prompt := fmt.Sprintf(`You are a research planner. Decompose the following query into 5 to 9
distinct, independently searchable sub-questions in %s. Each sub-question
needs an intent, a priority from 1 (highest) to 3, and may optionally
depend on an earlier sub-question by id.

Original query: %s%s`, opts.Language, query, priorGapsSection)

	result, _, err := llm.GenerateStructured[decomposeResponse](ctx, p.gen, prompt, llm.GenerateOptions{Temperature: 0.3})
	if err != nil || result == nil || len(result.SubQuestions) == 0 {
		return []SubQuestion{{ID: uuid.NewString(), Text: query, Intent: "overview", Priority: 1}}
	}
	for i := range result.SubQuestions {
		if result.SubQuestions[i].ID == "" {
			result.SubQuestions[i].ID = uuid.NewString()
		}
	}
	return result.SubQuestions
}

type perspectivesResponse struct {
	Perspectives []Perspective `json:"perspectives"`
}

// discoverPerspectives asks for 3-M distinct viewpoints (STORM pattern).
// Falls back to one generic "overview" perspective.
func (p *Planner) discoverPerspectives(ctx context.Context, query string) []Perspective {
	prompt := fmt.Sprintf(`You are coordinating a panel of research perspectives in the style of
the STORM method. Propose 3 to 6 distinct viewpoints from which to
investigate the following query (e.g. technical, economic, historical,
regulatory). Each needs a name, a short description, and key topics.

Query: %s`, query)

	result, _, err := llm.GenerateStructured[perspectivesResponse](ctx, p.gen, prompt, llm.GenerateOptions{Temperature: 0.5})
	if err != nil || result == nil || len(result.Perspectives) == 0 {
		return []Perspective{{Name: "overview", Description: "A general overview of the topic."}}
	}
	return result.Perspectives
}

type expandResponse struct {
	Queries []ExpandedQuery `json:"queries"`
}

// expand turns the original query, sub-questions, and perspectives into
// up to MaxExpandedQueries engine-optimized search strings. Falls back to
// the original query plus up to 5 sub-questions verbatim.
func (p *Planner) expand(ctx context.Context, query string, subQuestions []SubQuestion, perspectives []Perspective, opts Options) []ExpandedQuery {
	var sb strings.Builder
	for _, sq := range subQuestions {
		fmt.Fprintf(&sb, "- [%s] %s\n", sq.ID, sq.Text)
	}
	var pb strings.Builder
	for _, pv := range perspectives {
		fmt.Fprintf(&pb, "- %s: %s\n", pv.Name, pv.Description)
	}

	allowedTypes := []string{"web"}
	if opts.IncludeNews {
		allowedTypes = append(allowedTypes, "news")
	}
	if opts.IncludeAcademic {
		allowedTypes = append(allowedTypes, "academic")
	}

	prompt := fmt.Sprintf(`Expand the research below into up to %d engine-optimized search
queries. Allowed search types: %s. Each query needs text, intent,
priority (1-3), search_type, and may reference a perspective_name or
sub_question_id.

Original query: %s

Sub-questions:
%s
Perspectives:
%s`, opts.MaxExpandedQueries, strings.Join(allowedTypes, ", "), query, sb.String(), pb.String())

	result, _, err := llm.GenerateStructured[expandResponse](ctx, p.gen, prompt, llm.GenerateOptions{Temperature: 0.4})
	if err != nil || result == nil || len(result.Queries) == 0 {
		queries := []ExpandedQuery{{Text: query, Intent: "primary", Priority: 1, SearchType: search.TypeWeb}}
		for i, sq := range subQuestions {
			if i >= 5 {
				break
			}
			queries = append(queries, ExpandedQuery{
				Text: sq.Text, Intent: sq.Intent, Priority: sq.Priority,
				SearchType: search.TypeWeb, SubQuestionID: sq.ID,
			})
		}
		return queries
	}

	queries := result.Queries
	sort.SliceStable(queries, func(i, j int) bool { return queries[i].Priority < queries[j].Priority })
	if len(queries) > opts.MaxExpandedQueries {
		queries = queries[:opts.MaxExpandedQueries]
	}
	return queries
}

// Plan runs the full decompose -> perspectives -> expand pipeline.
func (p *Planner) Plan(ctx context.Context, query string, opts Options) Plan {
	opts = opts.withDefaults()
	subQuestions := p.decompose(ctx, query, opts)
	perspectives := p.discoverPerspectives(ctx, query)
	queries := p.expand(ctx, query, subQuestions, perspectives, opts)
	return Plan{SubQuestions: subQuestions, Perspectives: perspectives, Queries: queries}
}
