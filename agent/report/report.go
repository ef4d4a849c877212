// Package report implements the Report Generation Agent: it plans an
// outline, synthesizes each section independently against the findings
// relevant to it, then assembles the sections into a final cited report,
// renumbering citations in first-appearance order. Grounded on the same
// structured-output pipeline shape as agent/planner and agent/analysis.
package report

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tangerg/deepresearch/flowpool"
	"github.com/tangerg/deepresearch/llm"
	"github.com/tangerg/deepresearch/research/model"
)

// Options configures report generation.
type Options struct {
	Language    string
	Format      model.OutputFormat
	Parallelism int // default 3, section synthesis fan-out
}

func (o Options) withDefaults() Options {
	if o.Language == "" {
		o.Language = "en"
	}
	if o.Format == "" {
		o.Format = model.FormatMarkdown
	}
	if o.Parallelism <= 0 {
		o.Parallelism = 3
	}
	return o
}

// Generator drives outline planning and section synthesis.
type Generator struct {
	gen llm.Generator
}

// New builds a Generator backed by gen.
func New(gen llm.Generator) *Generator {
	return &Generator{gen: gen}
}

type outlineResponse struct {
	Title    string `json:"title"`
	Sections []struct {
		Title     string   `json:"title"`
		Purpose   string   `json:"purpose"`
		KeyPoints []string `json:"key_points"`
	} `json:"sections"`
}

// PlanOutline proposes a report structure from the query and the
// findings gathered. Falls back to a single "Findings" section carrying
// every finding's claim as a key point.
func (g *Generator) PlanOutline(ctx context.Context, query string, findings []model.Finding) *model.Outline {
	var sb strings.Builder
	for _, f := range findings {
		fmt.Fprintf(&sb, "- %s\n", f.Claim)
	}

	prompt := fmt.Sprintf(`Plan a report outline answering the research query below, organizing
the findings into 3 to 7 sections. Each section needs a title, a
one-sentence purpose, and 2-5 key points drawn from the findings.

Query: %s

Findings:
%s`, query, sb.String())

	result, _, err := llm.GenerateStructured[outlineResponse](ctx, g.gen, prompt, llm.GenerateOptions{Temperature: 0.3})
	if err != nil || result == nil || len(result.Sections) == 0 {
		points := make([]string, 0, len(findings))
		for _, f := range findings {
			points = append(points, f.Claim)
		}
		return &model.Outline{
			Title: query,
			Sections: []model.OutlineSection{
				{Title: "Findings", Purpose: "Summarize the collected evidence.", KeyPoints: points},
			},
		}
	}

	sections := make([]model.OutlineSection, len(result.Sections))
	for i, s := range result.Sections {
		sections[i] = model.OutlineSection{Title: s.Title, Purpose: s.Purpose, KeyPoints: s.KeyPoints}
	}
	title := result.Title
	if title == "" {
		title = query
	}
	return &model.Outline{Title: title, Sections: sections}
}

type sectionResponse struct {
	Body string `json:"body"`
}

// citeOrdinalPattern matches the "[N]" markers the model is asked to emit,
// numbered by position within the findings list shown in its prompt.
var citeOrdinalPattern = regexp.MustCompile(`\[(\d+)\]`)

// citeTokenPattern matches the source-keyed tokens rewriteCitationMarkers
// substitutes in, so Assemble can resolve them once every section's
// citations are known. NUL-delimited: it can't collide with prose a model
// would plausibly generate.
var citeTokenPattern = regexp.MustCompile("\x00cite:([^\x00]*)\x00")

func citeToken(sourceID string) string {
	return "\x00cite:" + sourceID + "\x00"
}

// rewriteCitationMarkers replaces each "[N]" ordinal the model emitted
// with a token keyed by the source it refers to. Assemble later resolves
// every token to the source's globally-assigned number, so the in-text
// markers stay in lockstep with the reference list no matter how section
// synthesis and citation renumbering interleave. Ordinals outside the
// findings actually shown are left untouched rather than guessed at.
func rewriteCitationMarkers(body string, cited []model.Finding) string {
	return citeOrdinalPattern.ReplaceAllStringFunc(body, func(match string) string {
		n, err := strconv.Atoi(citeOrdinalPattern.FindStringSubmatch(match)[1])
		if err != nil || n < 1 || n > len(cited) {
			return match
		}
		return citeToken(cited[n-1].SourceID)
	})
}

// findingsForSection picks the findings most relevant to a section by a
// cheap keyword overlap against its key points — good enough to keep each
// section's synthesis prompt focused without another LLM round trip.
func findingsForSection(section model.OutlineSection, findings []model.Finding) []model.Finding {
	keywords := make(map[string]struct{})
	for _, kp := range section.KeyPoints {
		for _, w := range strings.Fields(strings.ToLower(kp)) {
			if len(w) > 3 {
				keywords[w] = struct{}{}
			}
		}
	}
	if len(keywords) == 0 {
		return findings
	}

	var relevant []model.Finding
	for _, f := range findings {
		claim := strings.ToLower(f.Claim)
		for w := range keywords {
			if strings.Contains(claim, w) {
				relevant = append(relevant, f)
				break
			}
		}
	}
	if len(relevant) == 0 {
		return findings
	}
	return relevant
}

// synthesizeSection generates prose for one outline section, attaching a
// Citation for each source the model actually cited inline — not every
// finding it was shown, since a source listed but never referenced in
// the body has no place in the final reference list.
func (g *Generator) synthesizeSection(ctx context.Context, query string, section model.OutlineSection, findings []model.Finding, opts Options) model.ReportSection {
	relevant := findingsForSection(section, findings)

	var sb strings.Builder
	for i, f := range relevant {
		fmt.Fprintf(&sb, "[%d] %s (evidence: %q)\n", i+1, f.Claim, f.EvidenceQuote)
	}

	prompt := fmt.Sprintf(`Write the "%s" section of a research report in %s answering: %s

Purpose: %s

Cite findings inline using their bracketed number, e.g. [1]. Use only
the findings listed below; do not invent facts.

Findings:
%s`, section.Title, opts.Language, query, section.Purpose, sb.String())

	result, _, err := llm.GenerateStructured[sectionResponse](ctx, g.gen, prompt, llm.GenerateOptions{Temperature: 0.4})
	body := section.Purpose
	if err == nil && result != nil && strings.TrimSpace(result.Body) != "" {
		body = rewriteCitationMarkers(result.Body, relevant)
	}

	cited := make(map[string]struct{})
	for _, m := range citeTokenPattern.FindAllStringSubmatch(body, -1) {
		cited[m[1]] = struct{}{}
	}
	citations := make([]model.Citation, 0, len(cited))
	for _, f := range relevant {
		if _, ok := cited[f.SourceID]; ok {
			citations = append(citations, model.Citation{SourceID: f.SourceID, Quote: f.EvidenceQuote})
			delete(cited, f.SourceID) // one Citation per source even if cited from multiple findings
		}
	}

	return model.ReportSection{
		Title:     section.Title,
		Purpose:   section.Purpose,
		KeyPoints: section.KeyPoints,
		Body:      body,
		Citations: citations,
	}
}

// GenerateSections synthesizes every outline section concurrently.
func (g *Generator) GenerateSections(ctx context.Context, query string, outline *model.Outline, findings []model.Finding, opts Options) []model.ReportSection {
	opts = opts.withDefaults()
	return flowpool.Map(ctx, outline.Sections, opts.Parallelism, func(ctx context.Context, s model.OutlineSection) model.ReportSection {
		return g.synthesizeSection(ctx, query, s, findings, opts)
	})
}

// Assemble renders the final report body in citation-renumbered Markdown.
// Each section's Body carries citeToken markers left by synthesizeSection;
// Assemble resolves them in the order they appear in the rendered text,
// assigning every distinct SourceID a number on first sight and rewriting
// its token to the matching "[n]" in place. A reference list is appended
// mapping each number back to its source, so in-text markers and the
// reference list are built from the same pass and can't drift apart. It
// returns the rendered body and the cited sources in reference-list order;
// callers diff against the full collected set to find uncited sources.
func Assemble(outline *model.Outline, sections []model.ReportSection, sourceByID func(id string) (model.SourceDocument, bool)) (string, []model.SourceDocument) {
	numberOf := make(map[string]int)
	var order []string

	assign := func(sourceID string) int {
		if n, ok := numberOf[sourceID]; ok {
			return n
		}
		n := len(order) + 1
		numberOf[sourceID] = n
		order = append(order, sourceID)
		return n
	}

	var raw strings.Builder
	fmt.Fprintf(&raw, "# %s\n\n", outline.Title)
	for _, s := range sections {
		fmt.Fprintf(&raw, "## %s\n\n%s\n\n", s.Title, s.Body)
	}

	var body strings.Builder
	body.WriteString(citeTokenPattern.ReplaceAllStringFunc(raw.String(), func(match string) string {
		sourceID := citeTokenPattern.FindStringSubmatch(match)[1]
		return fmt.Sprintf("[%d]", assign(sourceID))
	}))

	if len(order) > 0 {
		body.WriteString("## References\n\n")
		for i, sourceID := range order {
			if doc, ok := sourceByID(sourceID); ok {
				fmt.Fprintf(&body, "%d. [%s](%s)\n", i+1, firstNonEmpty(doc.Title, doc.CanonicalURL), doc.CanonicalURL)
			} else {
				fmt.Fprintf(&body, "%d. %s\n", i+1, sourceID)
			}
		}
	}

	var cited []model.SourceDocument
	for _, sourceID := range order {
		if doc, ok := sourceByID(sourceID); ok {
			cited = append(cited, doc)
		}
	}
	return body.String(), cited
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
