// Package enrichment implements the Enrichment Agent: it turns the raw
// search.Source list collected by the coordinator into research-ready
// SourceDocuments, splitting each one's text into token-bounded chunks.
// A source that already carries raw content is chunked directly; every
// other source is fetched and cleaned through the content extractor.
// Grounded on extract.ExtractBatch's bounded-parallelism,
// partial-failure-tolerant batch shape.
package enrichment

import (
	"context"
	"time"

	"github.com/tangerg/deepresearch/chunk"
	"github.com/tangerg/deepresearch/extract"
	"github.com/tangerg/deepresearch/research/model"
	"github.com/tangerg/deepresearch/search"
)

// Options configures an enrichment pass.
type Options struct {
	Extract extract.Options
	Chunk   chunk.Options
}

// Outcome is the result of enriching a batch of sources.
type Outcome struct {
	Documents []model.SourceDocument
	Failures  []extract.Failure
}

// Enricher extracts and chunks collected search sources.
type Enricher struct {
	extractor *extract.Extractor
}

// New builds an Enricher backed by extractor.
func New(extractor *extract.Extractor) *Enricher {
	return &Enricher{extractor: extractor}
}

// Enrich builds a SourceDocument for every source not already present in
// already (by canonical URL). A source that already carries usable raw
// content (e.g. a search provider that returned full page text alongside
// its snippet) is chunked directly, skipping the network fetch entirely;
// every other source is routed through the content extractor.
func Enrich(ctx context.Context, e *Enricher, sources []search.Source, already func(canonicalURL string) bool, opts Options) Outcome {
	byURL := make(map[string]search.Source, len(sources))
	urls := make([]string, 0, len(sources))
	var outcome Outcome

	for _, src := range sources {
		canon, err := extract.CanonicalizeURL(src.URL)
		if err != nil {
			continue
		}
		if already != nil && already(canon) {
			continue
		}
		if _, dup := byURL[canon]; dup {
			continue
		}
		byURL[canon] = src

		if src.RawContent != "" {
			outcome.Documents = append(outcome.Documents, documentFromSource(canon, src, opts.Chunk))
			continue
		}
		urls = append(urls, src.URL)
	}

	if len(urls) == 0 {
		return outcome
	}

	batch := e.extractor.ExtractBatch(ctx, urls, opts.Extract)
	outcome.Failures = append(outcome.Failures, batch.Failures...)

	for _, doc := range batch.Documents {
		src := byURL[doc.CanonicalURL]
		outcome.Documents = append(outcome.Documents, model.SourceDocument{
			CanonicalURL:   doc.CanonicalURL,
			Title:          firstNonEmpty(doc.Title, src.Title),
			Text:           doc.Text,
			Author:         doc.Author,
			PublishedDate:  doc.PublishedDate,
			ExtractedAt:    doc.ExtractedAt,
			ProviderID:     "", // filled in by the caller, which knows which provider produced src
			RelevanceScore: src.Score,
			Chunks:         chunksOf(doc.CanonicalURL, doc.Text, opts.Chunk),
		})
	}
	return outcome
}

// documentFromSource builds a SourceDocument straight from a search
// result's already-fetched raw content, without touching the extractor.
func documentFromSource(canonicalURL string, src search.Source, chunkOpts chunk.Options) model.SourceDocument {
	return model.SourceDocument{
		CanonicalURL:   canonicalURL,
		Title:          src.Title,
		Text:           src.RawContent,
		PublishedDate:  src.PublishedDate,
		ExtractedAt:    time.Now(),
		ProviderID:     "",
		RelevanceScore: src.Score,
		Chunks:         chunksOf(canonicalURL, src.RawContent, chunkOpts),
	}
}

func chunksOf(canonicalURL, text string, opts chunk.Options) []model.Chunk {
	chunks := chunk.Split(canonicalURL, text, opts)
	researchChunks := make([]model.Chunk, len(chunks))
	for i, c := range chunks {
		researchChunks[i] = model.Chunk{
			Index: c.Index, Total: c.Total, Text: c.Text,
			TokenCount: c.TokenCount, StartPos: c.StartPos, EndPos: c.EndPos,
		}
	}
	return researchChunks
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
