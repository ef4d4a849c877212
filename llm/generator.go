// Package llm defines the text-generation boundary consumed by every
// LLM-backed agent in the research pipeline (planner, analysis, report).
// It splits plain text generation from a schema-validated structured-
// output path: agents never talk to a provider SDK directly, only to
// this interface.
package llm

import (
	"context"
	"errors"
)

// FinishReason explains why generation stopped.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
	FinishUnknown       FinishReason = "unknown"
)

// Usage is token accounting for a single generation call, used by the
// orchestrator to accumulate cost against a monetary budget.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// GenerateOptions parameterizes a single call. ModelID is optional; when
// empty the Generator uses whatever default model it was configured with.
type GenerateOptions struct {
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	ModelID      string
}

// GenerateResult is the output of a plain (unstructured) generation call.
type GenerateResult struct {
	Text         string
	Usage        Usage
	FinishReason FinishReason
}

// ErrNoContent is returned by a Generator when the underlying provider
// produced an empty or filtered response; callers should treat it the
// same as a structured-output fallback trigger.
var ErrNoContent = errors.New("llm: no content returned")

// Generator is the single boundary every agent calls through. A real
// implementation adapts a provider SDK (see adapter packages); a fallback
// is never the Generator's job — that lives in the calling agent, which
// treats a nil structured result or a non-nil error as "use fallback".
type Generator interface {
	// Generate produces free text from a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (GenerateResult, error)

	// GenerateStructured asks the model to emit JSON matching target's
	// schema, then parses the response into target. It returns false with
	// a nil error when the response could not be parsed — this is the
	// documented "use fallback" signal, not an error. A non-nil error
	// indicates the call itself failed (network, auth, timeout).
	GenerateStructured(ctx context.Context, prompt string, opts GenerateOptions, target StructuredTarget) (bool, Usage, error)
}

// StructuredTarget is implemented by a pointer-to-struct wrapper that
// knows how to describe its own schema and unmarshal into itself. Callers
// use the generic helper GenerateStructured[T] below rather than
// implementing this directly.
type StructuredTarget interface {
	SchemaInstructions() string
	UnmarshalRaw(raw string) error
}
