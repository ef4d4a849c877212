package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tangerg/deepresearch/pkg/jsonschema"
)

// jsonTarget adapts a *T into a StructuredTarget, generating its schema
// instructions once via reflection and parsing permissively — stripping
// Markdown code fences and locating the outermost balanced JSON value
// before unmarshaling, since every structured agent call needs exactly
// this.
type jsonTarget[T any] struct {
	value        *T
	instructions string
}

func newJSONTarget[T any](dst *T) *jsonTarget[T] {
	var zero T
	schema, err := jsonschema.StringSchemaOf(zero)
	if err != nil {
		schema = "{}"
	}
	instructions := fmt.Sprintf(`[OUTPUT FORMAT]
JSON only - RFC8259 compliant, matching the schema below exactly.

[RESTRICTIONS]
- No explanations or commentary
- No markdown formatting or code fences
- No leading or trailing text

[JSON SCHEMA]
%s`, schema)
	return &jsonTarget[T]{value: dst, instructions: instructions}
}

func (j *jsonTarget[T]) SchemaInstructions() string { return j.instructions }

func (j *jsonTarget[T]) UnmarshalRaw(raw string) error {
	clean := ExtractJSON(raw)
	if clean == "" {
		return fmt.Errorf("llm: no JSON payload found in response")
	}
	return json.Unmarshal([]byte(clean), j.value)
}

// ExtractJSON strips Markdown code fences and returns the first balanced
// JSON object or array found in raw. Models frequently wrap structured
// output in ```json fences or prepend explanatory prose; this recovers
// the payload from both.
func ExtractJSON(raw string) string {
	s := stripCodeFence(raw)

	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			open = s[i]
			if open == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
	if start == -1 {
		return strings.TrimSpace(s)
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}
	return strings.TrimSpace(s[start:])
}

func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	nl := strings.Index(trimmed, "\n")
	if nl == -1 {
		return strings.Trim(trimmed, "`")
	}
	body := trimmed[nl+1:]
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}

// GenerateStructured is the generic entry point agents use: it builds a
// jsonTarget for T, delegates to the Generator, and returns a nil *T when
// the model's output could not be parsed (the documented fallback signal).
func GenerateStructured[T any](ctx context.Context, gen Generator, prompt string, opts GenerateOptions) (*T, Usage, error) {
	var dst T
	target := newJSONTarget(&dst)
	fullPrompt := prompt + "\n\n" + target.SchemaInstructions()

	ok, usage, err := gen.GenerateStructured(ctx, fullPrompt, opts, target)
	if err != nil {
		return nil, usage, err
	}
	if !ok {
		return nil, usage, nil
	}
	return &dst, usage, nil
}
