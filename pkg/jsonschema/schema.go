// Package jsonschema generates JSON Schema strings from Go types via
// reflection, for embedding in LLM prompts that request structured output.
package jsonschema

import (
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

// Config controls how a schema is reflected from a Go value.
type Config struct {
	Anonymous                 bool
	DoNotReference            bool
	AllowAdditionalProperties bool
	IncludeVersion            bool
}

// DefaultConfig produces compact, self-contained schemas suitable for
// inlining directly into a prompt: no $ref indirection, no $schema noise.
func DefaultConfig() Config {
	return Config{
		Anonymous:      true,
		DoNotReference: true,
	}
}

// StringSchemaOf renders the JSON Schema of v using DefaultConfig.
func StringSchemaOf(v any) (string, error) {
	return StringSchemaOfWithConfig(v, DefaultConfig())
}

// StringSchemaOfWithConfig renders the JSON Schema of v as a JSON string.
func StringSchemaOfWithConfig(v any, cfg Config) (string, error) {
	schema, err := reflectSchema(v, cfg)
	if err != nil {
		return "", err
	}
	raw, err := schema.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	return string(raw), nil
}

func reflectSchema(v any, cfg Config) (*jsonschema.Schema, error) {
	if v == nil {
		return nil, fmt.Errorf("jsonschema: cannot reflect nil value")
	}

	r := &jsonschema.Reflector{
		Anonymous:                 cfg.Anonymous,
		DoNotReference:            cfg.DoNotReference,
		AllowAdditionalProperties: cfg.AllowAdditionalProperties,
	}

	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct {
		r.ExpandedStruct = true
	}

	schema := r.Reflect(v)
	if schema == nil {
		return nil, fmt.Errorf("jsonschema: reflect failed for %T", v)
	}
	if !cfg.IncludeVersion {
		schema.Version = ""
	}
	return schema, nil
}

// MustStringSchemaOf panics if schema generation fails. Use only for
// types known at compile time to be reflectable (structs, not channels/funcs).
func MustStringSchemaOf(v any) string {
	s, err := StringSchemaOf(v)
	if err != nil {
		panic(err)
	}
	return s
}
