package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var phaseSchemas sync.Map // step -> *jsonschema.Schema

// ValidatePhase checks a parsed reply against the phase schema. Compiled
// schemas are cached per step.
func ValidatePhase(step string, obj map[string]any) error {
	var schema *jsonschema.Schema
	if cached, ok := phaseSchemas.Load(step); ok {
		schema = cached.(*jsonschema.Schema)
	} else {
		compiled, err := compileSchema(PhaseSchema(step))
		if err != nil {
			return err
		}
		phaseSchemas.Store(step, compiled)
		schema = compiled
	}
	// round-trip so numbers and nested values have the types the validator expects
	b, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}
