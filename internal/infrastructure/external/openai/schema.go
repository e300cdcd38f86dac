package openai

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed evaluation_schema.json
var evaluationSchema []byte

const evaluationSchemaURL = "mem://autoclaim/evaluation.json"

func compileEvaluationSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(evaluationSchemaURL, bytes.NewReader(evaluationSchema)); err != nil {
		return nil, fmt.Errorf("failed to add evaluation schema: %w", err)
	}
	schema, err := c.Compile(evaluationSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile evaluation schema: %w", err)
	}
	return schema, nil
}

// validateDocument checks raw JSON against the schema before it is decoded into Go types
func validateDocument(schema *jsonschema.Schema, raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("trailing data after JSON document")
	}
	return schema.Validate(doc)
}
