package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrInvalidRequest is returned when a request body fails validation.
var ErrInvalidRequest = errors.New("invalid request")

const saveSchemaURL = "schema://save_prediction.json"

// saveSchema describes the body of POST /save.
var saveSchema = map[string]any{
	"type":     "object",
	"required": []any{"label", "confidence", "image_name"},
	"properties": map[string]any{
		"label": map[string]any{
			"type": "string",
			"enum": []any{"Cimex", "Non-Cimex", "uncertain"},
		},
		"confidence": map[string]any{
			"type":    "number",
			"minimum": 0,
			"maximum": 1,
		},
		"probability": map[string]any{
			"type":    []any{"number", "null"},
			"minimum": 0,
			"maximum": 1,
		},
		"image_name": map[string]any{
			"type":      "string",
			"minLength": 1,
			"maxLength": 255,
		},
	},
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func saveRequestSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		// The compiler wants a parsed JSON value, so round-trip the Go literal.
		raw, err := json.Marshal(saveSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			compileErr = fmt.Errorf("parse schema: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource(saveSchemaURL, doc); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(saveSchemaURL)
	})
	return compiled, compileErr
}

// DecodeSaveRequest validates raw JSON against the save schema and decodes it.
func DecodeSaveRequest(raw []byte) (*SavePredictionRequest, error) {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrInvalidRequest, err)
	}

	schema, err := saveRequestSchema()
	if err != nil {
		return nil, fmt.Errorf("compile save schema: %w", err)
	}

	if err := schema.Validate(parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	var req SavePredictionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return &req, nil
}
