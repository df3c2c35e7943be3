package workload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaErrors represents a collection of schema validation errors
type SchemaErrors []error

// Error implements the error interface for SchemaErrors
func (se SchemaErrors) Error() string {
	if len(se) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, err := range se {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// compileSchema compiles a schema document decoded from the workload file.
// A string document is taken as JSON text.
func compileSchema(doc interface{}) (*jsonschema.Schema, error) {
	var raw []byte
	if text, ok := doc.(string); ok {
		raw = []byte(text)
	} else {
		var err error
		if raw, err = json.Marshal(normalize(doc)); err != nil {
			return nil, fmt.Errorf("invalid schema: %w", err)
		}
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return schema, nil
}

// validateSchema reports whether body is a JSON document accepted by
// schema. A rejected document comes with the list of violations.
func validateSchema(schema *jsonschema.Schema, body []byte) (bool, error) {
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return false, fmt.Errorf("invalid JSON: %w", err)
	}

	if err := schema.Validate(data); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			return false, extractSchemaErrors(validationErr)
		}
		return false, SchemaErrors{err}
	}
	return true, nil
}

// extractSchemaErrors flattens a jsonschema.ValidationError tree
func extractSchemaErrors(err *jsonschema.ValidationError) SchemaErrors {
	var errs SchemaErrors

	if err.Message != "" {
		errs = append(errs, fmt.Errorf("validation error at %s: %s", err.InstanceLocation, err.Message))
	}
	for _, cause := range err.Causes {
		errs = append(errs, extractSchemaErrors(cause)...)
	}
	return errs
}

// normalize converts YAML maps with non-string keys so the document can be
// JSON encoded.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[toString(k)] = normalize(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}
