package jd

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// jdSchema is the contract every extraction must satisfy before a job row is
// written. Empty company/role/description are rejected here, not downstream.
const jdSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "JobDescription",
  "type": "object",
  "properties": {
    "company": {"type": "string", "minLength": 1},
    "role": {"type": "string", "minLength": 1},
    "location": {"type": "string"},
    "experience_required": {"type": "string"},
    "skills": {"type": "array", "items": {"type": "string"}},
    "description": {"type": "string", "minLength": 1}
  },
  "required": ["company", "role", "description"],
  "additionalProperties": false
}`

// FieldError is a single schema violation at a specific field.
type FieldError struct {
	Field   string
	Message string
}

// SchemaValidationError reports why an extracted JD failed schema validation.
// It is a hard eval failure: the pipeline aborts rather than persisting a
// malformed job.
type SchemaValidationError struct {
	Errors []FieldError
}

func (e *SchemaValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("jd schema validation failed:")
	for _, fe := range e.Errors {
		sb.WriteString(fmt.Sprintf("\n  %s: %s", fe.Field, fe.Message))
	}
	return sb.String()
}

// ValidateSchema checks raw extraction JSON against the JD schema.
// Returns *SchemaValidationError when the document is well-formed JSON but
// violates the schema.
func ValidateSchema(rawJSON string) error {
	schemaLoader := gojsonschema.NewStringLoader(jdSchema)
	docLoader := gojsonschema.NewStringLoader(rawJSON)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("jd schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	ve := &SchemaValidationError{}
	for _, desc := range result.Errors() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   desc.Field(),
			Message: desc.Description(),
		})
	}
	return ve
}
