package task

import (
	"bytes"
	_ "embed"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/gantryhq/gantry/internal/errors"
)

//go:embed task_schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// recordSchema compiles the embedded task schema once and reuses the
// compiled form for every validation.
func recordSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			schemaErr = errors.Wrap(err, "failed to parse embedded task schema")
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("task_schema.json", doc); err != nil {
			schemaErr = errors.Wrap(err, "failed to add task schema resource")
			return
		}
		schema, schemaErr = c.Compile("task_schema.json")
	})
	return schema, schemaErr
}

// ValidateRecord checks raw task JSON against the embedded schema and
// returns a ValidationError describing the failure, or nil when the
// record is valid.
func ValidateRecord(data []byte) error {
	s, err := recordSchema()
	if err != nil {
		return err
	}
	// jsonschema.UnmarshalJSON keeps numbers as json.Number, which the
	// validator requires to distinguish integers from floats.
	v, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return errors.NewValidationError("task record is not valid JSON").WithCause(err)
	}
	if err := s.Validate(v); err != nil {
		return errors.NewValidationError("task record failed schema validation").
			WithCause(errors.Join(errors.ErrTaskCorrupted, err))
	}
	return nil
}
