package manifest

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	perrors "github.com/harun/plugincheck/pkg/errors"
)

// Validator checks generic documents against the shape schemas of one
// schema generation.
type Validator struct {
	style   IDStyle
	schemas map[Shape]*gojsonschema.Schema
}

// NewValidator compiles the shape schemas for the given identifier style.
func NewValidator(style IDStyle) (*Validator, error) {
	v := &Validator{
		style:   style,
		schemas: make(map[Shape]*gojsonschema.Schema),
	}

	for _, shape := range []Shape{ShapeRoot, ShapePlugin, ShapeVersion, ShapeContract} {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaFor(shape, style)))
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s schema: %w", shape, err)
		}
		v.schemas[shape] = schema
	}

	return v, nil
}

// Style returns the identifier style the schemas were compiled with.
func (v *Validator) Style() IDStyle {
	return v.style
}

// Validate checks doc against the schema of shape. Every structural error
// of the document is reported in one SchemaViolation.
func (v *Validator) Validate(doc map[string]any, shape Shape) error {
	schema, ok := v.schemas[shape]
	if !ok {
		return perrors.New(perrors.CodeManifestSchemaInvalid, fmt.Sprintf("unknown document shape %q", shape))
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return perrors.Wrap(err, perrors.CodeManifestSchemaInvalid, "schema validation error")
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return perrors.New(
			perrors.CodeManifestSchemaInvalid,
			fmt.Sprintf("%s manifest does not match schema: %s", shape, strings.Join(msgs, "; ")),
			perrors.Field(perrors.KeyField, result.Errors()[0].Field()),
		)
	}

	return nil
}
