package errors

import (
	"fmt"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for a violation.
type Code string

// Violation codes, one per failure class.
const (
	CodeManifestLoadFailure       Code = "manifest.load.failure"
	CodeManifestSchemaInvalid     Code = "manifest.schema.invalid"
	CodeManifestUniqueDuplicate   Code = "manifest.uniqueness.duplicate"
	CodeManifestOrderUnsorted     Code = "manifest.ordering.unsorted"
	CodeManifestReferenceMismatch Code = "manifest.reference.mismatch"
	CodeContractVerifyFailure     Code = "contract.verification.failure"
)

// Kind groups codes into the violation taxonomy reported to users.
type Kind string

const (
	KindLoad                 Kind = "LoadFailure"
	KindSchema               Kind = "SchemaViolation"
	KindUniqueness           Kind = "UniquenessViolation"
	KindOrdering             Kind = "OrderingViolation"
	KindCrossReference       Kind = "CrossReferenceViolation"
	KindExternalVerification Kind = "ExternalVerificationFailure"
	KindUnknown              Kind = "Unknown"
)

var kinds = map[Code]Kind{
	CodeManifestLoadFailure:       KindLoad,
	CodeManifestSchemaInvalid:     KindSchema,
	CodeManifestUniqueDuplicate:   KindUniqueness,
	CodeManifestOrderUnsorted:     KindOrdering,
	CodeManifestReferenceMismatch: KindCrossReference,
	CodeContractVerifyFailure:     KindExternalVerification,
}

// Context keys attached to violations. The reporter reads them back to
// build the "<id>@<version> <arch>: ..." prefix.
const (
	KeyPlugin   = "plugin"
	KeyVersion  = "version"
	KeyArch     = "arch"
	KeyContract = "contract"
	KeyPath     = "path"
	KeyField    = "field"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// FieldPlugin names the plugin id a violation belongs to.
func FieldPlugin(value string) Attr {
	return Field(KeyPlugin, value)
}

// FieldVersion names the plugin or contract version.
func FieldVersion(value string) Attr {
	return Field(KeyVersion, value)
}

// FieldArch names the package architecture.
func FieldArch(value string) Attr {
	return Field(KeyArch, value)
}

// FieldContract names the contract id.
func FieldContract(value string) Attr {
	return Field(KeyContract, value)
}

// FieldPath names the manifest file.
func FieldPath(value string) Attr {
	return Field(KeyPath, value)
}

// New creates a violation with code, message and context fields.
func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

// Wrap annotates err with a code and message. It returns nil for a nil err.
func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

// With adds structured fields to an existing violation, keeping its code.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		return oops.With(flatten(fields)...).Wrap(err)
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

// CodeOf returns the code carried by err, or "" for plain errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

// FieldsOf returns the context fields attached to err.
func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

// StringField returns a context field as a string, or "" when absent.
func StringField(err error, key string) string {
	v, ok := FieldsOf(err)[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// KindOf maps the code of err to its taxonomy kind.
func KindOf(err error) Kind {
	if kind, ok := kinds[CodeOf(err)]; ok {
		return kind
	}
	return KindUnknown
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}
