// Package diag defines the error taxonomy and diagnostic channel used
// while describing types and laying them out across sectors.
//
// Errors carry a Kind (which of the four failure classes occurred), a
// stable Reason code and the human-readable Subject (type or field) that
// triggered them:
//
//	err := diag.New(diag.KindConfiguration, diag.ReasonConflictingShapes).
//		Subject("field SaveBlock.Name").
//		Detailf("%s options cannot be combined with %s options", "integer", "string").
//		Build()
//
// All errors implement the standard error interface and support
// errors.Is/As.
package diag

import (
	"fmt"
	"strings"
)

// Kind is the failure class of an Error.
type Kind string

const (
	KindConfiguration Kind = "configuration_error"
	KindUnsupported   Kind = "unsupported_construct"
	KindTagValidation Kind = "tag_validation_error"
	KindCapacity      Kind = "capacity_exhaustion"
)

// Reason is a stable, machine-checkable code for one diagnostic.
type Reason string

const (
	ReasonConflictingShapes      Reason = "conflicting_shapes"
	ReasonArrayOptionOnScalar    Reason = "array_option_on_scalar"
	ReasonInvalidBitcount        Reason = "invalid_bitcount"
	ReasonLargeBitcount          Reason = "large_bitcount"
	ReasonUnknownHeritable       Reason = "unknown_heritable"
	ReasonHeritableShapeMismatch Reason = "heritable_shape_mismatch"
	ReasonHeritableRedefined     Reason = "heritable_redefined"
	ReasonRangeInverted          Reason = "range_inverted"
	ReasonStringTooLong          Reason = "string_too_long"
	ReasonUnknownOption          Reason = "unknown_option"
	ReasonMalformedOption        Reason = "malformed_option"
	ReasonTransformSignature     Reason = "transform_signature"
	ReasonUnsupportedType        Reason = "unsupported_type"
	ReasonVariableLengthArray    Reason = "variable_length_array"
	ReasonLeafExceedsSector      Reason = "leaf_exceeds_sector"
	ReasonUnionMemberNotStruct   Reason = "union_member_not_struct"
	ReasonUnionNoCommonFields    Reason = "union_no_common_fields"
	ReasonUnionTagNotShared      Reason = "union_tag_not_shared"
	ReasonExternalTagMissing     Reason = "external_tag_missing"
	ReasonMissingArmSelector     Reason = "missing_arm_selector"
	ReasonSectorsExhausted       Reason = "sectors_exhausted"
	ReasonUnknownRoot            Reason = "unknown_root"
	ReasonInvalidGlobalOptions   Reason = "invalid_global_options"
	ReasonInvalidDefault         Reason = "invalid_default"
)

// Error is the structured error returned by every generation stage.
type Error struct {
	Cause   error
	Kind    Kind
	Reason  Reason
	Subject string
	Detail  string
	Notes   []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Kind))
	b.WriteString("] ")
	b.WriteString(string(e.Reason))

	if e.Subject != "" {
		b.WriteString(" for ")
		b.WriteString(e.Subject)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	for _, note := range e.Notes {
		b.WriteString("; ")
		b.WriteString(note)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Kind, and on Reason when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Reason == "" || e.Reason == t.Reason
}

// Builder provides structured error construction.
type Builder struct {
	err Error
}

// New creates a new error builder.
func New(kind Kind, reason Reason) *Builder {
	return &Builder{err: Error{Kind: kind, Reason: reason}}
}

// Subject names the type or field the error is about.
func (b *Builder) Subject(subject string) *Builder {
	b.err.Subject = subject
	return b
}

// Detail sets the human-readable message.
func (b *Builder) Detail(detail string) *Builder {
	b.err.Detail = detail
	return b
}

// Detailf sets a formatted human-readable message.
func (b *Builder) Detailf(format string, args ...any) *Builder {
	b.err.Detail = fmt.Sprintf(format, args...)
	return b
}

// Note appends a follow-up remark, printed after the detail.
func (b *Builder) Note(format string, args ...any) *Builder {
	b.err.Notes = append(b.err.Notes, fmt.Sprintf(format, args...))
	return b
}

// Cause sets the wrapped error.
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Build returns the constructed error.
func (b *Builder) Build() *Error {
	e := b.err
	if len(e.Notes) > 0 {
		e.Notes = append([]string(nil), e.Notes...)
	}
	return &e
}

// Sentinels usable with errors.Is to test for a failure class.
var (
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrUnsupported   = &Error{Kind: KindUnsupported}
	ErrTagValidation = &Error{Kind: KindTagValidation}
	ErrCapacity      = &Error{Kind: KindCapacity}
)

// Configuration is shorthand for a configuration error.
func Configuration(reason Reason, subject, format string, args ...any) *Error {
	return New(KindConfiguration, reason).Subject(subject).Detailf(format, args...).Build()
}

// Unsupported is shorthand for an unsupported-construct error.
func Unsupported(reason Reason, subject, format string, args ...any) *Error {
	return New(KindUnsupported, reason).Subject(subject).Detailf(format, args...).Build()
}

// TagValidation is shorthand for a union tag validation error.
func TagValidation(reason Reason, subject, format string, args ...any) *Error {
	return New(KindTagValidation, reason).Subject(subject).Detailf(format, args...).Build()
}
