// Package bamlerr defines the small closed error taxonomy shared by every
// stage of the toolchain: parsing, validation, template rendering,
// coercion, client calls, and caller misuse.
package bamlerr

import "fmt"

// Code classifies an Error into one of the taxonomy buckets from the
// error-handling design: parser and validator errors are accumulated in
// bulk per source file, call-time errors surface as structured result
// variants, and the engine never panics into the caller's stack on bad
// model output.
type Code int

const (
	// ParseError covers syntactic issues in .baml source text.
	ParseError Code = iota
	// ValidationError covers semantic issues: unknown name, duplicate
	// declaration, dependency cycle, missing required client field.
	ValidationError
	// TemplateError covers type-check or runtime errors in a template.
	TemplateError
	// CoercionError covers a tolerant parse that could not satisfy the
	// target type.
	CoercionError
	// ClientError covers a provider-classified error response.
	ClientError
	// UserFailure covers caller-visible misuse: invalid arguments,
	// unknown function, validation against a function signature.
	UserFailure
	// InternalFailure covers unexpected state or unavailable dependencies.
	InternalFailure
)

func (c Code) String() string {
	switch c {
	case ParseError:
		return "ParseError"
	case ValidationError:
		return "ValidationError"
	case TemplateError:
		return "TemplateError"
	case CoercionError:
		return "CoercionError"
	case ClientError:
		return "ClientError"
	case UserFailure:
		return "UserFailure"
	case InternalFailure:
		return "InternalFailure"
	default:
		return "UnknownError"
	}
}

// Span is a source-text location. It is declared here rather than in the
// AST package to avoid an import cycle (ast imports bamlerr for its own
// ParseError diagnostics); AST nodes carry this type as their span.
type Span struct {
	File      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

func (s Span) String() string {
	if s.File == "" {
		return fmt.Sprintf("%d:%d", s.StartLine, s.StartCol)
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.StartLine, s.StartCol)
}

// Error is the single error type returned across package boundaries.
// Thread Safety: immutable after construction, safe for concurrent reads.
type Error struct {
	Code    Code
	Message string
	Span    *Span
	Wrapped error
}

func (e *Error) Error() string {
	if e.Span != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Span)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// New constructs an Error with no span.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// At constructs an Error anchored to a span.
func At(code Code, span Span, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Span: &span}
}

// Wrap attaches an underlying cause while preserving the taxonomy code.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Wrapped: cause}
}

// Diagnostics accumulates a batch of errors collected during parsing or
// validation instead of aborting on the first problem.
type Diagnostics struct {
	Errors   []*Error
	Warnings []*Error
}

func (d *Diagnostics) PushError(err *Error) { d.Errors = append(d.Errors, err) }

func (d *Diagnostics) PushWarning(err *Error) { d.Warnings = append(d.Warnings, err) }

func (d *Diagnostics) HasErrors() bool { return len(d.Errors) > 0 }

// Combined joins all errors into a single error for callers that just want
// a pass/fail signal with a readable summary.
func (d *Diagnostics) Combined() error {
	if !d.HasErrors() {
		return nil
	}
	msg := fmt.Sprintf("%d error(s):", len(d.Errors))
	for _, e := range d.Errors {
		msg += "\n  " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}
