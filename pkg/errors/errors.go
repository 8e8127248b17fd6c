// Package errors defines the structured error type used across the
// reconciliation engine and its CLI.
//
// Every error carries a category and a code so callers can react
// programmatically: configuration errors abort before any matching runs,
// conflict errors signal a double-commit or duplicate submission, and
// not-found errors signal an unknown record id. Per-record data problems
// (missing merchant text, thin dates) are never errors; the scorers absorb
// them into low similarity values instead.
package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Category groups errors by the kind of failure they represent.
type Category string

const (
	CategoryFile           Category = "file"
	CategoryParse          Category = "parse"
	CategoryValidation     Category = "validation"
	CategoryConfiguration  Category = "configuration"
	CategoryConflict       Category = "conflict"
	CategoryNotFound       Category = "not_found"
	CategoryReconciliation Category = "reconciliation"
	CategoryInternal       Category = "internal"
)

// Code identifies a specific failure within a category.
type Code string

const (
	// File errors
	CodeFileNotFound   Code = "file_not_found"
	CodeFilePermission Code = "file_permission"

	// Parse errors
	CodeInvalidFormat Code = "invalid_format"
	CodeMissingColumn Code = "missing_column"
	CodeInvalidData   Code = "invalid_data"

	// Validation errors
	CodeInvalidAmount Code = "invalid_amount"
	CodeInvalidDate   Code = "invalid_date"
	CodeInvalidKind   Code = "invalid_kind"
	CodeMissingField  Code = "missing_field"
	CodeDuplicateID   Code = "duplicate_id"
	CodeSameKindLink  Code = "same_kind_link"

	// Configuration errors
	CodeInvalidPolicy     Code = "invalid_policy"
	CodeInvalidWeights    Code = "invalid_weights"
	CodeNegativeTolerance Code = "negative_tolerance"
	CodeInvalidConfig     Code = "invalid_config"

	// Conflict errors
	CodeAlreadyCommitted Code = "already_committed"
	CodeAlreadyMatched   Code = "already_matched"

	// Not-found errors
	CodeRecordNotFound Code = "record_not_found"
	CodeLinkNotFound   Code = "link_not_found"

	// Reconciliation errors
	CodeMatchingFailed  Code = "matching_failed"
	CodeProcessingError Code = "processing_error"

	// Internal errors
	CodeUnexpectedError Code = "unexpected_error"
)

// Context carries additional key/value detail about an error.
type Context map[string]interface{}

// Error is the structured error type for the reconciliation service.
type Error struct {
	Category   Category          `json:"category"`
	Code       Code              `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode maps the error category to a process exit code for the CLI.
func (e *Error) ExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryConflict, CategoryNotFound:
		return 5
	case CategoryReconciliation, CategoryInternal:
		return 6
	default:
		return 1
	}
}

// WithContext attaches a key/value pair to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion attaches a remediation hint to the error.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// New creates a new Error with a captured stack trace.
func New(category Category, code Code, message string) *Error {
	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with category and code context.
func Wrap(err error, category Category, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// ConfigurationError reports an invalid engine or policy setting. These
// errors fail fast at construction time and are never clamped or defaulted
// away, since that would hide a caller bug.
func ConfigurationError(code Code, setting string, value interface{}) *Error {
	var message, suggestion string
	switch code {
	case CodeInvalidWeights:
		message = fmt.Sprintf("invalid matching weights: %v", value)
		suggestion = "weights must each be in [0,1] and sum to 1.0"
	case CodeNegativeTolerance:
		message = fmt.Sprintf("tolerance '%s' cannot be negative: %v", setting, value)
		suggestion = "use zero for exact matching or a positive tolerance"
	case CodeInvalidPolicy:
		message = fmt.Sprintf("invalid matching policy setting '%s': %v", setting, value)
		suggestion = "check the policy documentation for valid values"
	default:
		message = fmt.Sprintf("invalid configuration '%s': %v", setting, value)
		suggestion = "check the configuration and try again"
	}

	return New(CategoryConfiguration, code, message).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// ValidationError reports invalid record or request data.
func ValidationError(code Code, field string, value interface{}) *Error {
	var message, suggestion string
	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
		suggestion = "amounts must be valid decimal numbers (e.g. '42.50')"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
		suggestion = "use date format YYYY-MM-DD or an RFC3339 timestamp"
	case CodeInvalidKind:
		message = fmt.Sprintf("invalid record kind in field '%s': %v", field, value)
		suggestion = "record kind must be TRANSACTION or RECEIPT"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeDuplicateID:
		message = fmt.Sprintf("duplicate record id: %v", value)
		suggestion = "record ids must be unique within their collection"
	case CodeSameKindLink:
		message = fmt.Sprintf("cannot link records of the same kind (field '%s': %v)", field, value)
		suggestion = "a link pairs a transaction with a receipt, never two of the same kind"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	return New(CategoryValidation, code, message).
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConflictError reports a double-commit or duplicate submission. It is
// deliberately distinct from not-found and validation errors because it
// signals a caller-side race rather than bad input.
func ConflictError(code Code, recordID, counterpartID string) *Error {
	var message, suggestion string
	switch code {
	case CodeAlreadyCommitted:
		message = fmt.Sprintf("record '%s' is already committed to '%s' in this session", recordID, counterpartID)
		suggestion = "unlink the existing match before committing a new one"
	case CodeAlreadyMatched:
		message = fmt.Sprintf("record '%s' was matched to '%s' in a prior session", recordID, counterpartID)
		suggestion = "explicitly unlink the record before re-matching it"
	default:
		message = fmt.Sprintf("conflicting commitment for record '%s'", recordID)
		suggestion = "check for duplicate submissions"
	}

	return New(CategoryConflict, code, message).
		WithSuggestion(suggestion).
		WithContext("record_id", recordID).
		WithContext("counterpart_id", counterpartID)
}

// NotFoundError reports an unknown record or link id.
func NotFoundError(code Code, id string) *Error {
	var message string
	switch code {
	case CodeRecordNotFound:
		message = fmt.Sprintf("record '%s' is not part of this session", id)
	case CodeLinkNotFound:
		message = fmt.Sprintf("no committed match found for record '%s'", id)
	default:
		message = fmt.Sprintf("'%s' not found", id)
	}

	return New(CategoryNotFound, code, message).
		WithContext("id", id)
}

// FileError reports a problem accessing an input or output file.
func FileError(code Code, path string, err error) *Error {
	var message, suggestion string
	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	var result *Error
	if err != nil {
		result = Wrap(err, CategoryFile, code, message)
	} else {
		result = New(CategoryFile, code, message)
	}
	return result.WithSuggestion(suggestion).WithContext("file_path", path)
}

// ParseError reports a problem in an input file at a specific location.
func ParseError(code Code, file string, line int, column, value string, err error) *Error {
	var message, suggestion string
	switch code {
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column '%s' in file %s", column, file)
		suggestion = "verify the file has all required columns with correct headers"
	case CodeInvalidData:
		message = fmt.Sprintf("invalid data in file %s at line %d, column '%s': '%s'", file, line, column, value)
		suggestion = "correct the data format or remove the invalid entry"
	default:
		message = fmt.Sprintf("invalid format in file %s at line %d", file, line)
		suggestion = "check the data format and ensure it matches the expected structure"
	}

	var result *Error
	if err != nil {
		result = Wrap(err, CategoryParse, code, message)
	} else {
		result = New(CategoryParse, code, message)
	}
	return result.
		WithSuggestion(suggestion).
		WithContext("file", file).
		WithContext("line", line).
		WithContext("column", column)
}

// ReconciliationError reports a failure during a matching run.
func ReconciliationError(code Code, operation string, err error) *Error {
	message := fmt.Sprintf("reconciliation error during %s", operation)
	if code == CodeMatchingFailed {
		message = fmt.Sprintf("matching failed during %s", operation)
	}

	var result *Error
	if err != nil {
		result = Wrap(err, CategoryReconciliation, code, message)
	} else {
		result = New(CategoryReconciliation, code, message)
	}
	return result.WithContext("operation", operation)
}

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, category Category) bool {
	if e, ok := As(err); ok {
		return e.Category == category
	}
	return false
}

// IsConflict reports whether err is a conflict error (double-commit).
func IsConflict(err error) bool {
	return IsCategory(err, CategoryConflict)
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return IsCategory(err, CategoryConfiguration)
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return IsCategory(err, CategoryValidation)
}

// Describe renders a multi-line human-readable description of the error,
// including context and suggestion, for CLI display.
func Describe(err *Error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s\n", err.Message)
	if len(err.Context) > 0 {
		b.WriteString("Context:\n")
		for key, value := range err.Context {
			fmt.Fprintf(&b, "  %s: %v\n", key, value)
		}
	}
	if err.Suggestion != "" {
		fmt.Fprintf(&b, "Suggestion: %s\n", err.Suggestion)
	}
	return b.String()
}
