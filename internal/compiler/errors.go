package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/sieve/internal/ast"
	"github.com/roach88/sieve/internal/schema"
)

// Code categorizes compilation failures.
type Code string

const (
	// CodeUnknownField indicates a path segment names no declared field.
	CodeUnknownField Code = "UNKNOWN_FIELD"

	// CodeNotNavigable indicates a path continues past a scalar, enum, or
	// boolean field, or sorts through a list.
	CodeNotNavigable Code = "NOT_NAVIGABLE"

	// CodeTypeMismatch indicates a literal or operator does not fit the
	// field's declared kind, including null on a non-nullable field.
	CodeTypeMismatch Code = "TYPE_MISMATCH"

	// CodeUnsupportedOperator indicates the chosen backend cannot express
	// the operator.
	CodeUnsupportedOperator Code = "UNSUPPORTED_OPERATOR"

	// CodeMalformedAST indicates a structurally invalid tree.
	CodeMalformedAST Code = "MALFORMED_AST"
)

// CompileError is returned for every compilation failure. Compilation
// never partially succeeds: any error aborts the whole pass.
type CompileError struct {
	// Code identifies the error category.
	Code Code

	// Path is the dotted logical field path where compilation failed.
	Path string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Sentinels for errors.Is. A CompileError matches the sentinel with the
// same Code.
var (
	ErrUnknownField        = &CompileError{Code: CodeUnknownField}
	ErrNotNavigable        = &CompileError{Code: CodeNotNavigable}
	ErrTypeMismatch        = &CompileError{Code: CodeTypeMismatch}
	ErrUnsupportedOperator = &CompileError{Code: CodeUnsupportedOperator}
	ErrMalformedAST        = &CompileError{Code: CodeMalformedAST}
)

// Error implements the error interface.
func (e *CompileError) Error() string {
	switch {
	case e.Message == "":
		return string(e.Code)
	case e.Path != "":
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, e.Path)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// Is matches sentinels by code.
func (e *CompileError) Is(target error) bool {
	t, ok := target.(*CompileError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Path == "" && t.Code == e.Code
}

// CodeOf returns the code of the first CompileError in err's chain.
func CodeOf(err error) (Code, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code, true
	}
	return "", false
}

// IsUnknownField returns true if err is an unknown field error.
func IsUnknownField(err error) bool { return errors.Is(err, ErrUnknownField) }

// IsNotNavigable returns true if err is a not navigable error.
func IsNotNavigable(err error) bool { return errors.Is(err, ErrNotNavigable) }

// IsTypeMismatch returns true if err is a type mismatch error.
func IsTypeMismatch(err error) bool { return errors.Is(err, ErrTypeMismatch) }

// IsUnsupportedOperator returns true if err is an unsupported operator error.
func IsUnsupportedOperator(err error) bool { return errors.Is(err, ErrUnsupportedOperator) }

// IsMalformedAST returns true if err is a malformed AST error.
func IsMalformedAST(err error) bool { return errors.Is(err, ErrMalformedAST) }

// Unsupported is returned by adapters for operators they cannot express.
// The compiler fills in the field path.
func Unsupported(op ast.Op, reason string) *CompileError {
	msg := fmt.Sprintf("operator %s is not supported", op)
	if reason != "" {
		msg += ": " + reason
	}
	return &CompileError{Code: CodeUnsupportedOperator, Message: msg}
}

// fromResolve maps a schema resolution failure into the taxonomy. prefix
// is the logical path of the table the resolution started from.
func fromResolve(prefix []string, err error) *CompileError {
	ce := &CompileError{Code: CodeUnknownField, Message: err.Error(), Err: err}
	var re *schema.ResolveError
	if errors.As(err, &re) {
		end := min(re.Index+1, len(re.Path))
		ce.Path = joinPath(append(append([]string(nil), prefix...), re.Path[:end]...))
		ce.Message = re.Err.Error()
	}
	if errors.Is(err, schema.ErrNotNavigable) {
		ce.Code = CodeNotNavigable
	}
	return ce
}

// fromSyntax maps a structural AST problem into the taxonomy.
func fromSyntax(err error) *CompileError {
	ce := &CompileError{Code: CodeMalformedAST, Message: err.Error(), Err: err}
	var se *ast.SyntaxError
	if errors.As(err, &se) {
		ce.Path = se.Path
		ce.Message = se.Message
	}
	return ce
}
