package cron

import (
	"fmt"
	"strings"

	"github.com/taskscheduler/core/internal/errs"
)

// Diagnostic describes one field-level parse failure.
type Diagnostic struct {
	Field   string
	Message string
}

// ParseError reports one or more field-level diagnostics from a failed
// Parse call. It wraps errs.ErrInvalidExpression so callers can classify it
// with errors.Is (or errs.IsInvalidExpression) without inspecting Diagnostics.
type ParseError struct {
	Diagnostics []Diagnostic
}

func (e *ParseError) Error() string {
	parts := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		parts[i] = fmt.Sprintf("%s: %s", d.Field, d.Message)
	}
	return "invalid cron expression: " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is(err, errs.ErrInvalidExpression) succeed for any ParseError.
func (e *ParseError) Unwrap() error { return errs.ErrInvalidExpression }

func fieldError(field, format string, args ...any) error {
	return &ParseError{Diagnostics: []Diagnostic{{Field: field, Message: fmt.Sprintf(format, args...)}}}
}
