// Package validation provides input validation helpers and middleware for the glycoscreen API.
package validation

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (64KB)
const MaxRequestSize = 64 << 10

// Failure reasons reported alongside each field.
const (
	ReasonMissing    = "missing_feature"
	ReasonOutOfRange = "out_of_range"
	ReasonUnknown    = "unknown_feature"
)

var (
	ErrMissing    = errors.New("missing feature")
	ErrOutOfRange = errors.New("value out of range")
	ErrUnknown    = errors.New("unknown feature")
)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// ValidationError represents a validation error on a single field
type ValidationError struct {
	Field   string `json:"field"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e))
	for i := range e {
		parts[i] = e[i].Error()
	}
	return strings.Join(parts, "; ")
}

// Unwrap exposes every field error so errors.Is matches any of their causes.
func (e ValidationErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i := range e {
		errs[i] = &e[i]
	}
	return errs
}

// Fields returns the names of the failing fields, in order.
func (e ValidationErrors) Fields() []string {
	fields := make([]string, len(e))
	for i := range e {
		fields[i] = e[i].Field
	}
	return fields
}

// Validate runs validators and returns errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errors ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errors = append(errors, *err)
		}
	}
	return errors
}

// First runs validators in order and reports only the first failure, so a
// field produces at most one error.
func First(validators ...func() *ValidationError) func() *ValidationError {
	return func() *ValidationError {
		for _, v := range validators {
			if err := v(); err != nil {
				return err
			}
		}
		return nil
	}
}

// Present checks that a required field was supplied
func Present(field string, present bool) func() *ValidationError {
	return func() *ValidationError {
		if !present {
			return &ValidationError{Field: field, Reason: ReasonMissing, Message: "is required", Err: ErrMissing}
		}
		return nil
	}
}

// Known rejects fields outside the accepted set
func Known(field string, known bool) func() *ValidationError {
	return func() *ValidationError {
		if !known {
			return &ValidationError{Field: field, Reason: ReasonUnknown, Message: "is not an accepted field", Err: ErrUnknown}
		}
		return nil
	}
}

// Numeric checks that a submitted value decoded as a number
func Numeric(field string, numeric bool) func() *ValidationError {
	return func() *ValidationError {
		if !numeric {
			return outOfRange(field, "must be a number")
		}
		return nil
	}
}

// Finite rejects NaN and infinities
func Finite(field string, value float64) func() *ValidationError {
	return func() *ValidationError {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return outOfRange(field, "must be a finite number")
		}
		return nil
	}
}

// AtLeast checks a lower bound (inclusive)
func AtLeast(field string, value, min float64) func() *ValidationError {
	return func() *ValidationError {
		if value < min {
			return outOfRange(field, "must be at least "+formatNumber(min))
		}
		return nil
	}
}

// AtMost checks an upper bound (inclusive)
func AtMost(field string, value, max float64) func() *ValidationError {
	return func() *ValidationError {
		if value > max {
			return outOfRange(field, "must be at most "+formatNumber(max))
		}
		return nil
	}
}

// Whole checks that a value has no fractional part
func Whole(field string, value float64) func() *ValidationError {
	return func() *ValidationError {
		if value != math.Trunc(value) {
			return outOfRange(field, "must be a whole number")
		}
		return nil
	}
}

// ErrorResponse renders validation errors in the API error envelope.
func ErrorResponse(errs ValidationErrors) gin.H {
	return gin.H{
		"error":   "validation_failed",
		"message": errs.Error(),
		"fields":  []ValidationError(errs),
	}
}

func outOfRange(field, message string) *ValidationError {
	return &ValidationError{Field: field, Reason: ReasonOutOfRange, Message: message, Err: ErrOutOfRange}
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return fmt.Sprintf("%g", v)
}
