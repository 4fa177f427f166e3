// Package validation holds the semantic error types shared by the request
// validator and the peer-record decoders.
package validation

import (
	"sort"
	"strings"
)

// Error is a single rule violation. Two errors with the same code and message
// compare equal.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Is matches another *Error with the same code, so sentinel errors work with
// errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates an Error with the given code and no message.
func New(code string) *Error {
	return &Error{Code: code}
}

// Newf creates an Error with a code and a message.
func Newf(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errors collects rule violations keyed by the field they apply to.
type Errors map[string][]*Error

// Add records err against field.
func (e Errors) Add(field string, err *Error) {
	e[field] = append(e[field], err)
}

// HasError reports whether any violation was recorded for field.
func (e Errors) HasError(field string) bool {
	return len(e[field]) > 0
}

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		for _, err := range e[f] {
			parts = append(parts, f+": "+err.Error())
		}
	}
	return strings.Join(parts, "; ")
}
