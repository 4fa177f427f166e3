package jsonrpc

import (
	"bytes"
	"errors"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// DecodeError reports a document whose shape does not match what is expected:
// wrong type, missing required field or an unknown extra field. Syntax is set
// when the bytes are not JSON at all.
type DecodeError struct {
	Field  string
	Msg    string
	Syntax bool
	Err    error
}

func (e *DecodeError) Error() string {
	msg := e.Msg
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsSyntaxError reports whether err is a DecodeError caused by malformed JSON.
func IsSyntaxError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de) && de.Syntax
}

// checkJSON rejects data that is not well-formed UTF-8 JSON text. gjson alone
// tolerates invalid UTF-8 inside strings.
func checkJSON(data []byte, field string) error {
	trimmed := bytes.TrimSpace(data)
	if !gjson.ValidBytes(trimmed) {
		return &DecodeError{Field: field, Msg: "malformed json value", Syntax: true}
	}
	if !utf8.Valid(trimmed) {
		return &DecodeError{Field: field, Msg: "invalid utf-8", Syntax: true}
	}
	return nil
}
