package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// JSON-RPC 2.0 error codes, plus the node's server-defined range.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603

	CodeServer                 = -32000
	CodeDestinationUnavailable = -32001
	CodeRateLimited            = -32005
)

// Error is the structured error object of a response. It doubles as the
// structured error type of the general overlay destination.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewError creates an Error.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Response is one outbound reply. ID is nil when the request id could not be
// read.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint32         `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResult builds a success response. A value that cannot be encoded turns
// into an internal error response.
func NewResult(id uint32, value any) *Response {
	data, err := json.Marshal(value)
	if err != nil {
		return NewErrorResponse(&id, NewError(CodeInternal, "failed to encode result: "+err.Error()))
	}
	return &Response{JSONRPC: Version, ID: &id, Result: data}
}

// NewErrorResponse builds an error response.
func NewErrorResponse(id *uint32, err *Error) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: err}
}
