package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/morezero/portal-node/pkg/validation"
)

// Version is the only protocol version this node accepts.
const Version = "2.0"

// CodeUnsupportedVersion is the validation code attached to the "jsonrpc"
// field when Version does not match.
const CodeUnsupportedVersion = "unsupported jsonrpc version"

var knownRequestFields = map[string]struct{}{
	"jsonrpc": {},
	"method":  {},
	"id":      {},
	"params":  {},
}

// Request is one inbound call. It is built once by ParseRequest, checked once
// by Validate and never mutated afterwards.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      uint32 `json:"id"`
	Params  Params `json:"params"`
}

type wireRequest struct {
	JSONRPC *string `json:"jsonrpc"`
	Method  *string `json:"method"`
	ID      *uint32 `json:"id"`
	Params  Params  `json:"params"`
}

// ParseRequest decodes one JSON-RPC document. Unknown top-level fields,
// missing required fields and wrongly typed values are all rejected with a
// *DecodeError. A missing "params" key yields ParamsNone.
func ParseRequest(data []byte) (*Request, error) {
	trimmed := bytes.TrimSpace(data)
	if err := checkJSON(trimmed, ""); err != nil {
		return nil, err
	}
	top := gjson.ParseBytes(trimmed)
	if !top.IsObject() {
		return nil, &DecodeError{Msg: "request must be a json object"}
	}

	var unknown string
	top.ForEach(func(key, _ gjson.Result) bool {
		if _, ok := knownRequestFields[key.Str]; !ok {
			unknown = key.Str
			return false
		}
		return true
	})
	if unknown != "" {
		return nil, &DecodeError{Field: unknown, Msg: "unknown field"}
	}

	var w wireRequest
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			return nil, de
		}
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return nil, &DecodeError{Field: te.Field, Msg: fmt.Sprintf("invalid %s value", te.Value), Err: err}
		}
		return nil, &DecodeError{Msg: "invalid request", Err: err}
	}

	switch {
	case w.JSONRPC == nil:
		return nil, &DecodeError{Field: "jsonrpc", Msg: "missing field"}
	case w.Method == nil:
		return nil, &DecodeError{Field: "method", Msg: "missing field"}
	case *w.Method == "":
		return nil, &DecodeError{Field: "method", Msg: "must not be empty"}
	case w.ID == nil:
		return nil, &DecodeError{Field: "id", Msg: "missing field"}
	}

	return &Request{
		JSONRPC: *w.JSONRPC,
		Method:  *w.Method,
		ID:      *w.ID,
		Params:  w.Params,
	}, nil
}

// Validate checks the semantic rules that structural parsing cannot express.
// Today that is a single rule: the protocol version must equal Version.
func (r *Request) Validate() error {
	errs := validation.Errors{}
	if r.JSONRPC != Version {
		errs.Add("jsonrpc", validation.Newf(CodeUnsupportedVersion, fmt.Sprintf("got %q, want %q", r.JSONRPC, Version)))
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
