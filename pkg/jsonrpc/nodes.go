package jsonrpc

import (
	"encoding/json"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/morezero/portal-node/pkg/peer"
	"github.com/morezero/portal-node/pkg/validation"
)

// Decoder errors. ErrEmptyEnrs fires when "enrs" is present but not an array;
// the label is kept for compatibility with existing clients.
var (
	ErrMissingTotal = validation.New("missing total param")
	ErrInvalidTotal = validation.New("invalid total param")
	ErrMissingEnrs  = validation.New("missing enrs param")
	ErrEmptyEnrs    = validation.New("empty enrs param")
)

// NodesParams is a page of peer records: the total page count announced by
// the sender and the records of this page.
type NodesParams struct {
	Total uint8          `json:"total"`
	Enrs  []*peer.Record `json:"enrs"`
}

// DecodeNodesParams extracts NodesParams from a generic JSON value. Every
// record must convert; the first failing element's error is returned as is.
func DecodeNodesParams(value json.RawMessage) (*NodesParams, error) {
	return decodeNodesParams(value, peer.FromJSON)
}

func decodeNodesParams(value json.RawMessage, convert func(json.RawMessage) (*peer.Record, error)) (*NodesParams, error) {
	if err := checkJSON(value, "params"); err != nil {
		return nil, err
	}

	// A repeated key resolves to its last occurrence, as in ParseParams.
	var total, enrs gjson.Result
	gjson.ParseBytes(value).ForEach(func(key, item gjson.Result) bool {
		switch key.Str {
		case "total":
			total = item
		case "enrs":
			enrs = item
		}
		return true
	})

	if !total.Exists() {
		return nil, ErrMissingTotal
	}
	if total.Type != gjson.Number {
		return nil, ErrInvalidTotal
	}
	// Only plain non-negative integer literals that fit a byte are accepted.
	n, err := strconv.ParseUint(total.Raw, 10, 8)
	if err != nil {
		return nil, ErrInvalidTotal
	}

	if !enrs.Exists() {
		return nil, ErrMissingEnrs
	}
	if !enrs.IsArray() {
		return nil, ErrEmptyEnrs
	}

	out := &NodesParams{Total: uint8(n), Enrs: []*peer.Record{}}
	var convErr error
	enrs.ForEach(func(_, item gjson.Result) bool {
		rec, err := convert(json.RawMessage(item.Raw))
		if err != nil {
			convErr = err
			return false
		}
		out.Enrs = append(out.Enrs, rec)
		return true
	})
	if convErr != nil {
		return nil, convErr
	}
	return out, nil
}

// UnmarshalJSON runs the decoder, so NodesParams can be embedded in typed
// params.
func (p *NodesParams) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeNodesParams(data)
	if err != nil {
		return err
	}
	*p = *decoded
	return nil
}

// DecodeNodesArgument decodes NodesParams from request params: the first
// positional element, or the named members taken as one object.
func DecodeNodesArgument(p Params) (*NodesParams, error) {
	if v, ok := p.At(0); ok {
		return DecodeNodesParams(v)
	}
	return DecodeNodesParams(p.Value())
}
