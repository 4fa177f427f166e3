// Package jsonrpc is the typed boundary between raw JSON-RPC documents and the
// node's per-network actors: request envelopes, parameter values, dispatch
// messages and the peer-record list decoder.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// ParamsKind identifies which shape a Params value holds.
type ParamsKind int

const (
	ParamsNone ParamsKind = iota
	ParamsPositional
	ParamsNamed
)

func (k ParamsKind) String() string {
	switch k {
	case ParamsPositional:
		return "positional"
	case ParamsNamed:
		return "named"
	default:
		return "none"
	}
}

// Member is one key/value pair of named params.
type Member struct {
	Key   string
	Value json.RawMessage
}

// Params holds exactly one of: no params, an ordered list of values, or an
// ordered set of named values. The zero value is ParamsNone.
type Params struct {
	kind       ParamsKind
	positional []json.RawMessage
	named      []Member
}

// NoParams returns the empty variant.
func NoParams() Params {
	return Params{}
}

// Positional builds positional params from the given values.
func Positional(values ...json.RawMessage) Params {
	if values == nil {
		values = []json.RawMessage{}
	}
	return Params{kind: ParamsPositional, positional: values}
}

// Named builds named params. A repeated key replaces the earlier value in
// place.
func Named(members ...Member) Params {
	p := Params{kind: ParamsNamed, named: make([]Member, 0, len(members))}
	for _, m := range members {
		p.set(m.Key, m.Value)
	}
	return p
}

func (p *Params) set(key string, value json.RawMessage) {
	for i := range p.named {
		if p.named[i].Key == key {
			p.named[i].Value = value
			return
		}
	}
	p.named = append(p.named, Member{Key: key, Value: value})
}

// ParseParams decodes a generic JSON value into Params. Empty input (the field
// was absent) and null give ParamsNone; an array gives ParamsPositional; an
// object gives ParamsNamed. Every other shape is rejected.
func ParseParams(raw json.RawMessage) (Params, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return NoParams(), nil
	}
	if err := checkJSON(trimmed, "params"); err != nil {
		return Params{}, err
	}

	v := gjson.ParseBytes(trimmed)
	switch {
	case v.IsArray():
		values := []json.RawMessage{}
		var err error
		v.ForEach(func(_, item gjson.Result) bool {
			var c json.RawMessage
			if c, err = compact(item.Raw); err != nil {
				return false
			}
			values = append(values, c)
			return true
		})
		if err != nil {
			return Params{}, &DecodeError{Field: "params", Msg: "invalid array element", Err: err}
		}
		return Positional(values...), nil
	case v.IsObject():
		p := Params{kind: ParamsNamed, named: []Member{}}
		var err error
		v.ForEach(func(key, item gjson.Result) bool {
			var c json.RawMessage
			if c, err = compact(item.Raw); err != nil {
				return false
			}
			p.set(key.Str, c)
			return true
		})
		if err != nil {
			return Params{}, &DecodeError{Field: "params", Msg: "invalid object member", Err: err}
		}
		return p, nil
	case v.Type == gjson.Null:
		return NoParams(), nil
	default:
		return Params{}, &DecodeError{
			Field: "params",
			Msg:   fmt.Sprintf("expected array, object or null, got %s", shapeName(v)),
		}
	}
}

// Kind returns the variant held.
func (p Params) Kind() ParamsKind {
	return p.kind
}

// Len is the number of positional values or named members.
func (p Params) Len() int {
	switch p.kind {
	case ParamsPositional:
		return len(p.positional)
	case ParamsNamed:
		return len(p.named)
	default:
		return 0
	}
}

// At returns the i-th positional value.
func (p Params) At(i int) (json.RawMessage, bool) {
	if p.kind != ParamsPositional || i < 0 || i >= len(p.positional) {
		return nil, false
	}
	return p.positional[i], true
}

// Get returns the named value for key.
func (p Params) Get(key string) (json.RawMessage, bool) {
	if p.kind != ParamsNamed {
		return nil, false
	}
	for _, m := range p.named {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Members returns a copy of the named members in insertion order.
func (p Params) Members() []Member {
	if p.kind != ParamsNamed {
		return nil
	}
	return append([]Member(nil), p.named...)
}

// Clone returns an independent copy.
func (p Params) Clone() Params {
	c := Params{kind: p.kind}
	if p.positional != nil {
		c.positional = make([]json.RawMessage, len(p.positional))
		for i, v := range p.positional {
			c.positional[i] = append(json.RawMessage(nil), v...)
		}
	}
	if p.named != nil {
		c.named = make([]Member, len(p.named))
		for i, m := range p.named {
			c.named[i] = Member{Key: m.Key, Value: append(json.RawMessage(nil), m.Value...)}
		}
	}
	return c
}

// Value converts the params back into a generic JSON value: null, an array or
// an object. It never fails.
func (p Params) Value() json.RawMessage {
	var buf bytes.Buffer
	switch p.kind {
	case ParamsPositional:
		buf.WriteByte('[')
		for i, v := range p.positional {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.Write(v)
		}
		buf.WriteByte(']')
	case ParamsNamed:
		buf.WriteByte('{')
		for i, m := range p.named {
			if i > 0 {
				buf.WriteByte(',')
			}
			// Marshalling a string cannot fail.
			key, _ := json.Marshal(m.Key)
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(m.Value)
		}
		buf.WriteByte('}')
	default:
		buf.WriteString("null")
	}
	return buf.Bytes()
}

// MarshalJSON implements json.Marshaler.
func (p Params) MarshalJSON() ([]byte, error) {
	return p.Value(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Params) UnmarshalJSON(data []byte) error {
	parsed, err := ParseParams(data)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func compact(raw string) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(raw)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func shapeName(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return "string"
	case gjson.Number:
		return "number"
	case gjson.True, gjson.False:
		return "boolean"
	default:
		return "unknown"
	}
}
