// Package peer converts signed node records (ENRs) between their textual
// "enr:" form, JSON values and verified in-memory records.
package peer

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"net"
	"strings"

	"github.com/ethereum/go-ethereum/p2p/enode"
	gethenr "github.com/ethereum/go-ethereum/p2p/enr"
	"github.com/tidwall/gjson"

	"github.com/morezero/portal-node/pkg/validation"
)

const (
	textPrefix = "enr:"

	// CodeInvalidENR is the validation code for any record that fails to
	// decode or verify.
	CodeInvalidENR = "invalid enr"
)

// Record is a node record whose signature has been verified against the v4
// identity scheme.
type Record struct {
	node *enode.Node
}

// Parse decodes and verifies a textual "enr:..." record.
func Parse(text string) (*Record, error) {
	if !strings.HasPrefix(text, textPrefix) {
		return nil, validation.Newf(CodeInvalidENR, "missing \"enr:\" prefix")
	}
	n, err := enode.Parse(enode.ValidSchemes, text)
	if err != nil {
		return nil, validation.Newf(CodeInvalidENR, err.Error())
	}
	return &Record{node: n}, nil
}

// FromJSON converts a generic JSON value into a Record. The value must be a
// JSON string holding the textual record.
func FromJSON(value json.RawMessage) (*Record, error) {
	if !gjson.ValidBytes(value) {
		return nil, validation.Newf(CodeInvalidENR, "malformed json value")
	}
	v := gjson.ParseBytes(value)
	if v.Type != gjson.String {
		return nil, validation.Newf(CodeInvalidENR, fmt.Sprintf("expected string, got %s", v.Type))
	}
	return Parse(v.Str)
}

// NewLocal signs a record for the local node with sequence number seq.
func NewLocal(key *ecdsa.PrivateKey, seq uint64, ip net.IP, udpPort int) (*Record, error) {
	var r gethenr.Record
	r.SetSeq(seq)
	if ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			r.Set(gethenr.IPv4(ip4))
		} else {
			r.Set(gethenr.IPv6(ip))
		}
	}
	if udpPort > 0 {
		r.Set(gethenr.UDP(uint16(udpPort)))
	}
	if err := enode.SignV4(&r, key); err != nil {
		return nil, fmt.Errorf("peer:record - failed to sign local record: %w", err)
	}
	n, err := enode.New(enode.ValidSchemes, &r)
	if err != nil {
		return nil, fmt.Errorf("peer:record - failed to verify local record: %w", err)
	}
	return &Record{node: n}, nil
}

// NodeID returns the hex-encoded node id.
func (r *Record) NodeID() string {
	return r.node.ID().String()
}

// Seq returns the record sequence number.
func (r *Record) Seq() uint64 {
	return r.node.Seq()
}

// IP returns the advertised IP, or nil.
func (r *Record) IP() net.IP {
	return r.node.IP()
}

// UDP returns the advertised UDP port, or 0.
func (r *Record) UDP() int {
	return r.node.UDP()
}

// String returns the canonical "enr:" text of the record.
func (r *Record) String() string {
	return r.node.String()
}

// MarshalJSON encodes the record as its textual form.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes and verifies a textual record.
func (r *Record) UnmarshalJSON(data []byte) error {
	rec, err := FromJSON(data)
	if err != nil {
		return err
	}
	*r = *rec
	return nil
}
