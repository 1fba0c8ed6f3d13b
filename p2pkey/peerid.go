// Copyright 2024 The ethsentry Authors
// This file is part of the ethsentry library.
//
// The ethsentry library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ethsentry library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ethsentry library. If not, see <http://www.gnu.org/licenses/>.

// Package p2pkey implements the peer-identity algebra: the long-form
// secp256k1 public key used on the wire, its keccak-256 digest used as the
// swarm's internal key, and the enode:// node-record grammar tying an
// identity to a network address.
package p2pkey

import (
	"crypto/ecdsa"
	"fmt"
	"net"
	"regexp"
	"strconv"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/p2p/enode"
)

// PubKeyLength is the length in bytes of an uncompressed secp256k1 point
// with its leading 0x04 tag stripped off: 64 bytes of X‖Y.
const PubKeyLength = 64

// PubKey is the X‖Y encoding of a peer's secp256k1 public key: the form
// carried in enode:// URIs and RLPx Hello messages.
type PubKey [PubKeyLength]byte

// Hash is the keccak-256 digest of a PubKey; the swarm-internal peer key.
type Hash [32]byte

func (h Hash) String() string { return fmt.Sprintf("%x", [32]byte(h)) }

// FromECDSA strips the uncompressed-point tag byte (0x04) from a public key
// and returns the 64-byte X‖Y encoding.
func FromECDSA(pub *ecdsa.PublicKey) PubKey {
	var out PubKey
	raw := crypto.FromECDSAPub(pub)
	copy(out[:], raw[1:])
	return out
}

// ToECDSA re-prepends the 0x04 tag and validates the point lies on the
// secp256k1 curve, returning an error for any id that does not decode to a
// valid public key.
func ToECDSA(id PubKey) (*ecdsa.PublicKey, error) {
	buf := make([]byte, 1+PubKeyLength)
	buf[0] = 0x04
	copy(buf[1:], id[:])
	return crypto.UnmarshalPubkey(buf)
}

// HashOf computes the keccak-256 digest of a PubKey, memoized by callers
// through ethproto's peer_id_cache, never here — this function is pure.
func HashOf(id PubKey) Hash {
	var h Hash
	copy(h[:], crypto.Keccak256(id[:]))
	return h
}

// NodeRecord is the identity/address pair: a socket address plus the node's
// public key.
type NodeRecord struct {
	IP   net.IP
	Port uint16
	ID   PubKey
}

// String renders the canonical enode://<128-hex>@<host>:<port> form.
func (r NodeRecord) String() string {
	return fmt.Sprintf("enode://%x@%s:%d", r.ID[:], r.IP.String(), r.Port)
}

// ToENode converts a NodeRecord to the go-ethereum enode.Node the wired
// p2p/discover and p2p.Server APIs expect, validating the public key as it
// goes.
func (r NodeRecord) ToENode() (*enode.Node, error) {
	pub, err := ToECDSA(r.ID)
	if err != nil {
		return nil, fmt.Errorf("p2pkey: invalid node id: %w", err)
	}
	return enode.NewV4(pub, r.IP, int(r.Port), int(r.Port)), nil
}

var enodeRE = regexp.MustCompile(`^enode://([0-9a-fA-F]{128})@([^:]+):(\d+)$`)

// ErrMalformedEnode is returned by Parse for any input not matching the
// enode://<128-hex>@<host>:<port> grammar.
var ErrMalformedEnode = fmt.Errorf("p2pkey: malformed enode URI")

// Parse accepts the canonical enode://<128-hex-pubkey>@<host>:<port> form,
// rejecting malformed hex, malformed host, and the wrong key length (R2).
func Parse(uri string) (NodeRecord, error) {
	m := enodeRE.FindStringSubmatch(uri)
	if m == nil {
		return NodeRecord{}, ErrMalformedEnode
	}
	raw, err := hexDecode(m[1])
	if err != nil {
		return NodeRecord{}, fmt.Errorf("%w: %v", ErrMalformedEnode, err)
	}
	if len(raw) != PubKeyLength {
		return NodeRecord{}, fmt.Errorf("%w: key length %d != %d", ErrMalformedEnode, len(raw), PubKeyLength)
	}
	ip := net.ParseIP(m[2])
	if ip == nil && !isHostname(m[2]) {
		// Bare hostnames are accepted too; discovery sources resolve them
		// lazily, so only a host that is neither a valid IP nor a
		// syntactically plausible hostname is rejected here.
		return NodeRecord{}, fmt.Errorf("%w: bad host %q", ErrMalformedEnode, m[2])
	}
	port, err := strconv.ParseUint(m[3], 10, 16)
	if err != nil {
		return NodeRecord{}, fmt.Errorf("%w: bad port %q", ErrMalformedEnode, m[3])
	}
	var id PubKey
	copy(id[:], raw)
	return NodeRecord{IP: ip, Port: uint16(port), ID: id}, nil
}

func isHostname(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '.' || r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

func hexDecode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex string")
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, err := hexVal(s[2*i])
		if err != nil {
			return nil, err
		}
		lo, err := hexVal(s[2*i+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexVal(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex digit %q", c)
	}
}
