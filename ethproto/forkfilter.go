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

package ethproto

import "fmt"

// ForkFilter validates an incoming peer's ForkID against our own. This
// relay tracks no live chain head (stateless, by design), so validation is
// reduced to the one check that doesn't require knowing the current block:
// checksum compatibility against our own announced fork set. A peer is
// accepted only when its fork hash is our own or one of the compatible
// hashes the filter was built with; any other hash is rejected. The Next
// field is never compared, so we never get to assert which of us is stale.
type ForkFilter struct {
	self  ForkID
	known map[[4]byte]struct{}
}

// NewForkFilter builds a filter that accepts self's own hash plus any
// additional historical hashes the caller considers compatible (e.g. a
// short list of recent fork checksums for a rolling upgrade window).
func NewForkFilter(self ForkID, compatible ...[4]byte) *ForkFilter {
	known := make(map[[4]byte]struct{}, len(compatible)+1)
	known[self.Hash] = struct{}{}
	for _, h := range compatible {
		known[h] = struct{}{}
	}
	return &ForkFilter{self: self, known: known}
}

// ErrForkMismatch is returned by Validate for an unrecognised fork hash.
var ErrForkMismatch = fmt.Errorf("ethproto: fork id mismatch")

// Validate reports whether peer is compatible with us. It never blocks on
// peer.Next, since we hold no chain head to compare it against.
func (f *ForkFilter) Validate(peer ForkID) error {
	if _, ok := f.known[peer.Hash]; !ok {
		return ErrForkMismatch
	}
	return nil
}
