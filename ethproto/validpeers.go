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

import (
	"sync"

	"github.com/ground-x/ethsentry/p2pkey"
)

// validPeers is the set of peers that have completed the Status handshake
// (state Valid, §4.4). The block tracker is not filtered by this set: it is
// seeded for every peer at connect, so PeersWithMinBlock can also return
// peers that have not completed the handshake.
type validPeers struct {
	mu sync.RWMutex
	m  map[p2pkey.Hash]struct{}
}

func newValidPeers() *validPeers {
	return &validPeers{m: make(map[p2pkey.Hash]struct{})}
}

func (v *validPeers) add(h p2pkey.Hash) {
	v.mu.Lock()
	v.m[h] = struct{}{}
	v.mu.Unlock()
}

func (v *validPeers) remove(h p2pkey.Hash) {
	v.mu.Lock()
	delete(v.m, h)
	v.mu.Unlock()
}

func (v *validPeers) contains(h p2pkey.Hash) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.m[h]
	return ok
}

func (v *validPeers) len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.m)
}
