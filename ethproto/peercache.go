// Copyright 2024 The ethsentry Authors
// Copyright 2018 The go-klaytn Authors
// This file is part of the go-klaytn library.
//
// The go-klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-klaytn library. If not, see <http://www.gnu.org/licenses/>.
//
// This file is derived from common/cache.go, collapsed to the one concrete
// cache this capability dispatcher needs.

package ethproto

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/ground-x/ethsentry/p2pkey"
)

// PeerIDCache memoizes the keccak-256 hash of a peer's public key so the
// hot path (looking a peer up in block_tracker / valid_peers on every
// inbound frame) never re-hashes a 64-byte key it has already seen.
type PeerIDCache interface {
	HashOf(pub p2pkey.PubKey) p2pkey.Hash
}

// unboundedCache is the default: a plain map guarded by a RWMutex. Fine for
// a sentry with a modest max_peers; memory is bounded by the number of
// distinct keys ever observed, which in practice tracks live peer churn.
type unboundedCache struct {
	mu sync.RWMutex
	m  map[p2pkey.PubKey]p2pkey.Hash
}

// NewUnboundedPeerIDCache builds the default memoizing cache.
func NewUnboundedPeerIDCache() PeerIDCache {
	return &unboundedCache{m: make(map[p2pkey.PubKey]p2pkey.Hash)}
}

func (c *unboundedCache) HashOf(pub p2pkey.PubKey) p2pkey.Hash {
	c.mu.RLock()
	h, ok := c.m[pub]
	c.mu.RUnlock()
	if ok {
		return h
	}

	h = p2pkey.HashOf(pub)
	c.mu.Lock()
	c.m[pub] = h
	c.mu.Unlock()
	return h
}

// lruCache bounds memory at the cost of occasional re-hashing on eviction;
// useful for long-lived sentries that churn through many more distinct
// keys than they ever hold connections to at once.
type lruCache struct {
	c *lru.Cache
}

// NewBoundedPeerIDCache builds an LRU-bounded cache holding at most size
// entries.
func NewBoundedPeerIDCache(size int) (PeerIDCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &lruCache{c: c}, nil
}

func (c *lruCache) HashOf(pub p2pkey.PubKey) p2pkey.Hash {
	if v, ok := c.c.Get(pub); ok {
		return v.(p2pkey.Hash)
	}
	h := p2pkey.HashOf(pub)
	c.c.Add(pub, h)
	return h
}
