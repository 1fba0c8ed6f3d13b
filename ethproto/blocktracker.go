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
	"sort"
	"sync"

	"github.com/ground-x/ethsentry/p2pkey"
)

// BlockTracker maintains the bidirectional index of §4.6: which block
// number each peer last announced, and which peers last announced each
// block number. Two invariants hold at every observable point:
//
//   I1 (consistency): for every peer p with block_by_peer[p] == n,
//      peers_by_block[n] contains p, and vice versa.
//   I2 (no empty buckets): peers_by_block never holds an entry mapping to
//      an empty set; the key is removed instead.
type BlockTracker struct {
	mu           sync.Mutex
	blockByPeer  map[p2pkey.Hash]uint64
	peersByBlock map[uint64]map[p2pkey.Hash]struct{}
}

// NewBlockTracker builds an empty tracker.
func NewBlockTracker() *BlockTracker {
	return &BlockTracker{
		blockByPeer:  make(map[p2pkey.Hash]uint64),
		peersByBlock: make(map[uint64]map[p2pkey.Hash]struct{}),
	}
}

// SetBlockNumber records that peer last announced block number n,
// superseding whatever it announced before. A peer announcing the same
// block number again is a no-op. forceCreate controls what happens when
// peer has no existing entry: true inserts one (the on_peer_connect seed of
// block 0), false leaves an absent peer absent rather than creating a stray
// entry for a peer this tracker has never seen torn down or connected.
func (bt *BlockTracker) SetBlockNumber(peer p2pkey.Hash, n uint64, forceCreate bool) {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	old, ok := bt.blockByPeer[peer]
	if !ok && !forceCreate {
		return
	}
	if ok {
		if old == n {
			return
		}
		bt.removeFromBucketLocked(old, peer)
	}
	bt.blockByPeer[peer] = n
	bucket, ok := bt.peersByBlock[n]
	if !ok {
		bucket = make(map[p2pkey.Hash]struct{})
		bt.peersByBlock[n] = bucket
	}
	bucket[peer] = struct{}{}
}

// RemovePeer drops every record of peer. Called from teardown so a
// disconnected peer never lingers in peers_by_block (I1, I2).
func (bt *BlockTracker) RemovePeer(peer p2pkey.Hash) {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	n, ok := bt.blockByPeer[peer]
	if !ok {
		return
	}
	delete(bt.blockByPeer, peer)
	bt.removeFromBucketLocked(n, peer)
}

// removeFromBucketLocked deletes peer from peers_by_block[n], and deletes
// the bucket itself if it becomes empty (I2). Caller holds bt.mu.
func (bt *BlockTracker) removeFromBucketLocked(n uint64, peer p2pkey.Hash) {
	bucket, ok := bt.peersByBlock[n]
	if !ok {
		return
	}
	delete(bucket, peer)
	if len(bucket) == 0 {
		delete(bt.peersByBlock, n)
	}
}

// BlockNumber reports the last block peer announced, if any.
func (bt *BlockTracker) BlockNumber(peer p2pkey.Hash) (uint64, bool) {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	n, ok := bt.blockByPeer[peer]
	return n, ok
}

// PeersWithMinBlock returns, in ascending block-number order, every peer
// that has announced a block number >= min.
func (bt *BlockTracker) PeersWithMinBlock(min uint64) []p2pkey.Hash {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	blocks := make([]uint64, 0, len(bt.peersByBlock))
	for n := range bt.peersByBlock {
		if n >= min {
			blocks = append(blocks, n)
		}
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })

	var out []p2pkey.Hash
	for _, n := range blocks {
		for peer := range bt.peersByBlock[n] {
			out = append(out, peer)
		}
	}
	return out
}

// Len reports the number of peers currently tracked.
func (bt *BlockTracker) Len() int {
	bt.mu.Lock()
	defer bt.mu.Unlock()
	return len(bt.blockByPeer)
}
