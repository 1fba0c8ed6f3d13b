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
	"testing"

	"github.com/ground-x/ethsentry/p2pkey"
	"github.com/stretchr/testify/assert"
)

func hash(seed byte) p2pkey.Hash {
	var h p2pkey.Hash
	h[0] = seed
	return h
}

func TestBlockTrackerSetAndQuery(t *testing.T) {
	bt := NewBlockTracker()
	bt.SetBlockNumber(hash(1), 10, true)
	bt.SetBlockNumber(hash(2), 20, true)

	n, ok := bt.BlockNumber(hash(1))
	assert.True(t, ok)
	assert.Equal(t, uint64(10), n)

	peers := bt.PeersWithMinBlock(15)
	assert.Equal(t, []p2pkey.Hash{hash(2)}, peers)
}

func TestBlockTrackerUpdateMovesBucket(t *testing.T) {
	bt := NewBlockTracker()
	bt.SetBlockNumber(hash(1), 10, true)
	bt.SetBlockNumber(hash(1), 20, true)

	n, ok := bt.BlockNumber(hash(1))
	assert.True(t, ok)
	assert.Equal(t, uint64(20), n)

	// the old bucket (10) must not retain the peer, and must not exist as an
	// empty bucket either.
	assert.NotContains(t, bt.peersByBlock, uint64(10))
	for _, p := range bt.PeersWithMinBlock(0) {
		assert.NotEqual(t, uint64(10), mustBlockOf(t, bt, p))
	}
}

func mustBlockOf(t *testing.T, bt *BlockTracker, peer p2pkey.Hash) uint64 {
	t.Helper()
	n, ok := bt.BlockNumber(peer)
	if !ok {
		t.Fatalf("peer %v has no recorded block", peer)
	}
	return n
}

func TestBlockTrackerRemovePeerLeavesNoEmptyBucket(t *testing.T) {
	bt := NewBlockTracker()
	bt.SetBlockNumber(hash(1), 5, true)
	bt.RemovePeer(hash(1))

	assert.Equal(t, 0, bt.Len())
	assert.Empty(t, bt.PeersWithMinBlock(0))
	_, ok := bt.BlockNumber(hash(1))
	assert.False(t, ok)
}

func TestBlockTrackerSharedBucketSurvivesPartialRemoval(t *testing.T) {
	bt := NewBlockTracker()
	bt.SetBlockNumber(hash(1), 5, true)
	bt.SetBlockNumber(hash(2), 5, true)

	bt.RemovePeer(hash(1))

	peers := bt.PeersWithMinBlock(0)
	assert.Equal(t, []p2pkey.Hash{hash(2)}, peers)
}

func TestBlockTrackerWithoutForceCreateIsNoOpForUnknownPeer(t *testing.T) {
	bt := NewBlockTracker()
	bt.SetBlockNumber(hash(1), 5, false)

	_, ok := bt.BlockNumber(hash(1))
	assert.False(t, ok)
	assert.Equal(t, 0, bt.Len())
}
