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

package broadcast

import (
	"testing"

	"github.com/ground-x/ethsentry/ethproto"
	"github.com/ground-x/ethsentry/p2pkey"
	"github.com/stretchr/testify/assert"
)

func peerHash(seed byte) p2pkey.Hash {
	var h p2pkey.Hash
	h[0] = seed
	return h
}

func TestBridgeDeliverIsNonBlockingAndDropsOldest(t *testing.T) {
	b := NewBridge(1) // data queue capacity 5

	for i := 0; i < 10; i++ {
		b.Deliver(ethproto.InboundMessage{PeerID: peerHash(byte(i)), MessageID: uint64(i)})
	}

	// The queue holds only the most recent 5 sends; draining it must not
	// block even though 10 sends happened against a 5-slot queue.
	var got []ethproto.InboundMessage
	for {
		select {
		case m := <-b.Data():
			got = append(got, m)
			continue
		default:
		}
		break
	}
	assert.Len(t, got, 5)
	assert.EqualValues(t, 5, got[0].MessageID)
	assert.EqualValues(t, 9, got[len(got)-1].MessageID)
}

func TestBridgePeerStatusRoundTrips(t *testing.T) {
	b := NewBridge(4)
	h := peerHash(1)

	b.SetPeerStatus(h, true)
	b.SetPeerStatus(h, false)

	first := <-b.PeerStatus()
	second := <-b.PeerStatus()
	assert.Equal(t, PeersReply{PeerID: h, Kind: PeerConnect}, first)
	assert.Equal(t, PeersReply{PeerID: h, Kind: PeerDisconnect}, second)
}
