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
	"context"
	"testing"

	"github.com/ground-x/ethsentry/p2pkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLifecycle struct {
	connected map[p2pkey.Hash]bool
	noNewSet  *bool
}

func newFakeLifecycle() *fakeLifecycle {
	v := false
	return &fakeLifecycle{connected: map[p2pkey.Hash]bool{}, noNewSet: &v}
}

func (f *fakeLifecycle) MarkConnected(h p2pkey.Hash) { f.connected[h] = true }
func (f *fakeLifecycle) MarkTeardown(h p2pkey.Hash)  { delete(f.connected, h) }
func (f *fakeLifecycle) SetNoNewPeers(v bool)        { *f.noNewSet = v }

type fakeSink struct {
	delivered  []InboundMessage
	status     map[p2pkey.Hash]bool
	subscribed bool
}

func newFakeSink() *fakeSink {
	return &fakeSink{status: map[p2pkey.Hash]bool{}, subscribed: true}
}

func (f *fakeSink) Deliver(msg InboundMessage) bool {
	f.delivered = append(f.delivered, msg)
	return f.subscribed
}
func (f *fakeSink) SetPeerStatus(peer p2pkey.Hash, connected bool) { f.status[peer] = connected }

func testPub(seed byte) p2pkey.PubKey {
	var pk p2pkey.PubKey
	pk[0] = seed
	return pk
}

func newTestServer(t *testing.T) (*Server, *fakeLifecycle, *fakeSink) {
	t.Helper()
	lc := newFakeLifecycle()
	sink := newFakeSink()
	filter := NewForkFilter(ForkID{Hash: [4]byte{1, 2, 3, 4}})
	s := NewServer(filter, NewUnboundedPeerIDCache(), lc, sink)
	return s, lc, sink
}

func TestServerDropsConnectionsBeforeStatusKnown(t *testing.T) {
	s, _, _ := newTestServer(t)

	pipes := s.OnPeerConnect(testPub(1))
	ev, ok := pipes.Next(context.Background())
	require.True(t, ok)
	assert.True(t, ev.IsDisconnect)
	assert.Equal(t, DisconnectRequested, ev.Reason)
}

func TestServerHandshakeHappyPath(t *testing.T) {
	s, _, sink := newTestServer(t)
	s.SetStatus(ChainStatus{NetworkID: 1, ForkID: ForkID{Hash: [4]byte{1, 2, 3, 4}}})

	pub := testPub(1)
	pipes := s.OnPeerConnect(pub)

	ev, ok := pipes.Next(context.Background())
	require.True(t, ok)
	assert.False(t, ev.IsDisconnect)
	assert.EqualValues(t, StatusMsg, ev.MessageID)

	statusBytes, err := encodeStatusBytes(ProtocolVersion, ChainStatus{NetworkID: 1, ForkID: ForkID{Hash: [4]byte{1, 2, 3, 4}}})
	require.NoError(t, err)

	s.OnPeerEvent(pub, InboundEvent{MessageID: StatusMsg, Data: statusBytes})
	assert.Equal(t, 1, s.ValidPeerCount())
	assert.True(t, sink.status[s.cache.HashOf(pub)])

	s.OnPeerEvent(pub, InboundEvent{MessageID: NewBlockMsg, Data: []byte("payload")})
	require.Len(t, sink.delivered, 1)
	assert.EqualValues(t, NewBlockMsg, sink.delivered[0].MessageID)
}

func TestServerRejectsForkMismatch(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.SetStatus(ChainStatus{NetworkID: 1, ForkID: ForkID{Hash: [4]byte{1, 2, 3, 4}}})

	pub := testPub(2)
	pipes := s.OnPeerConnect(pub)
	_, ok := pipes.Next(context.Background()) // drain our Status push
	require.True(t, ok)

	statusBytes, err := encodeStatusBytes(ProtocolVersion, ChainStatus{NetworkID: 1, ForkID: ForkID{Hash: [4]byte{9, 9, 9, 9}}})
	require.NoError(t, err)

	s.OnPeerEvent(pub, InboundEvent{MessageID: StatusMsg, Data: statusBytes})

	ev, ok := pipes.Next(context.Background())
	require.True(t, ok)
	assert.True(t, ev.IsDisconnect)
	assert.Equal(t, UselessPeer, ev.Reason)
	assert.Equal(t, 0, s.ValidPeerCount())
}

func TestServerDropsUnknownMessageIDsWithoutPenalty(t *testing.T) {
	s, _, sink := newTestServer(t)
	s.SetStatus(ChainStatus{NetworkID: 1, ForkID: ForkID{Hash: [4]byte{1, 2, 3, 4}}})

	pub := testPub(3)
	pipes := s.OnPeerConnect(pub)
	_, _ = pipes.Next(context.Background())

	statusBytes, err := encodeStatusBytes(ProtocolVersion, ChainStatus{NetworkID: 1, ForkID: ForkID{Hash: [4]byte{1, 2, 3, 4}}})
	require.NoError(t, err)
	s.OnPeerEvent(pub, InboundEvent{MessageID: StatusMsg, Data: statusBytes})

	s.OnPeerEvent(pub, InboundEvent{MessageID: 0xff, Data: []byte("junk")})
	assert.Empty(t, sink.delivered)
	assert.Equal(t, 1, s.ValidPeerCount())
}

func TestServerSeedsBlockZeroOnConnect(t *testing.T) {
	s, _, _ := newTestServer(t)
	s.SetStatus(ChainStatus{NetworkID: 1, ForkID: ForkID{Hash: [4]byte{1, 2, 3, 4}}})

	pub := testPub(5)
	_ = s.OnPeerConnect(pub)
	hash := s.cache.HashOf(pub)

	n, ok := s.blockTracker.BlockNumber(hash)
	require.True(t, ok)
	assert.EqualValues(t, 0, n)
}

func TestServerNoSubscriberClearsStatusAndDisconnects(t *testing.T) {
	s, _, sink := newTestServer(t)
	s.SetStatus(ChainStatus{NetworkID: 1, ForkID: ForkID{Hash: [4]byte{1, 2, 3, 4}}})

	pub := testPub(6)
	pipes := s.OnPeerConnect(pub)
	_, _ = pipes.Next(context.Background()) // drain our Status push

	statusBytes, err := encodeStatusBytes(ProtocolVersion, ChainStatus{NetworkID: 1, ForkID: ForkID{Hash: [4]byte{1, 2, 3, 4}}})
	require.NoError(t, err)
	s.OnPeerEvent(pub, InboundEvent{MessageID: StatusMsg, Data: statusBytes})

	sink.subscribed = false
	s.OnPeerEvent(pub, InboundEvent{MessageID: NewBlockMsg, Data: []byte("payload")})

	ev, ok := pipes.Next(context.Background())
	require.True(t, ok)
	assert.True(t, ev.IsDisconnect)
	assert.Equal(t, ClientQuitting, ev.Reason)
	assert.Nil(t, s.currentStatus())
	assert.Equal(t, 0, s.ValidPeerCount())
}

func TestServerTeardownClearsAllState(t *testing.T) {
	s, lc, sink := newTestServer(t)
	s.SetStatus(ChainStatus{NetworkID: 1, ForkID: ForkID{Hash: [4]byte{1, 2, 3, 4}}})

	pub := testPub(4)
	pipes := s.OnPeerConnect(pub)
	_, _ = pipes.Next(context.Background())
	hash := s.cache.HashOf(pub)

	statusBytes, err := encodeStatusBytes(ProtocolVersion, ChainStatus{NetworkID: 1, ForkID: ForkID{Hash: [4]byte{1, 2, 3, 4}}})
	require.NoError(t, err)
	s.OnPeerEvent(pub, InboundEvent{MessageID: StatusMsg, Data: statusBytes})
	s.SetPeerBlockNumber(hash, 42)

	s.OnPeerEvent(pub, InboundEvent{IsDisconnect: true, Reason: ClientQuitting})

	assert.Equal(t, 0, s.ValidPeerCount())
	assert.False(t, lc.connected[hash])
	assert.False(t, sink.status[hash])
	_, ok := s.blockTracker.BlockNumber(hash)
	assert.False(t, ok)
}
