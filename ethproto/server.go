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
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ground-x/ethsentry/metrics"
	"github.com/ground-x/ethsentry/p2pkey"
)

var protoLog = log.New("module", "ethproto")

// PeerState is the per-peer state machine of §4.4: a session walks
// Connected -> AwaitingStatus -> Valid, or is torn down from any state.
type PeerState int

const (
	StateConnected PeerState = iota
	StateAwaitingStatus
	StateValid
	StateDisconnected
)

// PeerLifecycle is the subset of swarm.Admission this server needs, kept as
// a small consumer-defined interface so ethproto never imports swarm
// (avoiding the import cycle the other direction would create, since swarm
// wires this server's Protocol into its p2p.Server.Config).
type PeerLifecycle interface {
	MarkConnected(hash p2pkey.Hash)
	MarkTeardown(hash p2pkey.Hash)
	SetNoNewPeers(bool)
}

// InboundMessage is what this server hands to the downstream broadcast
// bridge (C7) for every opaque, post-handshake message from a Valid peer.
type InboundMessage struct {
	PeerID    p2pkey.Hash
	MessageID uint64
	Data      []byte
}

// Sink is the downstream broadcast bridge's receiving side, kept as a small
// interface here (rather than importing the broadcast package directly) for
// the same reason as PeerLifecycle: the top-level wiring package supplies a
// concrete implementation. Deliver reports false when nothing downstream is
// subscribed, so the caller can withdraw its own status and stop accepting
// traffic nobody reads.
type Sink interface {
	Deliver(msg InboundMessage) bool
	SetPeerStatus(peer p2pkey.Hash, connected bool)
}

// Server is the eth/66 capability dispatcher (C6): it owns the Status
// handshake, the fork filter, the bidirectional block tracker, and the
// valid-peer set, and bridges accepted traffic to Sink.
//
// Lock ordering, followed everywhere more than one of these is touched in
// sequence: peers (pipes+state) -> blockTracker -> validPeers -> status ->
// peerIDCache. In practice each step below releases its lock before taking
// the next, so no two are ever held at once.
type Server struct {
	mu     sync.Mutex
	pipes  map[p2pkey.Hash]*Pipes
	states map[p2pkey.Hash]PeerState

	blockTracker *BlockTracker
	validPeers   *validPeers

	statusMu sync.RWMutex
	status   *ChainStatus

	cache      PeerIDCache
	forkFilter *ForkFilter
	lifecycle  PeerLifecycle
	sink       Sink
}

// NewServer builds a capability server. status starts unset: until SetStatus
// is called, every new connection is dropped immediately (we have nothing
// valid to say in our own Status message), and no_new_peers stays set.
func NewServer(forkFilter *ForkFilter, cache PeerIDCache, lifecycle PeerLifecycle, sink Sink) *Server {
	return &Server{
		pipes:        make(map[p2pkey.Hash]*Pipes),
		states:       make(map[p2pkey.Hash]PeerState),
		blockTracker: NewBlockTracker(),
		validPeers:   newValidPeers(),
		cache:        cache,
		forkFilter:   forkFilter,
		lifecycle:    lifecycle,
		sink:         sink,
	}
}

// SetStatus installs the chain summary we advertise to new peers and
// re-opens admission (SetNoNewPeers(false)): before this is called the
// sentry has nothing truthful to say in a handshake, so it declines to
// start one.
func (s *Server) SetStatus(status ChainStatus) {
	s.statusMu.Lock()
	s.status = &status
	s.statusMu.Unlock()
	s.lifecycle.SetNoNewPeers(false)
}

func (s *Server) currentStatus() *ChainStatus {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// BlockTracker exposes the tracker for read-only external queries (e.g. a
// "broadcast to peers with at least block N" fan-out policy).
func (s *Server) BlockTracker() *BlockTracker { return s.blockTracker }

// SetPeerBlockNumber records peer's most recently announced block number.
// Message payloads that carry a block number (NewBlock, BlockHeaders, ...)
// are otherwise opaque pass-through (§4.6); the caller that can cheaply
// parse the leading block number out of such a payload reports it here
// rather than this package decoding full block/header RLP shapes, which
// would pull chain-state types this relay doesn't carry.
func (s *Server) SetPeerBlockNumber(peer p2pkey.Hash, n uint64) {
	s.blockTracker.SetBlockNumber(peer, n, false)
}

// OnPeerConnect is called once a peer's RLPx session is established. It
// returns the Pipes the swarm should drain for outbound frames. A peer that
// connects before our own status is known is sent an immediate, lenient
// disconnect rather than held open indefinitely.
func (s *Server) OnPeerConnect(pub p2pkey.PubKey) *Pipes {
	hash := s.cache.HashOf(pub)

	status := s.currentStatus()
	var initial []OutboundEvent
	state := StateAwaitingStatus
	if status == nil {
		initial = []OutboundEvent{{IsDisconnect: true, Reason: DisconnectRequested}}
		state = StateDisconnected
	} else {
		data, err := encodeStatusBytes(ProtocolVersion, *status)
		if err != nil {
			protoLog.Error("encode status", "err", err)
			initial = []OutboundEvent{{IsDisconnect: true, Reason: TCPSubsystemError}}
			state = StateDisconnected
		} else {
			initial = []OutboundEvent{{MessageID: StatusMsg, Data: data}}
		}
	}

	p := newPipes(initial)
	s.mu.Lock()
	s.pipes[hash] = p
	s.states[hash] = state
	s.mu.Unlock()

	s.blockTracker.SetBlockNumber(hash, 0, true)
	s.lifecycle.MarkConnected(hash)
	return p
}

// OnPeerEvent processes one inbound event from a connected peer: a message
// or the terminal disconnect notice.
func (s *Server) OnPeerEvent(pub p2pkey.PubKey, ev InboundEvent) {
	hash := s.cache.HashOf(pub)

	if ev.IsDisconnect {
		s.teardown(hash)
		return
	}

	s.mu.Lock()
	state := s.states[hash]
	s.mu.Unlock()

	switch state {
	case StateDisconnected:
		return

	case StateConnected, StateAwaitingStatus:
		if ev.MessageID != StatusMsg {
			protoLog.Debug("message before status, dropped", "peer", hash)
			return
		}
		sd, err := decodeStatus(ev.Data)
		if err != nil {
			s.disconnect(hash, ProtocolBreach)
			return
		}
		if err := s.forkFilter.Validate(sd.ForkID); err != nil {
			s.disconnect(hash, UselessPeer)
			return
		}
		s.mu.Lock()
		s.states[hash] = StateValid
		s.mu.Unlock()
		s.validPeers.add(hash)
		metrics.ValidPeers.Set(float64(s.validPeers.len()))
		metrics.BlockTrackerPeers.Set(float64(s.blockTracker.Len()))
		s.sink.SetPeerStatus(hash, true)

	case StateValid:
		id, ok := FromUsize(ev.MessageID)
		if !ok {
			protoLog.Debug("unknown message id, dropped", "peer", hash, "id", ev.MessageID)
			return
		}
		if id == StatusMsg {
			// A second Status after the handshake has completed violates
			// the one-shot handshake contract.
			s.disconnect(hash, ProtocolBreach)
			return
		}
		if !s.sink.Deliver(InboundMessage{PeerID: hash, MessageID: ev.MessageID, Data: ev.Data}) {
			// No downstream subscriber is listening: our own chain status is
			// no longer being consumed, so withdraw it and disconnect this
			// peer rather than keep accepting traffic nobody reads.
			s.statusMu.Lock()
			s.status = nil
			s.statusMu.Unlock()
			s.disconnect(hash, ClientQuitting)
		}
	}
}

// disconnect schedules an outbound Disconnect event, then tears the peer
// down. Safe to call even if the peer has no pipe (already torn down).
func (s *Server) disconnect(hash p2pkey.Hash, reason DisconnectReason) {
	s.mu.Lock()
	p := s.pipes[hash]
	s.mu.Unlock()
	if p != nil {
		p.Push(context.Background(), OutboundEvent{IsDisconnect: true, Reason: reason})
	}
	s.teardown(hash)
}

// teardown removes every trace of peer from this server's state, in lock
// order: peers, then blockTracker, then validPeers, then the lifecycle and
// sink notifications.
func (s *Server) teardown(hash p2pkey.Hash) {
	s.mu.Lock()
	p, ok := s.pipes[hash]
	delete(s.pipes, hash)
	delete(s.states, hash)
	s.mu.Unlock()
	if ok {
		p.Close()
	}

	s.blockTracker.RemovePeer(hash)
	s.validPeers.remove(hash)
	metrics.ValidPeers.Set(float64(s.validPeers.len()))
	metrics.BlockTrackerPeers.Set(float64(s.blockTracker.Len()))

	s.lifecycle.MarkTeardown(hash)
	s.sink.SetPeerStatus(hash, false)
}

// ValidPeerCount reports how many peers currently sit in state Valid.
func (s *Server) ValidPeerCount() int { return s.validPeers.len() }
