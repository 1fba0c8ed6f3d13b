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

// Package broadcast implements the downstream bridge (C7): two bounded,
// lossy, drop-oldest queues carrying accepted eth/66 traffic and peer
// connect/disconnect notices out of the sentry to whatever consumes them.
// Unlike the back-pressured, capacity-1 Pipes of package ethproto, these
// queues never block a producer — a slow or vanished consumer sheds the
// oldest data rather than stalling peer I/O.
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/ground-x/ethsentry/ethproto"
	"github.com/ground-x/ethsentry/metrics"
	"github.com/ground-x/ethsentry/p2pkey"
)

// PeerConnKind distinguishes a connect notice from a disconnect notice.
type PeerConnKind int

const (
	PeerConnect PeerConnKind = iota
	PeerDisconnect
)

func (k PeerConnKind) String() string {
	if k == PeerConnect {
		return "connect"
	}
	return "disconnect"
}

// PeersReply is one entry on the peer-status queue.
type PeersReply struct {
	PeerID p2pkey.Hash
	Kind   PeerConnKind
}

// Bridge is the C7 implementation of ethproto.Sink: data_sender sized
// maxPeers*5, peers_status_sender sized maxPeers, both bounded and lossy.
type Bridge struct {
	dataMu sync.Mutex
	dataCh chan ethproto.InboundMessage

	statusMu sync.Mutex
	statusCh chan PeersReply

	subscribers int32
}

// NewBridge sizes both queues relative to maxPeers, as §4.7 specifies.
func NewBridge(maxPeers int) *Bridge {
	if maxPeers < 1 {
		maxPeers = 1
	}
	return &Bridge{
		dataCh:   make(chan ethproto.InboundMessage, maxPeers*5),
		statusCh: make(chan PeersReply, maxPeers),
	}
}

// Data returns the channel downstream consumers read accepted messages
// from.
func (b *Bridge) Data() <-chan ethproto.InboundMessage { return b.dataCh }

// PeerStatus returns the channel downstream consumers read connect/
// disconnect notices from.
func (b *Bridge) PeerStatus() <-chan PeersReply { return b.statusCh }

// Subscribe registers a downstream consumer. Go channels have no concept of
// "send failed, no receiver" the way the original's broadcast channel does,
// so presence is tracked explicitly: a caller that drains Data/PeerStatus
// calls Subscribe before its loop and Unsubscribe when it stops, and Deliver
// consults this count to report whether anyone is listening.
func (b *Bridge) Subscribe() { atomic.AddInt32(&b.subscribers, 1) }

// Unsubscribe reverses a prior Subscribe call.
func (b *Bridge) Unsubscribe() { atomic.AddInt32(&b.subscribers, -1) }

func (b *Bridge) hasSubscriber() bool { return atomic.LoadInt32(&b.subscribers) > 0 }

// Deliver implements ethproto.Sink: a non-blocking, drop-oldest send. It
// reports false when no downstream consumer is currently subscribed, so the
// capability server can withdraw its status and disconnect the sending peer
// rather than keep accepting traffic nobody reads.
func (b *Bridge) Deliver(msg ethproto.InboundMessage) bool {
	b.dataMu.Lock()
	defer b.dataMu.Unlock()
	select {
	case b.dataCh <- msg:
		return b.hasSubscriber()
	default:
	}
	select {
	case <-b.dataCh:
		metrics.BridgeDrops.WithLabelValues("data").Inc()
	default:
	}
	select {
	case b.dataCh <- msg:
	default:
	}
	return b.hasSubscriber()
}

// SetPeerStatus implements ethproto.Sink: same non-blocking, drop-oldest
// discipline on the peer-status queue.
func (b *Bridge) SetPeerStatus(peer p2pkey.Hash, connected bool) {
	kind := PeerDisconnect
	if connected {
		kind = PeerConnect
	}
	reply := PeersReply{PeerID: peer, Kind: kind}

	b.statusMu.Lock()
	defer b.statusMu.Unlock()
	select {
	case b.statusCh <- reply:
		return
	default:
	}
	select {
	case <-b.statusCh:
		metrics.BridgeDrops.WithLabelValues("peer_status").Inc()
	default:
	}
	select {
	case b.statusCh <- reply:
	default:
	}
}
