// Copyright 2024 The ethsentry Authors
// Copyright 2018 The klaytn Authors
// Copyright 2015 The go-ethereum Authors
// This file is part of go-ethereum.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.
//
// This file is derived from node/cn/peer.go, itself derived from eth/peer.go.
// Modified and improved for the ethsentry capability dispatcher.

package ethproto

import (
	"context"
	"sync"
)

// DisconnectReason enumerates the vocabulary surfaced by the RLPx session
// layer and by this capability server (§4.4, §7). When an outbound
// Disconnect event carries one, the protocol run loop ends the session with
// an error naming the reason.
type DisconnectReason int

const (
	DisconnectRequested DisconnectReason = iota
	TCPSubsystemError
	ProtocolBreach
	UselessPeer
	TooManyPeers
	AlreadyConnected
	IncompatibleP2PProtocolVersion
	NullNodeIdentity
	ClientQuitting
	UnexpectedIdentity
	ConnectedToSelf
	PingTimeout
	Timeout
)

func (r DisconnectReason) String() string {
	switch r {
	case DisconnectRequested:
		return "DisconnectRequested"
	case TCPSubsystemError:
		return "TcpSubsystemError"
	case ProtocolBreach:
		return "ProtocolBreach"
	case UselessPeer:
		return "UselessPeer"
	case TooManyPeers:
		return "TooManyPeers"
	case AlreadyConnected:
		return "AlreadyConnected"
	case IncompatibleP2PProtocolVersion:
		return "IncompatibleP2PProtocolVersion"
	case NullNodeIdentity:
		return "NullNodeIdentity"
	case ClientQuitting:
		return "ClientQuitting"
	case UnexpectedIdentity:
		return "UnexpectedIdentity"
	case ConnectedToSelf:
		return "ConnectedToSelf"
	case PingTimeout:
		return "PingTimeout"
	case Timeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// InboundEvent is what the swarm delivers to the capability server for a
// connected peer: either an opaque message or the terminal disconnect
// notice, delivered exactly once and always last (§5 ordering guarantees).
type InboundEvent struct {
	IsDisconnect bool
	MessageID    uint64
	Data         []byte
	Reason       DisconnectReason
}

// OutboundEvent is what the capability server hands back to the swarm to be
// framed onto the wire; a Disconnect event terminates the session (§4.5).
type OutboundEvent struct {
	IsDisconnect bool
	MessageID    uint64
	Data         []byte
	Reason       DisconnectReason
}

// Pipes is the per-peer outbound event pipe (§3, §9): a fixed "first yield"
// vector (the events produced synchronously by on_peer_connect) followed by
// a channel of capacity 1 — explicit back-pressure on outbound production —
// drained until Close.
type Pipes struct {
	mu      sync.Mutex
	initial []OutboundEvent

	ch     chan OutboundEvent
	closed chan struct{}
	once   sync.Once
}

func newPipes(initial []OutboundEvent) *Pipes {
	return &Pipes{
		initial: initial,
		ch:      make(chan OutboundEvent, 1),
		closed:  make(chan struct{}),
	}
}

// Next returns the next outbound event, first draining the fixed initial
// vector, then pulling from the channel. ok is false once Close has been
// called and no event remains.
func (p *Pipes) Next(ctx context.Context) (ev OutboundEvent, ok bool) {
	p.mu.Lock()
	if len(p.initial) > 0 {
		ev, p.initial = p.initial[0], p.initial[1:]
		p.mu.Unlock()
		return ev, true
	}
	p.mu.Unlock()

	select {
	case ev, open := <-p.ch:
		return ev, open
	case <-p.closed:
		// Drain any event that raced the close.
		select {
		case ev, open := <-p.ch:
			return ev, open
		default:
			return OutboundEvent{}, false
		}
	case <-ctx.Done():
		return OutboundEvent{}, false
	}
}

// Push enqueues an outbound event, blocking until the single slot is free —
// the capacity-1 back-pressure of §5 — or the pipe is closed.
func (p *Pipes) Push(ctx context.Context, ev OutboundEvent) bool {
	select {
	case p.ch <- ev:
		return true
	case <-p.closed:
		return false
	case <-ctx.Done():
		return false
	}
}

// Close terminates the pipe; idempotent.
func (p *Pipes) Close() {
	p.once.Do(func() { close(p.closed) })
}
