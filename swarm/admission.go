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

// Package swarm owns the lifecycle of every live RLPx session: it dials
// candidates handed to it by the discovery aggregator, enforces max_peers,
// a CIDR filter, and identity uniqueness, and wraps go-ethereum's p2p.Server
// (the RLPx transport, C4) rather than reimplementing it.
package swarm

import (
	"errors"
	"net"
	"sync"

	"github.com/ground-x/ethsentry/metrics"
	"github.com/ground-x/ethsentry/p2pkey"
)

// Admission errors, applied in a fixed order (§4.5).
var (
	ErrNoNewPeers      = errors.New("swarm: no_new_peers is set")
	ErrCIDRFiltered    = errors.New("swarm: address rejected by CIDR filter")
	ErrConnectedToSelf = errors.New("swarm: remote id equals ours")
	ErrAlreadyKnown    = errors.New("swarm: already connected or dialing")
	ErrTooManyPeers    = errors.New("swarm: max_peers reached")
)

// Admission implements the five ordered admission rules of §4.5 and tracks
// the dialing/connected sets they reason over. It has no knowledge of RLPx
// itself; Swarm is the only caller.
type Admission struct {
	mu sync.Mutex

	maxPeers int
	cidr     *net.IPNet
	self     p2pkey.PubKey

	dialing   map[p2pkey.Hash]struct{}
	connected map[p2pkey.Hash]struct{}

	noNewPeers uint32
}

// NewAdmission builds an Admission gate. cidr may be nil (no filter).
// Admission starts closed (no_new_peers set): a sentry has nothing truthful
// to say in a handshake until SetStatus installs one, so it must not accept
// connections before then either.
func NewAdmission(maxPeers int, cidr *net.IPNet, self p2pkey.PubKey) *Admission {
	return &Admission{
		maxPeers:   maxPeers,
		cidr:       cidr,
		self:       self,
		dialing:    make(map[p2pkey.Hash]struct{}),
		connected:  make(map[p2pkey.Hash]struct{}),
		noNewPeers: 1,
	}
}

// TryAdmit applies the five ordered rules against a candidate and, on
// success, reserves a dialing slot for its hash: connected+dialing never
// exceeds max_peers once this call returns nil.
func (a *Admission) TryAdmit(rec p2pkey.NodeRecord) (p2pkey.Hash, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.isNoNewPeersLocked() {
		metrics.AdmissionRejections.WithLabelValues("no_new_peers").Inc()
		return p2pkey.Hash{}, ErrNoNewPeers
	}
	if a.cidr != nil && !a.cidr.Contains(rec.IP) {
		metrics.AdmissionRejections.WithLabelValues("cidr_filtered").Inc()
		return p2pkey.Hash{}, ErrCIDRFiltered
	}
	if rec.ID == a.self {
		metrics.AdmissionRejections.WithLabelValues("connected_to_self").Inc()
		return p2pkey.Hash{}, ErrConnectedToSelf
	}
	hash := p2pkey.HashOf(rec.ID)
	if _, ok := a.dialing[hash]; ok {
		metrics.AdmissionRejections.WithLabelValues("already_known").Inc()
		return p2pkey.Hash{}, ErrAlreadyKnown
	}
	if _, ok := a.connected[hash]; ok {
		metrics.AdmissionRejections.WithLabelValues("already_known").Inc()
		return p2pkey.Hash{}, ErrAlreadyKnown
	}
	if len(a.connected)+len(a.dialing) >= a.maxPeers {
		metrics.AdmissionRejections.WithLabelValues("too_many_peers").Inc()
		return p2pkey.Hash{}, ErrTooManyPeers
	}

	a.dialing[hash] = struct{}{}
	metrics.DialingPeers.Set(float64(len(a.dialing)))
	return hash, nil
}

// MarkConnected moves a hash from dialing into connected. Safe to call for
// an inbound connection that never went through TryAdmit — it is simply
// added to connected directly in that case.
func (a *Admission) MarkConnected(hash p2pkey.Hash) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.dialing, hash)
	a.connected[hash] = struct{}{}
	metrics.DialingPeers.Set(float64(len(a.dialing)))
	metrics.ConnectedPeers.Set(float64(len(a.connected)))
}

// MarkTeardown removes a hash from both sets — used both when a dial never
// completes (handshake timeout) and when a connected session tears down.
func (a *Admission) MarkTeardown(hash p2pkey.Hash) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.dialing, hash)
	delete(a.connected, hash)
	metrics.DialingPeers.Set(float64(len(a.dialing)))
	metrics.ConnectedPeers.Set(float64(len(a.connected)))
}

func (a *Admission) ConnectedPeers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.connected)
}

func (a *Admission) Dialing() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.dialing)
}

// SetNoNewPeers flips the global admission gate (§4.5, §5: sequentially
// consistent reads/writes — a plain mutex gives us that for free and the
// traffic here is far too low for relaxed atomics to matter).
func (a *Admission) SetNoNewPeers(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if v {
		a.noNewPeers = 1
	} else {
		a.noNewPeers = 0
	}
}

func (a *Admission) NoNewPeers() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.isNoNewPeersLocked()
}

func (a *Admission) isNoNewPeersLocked() bool { return a.noNewPeers != 0 }
