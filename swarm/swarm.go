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

package swarm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"net"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/p2p"
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ground-x/ethsentry/discovery"
	"github.com/ground-x/ethsentry/p2pkey"
)

var swarmLog = log.New("module", "swarm")

// Config configures the swarm's wrapped p2p.Server: the RLPx listener, the
// client-version string advertised in Hello, the capability set, and the
// admission parameters of §4.5.
type Config struct {
	ListenAddr    string
	MaxPeers      int
	CIDR          *net.IPNet
	ClientVersion string
	PrivateKey    *ecdsa.PrivateKey
	Protocols     []p2p.Protocol
}

// Swarm owns every live RLPx session. It wraps go-ethereum's p2p.Server —
// the RLPx transport contract of §4.4 — and adds the admission rules,
// dedup, and no_new_peers gate of §4.5 in front of it.
type Swarm struct {
	cfg       Config
	admission *Admission

	srv *p2p.Server
}

// New builds a Swarm but does not yet construct the wrapped p2p.Server: the
// capability protocol it will carry is registered separately via
// SetProtocols, since building that protocol requires this Swarm's
// Admission (the two have a one-step initialization order, not an import
// cycle). The wrapped server, once started, has its own discovery disabled
// (NoDiscovery, no DiscoveryV5): candidate addresses arrive exclusively
// through AddPeer, fed by the discovery aggregator (C3).
func New(cfg Config) (*Swarm, error) {
	if cfg.PrivateKey == nil {
		return nil, fmt.Errorf("swarm: private key required")
	}
	self := p2pkey.FromECDSA(&cfg.PrivateKey.PublicKey)
	return &Swarm{
		cfg:       cfg,
		admission: NewAdmission(cfg.MaxPeers, cfg.CIDR, self),
	}, nil
}

// Admission exposes the admission gate so the capability server (C6) can
// report connects/teardowns without importing the swarm package back.
func (s *Swarm) Admission() *Admission { return s.admission }

// SetProtocols registers the capability protocols the wrapped p2p.Server
// will carry. Must be called before Start.
func (s *Swarm) SetProtocols(protocols []p2p.Protocol) { s.cfg.Protocols = protocols }

// Start constructs and brings up the wrapped p2p.Server.
func (s *Swarm) Start() error {
	s.srv = &p2p.Server{
		Config: p2p.Config{
			PrivateKey:  s.cfg.PrivateKey,
			MaxPeers:    s.cfg.MaxPeers,
			NoDiscovery: true,
			DiscoveryV5: false,
			Name:        s.cfg.ClientVersion,
			Protocols:   s.cfg.Protocols,
			ListenAddr:  s.cfg.ListenAddr,
			Logger:      swarmLog,
		},
	}
	if err := s.srv.Start(); err != nil {
		return fmt.Errorf("swarm: listen: %w", err)
	}
	return nil
}

// Stop tears down every live session and the listener.
func (s *Swarm) Stop() { s.srv.Stop() }

// ConnectedPeers and Dialing are the observability hooks of §4.5.
func (s *Swarm) ConnectedPeers() int { return s.admission.ConnectedPeers() }
func (s *Swarm) Dialing() int        { return s.admission.Dialing() }

// SetNoNewPeers flips the externally-writable halt flag (§4.5).
func (s *Swarm) SetNoNewPeers(v bool) { s.admission.SetNoNewPeers(v) }

// AddPeer schedules a dial for rec, deduplicating against currently
// connected or currently dialing identities and enforcing the admission
// rules of §4.5 in order. A rejected candidate never reaches the wrapped
// p2p.Server.
func (s *Swarm) AddPeer(rec p2pkey.NodeRecord) error {
	if _, err := s.admission.TryAdmit(rec); err != nil {
		return err
	}
	node, err := rec.ToENode()
	if err != nil {
		s.admission.MarkTeardown(p2pkey.HashOf(rec.ID))
		return fmt.Errorf("swarm: %w", err)
	}
	s.srv.AddPeer(node)
	return nil
}

// RunDialer drains the discovery aggregator's event stream, forwarding each
// candidate to AddPeer until ctx is cancelled.
func (s *Swarm) RunDialer(ctx context.Context, events <-chan discovery.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := s.AddPeer(ev.Record); err != nil {
				swarmLog.Debug("candidate rejected", "source", ev.Source, "peer", ev.Record, "err", err)
			}
		}
	}
}

// HashOfPeer converts a go-ethereum enode.ID (itself a keccak-256 digest of
// the node's public key, same as PeerIdHash) into a p2pkey.Hash without a
// redundant re-hash.
func HashOfPeer(id enode.ID) p2pkey.Hash { return p2pkey.Hash(id) }
