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

// Package sentry wires the rest of this module's packages into the single
// running devp2p relay process: discovery (C2/C3) feeding
// swarm's admission gate and dialer (C5), whose wrapped p2p.Server (C4)
// carries the eth/66 capability server (C6), which in turn hands accepted
// traffic to the broadcast bridge (C7).
package sentry

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/p2p"
	"github.com/ethereum/go-ethereum/p2p/discover"
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ground-x/ethsentry/broadcast"
	"github.com/ground-x/ethsentry/discovery"
	"github.com/ground-x/ethsentry/ethproto"
	"github.com/ground-x/ethsentry/p2pkey"
	"github.com/ground-x/ethsentry/swarm"
)

var sentryLog = log.New("module", "sentry")

// Sentry is the assembled process: every component wired together and
// ready to Run.
type Sentry struct {
	cfg Config

	localNode *enode.LocalNode
	localDB   *enode.DB

	swarm      *swarm.Swarm
	server     *ethproto.Server
	bridge     *broadcast.Bridge
	aggregator *discovery.Aggregator

	discv4 *discover.UDPv4
	discv5 *discover.UDPv5
}

// New assembles every component from cfg but starts nothing; call Run to
// bring the process up.
func New(cfg Config, forkFilter *ethproto.ForkFilter) (*Sentry, error) {
	if cfg.PrivateKey == nil {
		return nil, fmt.Errorf("sentry: private key required")
	}

	db, err := enode.OpenDB("")
	if err != nil {
		return nil, fmt.Errorf("sentry: open node db: %w", err)
	}
	localNode := enode.NewLocalNode(db, cfg.PrivateKey)

	cache := ethproto.NewUnboundedPeerIDCache()
	if cfg.PeerIDCacheSize > 0 {
		bounded, err := ethproto.NewBoundedPeerIDCache(cfg.PeerIDCacheSize)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("sentry: peer id cache: %w", err)
		}
		cache = bounded
	}

	bridge := broadcast.NewBridge(cfg.MaxPeers)
	swarmCfg := swarm.Config{
		ListenAddr:    cfg.ListenAddr,
		MaxPeers:      cfg.MaxPeers,
		CIDR:          cfg.CIDR,
		ClientVersion: cfg.ClientVersion,
		PrivateKey:    cfg.PrivateKey,
	}

	sw, err := swarm.New(swarmCfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sentry: build swarm: %w", err)
	}

	server := ethproto.NewServer(forkFilter, cache, sw.Admission(), bridge)
	sw.SetProtocols([]p2p.Protocol{ethproto.NewProtocol(server)})

	sources, discv4, discv5, err := buildSources(cfg, localNode)
	if err != nil {
		db.Close()
		return nil, err
	}

	agg := discovery.New(sources, cfg.aggregatorBuffer(), sw.Admission())

	return &Sentry{
		cfg:        cfg,
		localNode:  localNode,
		localDB:    db,
		swarm:      sw,
		server:     server,
		bridge:     bridge,
		aggregator: agg,
		discv4:     discv4,
		discv5:     discv5,
	}, nil
}

func buildSources(cfg Config, localNode *enode.LocalNode) ([]discovery.Source, *discover.UDPv4, *discover.UDPv5, error) {
	var sources []discovery.Source
	var v4 *discover.UDPv4
	var v5 *discover.UDPv5

	if len(cfg.StaticPeers) > 0 {
		sources = append(sources, discovery.NewStatic(cfg.StaticPeers, cfg.StaticPeersInterval))
	}

	if cfg.DNSDiscoveryURL != "" {
		src, err := discovery.NewDNS(cfg.DNSDiscoveryURL)
		if err != nil {
			return nil, nil, nil, err
		}
		sources = append(sources, src)
	}

	if !cfg.NoDiscovery {
		src, udp, err := discovery.NewDiscv4(discovery.Discv4Config{
			ListenPort: cfg.Discv4Port,
			Bootnodes:  cfg.Discv4Bootnodes,
			CacheSize:  cfg.Discv4CacheSize,
			ConcurrentLookups: func() int {
				if cfg.Discv4Concurrency > 0 {
					return cfg.Discv4Concurrency
				}
				return 16
			}(),
			PrivateKey: cfg.PrivateKey,
			LocalNode:  localNode,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		sources = append(sources, src)
		v4 = udp
	}

	if cfg.EnableDiscv5 {
		src, udp, err := discovery.NewDiscv5(discovery.Discv5Config{
			Addr:       cfg.Discv5Addr,
			Bootnodes:  cfg.Discv5Bootnodes,
			PrivateKey: cfg.PrivateKey,
			LocalNode:  localNode,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		sources = append(sources, src)
		v5 = udp
	}

	return sources, v4, v5, nil
}

// SetStatus installs the chain status the capability server advertises to
// newly connected peers, opening admission once set.
func (s *Sentry) SetStatus(status ethproto.ChainStatus) { s.server.SetStatus(status) }

// SetPeerBlockNumber forwards to the capability server's block tracker.
func (s *Sentry) SetPeerBlockNumber(peer p2pkey.Hash, n uint64) {
	s.server.SetPeerBlockNumber(peer, n)
}

// Bridge exposes the downstream broadcast queues (C7) for the caller to
// consume.
func (s *Sentry) Bridge() *broadcast.Bridge { return s.bridge }

// Run starts the RLPx listener and the discovery-to-dial pipeline, blocking
// until ctx is cancelled, then tearing everything down in reverse order.
func (s *Sentry) Run(ctx context.Context) error {
	if err := s.swarm.Start(); err != nil {
		return err
	}

	aggDone := make(chan error, 1)
	go func() { aggDone <- s.aggregator.Run(ctx) }()
	go s.swarm.RunDialer(ctx, s.aggregator.Events())

	<-ctx.Done()
	sentryLog.Info("shutting down")

	s.swarm.Stop()
	if s.discv4 != nil {
		s.discv4.Close()
	}
	if s.discv5 != nil {
		s.discv5.Close()
	}
	s.localDB.Close()

	<-aggDone
	return ctx.Err()
}
