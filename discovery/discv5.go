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

package discovery

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"net"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/p2p/discover"
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ground-x/ethsentry/p2pkey"
)

// Discv5Config carries the modern ENR-based discovery parameters named in
// §6: the node's own ENR (via LocalNode), a bind address, and bootstrap ENRs.
type Discv5Config struct {
	Addr       *net.UDPAddr
	Bootnodes  []*enode.Node
	PrivateKey *ecdsa.PrivateKey
	LocalNode  *enode.LocalNode

	// BatchSize bounds how many candidates a single Poll round yields, per
	// §4.2 ("up to N candidates per poll, here 20").
	BatchSize int
}

const defaultDiscv5BatchSize = 20

// NewDiscv5 starts a discv5 UDP listener and returns it wrapped as a Source
// that yields up to cfg.BatchSize candidates per poll window.
func NewDiscv5(cfg Discv5Config) (*discv5Source, *discover.UDPv5, error) {
	if cfg.LocalNode == nil {
		return nil, nil, fmt.Errorf("discovery: discv5 requires a local node")
	}
	conn, err := net.ListenUDP("udp", cfg.Addr)
	if err != nil {
		return nil, nil, fmt.Errorf("discovery: discv5 listen: %w", err)
	}
	udp, err := discover.ListenV5(conn, cfg.LocalNode, discover.Config{
		PrivateKey: cfg.PrivateKey,
		Bootnodes:  cfg.Bootnodes,
		Log:        log.Root(),
	})
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("discovery: discv5 start: %w", err)
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultDiscv5BatchSize
	}
	return &discv5Source{inner: newIteratorSource("discv5", udp.RandomNodes()), batch: batch}, udp, nil
}

// discv5PollInterval is the window over which BatchSize candidates are
// released before Next blocks for the remainder of the window.
const discv5PollInterval = time.Minute

// discv5Source wraps the shared iteratorSource with a per-poll cap: once
// BatchSize candidates have been yielded, further calls block until the
// next window.
type discv5Source struct {
	inner *iteratorSource
	batch int
	taken int
	until time.Time
}

func (s *discv5Source) Name() string { return s.inner.Name() }

func (s *discv5Source) Next(ctx context.Context) (p2pkey.NodeRecord, bool, error) {
	if s.taken >= s.batch {
		if wait := time.Until(s.until); wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return p2pkey.NodeRecord{}, false, ctx.Err()
			case <-t.C:
			}
		}
		s.taken = 0
	}
	if s.taken == 0 {
		s.until = time.Now().Add(discv5PollInterval)
	}
	r, ok, err := s.inner.Next(ctx)
	if ok {
		s.taken++
	}
	return r, ok, err
}

func (s *discv5Source) Close() error { return s.inner.Close() }
