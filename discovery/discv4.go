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
	"crypto/ecdsa"
	"fmt"
	"net"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/p2p/discover"
	"github.com/ethereum/go-ethereum/p2p/enode"
)

// Discv4Config carries the legacy 512-bit node-id Kademlia discovery
// parameters named in §6: listen port and bootstrap list. An empty
// bootstrap list falls back to defaultV4Bootnodes, which holds no nodes.
// CacheSize and ConcurrentLookups are accepted for interface symmetry with
// the other discovery sources but go-ethereum's discover.UDPv4 manages its
// own internal table sizing and lookup fan-out without exposing either as a
// Config knob; they are unused here and kept only so a future wired table
// implementation has somewhere to receive them without a breaking change.
type Discv4Config struct {
	ListenPort        int
	Bootnodes         []*enode.Node
	CacheSize         int
	ConcurrentLookups int
	PrivateKey        *ecdsa.PrivateKey
	LocalNode         *enode.LocalNode
}

// NewDiscv4 starts a discv4 UDP listener and returns it wrapped as a Source.
func NewDiscv4(cfg Discv4Config) (*iteratorSource, *discover.UDPv4, error) {
	if cfg.LocalNode == nil {
		return nil, nil, fmt.Errorf("discovery: discv4 requires a local node")
	}
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: cfg.ListenPort}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("discovery: discv4 listen: %w", err)
	}
	bootnodes := cfg.Bootnodes
	if len(bootnodes) == 0 {
		bootnodes = defaultV4Bootnodes
	}
	udp, err := discover.ListenV4(conn, cfg.LocalNode, discover.Config{
		PrivateKey:  cfg.PrivateKey,
		Bootnodes:   bootnodes,
		Log:         log.Root(),
	})
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("discovery: discv4 start: %w", err)
	}
	return newIteratorSource("discv4", udp.RandomNodes()), udp, nil
}

// defaultV4Bootnodes is the fallback used when the operator supplies an
// empty bootstrap list (§6 discv4_bootnodes). It is empty, so discv4 started
// without bootnodes has no node to bootstrap from.
var defaultV4Bootnodes []*enode.Node
