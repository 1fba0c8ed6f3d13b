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

package sentry

import (
	"crypto/ecdsa"
	"net"
	"time"

	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ground-x/ethsentry/p2pkey"
)

// Config gathers every external-interface parameter (§6): the RLPx
// listener, the admission limits, and the four discovery sources.
type Config struct {
	ListenAddr    string
	MaxPeers      int
	CIDR          *net.IPNet
	ClientVersion string
	PrivateKey    *ecdsa.PrivateKey

	NoDiscovery bool

	StaticPeers         []p2pkey.NodeRecord
	StaticPeersInterval time.Duration

	Discv4Port        int
	Discv4Bootnodes   []*enode.Node
	Discv4CacheSize   int
	Discv4Concurrency int

	EnableDiscv5    bool
	Discv5Addr      *net.UDPAddr
	Discv5Bootnodes []*enode.Node

	DNSDiscoveryURL string

	// AggregatorBuffer bounds the fan-in channel the aggregator writes
	// candidates into; 0 selects a reasonable default.
	AggregatorBuffer int

	// PeerIDCacheSize, if non-zero, bounds the capability server's
	// peer-identity-hash cache with an LRU instead of the default unbounded
	// map.
	PeerIDCacheSize int
}

func (c Config) aggregatorBuffer() int {
	if c.AggregatorBuffer > 0 {
		return c.AggregatorBuffer
	}
	return 256
}
