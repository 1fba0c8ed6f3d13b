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
	"net"

	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ground-x/ethsentry/p2pkey"
)

// iteratorSource adapts a go-ethereum enode.Iterator — the shape shared by
// p2p/dnsdisc, p2p/discover's discv4 and discv5 implementations — to the
// Source contract. enode.Iterator.Next is a blocking, non-context-aware
// call, so it runs on its own goroutine and is raced against ctx.Done.
type iteratorSource struct {
	name string
	it   enode.Iterator

	nextCh chan *enode.Node
}

func newIteratorSource(name string, it enode.Iterator) *iteratorSource {
	s := &iteratorSource{name: name, it: it, nextCh: make(chan *enode.Node)}
	go s.pump()
	return s
}

// pump runs Next() on its own goroutine forever, so a context cancellation
// observed by Next (the caller) does not have to tear down the iterator —
// Close does that, which also unblocks a pending Next() call inside the
// go-ethereum iterator itself.
func (s *iteratorSource) pump() {
	defer close(s.nextCh)
	for s.it.Next() {
		s.nextCh <- s.it.Node()
	}
}

func (s *iteratorSource) Name() string { return s.name }

func (s *iteratorSource) Next(ctx context.Context) (p2pkey.NodeRecord, bool, error) {
	select {
	case n, ok := <-s.nextCh:
		if !ok {
			return p2pkey.NodeRecord{}, false, nil
		}
		return nodeRecordOf(n), true, nil
	case <-ctx.Done():
		return p2pkey.NodeRecord{}, false, ctx.Err()
	}
}

func (s *iteratorSource) Close() error {
	s.it.Close()
	return nil
}

func nodeRecordOf(n *enode.Node) p2pkey.NodeRecord {
	var pub p2pkey.PubKey
	if p := n.Pubkey(); p != nil {
		pub = p2pkey.FromECDSA(p)
	}
	ip := n.IP()
	if ip == nil {
		ip = net.IPv4zero
	}
	return p2pkey.NodeRecord{IP: ip, Port: uint16(n.TCP()), ID: pub}
}
