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
	"fmt"

	"github.com/ethereum/go-ethereum/p2p/dnsdisc"
)

// NewDNS walks the ENR tree rooted at addr (an FQDN or a full enrtree://
// URL) via go-ethereum's caching asynchronous DNS resolver, yielding every
// ENR convertible to a NodeRecord. The underlying iterator yields only
// nodes, so a walk error never reaches the aggregator through Next.
func NewDNS(addr string) (*iteratorSource, error) {
	client := dnsdisc.NewClient(dnsdisc.Config{})
	it, err := client.NewIterator(addr)
	if err != nil {
		return nil, fmt.Errorf("discovery: dns tree %q: %w", addr, err)
	}
	return newIteratorSource("dns", it), nil
}
