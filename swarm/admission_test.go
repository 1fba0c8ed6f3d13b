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
	"net"
	"testing"

	"github.com/ground-x/ethsentry/p2pkey"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(seed byte, ip string) p2pkey.NodeRecord {
	var id p2pkey.PubKey
	for i := range id {
		id[i] = seed
	}
	return p2pkey.NodeRecord{IP: net.ParseIP(ip), Port: 30303, ID: id}
}

func TestAdmissionHappyPath(t *testing.T) {
	self := p2pkey.PubKey{}
	a := NewAdmission(2, nil, self)
	a.SetNoNewPeers(false)

	hash, err := a.TryAdmit(rec(1, "10.0.0.1"))
	require.NoError(t, err)
	assert.Equal(t, 1, a.Dialing())
	assert.Equal(t, 0, a.ConnectedPeers())

	a.MarkConnected(hash)
	assert.Equal(t, 0, a.Dialing())
	assert.Equal(t, 1, a.ConnectedPeers())
}

// Connected plus dialing counts must never exceed the configured cap.
func TestAdmissionEnforcesMaxPeers(t *testing.T) {
	a := NewAdmission(1, nil, p2pkey.PubKey{})
	a.SetNoNewPeers(false)

	_, err := a.TryAdmit(rec(1, "10.0.0.1"))
	require.NoError(t, err)

	_, err = a.TryAdmit(rec(2, "10.0.0.2"))
	assert.ErrorIs(t, err, ErrTooManyPeers)
}

func TestAdmissionRejectsSelf(t *testing.T) {
	self := p2pkey.PubKey{9: 1}
	a := NewAdmission(10, nil, self)
	a.SetNoNewPeers(false)

	candidate := rec(0, "10.0.0.1")
	candidate.ID = self

	_, err := a.TryAdmit(candidate)
	assert.ErrorIs(t, err, ErrConnectedToSelf)
	assert.Equal(t, 0, a.Dialing())
}

func TestAdmissionRejectsCIDRFiltered(t *testing.T) {
	_, cidr, err := net.ParseCIDR("10.0.0.0/24")
	require.NoError(t, err)
	a := NewAdmission(10, cidr, p2pkey.PubKey{})
	a.SetNoNewPeers(false)

	_, err = a.TryAdmit(rec(1, "192.168.1.1"))
	assert.ErrorIs(t, err, ErrCIDRFiltered)
}

func TestAdmissionRejectsDuplicateDialOrConnected(t *testing.T) {
	a := NewAdmission(10, nil, p2pkey.PubKey{})
	a.SetNoNewPeers(false)
	c := rec(1, "10.0.0.1")

	_, err := a.TryAdmit(c)
	require.NoError(t, err)

	_, err = a.TryAdmit(c)
	assert.ErrorIs(t, err, ErrAlreadyKnown)
}

// NewAdmission starts closed by default, so this needs no explicit
// SetNoNewPeers(true) call.
func TestAdmissionRejectsWhenNoNewPeersSet(t *testing.T) {
	a := NewAdmission(10, nil, p2pkey.PubKey{})

	_, err := a.TryAdmit(rec(1, "10.0.0.1"))
	assert.ErrorIs(t, err, ErrNoNewPeers)
}

func TestAdmissionMarkTeardownFreesSlot(t *testing.T) {
	a := NewAdmission(1, nil, p2pkey.PubKey{})
	a.SetNoNewPeers(false)
	hash, err := a.TryAdmit(rec(1, "10.0.0.1"))
	require.NoError(t, err)
	a.MarkConnected(hash)

	a.MarkTeardown(hash)
	assert.Equal(t, 0, a.ConnectedPeers())

	_, err = a.TryAdmit(rec(2, "10.0.0.2"))
	assert.NoError(t, err)
}
