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
	"testing"
	"time"

	"github.com/ground-x/ethsentry/p2pkey"
)

type fakeGate struct{ blocked bool }

func (g fakeGate) NoNewPeers() bool { return g.blocked }

func mustRecord(t *testing.T, seed byte) p2pkey.NodeRecord {
	t.Helper()
	var id p2pkey.PubKey
	for i := range id {
		id[i] = seed
	}
	return p2pkey.NodeRecord{IP: []byte{127, 0, 0, 1}, Port: 30303, ID: id}
}

func TestAggregatorFansInMultipleSources(t *testing.T) {
	a := New([]Source{
		NewStatic([]p2pkey.NodeRecord{mustRecord(t, 1)}, time.Millisecond),
		NewStatic([]p2pkey.NodeRecord{mustRecord(t, 2)}, time.Millisecond),
	}, 8, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	go a.Run(ctx)

	seen := map[byte]bool{}
	for len(seen) < 2 {
		select {
		case ev := <-a.Events():
			seen[ev.Record.ID[0]] = true
		case <-ctx.Done():
			t.Fatal("timed out waiting for events from both sources")
		}
	}
}

func TestAggregatorHonorsNoNewPeers(t *testing.T) {
	a := New([]Source{NewStatic([]p2pkey.NodeRecord{mustRecord(t, 1)}, time.Millisecond)}, 8, fakeGate{blocked: true})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	go a.Run(ctx)

	select {
	case ev := <-a.Events():
		t.Fatalf("unexpected event while no_new_peers set: %+v", ev)
	case <-ctx.Done():
	}
}
