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
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ground-x/ethsentry/metrics"
	"github.com/ground-x/ethsentry/p2pkey"
	"golang.org/x/sync/errgroup"
)

var aggLog = log.New("module", "discovery")

// Event is one candidate produced by a named source.
type Event struct {
	Source string
	Record p2pkey.NodeRecord
}

// Gate reports the global back-pressure flag (§4.5's no_new_peers); swarm's
// Admission satisfies it, so the aggregator never needs its own copy of the
// flag and the two packages stay decoupled.
type Gate interface {
	NoNewPeers() bool
}

type alwaysOpen struct{}

func (alwaysOpen) NoNewPeers() bool { return false }

// Aggregator multiplexes a named map of Sources into a single stream of
// Events. It polls all sources fairly (one goroutine per source, so a slow
// or failing source cannot starve the others), swallows per-source errors
// after logging them, and stops producing — without tearing any source
// down — while the Gate reports no_new_peers.
type Aggregator struct {
	sources []Source
	out     chan Event
	gate    Gate
}

// New builds an Aggregator over sources, writing into a channel of the
// given capacity. gate, if nil, never blocks production.
func New(sources []Source, outCap int, gate Gate) *Aggregator {
	if gate == nil {
		gate = alwaysOpen{}
	}
	return &Aggregator{sources: sources, out: make(chan Event, outCap), gate: gate}
}

// Events returns the fan-in channel. Closed once Run returns.
func (a *Aggregator) Events() <-chan Event { return a.out }

// Run polls every source concurrently until ctx is cancelled. Each source
// gets its own goroutine so that retries and transient backoffs on one
// source never delay delivery from the others (requirement 1, §4.3).
func (a *Aggregator) Run(ctx context.Context) error {
	defer close(a.out)

	// Each source gets its own errgroup member; pump never itself returns
	// a non-nil error (per-source faults are swallowed and logged), so the
	// group's only job is to wait for every source to unwind on shutdown,
	// not to cancel siblings on a sibling's failure.
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range a.sources {
		src := src
		g.Go(func() error {
			a.pump(gctx, src)
			return nil
		})
	}
	g.Wait()
	return ctx.Err()
}

// pump drives one source until it permanently exhausts or ctx is done,
// swallowing transient per-source errors (requirement 2) and logging them.
func (a *Aggregator) pump(ctx context.Context, src Source) {
	defer src.Close()
	for {
		if a.gate.NoNewPeers() {
			// Requirement 3: stop producing while back-pressure is signalled.
			// Sources keep their internal state; we just don't pull or push.
			select {
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
				continue
			}
		}

		record, ok, err := src.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			aggLog.Debug("discovery source error", "source", src.Name(), "err", err)
			continue
		}
		if !ok {
			aggLog.Debug("discovery source exhausted", "source", src.Name())
			return
		}

		metrics.DiscoveryCandidates.WithLabelValues(src.Name()).Inc()
		select {
		case a.out <- Event{Source: src.Name(), Record: record}:
		case <-ctx.Done():
			return
		}
	}
}
