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

	"github.com/ground-x/ethsentry/p2pkey"
)

// StaticSource re-offers a fixed, user-supplied address list every interval.
// It never exhausts — Next always eventually returns a record unless the
// context is cancelled first.
type StaticSource struct {
	records  []p2pkey.NodeRecord
	interval time.Duration

	idx     int
	nextDue time.Time
}

// NewStatic builds a StaticSource over peers, re-offering the whole list
// once every interval.
func NewStatic(peers []p2pkey.NodeRecord, interval time.Duration) *StaticSource {
	return &StaticSource{records: peers, interval: interval}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Next(ctx context.Context) (p2pkey.NodeRecord, bool, error) {
	if len(s.records) == 0 {
		<-ctx.Done()
		return p2pkey.NodeRecord{}, false, ctx.Err()
	}
	if s.idx == 0 {
		wait := time.Until(s.nextDue)
		if wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return p2pkey.NodeRecord{}, false, ctx.Err()
			case <-t.C:
			}
		}
	}
	r := s.records[s.idx]
	s.idx++
	if s.idx == len(s.records) {
		s.idx = 0
		s.nextDue = time.Now().Add(s.interval)
	}
	return r, true, nil
}

func (s *StaticSource) Close() error { return nil }
