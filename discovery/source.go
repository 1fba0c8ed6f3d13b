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

// Package discovery fans in four heterogeneous peer-address producers —
// DNS tree walk, discv4, discv5, and a static list — into one named stream
// of candidate node records, tolerating per-source failure and honoring a
// global back-pressure flag.
package discovery

import (
	"context"

	"github.com/ground-x/ethsentry/p2pkey"
)

// Source is the uniform contract every discovery producer satisfies: a
// lazy, possibly-infinite sequence of NodeRecords that may fail transiently
// without terminating the aggregator. Next blocks until a record is ready,
// the context is cancelled, or the source is permanently exhausted.
type Source interface {
	// Name identifies the source in aggregator events and logs.
	Name() string

	// Next returns the next candidate, or an error for a transient fault
	// (logged and retried by the caller), or (zero, false, nil) once the
	// source is permanently exhausted (only the static source never is).
	Next(ctx context.Context) (p2pkey.NodeRecord, bool, error)

	// Close releases any sockets or background resolvers the source owns.
	Close() error
}
