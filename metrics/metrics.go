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

// Package metrics exposes the sentry's ambient observability surface via
// prometheus/client_golang, following the rest of the dependency pack's
// convention of a single package-level registry rather than per-component
// metric wiring.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ConnectedPeers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ethsentry",
		Name:      "connected_peers",
		Help:      "Number of peers with a live RLPx session.",
	})

	DialingPeers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ethsentry",
		Name:      "dialing_peers",
		Help:      "Number of outbound dials currently in flight.",
	})

	ValidPeers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ethsentry",
		Name:      "valid_peers",
		Help:      "Number of peers that completed the eth/66 Status handshake.",
	})

	DiscoveryCandidates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ethsentry",
		Name:      "discovery_candidates_total",
		Help:      "Candidate node records yielded by each discovery source.",
	}, []string{"source"})

	AdmissionRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ethsentry",
		Name:      "admission_rejections_total",
		Help:      "Dial candidates rejected by the admission gate, by reason.",
	}, []string{"reason"})

	BlockTrackerPeers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ethsentry",
		Name:      "blocktracker_peers",
		Help:      "Number of peers currently tracked in the block tracker.",
	})

	BridgeDrops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ethsentry",
		Name:      "broadcast_bridge_drops_total",
		Help:      "Messages dropped from a full broadcast bridge queue, by queue.",
	}, []string{"queue"})
)

func init() {
	prometheus.MustRegister(
		ConnectedPeers,
		DialingPeers,
		ValidPeers,
		DiscoveryCandidates,
		AdmissionRejections,
		BlockTrackerPeers,
		BridgeDrops,
	)
}
