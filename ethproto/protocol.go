// Copyright 2024 The ethsentry Authors
// Copyright 2018 The klaytn Authors
// Copyright 2014 The go-ethereum Authors
// This file is part of go-ethereum.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.
//
// This file is derived from node/cn/protocol.go, itself derived from eth/protocol.go.
// Modified and improved for the ethsentry capability dispatcher.

// Package ethproto implements the eth/66 capability dispatcher (C6): the
// per-peer Status handshake, fork-id validation, liveness tracking via
// BlockTracker, and the gate between inbound RLPx frames and the downstream
// broadcast bridge (C7).
package ethproto

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// ProtocolName and ProtocolVersion are negotiated during RLPx Hello
// exchange (§6): CapabilityName("eth"), version=66.
const (
	ProtocolName    = "eth"
	ProtocolVersion = 66

	// ProtocolLength is the size of the eth/66 message-id space (ids 0x00
	// through 0x10); anything at or above it is an unknown id (§4.6,
	// dropped with a debug log, no penalty).
	ProtocolLength = 17

	// OutboundQueueDepth records the eth/66 outbound queue depth (§6): 17.
	// Nothing in this package applies it: every peer's Pipes channel, the
	// phase drained after the initial vector, holds 1 event (§3, §5).
	OutboundQueueDepth = 17

	// No message-size cap is defined here beyond the RLPx frame cap
	// (2,097,120 bytes, enforced by the wrapped transport).
)

// Message ids interpreted or passed through by this dispatcher. Only
// StatusMsg (id 0) is ever decoded here; every other id is opaque
// pass-through to the downstream broadcast bridge (§6).
const (
	StatusMsg                     = 0x00
	NewBlockHashesMsg             = 0x01
	TransactionsMsg               = 0x02
	GetBlockHeadersMsg            = 0x03
	BlockHeadersMsg               = 0x04
	GetBlockBodiesMsg             = 0x05
	BlockBodiesMsg                = 0x06
	NewBlockMsg                   = 0x07
	NewPooledTransactionHashesMsg = 0x08
	GetPooledTransactionsMsg      = 0x09
	PooledTransactionsMsg         = 0x0a
	GetNodeDataMsg                = 0x0d
	NodeDataMsg                   = 0x0e
	GetReceiptsMsg                = 0x0f
	ReceiptsMsg                   = 0x10
)

// EthMessageID is the closed set of message ids this capability version
// defines (§4.6: "if EthMessageId::from_usize(id) succeeds, forward...").
type EthMessageID uint64

// FromUsize reports whether id names a known eth/66 message. Message ids
// at or beyond ProtocolLength are unknown and must be dropped, not
// forwarded or penalised (§4.6).
func FromUsize(id uint64) (EthMessageID, bool) {
	// 0x0b and 0x0c lie inside the id space but name no eth/66 message.
	if id >= ProtocolLength || id == 0x0b || id == 0x0c {
		return 0, false
	}
	return EthMessageID(id), true
}

// ForkID summarises a node's chain-fork history as a compact (hash, next)
// pair, RLP-shaped identically to go-ethereum's core/forkid.ID so it
// round-trips against real eth/66 peers without depending on the core
// package (this relay carries no chain state — explicit Non-goal).
type ForkID struct {
	Hash [4]byte
	Next uint64
}

// ChainStatus is the network/chain summary exchanged in Status (§3).
type ChainStatus struct {
	NetworkID       uint64
	TotalDifficulty []byte // big-endian big.Int bytes; avoids a math/big RLP dependency surface here
	BestHash        [32]byte
	GenesisHash     [32]byte
	ForkID          ForkID
}

// statusData is the RLP wire shape of the Status message body (§4.6):
// [protocol_version, network_id, total_difficulty, best_hash, genesis_hash, fork_id].
type statusData struct {
	ProtocolVersion uint32
	NetworkID       uint64
	TotalDifficulty []byte
	BestHash        [32]byte
	GenesisHash     [32]byte
	ForkID          ForkID
}

// encodeStatus builds the wire-shape statusData for the protocol version
// negotiated in this session (passed in, not global — different peers may
// negotiate different versions, §9).
func encodeStatus(version uint32, cs ChainStatus) statusData {
	return statusData{
		ProtocolVersion: version,
		NetworkID:       cs.NetworkID,
		TotalDifficulty: cs.TotalDifficulty,
		BestHash:        cs.BestHash,
		GenesisHash:     cs.GenesisHash,
		ForkID:          cs.ForkID,
	}
}

// decodeStatus RLP-decodes a Status message body. A decode failure is
// fatal-to-peer (ProtocolBreach, §4.6/§7) and is surfaced as an error, not
// a panic.
func decodeStatus(data []byte) (statusData, error) {
	var sd statusData
	if err := rlp.DecodeBytes(data, &sd); err != nil {
		return statusData{}, fmt.Errorf("ethproto: status decode: %w", err)
	}
	return sd, nil
}

// encodeStatusBytes RLP-encodes the Status message body we send to a newly
// connected peer.
func encodeStatusBytes(version uint32, cs ChainStatus) ([]byte, error) {
	sd := encodeStatus(version, cs)
	return rlp.EncodeToBytes(&sd)
}
