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

package ethproto

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/p2p"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ground-x/ethsentry/p2pkey"
)

// NewProtocol adapts Server onto go-ethereum's p2p.Protocol contract: the
// RLPx transport (C4) calls Run once per negotiated session and expects it
// to block until the session ends.
func NewProtocol(server *Server) p2p.Protocol {
	return p2p.Protocol{
		Name:    ProtocolName,
		Version: ProtocolVersion,
		Length:  ProtocolLength,
		Run:     server.run,
	}
}

func (s *Server) run(peer *p2p.Peer, rw p2p.MsgReadWriter) error {
	pub := peer.Node().Pubkey()
	if pub == nil {
		return fmt.Errorf("ethproto: peer has no secp256k1 identity")
	}
	id := p2pkey.FromECDSA(pub)

	pipes := s.OnPeerConnect(id)
	defer s.OnPeerEvent(id, InboundEvent{IsDisconnect: true, Reason: ClientQuitting})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 2)

	go func() {
		for {
			ev, ok := pipes.Next(ctx)
			if !ok {
				errc <- nil
				return
			}
			if ev.IsDisconnect {
				errc <- fmt.Errorf("ethproto: %s", ev.Reason)
				return
			}
			if err := p2p.Send(rw, ev.MessageID, rlp.RawValue(ev.Data)); err != nil {
				errc <- err
				return
			}
		}
	}()

	go func() {
		for {
			msg, err := rw.ReadMsg()
			if err != nil {
				errc <- err
				return
			}
			data, err := io.ReadAll(msg.Payload)
			if err != nil {
				errc <- err
				return
			}
			s.OnPeerEvent(id, InboundEvent{MessageID: msg.Code, Data: data})
		}
	}()

	return <-errc
}
