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

package main

import (
	ethlog "github.com/ethereum/go-ethereum/log"
	"go.uber.org/zap"
)

// zapBridgeHandler adapts go-ethereum's log.Handler interface onto a zap
// SugaredLogger, so every module logger created with ethlog.New (sentry,
// discovery, swarm, ethproto, p2p itself) ends up structured through the
// same process-wide logger as this binary's own bootstrap messages.
type zapBridgeHandler struct {
	z *zap.SugaredLogger
}

func (h zapBridgeHandler) Log(r *ethlog.Record) error {
	args := make([]interface{}, 0, len(r.Ctx)+2)
	args = append(args, "module_logger", true)
	args = append(args, r.Ctx...)

	switch r.Lvl {
	case ethlog.LvlCrit, ethlog.LvlError:
		h.z.Errorw(r.Msg, args...)
	case ethlog.LvlWarn:
		h.z.Warnw(r.Msg, args...)
	case ethlog.LvlInfo:
		h.z.Infow(r.Msg, args...)
	default:
		h.z.Debugw(r.Msg, args...)
	}
	return nil
}
