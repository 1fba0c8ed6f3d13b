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

// sentryd is the process entrypoint: it parses flags, loads or generates
// the node key, raises the file-descriptor limit, bridges a zap bootstrap
// logger into go-ethereum's log package, assembles a sentry.Sentry, and
// runs it until an interrupt signal arrives.
package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	ethlog "github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ground-x/ethsentry/ethproto"
	"github.com/ground-x/ethsentry/internal/rlimit"
	"github.com/ground-x/ethsentry/p2pkey"
	"github.com/ground-x/ethsentry/sentry"
	"go.uber.org/zap"
	"gopkg.in/urfave/cli.v1"
)

var (
	app = cli.NewApp()

	listenPortFlag = cli.IntFlag{Name: "listen_port", Value: 30303, Usage: "RLPx listen port"}
	maxPeersFlag   = cli.IntFlag{Name: "max_peers", Value: 50, Usage: "maximum connected+dialing peers"}
	cidrFlag       = cli.StringFlag{Name: "cidr", Usage: "optional CIDR all admitted peers must fall within"}
	nodeKeyFlag    = cli.StringFlag{Name: "node_key", Usage: "path to a hex-encoded secp256k1 private key; generated if absent"}

	noDiscoveryFlag        = cli.BoolFlag{Name: "no_discovery", Usage: "disable discv4"}
	discv4PortFlag         = cli.IntFlag{Name: "discv4_port", Value: 30303, Usage: "discv4 UDP listen port"}
	discv4BootnodesFlag    = cli.StringFlag{Name: "discv4_bootnodes", Usage: "comma-separated enode:// bootstrap list"}
	discv4CacheFlag        = cli.IntFlag{Name: "discv4_cache", Value: 1024, Usage: "discv4 remembered-node cache size"}
	discv4ConcurrencyFlag  = cli.IntFlag{Name: "discv4_concurrent_lookups", Value: 16, Usage: "discv4 concurrent lookup fan-out"}
	discv5Flag             = cli.BoolFlag{Name: "discv5", Usage: "enable discv5 alongside discv4"}
	discv5AddrFlag         = cli.StringFlag{Name: "discv5_addr", Value: "0.0.0.0:30304", Usage: "discv5 UDP bind address"}
	discv5BootnodesFlag    = cli.StringFlag{Name: "discv5_bootnodes", Usage: "comma-separated enr: or enode:// bootstrap list"}
	dnsdiscAddressFlag     = cli.StringFlag{Name: "dnsdisc_address", Usage: "enrtree:// DNS discovery root"}
	staticPeersFlag        = cli.StringFlag{Name: "static_peers", Usage: "comma-separated enode:// static peer list"}
	staticPeersIntervalFlag = cli.DurationFlag{Name: "static_peers_interval", Value: 30 * time.Second, Usage: "static peer re-dial interval"}

	networkIDFlag = cli.Uint64Flag{Name: "network_id", Value: 1, Usage: "chain network id advertised in Status"}
)

func init() {
	app.Name = "sentryd"
	app.Usage = "devp2p relay: discovery aggregation, RLPx sessions, eth/66 handshake, downstream broadcast"
	app.Flags = []cli.Flag{
		listenPortFlag, maxPeersFlag, cidrFlag, nodeKeyFlag,
		noDiscoveryFlag, discv4PortFlag, discv4BootnodesFlag, discv4CacheFlag, discv4ConcurrencyFlag,
		discv5Flag, discv5AddrFlag, discv5BootnodesFlag,
		dnsdiscAddressFlag, staticPeersFlag, staticPeersIntervalFlag,
		networkIDFlag,
	}
	app.Action = run
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	zlog, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("sentryd: build logger: %w", err)
	}
	defer zlog.Sync()
	ethlog.Root().SetHandler(zapBridgeHandler{zlog.Sugar()})

	if limit, err := rlimit.Raise(); err != nil {
		zlog.Warn("could not raise file descriptor limit", zap.Error(err))
	} else {
		zlog.Info("file descriptor limit", zap.Uint64("soft", limit))
	}

	key, err := loadOrGenerateKey(ctx.String(nodeKeyFlag.Name))
	if err != nil {
		return fmt.Errorf("sentryd: node key: %w", err)
	}

	cidr, err := parseOptionalCIDR(ctx.String(cidrFlag.Name))
	if err != nil {
		return fmt.Errorf("sentryd: %w", err)
	}

	staticPeers, err := parseEnodeList(ctx.String(staticPeersFlag.Name))
	if err != nil {
		return fmt.Errorf("sentryd: static_peers: %w", err)
	}
	discv4Bootnodes, err := parseEnodeURLList(ctx.String(discv4BootnodesFlag.Name))
	if err != nil {
		return fmt.Errorf("sentryd: discv4_bootnodes: %w", err)
	}
	var discv5Bootnodes []*enode.Node
	for _, s := range splitNonEmpty(ctx.String(discv5BootnodesFlag.Name)) {
		n, err := enode.Parse(enode.ValidSchemes, s)
		if err != nil {
			return fmt.Errorf("sentryd: discv5_bootnodes: %q: %w", s, err)
		}
		discv5Bootnodes = append(discv5Bootnodes, n)
	}

	var discv5Addr *net.UDPAddr
	if ctx.Bool(discv5Flag.Name) {
		discv5Addr, err = net.ResolveUDPAddr("udp", ctx.String(discv5AddrFlag.Name))
		if err != nil {
			return fmt.Errorf("sentryd: discv5_addr: %w", err)
		}
	}

	cfg := sentry.Config{
		ListenAddr:          fmt.Sprintf(":%d", ctx.Int(listenPortFlag.Name)),
		MaxPeers:            ctx.Int(maxPeersFlag.Name),
		CIDR:                cidr,
		ClientVersion:       "sentry/v0.1.0",
		PrivateKey:          key,
		NoDiscovery:         ctx.Bool(noDiscoveryFlag.Name),
		StaticPeers:         staticPeers,
		StaticPeersInterval: ctx.Duration(staticPeersIntervalFlag.Name),
		Discv4Port:          ctx.Int(discv4PortFlag.Name),
		Discv4Bootnodes:     discv4Bootnodes,
		Discv4CacheSize:     ctx.Int(discv4CacheFlag.Name),
		Discv4Concurrency:   ctx.Int(discv4ConcurrencyFlag.Name),
		EnableDiscv5:        ctx.Bool(discv5Flag.Name),
		Discv5Addr:          discv5Addr,
		Discv5Bootnodes:     discv5Bootnodes,
		DNSDiscoveryURL:     ctx.String(dnsdiscAddressFlag.Name),
	}

	forkFilter := ethproto.NewForkFilter(ethproto.ForkID{})
	s, err := sentry.New(cfg, forkFilter)
	if err != nil {
		return fmt.Errorf("sentryd: %w", err)
	}
	s.SetStatus(ethproto.ChainStatus{NetworkID: ctx.Uint64(networkIDFlag.Name)})

	runCtx, cancel := context.WithCancel(context.Background())
	go drainBridge(runCtx, s)
	defer cancel()
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		cancel()
	}()

	return s.Run(runCtx)
}

// drainBridge logs what the broadcast bridge (C7) emits. A real deployment
// would forward these queues onto whatever consumes sentry output; this
// binary's own job ends at observability.
func drainBridge(ctx context.Context, s *sentry.Sentry) {
	b := s.Bridge()
	b.Subscribe()
	defer b.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-b.Data():
			ethlog.Debug("inbound message", "peer", msg.PeerID, "msg_id", msg.MessageID, "bytes", len(msg.Data))
		case reply := <-b.PeerStatus():
			ethlog.Info("peer status", "peer", reply.PeerID, "kind", reply.Kind)
		}
	}
}

func loadOrGenerateKey(path string) (*ecdsa.PrivateKey, error) {
	if path == "" {
		return crypto.GenerateKey()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		return key, crypto.SaveECDSA(path, key)
	}
	return crypto.LoadECDSA(path)
}

func parseOptionalCIDR(s string) (*net.IPNet, error) {
	if s == "" {
		return nil, nil
	}
	_, ipnet, err := net.ParseCIDR(s)
	return ipnet, err
}

func parseEnodeList(csv string) ([]p2pkey.NodeRecord, error) {
	if csv == "" {
		return nil, nil
	}
	var out []p2pkey.NodeRecord
	for _, s := range splitNonEmpty(csv) {
		rec, err := p2pkey.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", s, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseEnodeURLList(csv string) ([]*enode.Node, error) {
	recs, err := parseEnodeList(csv)
	if err != nil {
		return nil, err
	}
	out := make([]*enode.Node, 0, len(recs))
	for _, r := range recs {
		n, err := r.ToENode()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func splitNonEmpty(csv string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			if i > start {
				out = append(out, csv[start:i])
			}
			start = i + 1
		}
	}
	return out
}
