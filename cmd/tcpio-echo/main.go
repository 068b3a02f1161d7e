// Command tcpio-echo is a small demonstration server: it accepts TCP
// connections, frames incoming bytes with a 16-bit length prefix, and
// echoes each decoded message straight back to its sender.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jseow5177/tcpio/config"
	"github.com/jseow5177/tcpio/framer"
	"github.com/jseow5177/tcpio/reactor"
	"github.com/jseow5177/tcpio/tcp"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.InitConfig()

	logger := log.New(os.Stderr, "tcpio-echo: ", log.LstdFlags)

	group := reactor.NewGroup()

	epCfg := tcp.DefaultConfig()
	epCfg.MaxConns = cfg.MaxConns
	epCfg.DrainBatch = cfg.DrainBatch
	epCfg.FastFlush = cfg.FastFlush
	epCfg.IdleFlush = cfg.IdleFlush

	ep, err := tcp.NewServer(cfg.ListenAddr, group, epCfg)
	if err != nil {
		logger.Fatalf("listen on %s: %v", cfg.ListenAddr, err)
	}
	if cfg.Verbose {
		ep.SetLogger(logger)
	}

	ep.SetAcceptCallback(func(c *tcp.Connection) int {
		if cfg.Verbose {
			logger.Printf("accepted %s from %s", c.ID(), c.Peer())
		}
		return 0
	})
	ep.SetCloseCallback(func(c *tcp.Connection, code int) {
		if cfg.Verbose {
			logger.Printf("closed %s: code=%d", c.ID(), code)
		}
	})
	ep.SetParseCallback(func(data []byte) ([]byte, int, error) {
		return framer.Parse16(data, 1<<20)
	})
	ep.SetReceiveCallback(func(c *tcp.Connection, msg []byte) {
		reply, err := framer.Pack16(msg)
		if err != nil {
			return
		}
		if _, err := ep.Send(c, reply); err != nil && cfg.Verbose {
			logger.Printf("send to %s: %v", c.ID(), err)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return group.Run(gctx)
	})

	logger.Printf("listening on %s", cfg.ListenAddr)

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Printf("reactor stopped: %v", err)
	}
	ep.Release()
}
