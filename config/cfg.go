// Package config holds the flag-bound configuration for the demo
// binaries in cmd/, in the same flag-based style the rest of this
// module's ancestry uses for its own leaf entrypoints.
package config

import (
	"flag"
	"time"

	"github.com/jseow5177/tcpio/tcp"
)

// Config is the set of knobs the tcpio-echo demo binary exposes on its
// command line.
type Config struct {
	ListenAddr string
	MaxConns   int
	DrainBatch int
	FastFlush  time.Duration
	IdleFlush  time.Duration
	Verbose    bool
}

// InitConfig parses os.Args-style flags into a Config. Call it once
// from main.
func InitConfig() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.ListenAddr, "listen", "127.0.0.1:9000", "address to listen on (a.b.c.d:port)")
	flag.IntVar(&cfg.MaxConns, "max-conns", tcp.MaxConnections, "maximum simultaneous connections (0 = unbounded)")
	flag.IntVar(&cfg.DrainBatch, "drain-batch", 128, "write-queue entries drained per flush tick")
	flag.DurationVar(&cfg.FastFlush, "fast-flush", 1*time.Millisecond, "flush tick interval while the write queue is non-empty")
	flag.DurationVar(&cfg.IdleFlush, "idle-flush", 500*time.Millisecond, "flush tick interval while the write queue is empty")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "log accept/close/parse-error diagnostics to stderr")

	flag.Parse()
	return cfg
}
