// Command ledgerkv-server runs a ledgerkv engine behind a net/rpc
// listener.
//
// Usage:
//
//	ledgerkv-server [listen-address] [data-directory] [--gc-threshold=<bytes>]
package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/spf13/pflag"

	"github.com/davros-labs/ledgerkv/service"
	"github.com/davros-labs/ledgerkv/storage"
)

const (
	// defaultListenAddress matches cmd/ledgerkv-client's defaultServerAddress
	// so a no-argument server and a no-argument client can reach each other.
	defaultListenAddress = "127.0.0.1:8765"
	defaultDataDirectory = "./db"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("ledgerkv-server", pflag.ContinueOnError)
	gcThreshold := flags.Int64("gc-threshold", storage.DefaultGCThreshold, "log size, in bytes, at which compaction runs")
	cacheBudget := flags.Int64("cache-budget", storage.DefaultCacheBudget, "value cache byte budget")
	if err := flags.Parse(args); err != nil {
		return err
	}

	positional := flags.Args()
	listenAddress := defaultListenAddress
	dataDirectory := defaultDataDirectory
	if len(positional) > 0 {
		listenAddress = positional[0]
	}
	if len(positional) > 1 {
		dataDirectory = positional[1]
	}

	engine, err := storage.Open(dataDirectory,
		storage.WithGCThreshold(*gcThreshold),
		storage.WithCacheBudget(*cacheBudget),
	)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer engine.Close()

	listener, err := net.Listen("tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", listenAddress, err)
	}
	defer listener.Close()

	slog.Info("ledgerkv-server: listening", "address", listener.Addr().String(), "dir", dataDirectory)

	svc := service.New(engine)
	return service.Serve(svc, listener)
}
