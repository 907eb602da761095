// streamremote-server serves the remote-control protocol in front of a dummy
// streaming software.
//
// The server listens on TCP (length-prefixed frames) and WebSocket, and
// announces itself as _streamremote._tcp over mDNS. On first run a password is
// generated and stored in the configuration file. SIGHUP reloads the
// configuration: changed ports are rebound and a changed password applies to
// new connections.
//
// Usage:
//
//	streamremote-server [options]
//
// Options:
//
//	-config        Configuration file (default: ./streamremote.* or ~/.streamremote/)
//	-password      Remote-control password (default: from config, generated on first run)
//	-tcp-port      TCP port (default: 9001)
//	-ws-port       WebSocket port (default: 9002)
//	-log-level     off|error|warn|info|debug|trace (default: info)
//	-no-advertise  Do not announce the server over mDNS
//	-name          mDNS instance name (default: random)
//	-handshake-timeout  Timeout for unauthenticated connections (default: 10s)
//
// Example:
//
//	streamremote-server -tcp-port 9101 -ws-port 9102 -log-level debug
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/backkem/streamremote/examples/common"
	"github.com/backkem/streamremote/examples/studio"
)

func main() {
	opts := common.ParseFlags()

	cfg, err := opts.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	loggerFactory, err := common.NewLoggerFactory(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}

	st, err := studio.New(studio.Options{Config: cfg, LoggerFactory: loggerFactory})
	if err != nil {
		log.Fatalf("Failed to create studio: %v", err)
	}
	defer st.Close()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			next, err := opts.LoadConfig()
			if err != nil {
				log.Printf("Reload failed: %v", err)
				continue
			}
			log.Println("Configuration reloaded")
			st.Reload(next)
		}
	}()

	// Blocks until interrupted.
	if err := common.RunServer(st.Server, cfg); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
