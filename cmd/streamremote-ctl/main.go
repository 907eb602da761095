// streamremote-ctl controls a streamremote server from the command line.
//
// Usage:
//
//	streamremote-ctl [options] <command> [args]
//
// Commands:
//
//	list                 Print all outputs
//	start <id>           Start an output
//	stop <id>            Stop an output
//	delay <id> <secs>    Set an output's delay
//	watch                Print output state changes until interrupted
//	discover             Browse for servers over mDNS
//
// Options:
//
//	-addr       Server address: tcp://host:port, ws://host:port/ or host:port
//	            (default: first server found over mDNS)
//	-password   Remote-control password (default: $STREAMREMOTE_PASSWORD)
//	-timeout    Request timeout (default: 10s)
//	-log-level  off|error|warn|info|debug|trace (default: off)
//
// Example:
//
//	streamremote-ctl -addr tcp://studio.local:9001 -password secret start stream
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/backkem/streamremote/examples/common"
	"github.com/backkem/streamremote/examples/controller"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] <list|start|stop|delay|watch|discover> [args]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
}

func main() {
	var (
		addr     = flag.String("addr", "", "Server address (default: discover over mDNS)")
		password = flag.String("password", os.Getenv("STREAMREMOTE_PASSWORD"), "Remote-control password")
		timeout  = flag.Duration("timeout", controller.DefaultTimeout, "Request timeout")
		logLevel = flag.String("log-level", "off", "Log level (off, error, warn, info, debug, trace)")
	)
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	loggerFactory, err := common.NewLoggerFactory(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}

	ctrl, err := controller.New(controller.Options{
		Address:       *addr,
		Password:      *password,
		Timeout:       *timeout,
		LoggerFactory: loggerFactory,
	})
	if err != nil {
		log.Fatalf("Failed to create controller: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, ctrl, args[0], args[1:]); err != nil {
		stop()
		log.Fatalf("%s: %v", args[0], err)
	}
}

func run(ctx context.Context, ctrl *controller.Controller, cmd string, args []string) error {
	need := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("expected %d argument(s), got %d", n, len(args))
		}
		return nil
	}

	switch cmd {
	case "list":
		return ctrl.List(ctx)
	case "start":
		if err := need(1); err != nil {
			return err
		}
		return ctrl.Start(ctx, args[0])
	case "stop":
		if err := need(1); err != nil {
			return err
		}
		return ctrl.Stop(ctx, args[0])
	case "delay":
		if err := need(2); err != nil {
			return err
		}
		secs, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid delay %q: %w", args[1], err)
		}
		return ctrl.Delay(ctx, args[0], secs)
	case "watch":
		return ctrl.Watch(ctx)
	case "discover":
		_, err := ctrl.Discover(ctx)
		return err
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}
