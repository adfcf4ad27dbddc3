// shapenet-server: runs training jobs on behalf of clients. Speaks the
// control protocol on stdin/stdout, or on TCP with --listen.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"shapenet/control"
	"shapenet/pipeline"
	"shapenet/run"
	"shapenet/utils"
)

var defaults = utils.Defaults()

var (
	listen    = flag.String("listen", "", "TCP address to listen on (default: stdin/stdout)")
	storeKind = flag.String("store", defaults.StoreKind, "Checkpoint store: file, sqlite")
	storePath = flag.String("store-path", defaults.StorePath, "Checkpoint directory or database file")
	outDir    = flag.String("out", defaults.OutputDir, "Root directory for per-run frames and GIFs")
	logKind   = flag.String("log", "sqlite", "Training log: csv, sqlite, or empty for none")
	logPath   = flag.String("log-path", "", "Training log file (default: under --out)")
	verbose   = flag.Bool("verbose", false, "Verbose output")
)

func main() {
	flag.Parse()
	// stdout may carry the protocol
	utils.Output = os.Stderr
	utils.Verbose = *verbose

	cfg := defaults
	cfg.StoreKind = *storeKind
	cfg.StorePath = *storePath
	cfg.OutputDir = *outDir
	cfg.LogKind = *logKind
	cfg.LogPath = *logPath

	res, err := pipeline.Open(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer res.Close()

	manager := run.NewManager()
	factory := pipeline.Factory(cfg, res)
	log("shapenet server starting (store=%s %s)", cfg.StoreKind, cfg.StorePath)

	if *listen == "" {
		if err := control.Serve(control.NewProtocol(os.Stdin, os.Stdout), manager, factory); err != nil {
			log("Error: %v", err)
		}
		waitAll(manager)
		log("Server done")
		return
	}

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log("Listening on %s", ln.Addr())
	for {
		conn, err := ln.Accept()
		if err != nil {
			log("Accept: %v", err)
			continue
		}
		go func(conn net.Conn) {
			defer conn.Close()
			log("Client %s connected", conn.RemoteAddr())
			if err := control.Serve(control.NewProtocol(conn, conn), manager, factory); err != nil {
				log("Client %s: %v", conn.RemoteAddr(), err)
			}
			log("Client %s gone", conn.RemoteAddr())
		}(conn)
	}
}

// waitAll lets runs started over stdio finish before the process exits.
func waitAll(m *run.Manager) {
	for _, h := range m.Handles() {
		if err := m.Wait(h); err != nil {
			log("Run %s failed: %v", h, err)
		}
	}
}

func log(format string, args ...interface{}) {
	if *verbose {
		fmt.Fprintf(os.Stderr, "[SERVER] "+format+"\n", args...)
	}
}
