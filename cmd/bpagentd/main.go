// ════════════════════════════════════════════════════════════════════════════════════════════════
// Bundle Agent Daemon - Main Entry Point
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Component: Main Entry Point & System Orchestration
//
// Description:
//   Phased startup: open storage, create an empty route table, wire the
//   agent, then run the convergence-layer accept loop until interrupted.
//
// Architecture:
//   - Phase 1: Open storage from disk and create an empty route table
//   - Phase 2: Wire the bundle agent
//   - Phase 3: Accept convergence-layer sessions and run the retx ticker
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glan6388/bplib/bpagent"
	"github.com/glan6388/bplib/convergence"
	"github.com/glan6388/bplib/internal/config"
	"github.com/glan6388/bplib/internal/logx"
	"github.com/glan6388/bplib/routetable"
	"github.com/glan6388/bplib/storage"
)

func main() {
	cfg := config.Default()

	listenAddr := flag.String("listen", ":4556", "convergence-layer listen address")
	storagePath := flag.String("storage", cfg.StoragePath, "sqlite path for bundle bodies")
	flag.Parse()
	cfg.StoragePath = *storagePath

	// PHASE 1: bootstrap
	logx.Info("INIT", "opening storage at "+cfg.StoragePath)
	store, err := storage.Open(cfg.StoragePath)
	if err != nil {
		logx.Warn("FATAL: open storage", err)
		os.Exit(1)
	}
	defer store.Close()

	routes := routetable.New(cfg.ActiveTableSize)

	// PHASE 2: wire the agent
	agent, err := bpagent.New(cfg, store, routes)
	if err != nil {
		logx.Warn("FATAL: construct agent", err)
		os.Exit(1)
	}

	if err := bpagent.LockMemory(); err != nil {
		logx.Warn("WARN: LockMemory", err)
	}

	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		logx.Warn("FATAL: listen", err)
		os.Exit(1)
	}
	defer ln.Close()
	logx.Info("LISTEN", *listenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		agent.Lifecycle().Shutdown()
		ln.Close()
	}()

	// PHASE 3: accept loop
	go runRetxTicker(agent, cfg.RetxTickInterval)

	for !agent.Lifecycle().Stopped() {
		conn, err := ln.Accept()
		if err != nil {
			if agent.Lifecycle().Stopped() {
				break
			}
			logx.Warn("accept", err)
			continue
		}
		go handleSession(agent, conn)
	}

	logx.Info("SHUTDOWN", "agent stopped, "+itoa(agent.Count())+" bundles still in custody")
}

func handleSession(agent *bpagent.Agent, conn net.Conn) {
	sess := convergence.NewSession(conn, "")
	defer sess.Close()

	for {
		frame, err := sess.Recv()
		if err != nil {
			logx.Warn("session closed", err)
			return
		}
		if _, err := agent.Receive(frame); err != nil {
			logx.Warn("receive bundle", err)
		}
	}
}

func runRetxTicker(agent *bpagent.Agent, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var tick int64
	for range ticker.C {
		if agent.Lifecycle().Stopped() {
			return
		}
		tick++
		agent.Lifecycle().PollCooldown()
		if cid, ok := agent.DueForRetransmission(tick); ok {
			logx.Info("RETX", "cid due for retransmission: "+itoa(int(cid)))
		}
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
