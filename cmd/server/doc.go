// Package main is the entry point for the hostsync server.
//
// hostsync exposes the kernel and locale state of an Arch-style host over
// HTTP and WebSocket, and performs kernel package and locale changes through
// a privilege broker (pkexec by default). Every change is followed by a
// fresh snapshot pushed to all connected observers.
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Listen on all interfaces
//	./server -host 0.0.0.0 -port 8000
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
