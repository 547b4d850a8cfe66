// Package http provides the REST API of the host synchronization service.
//
// Endpoints:
//   - Health: / and /health
//   - Services: /services, /services/discover, /services/execute
//   - Kernel: GET /kernel, POST /kernel/install, POST /kernel/remove
//   - Locale: GET /locale, POST /locale, POST /locale/generate
//
// Rejected input (no categories, bad locale or package names, a locale
// missing from the manifest) answers 400. Probe and I/O failures answer
// 500. A privileged mutation that ran answers 200 with its outcome, whether
// it succeeded or not; the outcome's kind tells the caller what happened.
//
// Example Usage:
//
//	handlers := http.NewHandlers(registry, reconciler, manager, bus, hub)
//	handlers.RegisterRoutes(router)
package http
