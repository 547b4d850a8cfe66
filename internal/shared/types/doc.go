// Package types provides shared data structures for the hostsync backend.
//
// Host snapshots:
//   - KernelInfo: running, installed and installable kernels
//   - LocaleStatus: persisted locale, manifest and generated locales
//   - MutationOutcome: result of a privileged action
//
// Service model:
//   - Service, Tool, Parameter: provider definitions
//   - Context, Result: tool execution envelope
//
// Request types:
//   - ExecuteRequest: service tool execution
//   - GenerateLocaleRequest, PackageRequest: REST mutation bodies
//   - WSMessage: WebSocket observer messages
package types
