// Package providers groups the service providers registered with the tool
// registry.
//
// Each provider exposes one host component through a tool-based interface:
//   - kernel: kernel snapshot, kernel package install and removal
//   - locale: locale status, apply and generate
//   - system: service health, host summary and recent state events
//
// Provider Interface:
//   - Definition(): Returns service metadata and tool definitions
//   - Execute(): Executes a tool with parameters and context
//
// Tools that change the host are marked Privileged in their definition;
// they run through the privilege broker and always return the outcome of
// the attempt, successful or not.
package providers
