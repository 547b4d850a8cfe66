// Package service is the tool registry that fronts the host components.
//
// Providers describe themselves with a types.Service definition and are
// invoked by tool ID ("kernel.install", "locale.status"). The registry
// times each call and reports it to monitoring; it holds no host state.
//
// Example Usage:
//
//	reg := service.NewRegistry().WithMetrics(metrics)
//	_ = reg.Register(kernel.NewProvider(manager))
//	result, err := reg.Execute(ctx, "kernel.info", nil, nil)
package service
