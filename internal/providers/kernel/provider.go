package kernel

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/hostsync/internal/shared/types"
)

// Provider exposes the kernel manager as registry tools
type Provider struct {
	manager *Manager
}

// NewProvider creates a kernel provider
func NewProvider(manager *Manager) *Provider {
	return &Provider{manager: manager}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	pkgParam := types.Parameter{
		Name:        "package",
		Type:        "string",
		Description: "Kernel package name, e.g. linux-lts",
		Required:    true,
	}
	return types.Service{
		ID:          "kernel",
		Name:        "Kernel Service",
		Description: "Inspect installed kernels and install or remove kernel packages",
		Category:    types.CategoryKernel,
		Capabilities: []string{
			"info",
			"install",
			"remove",
		},
		Tools: []types.Tool{
			{
				ID:          "kernel.info",
				Name:        "Kernel Info",
				Description: "Get running, installed and installable kernels",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "kernel.install",
				Name:        "Install Kernel",
				Description: "Install a kernel package from the repositories",
				Parameters:  []types.Parameter{pkgParam},
				Returns:     "object",
				Privileged:  true,
			},
			{
				ID:          "kernel.remove",
				Name:        "Remove Kernel",
				Description: "Remove an installed kernel package",
				Parameters:  []types.Parameter{pkgParam},
				Returns:     "object",
				Privileged:  true,
			},
		},
		DataModels: []types.DataModel{
			{
				Name: "KernelInfo",
				Fields: map[string]string{
					"running_kernel":      "string",
					"installed_kernels":   "array",
					"installable_kernels": "array",
					"warnings":            "array",
				},
			},
		},
	}
}

// Execute runs a kernel operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "kernel.info":
		return p.info(ctx)
	case "kernel.install":
		return p.mutate(ctx, params, p.manager.Install)
	case "kernel.remove":
		return p.mutate(ctx, params, p.manager.Remove)
	default:
		return failure(fmt.Sprintf("unknown tool: %s", toolID))
	}
}

func (p *Provider) info(ctx context.Context) (*types.Result, error) {
	info, err := p.manager.Info(ctx)
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]interface{}{"kernel": info})
}

func (p *Provider) mutate(ctx context.Context, params map[string]interface{}, fn func(context.Context, string) (types.MutationOutcome, error)) (*types.Result, error) {
	pkg, ok := params["package"].(string)
	if !ok || pkg == "" {
		return failure("package required")
	}

	out, err := fn(ctx, pkg)
	if err != nil {
		return failure(err.Error())
	}
	return outcome(out)
}

func outcome(out types.MutationOutcome) (*types.Result, error) {
	result := &types.Result{
		Success: out.Succeeded,
		Data:    map[string]interface{}{"outcome": out},
	}
	if !out.Succeeded {
		msg := out.Message
		result.Error = &msg
	}
	return result, nil
}

func success(data map[string]interface{}) (*types.Result, error) {
	return &types.Result{Success: true, Data: data}, nil
}

func failure(message string) (*types.Result, error) {
	msg := message
	return &types.Result{Success: false, Error: &msg}, nil
}
