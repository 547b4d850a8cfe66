package locale

import (
	"context"
	"fmt"
	"sort"
	"strings"

	hostlocale "github.com/GriffinCanCode/hostsync/internal/host/locale"
	"github.com/GriffinCanCode/hostsync/internal/shared/types"
)

// Provider exposes the locale reconciler as registry tools
type Provider struct {
	reconciler *hostlocale.Reconciler
}

// NewProvider creates a locale provider
func NewProvider(reconciler *hostlocale.Reconciler) *Provider {
	return &Provider{reconciler: reconciler}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	applyParams := make([]types.Parameter, 0, len(types.LocaleKeys))
	for _, key := range types.LocaleKeys {
		applyParams = append(applyParams, types.Parameter{
			Name:        key,
			Type:        "string",
			Description: fmt.Sprintf("Value for %s, e.g. en_US.UTF-8", key),
		})
	}

	return types.Service{
		ID:          "locale",
		Name:        "Locale Service",
		Description: "Inspect, apply and generate system locales",
		Category:    types.CategoryLocale,
		Capabilities: []string{
			"status",
			"apply",
			"generate",
		},
		Tools: []types.Tool{
			{
				ID:          "locale.status",
				Name:        "Locale Status",
				Description: "Get configured, available and generated locales",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "locale.apply",
				Name:        "Apply Locale",
				Description: "Persist locale category values; at least one is required",
				Parameters:  applyParams,
				Returns:     "object",
				Privileged:  true,
			},
			{
				ID:          "locale.generate",
				Name:        "Generate Locale",
				Description: "Enable a locale in the manifest and regenerate compiled locales",
				Parameters: []types.Parameter{
					{Name: "locale", Type: "string", Description: "Locale name, e.g. de_DE.UTF-8", Required: true},
				},
				Returns:    "object",
				Privileged: true,
			},
		},
		DataModels: []types.DataModel{
			{
				Name: "LocaleStatus",
				Fields: map[string]string{
					"current":           "object",
					"available_locales": "array",
					"generated_locales": "array",
					"reboot_required":   "boolean",
				},
			},
		},
	}
}

// Execute runs a locale operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "locale.status":
		return p.status(ctx)
	case "locale.apply":
		return p.apply(ctx, params)
	case "locale.generate":
		return p.generate(ctx, params)
	default:
		return failure(fmt.Sprintf("unknown tool: %s", toolID))
	}
}

func (p *Provider) status(ctx context.Context) (*types.Result, error) {
	status, err := p.reconciler.Status(ctx)
	if err != nil {
		return failure(err.Error())
	}
	return success(map[string]interface{}{"locale": status})
}

func (p *Provider) apply(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	cfg, err := ConfigurationFromParams(params)
	if err != nil {
		return failure(err.Error())
	}

	out, err := p.reconciler.ApplyLocale(ctx, cfg)
	if err != nil {
		return failure(err.Error())
	}
	return outcome(out)
}

func (p *Provider) generate(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	name, ok := params["locale"].(string)
	if !ok || name == "" {
		return failure("locale required")
	}

	out, err := p.reconciler.GenerateLocale(ctx, name)
	if err != nil {
		return failure(err.Error())
	}
	return outcome(out)
}

// ConfigurationFromParams builds a configuration from tool parameters.
// Keys match category names case-insensitively, so both "LANG" and the
// JSON field name "lang" are accepted. Unknown keys are rejected.
func ConfigurationFromParams(params map[string]interface{}) (types.LocaleConfiguration, error) {
	var cfg types.LocaleConfiguration
	var unknown []string
	for key, raw := range params {
		value, ok := raw.(string)
		if !ok {
			return cfg, fmt.Errorf("%s must be a string", key)
		}
		if !cfg.Set(strings.ToUpper(key), strings.TrimSpace(value)) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return cfg, fmt.Errorf("unknown locale categories: %s", strings.Join(unknown, ", "))
	}
	return cfg, nil
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
