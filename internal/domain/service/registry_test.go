package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/hostsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/hostsync/internal/shared/types"
)

type mockProvider struct {
	id       string
	category types.Category
	fail     bool
}

func (m *mockProvider) Definition() types.Service {
	category := m.category
	if category == "" {
		category = types.CategorySystem
	}
	return types.Service{
		ID:           m.id,
		Name:         "Mock Service",
		Description:  "A mock service for testing",
		Category:     category,
		Capabilities: []string{"read", "write"},
		Tools: []types.Tool{
			{
				ID:          m.id + ".test",
				Name:        "Test Tool",
				Description: "A test tool",
				Returns:     "string",
				Privileged:  true,
			},
		},
	}
}

func (m *mockProvider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	if m.fail {
		msg := "nope"
		return &types.Result{Success: false, Error: &msg}, nil
	}
	return &types.Result{
		Success: true,
		Data:    map[string]interface{}{"result": "success", "params": len(params)},
	}, nil
}

func TestRegister(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(&mockProvider{id: "test"}))
	_, ok := r.Get("test")
	assert.True(t, ok)

	assert.Error(t, r.Register(&mockProvider{id: "test"}), "duplicate IDs are rejected")
	assert.Error(t, r.Register(&mockProvider{id: ""}))

	r.Unregister("test")
	_, ok = r.Get("test")
	assert.False(t, ok)
}

func TestList(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockProvider{id: "locale", category: types.CategoryLocale}))
	require.NoError(t, r.Register(&mockProvider{id: "kernel", category: types.CategoryKernel}))

	services := r.List(nil)
	require.Len(t, services, 2)
	assert.Equal(t, "kernel", services[0].ID)
	assert.Equal(t, "locale", services[1].ID)

	cat := types.CategoryLocale
	filtered := r.List(&cat)
	require.Len(t, filtered, 1)
	assert.Equal(t, "locale", filtered[0].ID)
}

func TestDiscover(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockProvider{id: "kernel", category: types.CategoryKernel}))
	require.NoError(t, r.Register(&mockProvider{id: "locale", category: types.CategoryLocale}))

	results := r.Discover("install a new kernel", 5)
	require.NotEmpty(t, results)
	assert.Equal(t, "kernel", results[0].ID)

	assert.Empty(t, r.Discover("zzz", 5))
}

func TestExecute(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	r := NewRegistry().WithMetrics(metrics)
	require.NoError(t, r.Register(&mockProvider{id: "test"}))
	require.NoError(t, r.Register(&mockProvider{id: "broken", fail: true}))

	result, err := r.Execute(context.Background(), "test.test", nil, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)

	result, err = r.Execute(context.Background(), "broken.test", nil, nil)
	require.NoError(t, err)
	assert.False(t, result.Success)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ServiceCalls.WithLabelValues("test", "test.test", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ServiceCalls.WithLabelValues("broken", "broken.test", "failure")))
}

func TestExecuteUnknown(t *testing.T) {
	r := NewRegistry()

	result, err := r.Execute(context.Background(), "notatool", nil, nil)
	assert.Error(t, err)
	assert.False(t, result.Success)

	result, err = r.Execute(context.Background(), "missing.tool", nil, nil)
	assert.Error(t, err)
	require.NotNil(t, result.Error)
	assert.Contains(t, *result.Error, "service not found")
}

func TestStats(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&mockProvider{id: "test1"}))
	require.NoError(t, r.Register(&mockProvider{id: "test2"}))

	stats := r.Stats()
	assert.Equal(t, 2, stats["total_services"])
	assert.Equal(t, 2, stats["total_tools"])
	assert.Equal(t, 2, stats["privileged_tools"])
}
