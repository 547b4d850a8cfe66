package system

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/GriffinCanCode/hostsync/internal/broadcast"
	"github.com/GriffinCanCode/hostsync/internal/shared/types"
)

// DefaultHistorySize is the number of events kept for system.events
const DefaultHistorySize = 256

// HostInfo reads host facts that are cheap to probe
type HostInfo interface {
	RunningKernel() (string, error)
	RebootRequired() (bool, error)
	Distro() (string, error)
}

// Provider implements system information and the recent event history
type Provider struct {
	startTime time.Time
	host      HostInfo
	broker    string
	history   *EventHistory
}

// EventHistory is a thread-safe circular buffer of published events
type EventHistory struct {
	entries []*broadcast.Event
	head    int
	size    int
	maxSize int
	mu      sync.RWMutex
}

// NewProvider creates a system provider
func NewProvider(host HostInfo) *Provider {
	return &Provider{
		startTime: time.Now(),
		host:      host,
		history:   NewEventHistory(DefaultHistorySize),
	}
}

// WithBroker records the privilege broker reported by system.info
func (s *Provider) WithBroker(broker string) *Provider {
	s.broker = broker
	return s
}

// NewEventHistory creates a history holding up to maxSize events
func NewEventHistory(maxSize int) *EventHistory {
	if maxSize <= 0 {
		maxSize = DefaultHistorySize
	}
	return &EventHistory{
		entries: make([]*broadcast.Event, maxSize),
		maxSize: maxSize,
	}
}

// Notify implements broadcast.Observer
func (h *EventHistory) Notify(e broadcast.Event) error {
	h.Add(e)
	return nil
}

// Add records an event, overwriting the oldest when full
func (h *EventHistory) Add(e broadcast.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[h.head] = &e
	h.head = (h.head + 1) % h.maxSize
	if h.size < h.maxSize {
		h.size++
	}
}

// Recent returns up to limit events, newest first, optionally filtered by channel
func (h *EventHistory) Recent(limit int, channel string) []broadcast.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit > h.size || limit <= 0 {
		limit = h.size
	}

	result := make([]broadcast.Event, 0, limit)
	for i := 0; i < h.size && len(result) < limit; i++ {
		idx := (h.head - 1 - i + h.maxSize) % h.maxSize
		entry := h.entries[idx]
		if entry != nil && (channel == "" || entry.Channel == channel) {
			result = append(result, *entry)
		}
	}
	return result
}

// History returns the event history so it can be subscribed to the bus
func (s *Provider) History() *EventHistory {
	return s.history
}

// Definition returns service metadata
func (s *Provider) Definition() types.Service {
	return types.Service{
		ID:          "system",
		Name:        "System Service",
		Description: "Service health, host summary and recent state events",
		Category:    types.CategorySystem,
		Capabilities: []string{
			"info",
			"events",
		},
		Tools: []types.Tool{
			{
				ID:          "system.info",
				Name:        "System Info",
				Description: "Get runtime and host information",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
			{
				ID:          "system.events",
				Name:        "Recent Events",
				Description: "Retrieve recently published state events",
				Parameters: []types.Parameter{
					{Name: "limit", Type: "number", Description: "Number of events to retrieve", Required: false},
					{Name: "channel", Type: "string", Description: "Filter by channel", Required: false},
				},
				Returns: "array",
			},
			{
				ID:          "system.ping",
				Name:        "Ping",
				Description: "Test service availability",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
		},
	}
}

// Execute runs a system operation
func (s *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "system.info":
		return s.info()
	case "system.events":
		return s.events(params)
	case "system.ping":
		return s.ping()
	default:
		return failure(fmt.Sprintf("unknown tool: %s", toolID))
	}
}

func (s *Provider) info() (*types.Result, error) {
	data := map[string]interface{}{
		"go_version":     runtime.Version(),
		"os":             runtime.GOOS,
		"arch":           runtime.GOARCH,
		"cpus":           runtime.NumCPU(),
		"goroutines":     runtime.NumGoroutine(),
		"uptime_seconds": time.Since(s.startTime).Seconds(),
	}

	if s.host != nil {
		if kernel, err := s.host.RunningKernel(); err == nil {
			data["running_kernel"] = kernel
		} else {
			data["running_kernel_error"] = err.Error()
		}
		if distro, err := s.host.Distro(); err == nil {
			data["distro"] = distro
		} else {
			data["distro_error"] = err.Error()
		}
		if reboot, err := s.host.RebootRequired(); err == nil {
			data["reboot_required"] = reboot
		} else {
			data["reboot_required_error"] = err.Error()
		}
	}

	if s.broker != "" {
		data["privilege_broker"] = s.broker
	}

	return success(data)
}

func (s *Provider) events(params map[string]interface{}) (*types.Result, error) {
	limit := 50
	if l, ok := params["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	channel := ""
	if c, ok := params["channel"].(string); ok {
		channel = c
	}

	events := s.history.Recent(limit, channel)
	return success(map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

func (s *Provider) ping() (*types.Result, error) {
	return success(map[string]interface{}{
		"pong":      true,
		"timestamp": time.Now().Unix(),
	})
}

func success(data map[string]interface{}) (*types.Result, error) {
	return &types.Result{Success: true, Data: data}, nil
}

func failure(message string) (*types.Result, error) {
	msg := message
	return &types.Result{Success: false, Error: &msg}, nil
}
