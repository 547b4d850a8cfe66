// Package broadcast delivers status snapshots and mutation outcomes to
// registered observers.
//
// Delivery is best effort: an observer that fails or panics is logged and
// counted, and the publisher carries on. Publish never reports an error, so a
// broken observer cannot turn a completed host mutation into a failure.
package broadcast

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/hostsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/hostsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/hostsync/internal/shared/id"
)

// Channel names observers subscribe to
const (
	ChannelLocale = "system-locale-info"
	ChannelKernel = "system-kernel-info"
)

// Event is a single published message
type Event struct {
	ID        id.EventID  `json:"id"`
	Channel   string      `json:"channel"`
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// Observer receives published events
type Observer interface {
	Notify(Event) error
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(Event) error

// Notify calls f
func (f ObserverFunc) Notify(e Event) error {
	return f(e)
}

// Publisher is the sending side of the bus, as components see it
type Publisher interface {
	Publish(channel string, success bool, data interface{})
}

// Bus fans events out to observers
type Bus struct {
	mu        sync.RWMutex
	observers map[uint64]Observer
	nextID    uint64

	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewBus creates an empty bus
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		observers: make(map[uint64]Observer),
		logger:    logging.OrNop(logger),
	}
}

// WithMetrics enables publish metrics
func (b *Bus) WithMetrics(m *monitoring.Metrics) *Bus {
	b.metrics = m
	return b
}

// Subscribe registers o and returns a function that removes it again.
// The returned function is safe to call more than once.
func (b *Bus) Subscribe(o Observer) func() {
	b.mu.Lock()
	key := b.nextID
	b.nextID++
	b.observers[key] = o
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.observers, key)
			b.mu.Unlock()
		})
	}
}

// Len returns the number of registered observers
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.observers)
}

// Publish delivers an event to every observer registered at call time
func (b *Bus) Publish(channel string, success bool, data interface{}) {
	event := Event{
		ID:        id.NewEventID(),
		Channel:   channel,
		Success:   success,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}

	b.mu.RLock()
	observers := make([]Observer, 0, len(b.observers))
	for _, o := range b.observers {
		observers = append(observers, o)
	}
	b.mu.RUnlock()

	b.metrics.RecordPublish(channel, success)
	b.logger.Debug("Publishing event",
		zap.String("event_id", event.ID.String()),
		zap.String("channel", channel),
		zap.Bool("success", success),
		zap.Int("observers", len(observers)),
	)

	for _, o := range observers {
		if err := b.deliver(o, event); err != nil {
			b.metrics.RecordDeliveryFailure(channel)
			b.logger.Warn("Event delivery failed",
				zap.String("event_id", event.ID.String()),
				zap.String("channel", channel),
				zap.Error(err),
			)
		}
	}
}

func (b *Bus) deliver(o Observer, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panicked: %v", r)
		}
	}()
	return o.Notify(event)
}
