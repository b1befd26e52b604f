package events

import "jobescrow/core/types"

// Event represents a structured state change emitted by the custody engine.
type Event interface {
	EventType() string
}

// Record is implemented by events that can render themselves as a generic
// attribute map for transports and the audit log.
type Record interface {
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (RPC, log forwarders).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default wherever a component wants events to be optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Collector buffers every emitted event in order. Tests use it to assert that
// transitions emit exactly once.
type Collector struct {
	Events []Event
}

// Emit implements the Emitter interface.
func (c *Collector) Emit(evt Event) {
	c.Events = append(c.Events, evt)
}

// ByType returns the collected events matching the given type, in emission
// order.
func (c *Collector) ByType(eventType string) []Event {
	var out []Event
	for _, evt := range c.Events {
		if evt.EventType() == eventType {
			out = append(out, evt)
		}
	}
	return out
}
