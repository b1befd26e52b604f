package events

// Fanout delivers each event to every wrapped emitter in order. Nil entries
// are skipped so callers can wire optional sinks unconditionally.
type Fanout []Emitter

// Emit implements the Emitter interface.
func (f Fanout) Emit(evt Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}
