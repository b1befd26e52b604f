package custodylog

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"jobescrow/core/events"
	"jobescrow/core/types"
	"jobescrow/native/custody"
)

const (
	queueDepth     = 256
	shipTimeout    = 15 * time.Second
	forwardsPerSec = 10
)

// Forwarder subscribes to the custody event stream and ships each event to
// the log collaborator asynchronously. Emission never blocks custody
// execution: when the queue is full the event is dropped and counted, and a
// failed ship is logged and forgotten. The audit trail is best-effort by
// contract; custody state is the source of truth.
type Forwarder struct {
	client  *Client
	chainID uint64
	logger  *slog.Logger
	limiter *rate.Limiter

	queue chan *types.Event
	wg    sync.WaitGroup

	closeOnce sync.Once
	done      chan struct{}

	mu      sync.Mutex
	dropped uint64
}

// NewForwarder starts the background shipping loop.
func NewForwarder(client *Client, chainID uint64, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Forwarder{
		client:  client,
		chainID: chainID,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(forwardsPerSec), forwardsPerSec),
		queue:   make(chan *types.Event, queueDepth),
		done:    make(chan struct{}),
	}
	f.wg.Add(1)
	go f.run()
	return f
}

// Emit implements the events.Emitter interface. Non-blocking by design.
func (f *Forwarder) Emit(evt events.Event) {
	if f == nil || evt == nil {
		return
	}
	record, ok := evt.(events.Record)
	if !ok {
		return
	}
	generic := record.Event()
	if generic == nil {
		return
	}
	select {
	case <-f.done:
		return
	default:
	}
	select {
	case f.queue <- generic:
	default:
		f.mu.Lock()
		f.dropped++
		f.mu.Unlock()
		f.logger.Warn("custody log queue full, dropping event", "type", generic.Type)
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (f *Forwarder) Dropped() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Close stops the shipping loop after draining the queue.
func (f *Forwarder) Close() {
	f.closeOnce.Do(func() {
		close(f.done)
		close(f.queue)
	})
	f.wg.Wait()
}

func (f *Forwarder) run() {
	defer f.wg.Done()
	for evt := range f.queue {
		if err := f.limiter.Wait(context.Background()); err != nil {
			return
		}
		f.ship(evt)
	}
}

func (f *Forwarder) ship(evt *types.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), shipTimeout)
	defer cancel()

	id := evt.Attributes["id"]
	if id == "" {
		return
	}
	if evt.Type == custody.EventTypeCreated {
		reg := Registration{
			ChainID:           f.chainID,
			ContractAddress:   id,
			RealtorAddress:    evt.Attributes["realtor"],
			ContractorAddress: evt.Attributes["contractor"],
			EscrowAmount:      evt.Attributes["amount"],
		}
		if err := f.client.RegisterInstance(ctx, reg); err != nil {
			f.logger.Warn("custody log registration failed", "id", id, "err", err)
		}
		return
	}

	payload, err := json.Marshal(evt.Attributes)
	if err != nil {
		f.logger.Warn("custody log payload encode failed", "id", id, "err", err)
		return
	}
	entry := Entry{
		EventName:    evt.Type,
		ActorAddress: actorFromAttributes(evt.Attributes),
		Payload:      payload,
	}
	if err := f.client.AppendEvent(ctx, id, entry); err != nil {
		f.logger.Warn("custody log append failed", "id", id, "type", evt.Type, "err", err)
	}
}

// actorFromAttributes picks the acting identity out of an event payload. The
// attribute name differs per transition.
func actorFromAttributes(attrs map[string]string) string {
	for _, key := range []string{"openedBy", "voter", "contractor", "realtor"} {
		if actor, ok := attrs[key]; ok && actor != "" {
			return actor
		}
	}
	return ""
}
