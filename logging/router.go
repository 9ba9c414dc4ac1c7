package logging

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Clock abstracts event timestamping so tests can pin it.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// Sink receives routed events. Implementations own their own buffering.
type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

// NamedSink pairs a sink with the name it is addressed by.
type NamedSink struct {
	Name string
	Sink Sink
}

// Router fans events out to its sinks without ever blocking the simulation
// loop: Publish is non-blocking, and each sink drains its own lane so a
// slow sink cannot stall the others.
type Router struct {
	cfg    Config
	clock  Clock
	queue  chan Event
	lanes  []*sinkLane
	fields map[string]any

	ctx      context.Context
	cancel   context.CancelFunc
	closed   atomic.Bool
	wg       sync.WaitGroup
	fallback *log.Logger

	routed      atomic.Uint64
	dropped     atomic.Uint64
	nextDropLog atomic.Int64
}

// RouterStats reports lifetime routing counters.
type RouterStats struct {
	EventsTotal  uint64
	DroppedTotal uint64
}

func NewRouter(clock Clock, cfg Config, named []NamedSink) (*Router, error) {
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Router{
		cfg:      cfg,
		clock:    clock,
		queue:    make(chan Event, buffer),
		fields:   cfg.CloneFields(),
		ctx:      ctx,
		cancel:   cancel,
		fallback: log.New(os.Stderr, "[events] ", log.LstdFlags),
	}

	laneBuffer := min(max(buffer, 32), 1024)
	for _, n := range named {
		if n.Sink == nil {
			continue
		}
		r.lanes = append(r.lanes, newSinkLane(n.Name, n.Sink, laneBuffer, r.fallback))
	}

	r.wg.Add(1)
	go r.dispatch()
	for _, lane := range r.lanes {
		r.wg.Add(1)
		go func(l *sinkLane) {
			defer r.wg.Done()
			l.run()
		}(lane)
	}
	return r, nil
}

// Publish enqueues one event. Events without a type, below the configured
// severity, or arriving after Close are discarded.
func (r *Router) Publish(_ context.Context, event Event) {
	if event.Type == "" || event.Severity < r.cfg.MinimumSeverity {
		return
	}
	if r.closed.Load() {
		return
	}
	select {
	case r.queue <- event:
	default:
		r.noteDrop(event)
	}
}

func (r *Router) dispatch() {
	defer func() {
		for _, lane := range r.lanes {
			close(lane.queue)
		}
		r.wg.Done()
	}()
	for {
		select {
		case <-r.ctx.Done():
			// Hand off whatever is already queued before the lanes close.
			for {
				select {
				case event := <-r.queue:
					r.route(event)
				default:
					return
				}
			}
		case event := <-r.queue:
			r.route(event)
		}
	}
}

func (r *Router) route(event Event) {
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	if len(r.fields) > 0 {
		event = cloneForFields(event)
		if event.Extra == nil {
			event.Extra = make(map[string]any, len(r.fields))
		}
		for k, v := range r.fields {
			if _, set := event.Extra[k]; !set {
				event.Extra[k] = v
			}
		}
	}
	r.routed.Add(1)
	for _, lane := range r.lanes {
		lane.offer(event)
	}
}

func (r *Router) noteDrop(event Event) {
	r.dropped.Add(1)
	interval := r.cfg.DropWarnInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	now := time.Now().UnixNano()
	next := r.nextDropLog.Load()
	if next == 0 || now >= next {
		if r.nextDropLog.CompareAndSwap(next, now+interval.Nanoseconds()) {
			r.fallback.Printf("queue full, dropped %s at tick %d", event.Type, event.Tick)
		}
	}
}

// Close stops the router and flushes every sink. A second Close waits on
// the caller's context instead of racing the first.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		<-ctx.Done()
		return ctx.Err()
	}
	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	var firstErr error
	for _, lane := range r.lanes {
		if err := lane.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) Stats() RouterStats {
	return RouterStats{
		EventsTotal:  r.routed.Load(),
		DroppedTotal: r.dropped.Load(),
	}
}

// Sink returns a named sink, mainly so tests can reach the memory sink.
func (r *Router) Sink(name string) Sink {
	for _, lane := range r.lanes {
		if lane.name == name {
			return lane.sink
		}
	}
	return nil
}

// sinkLane decouples one sink from the dispatcher. A failing sink backs
// off exponentially on its own goroutine; its backlog drops rather than
// propagating pressure upstream.
type sinkLane struct {
	name     string
	sink     Sink
	queue    chan Event
	fallback *log.Logger

	failures int
	retryAt  time.Time
}

func newSinkLane(name string, sink Sink, buffer int, fallback *log.Logger) *sinkLane {
	return &sinkLane{
		name:     name,
		sink:     sink,
		queue:    make(chan Event, buffer),
		fallback: fallback,
	}
}

func (l *sinkLane) offer(event Event) {
	select {
	case l.queue <- cloneForFields(event):
	default:
		l.fallback.Printf("sink %s backlog full, dropped %s", l.name, event.Type)
	}
}

func (l *sinkLane) run() {
	for event := range l.queue {
		if l.failures > 0 {
			if wait := time.Until(l.retryAt); wait > 0 {
				time.Sleep(wait)
			}
		}
		if err := l.sink.Write(event); err != nil {
			l.failures++
			delay := time.Second << min(l.failures-1, 5)
			l.retryAt = time.Now().Add(delay)
			l.fallback.Printf("sink %s write failed: %v (backing off %s)", l.name, err, delay)
			continue
		}
		l.failures = 0
	}
}
