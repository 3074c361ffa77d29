package diaglog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"url-registry/internal/metrics"
)

// ErrClosed is returned by Close when called more than once
var ErrClosed = errors.New("dispatcher already closed")

// Options tune a Dispatcher
type Options struct {
	Stack      string
	BufferSize int
	Timeout    time.Duration // per delivery
	MinLevel   Level         // less severe entries are skipped; empty keeps all
}

// Dispatcher queues entries and delivers them from a single worker.
// Log never blocks: entries are dropped when the queue is full.
type Dispatcher struct {
	sink     Sink
	log      *slog.Logger
	stack    string
	timeout  time.Duration
	minLevel Level

	mu     sync.RWMutex
	closed bool
	queue  chan Entry
	done   chan struct{}
}

// NewDispatcher creates a dispatcher and starts its worker
func NewDispatcher(sink Sink, log *slog.Logger, opts Options) *Dispatcher {
	if opts.Stack == "" {
		opts.Stack = DefaultStack
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 256
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.MinLevel == "" {
		opts.MinLevel = LevelInfo
	}

	d := &Dispatcher{
		sink:     sink,
		log:      log,
		stack:    opts.Stack,
		timeout:  opts.Timeout,
		minLevel: opts.MinLevel,
		queue:    make(chan Entry, opts.BufferSize),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// Log enqueues an entry for delivery
func (d *Dispatcher) Log(level Level, pkg, message string) {
	if !level.AtLeast(d.minLevel) {
		return
	}

	entry := Entry{Stack: d.stack, Level: level, Package: pkg, Message: message}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(entry, "dispatcher closed")
		return
	}

	select {
	case d.queue <- entry:
	default:
		d.drop(entry, "queue full")
	}
}

// Close stops accepting entries and waits for queued ones to be delivered.
// Entries still queued when ctx ends are abandoned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for entry := range d.queue {
		d.deliver(entry)
	}
}

func (d *Dispatcher) deliver(entry Entry) {
	d.log.Debug("diagnostic entry",
		"level", entry.Level,
		"package", entry.Package,
		"message", entry.Message,
	)

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	start := time.Now()
	err := d.sink.Send(ctx, entry)
	metrics.DiagnosticSendDuration.WithLabelValues(d.sink.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.RecordDiagnosticLog(string(entry.Level), metrics.OutcomeFailed)
		d.log.Warn("diagnostic log delivery failed",
			"sink", d.sink.Name(),
			"package", entry.Package,
			"error", err,
		)
		return
	}
	metrics.RecordDiagnosticLog(string(entry.Level), metrics.OutcomeSent)
}

func (d *Dispatcher) drop(entry Entry, reason string) {
	metrics.RecordDiagnosticLog(string(entry.Level), metrics.OutcomeDropped)
	d.log.Warn("diagnostic log dropped",
		"reason", reason,
		"package", entry.Package,
		"message", entry.Message,
	)
}
