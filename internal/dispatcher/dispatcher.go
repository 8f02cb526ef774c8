package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/OCAP2/timeslider/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrUnknownCommand is returned by Dispatch for a command nobody registered.
var ErrUnknownCommand = errors.New("unknown command")

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatcher closed")

// Event represents an incoming timeline command.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
	minArgs    int
	usage      string
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// MinArgs rejects events carrying fewer than n arguments with core.ErrInvalidInput.
func MinArgs(n int) Option {
	return func(c *config) {
		c.minArgs = n
	}
}

// Usage attaches a one-line argument synopsis shown by Help.
func Usage(u string) Option {
	return func(c *config) {
		c.usage = u
	}
}

type route struct {
	handler HandlerFunc
	usage   string
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	logger Logger

	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	failed    metric.Int64Counter
	dropped   metric.Int64Counter

	mu      sync.RWMutex
	routes  map[string]route
	buffers map[string]chan Event
	closed  bool
	workers sync.WaitGroup
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		routes:  make(map[string]route),
		buffers: make(map[string]chan Event),
		logger:  logger,
	}

	m := meter()

	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"timeline.commands.queue.size",
		metric.WithDescription("Current number of commands waiting in a queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.RLock()
			defer d.mu.RUnlock()
			for cmd, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("command", cmd)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"timeline.commands.processed",
		metric.WithDescription("Total commands handled"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"timeline.commands.failed",
		metric.WithDescription("Total commands whose handler returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"timeline.commands.dropped",
		metric.WithDescription("Total commands dropped due to full queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command with optional configuration.
// Registering the same command twice replaces the earlier handler.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := d.withMetrics(command, h)

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(command, cfg.bufferSize, cfg.blocking, handler)
	}

	if cfg.minArgs > 0 {
		handler = withArity(command, cfg.minArgs, cfg.usage, handler)
	}

	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	d.mu.Lock()
	d.routes[command] = route{handler: handler, usage: cfg.usage}
	d.mu.Unlock()
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	r, ok := d.routes[e.Command]
	closed := d.closed
	d.mu.RUnlock()

	if closed {
		return nil, ErrClosed
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return r.handler(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.routes[command]
	return ok
}

// Commands returns the registered command names in sorted order.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.routes))
	for name := range d.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Help renders one line per command with its usage synopsis.
func (d *Dispatcher) Help() string {
	var b strings.Builder
	for _, name := range d.Commands() {
		d.mu.RLock()
		usage := d.routes[name].usage
		d.mu.RUnlock()

		b.WriteString(name)
		if usage != "" {
			b.WriteByte(' ')
			b.WriteString(usage)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Close stops accepting events, drains every buffered queue and waits for
// the queue workers to exit. It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()

	d.workers.Wait()
}

func withArity(command string, n int, usage string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		if len(e.Args) < n {
			if usage != "" {
				return nil, fmt.Errorf("%w: usage: %s %s", core.ErrInvalidInput, command, usage)
			}
			return nil, fmt.Errorf("%w: %s expects %d argument(s), got %d", core.ErrInvalidInput, command, n, len(e.Args))
		}
		return h(e)
	}
}

func (d *Dispatcher) withMetrics(command string, h HandlerFunc) HandlerFunc {
	cmdAttr := metric.WithAttributes(attribute.String("command", command))

	return func(e Event) (any, error) {
		result, err := h(e)
		if err != nil {
			d.failed.Add(context.Background(), 1, cmdAttr)
		}
		d.processed.Add(context.Background(), 1, cmdAttr)
		return result, err
	}
}

func (d *Dispatcher) withBuffer(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)

	d.mu.Lock()
	d.buffers[command] = buffer
	d.mu.Unlock()

	cmdAttr := attribute.String("command", command)

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		for e := range buffer {
			if _, err := h(e); err != nil {
				d.logger.Error("queued command failed", "command", command, "error", err)
			}
		}
	}()

	if blocking {
		return func(e Event) (any, error) {
			d.mu.RLock()
			defer d.mu.RUnlock()
			if d.closed {
				return nil, ErrClosed
			}
			buffer <- e
			return "queued", nil
		}
	}

	return func(e Event) (any, error) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return nil, ErrClosed
		}
		select {
		case buffer <- e:
			return "queued", nil
		default:
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
			return nil, fmt.Errorf("queue full: %s", command)
		}
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling command", "command", command, "args", e.Args)

		result, err := h(e)

		if err != nil {
			d.logger.Error("command failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("command complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
