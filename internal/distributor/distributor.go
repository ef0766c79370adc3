package distributor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gridd/internal/directory"
	"gridd/internal/eventbus"
	"gridd/internal/queue"
	"gridd/pkg/types"
)

// Node is the scheduling surface the distributor needs from a worker. Both
// in-process nodes and remote node clients satisfy it.
type Node interface {
	ID() types.NodeID
	URI() string
	NewSession(ctx context.Context, req types.SessionRequest) (types.Session, error)
	Stop(ctx context.Context, id types.SessionID) error
	Status(ctx context.Context) (types.NodeStatus, error)
}

// Drainer is optionally implemented by nodes that can refuse new work
// locally; DrainNode calls it when present.
type Drainer interface {
	Drain()
}

type Distributor struct {
	cfg Config
	log zerolog.Logger
	pub eventbus.Publisher

	q   *queue.Queue
	dir *directory.Directory

	mu     sync.RWMutex
	nodes  map[types.NodeID]*nodeEntry
	closed bool

	baseCtx context.Context
	cancel  context.CancelFunc
	kickCh  chan struct{}
	wg      sync.WaitGroup

	started time.Time
}

// New constructs a Distributor and starts its scheduling and health loops.
// Call Close to stop them and fail everything still queued.
func New(cfg Config) *Distributor {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	d := &Distributor{
		cfg: cfg,
		log: zerolog.Nop(),
		pub: eventbus.NopPublisher{},
		q: queue.New(queue.Config{
			RequestTimeout: cfg.RequestTimeout,
			MaxBacklog:     cfg.MaxBacklog,
		}),
		dir:     directory.New(),
		nodes:   make(map[types.NodeID]*nodeEntry),
		baseCtx: ctx,
		cancel:  cancel,
		kickCh:  make(chan struct{}, 1),
		started: time.Now(),
	}
	d.wg.Add(2)
	go d.scheduleLoop()
	go d.healthLoop()
	return d
}

// SetLogger replaces the no-op default logger.
func (d *Distributor) SetLogger(l zerolog.Logger) {
	d.mu.Lock()
	d.log = l
	d.mu.Unlock()
	d.q.SetLogger(l.With().Str("component", "queue").Logger())
	d.dir.SetLogger(l.With().Str("component", "directory").Logger())
}

// SetEventPublisher wires the bus the distributor announces lifecycle
// changes on. Must be called before traffic arrives.
func (d *Distributor) SetEventPublisher(pub eventbus.Publisher) {
	d.mu.Lock()
	if pub == nil {
		pub = eventbus.NopPublisher{}
	}
	d.pub = pub
	d.mu.Unlock()
}

// Directory exposes the session index, mainly so callers can attach it to a
// bus or inspect live sessions.
func (d *Distributor) Directory() *directory.Directory { return d.dir }

// Ready reports whether the distributor accepts session traffic.
func (d *Distributor) Ready() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return !d.closed
}

// Uptime is the time since construction.
func (d *Distributor) Uptime() time.Duration { return time.Since(d.started) }

// QueueLen reports how many requests are waiting in the backlog.
func (d *Distributor) QueueLen() int { return d.q.Len() }

// Close stops the loops and fails every queued request. Safe to call more
// than once.
func (d *Distributor) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	d.q.Close()
	d.wg.Wait()
	d.log.Info().Msg("distributor closed")
}

// kick nudges the scheduler without blocking; coalesces when one is already
// pending.
func (d *Distributor) kick() {
	select {
	case d.kickCh <- struct{}{}:
	default:
	}
}

func (d *Distributor) publish(e eventbus.Event) {
	d.mu.RLock()
	pub := d.pub
	d.mu.RUnlock()
	pub.Publish(e)
}
