package headless

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/navhost/internal/domain/render"
	"github.com/GriffinCanCode/navhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/navhost/internal/providers/http/client"
	"go.uber.org/zap"
)

// ErrForeignProcess is returned when a view is requested for a process this
// factory did not spawn.
var ErrForeignProcess = errors.New("process not spawned by this factory")

// Fetcher loads remote documents.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, referrer string) (*client.Page, error)
}

// Options configures a Factory.
type Options struct {
	// Fetcher defaults to a client with default options.
	Fetcher Fetcher
	// MaxBody bounds local file reads.
	MaxBody int64
	// FollowRefresh makes documents with a meta refresh navigate on their own.
	FollowRefresh bool
	// BeforeUnload answers beforeunload for the document at url. Nil always
	// allows the unload.
	BeforeUnload func(url string) bool
	Logger       *zap.Logger
}

// Factory spawns headless processes and their views. It implements both
// render.ProcessFactory and render.ViewFactory.
type Factory struct {
	fetcher       Fetcher
	maxBody       int64
	followRefresh bool
	beforeUnload  func(url string) bool
	logger        *zap.Logger

	seq       atomic.Uint64
	mu        sync.Mutex
	processes map[string]*Process
}

// NewFactory creates a factory.
func NewFactory(opts Options) *Factory {
	logger := logging.OrNop(opts.Logger).With(zap.String("component", "headless"))
	if opts.Fetcher == nil {
		opts.Fetcher = client.NewClient(client.Options{Logger: logger})
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = 10 << 20
	}
	return &Factory{
		fetcher:       opts.Fetcher,
		maxBody:       opts.MaxBody,
		followRefresh: opts.FollowRefresh,
		beforeUnload:  opts.BeforeUnload,
		logger:        logger,
		processes:     make(map[string]*Process),
	}
}

// Spawn starts a process for req.
func (f *Factory) Spawn(ctx context.Context, req render.SpawnRequest) (render.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Sink == nil {
		return nil, fmt.Errorf("spawn %s: no event sink", req.Session)
	}

	p := newProcess(f, fmt.Sprintf("headless-%d", f.seq.Add(1)), req)

	f.mu.Lock()
	f.processes[p.id] = p
	f.mu.Unlock()

	f.logger.Debug("process spawned",
		zap.String("process_id", p.id),
		zap.String("site", string(req.Site)),
	)
	return p, nil
}

// CreateView creates a view for a live process of this factory.
func (f *Factory) CreateView(ctx context.Context, process render.Process, size render.Size) (render.View, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok := process.(*Process)
	if !ok || p.factory != f {
		return nil, ErrForeignProcess
	}
	if !p.Alive() {
		return nil, render.ErrProcessGone
	}
	return &View{size: size}, nil
}

// Processes returns the ids of processes that have not been closed.
func (f *Factory) Processes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.processes))
	for processID := range f.processes {
		ids = append(ids, processID)
	}
	sort.Strings(ids)
	return ids
}

// Close closes every process still running.
func (f *Factory) Close() {
	f.mu.Lock()
	procs := make([]*Process, 0, len(f.processes))
	for _, p := range f.processes {
		procs = append(procs, p)
	}
	f.mu.Unlock()

	for _, p := range procs {
		_ = p.Close()
	}
}

func (f *Factory) forget(p *Process) {
	f.mu.Lock()
	delete(f.processes, p.id)
	f.mu.Unlock()
}

// View is a headless drawing surface. It only keeps its size.
type View struct {
	mu     sync.Mutex
	size   render.Size
	closed bool
}

// Size returns the view size.
func (v *View) Size() render.Size {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.size
}

// SetSize resizes the view. Closed views ignore it.
func (v *View) SetSize(size render.Size) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.closed {
		v.size = size
	}
}

// Close releases the view.
func (v *View) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return nil
}
