// Package rendertest provides in-memory renderer factories for tests.
package rendertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/navhost/internal/domain/navigation"
	"github.com/GriffinCanCode/navhost/internal/domain/render"
	"github.com/GriffinCanCode/navhost/internal/shared/id"
)

// Process records what a session asked of it.
type Process struct {
	mu            sync.Mutex
	id            string
	session       id.SessionID
	site          navigation.Site
	sink          render.EventSink
	alive         bool
	closed        bool
	navErr        error
	navigations   []navigation.Params
	beforeUnloads int
}

func (p *Process) ID() string { return p.id }

func (p *Process) Session() id.SessionID { return p.session }

func (p *Process) Site() navigation.Site { return p.site }

func (p *Process) Navigate(params navigation.Params) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.alive {
		return render.ErrProcessGone
	}
	if p.navErr != nil {
		return p.navErr
	}
	p.navigations = append(p.navigations, params)
	return nil
}

func (p *Process) DispatchBeforeUnload() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.alive {
		return render.ErrProcessGone
	}
	p.beforeUnloads++
	return nil
}

func (p *Process) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive = false
	p.closed = true
	return nil
}

// Kill makes the process die without closing it.
func (p *Process) Kill() {
	p.mu.Lock()
	p.alive = false
	p.mu.Unlock()
}

// RefuseNavigation makes every later Navigate fail with err.
func (p *Process) RefuseNavigation(err error) {
	p.mu.Lock()
	p.navErr = err
	p.mu.Unlock()
}

func (p *Process) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Process) Navigations() []navigation.Params {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]navigation.Params(nil), p.navigations...)
}

// LastNavigation returns the most recent params; ok is false if there were none.
func (p *Process) LastNavigation() (navigation.Params, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.navigations) == 0 {
		return navigation.Params{}, false
	}
	return p.navigations[len(p.navigations)-1], true
}

func (p *Process) BeforeUnloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.beforeUnloads
}

// Post sends an event through the sink the process was spawned with,
// stamped with its session.
func (p *Process) Post(ev render.Event) {
	ev.Session = p.session
	p.sink.Post(ev)
}

// View is a fake drawing surface.
type View struct {
	mu     sync.Mutex
	size   render.Size
	sizes  []render.Size
	closed bool
}

func (v *View) Size() render.Size {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.size
}

func (v *View) SetSize(size render.Size) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.size = size
	v.sizes = append(v.sizes, size)
}

func (v *View) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return nil
}

func (v *View) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// Factory implements both render.ProcessFactory and render.ViewFactory.
type Factory struct {
	mu        sync.Mutex
	spawnErr  error
	viewErr   error
	processes []*Process
	views     map[*Process]*View
	requests  []render.SpawnRequest
}

// NewFactory returns a factory whose processes accept everything.
func NewFactory() *Factory {
	return &Factory{views: make(map[*Process]*View)}
}

// FailSpawn makes later spawns fail with err; nil restores success.
func (f *Factory) FailSpawn(err error) {
	f.mu.Lock()
	f.spawnErr = err
	f.mu.Unlock()
}

// FailViews makes later view creation fail with err; nil restores success.
func (f *Factory) FailViews(err error) {
	f.mu.Lock()
	f.viewErr = err
	f.mu.Unlock()
}

func (f *Factory) Spawn(ctx context.Context, req render.SpawnRequest) (render.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if f.spawnErr != nil {
		return nil, f.spawnErr
	}

	sink := req.Sink
	if sink == nil {
		sink = render.EventSinkFunc(func(render.Event) {})
	}

	p := &Process{
		id:      fmt.Sprintf("proc-%d", len(f.processes)+1),
		session: req.Session,
		site:    req.Site,
		sink:    sink,
		alive:   true,
	}
	f.processes = append(f.processes, p)
	return p, nil
}

func (f *Factory) CreateView(ctx context.Context, process render.Process, size render.Size) (render.View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.viewErr != nil {
		return nil, f.viewErr
	}

	v := &View{size: size}
	if p, ok := process.(*Process); ok {
		f.views[p] = v
	}
	return v, nil
}

// Processes returns every process spawned so far, oldest first.
func (f *Factory) Processes() []*Process {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Process(nil), f.processes...)
}

// Last returns the newest process, or nil.
func (f *Factory) Last() *Process {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.processes) == 0 {
		return nil
	}
	return f.processes[len(f.processes)-1]
}

// ViewOf returns the view created for p, or nil.
func (f *Factory) ViewOf(p *Process) *View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.views[p]
}

// Requests returns every spawn request, including failed ones.
func (f *Factory) Requests() []render.SpawnRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]render.SpawnRequest(nil), f.requests...)
}
