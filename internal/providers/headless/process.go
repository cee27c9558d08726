package headless

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/navhost/internal/domain/navigation"
	"github.com/GriffinCanCode/navhost/internal/domain/render"
	"github.com/GriffinCanCode/navhost/internal/shared/id"
	"go.uber.org/zap"
)

type jobKind int

const (
	jobNavigate jobKind = iota
	jobBeforeUnload
)

type job struct {
	kind   jobKind
	params navigation.Params
	ctx    context.Context
}

// Process is a headless renderer. Work runs on one goroutine per process,
// so the events of a process are posted in the order the work was queued.
type Process struct {
	id      string
	session id.SessionID
	site    navigation.Site
	sink    render.EventSink
	factory *Factory
	logger  *zap.Logger

	ctx  context.Context
	stop context.CancelFunc
	wake chan struct{}
	done chan struct{}

	mu           sync.Mutex
	alive        bool
	closed       bool
	queue        []job
	cancelNav    context.CancelFunc
	refresh      *time.Timer
	autoNavs     int
	maxPageID    int
	currentURL   string
	beforeUnload func(url string) bool
}

func newProcess(f *Factory, processID string, req render.SpawnRequest) *Process {
	ctx, stop := context.WithCancel(context.Background())
	p := &Process{
		id:           processID,
		session:      req.Session,
		site:         req.Site,
		sink:         req.Sink,
		factory:      f,
		logger:       f.logger.With(zap.String("process_id", processID), zap.String("session_id", req.Session.String())),
		ctx:          ctx,
		stop:         stop,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		alive:        true,
		maxPageID:    -1,
		beforeUnload: f.beforeUnload,
	}
	go p.run()
	return p
}

// ID returns the process id.
func (p *Process) ID() string { return p.id }

// Site returns the site the process was spawned for.
func (p *Process) Site() navigation.Site { return p.site }

// Navigate queues a browser-initiated load. It supersedes any load that is
// queued or in flight.
func (p *Process) Navigate(params navigation.Params) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.alive {
		return render.ErrProcessGone
	}
	p.autoNavs = 0
	p.enqueueNavigation(params)
	return nil
}

// enqueueNavigation must be called with p.mu held.
func (p *Process) enqueueNavigation(params navigation.Params) {
	p.supersede()

	ctx, cancel := context.WithCancel(p.ctx)
	p.cancelNav = cancel
	p.queue = append(p.queue, job{kind: jobNavigate, params: params, ctx: ctx})
	p.signal()
}

// supersede cancels the in-flight load, drops queued loads and any
// scheduled refresh. Must be called with p.mu held.
func (p *Process) supersede() {
	if p.cancelNav != nil {
		p.cancelNav()
		p.cancelNav = nil
	}
	if p.refresh != nil {
		p.refresh.Stop()
		p.refresh = nil
	}
	kept := p.queue[:0]
	for _, j := range p.queue {
		if j.kind != jobNavigate {
			kept = append(kept, j)
		}
	}
	p.queue = kept
}

// DispatchBeforeUnload asks the loaded document whether it may be unloaded.
// The answer arrives as a before-unload-fired event.
func (p *Process) DispatchBeforeUnload() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.alive {
		return render.ErrProcessGone
	}
	p.queue = append(p.queue, job{kind: jobBeforeUnload, ctx: p.ctx})
	p.signal()
	return nil
}

// Alive reports whether the process still accepts work.
func (p *Process) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

// Close stops the process. No event is posted.
func (p *Process) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.alive = false
	p.supersede()
	p.queue = nil
	p.mu.Unlock()

	p.stop()
	<-p.done
	p.factory.forget(p)
	return nil
}

// Kill terminates the process abnormally. The window hears about it as a
// render-view-gone event.
func (p *Process) Kill() {
	p.mu.Lock()
	if !p.alive {
		p.mu.Unlock()
		return
	}
	p.alive = false
	p.supersede()
	p.queue = nil
	p.mu.Unlock()

	p.stop()
	p.logger.Warn("renderer process killed")
	p.sink.Post(render.Event{Kind: render.EventRenderViewGone, Session: p.session})
}

func (p *Process) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Process) next() (job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return job{}, false
	}
	j := p.queue[0]
	p.queue = p.queue[1:]
	return j, true
}

func (p *Process) run() {
	defer close(p.done)
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.wake:
		}
		for {
			j, ok := p.next()
			if !ok {
				break
			}
			switch j.kind {
			case jobNavigate:
				p.load(j.ctx, j.params)
			case jobBeforeUnload:
				p.dispatchBeforeUnload()
			}
		}
	}
}

// post stamps ev with the session and delivers it unless the process has
// been closed or killed.
func (p *Process) post(ev render.Event) {
	if p.ctx.Err() != nil {
		return
	}
	ev.Session = p.session
	p.sink.Post(ev)
}

func (p *Process) dispatchBeforeUnload() {
	p.mu.Lock()
	current := p.currentURL
	confirm := p.beforeUnload
	p.mu.Unlock()

	proceed := true
	if confirm != nil {
		proceed = confirm(current)
	}
	p.post(render.Event{Kind: render.EventBeforeUnloadFired, Proceed: proceed})
}

func (p *Process) nextPageID(requested int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if requested > navigation.UncommittedPageID {
		if requested > p.maxPageID {
			p.maxPageID = requested
		}
		return requested
	}
	p.maxPageID++
	return p.maxPageID
}

// scheduleRefresh starts a renderer-initiated navigation after a meta
// refresh delay. Chains of refreshes stop after MaxAutoNavigations.
func (p *Process) scheduleRefresh(ctx context.Context, doc *document) {
	if doc.refresh == nil || !p.factory.followRefresh {
		return
	}
	target, err := resolve(doc.url, doc.refresh.target)
	if err != nil {
		p.logger.Debug("meta refresh ignored", zap.String("target", doc.refresh.target), zap.Error(err))
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil || p.autoNavs >= MaxAutoNavigations {
		return
	}
	p.autoNavs++
	referrer := doc.url
	p.refresh = time.AfterFunc(doc.refresh.delay, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if !p.alive || ctx.Err() != nil {
			return
		}
		p.refresh = nil
		p.enqueueNavigation(navigation.Params{
			PageID:      navigation.UncommittedPageID,
			URL:         target,
			Referrer:    referrer,
			Transition:  navigation.TransitionLink,
			RequestTime: time.Now(),
		})
	})
}
