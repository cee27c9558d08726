package render

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/navhost/internal/domain/navigation"
	"github.com/GriffinCanCode/navhost/internal/shared/id"
)

// ErrProcessGone is returned by processes that can no longer accept work.
var ErrProcessGone = errors.New("renderer process gone")

// Size is a view size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether s has no area.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Rect is a window position and size.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Size returns the size part of r.
func (r Rect) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

// Process is a renderer execution context.
type Process interface {
	ID() string
	Navigate(params navigation.Params) error
	DispatchBeforeUnload() error
	Alive() bool
	Close() error
}

// View is the drawing surface a process renders into.
type View interface {
	Size() Size
	SetSize(size Size)
	Close() error
}

// EventSink receives renderer events. Implementations must be safe for
// concurrent use; renderers post from their own goroutines.
type EventSink interface {
	Post(event Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(event Event)

// Post implements EventSink.
func (f EventSinkFunc) Post(event Event) {
	f(event)
}

// SpawnRequest describes the process a session needs.
type SpawnRequest struct {
	Session id.SessionID
	Site    navigation.Site
	Sink    EventSink
}

// ProcessFactory starts renderer processes.
type ProcessFactory interface {
	Spawn(ctx context.Context, req SpawnRequest) (Process, error)
}

// ViewFactory creates views for processes.
type ViewFactory interface {
	CreateView(ctx context.Context, process Process, size Size) (View, error)
}
