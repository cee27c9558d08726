package render

import "github.com/GriffinCanCode/navhost/internal/shared/id"

// EventKind identifies a renderer event.
type EventKind int

const (
	EventStartProvisionalLoad EventKind = iota + 1
	EventRedirectProvisionalLoad
	EventFailProvisionalLoad
	EventCommitProvisionalLoad
	EventDidLoadDocument
	EventStartLoading
	EventStopLoading
	EventTitleUpdated
	EventRenderViewGone
	EventCreateWindow
	EventBeforeUnloadFired
	EventResourceResponseStarted
	EventResourceRedirected
	EventResourceLoadedFromCache
)

var eventKindNames = map[EventKind]string{
	EventStartProvisionalLoad:    "start-provisional-load",
	EventRedirectProvisionalLoad: "redirect-provisional-load",
	EventFailProvisionalLoad:     "fail-provisional-load",
	EventCommitProvisionalLoad:   "commit-provisional-load",
	EventDidLoadDocument:         "did-load-document",
	EventStartLoading:            "start-loading",
	EventStopLoading:             "stop-loading",
	EventTitleUpdated:            "title-updated",
	EventRenderViewGone:          "render-view-gone",
	EventCreateWindow:            "create-window",
	EventBeforeUnloadFired:       "before-unload-fired",
	EventResourceResponseStarted: "resource-response-started",
	EventResourceRedirected:      "resource-redirected",
	EventResourceLoadedFromCache: "resource-loaded-from-cache",
}

// String returns the wire name of the kind
func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is a message from a renderer process. Which fields are set depends
// on Kind.
type Event struct {
	Kind         EventKind
	Session      id.SessionID
	NavigationID uint64
	MainFrame    bool

	URL       string
	SourceURL string
	TargetURL string
	PageID    int
	Title     string
	ErrorCode int

	Bounds  Rect
	Proceed bool
}
