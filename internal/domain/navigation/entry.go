package navigation

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync/atomic"
	"time"
)

// Transition describes how a navigation was initiated.
type Transition int

const (
	TransitionLink Transition = iota
	TransitionTyped
	TransitionReload
	TransitionAutoToplevel
	TransitionFormSubmit
)

// String returns the string representation of the transition
func (t Transition) String() string {
	switch t {
	case TransitionLink:
		return "link"
	case TransitionTyped:
		return "typed"
	case TransitionReload:
		return "reload"
	case TransitionAutoToplevel:
		return "auto-toplevel"
	case TransitionFormSubmit:
		return "form-submit"
	default:
		return "unknown"
	}
}

// ParseTransition maps a transition name back to its value. Unknown names
// yield TransitionTyped.
func ParseTransition(s string) Transition {
	switch strings.ToLower(s) {
	case "link":
		return TransitionLink
	case "reload":
		return TransitionReload
	case "auto-toplevel":
		return TransitionAutoToplevel
	case "form-submit":
		return TransitionFormSubmit
	default:
		return TransitionTyped
	}
}

// UncommittedPageID is the page id of an entry the renderer has not committed.
const UncommittedPageID = -1

var lastNavigationID atomic.Uint64

func nextNavigationID() uint64 {
	return lastNavigationID.Add(1)
}

// Params is what a renderer needs to perform one navigation.
type Params struct {
	NavigationID uint64
	PageID       int
	URL          string
	Referrer     string
	Transition   Transition
	State        []byte
	Reload       bool
	RequestTime  time.Time
}

// Entry is one navigation attempt. The URL may change through redirects
// until the entry is committed; after that URL and page id are fixed.
type Entry struct {
	id           uint64
	url          string
	virtualURL   string
	userTypedURL string
	referrer     string
	transition   Transition
	pageID       int
	contentState []byte
	title        string
	site         Site
	committed    bool
}

// NewEntry validates rawURL, applies rw once and builds a provisional entry.
// A nil rw means DefaultRewriter.
func NewEntry(rawURL, referrer string, transition Transition, rw Rewriter) (*Entry, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if rw == nil {
		rw = DefaultRewriter
	}

	loaded, err := parseAbsolute(rw.Rewrite(raw))
	if err != nil {
		return nil, err
	}

	e := &Entry{
		id:           nextNavigationID(),
		url:          loaded.String(),
		virtualURL:   raw,
		userTypedURL: raw,
		referrer:     referrer,
		transition:   transition,
		pageID:       UncommittedPageID,
		site:         SiteFor(loaded),
	}

	if strings.EqualFold(loaded.Scheme, "file") {
		e.title = fileTitle(loaded)
	}

	return e, nil
}

func parseAbsolute(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("%w: %q has no scheme", ErrInvalidURL, raw)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ws", "wss", "ftp":
		if u.Host == "" {
			return nil, fmt.Errorf("%w: %q has no host", ErrInvalidURL, raw)
		}
	}

	return u, nil
}

func fileTitle(u *url.URL) string {
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return u.Path
	}
	return name
}

// ID returns the process-unique navigation id.
func (e *Entry) ID() uint64 { return e.id }

// URL returns the URL that is loaded.
func (e *Entry) URL() string { return e.url }

// VirtualURL returns the URL shown to the user.
func (e *Entry) VirtualURL() string { return e.virtualURL }

func (e *Entry) UserTypedURL() string   { return e.userTypedURL }
func (e *Entry) Referrer() string       { return e.referrer }
func (e *Entry) Transition() Transition { return e.transition }
func (e *Entry) PageID() int            { return e.pageID }
func (e *Entry) Title() string          { return e.title }
func (e *Entry) Site() Site             { return e.site }
func (e *Entry) IsCommitted() bool      { return e.committed }

// ContentState returns a copy of the serialized page state.
func (e *Entry) ContentState() []byte {
	if e.contentState == nil {
		return nil
	}
	return append([]byte(nil), e.contentState...)
}

// SetURL replaces the loaded URL of a provisional entry.
func (e *Entry) SetURL(raw string) error {
	if e.committed {
		return ErrCommitted
	}

	u, err := parseAbsolute(strings.TrimSpace(raw))
	if err != nil {
		return err
	}

	e.url = u.String()
	e.site = SiteFor(u)
	return nil
}

func (e *Entry) SetTitle(title string) {
	e.title = title
}

func (e *Entry) SetContentState(state []byte) {
	e.contentState = append([]byte(nil), state...)
}

// Commit fixes the entry to pageID. Committing twice keeps the first page id.
func (e *Entry) Commit(pageID int) {
	if e.committed {
		return
	}
	e.pageID = pageID
	e.committed = true
}

// NavigateParams builds the renderer request for this entry.
func (e *Entry) NavigateParams(reload bool) Params {
	return Params{
		NavigationID: e.id,
		PageID:       e.pageID,
		URL:          e.url,
		Referrer:     e.referrer,
		Transition:   e.transition,
		State:        e.ContentState(),
		Reload:       reload,
		RequestTime:  time.Now(),
	}
}
