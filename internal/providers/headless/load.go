package headless

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/GriffinCanCode/navhost/internal/domain/navigation"
	"github.com/GriffinCanCode/navhost/internal/domain/render"
	"github.com/GriffinCanCode/navhost/internal/providers/http/client"
	"go.uber.org/zap"
)

// Load error codes reported in fail-provisional-load events. They follow the
// network error numbering embedders already know.
const (
	ErrorFailed           = -2
	ErrorAborted          = -3
	ErrorFileNotFound     = -6
	ErrorTimedOut         = -7
	ErrorFileTooBig       = -8
	ErrorUnavailable      = -21
	ErrorInvalidURL       = -300
	ErrorUnknownScheme    = -302
	ErrorTooManyRedirects = -310
)

// MaxAutoNavigations bounds chains of meta refreshes without a browser
// navigation in between.
const MaxAutoNavigations = 5

var (
	errUnknownScheme = errors.New("unsupported scheme")
	errIsDirectory   = errors.New("is a directory")
	errFileTooBig    = errors.New("file too big")
)

// load runs one navigation and reports its progress. Every event carries
// the navigation id so the window can tell superseded loads apart.
func (p *Process) load(ctx context.Context, params navigation.Params) {
	navID := params.NavigationID
	log := p.logger.With(zap.Uint64("nav_id", navID), zap.String("url", params.URL))

	p.post(render.Event{Kind: render.EventStartLoading})
	p.post(render.Event{
		Kind:         render.EventStartProvisionalLoad,
		NavigationID: navID,
		MainFrame:    true,
		URL:          params.URL,
	})

	doc, err := p.fetch(ctx, params)
	if err != nil {
		code := errorCode(ctx, err)
		log.Debug("provisional load failed", zap.Int("error_code", code), zap.Error(err))
		p.post(render.Event{
			Kind:         render.EventFailProvisionalLoad,
			NavigationID: navID,
			MainFrame:    true,
			URL:          params.URL,
			ErrorCode:    code,
		})
		p.post(render.Event{Kind: render.EventStopLoading})
		return
	}

	for _, h := range doc.redirects {
		p.post(render.Event{
			Kind:         render.EventRedirectProvisionalLoad,
			NavigationID: navID,
			MainFrame:    true,
			SourceURL:    h.from,
			TargetURL:    h.to,
		})
		p.post(render.Event{Kind: render.EventResourceRedirected, URL: h.to})
	}
	p.post(render.Event{Kind: render.EventResourceResponseStarted, URL: doc.url})

	if ctx.Err() != nil {
		return
	}

	pageID := p.nextPageID(params.PageID)
	p.mu.Lock()
	p.currentURL = doc.url
	p.mu.Unlock()

	p.post(render.Event{
		Kind:         render.EventCommitProvisionalLoad,
		NavigationID: navID,
		MainFrame:    true,
		URL:          doc.url,
		PageID:       pageID,
	})
	if doc.title != "" {
		p.post(render.Event{Kind: render.EventTitleUpdated, NavigationID: navID, Title: doc.title})
	}
	p.post(render.Event{Kind: render.EventDidLoadDocument, NavigationID: navID, MainFrame: true})
	p.post(render.Event{Kind: render.EventStopLoading})

	log.Debug("document loaded",
		zap.Int("status", doc.status),
		zap.String("mime", doc.mime),
		zap.Int("page_id", pageID),
	)
	p.scheduleRefresh(ctx, doc)
}

func (p *Process) fetch(ctx context.Context, params navigation.Params) (*document, error) {
	u, err := url.Parse(params.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", navigation.ErrInvalidURL, err)
	}

	var doc *document
	switch strings.ToLower(u.Scheme) {
	case "about":
		if !strings.EqualFold(u.Opaque, "blank") {
			return nil, fmt.Errorf("%w: %s", errUnknownScheme, params.URL)
		}
		return &document{url: params.URL, mime: "text/html"}, nil
	case "file":
		doc, err = p.readFile(u)
	case "http", "https":
		doc, err = p.fetchRemote(ctx, params)
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownScheme, u.Scheme)
	}
	if err != nil {
		return nil, err
	}

	if isHTML(doc.mime) {
		doc.title, doc.refresh = parseHTML(doc.body, doc.mime)
	}
	return doc, nil
}

func (p *Process) fetchRemote(ctx context.Context, params navigation.Params) (*document, error) {
	page, err := p.factory.fetcher.Fetch(ctx, params.URL, params.Referrer)
	if err != nil {
		return nil, err
	}
	doc := &document{
		url:    page.URL,
		status: page.Status,
		mime:   sniff(page.ContentType, page.Body),
		body:   page.Body,
	}
	for _, h := range page.Redirects {
		doc.redirects = append(doc.redirects, hop{from: h.From, to: h.To})
	}
	return doc, nil
}

func (p *Process) readFile(u *url.URL) (*document, error) {
	path := filepath.FromSlash(u.Path)
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s: %w", path, errIsDirectory)
	}
	if info.Size() > p.factory.maxBody {
		return nil, fmt.Errorf("%s: %w", path, errFileTooBig)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, p.factory.maxBody))
	if err != nil {
		return nil, err
	}
	return &document{url: u.String(), mime: sniff("", body), body: body}, nil
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

func errorCode(ctx context.Context, err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTimedOut
	case ctx.Err() != nil, errors.Is(err, context.Canceled):
		return ErrorAborted
	case errors.Is(err, client.ErrTooManyRedirects):
		return ErrorTooManyRedirects
	case errors.Is(err, client.ErrUnavailable):
		return ErrorUnavailable
	case errors.Is(err, errUnknownScheme):
		return ErrorUnknownScheme
	case errors.Is(err, navigation.ErrInvalidURL):
		return ErrorInvalidURL
	case errors.Is(err, os.ErrNotExist), errors.Is(err, errIsDirectory):
		return ErrorFileNotFound
	case errors.Is(err, errFileTooBig):
		return ErrorFileTooBig
	default:
		return ErrorFailed
	}
}
