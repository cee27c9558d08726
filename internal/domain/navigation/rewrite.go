package navigation

import "strings"

const viewSourcePrefix = "view-source:"

// Rewriter turns the URL a user asked for into the URL that is actually
// loaded. Implementations must be idempotent.
type Rewriter interface {
	Rewrite(raw string) string
}

// RewriterFunc adapts a function to Rewriter.
type RewriterFunc func(raw string) string

// Rewrite implements Rewriter.
func (f RewriterFunc) Rewrite(raw string) string {
	return f(raw)
}

// DefaultRewriter strips a leading "view-source:" so the underlying document
// is loaded. The virtual URL keeps the prefix.
var DefaultRewriter Rewriter = RewriterFunc(stripViewSource)

func stripViewSource(raw string) string {
	trimmed := strings.TrimSpace(raw)
	for len(trimmed) >= len(viewSourcePrefix) && strings.EqualFold(trimmed[:len(viewSourcePrefix)], viewSourcePrefix) {
		trimmed = strings.TrimSpace(trimmed[len(viewSourcePrefix):])
	}
	return trimmed
}

// Chain applies rewriters in order.
func Chain(rewriters ...Rewriter) Rewriter {
	return RewriterFunc(func(raw string) string {
		for _, rw := range rewriters {
			if rw != nil {
				raw = rw.Rewrite(raw)
			}
		}
		return raw
	})
}
