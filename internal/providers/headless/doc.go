// Package headless is a renderer that fetches documents without drawing
// them.
//
// Each Process runs its work on its own goroutine and reports progress to
// the window through the render.EventSink it was spawned with:
//
//	start-loading
//	start-provisional-load  (navigation id, requested url)
//	redirect-provisional-load, one per followed hop
//	commit-provisional-load (final url, page id) | fail-provisional-load (error code)
//	title-updated
//	did-load-document
//	stop-loading
//
// http and https documents are fetched with the client package; file
// documents are read from disk and sniffed with mimetype. HTML is decoded to
// UTF-8 (declared charset first, chardet otherwise) and parsed once; goquery
// reads the title and an XPath query finds meta refreshes. With
// FollowRefresh set, a refresh becomes a renderer-initiated navigation, which
// carries navigation id zero.
//
// A new Navigate supersedes the load in flight. Kill simulates a crash and
// posts render-view-gone; Close ends the process quietly.
package headless
