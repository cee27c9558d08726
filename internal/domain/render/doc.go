/*
Package render defines the contracts between a window and its renderer.

A Process is spawned per Session by a ProcessFactory and reports back
through an EventSink. A ViewFactory gives the process somewhere to draw.
Session bundles both and is owned by the session manager of one window.
*/
package render
