// Package navigation holds the value object for one navigation attempt and
// the helpers that derive a URL's site-affinity token.
package navigation
