package navigation

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Site is the process-affinity token of a URL. Two URLs with the same site
// may share a renderer session.
type Site string

// SiteFor computes scheme + "://" + registrable domain.
//
// IP literals and single-label hosts such as "localhost" use the host as is,
// every file: URL maps to "file://", and other host-less schemes map to
// "scheme:".
func SiteFor(u *url.URL) Site {
	if u == nil {
		return ""
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "file" {
		return "file://"
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return Site(scheme + ":")
	}
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return Site(scheme + "://" + host)
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// host is itself a public suffix
		domain = host
	}
	return Site(scheme + "://" + domain)
}

// SameSite reports whether a and b may share a session.
func SameSite(a, b Site) bool {
	return a != "" && a == b
}
