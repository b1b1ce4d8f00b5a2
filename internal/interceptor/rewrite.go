package interceptor

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// StripPrefix removes the first n segments from an escaped path. Segments are
// trimmed and empty ones are ignored, so "//a/ b /" has the two segments "a"
// and "b". The result always starts with "/".
func StripPrefix(rawPath string, n int) string {
	if n < 0 {
		n = 0
	}

	var segments []string
	for _, s := range strings.Split(rawPath, "/") {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}
	if n >= len(segments) {
		return "/"
	}
	return "/" + strings.Join(segments[n:], "/")
}

// BasePath returns scheme://host[:port] for u. Default ports are omitted and
// IPv6 literals are bracketed.
func BasePath(u *url.URL) string {
	if u == nil || u.Host == "" {
		return ""
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "http"
	}

	host := u.Hostname()
	port := u.Port()
	if port == defaultPort(scheme) {
		port = ""
	}

	if port != "" {
		return scheme + "://" + net.JoinHostPort(host, port)
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return scheme + "://" + host
}

func defaultPort(scheme string) string {
	switch strings.ToLower(scheme) {
	case "http", "ws":
		return "80"
	case "https", "wss":
		return "443"
	}
	return ""
}

// requestURL reconstructs the absolute URL a server-side request was sent to.
func requestURL(r *http.Request) *url.URL {
	u := *r.URL
	if u.Scheme == "" {
		if r.TLS != nil {
			u.Scheme = "https"
		} else {
			u.Scheme = "http"
		}
	}
	if u.Host == "" {
		u.Host = r.Host
	}
	return &u
}

// withPath returns a copy of u addressed to the escaped path rawPath.
func withPath(u *url.URL, rawPath string) *url.URL {
	out := *u
	out.User = nil
	if p, err := url.PathUnescape(rawPath); err == nil {
		out.Path = p
	} else {
		out.Path = rawPath
	}
	out.RawPath = rawPath
	if out.EscapedPath() != rawPath {
		out.RawPath = ""
	}
	return &out
}
