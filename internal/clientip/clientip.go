// Package clientip resolves the best-effort client address of a request that
// may have passed through one or more proxies.
package clientip

import (
	"net"
	"net/http"
	"strings"
	"sync"
)

// ProxyHeaders are consulted in order; the first usable value wins.
var ProxyHeaders = []string{
	"x-forwarded-for",
	"Proxy-Client-IP",
	"WL-Proxy-Client-IP",
	"HTTP_CLIENT_IP",
	"HTTP_X_FORWARDED_FOR",
}

const unknown = "unknown"

// Resolver resolves client addresses. The zero value uses ServerIP to
// substitute loopback addresses. A Resolver must not be copied after first use.
type Resolver struct {
	// ServerIP returns the address reported in place of a loopback client.
	// Defaults to the package-level ServerIP. It is called at most once.
	ServerIP func() string

	once   sync.Once
	server string
}

var defaultResolver = &Resolver{}

// Resolve is shorthand for the default resolver.
func Resolve(h http.Header, remoteAddr string) string {
	return defaultResolver.Resolve(h, remoteAddr)
}

// Resolve returns the client IP for a request with headers h received from
// remoteAddr.
func (r *Resolver) Resolve(h http.Header, remoteAddr string) string {
	ip := ""
	for _, name := range ProxyHeaders {
		ip = headerValue(h, name)
		if usable(ip) {
			break
		}
	}
	if !usable(ip) {
		ip = stripPort(remoteAddr)
	}

	// Multi-hop chains carry "client, proxy1, proxy2".
	if strings.Contains(ip, ",") {
		for _, candidate := range strings.Split(ip, ",") {
			candidate = strings.TrimSpace(candidate)
			if IsValid(candidate) {
				return candidate
			}
		}
	}

	if isLoopback(ip) {
		return r.serverIP()
	}
	return ip
}

func (r *Resolver) serverIP() string {
	r.once.Do(func() {
		lookup := r.ServerIP
		if lookup == nil {
			lookup = ServerIP
		}
		r.server = lookup()
	})
	return r.server
}

// headerValue looks the name up canonically first and then verbatim, since
// names such as HTTP_CLIENT_IP are not valid canonical MIME keys.
func headerValue(h http.Header, name string) string {
	if v := h.Get(name); v != "" {
		return v
	}
	if vv, ok := h[name]; ok && len(vv) > 0 {
		return vv[0]
	}
	return ""
}

func usable(ip string) bool {
	return strings.TrimSpace(ip) != "" && !strings.EqualFold(ip, unknown)
}

func stripPort(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func isLoopback(ip string) bool {
	switch ip {
	case "127.0.0.1", "::1", "0:0:0:0:0:0:0:1":
		return true
	}
	return false
}

// IsValid reports whether s is a syntactically valid IPv4 or IPv6 address.
func IsValid(s string) bool {
	return net.ParseIP(strings.TrimSpace(s)) != nil
}

// IsIPv4 reports whether s is an IPv4 address in its canonical form.
func IsIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil && !strings.Contains(s, ":") && ip.String() == s
}

// IsIPv6 reports whether s is an IPv6 address.
func IsIPv6(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && strings.Contains(s, ":")
}

// ServerIP returns the first non-loopback unicast address of this host, or ""
// when none can be found.
func ServerIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	var fallback string
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() || ipNet.IP.IsLinkLocalUnicast() {
			continue
		}
		if ipNet.IP.To4() != nil {
			return ipNet.IP.String()
		}
		if fallback == "" {
			fallback = ipNet.IP.String()
		}
	}
	return fallback
}
