package clientip

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func fixedServer() string { return "10.9.8.7" }

func TestResolve(t *testing.T) {
	r := &Resolver{ServerIP: fixedServer}

	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{
			name:       "forwarded chain returns first hop",
			headers:    map[string]string{"X-Forwarded-For": "10.0.0.5, 10.0.0.1"},
			remoteAddr: "192.168.1.1:5000",
			want:       "10.0.0.5",
		},
		{
			name:       "no proxy headers uses remote address",
			remoteAddr: "192.168.1.10",
			want:       "192.168.1.10",
		},
		{
			name:       "remote address port is stripped",
			remoteAddr: "192.168.1.10:43210",
			want:       "192.168.1.10",
		},
		{
			name:       "loopback remote is replaced by server address",
			remoteAddr: "127.0.0.1:8080",
			want:       "10.9.8.7",
		},
		{
			name:       "ipv6 loopback is replaced",
			remoteAddr: "[::1]:8080",
			want:       "10.9.8.7",
		},
		{
			name:       "unknown header value is skipped",
			headers:    map[string]string{"X-Forwarded-For": "unknown", "Proxy-Client-IP": "172.16.0.3"},
			remoteAddr: "192.168.1.1",
			want:       "172.16.0.3",
		},
		{
			name:       "weblogic header",
			headers:    map[string]string{"WL-Proxy-Client-IP": "172.16.0.4"},
			remoteAddr: "192.168.1.1",
			want:       "172.16.0.4",
		},
		{
			name:       "invalid entries in chain are skipped",
			headers:    map[string]string{"X-Forwarded-For": "garbage, 10.0.0.9"},
			remoteAddr: "192.168.1.1",
			want:       "10.0.0.9",
		},
		{
			name:       "chain with no valid entry is returned whole",
			headers:    map[string]string{"X-Forwarded-For": "a, b"},
			remoteAddr: "192.168.1.1",
			want:       "a, b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			assert.Equal(t, tt.want, r.Resolve(h, tt.remoteAddr))
		})
	}
}

func TestResolve_NonCanonicalHeaderNames(t *testing.T) {
	r := &Resolver{ServerIP: fixedServer}
	h := http.Header{"HTTP_CLIENT_IP": []string{"172.16.0.8"}}

	assert.Equal(t, "172.16.0.8", r.Resolve(h, "192.168.1.1"))
}

func TestIPClassification(t *testing.T) {
	assert.True(t, IsValid("10.0.0.1"))
	assert.True(t, IsValid("fe80::1"))
	assert.False(t, IsValid("example.com"))
	assert.False(t, IsValid(""))

	assert.True(t, IsIPv4("10.0.0.1"))
	assert.False(t, IsIPv4("::ffff:10.0.0.1"))
	assert.False(t, IsIPv4("::1"))

	assert.True(t, IsIPv6("::1"))
	assert.True(t, IsIPv6("2001:db8::1"))
	assert.False(t, IsIPv6("10.0.0.1"))
}

func TestServerIP_NeverLoopback(t *testing.T) {
	ip := ServerIP()
	assert.NotEqual(t, "127.0.0.1", ip)
	assert.NotEqual(t, "::1", ip)
}

func TestResolve_LooksUpServerIPOnce(t *testing.T) {
	var calls int
	r := &Resolver{ServerIP: func() string {
		calls++
		return "10.1.1.1"
	}}

	for i := 0; i < 3; i++ {
		assert.Equal(t, "10.1.1.1", r.Resolve(http.Header{}, "127.0.0.1:5000"))
	}
	assert.Equal(t, "192.168.0.4", r.Resolve(http.Header{}, "192.168.0.4:5000"))
	assert.Equal(t, 1, calls)
}
