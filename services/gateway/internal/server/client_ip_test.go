package server

import (
	"net/http/httptest"
	"testing"
)

func TestClientIPForwardedChain(t *testing.T) {
	proxies, err := parseProxies([]string{"10.0.0.0/8", " 192.168.1.10 ", "", "::1"})
	if err != nil {
		t.Fatalf("parse proxies: %v", err)
	}

	tests := []struct {
		name       string
		proxies    proxySet
		remoteAddr string
		xff        string
		want       string
	}{
		{name: "untrusted peer ignores header", proxies: proxies, remoteAddr: "198.51.100.10:1234", xff: "203.0.113.5", want: "198.51.100.10"},
		{name: "no proxies configured", remoteAddr: "10.0.0.20:1234", xff: "203.0.113.5", want: "10.0.0.20"},
		{name: "single hop", proxies: proxies, remoteAddr: "10.0.0.20:1234", xff: "203.0.113.5", want: "203.0.113.5"},
		{name: "spoofed left entries skipped", proxies: proxies, remoteAddr: "10.0.0.20:1234", xff: "1.2.3.4, 203.0.113.5, 192.168.1.10", want: "203.0.113.5"},
		{name: "garbage hop stops at nearest trusted", proxies: proxies, remoteAddr: "10.0.0.20:1234", xff: "203.0.113.5, junk, 10.0.0.7", want: "10.0.0.7"},
		{name: "all hops trusted", proxies: proxies, remoteAddr: "10.0.0.20:1234", xff: "10.0.0.5,10.0.0.6", want: "10.0.0.5"},
		{name: "trusted peer without header", proxies: proxies, remoteAddr: "10.0.0.20:1234", want: "10.0.0.20"},
		{name: "ipv6 loopback proxy", proxies: proxies, remoteAddr: "[::1]:8081", xff: "2001:db8::7", want: "2001:db8::7"},
		{name: "ipv4-mapped peer", proxies: proxies, remoteAddr: "[::ffff:10.0.0.20]:1234", xff: "203.0.113.9", want: "203.0.113.9"},
		{name: "unparsable remote addr", proxies: proxies, remoteAddr: "pipe", want: "pipe"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/gemini", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if got := tc.proxies.clientIP(req); got != tc.want {
				t.Fatalf("clientIP() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseProxiesRejectsBadEntries(t *testing.T) {
	for _, entry := range []string{"bad-cidr", "10.0.0.0/99", "300.1.1.1"} {
		if _, err := parseProxies([]string{entry}); err == nil {
			t.Fatalf("expected %q to be rejected", entry)
		}
	}
}
