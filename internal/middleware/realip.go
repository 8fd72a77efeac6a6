package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// RealIPMiddleware resolves the client IP and stores it in X-Real-IP for the
// rest of the chain. Forwarding headers are only honoured when the direct peer
// is one of the trusted proxies; otherwise any client-supplied X-Real-IP is
// overwritten with the peer address.
type RealIPMiddleware struct {
	trusted []netip.Prefix
}

// NewRealIPMiddleware accepts IP addresses ("192.168.1.1") and CIDRs
// ("10.0.0.0/8"). Unparseable entries are logged and skipped.
func NewRealIPMiddleware(trustedProxies []string) *RealIPMiddleware {
	m := &RealIPMiddleware{}

	for _, proxy := range trustedProxies {
		proxy = strings.TrimSpace(proxy)
		if proxy == "" {
			continue
		}

		if strings.Contains(proxy, "/") {
			if prefix, err := netip.ParsePrefix(proxy); err == nil {
				m.trusted = append(m.trusted, prefix.Masked())
				continue
			}
		} else if addr, err := netip.ParseAddr(proxy); err == nil {
			addr = addr.Unmap()
			m.trusted = append(m.trusted, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}

		slog.Warn("ignoring invalid trusted proxy", slog.String("proxy", proxy))
	}

	return m
}

// Handler returns the middleware handler
func (m *RealIPMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ip := m.clientIP(r); ip != "" {
			r.Header.Set("X-Real-IP", ip)
		} else {
			r.Header.Del("X-Real-IP")
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP prefers CF-Connecting-IP, then the first X-Forwarded-For entry,
// when the peer is trusted.
func (m *RealIPMiddleware) clientIP(r *http.Request) string {
	peer := peerAddr(r.RemoteAddr)
	if !m.isTrusted(peer) {
		return peer
	}

	if cfIP := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); cfIP != "" {
		return cfIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	return peer
}

func (m *RealIPMiddleware) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range m.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// peerAddr strips the port from RemoteAddr when present.
func peerAddr(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
