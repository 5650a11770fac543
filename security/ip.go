package security

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// GetClientIP returns the address of the client that sent r.
//
// Forwarding headers are only honoured when trustProxy is set. With
// X-Forwarded-For the rightmost trustedProxyCount entries are taken to be
// our own proxies, and the entry just before them is the client. A count of
// zero means one proxy.
func GetClientIP(r *http.Request, trustProxy bool, trustedProxyCount int) string {
	if trustProxy {
		if ip, ok := clientFromForwardedFor(r.Header.Get("X-Forwarded-For"), trustedProxyCount); ok {
			return ip
		}
		if ip, ok := parseIP(r.Header.Get("X-Real-IP")); ok {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func clientFromForwardedFor(xff string, trustedProxyCount int) (string, bool) {
	if xff == "" {
		return "", false
	}
	hops := strings.Split(xff, ",")

	if trustedProxyCount <= 0 {
		trustedProxyCount = 1
	}
	idx := max(len(hops)-trustedProxyCount-1, 0)
	return parseIP(hops[idx])
}

func parseIP(s string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return addr.String(), true
}
