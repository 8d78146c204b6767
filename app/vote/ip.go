package vote

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// PlaceholderIP stands for a voter whose address could not be determined.
const PlaceholderIP = "0.0.0.0"

var ipHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// VoterIP picks the address votes are keyed on. Proxy headers are tried in
// order and only a public address is accepted from them; the peer address is
// used as is when no header qualifies.
func VoterIP(headers http.Header, remoteAddr string) string {
	for _, name := range ipHeaders {
		if ip, ok := publicIP(headers.Get(name)); ok {
			return ip
		}
	}

	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	if ip, ok := publicIP(host); ok {
		return ip
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(host)); err == nil {
		return addr.Unmap().String()
	}
	return PlaceholderIP
}

func publicIP(value string) (string, bool) {
	first, _, _ := strings.Cut(value, ",")
	addr, err := netip.ParseAddr(strings.TrimSpace(first))
	if err != nil {
		return "", false
	}
	addr = addr.Unmap()
	if addr.IsPrivate() || addr.IsLoopback() || addr.IsUnspecified() || addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() || addr.IsMulticast() || addr.IsInterfaceLocalMulticast() {
		return "", false
	}
	return addr.String(), true
}
