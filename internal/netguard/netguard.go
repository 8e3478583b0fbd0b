// Package netguard inspects the host part of a URL: extraction from loosely
// formatted input, IP literal detection and private/internal ranges.
package netguard

import (
	"net"
	"strings"
)

// PrivateCIDRs are loopback, RFC1918, link-local and unique-local networks.
var PrivateCIDRs = func() []*net.IPNet {
	cidrs := []string{
		"127.0.0.0/8",    // loopback
		"10.0.0.0/8",     // RFC1918
		"172.16.0.0/12",  // RFC1918
		"192.168.0.0/16", // RFC1918
		"169.254.0.0/16", // link-local / cloud metadata
		"0.0.0.0/8",      // unspecified
		"::1/128",        // IPv6 loopback
		"fe80::/10",      // IPv6 link-local
		"fc00::/7",       // IPv6 unique local
	}
	var nets []*net.IPNet
	for _, c := range cidrs {
		_, ipNet, _ := net.ParseCIDR(c)
		nets = append(nets, ipNet)
	}
	return nets
}()

// IsPrivate reports whether ip falls within one of PrivateCIDRs.
func IsPrivate(ip net.IP) bool {
	for _, cidr := range PrivateCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// Host extracts the lower-cased host of a URL that may lack a scheme. It
// drops userinfo, port and a trailing dot, and unwraps bracketed IPv6.
func Host(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#\\"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndexByte(s, '@'); i >= 0 {
		s = s[i+1:]
	}
	if strings.HasPrefix(s, "[") {
		if i := strings.IndexByte(s, ']'); i > 0 {
			return strings.ToLower(s[1:i])
		}
	}
	if h, _, err := net.SplitHostPort(s); err == nil {
		s = h
	}
	return strings.TrimSuffix(strings.ToLower(s), ".")
}

// HostIP returns the host as an IP when it is an IP literal.
func HostIP(host string) (net.IP, bool) {
	ip := net.ParseIP(host)
	return ip, ip != nil
}
