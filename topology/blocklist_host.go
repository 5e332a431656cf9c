package topology

import "net"

// HostBlocklist is an immutable set of blocked IP networks (spec.md
// section 4.1).
type HostBlocklist struct {
	nets []*net.IPNet
}

// NewHostBlocklist builds a HostBlocklist from a list of CIDR strings. A
// malformed CIDR is skipped (callers validate config up front); it never
// fails construction so a bad config entry degrades to "not blocked" rather
// than aborting startup.
func NewHostBlocklist(cidrs []string) *HostBlocklist {
	b := &HostBlocklist{}
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			continue
		}
		b.nets = append(b.nets, n)
	}
	return b
}

// IsBlockedAny reports whether any of ips falls inside any blocked network.
func (b *HostBlocklist) IsBlockedAny(ips []string) bool {
	if b == nil {
		return false
	}
	for _, s := range ips {
		ip := net.ParseIP(s)
		if ip == nil {
			continue
		}
		for _, n := range b.nets {
			if n.Contains(ip) {
				return true
			}
		}
	}
	return false
}
