// Package ipsafety classifies IP addresses as safe or unsafe targets for
// outbound connections initiated on the server's behalf (webhook delivery).
package ipsafety

import "net"

var privateV4Blocks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16", // includes the 169.254.169.254 cloud metadata address
	"100.64.0.0/10",  // carrier-grade NAT
)

var privateV6Blocks = mustParseCIDRs(
	"fc00::/7",  // unique local
	"fe80::/10", // link local
	"fec0::/10", // site local, deprecated but still blocked
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic("ipsafety: invalid CIDR literal " + c + ": " + err.Error())
		}
		nets = append(nets, n)
	}
	return nets
}

// Safe reports whether ip is permitted as the target of an outbound
// connection. It returns false for loopback, unspecified, multicast, and
// the private/carrier/link-local ranges.
//
// An IPv4-mapped IPv6 address (::ffff:a.b.c.d) is canonicalized to its
// IPv4 form before classification, so ::ffff:127.0.0.1 is rejected the
// same way 127.0.0.1 is.
func Safe(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}

	if ip.IsLoopback() || ip.IsUnspecified() || ip.IsMulticast() {
		return false
	}

	if v4 := ip.To4(); v4 != nil {
		for _, n := range privateV4Blocks {
			if n.Contains(v4) {
				return false
			}
		}
		return true
	}

	for _, n := range privateV6Blocks {
		if n.Contains(ip) {
			return false
		}
	}
	return true
}

// SafeString parses s as an IP address and reports Safe(ip). It returns
// false if s does not parse, so callers never accidentally treat an
// unparsable string as safe.
func SafeString(s string) bool {
	ip := net.ParseIP(s)
	if ip == nil {
		return false
	}
	return Safe(ip)
}
