// Package addr classifies WAN addresses as RFC 1918 private or public.
package addr

import (
	"fmt"
	"net/netip"
	"strings"
)

// Classification is the result of classifying an address literal.
type Classification int

const (
	Invalid Classification = iota // not an IPv4 or IPv6 literal
	Private                       // inside one of the RFC 1918 blocks
	Public                        // any other valid address
)

func (c Classification) String() string {
	switch c {
	case Invalid:
		return "invalid"
	case Private:
		return "private"
	case Public:
		return "public"
	default:
		return fmt.Sprintf("Classification(%d)", int(c))
	}
}

// privateRanges are the RFC 1918 blocks. Never modified after init.
var privateRanges = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
}

// PrivateRanges returns a copy of the RFC 1918 blocks.
func PrivateRanges() []netip.Prefix {
	out := make([]netip.Prefix, len(privateRanges))
	copy(out, privateRanges)
	return out
}

// Classify reports whether s is a private (RFC 1918), public, or invalid
// address literal. Membership is exact prefix containment; an IPv4-mapped
// IPv6 address is tested as its IPv4 form. Surrounding whitespace is
// ignored, a CIDR suffix is not.
func Classify(s string) Classification {
	ip, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return Invalid
	}
	ip = ip.Unmap()
	for _, p := range privateRanges {
		if p.Contains(ip) {
			return Private
		}
	}
	return Public
}

// IsPrivate is shorthand for Classify(s) == Private.
func IsPrivate(s string) bool {
	return Classify(s) == Private
}

// IsUsable reports whether s is a valid literal that is neither the
// unspecified address nor loopback. Scraped CLI output often contains both.
func IsUsable(s string) bool {
	ip, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	ip = ip.Unmap()
	return !ip.IsUnspecified() && !ip.IsLoopback()
}
