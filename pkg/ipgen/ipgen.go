// Package ipgen produces random IPv4 addresses for pipeline testing.
package ipgen

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"net/netip"
)

// SamplePrefixes are documentation ranges registered in high-risk
// jurisdictions, used to exercise the risk classifiers end to end.
var SamplePrefixes = []string{
	"5.8.0.0/16",      // RU sample range
	"36.0.0.0/8",      // CN sample range
	"5.160.0.0/11",    // IR sample range
	"175.45.176.0/22", // KP sample range
}

// RandomGlobalUnicast returns a uniformly random, publicly routable IPv4
// address. Private, loopback, link-local and multicast space is rejected.
func RandomGlobalUnicast(rng *rand.Rand) netip.Addr {
	for {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], rng.Uint32())
		addr := netip.AddrFrom4(b)
		if addr.IsGlobalUnicast() && !addr.IsPrivate() {
			return addr
		}
	}
}

// RandomFromPrefix picks a host address inside cidr. Network and broadcast
// addresses are excluded for prefixes shorter than /31.
func RandomFromPrefix(rng *rand.Rand, cidr string) (netip.Addr, error) {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("ipgen: %w", err)
	}
	p = p.Masked()
	if !p.Addr().Is4() {
		return netip.Addr{}, fmt.Errorf("ipgen: only IPv4 prefixes supported, got %s", cidr)
	}
	if p.Bits() >= 31 {
		return p.Addr(), nil
	}

	base := binary.BigEndian.Uint32(p.Addr().AsSlice())
	size := uint32(1) << (32 - p.Bits())
	// Skip .0 and the broadcast address.
	offset := 1 + uint32(rng.Intn(int(size-2)))

	var b [4]byte
	binary.BigEndian.PutUint32(b[:], base+offset)
	return netip.AddrFrom4(b), nil
}

// RandomSample picks an address from one of the sample high-risk ranges.
func RandomSample(rng *rand.Rand) (netip.Addr, error) {
	return RandomFromPrefix(rng, SamplePrefixes[rng.Intn(len(SamplePrefixes))])
}
