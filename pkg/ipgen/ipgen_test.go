package ipgen

import (
	"math/rand"
	"net/netip"
	"testing"
)

func TestRandomGlobalUnicast(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		addr := RandomGlobalUnicast(rng)
		if !addr.Is4() {
			t.Fatalf("got non-IPv4 address %s", addr)
		}
		if addr.IsPrivate() || addr.IsLoopback() || addr.IsMulticast() || addr.IsLinkLocalUnicast() {
			t.Fatalf("got non-global address %s", addr)
		}
	}
}

func TestRandomFromPrefix(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tests := []struct {
		cidr string
	}{
		{"5.8.0.0/16"},
		{"175.45.176.0/22"},
		{"192.0.2.0/24"},
	}
	for _, tt := range tests {
		prefix := netip.MustParsePrefix(tt.cidr)
		for i := 0; i < 100; i++ {
			addr, err := RandomFromPrefix(rng, tt.cidr)
			if err != nil {
				t.Fatalf("RandomFromPrefix(%s) failed: %v", tt.cidr, err)
			}
			if !prefix.Contains(addr) {
				t.Fatalf("%s not inside %s", addr, tt.cidr)
			}
			if addr == prefix.Masked().Addr() {
				t.Fatalf("got network address %s for %s", addr, tt.cidr)
			}
		}
	}
}

func TestRandomFromPrefixEdges(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	addr, err := RandomFromPrefix(rng, "192.0.2.7/32")
	if err != nil {
		t.Fatalf("/32 failed: %v", err)
	}
	if addr != netip.MustParseAddr("192.0.2.7") {
		t.Errorf("/32 = %s, want 192.0.2.7", addr)
	}

	addr, err = RandomFromPrefix(rng, "192.0.2.6/31")
	if err != nil {
		t.Fatalf("/31 failed: %v", err)
	}
	if addr != netip.MustParseAddr("192.0.2.6") {
		t.Errorf("/31 = %s, want 192.0.2.6", addr)
	}

	if _, err := RandomFromPrefix(rng, "not-a-prefix"); err == nil {
		t.Error("expected error for invalid prefix")
	}
	if _, err := RandomFromPrefix(rng, "2001:db8::/64"); err == nil {
		t.Error("expected error for IPv6 prefix")
	}
}

func TestRandomSample(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	prefixes := make([]netip.Prefix, len(SamplePrefixes))
	for i, p := range SamplePrefixes {
		prefixes[i] = netip.MustParsePrefix(p)
	}
	for i := 0; i < 200; i++ {
		addr, err := RandomSample(rng)
		if err != nil {
			t.Fatalf("RandomSample failed: %v", err)
		}
		found := false
		for _, p := range prefixes {
			if p.Contains(addr) {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("%s not inside any sample prefix", addr)
		}
	}
}
