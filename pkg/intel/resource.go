// Package intel is the shared resolution and enrichment core: given an ASN,
// IP, prefix or URL it resolves identity, routing scope and risk posture from
// public BGP intelligence sources.
package intel

import (
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"
)

const unknown = "Unknown"

// Holder strings from the RIPE DB usually end in ", XX" with the registration
// country. That tail is the only country signal as-overview exposes.
var countryTailRe = regexp.MustCompile(`,\s*([A-Z]{2})\s*$`)

// ResourceKind discriminates what the user handed us.
type ResourceKind int

const (
	KindUnknown ResourceKind = iota
	KindIP
	KindASN
	KindPrefix
	KindURL
)

// NormalizeASN renders any ASN spelling as upper-case "AS<number>".
func NormalizeASN(value string) string {
	v := strings.ToUpper(strings.TrimSpace(value))
	if strings.HasPrefix(v, "AS") {
		return v
	}
	return "AS" + v
}

// ASNNumber extracts the numeric part of an ASN in any spelling.
func ASNNumber(value string) (int, error) {
	v := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(value)), "AS")
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid ASN %q", value)
	}
	return n, nil
}

// IsIP reports whether value parses as an IPv4 or IPv6 address.
func IsIP(value string) bool {
	_, err := netip.ParseAddr(strings.TrimSpace(value))
	return err == nil
}

// ClassifyResource guesses the kind of a raw input string.
func ClassifyResource(value string) ResourceKind {
	v := strings.TrimSpace(value)
	switch {
	case v == "":
		return KindUnknown
	case strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://"):
		return KindURL
	case IsIP(v):
		return KindIP
	}
	if _, err := netip.ParsePrefix(v); err == nil {
		return KindPrefix
	}
	if _, err := ASNNumber(v); err == nil {
		return KindASN
	}
	return KindUnknown
}

// InferCountry extracts the registration country from a holder string,
// or "UNKNOWN" when the holder does not carry the usual country tail.
func InferCountry(holder string) string {
	if m := countryTailRe.FindStringSubmatch(holder); m != nil {
		return m[1]
	}
	return "UNKNOWN"
}
