// Package cymru resolves origin ASN data through Team Cymru's DNS interface.
package cymru

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

const (
	originZoneV4 = "origin.asn.cymru.com"
	originZoneV6 = "origin6.asn.cymru.com"
	asZone       = "asn.cymru.com"
)

// Origin is one row from the origin zone:
// "15169 | 8.8.8.0/24 | US | arin | 1992-12-01".
type Origin struct {
	ASNs        []int
	Prefix      string
	CountryCode string
	Registry    string
	Allocated   string
}

// ASDescription is one row from the AS zone:
// "15169 | US | arin | 2000-03-30 | GOOGLE, US".
type ASDescription struct {
	ASN         int
	CountryCode string
	Registry    string
	Allocated   string
	Name        string
}

type Resolver struct {
	// Resolver performs the TXT queries. The default uses the system resolver.
	Resolver *net.Resolver
}

func NewResolver() *Resolver {
	return &Resolver{Resolver: net.DefaultResolver}
}

// OriginByIP maps an IP to its origin record.
func (r *Resolver) OriginByIP(ctx context.Context, ip netip.Addr) (*Origin, error) {
	name, err := originQueryName(ip)
	if err != nil {
		return nil, err
	}
	records, err := r.Resolver.LookupTXT(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("cymru: origin lookup for %s: %w", ip, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("cymru: no origin record for %s", ip)
	}
	return parseOrigin(records[0])
}

// ASName returns the registered description of an AS number.
func (r *Resolver) ASName(ctx context.Context, asn int) (*ASDescription, error) {
	name := fmt.Sprintf("AS%d.%s", asn, asZone)
	records, err := r.Resolver.LookupTXT(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("cymru: AS lookup for AS%d: %w", asn, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("cymru: no record for AS%d", asn)
	}
	return parseASDescription(records[0])
}

func originQueryName(ip netip.Addr) (string, error) {
	if ip.Is4() {
		o := ip.As4()
		return fmt.Sprintf("%d.%d.%d.%d.%s", o[3], o[2], o[1], o[0], originZoneV4), nil
	}
	if ip.Is6() {
		raw := ip.As16()
		nibbles := make([]string, 0, 32)
		for i := 15; i >= 0; i-- {
			nibbles = append(nibbles, fmt.Sprintf("%x.%x", raw[i]&0xf, raw[i]>>4))
		}
		return strings.Join(nibbles, ".") + "." + originZoneV6, nil
	}
	return "", fmt.Errorf("cymru: invalid address %s", ip)
}

func splitRecord(txt string, want int) ([]string, error) {
	fields := strings.Split(txt, "|")
	if len(fields) < want {
		return nil, fmt.Errorf("cymru: malformed record %q", txt)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields, nil
}

func parseOrigin(txt string) (*Origin, error) {
	fields, err := splitRecord(txt, 5)
	if err != nil {
		return nil, err
	}

	// Multi-origin prefixes list several ASNs space-separated in field 0.
	var asns []int
	for _, tok := range strings.Fields(fields[0]) {
		n, err := strconv.Atoi(tok)
		if err != nil {
			continue
		}
		asns = append(asns, n)
	}
	if len(asns) == 0 {
		return nil, fmt.Errorf("cymru: no ASN in record %q", txt)
	}

	return &Origin{
		ASNs:        asns,
		Prefix:      fields[1],
		CountryCode: fields[2],
		Registry:    fields[3],
		Allocated:   fields[4],
	}, nil
}

func parseASDescription(txt string) (*ASDescription, error) {
	fields, err := splitRecord(txt, 5)
	if err != nil {
		return nil, err
	}
	asn, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("cymru: bad ASN in record %q", txt)
	}
	return &ASDescription{
		ASN:         asn,
		CountryCode: fields[1],
		Registry:    fields[2],
		Allocated:   fields[3],
		Name:        fields[4],
	}, nil
}
