// Package cloudnets matches IP addresses against the published address
// ranges of the major cloud providers. Holder-name keywords miss addresses
// announced under neutral names; the provider feeds do not.
package cloudnets

import (
	"encoding/binary"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/netip"
	"sync"
)

// Range is one provider-owned prefix.
type Range struct {
	Prefix   netip.Prefix
	Provider string
	Region   string
}

// AWS ip-ranges.json format.
type awsFeed struct {
	Prefixes []struct {
		IPPrefix string `json:"ip_prefix"`
		Region   string `json:"region"`
		Service  string `json:"service"`
	} `json:"prefixes"`
}

func ParseAWS(r io.Reader) ([]Range, error) {
	var feed awsFeed
	if err := json.NewDecoder(r).Decode(&feed); err != nil {
		return nil, err
	}

	var results []Range
	for _, p := range feed.Prefixes {
		prefix, err := netip.ParsePrefix(p.IPPrefix)
		if err != nil {
			continue
		}
		results = append(results, Range{
			Prefix:   prefix,
			Provider: "AWS",
			Region:   p.Region,
		})
	}
	return results, nil
}

// Google cloud.json format.
type googleFeed struct {
	Prefixes []struct {
		IPv4Prefix string `json:"ipv4Prefix"`
		IPv6Prefix string `json:"ipv6Prefix"`
		Scope      string `json:"scope"`
	} `json:"prefixes"`
}

func ParseGoogle(r io.Reader) ([]Range, error) {
	var feed googleFeed
	if err := json.NewDecoder(r).Decode(&feed); err != nil {
		return nil, err
	}

	var results []Range
	for _, p := range feed.Prefixes {
		raw := p.IPv4Prefix
		if raw == "" {
			raw = p.IPv6Prefix
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			continue
		}
		results = append(results, Range{
			Prefix:   prefix,
			Provider: "GCP",
			Region:   p.Scope,
		})
	}
	return results, nil
}

// Azure ServiceTags JSON format.
type azureFeed struct {
	Values []struct {
		Properties struct {
			Region          string   `json:"region"`
			AddressPrefixes []string `json:"addressPrefixes"`
		} `json:"properties"`
	} `json:"values"`
}

func ParseAzure(r io.Reader) ([]Range, error) {
	var feed azureFeed
	if err := json.NewDecoder(r).Decode(&feed); err != nil {
		return nil, err
	}

	var results []Range
	for _, v := range feed.Values {
		for _, raw := range v.Properties.AddressPrefixes {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				continue
			}
			results = append(results, Range{
				Prefix:   prefix,
				Provider: "Azure",
				Region:   v.Properties.Region,
			})
		}
	}
	return results, nil
}

// Oracle public_ip_ranges.json format.
type oracleFeed struct {
	Regions []struct {
		Region string `json:"region"`
		CIDRs  []struct {
			CIDR string `json:"cidr"`
		} `json:"cidrs"`
	} `json:"regions"`
}

func ParseOracle(r io.Reader) ([]Range, error) {
	var feed oracleFeed
	if err := json.NewDecoder(r).Decode(&feed); err != nil {
		return nil, err
	}

	var results []Range
	for _, reg := range feed.Regions {
		for _, c := range reg.CIDRs {
			prefix, err := netip.ParsePrefix(c.CIDR)
			if err != nil {
				continue
			}
			results = append(results, Range{
				Prefix:   prefix,
				Provider: "OCI",
				Region:   reg.Region,
			})
		}
	}
	return results, nil
}

// DigitalOcean geo CSV: prefix,country,region,city,postal
func ParseDigitalOcean(r io.Reader) ([]Range, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var results []Range
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) < 2 {
			continue
		}
		prefix, err := netip.ParsePrefix(record[0])
		if err != nil {
			continue
		}
		results = append(results, Range{
			Prefix:   prefix,
			Provider: "DigitalOcean",
			Region:   record[1],
		})
	}
	return results, nil
}

type entry struct {
	provider string
	region   string
}

// Matcher answers longest-prefix lookups over IPv4 provider ranges.
// IPv6 ranges are currently skipped; the feeds are overwhelmingly IPv4.
type Matcher struct {
	// per mask length, keyed by the masked address
	masks [33]map[uint32]entry
	cache sync.Map
}

func NewMatcher(ranges []Range) *Matcher {
	m := &Matcher{}
	for i := 0; i < 33; i++ {
		m.masks[i] = make(map[uint32]entry)
	}

	for _, r := range ranges {
		addr := r.Prefix.Addr()
		if !addr.Is4() {
			continue
		}
		ones := r.Prefix.Bits()
		key := binary.BigEndian.Uint32(addr.AsSlice())
		m.masks[ones][key] = entry{provider: r.Provider, region: r.Region}
	}
	return m
}

// Lookup returns the provider and region owning addr, if any. Safe on a nil
// matcher.
func (m *Matcher) Lookup(addr netip.Addr) (provider, region string, ok bool) {
	if m == nil || !addr.Is4() {
		return "", "", false
	}

	target := binary.BigEndian.Uint32(addr.AsSlice())
	if v, hit := m.cache.Load(target); hit {
		if v == nil {
			return "", "", false
		}
		e := v.(entry)
		return e.provider, e.region, true
	}

	for maskLen := 32; maskLen >= 0; maskLen-- {
		var mask uint32
		if maskLen > 0 {
			mask = uint32(0xFFFFFFFF) << (32 - maskLen)
		}
		if e, hit := m.masks[maskLen][target&mask]; hit {
			m.cache.Store(target, e)
			return e.provider, e.region, true
		}
	}

	m.cache.Store(target, nil)
	return "", "", false
}
