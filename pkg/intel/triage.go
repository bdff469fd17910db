package intel

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/netip"
	"strings"
)

// TriageReport is the SOC view of a single IP: identity, registration,
// incident-response contact and the static risk flags.
type TriageReport struct {
	IP           string `json:"ip"`
	ASN          string `json:"asn"`
	Holder       string `json:"holder"`
	Country      string `json:"country"`
	CountryName  string `json:"country_name"`
	UsageType    string `json:"usage_type"`
	AbuseContact string `json:"abuse_email"`
	ReverseHost  string `json:"reverse_host,omitempty"`

	CymruPrefix   string `json:"cymru_prefix,omitempty"`
	CymruRegistry string `json:"cymru_registry,omitempty"`
	CymruOwner    string `json:"cymru_owner,omitempty"`
	CymruCountry  string `json:"cymru_country,omitempty"`

	CloudProvider string `json:"cloud_provider,omitempty"`
	CloudRegion   string `json:"cloud_region,omitempty"`

	HighRisk   bool `json:"is_high_risk"`
	Cloud      bool `json:"is_cloud"`
	Anonymised bool `json:"is_anonymised"`
}

// TriageOptions toggles the optional enrichment steps.
type TriageOptions struct {
	ReverseDNS  bool
	CymruOrigin bool
}

// TriageIP resolves identity, registration country and abuse contact for an
// IP and applies the risk classifiers.
func (e *Enricher) TriageIP(ctx context.Context, ip string, opts TriageOptions) (*TriageReport, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return nil, fmt.Errorf("invalid IP address: %q", ip)
	}

	report := &TriageReport{
		IP:           addr.String(),
		ASN:          "UNKNOWN",
		Holder:       "UNKNOWN",
		Country:      "UNKNOWN",
		AbuseContact: "UNKNOWN",
	}

	overview, err := e.RIPEStat.PrefixOverview(ctx, report.IP)
	if err != nil {
		return nil, err
	}
	if len(overview.ASNs) > 0 {
		report.ASN = NormalizeASN(fmt.Sprint(overview.ASNs[0].ASN))
		if h := overview.ASNs[0].Holder; h != "" {
			report.Holder = h
		}
	}
	report.UsageType = overview.Type
	if report.UsageType == "" {
		report.UsageType = "unknown"
	}

	country, err := e.RIPEStat.RIRStatsCountry(ctx, report.IP)
	if err != nil {
		return nil, err
	}
	if len(country.LocatedResources) > 0 && country.LocatedResources[0].Location != "" {
		report.Country = strings.ToUpper(country.LocatedResources[0].Location)
	}

	abuse, err := e.RIPEStat.AbuseContactFinder(ctx, report.IP)
	if err != nil {
		return nil, err
	}
	if len(abuse.AbuseContacts) > 0 && strings.TrimSpace(abuse.AbuseContacts[0]) != "" {
		report.AbuseContact = strings.TrimSpace(abuse.AbuseContacts[0])
	}

	// Offline fallback when the registry has no country mapping.
	if report.Country == "UNKNOWN" {
		if loc, ok := e.Geo.Lookup(net.IP(addr.AsSlice())); ok && loc.CountryCode != "" {
			report.Country = loc.CountryCode
		}
	}
	report.CountryName = CountryName(report.Country)

	if opts.ReverseDNS {
		if names, err := net.DefaultResolver.LookupAddr(ctx, report.IP); err == nil && len(names) > 0 {
			report.ReverseHost = strings.TrimSuffix(names[0], ".")
		}
	}
	if opts.CymruOrigin {
		if origin, err := e.Cymru.OriginByIP(ctx, addr); err == nil {
			report.CymruPrefix = origin.Prefix
			report.CymruRegistry = origin.Registry
			if report.ASN == "UNKNOWN" && len(origin.ASNs) > 0 {
				report.ASN = NormalizeASN(fmt.Sprint(origin.ASNs[0]))
			}
			if len(origin.ASNs) > 0 {
				if desc, err := e.Cymru.ASName(ctx, origin.ASNs[0]); err == nil {
					report.CymruOwner = desc.Name
					report.CymruCountry = desc.CountryCode
				} else {
					log.Printf("[intel] cymru AS name for AS%d failed: %v", origin.ASNs[0], err)
				}
			}
		} else {
			log.Printf("[intel] cymru origin for %s failed: %v", report.IP, err)
		}
	}

	report.HighRisk = e.Classifier.HighRisk(report.Country)
	report.Cloud = e.Classifier.Cloud(report.Holder)
	report.Anonymised = e.Classifier.Anonymised(report.Holder + " " + report.UsageType)

	if provider, region, ok := e.CloudNets.Lookup(addr); ok {
		report.Cloud = true
		report.CloudProvider = provider
		report.CloudRegion = region
	}
	return report, nil
}
