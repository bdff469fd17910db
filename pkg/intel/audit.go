package intel

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// AuditReport is the integrity view of one ASN: entity context, routing
// scope, transit posture and longevity signals.
type AuditReport struct {
	Input          string     `json:"input"`
	ResolvedFromIP bool       `json:"resolved_from_ip"`
	ASN            string     `json:"asn"`
	Holder         string     `json:"holder"`
	Country        string     `json:"registration_country"`
	CountryName    string     `json:"registration_country_name"`
	Announced      bool       `json:"announced"`
	PrefixCount    int        `json:"managed_prefix_count"`
	Upstreams      []Upstream `json:"upstreams_top3"`
	FirstSeen      string     `json:"first_seen"`
	LastSeen       string     `json:"last_seen"`

	HighRisk         bool `json:"is_high_risk"`
	NewlyEstablished bool `json:"is_newly_established"`
}

// newlyEstablishedWindow is how recent a first-seen time must be for an AS
// to count as newly established.
const newlyEstablishedWindow = 365 * 24 * time.Hour

// AuditASN audits an ASN (or the origin ASN of an IP): entity info, announced
// prefixes, top upstreams, RIS first/last seen and the derived risk flags.
func (e *Enricher) AuditASN(ctx context.Context, resource string) (*AuditReport, error) {
	raw := strings.TrimSpace(resource)
	report := &AuditReport{
		Input:     raw,
		FirstSeen: "UNKNOWN",
		LastSeen:  "UNKNOWN",
	}

	if IsIP(raw) {
		report.ResolvedFromIP = true
		_, asn, _, err := e.originFromIP(ctx, raw)
		if err != nil {
			return nil, err
		}
		if asn == unknown {
			return nil, fmt.Errorf("no ASN mapping found for IP: %s", raw)
		}
		report.ASN = asn
	} else {
		if _, err := ASNNumber(raw); err != nil {
			return nil, err
		}
		report.ASN = NormalizeASN(raw)
	}

	overview, err := e.RIPEStat.ASOverview(ctx, report.ASN)
	if err != nil {
		return nil, err
	}
	report.Holder = overview.Holder
	if report.Holder == "" {
		report.Holder = "UNKNOWN"
	}
	report.Announced = overview.Announced
	report.Country = InferCountry(report.Holder)
	report.CountryName = CountryName(report.Country)

	announced, err := e.RIPEStat.AnnouncedPrefixes(ctx, report.ASN)
	if err != nil {
		return nil, err
	}
	report.PrefixCount = len(announced.Prefixes)

	report.Upstreams, err = e.topUpstreams(ctx, report.ASN)
	if err != nil {
		return nil, err
	}

	seen, err := e.RIPEStat.RISFirstLastSeen(ctx, report.ASN)
	if err != nil {
		return nil, err
	}
	for _, r := range seen.Resources {
		if t := r.First.Time; t != "" && (report.FirstSeen == "UNKNOWN" || t < report.FirstSeen) {
			report.FirstSeen = t
		}
		if t := r.Last.Time; t != "" && (report.LastSeen == "UNKNOWN" || t > report.LastSeen) {
			report.LastSeen = t
		}
	}

	report.HighRisk = e.Classifier.HighRisk(report.Country)
	if first, ok := parseSeenTime(report.FirstSeen); ok {
		report.NewlyEstablished = time.Since(first) < newlyEstablishedWindow
	}
	return report, nil
}

// parseSeenTime handles the timestamp spellings RIS has used over the years.
func parseSeenTime(value string) (time.Time, bool) {
	if value == "" || value == "UNKNOWN" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
