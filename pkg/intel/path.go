package intel

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
)

// PathReport is the live routing view for one IP: covering prefix, origin,
// AS path with per-hop jurisdictions, and transit posture.
type PathReport struct {
	IP           string     `json:"ip"`
	Prefix       string     `json:"prefix"`
	OriginASN    string     `json:"origin_asn"`
	OriginHolder string     `json:"origin_holder"`
	ASPath       []string   `json:"as_path"`
	PathDetails  []Entity   `json:"path_asn_details"`
	Upstreams    []Upstream `json:"top_upstreams"`

	HighRiskOnPath   bool     `json:"path_contains_high_risk_jurisdiction"`
	HighRiskEntries  []Entity `json:"high_risk_path_entries"`
}

// VisualPath renders the AS path as a source-to-destination arrow chain.
func (r *PathReport) VisualPath() string {
	if len(r.ASPath) == 0 {
		return "Not available"
	}
	return strings.Join(r.ASPath, " -> ")
}

// FindPath resolves the live AS path for an IP and enriches every hop with
// holder and inferred jurisdiction. The path is kept in the order RIS
// returns it: collector-neighbour towards origin.
func (e *Enricher) FindPath(ctx context.Context, ip string) (*PathReport, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return nil, fmt.Errorf("invalid IP address: %q", ip)
	}

	report := &PathReport{IP: addr.String()}
	report.Prefix, report.OriginASN, report.OriginHolder, err = e.originFromIP(ctx, report.IP)
	if err != nil {
		return nil, err
	}
	if err := e.pace(ctx); err != nil {
		return nil, err
	}

	report.ASPath, err = e.livePath(ctx, report.Prefix)
	if err != nil {
		return nil, err
	}
	if err := e.pace(ctx); err != nil {
		return nil, err
	}

	report.Upstreams, err = e.topUpstreams(ctx, report.OriginASN)
	if err != nil {
		return nil, err
	}

	report.PathDetails = e.pathEntities(ctx, report.ASPath)
	report.HighRiskEntries = []Entity{}
	seen := make(map[string]bool)
	for _, ent := range report.PathDetails {
		if e.Classifier.HighRisk(ent.Country) && !seen[ent.ASN] {
			seen[ent.ASN] = true
			report.HighRiskEntries = append(report.HighRiskEntries, ent)
		}
	}
	report.HighRiskOnPath = len(report.HighRiskEntries) > 0
	return report, nil
}
