package intel

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// Sovereignty verdicts.
const (
	VerdictSovereign  = "Sovereign (EU-Only)"
	VerdictFragmented = "Fragmented (Extra-EU Path)"
)

// SovereigntyReport is the full audit of where traffic toward a resource
// actually flows: path jurisdictions, RPKI posture and dependency signals.
type SovereigntyReport struct {
	Input        string     `json:"input"`
	FinalURL     string     `json:"final_url,omitempty"`
	TargetIP     string     `json:"target_ip,omitempty"`
	TargetASN    string     `json:"target_asn"`
	OriginHolder string     `json:"origin_holder"`
	Prefix       string     `json:"prefix"`
	ASPath       []string   `json:"as_path"`
	PathEntities []Entity   `json:"path_entities"`
	Upstreams    []Upstream `json:"upstreams_top3"`

	RPKIState         string `json:"rpki_state"`
	ForeignHijackRisk bool   `json:"foreign_hijack_risk"`

	ExtraEUDetour   bool     `json:"extra_eu_detour"`
	ExtraEUEntries  []Entity `json:"extra_eu_entries"`
	HighRiskOnPath  bool     `json:"path_contains_high_risk_jurisdiction"`
	HighRiskEntries []Entity `json:"high_risk_entries"`

	ForeignInfraHits []ForeignInfraHit `json:"foreign_intel_dependency_hits"`
	Verdict          string            `json:"sovereignty_score"`
}

// ForeignInfraHit records a path entity whose holder matched one of the
// foreign-infrastructure keywords.
type ForeignInfraHit struct {
	ASN     string `json:"asn"`
	Holder  string `json:"holder"`
	Keyword string `json:"keyword"`
}

// VisualPath renders the AS path as a source-to-destination arrow chain.
func (r *SovereigntyReport) VisualPath() string {
	if len(r.ASPath) == 0 {
		return "Not available"
	}
	return strings.Join(r.ASPath, " -> ")
}

// AuditSovereignty audits an IP, ASN or URL. URLs are followed to their
// final destination and resolved to an IPv4 address first.
func (e *Enricher) AuditSovereignty(ctx context.Context, resource string, asURL bool) (*SovereigntyReport, error) {
	raw := strings.TrimSpace(resource)
	report := &SovereigntyReport{Input: raw}

	var err error
	switch {
	case asURL || ClassifyResource(raw) == KindURL:
		report.FinalURL, report.TargetIP, err = e.resolveURL(ctx, raw)
		if err != nil {
			return nil, err
		}
		report.Prefix, report.TargetASN, report.OriginHolder, err = e.originFromIP(ctx, report.TargetIP)
	case IsIP(raw):
		report.TargetIP = raw
		report.Prefix, report.TargetASN, report.OriginHolder, err = e.originFromIP(ctx, raw)
	default:
		if _, numErr := ASNNumber(raw); numErr != nil {
			return nil, fmt.Errorf("resource %q is not an IP, ASN or URL", raw)
		}
		report.TargetASN = NormalizeASN(raw)
		report.OriginHolder = unknown
		report.Prefix, err = e.firstAnnouncedPrefix(ctx, report.TargetASN)
	}
	if err != nil {
		return nil, err
	}

	// An ASN input only yields a prefix; recover origin details from it.
	if report.TargetASN == "" || report.TargetASN == unknown {
		if report.Prefix != unknown {
			ipPart := strings.SplitN(report.Prefix, "/", 2)[0]
			_, report.TargetASN, report.OriginHolder, err = e.originFromIP(ctx, ipPart)
			if err != nil {
				return nil, err
			}
		} else {
			report.TargetASN = unknown
		}
	}

	report.ASPath, err = e.livePath(ctx, report.Prefix)
	if err != nil {
		return nil, err
	}
	report.PathEntities = e.pathEntities(ctx, report.ASPath)

	report.Upstreams, err = e.topUpstreams(ctx, report.TargetASN)
	if err != nil {
		return nil, err
	}

	report.RPKIState = "unknown"
	if report.Prefix != unknown && report.TargetASN != unknown {
		validation, err := e.RIPEStat.RPKIValidation(ctx, report.Prefix, report.TargetASN)
		if err != nil {
			return nil, err
		}
		report.RPKIState = validation.State()
	}
	report.ForeignHijackRisk = report.RPKIState == "invalid"

	report.ExtraEUEntries = []Entity{}
	report.HighRiskEntries = []Entity{}
	report.ForeignInfraHits = []ForeignInfraHit{}
	for _, ent := range report.PathEntities {
		if ent.Country != "UNKNOWN" && !e.Classifier.InEUEEA(ent.Country) {
			report.ExtraEUEntries = append(report.ExtraEUEntries, ent)
		}
		if e.Classifier.HighRisk(ent.Country) {
			report.HighRiskEntries = append(report.HighRiskEntries, ent)
		}
		if kw := e.Classifier.ForeignInfraKeyword(ent.Holder); kw != "" {
			report.ForeignInfraHits = append(report.ForeignInfraHits, ForeignInfraHit{
				ASN: ent.ASN, Holder: ent.Holder, Keyword: kw,
			})
		}
	}
	report.ExtraEUDetour = len(report.ExtraEUEntries) > 0
	report.HighRiskOnPath = len(report.HighRiskEntries) > 0

	report.Verdict = VerdictSovereign
	if report.ExtraEUDetour {
		report.Verdict = VerdictFragmented
	}
	return report, nil
}

func (e *Enricher) firstAnnouncedPrefix(ctx context.Context, asn string) (string, error) {
	announced, err := e.RIPEStat.AnnouncedPrefixes(ctx, asn)
	if err != nil {
		return "", err
	}
	if len(announced.Prefixes) == 0 || announced.Prefixes[0].Prefix == "" {
		return unknown, nil
	}
	return announced.Prefixes[0].Prefix, nil
}

// resolveURL follows redirects to the final URL and resolves the host to an
// IPv4 address.
func (e *Enricher) resolveURL(ctx context.Context, rawURL string) (finalURL, ip string, err error) {
	value := strings.TrimSpace(rawURL)
	if value == "" {
		return "", "", fmt.Errorf("empty URL input")
	}
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		value = "https://" + value
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, value, nil)
	if err != nil {
		return "", "", err
	}
	resp, err := e.URLClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetching %s: %w", value, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	final := resp.Request.URL
	host := final.Hostname()
	if host == "" {
		return "", "", fmt.Errorf("could not extract hostname from %s", final)
	}

	addrs, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return "", "", fmt.Errorf("resolving %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return "", "", fmt.Errorf("no IPv4 address for %s", host)
	}
	return final.String(), addrs[0].String(), nil
}
