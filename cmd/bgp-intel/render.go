package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/logrusorgru/aurora"

	"github.com/sudorandom/bgp-intel/pkg/intel"
)

// renderer writes human-readable reports. Colour is dropped when the output
// is not a terminal or --no-color is set.
type renderer struct {
	w  io.Writer
	au aurora.Aurora
}

func newRenderer(w io.Writer, color bool) *renderer {
	return &renderer{w: w, au: aurora.NewAurora(color)}
}

func (r *renderer) printf(format string, args ...any) {
	fmt.Fprintf(r.w, format, args...)
}

func (r *renderer) header(title string) {
	r.printf("%s\n", r.au.Bold(r.au.Cyan("=== "+title+" ===")))
}

func (r *renderer) field(name string, value any) {
	r.printf("%-22s %v\n", name+":", value)
}

func (r *renderer) flag(name string, set bool, bad string) {
	if set {
		r.printf("%-22s %s\n", name+":", r.au.Bold(r.au.Red(bad)))
	} else {
		r.printf("%-22s %s\n", name+":", r.au.Green("no"))
	}
}

// JSON writes any report as indented JSON, for --json mode.
func (r *renderer) JSON(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *renderer) Triage(rep *intel.TriageReport) {
	r.header("IP TRIAGE: " + rep.IP)
	r.field("ASN", rep.ASN)
	r.field("Holder", rep.Holder)
	r.field("Country", fmt.Sprintf("%s (%s)", rep.Country, rep.CountryName))
	r.field("Usage Type", rep.UsageType)
	r.field("Abuse Contact", rep.AbuseContact)
	if rep.ReverseHost != "" {
		r.field("Reverse DNS", rep.ReverseHost)
	}
	if rep.CymruPrefix != "" {
		r.field("Cymru Prefix", fmt.Sprintf("%s (%s)", rep.CymruPrefix, rep.CymruRegistry))
	}
	if rep.CymruOwner != "" {
		r.field("Cymru Owner", fmt.Sprintf("%s (%s)", rep.CymruOwner, rep.CymruCountry))
	}
	r.flag("High-Risk Country", rep.HighRisk, "YES")
	if rep.CloudProvider != "" {
		r.field("Cloud Range", fmt.Sprintf("%s (%s)", rep.CloudProvider, rep.CloudRegion))
	}
	r.flag("Cloud Provider", rep.Cloud, "YES")
	r.flag("VPN/Proxy/Tor", rep.Anonymised, "YES")
}

func (r *renderer) Audit(rep *intel.AuditReport) {
	r.header("ASN AUDIT: " + rep.ASN)
	if rep.ResolvedFromIP {
		r.field("Resolved From IP", rep.Input)
	}
	r.field("Holder", rep.Holder)
	r.field("Registered In", fmt.Sprintf("%s (%s)", rep.Country, rep.CountryName))
	r.field("Announced", rep.Announced)
	r.field("Managed Prefixes", rep.PrefixCount)
	r.upstreams(rep.Upstreams)
	if rep.FirstSeen != "" {
		r.field("First Seen", rep.FirstSeen)
	}
	if rep.LastSeen != "" {
		r.field("Last Seen", rep.LastSeen)
	}
	r.flag("High-Risk Country", rep.HighRisk, "YES")
	r.flag("Newly Established", rep.NewlyEstablished, "YES (< 1 year)")
}

func (r *renderer) upstreams(ups []intel.Upstream) {
	if len(ups) == 0 {
		r.field("Top Upstreams", "none observed")
		return
	}
	names := make([]string, len(ups))
	for i, u := range ups {
		names[i] = fmt.Sprintf("%s (power %d)", u.ASN, u.Power)
	}
	r.field("Top Upstreams", strings.Join(names, ", "))
}

func (r *renderer) Path(rep *intel.PathReport) {
	r.header("ROUTE PATH: " + rep.IP)
	r.field("Announced Prefix", rep.Prefix)
	r.field("Origin", fmt.Sprintf("%s (%s)", rep.OriginASN, rep.OriginHolder))
	r.field("AS Path", rep.VisualPath())
	r.upstreams(rep.Upstreams)
	for _, ent := range rep.PathDetails {
		line := fmt.Sprintf("  %-10s %-40s %s", ent.ASN, ent.Holder, ent.Country)
		if containsEntity(rep.HighRiskEntries, ent.ASN) {
			r.printf("%s\n", r.au.Red(line))
		} else {
			r.printf("%s\n", line)
		}
	}
	r.flag("High-Risk Transit", rep.HighRiskOnPath, "YES")
}

func (r *renderer) Sovereignty(rep *intel.SovereigntyReport) {
	r.header("SOVEREIGNTY AUDIT: " + rep.Input)
	if rep.FinalURL != "" && rep.FinalURL != rep.Input {
		r.field("Final URL", rep.FinalURL)
	}
	if rep.TargetIP != "" {
		r.field("Target IP", rep.TargetIP)
	}
	r.field("Origin", fmt.Sprintf("%s (%s)", rep.TargetASN, rep.OriginHolder))
	r.field("Prefix", rep.Prefix)
	r.field("AS Path", rep.VisualPath())
	r.upstreams(rep.Upstreams)
	r.field("RPKI State", rep.RPKIState)
	r.flag("Hijack Risk (RPKI)", rep.ForeignHijackRisk, "INVALID ORIGIN")
	r.flag("Extra-EU Detour", rep.ExtraEUDetour, "YES")
	for _, ent := range rep.ExtraEUEntries {
		r.printf("  %s\n", r.au.Yellow(fmt.Sprintf("%s %s (%s)", ent.ASN, ent.Holder, ent.Country)))
	}
	r.flag("High-Risk Transit", rep.HighRiskOnPath, "YES")
	for _, ent := range rep.HighRiskEntries {
		r.printf("  %s\n", r.au.Red(fmt.Sprintf("%s %s (%s)", ent.ASN, ent.Holder, ent.Country)))
	}
	for _, hit := range rep.ForeignInfraHits {
		r.printf("  %s\n", r.au.Red(fmt.Sprintf("Foreign infra: %s %s matched %q", hit.ASN, hit.Holder, hit.Keyword)))
	}
	if rep.Verdict == intel.VerdictSovereign {
		r.field("Verdict", r.au.Bold(r.au.Green(rep.Verdict)))
	} else {
		r.field("Verdict", r.au.Bold(r.au.Red(rep.Verdict)))
	}
}

func (r *renderer) Origin(res intel.OriginResult) {
	label := r.statusLabel(res.Status)
	r.printf("%-20s expected %-10s observed %-24s %s (%s)\n",
		res.Prefix, res.ExpectedASN, strings.Join(res.Observed, ","), label, res.Reason)
	for _, asn := range res.Observed {
		if name, ok := res.ObservedNames[asn]; ok {
			r.printf("  %-10s %s\n", asn, name)
		}
	}
}

func (r *renderer) RPKI(res intel.RPKIResult) {
	var label aurora.Value
	switch res.State {
	case "valid":
		label = r.au.Green(res.State)
	case "invalid":
		label = r.au.Bold(r.au.Red(res.State))
	default:
		label = r.au.Yellow(res.State)
	}
	r.printf("%-20s %-10s rpki=%s\n", res.Prefix, res.ASN, label)
	if res.Error != "" {
		r.printf("  %s\n", r.au.Yellow(res.Error))
	}
}

func (r *renderer) statusLabel(status string) aurora.Value {
	switch status {
	case intel.StatusOK:
		return r.au.Green(status)
	case intel.StatusAlert:
		return r.au.Bold(r.au.Red(status))
	case intel.StatusError:
		return r.au.Red(status)
	default:
		return r.au.Yellow(status)
	}
}

func containsEntity(entries []intel.Entity, asn string) bool {
	for _, e := range entries {
		if e.ASN == asn {
			return true
		}
	}
	return false
}
