package intel

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/sudorandom/bgp-intel/pkg/cache"
	"github.com/sudorandom/bgp-intel/pkg/cloudnets"
	"github.com/sudorandom/bgp-intel/pkg/cymru"
)

// fakeRIPEStat serves canned data sections keyed by "<call> <resource>".
// The rpki-validation call is keyed by "<call> <prefix> <resource>".
type fakeRIPEStat struct {
	responses map[string]string
}

func (f *fakeRIPEStat) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	call := r.URL.Path[1 : len(r.URL.Path)-len("/data.json")]
	key := call + " " + r.URL.Query().Get("resource")
	if p := r.URL.Query().Get("prefix"); p != "" {
		key = call + " " + p + " " + r.URL.Query().Get("resource")
	}
	data, ok := f.responses[key]
	if !ok {
		http.Error(w, fmt.Sprintf("no canned response for %q", key), http.StatusNotFound)
		return
	}
	fmt.Fprintf(w, `{"data": %s, "status": "ok"}`, data)
}

func newTestEnricher(t *testing.T, responses map[string]string) *Enricher {
	t.Helper()
	srv := httptest.NewServer(&fakeRIPEStat{responses: responses})
	t.Cleanup(srv.Close)

	e := NewEnricher()
	e.RIPEStat.BaseURL = srv.URL
	e.Delay = 0
	return e
}

func TestTriageIP(t *testing.T) {
	e := newTestEnricher(t, map[string]string{
		"prefix-overview 5.8.8.8": `{"resource": "5.8.0.0/16",
			"asns": [{"asn": 64500, "holder": "EVIL-VPN-AS, RU"}], "type": "prefix"}`,
		"rir-stats-country 5.8.8.8":    `{"located_resources": [{"resource": "5.8.0.0/16", "location": "ru"}]}`,
		"abuse-contact-finder 5.8.8.8": `{"abuse_contacts": ["abuse@example.ru"]}`,
	})

	report, err := e.TriageIP(context.Background(), "5.8.8.8", TriageOptions{})
	if err != nil {
		t.Fatalf("TriageIP failed: %v", err)
	}
	if report.ASN != "AS64500" || report.Holder != "EVIL-VPN-AS, RU" {
		t.Errorf("identity = %s/%s, want AS64500/EVIL-VPN-AS, RU", report.ASN, report.Holder)
	}
	if report.Country != "RU" {
		t.Errorf("Country = %q, want RU", report.Country)
	}
	if report.AbuseContact != "abuse@example.ru" {
		t.Errorf("AbuseContact = %q", report.AbuseContact)
	}
	if !report.HighRisk {
		t.Error("HighRisk = false, want true for RU")
	}
	if !report.Anonymised {
		t.Error("Anonymised = false, want true for VPN holder")
	}
	if report.Cloud {
		t.Error("Cloud = true, want false")
	}
}

func TestTriageIPCloudRange(t *testing.T) {
	e := newTestEnricher(t, map[string]string{
		"prefix-overview 3.5.140.2": `{"resource": "3.5.140.0/22",
			"asns": [{"asn": 16509, "holder": "ANONYMOUS-HOSTING, US"}], "type": "prefix"}`,
		"rir-stats-country 3.5.140.2":    `{"located_resources": [{"resource": "3.5.140.0/22", "location": "kr"}]}`,
		"abuse-contact-finder 3.5.140.2": `{"abuse_contacts": []}`,
	})
	e.CloudNets = cloudnets.NewMatcher([]cloudnets.Range{
		{Prefix: netip.MustParsePrefix("3.5.140.0/22"), Provider: "AWS", Region: "ap-northeast-2"},
	})

	report, err := e.TriageIP(context.Background(), "3.5.140.2", TriageOptions{})
	if err != nil {
		t.Fatalf("TriageIP failed: %v", err)
	}
	if !report.Cloud {
		t.Error("Cloud = false, want true from range match despite neutral holder name")
	}
	if report.CloudProvider != "AWS" || report.CloudRegion != "ap-northeast-2" {
		t.Errorf("cloud range = %s/%s, want AWS/ap-northeast-2", report.CloudProvider, report.CloudRegion)
	}
}

// fakeCymru answers whois lookups from canned data.
type fakeCymru struct {
	origin *cymru.Origin
	names  map[int]*cymru.ASDescription
}

func (f *fakeCymru) OriginByIP(_ context.Context, _ netip.Addr) (*cymru.Origin, error) {
	if f.origin == nil {
		return nil, fmt.Errorf("no origin data")
	}
	return f.origin, nil
}

func (f *fakeCymru) ASName(_ context.Context, asn int) (*cymru.ASDescription, error) {
	desc, ok := f.names[asn]
	if !ok {
		return nil, fmt.Errorf("no description for AS%d", asn)
	}
	return desc, nil
}

func TestTriageIPCymruOwner(t *testing.T) {
	e := newTestEnricher(t, map[string]string{
		"prefix-overview 5.8.8.8": `{"resource": "5.8.0.0/16",
			"asns": [{"asn": 64500, "holder": "EVIL-VPN-AS, RU"}], "type": "prefix"}`,
		"rir-stats-country 5.8.8.8":    `{"located_resources": [{"resource": "5.8.0.0/16", "location": "ru"}]}`,
		"abuse-contact-finder 5.8.8.8": `{"abuse_contacts": []}`,
	})
	e.Cymru = &fakeCymru{
		origin: &cymru.Origin{ASNs: []int{64500}, Prefix: "5.8.0.0/16", Registry: "ripencc"},
		names: map[int]*cymru.ASDescription{
			64500: {ASN: 64500, Name: "EVIL-VPN-AS", CountryCode: "RU"},
		},
	}

	report, err := e.TriageIP(context.Background(), "5.8.8.8", TriageOptions{CymruOrigin: true})
	if err != nil {
		t.Fatalf("TriageIP failed: %v", err)
	}
	if report.CymruPrefix != "5.8.0.0/16" || report.CymruRegistry != "ripencc" {
		t.Errorf("cymru origin = %s/%s, want 5.8.0.0/16/ripencc", report.CymruPrefix, report.CymruRegistry)
	}
	if report.CymruOwner != "EVIL-VPN-AS" || report.CymruCountry != "RU" {
		t.Errorf("cymru owner = %s/%s, want EVIL-VPN-AS/RU", report.CymruOwner, report.CymruCountry)
	}
}

func TestTriageIPUnroutable(t *testing.T) {
	e := newTestEnricher(t, map[string]string{
		"prefix-overview 203.0.113.9":      `{"resource": "", "asns": []}`,
		"rir-stats-country 203.0.113.9":    `{"located_resources": []}`,
		"abuse-contact-finder 203.0.113.9": `{"abuse_contacts": []}`,
	})

	report, err := e.TriageIP(context.Background(), "203.0.113.9", TriageOptions{})
	if err != nil {
		t.Fatalf("TriageIP failed: %v", err)
	}
	if report.ASN != "UNKNOWN" || report.Holder != "UNKNOWN" || report.Country != "UNKNOWN" {
		t.Errorf("report = %+v, want UNKNOWN identity", report)
	}
	if report.HighRisk || report.Cloud || report.Anonymised {
		t.Errorf("risk flags set for unknown identity: %+v", report)
	}
}

func TestTriageIPInvalid(t *testing.T) {
	e := newTestEnricher(t, nil)
	if _, err := e.TriageIP(context.Background(), "999.999.1.1", TriageOptions{}); err == nil {
		t.Fatal("expected error for invalid IP")
	}
}

func TestAuditASN(t *testing.T) {
	e := newTestEnricher(t, map[string]string{
		"as-overview AS64500":        `{"holder": "NEWISH-AS, CN", "announced": true}`,
		"announced-prefixes AS64500": `{"prefixes": [{"prefix": "192.0.2.0/24"}, {"prefix": "198.51.100.0/24"}]}`,
		"asn-neighbours AS64500": `{"neighbours": [
			{"asn": 3356, "type": "left", "power": 120, "v4_peers": 80, "v6_peers": 40},
			{"asn": 1299, "type": "left", "power": 200, "v4_peers": 150, "v6_peers": 50},
			{"asn": 65010, "type": "right", "power": 500},
			{"asn": 174, "type": "left", "power": 90},
			{"asn": 6939, "type": "left", "power": 30}]}`,
		"ris-first-last-seen AS64500": `{"resources": [
			{"resource": "AS64500", "first": {"time": "2015-03-01T00:00:00"}, "last": {"time": "2025-08-30T08:00:00"}}]}`,
	})

	report, err := e.AuditASN(context.Background(), "64500")
	if err != nil {
		t.Fatalf("AuditASN failed: %v", err)
	}
	if report.ASN != "AS64500" || !report.Announced || report.PrefixCount != 2 {
		t.Errorf("report = %+v", report)
	}
	if report.Country != "CN" || !report.HighRisk {
		t.Errorf("Country/HighRisk = %s/%v, want CN/true", report.Country, report.HighRisk)
	}

	wantUpstreams := []string{"AS1299", "AS3356", "AS174"}
	var got []string
	for _, u := range report.Upstreams {
		got = append(got, u.ASN)
	}
	if !reflect.DeepEqual(got, wantUpstreams) {
		t.Errorf("Upstreams = %v, want %v (left only, by power, top 3)", got, wantUpstreams)
	}

	if report.FirstSeen != "2015-03-01T00:00:00" {
		t.Errorf("FirstSeen = %q", report.FirstSeen)
	}
	if report.NewlyEstablished {
		t.Error("NewlyEstablished = true for a 2015 ASN")
	}
}

func TestAuditASNFromIP(t *testing.T) {
	e := newTestEnricher(t, map[string]string{
		"prefix-overview 8.8.8.8":     `{"resource": "8.8.8.0/24", "asns": [{"asn": 15169, "holder": "GOOGLE, US"}]}`,
		"as-overview AS15169":         `{"holder": "GOOGLE, US", "announced": true}`,
		"announced-prefixes AS15169":  `{"prefixes": []}`,
		"asn-neighbours AS15169":      `{"neighbours": []}`,
		"ris-first-last-seen AS15169": `{"resources": []}`,
	})

	report, err := e.AuditASN(context.Background(), "8.8.8.8")
	if err != nil {
		t.Fatalf("AuditASN failed: %v", err)
	}
	if !report.ResolvedFromIP || report.ASN != "AS15169" {
		t.Errorf("report = %+v, want resolved AS15169", report)
	}
	if report.FirstSeen != "UNKNOWN" || report.LastSeen != "UNKNOWN" {
		t.Errorf("seen times = %s/%s, want UNKNOWN", report.FirstSeen, report.LastSeen)
	}
}

func TestFindPath(t *testing.T) {
	e := newTestEnricher(t, map[string]string{
		"prefix-overview 198.51.100.1": `{"resource": "198.51.100.0/24",
			"asns": [{"asn": 64500, "holder": "TARGET-AS, FR"}]}`,
		"bgp-state 198.51.100.0/24": `{"bgp_state": [
			{"path": [3356, 1299, 64500]},
			{"path": [174, 64500]}]}`,
		"asn-neighbours AS64500": `{"neighbours": [
			{"asn": 1299, "type": "left", "power": 200, "v4_peers": 150, "v6_peers": 50}]}`,
		"as-overview AS3356":  `{"holder": "LEVEL3, US"}`,
		"as-overview AS1299":  `{"holder": "TWELVE99 Arelion, EU"}`,
		"as-overview AS64500": `{"holder": "TARGET-AS, FR"}`,
	})

	report, err := e.FindPath(context.Background(), "198.51.100.1")
	if err != nil {
		t.Fatalf("FindPath failed: %v", err)
	}
	if report.Prefix != "198.51.100.0/24" || report.OriginASN != "AS64500" {
		t.Errorf("origin = %s/%s", report.Prefix, report.OriginASN)
	}

	wantPath := []string{"AS3356", "AS1299", "AS64500"}
	if !reflect.DeepEqual(report.ASPath, wantPath) {
		t.Errorf("ASPath = %v, want first route %v", report.ASPath, wantPath)
	}
	if got := report.VisualPath(); got != "AS3356 -> AS1299 -> AS64500" {
		t.Errorf("VisualPath = %q", got)
	}
	if len(report.PathDetails) != 3 || report.PathDetails[0].Country != "US" {
		t.Errorf("PathDetails = %+v", report.PathDetails)
	}
	if report.HighRiskOnPath {
		t.Error("HighRiskOnPath = true, want false")
	}
}

func TestFindPathHighRiskHop(t *testing.T) {
	e := newTestEnricher(t, map[string]string{
		"prefix-overview 198.51.100.1": `{"resource": "198.51.100.0/24",
			"asns": [{"asn": 64500, "holder": "TARGET-AS, FR"}]}`,
		"bgp-state 198.51.100.0/24": `{"bgp_state": [{"path": [12389, 64500]}]}`,
		"asn-neighbours AS64500":    `{"neighbours": []}`,
		"as-overview AS12389":       `{"holder": "ROSTELECOM-AS, RU"}`,
		"as-overview AS64500":       `{"holder": "TARGET-AS, FR"}`,
	})

	report, err := e.FindPath(context.Background(), "198.51.100.1")
	if err != nil {
		t.Fatalf("FindPath failed: %v", err)
	}
	if !report.HighRiskOnPath || len(report.HighRiskEntries) != 1 {
		t.Fatalf("HighRiskEntries = %+v, want single RU hop", report.HighRiskEntries)
	}
	if report.HighRiskEntries[0].ASN != "AS12389" || report.HighRiskEntries[0].Country != "RU" {
		t.Errorf("entry = %+v", report.HighRiskEntries[0])
	}
}

func TestAuditSovereigntySovereign(t *testing.T) {
	e := newTestEnricher(t, map[string]string{
		"prefix-overview 192.0.2.10": `{"resource": "192.0.2.0/24",
			"asns": [{"asn": 64500, "holder": "EUROPEAN-AS, DE"}]}`,
		"bgp-state 192.0.2.0/24": `{"bgp_state": [{"path": [64496, 64500]}]}`,
		"as-overview AS64496":    `{"holder": "NORDIC-TRANSIT, SE"}`,
		"as-overview AS64500":    `{"holder": "EUROPEAN-AS, DE"}`,
		"asn-neighbours AS64500": `{"neighbours": []}`,
		"rpki-validation 192.0.2.0/24 AS64500": `{"status": "valid"}`,
	})

	report, err := e.AuditSovereignty(context.Background(), "192.0.2.10", false)
	if err != nil {
		t.Fatalf("AuditSovereignty failed: %v", err)
	}
	if report.Verdict != VerdictSovereign {
		t.Errorf("Verdict = %q, want %q (entities: %+v)", report.Verdict, VerdictSovereign, report.PathEntities)
	}
	if report.RPKIState != "valid" || report.ForeignHijackRisk {
		t.Errorf("RPKI = %s/%v, want valid/false", report.RPKIState, report.ForeignHijackRisk)
	}
	if report.ExtraEUDetour || report.HighRiskOnPath {
		t.Errorf("detour flags set: %+v", report)
	}
}

func TestAuditSovereigntyFragmented(t *testing.T) {
	e := newTestEnricher(t, map[string]string{
		"prefix-overview 192.0.2.10": `{"resource": "192.0.2.0/24",
			"asns": [{"asn": 64500, "holder": "EUROPEAN-AS, DE"}]}`,
		"bgp-state 192.0.2.0/24": `{"bgp_state": [{"path": [16509, 64500]}]}`,
		"as-overview AS16509":    `{"holder": "AMAZON-02 Amazon.com, US"}`,
		"as-overview AS64500":    `{"holder": "EUROPEAN-AS, DE"}`,
		"asn-neighbours AS64500": `{"neighbours": []}`,
		"rpki-validation 192.0.2.0/24 AS64500": `{"validity": {"state": "Invalid"}}`,
	})

	report, err := e.AuditSovereignty(context.Background(), "192.0.2.10", false)
	if err != nil {
		t.Fatalf("AuditSovereignty failed: %v", err)
	}
	if report.Verdict != VerdictFragmented {
		t.Errorf("Verdict = %q, want %q", report.Verdict, VerdictFragmented)
	}
	if !report.ExtraEUDetour || len(report.ExtraEUEntries) != 1 {
		t.Errorf("ExtraEUEntries = %+v, want single US hop", report.ExtraEUEntries)
	}
	if !report.ForeignHijackRisk || report.RPKIState != "invalid" {
		t.Errorf("RPKI = %s/%v, want invalid/true", report.RPKIState, report.ForeignHijackRisk)
	}
	if len(report.ForeignInfraHits) != 1 || report.ForeignInfraHits[0].Keyword != "AMAZON" {
		t.Errorf("ForeignInfraHits = %+v", report.ForeignInfraHits)
	}
}

func TestAuditSovereigntyFromASN(t *testing.T) {
	e := newTestEnricher(t, map[string]string{
		"announced-prefixes AS64500": `{"prefixes": [{"prefix": "192.0.2.0/24"}]}`,
		"prefix-overview 192.0.2.10": `{"resource": "192.0.2.0/24",
			"asns": [{"asn": 64500, "holder": "EUROPEAN-AS, DE"}]}`,
		"bgp-state 192.0.2.0/24": `{"bgp_state": []}`,
		"asn-neighbours AS64500": `{"neighbours": []}`,
		"rpki-validation 192.0.2.0/24 AS64500": `{"status": "valid"}`,
	})

	report, err := e.AuditSovereignty(context.Background(), "AS64500", false)
	if err != nil {
		t.Fatalf("AuditSovereignty failed: %v", err)
	}
	if report.Prefix != "192.0.2.0/24" || report.TargetASN != "AS64500" {
		t.Errorf("report = %+v", report)
	}
	if report.VisualPath() != "Not available" {
		t.Errorf("VisualPath = %q, want Not available", report.VisualPath())
	}
}

func TestEntityCaching(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"data": {"holder": "CACHED-AS, NL"}, "status": "ok"}`)
	}))
	t.Cleanup(srv.Close)

	e := NewEnricher()
	e.RIPEStat.BaseURL = srv.URL
	e.Delay = 0
	store, err := openTestCache(t)
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	e.Cache = store

	path := []string{"AS64500", "AS64500", "AS64500"}
	ents := e.pathEntities(context.Background(), path)
	if len(ents) != 3 || ents[0].Holder != "CACHED-AS, NL" {
		t.Fatalf("entities = %+v", ents)
	}
	if calls != 1 {
		t.Errorf("as-overview calls = %d, want 1 (deduplicated)", calls)
	}

	// A second pass must be served from the disk cache entirely.
	_ = e.pathEntities(context.Background(), path)
	if calls != 1 {
		t.Errorf("as-overview calls after cached pass = %d, want 1", calls)
	}
}

func openTestCache(t *testing.T) (*cache.Store, error) {
	t.Helper()
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), time.Hour)
	if err == nil {
		t.Cleanup(func() {
			if err := store.Close(); err != nil {
				t.Logf("Error closing cache: %v", err)
			}
		})
	}
	return store, err
}
