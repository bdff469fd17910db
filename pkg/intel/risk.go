package intel

import (
	"strings"

	"github.com/biter777/countries"
	"github.com/cloudflare/ahocorasick"
)

// HighRiskCountries are the jurisdictions the original SOC playbook flags.
var HighRiskCountries = map[string]bool{
	"RU": true, "CN": true, "IR": true, "KP": true, "SY": true,
}

// EUEEACountries is the EU/EEA allowlist used by the sovereignty audit.
var EUEEACountries = map[string]bool{
	"AT": true, "BE": true, "BG": true, "HR": true, "CY": true, "CZ": true,
	"DK": true, "EE": true, "FI": true, "FR": true, "DE": true, "GR": true,
	"HU": true, "IE": true, "IT": true, "LV": true, "LT": true, "LU": true,
	"MT": true, "NL": true, "PL": true, "PT": true, "RO": true, "SK": true,
	"SI": true, "ES": true, "SE": true, "IS": true, "LI": true, "NO": true,
}

var (
	cloudIndicators      = []string{"AWS", "AMAZON", "GOOGLE", "AZURE", "HETZNER", "DIGITALOCEAN", "OVH"}
	anonymiserIndicators = []string{"VPN", "PROXY", "TOR", "MULLVAD"}
	foreignInfraKeywords = []string{"ARVANCLOUD", "AMAZON", "GOOGLE", "TCI", "BEZEQ"}
)

// Classifier applies the static risk heuristics: country set membership and
// keyword matching over holder/usage strings.
type Classifier struct {
	cloud      *ahocorasick.Matcher
	anonymiser *ahocorasick.Matcher
	foreign    *ahocorasick.Matcher
}

func NewClassifier() *Classifier {
	return &Classifier{
		cloud:      ahocorasick.NewStringMatcher(cloudIndicators),
		anonymiser: ahocorasick.NewStringMatcher(anonymiserIndicators),
		foreign:    ahocorasick.NewStringMatcher(foreignInfraKeywords),
	}
}

// HighRisk reports whether a country code is on the high-risk list.
func (c *Classifier) HighRisk(countryCode string) bool {
	return HighRiskCountries[strings.ToUpper(countryCode)]
}

// InEUEEA reports whether a country code is inside the EU/EEA allowlist.
func (c *Classifier) InEUEEA(countryCode string) bool {
	return EUEEACountries[strings.ToUpper(countryCode)]
}

// Cloud reports whether text carries a cloud or data-centre indicator.
func (c *Classifier) Cloud(text string) bool {
	return len(c.cloud.Match([]byte(strings.ToUpper(text)))) > 0
}

// Anonymised reports whether text carries a VPN/proxy/Tor indicator.
func (c *Classifier) Anonymised(text string) bool {
	return len(c.anonymiser.Match([]byte(strings.ToUpper(text)))) > 0
}

// ForeignInfraKeyword returns the first foreign-infrastructure keyword found
// in a holder string, or "" when none match.
func (c *Classifier) ForeignInfraKeyword(holder string) string {
	hits := c.foreign.Match([]byte(strings.ToUpper(holder)))
	if len(hits) == 0 {
		return ""
	}
	first := hits[0]
	for _, h := range hits[1:] {
		if h < first {
			first = h
		}
	}
	return foreignInfraKeywords[first]
}

// CountryName resolves a two-letter code to a display name, falling back to
// the code itself for unknown or inferred values.
func CountryName(code string) string {
	if code == "" || code == "UNKNOWN" {
		return "UNKNOWN"
	}
	c := countries.ByName(code)
	if c == countries.Unknown {
		return code
	}
	name := c.String()
	if idx := strings.Index(name, " ("); idx != -1 {
		name = name[:idx]
	}
	return name
}
