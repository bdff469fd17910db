package intel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net/netip"
	"slices"
	"strings"
)

// Origin check statuses.
const (
	StatusOK      = "ok"
	StatusAlert   = "alert"
	StatusUnknown = "unknown"
	StatusError   = "error"
)

// Origin check reasons.
const (
	ReasonExpectedPresent = "expected_origin_present"
	ReasonOriginMismatch  = "origin_mismatch_possible_hijack_or_leak"
	ReasonNoOriginData    = "no_origin_data"
)

// Target is one prefix/ASN pair from a baseline file or the command line.
type Target struct {
	Prefix string
	ASN    string
}

// OriginResult is the verdict for one prefix against its expected origin.
type OriginResult struct {
	Prefix      string   `json:"prefix"`
	ExpectedASN string   `json:"expected_asn"`
	Observed    []string `json:"observed_asns"`
	Status      string   `json:"status"`
	Reason      string   `json:"reason"`

	// ObservedNames maps unexpected origin ASNs to their registered names,
	// resolved only when the check raises an alert.
	ObservedNames map[string]string `json:"observed_names,omitempty"`
}

// RPKIResult is the validation state for one prefix/ASN pair.
type RPKIResult struct {
	Prefix string `json:"prefix"`
	ASN    string `json:"asn"`
	State  string `json:"rpki_state"`
	Source string `json:"source"`
	Error  string `json:"error,omitempty"`
}

// ParseBaseline reads "prefix,asn" lines. Blank lines, comments and
// malformed rows are skipped.
func ParseBaseline(r io.Reader) ([]Target, error) {
	var targets []Target
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ",", 3)
		if len(parts) < 2 {
			continue
		}
		prefix := strings.TrimSpace(parts[0])
		asn := strings.TrimSpace(parts[1])
		if prefix == "" || asn == "" {
			continue
		}
		targets = append(targets, Target{Prefix: prefix, ASN: NormalizeASN(asn)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return targets, nil
}

// ValidatePrefix rejects strings that are not CIDR prefixes.
func ValidatePrefix(prefix string) error {
	if _, err := netip.ParsePrefix(strings.TrimSpace(prefix)); err != nil {
		return fmt.Errorf("invalid prefix %q: %w", prefix, err)
	}
	return nil
}

// CheckOrigin compares the origins currently observed for a prefix against
// the expected one. A mismatch is a possible hijack or leak signal.
func (e *Enricher) CheckOrigin(ctx context.Context, prefix, expectedASN string) OriginResult {
	expected := NormalizeASN(expectedASN)
	result := OriginResult{
		Prefix:      prefix,
		ExpectedASN: expected,
		Observed:    []string{},
	}

	origins, err := e.BGPView.PrefixOrigins(ctx, prefix)
	if err != nil {
		result.Status = StatusError
		result.Reason = err.Error()
		return result
	}
	for _, asn := range origins {
		result.Observed = append(result.Observed, NormalizeASN(fmt.Sprint(asn)))
	}

	switch {
	case len(result.Observed) == 0:
		result.Status = StatusUnknown
		result.Reason = ReasonNoOriginData
	case slices.Contains(result.Observed, expected):
		result.Status = StatusOK
		result.Reason = ReasonExpectedPresent
	default:
		result.Status = StatusAlert
		result.Reason = ReasonOriginMismatch
		result.ObservedNames = e.observedNames(ctx, origins)
	}
	return result
}

// observedNames resolves registered names for the origins involved in an
// alert, so the report says who announced the prefix rather than just which
// number did.
func (e *Enricher) observedNames(ctx context.Context, asns []int) map[string]string {
	names := make(map[string]string, len(asns))
	for _, asn := range asns {
		if err := e.pace(ctx); err != nil {
			break
		}
		info, err := e.BGPView.ASN(ctx, asn)
		if err != nil {
			log.Printf("[intel] AS%d details lookup failed: %v", asn, err)
			continue
		}
		name := info.Name
		if name == "" {
			name = info.Description
		}
		if name != "" {
			names[NormalizeASN(fmt.Sprint(asn))] = name
		}
	}
	if len(names) == 0 {
		return nil
	}
	return names
}

// CheckRPKI fetches the RPKI validation state for one prefix/ASN pair.
func (e *Enricher) CheckRPKI(ctx context.Context, prefix, asn string) RPKIResult {
	normalized := NormalizeASN(asn)
	result := RPKIResult{
		Prefix: prefix,
		ASN:    normalized,
		Source: "RIPEstat",
	}

	validation, err := e.RIPEStat.RPKIValidation(ctx, prefix, normalized)
	if err != nil {
		result.State = StatusError
		result.Error = err.Error()
		return result
	}
	result.State = validation.State()
	return result
}
