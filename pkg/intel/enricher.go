package intel

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"sort"
	"time"

	"github.com/sudorandom/bgp-intel/pkg/bgpview"
	"github.com/sudorandom/bgp-intel/pkg/cache"
	"github.com/sudorandom/bgp-intel/pkg/cloudnets"
	"github.com/sudorandom/bgp-intel/pkg/cymru"
	"github.com/sudorandom/bgp-intel/pkg/geo"
	"github.com/sudorandom/bgp-intel/pkg/ipapi"
	"github.com/sudorandom/bgp-intel/pkg/ripestat"
)

// Upstream is one transit provider, ranked by how many RIS peers observe it.
type Upstream struct {
	ASN     string `json:"asn"`
	Power   int    `json:"power"`
	V4Peers int    `json:"v4_peers"`
	V6Peers int    `json:"v6_peers"`
}

// Entity is the resolved identity of one AS on a path.
type Entity struct {
	ASN     string `json:"asn"`
	Holder  string `json:"holder"`
	Country string `json:"country"`
}

// CymruResolver is the slice of the Team Cymru whois service the enricher
// needs. Satisfied by *cymru.Resolver.
type CymruResolver interface {
	OriginByIP(ctx context.Context, addr netip.Addr) (*cymru.Origin, error)
	ASName(ctx context.Context, asn int) (*cymru.ASDescription, error)
}

// Enricher wires the API clients together and carries the shared lookup
// logic every subcommand builds on.
type Enricher struct {
	RIPEStat *ripestat.Client
	BGPView  *bgpview.Client
	IPAPI    *ipapi.Client
	Cymru    CymruResolver

	Cache *cache.Store // nil disables caching
	Geo   *geo.Reader  // nil disables offline enrichment

	// CloudNets matches IPs against published provider ranges, catching
	// cloud-hosted addresses whose holder name gives nothing away. Nil
	// disables the check.
	CloudNets *cloudnets.Matcher

	Classifier *Classifier

	// URLClient fetches user-supplied URLs for the sovereignty audit,
	// following redirects to the final destination.
	URLClient *http.Client

	// Delay paces consecutive RIPEstat calls within one analysis, matching
	// the API's informal fair-use expectations. Zero in tests.
	Delay time.Duration
}

func NewEnricher() *Enricher {
	return &Enricher{
		RIPEStat:   ripestat.NewClient(),
		BGPView:    bgpview.NewClient(),
		IPAPI:      ipapi.NewClient(),
		Cymru:      cymru.NewResolver(),
		Classifier: NewClassifier(),
		URLClient:  &http.Client{Timeout: ripestat.DefaultTimeout},
		Delay:      time.Second,
	}
}

func (e *Enricher) pace(ctx context.Context) error {
	if e.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(e.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// entity resolves one AS to holder and inferred country, consulting the
// disk cache before RIPEstat.
func (e *Enricher) entity(ctx context.Context, asn string) Entity {
	key := "as-overview/" + asn
	var ent Entity
	if e.Cache.GetJSON(key, &ent) {
		return ent
	}

	overview, err := e.RIPEStat.ASOverview(ctx, asn)
	if err != nil {
		log.Printf("[intel] as-overview for %s failed: %v", asn, err)
		return Entity{ASN: asn, Holder: unknown, Country: "UNKNOWN"}
	}

	holder := overview.Holder
	if holder == "" {
		holder = unknown
	}
	ent = Entity{ASN: asn, Holder: holder, Country: InferCountry(holder)}
	if err := e.Cache.SetJSON(key, ent); err != nil {
		log.Printf("[intel] caching %s failed: %v", key, err)
	}
	return ent
}

// pathEntities resolves every distinct AS on a path, preserving path order.
func (e *Enricher) pathEntities(ctx context.Context, path []string) []Entity {
	seen := make(map[string]Entity, len(path))
	out := make([]Entity, 0, len(path))
	for _, asn := range path {
		ent, ok := seen[asn]
		if !ok {
			ent = e.entity(ctx, asn)
			seen[asn] = ent
		}
		out = append(out, ent)
	}
	return out
}

// topUpstreams returns the three strongest transit providers of an ASN.
// Left neighbours are the ones providing transit toward it.
func (e *Enricher) topUpstreams(ctx context.Context, asn string) ([]Upstream, error) {
	if asn == "" || asn == unknown {
		return nil, nil
	}
	neighbours, err := e.RIPEStat.ASNNeighbours(ctx, asn)
	if err != nil {
		return nil, err
	}

	var left []ripestat.Neighbour
	for _, n := range neighbours.Neighbours {
		if n.Type == "left" {
			left = append(left, n)
		}
	}
	sort.SliceStable(left, func(i, j int) bool { return left[i].Power > left[j].Power })
	if len(left) > 3 {
		left = left[:3]
	}

	out := make([]Upstream, 0, len(left))
	for _, n := range left {
		out = append(out, Upstream{
			ASN:     NormalizeASN(fmt.Sprint(n.ASN)),
			Power:   n.Power,
			V4Peers: n.V4Peers,
			V6Peers: n.V6Peers,
		})
	}
	return out, nil
}

// originFromIP maps an IP to its covering prefix and origin AS.
func (e *Enricher) originFromIP(ctx context.Context, ip string) (prefix, originASN, originHolder string, err error) {
	overview, err := e.RIPEStat.PrefixOverview(ctx, ip)
	if err != nil {
		return "", "", "", err
	}
	prefix = overview.Resource
	if prefix == "" {
		prefix = unknown
	}
	if len(overview.ASNs) == 0 {
		return prefix, unknown, unknown, nil
	}
	first := overview.ASNs[0]
	originASN = NormalizeASN(fmt.Sprint(first.ASN))
	originHolder = first.Holder
	if originHolder == "" {
		originHolder = unknown
	}
	return prefix, originASN, originHolder, nil
}

// livePath returns the AS path of the first route RIS currently sees for a
// prefix, collector towards origin, normalized to "AS<number>" form.
func (e *Enricher) livePath(ctx context.Context, prefix string) ([]string, error) {
	if prefix == "" || prefix == unknown {
		return nil, nil
	}
	state, err := e.RIPEStat.BGPState(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if len(state.BGPState) == 0 {
		return nil, nil
	}
	raw := state.BGPState[0].Path
	path := make([]string, 0, len(raw))
	for _, asn := range raw {
		path = append(path, NormalizeASN(fmt.Sprint(asn)))
	}
	return path, nil
}
