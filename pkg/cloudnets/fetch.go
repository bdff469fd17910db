package cloudnets

import (
	"errors"
	"io"
	"log"

	"github.com/sudorandom/bgp-intel/pkg/fetchcache"
)

// Feed is one downloadable provider range list.
type Feed struct {
	Name  string
	URL   string
	Parse func(io.Reader) ([]Range, error)
}

// DefaultFeeds are the providers with stable public range endpoints. Azure
// publishes behind a rotating download URL, so its ServiceTags file has to
// be fetched manually and parsed with ParseAzure.
var DefaultFeeds = []Feed{
	{Name: "aws", URL: "https://ip-ranges.amazonaws.com/ip-ranges.json", Parse: ParseAWS},
	{Name: "gcp", URL: "https://www.gstatic.com/ipranges/cloud.json", Parse: ParseGoogle},
	{Name: "oci", URL: "https://docs.oracle.com/iaas/tools/public_ip_ranges.json", Parse: ParseOracle},
	{Name: "digitalocean", URL: "https://digitalocean.com/geo/google.csv", Parse: ParseDigitalOcean},
}

// Load builds a Matcher from the default feeds, caching the downloads under
// dir. A feed that fails is logged and skipped so one provider outage does
// not lose the rest.
func Load(dir string) (*Matcher, error) {
	var all []Range
	for _, feed := range DefaultFeeds {
		r, err := fetchcache.Open(feed.URL, dir, feed.Name)
		if err != nil {
			log.Printf("[cloudnets] Skipping %s feed: %v", feed.Name, err)
			continue
		}
		ranges, err := feed.Parse(r)
		_ = r.Close()
		if err != nil {
			log.Printf("[cloudnets] Skipping %s feed: parse failed: %v", feed.Name, err)
			continue
		}
		log.Printf("[cloudnets] Loaded %d ranges from %s", len(ranges), feed.Name)
		all = append(all, ranges...)
	}
	if len(all) == 0 {
		return nil, errors.New("no provider feeds could be loaded")
	}
	return NewMatcher(all), nil
}
