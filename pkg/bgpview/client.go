// Package bgpview is a small client for the bgpview.io REST API.
package bgpview

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

const DefaultBaseURL = "https://api.bgpview.io"

type Client struct {
	HTTPClient *http.Client
	BaseURL    string
}

func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 12 * time.Second},
		BaseURL:    DefaultBaseURL,
	}
}

type prefixResponse struct {
	Status string `json:"status"`
	Data   struct {
		ASN  *struct{ ASN int `json:"asn"` } `json:"asn"`
		ASNs []struct {
			ASN int `json:"asn"`
		} `json:"asns"`
	} `json:"data"`
}

type asnResponse struct {
	Status string `json:"status"`
	Data   struct {
		ASN         int    `json:"asn"`
		Name        string `json:"name"`
		Description string `json:"description_short"`
		CountryCode string `json:"country_code"`
	} `json:"data"`
}

// ASNInfo describes one autonomous system as seen by bgpview.
type ASNInfo struct {
	ASN         int
	Name        string
	Description string
	CountryCode string
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bgpview: %s: unexpected status %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// PrefixOrigins returns the origin AS numbers currently observed for a prefix,
// sorted ascending. An empty slice means bgpview has no origin data.
func (c *Client) PrefixOrigins(ctx context.Context, prefix string) ([]int, error) {
	var body prefixResponse
	if err := c.get(ctx, "/prefix/"+prefix, &body); err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	for _, a := range body.Data.ASNs {
		seen[a.ASN] = true
	}
	// Fallback shape: single top-level asn object.
	if len(seen) == 0 && body.Data.ASN != nil {
		seen[body.Data.ASN.ASN] = true
	}

	origins := make([]int, 0, len(seen))
	for asn := range seen {
		origins = append(origins, asn)
	}
	sort.Ints(origins)
	return origins, nil
}

// ASN fetches identity details for an AS number.
func (c *Client) ASN(ctx context.Context, asn int) (*ASNInfo, error) {
	var body asnResponse
	if err := c.get(ctx, fmt.Sprintf("/asn/%d", asn), &body); err != nil {
		return nil, err
	}
	return &ASNInfo{
		ASN:         body.Data.ASN,
		Name:        body.Data.Name,
		Description: body.Data.Description,
		CountryCode: body.Data.CountryCode,
	}, nil
}
