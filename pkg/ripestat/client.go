// Package ripestat is a typed client for the RIPEstat Data API.
package ripestat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultBaseURL = "https://stat.ripe.net/data"
	DefaultTimeout = 5 * time.Second

	// RIPEstat asks clients to identify themselves.
	defaultSourceApp = "bgp-intel"
	userAgent        = "bgp-intel/1.0"
)

// ErrRateLimited is returned when the API answers 429 twice in a row.
var ErrRateLimited = errors.New("ripestat: rate limited")

type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	SourceApp  string

	// RetryDelay is how long to wait before the single retry after a 429.
	// The API recovers within a second; anything smarter is not needed here.
	RetryDelay time.Duration
}

func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		BaseURL:    DefaultBaseURL,
		SourceApp:  defaultSourceApp,
		RetryDelay: time.Second,
	}
}

// envelope is the outer shape shared by every RIPEstat data call.
type envelope struct {
	Data   json.RawMessage `json:"data"`
	Status string          `json:"status"`
}

func (c *Client) get(ctx context.Context, call string, params url.Values, out any) error {
	u := fmt.Sprintf("%s/%s/data.json", c.BaseURL, call)
	params.Set("sourceapp", c.SourceApp)

	resp, err := c.do(ctx, u, params)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		_ = resp.Body.Close()
		log.Printf("[ripestat] rate limit hit for %s, retrying in %v", call, c.RetryDelay)
		select {
		case <-time.After(c.RetryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
		resp, err = c.do(ctx, u, params)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			return fmt.Errorf("%w: %s", ErrRateLimited, call)
		}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ripestat: %s: unexpected status %s", call, resp.Status)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("ripestat: %s: decoding response: %w", call, err)
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("ripestat: %s: empty data section", call)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("ripestat: %s: decoding data: %w", call, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, u string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	return c.HTTPClient.Do(req)
}

func resourceParams(resource string) url.Values {
	v := url.Values{}
	v.Set("resource", resource)
	return v
}

// PrefixOverview maps an IP or prefix to its covering prefix and origin ASNs.
func (c *Client) PrefixOverview(ctx context.Context, resource string) (*PrefixOverview, error) {
	var out PrefixOverview
	if err := c.get(ctx, "prefix-overview", resourceParams(resource), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ASOverview returns holder and announcement status for an ASN.
func (c *Client) ASOverview(ctx context.Context, asn string) (*ASOverview, error) {
	var out ASOverview
	if err := c.get(ctx, "as-overview", resourceParams(asn), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnnouncedPrefixes lists the prefixes currently announced by an ASN.
func (c *Client) AnnouncedPrefixes(ctx context.Context, asn string) (*AnnouncedPrefixes, error) {
	var out AnnouncedPrefixes
	if err := c.get(ctx, "announced-prefixes", resourceParams(asn), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ASNNeighbours lists the BGP neighbours observed for an ASN. Neighbours of
// type "left" provide transit toward the ASN.
func (c *Client) ASNNeighbours(ctx context.Context, asn string) (*ASNNeighbours, error) {
	var out ASNNeighbours
	if err := c.get(ctx, "asn-neighbours", resourceParams(asn), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BGPState returns the routes currently seen by RIS collectors for a prefix.
func (c *Client) BGPState(ctx context.Context, prefix string) (*BGPState, error) {
	var out BGPState
	if err := c.get(ctx, "bgp-state", resourceParams(prefix), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RPKIValidation checks route-origin authorization for a prefix/ASN pair.
func (c *Client) RPKIValidation(ctx context.Context, prefix, asn string) (*RPKIValidation, error) {
	params := resourceParams(asn)
	params.Set("prefix", prefix)
	var out RPKIValidation
	if err := c.get(ctx, "rpki-validation", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RISFirstLastSeen reports when RIS first and last observed an ASN's resources.
func (c *Client) RISFirstLastSeen(ctx context.Context, asn string) (*RISFirstLastSeen, error) {
	var out RISFirstLastSeen
	if err := c.get(ctx, "ris-first-last-seen", resourceParams(asn), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RIRStatsCountry maps a resource to the country it is registered in.
func (c *Client) RIRStatsCountry(ctx context.Context, resource string) (*RIRStatsCountry, error) {
	var out RIRStatsCountry
	if err := c.get(ctx, "rir-stats-country", resourceParams(resource), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AbuseContactFinder returns the registered abuse mailboxes for a resource.
func (c *Client) AbuseContactFinder(ctx context.Context, resource string) (*AbuseContacts, error) {
	var out AbuseContacts
	if err := c.get(ctx, "abuse-contact-finder", resourceParams(resource), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
