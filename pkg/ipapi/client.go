// Package ipapi is a client for the ipapi.co geolocation API.
package ipapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultBaseURL = "https://ipapi.co"

type Client struct {
	HTTPClient *http.Client
	BaseURL    string
}

func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		BaseURL:    DefaultBaseURL,
	}
}

// Result is the per-IP record. The API reports errors in-band with an
// "error" field, so that shape is folded in here.
type Result struct {
	IP          string  `json:"ip"`
	City        string  `json:"city"`
	Region      string  `json:"region"`
	CountryCode string  `json:"country_code"`
	CountryName string  `json:"country_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Org         string  `json:"org"`
	ASN         string  `json:"asn"`

	Err    bool   `json:"error"`
	Reason string `json:"reason"`
}

// Lookup fetches the geolocation record for one IP.
func (c *Client) Lookup(ctx context.Context, ip string) (*Result, error) {
	url := fmt.Sprintf("%s/%s/json/", c.BaseURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ipapi: %s: unexpected status %s", ip, resp.Status)
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ipapi: %s: decoding response: %w", ip, err)
	}
	if out.Err {
		return nil, fmt.Errorf("ipapi: %s: %s", ip, out.Reason)
	}
	return &out, nil
}
