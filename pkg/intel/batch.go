package intel

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"

	geojson "github.com/paulmach/go.geojson"
)

// BatchRow is the enrichment result for one IP in a batch run.
type BatchRow struct {
	IP      string `json:"ip"`
	Status  string `json:"status"`
	Country string `json:"country,omitempty"`
	ASN     string `json:"asn,omitempty"`
	Org     string `json:"org,omitempty"`
	Error   string `json:"error,omitempty"`

	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// ReadIPList reads one IP per line, skipping blanks and # comments.
func ReadIPList(r io.Reader) ([]string, error) {
	var ips []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ips = append(ips, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ips, nil
}

// BatchReport enriches a list of IPs one by one. Invalid addresses and
// failed lookups become error rows; the run never aborts half way.
func (e *Enricher) BatchReport(ctx context.Context, ips []string) []BatchRow {
	rows := make([]BatchRow, 0, len(ips))
	for _, ip := range ips {
		if !IsIP(ip) {
			rows = append(rows, BatchRow{IP: ip, Status: StatusError, Error: "invalid_ip"})
			continue
		}

		res, err := e.IPAPI.Lookup(ctx, ip)
		if err != nil {
			row := BatchRow{IP: ip, Status: StatusError, Error: err.Error()}
			// The offline database may still place the address.
			if loc, ok := e.Geo.Lookup(net.ParseIP(ip)); ok {
				row.Country = CountryName(loc.CountryCode)
				row.Latitude = loc.Latitude
				row.Longitude = loc.Longitude
			}
			rows = append(rows, row)
			continue
		}

		rows = append(rows, BatchRow{
			IP:        ip,
			Status:    StatusOK,
			Country:   res.CountryName,
			ASN:       res.ASN,
			Org:       res.Org,
			Latitude:  res.Latitude,
			Longitude: res.Longitude,
		})
	}
	return rows
}

// BatchGeoJSON renders batch rows as a FeatureCollection of points, one per
// successfully located IP, with the enrichment fields as properties.
func BatchGeoJSON(rows []BatchRow, classifier *Classifier) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, row := range rows {
		if row.Latitude == 0 && row.Longitude == 0 {
			continue
		}
		f := geojson.NewPointFeature([]float64{row.Longitude, row.Latitude})
		f.SetProperty("ip", row.IP)
		f.SetProperty("status", row.Status)
		if row.Country != "" {
			f.SetProperty("country", row.Country)
		}
		if row.ASN != "" {
			f.SetProperty("asn", row.ASN)
		}
		if row.Org != "" {
			f.SetProperty("org", row.Org)
			f.SetProperty("cloud", classifier.Cloud(row.Org))
		}
		fc.AddFeature(f)
	}
	return fc
}
