// Package geo reads MaxMind databases for offline IP enrichment.
package geo

import (
	"net"

	"github.com/oschwald/maxminddb-golang"
)

// Location is the subset of the GeoLite2 City schema this tool uses.
type Location struct {
	CountryCode string
	City        string
	Latitude    float64
	Longitude   float64
}

type mmdbRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Location struct {
		Latitude  float64 `maxminddb:"latitude"`
		Longitude float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
}

type Reader struct {
	db *maxminddb.Reader
}

// Open loads an .mmdb file. A nil *Reader is valid and never matches, so the
// offline path degrades cleanly when no database is configured.
func Open(path string) (*Reader, error) {
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error {
	if r == nil {
		return nil
	}
	return r.db.Close()
}

// Lookup returns the location for an IP, or false when the database has no
// record (or no reader is loaded).
func (r *Reader) Lookup(ip net.IP) (*Location, bool) {
	if r == nil || ip == nil {
		return nil, false
	}
	var rec mmdbRecord
	if err := r.db.Lookup(ip, &rec); err != nil {
		return nil, false
	}
	if rec.Country.ISOCode == "" && rec.Location.Latitude == 0 && rec.Location.Longitude == 0 {
		return nil, false
	}
	return &Location{
		CountryCode: rec.Country.ISOCode,
		City:        rec.City.Names["en"],
		Latitude:    rec.Location.Latitude,
		Longitude:   rec.Location.Longitude,
	}, true
}
