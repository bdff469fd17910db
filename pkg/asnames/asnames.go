// Package asnames maps AS numbers to names using APNIC's daily autnums
// dump, for labelling origins without an API round-trip per AS.
package asnames

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/sudorandom/bgp-intel/pkg/fetchcache"
)

const dumpURL = "https://thyme.apnic.net/current/data-used-autnums"

type Mapping struct {
	names map[uint32]string
}

// Parse reads the autnums format: "AS<number> <name>" per line.
func Parse(r io.Reader) (*Mapping, error) {
	m := &Mapping{names: make(map[uint32]string)}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}
		asn, err := strconv.ParseUint(strings.TrimPrefix(parts[0], "AS"), 10, 32)
		if err != nil {
			continue
		}
		m.names[uint32(asn)] = strings.Join(parts[1:], " ")
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// Load fetches the dump, caching it under dir.
func Load(dir string) (*Mapping, error) {
	r, err := fetchcache.Open(dumpURL, dir, "asnames")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch AS name dump: %w", err)
	}
	defer r.Close()

	m, err := Parse(r)
	if err != nil {
		return nil, err
	}
	log.Printf("[asnames] Loaded %d AS names", len(m.names))
	return m, nil
}

// Name returns the registered name for an ASN, or "Unknown". Safe on a nil
// mapping.
func (m *Mapping) Name(asn int) string {
	if m == nil || asn < 0 {
		return "Unknown"
	}
	if name, ok := m.names[uint32(asn)]; ok {
		return name
	}
	return "Unknown"
}
