package ripestat

import "strings"

// OriginASN is one origin entry from prefix-overview.
type OriginASN struct {
	ASN    int    `json:"asn"`
	Holder string `json:"holder"`
}

type PrefixOverview struct {
	Resource string      `json:"resource"`
	ASNs     []OriginASN `json:"asns"`
	Type     string      `json:"type"`
	Block    struct {
		Desc string `json:"desc"`
	} `json:"block"`
}

type ASOverview struct {
	Holder    string `json:"holder"`
	Announced bool   `json:"announced"`
	Resource  string `json:"resource"`
	Type      string `json:"type"`
}

type AnnouncedPrefixes struct {
	Prefixes []struct {
		Prefix string `json:"prefix"`
	} `json:"prefixes"`
}

// Neighbour is one entry from asn-neighbours. Power is the number of peers
// observing the adjacency; it is the sort key for upstream ranking.
type Neighbour struct {
	ASN     int    `json:"asn"`
	Type    string `json:"type"`
	Power   int    `json:"power"`
	V4Peers int    `json:"v4_peers"`
	V6Peers int    `json:"v6_peers"`
}

type ASNNeighbours struct {
	Neighbours []Neighbour `json:"neighbours"`
}

type BGPRoute struct {
	Path      []int    `json:"path"`
	Community []string `json:"community"`
	SourceID  string   `json:"source_id"`
}

type BGPState struct {
	Resource string     `json:"resource"`
	BGPState []BGPRoute `json:"bgp_state"`
}

// RPKIValidation carries the validation verdict. Older deployments used a
// top-level status field, newer ones nest it under validity.
type RPKIValidation struct {
	Status   string `json:"status"`
	Validity struct {
		State string `json:"state"`
	} `json:"validity"`
}

// State returns the validation state in lower case, or "unknown".
func (r *RPKIValidation) State() string {
	if r.Status != "" {
		return strings.ToLower(r.Status)
	}
	if r.Validity.State != "" {
		return strings.ToLower(r.Validity.State)
	}
	return "unknown"
}

type SeenTime struct {
	Time string `json:"time"`
}

type RISFirstLastSeen struct {
	Resources []struct {
		Resource string   `json:"resource"`
		First    SeenTime `json:"first"`
		Last     SeenTime `json:"last"`
	} `json:"resources"`
}

type RIRStatsCountry struct {
	LocatedResources []struct {
		Resource string `json:"resource"`
		Location string `json:"location"`
	} `json:"located_resources"`
}

type AbuseContacts struct {
	AbuseContacts []string `json:"abuse_contacts"`
}
