package watch

// beaconPrefixes are the RIPE RIS routing beacons and anchors. Beacons are
// announced and withdrawn on a two-hour schedule, so churn on them is
// expected rather than suspicious.
var beaconPrefixes = map[string]bool{
	"84.205.64.0/24":    true, // Beacon (Anycast), RRC00, RRC25
	"84.205.65.0/24":    true, // Beacon, RRC01
	"84.205.66.0/24":    true, // Beacon, Fast Paced
	"84.205.67.0/24":    true, // Beacon, RRC03
	"84.205.69.0/24":    true, // Beacon (Anycast), RRC04-26
	"84.205.70.0/24":    true, // Beacon (Anycast), RRC06, RRC23
	"84.205.75.0/24":    true, // Beacon (Anycast), RRC11, RRC14, RRC16
	"84.205.76.0/24":    true, // Beacon, RRC12
	"84.205.80.0/24":    true, // Anchor (Anycast), RRC00, RRC25
	"84.205.81.0/24":    true, // Anchor, RRC01
	"84.205.82.0/24":    true, // Beacon (Anycast), RRC19
	"84.205.83.0/24":    true, // Anchor, RRC03
	"84.205.85.0/24":    true, // Anchor (Anycast), RRC04-26
	"84.205.86.0/24":    true, // Anchor (Anycast), RRC06, RRC23
	"84.205.88.0/24":    true, // Anchor, Anycast AFRINIC
	"84.205.91.0/24":    true, // Anchor (Anycast), RRC11, RRC14, RRC16
	"84.205.92.0/24":    true, // Anchor, RRC12
	"93.175.146.0/24":   true, // RPKI Valid
	"93.175.147.0/24":   true, // RPKI Invalid
	"93.175.152.0/24":   true, // Anchor, Anycast LACNIC
	"93.175.153.0/24":   true, // Beacon, Anycast LACNIC
	"93.175.154.0/25":   true, // Anchor, Long Prefix
	"93.175.154.128/28": true, // Anchor, Long Prefix
}

// IsBeacon reports whether prefix is a RIS routing beacon or anchor.
func IsBeacon(prefix string) bool {
	return beaconPrefixes[prefix]
}
