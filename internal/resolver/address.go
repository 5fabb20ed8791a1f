package resolver

import (
	"strings"
)

// directionals maps spelled-out compass directions to their canonical
// abbreviation. Canonical forms map to themselves so normalization is
// idempotent.
var directionals = map[string]string{
	"north": "n", "n": "n",
	"south": "s", "s": "s",
	"east": "e", "e": "e",
	"west": "w", "w": "w",
	"northeast": "ne", "ne": "ne",
	"northwest": "nw", "nw": "nw",
	"southeast": "se", "se": "se",
	"southwest": "sw", "sw": "sw",
}

// streetTypes maps spelled-out street types to their canonical abbreviation
var streetTypes = map[string]string{
	"street": "st", "st": "st",
	"avenue": "ave", "ave": "ave", "av": "ave",
	"boulevard": "blvd", "blvd": "blvd",
	"drive": "dr", "dr": "dr",
	"lane": "ln", "ln": "ln",
	"road": "rd", "rd": "rd",
	"court": "ct", "ct": "ct",
	"place": "pl", "pl": "pl",
	"parkway": "pkwy", "pkwy": "pkwy",
	"highway": "hwy", "hwy": "hwy",
	"circle": "cir", "cir": "cir",
	"terrace": "ter", "ter": "ter",
	"way": "way",
	"plaza": "plz", "plz": "plz",
}

// unitMarkers start the suite/unit suffix that is stripped from addresses
var unitMarkers = map[string]bool{
	"suite": true,
	"ste":   true,
	"unit":  true,
	"apt":   true,
	"bldg":  true,
	"fl":    true,
	"floor": true,
	"#":     true,
}

// NormalizeAddress canonicalizes a street address for exact-equality matching:
// lowercased, punctuation removed, the suite/unit suffix stripped, directionals
// and street types reduced to their canonical abbreviations, whitespace
// collapsed. Grubhub store names are constant across a brand's locations, so
// this normalized address is the primary location discriminator for that
// platform. Normalization is idempotent.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(addr)

	var b strings.Builder
	b.Grow(len(addr))
	for _, c := range addr {
		switch {
		case c >= 'a' && c <= 'z' || c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == '#':
			// keep as its own token so it acts as a unit marker
			b.WriteString(" # ")
		default:
			b.WriteByte(' ')
		}
	}

	fields := strings.Fields(b.String())
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if unitMarkers[f] {
			// everything from the unit marker on is the suite suffix
			break
		}
		if d, ok := directionals[f]; ok {
			out = append(out, d)
			continue
		}
		if s, ok := streetTypes[f]; ok {
			out = append(out, s)
			continue
		}
		out = append(out, f)
	}

	return strings.Join(out, " ")
}
