package features

import (
	"strings"

	"github.com/sells-group/popgrid/internal/layer"
)

// OtherFunction is the urban function of NAF divisions missing from the map.
const OtherFunction = "autre"

// Tables are the lookup mappings consumed by the computers. They are copied
// and normalized by DefaultComputers and never mutated afterwards.
type Tables struct {
	// POIWeights maps a POI type to its weight. Unknown types weigh 0.
	POIWeights map[string]float64
	// TrancheJobs maps an INSEE workforce size band to average jobs.
	TrancheJobs map[string]float64
	// NAFJobs maps a NAF division (two digits) to average jobs, used when the
	// size band is unknown.
	NAFJobs map[string]float64
	// NAFFunctions maps a NAF division to an urban function category.
	NAFFunctions map[string]string
	// CommercePrefixes select retail establishments by NAF code prefix.
	CommercePrefixes []string
	// JobSectors restricts job estimates to these NAF code prefixes. Empty
	// keeps every establishment.
	JobSectors []string
}

// DefaultTrancheJobs is the midpoint of each INSEE workforce size band.
func DefaultTrancheJobs() map[string]float64 {
	return map[string]float64{
		"00": 0,
		"01": 1.5,
		"02": 4,
		"03": 8,
		"11": 15,
		"12": 35,
		"21": 75,
		"22": 150,
		"31": 225,
		"32": 350,
		"41": 500,
		"42": 750,
		"51": 1000,
		"52": 1500,
		"53": 2000,
	}
}

// DefaultNAFFunctions groups NAF divisions into urban functions.
func DefaultNAFFunctions() map[string]string {
	return map[string]string{
		"45": "automobile",
		"46": "commerce_gros",
		"47": "commerce_detail",
		"55": "hebergement",
		"56": "restauration",
		"58": "edition",
		"59": "audiovisuel",
		"60": "radio_tv",
		"61": "telecom",
		"62": "informatique",
		"63": "services_info",
		"64": "banque",
		"65": "assurance",
		"66": "finance",
		"68": "immobilier",
		"69": "juridique",
		"70": "siege_social",
		"71": "architecture",
		"72": "recherche",
		"73": "publicite",
		"74": "design",
		"75": "veterinaire",
		"77": "location",
		"78": "interim",
		"79": "voyage",
		"80": "securite",
		"81": "services_generaux",
		"82": "divers_bureau",
		"85": "enseignement",
		"86": "sante",
		"87": "hebergement_sante",
		"88": "action_sociale",
		"90": "arts",
		"91": "associations",
		"92": "loisirs",
		"93": "sport",
		"94": "organisation",
		"95": "reparation_biens",
		"96": "autres_services",
	}
}

// DefaultTables returns the built-in tables with no POI weights.
func DefaultTables() Tables {
	return Tables{
		POIWeights:       map[string]float64{},
		TrancheJobs:      DefaultTrancheJobs(),
		NAFJobs:          map[string]float64{},
		NAFFunctions:     DefaultNAFFunctions(),
		CommercePrefixes: []string{"47"},
	}
}

// normalized returns a private copy with folded POI types and normalized NAF
// keys, so lookups are insensitive to case, accents and NAF punctuation.
func (t Tables) normalized() Tables {
	out := Tables{
		POIWeights:   make(map[string]float64, len(t.POIWeights)),
		TrancheJobs:  make(map[string]float64, len(t.TrancheJobs)),
		NAFJobs:      make(map[string]float64, len(t.NAFJobs)),
		NAFFunctions: make(map[string]string, len(t.NAFFunctions)),
	}
	for k, v := range t.POIWeights {
		out.POIWeights[layer.Fold(k)] = v
	}
	for k, v := range t.TrancheJobs {
		out.TrancheJobs[strings.TrimSpace(k)] = v
	}
	for k, v := range t.NAFJobs {
		out.NAFJobs[NAFDivision(k)] = v
	}
	for k, v := range t.NAFFunctions {
		out.NAFFunctions[NAFDivision(k)] = layer.Fold(v)
	}
	for _, p := range t.CommercePrefixes {
		out.CommercePrefixes = append(out.CommercePrefixes, NormalizeNAF(p))
	}
	for _, p := range t.JobSectors {
		out.JobSectors = append(out.JobSectors, NormalizeNAF(p))
	}
	return out
}

// NormalizeNAF strips punctuation and spaces from a NAF code and upper-cases
// it: "47.11F" and "4711f" both become "4711F".
func NormalizeNAF(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(code) {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NAFDivision returns the two-digit division of a NAF code, or "" when the code
// is too short.
func NAFDivision(code string) string {
	n := NormalizeNAF(code)
	if len(n) < 2 {
		return ""
	}
	return n[:2]
}

func hasAnyPrefix(code string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

// jobs estimates the workforce of one establishment: the size band average,
// else the NAF division fallback, else 0.
func (t Tables) jobs(naf, tranche string) float64 {
	if v, ok := t.TrancheJobs[strings.TrimSpace(tranche)]; ok {
		return v
	}
	return t.NAFJobs[NAFDivision(naf)]
}

// function returns the urban function of a NAF code.
func (t Tables) function(naf string) string {
	if f, ok := t.NAFFunctions[NAFDivision(naf)]; ok {
		return f
	}
	return OtherFunction
}

// DeriveNAFJobs computes the mean size band average per NAF division over the
// establishments whose band is known. It is the fallback table used when no
// NAF jobs file is configured.
func DeriveNAFJobs(l *layer.Layer, tranche map[string]float64) map[string]float64 {
	sum := make(map[string]float64)
	count := make(map[string]int)
	if l != nil {
		for _, f := range l.Features {
			v, ok := tranche[strings.TrimSpace(f.Attrs.String("tranche"))]
			if !ok {
				continue
			}
			div := NAFDivision(f.Attrs.String("naf"))
			if div == "" {
				continue
			}
			sum[div] += v
			count[div]++
		}
	}

	out := make(map[string]float64, len(sum))
	for d, s := range sum {
		out[d] = s / float64(count[d])
	}
	return out
}
