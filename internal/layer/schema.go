package layer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Key declares one attribute of a layer kind.
type Key struct {
	Name     string
	Type     ValueType
	Required bool
}

// Schema is the declared attribute key set of a layer kind.
type Schema []Key

// CensusBands are the census age bands in INSEE gridded census column order.
var CensusBands = []string{
	"ind_0_3", "ind_4_5", "ind_6_10", "ind_11_17", "ind_18_24",
	"ind_25_39", "ind_40_54", "ind_55_64", "ind_65_79", "ind_80p",
}

var schemas = map[Kind]Schema{
	KindBuildings: {{Name: "height", Type: TypeNumber}},
	KindStreets:   {{Name: "width", Type: TypeNumber}},
	KindPOI: {
		{Name: "type", Type: TypeText, Required: true},
		{Name: "tag", Type: TypeText},
	},
	KindEstablishments: {
		{Name: "naf", Type: TypeText, Required: true},
		{Name: "tranche", Type: TypeText},
	},
	KindCensus:  censusSchema(),
	KindSectors: {{Name: "uid", Type: TypeText, Required: true}},
}

func censusSchema() Schema {
	s := Schema{{Name: "ind", Type: TypeNumber, Required: true}}
	for _, b := range CensusBands {
		s = append(s, Key{Name: b, Type: TypeNumber})
	}
	return s
}

// SchemaFor returns the declared attribute keys of kind. Unknown kinds have
// no declared keys.
func SchemaFor(kind Kind) Schema {
	return schemas[kind]
}

// Check verifies that f carries every required key and that numeric keys
// parse. Undeclared keys are ignored.
func (s Schema) Check(kind Kind, f *Feature) error {
	for _, k := range s {
		v, ok := f.Attrs[k.Name]
		if !ok || v.Type == TypeMissing {
			if k.Required {
				return &AttributeError{Kind: kind, Feature: f.Index, Key: k.Name, Want: k.Type, Got: ""}
			}
			continue
		}
		if k.Type == TypeNumber && v.Type == TypeText {
			if _, err := parseNumber(v.Text); err != nil {
				return &AttributeError{Kind: kind, Feature: f.Index, Key: k.Name, Want: k.Type, Got: v.Text}
			}
		}
	}
	return nil
}

// Fold normalizes a category key: trimmed, lower case, accents stripped.
// "Siège " and "siege" fold to the same key.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}
