package extract

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Field names a Place field filled from a detail page.
type Field string

const (
	FieldName           Field = "name"
	FieldAddress        Field = "address"
	FieldWebsite        Field = "website"
	FieldPhoneNumber    Field = "phone_number"
	FieldPlaceType      Field = "place_type"
	FieldOpensAt        Field = "opens_at"
	FieldReviewsCount   Field = "reviews_count"
	FieldReviewsAverage Field = "reviews_average"
	FieldIntroduction   Field = "introduction"
)

// Fields lists every extracted field in assembly order.
var Fields = []Field{
	FieldName,
	FieldAddress,
	FieldWebsite,
	FieldPhoneNumber,
	FieldPlaceType,
	FieldOpensAt,
	FieldReviewsCount,
	FieldReviewsAverage,
	FieldIntroduction,
}

// Lookup configures one strategy: the text of the first node matching
// Selector, or its Attr attribute when Attr is set.
type Lookup struct {
	Selector string `yaml:"selector"`
	Attr     string `yaml:"attr,omitempty"`
}

// Selectors holds the readiness selector and the ordered lookups per field.
type Selectors struct {
	Ready  string             `yaml:"ready"`
	Fields map[Field][]Lookup `yaml:"fields"`
}

// DefaultSelectors returns the lookups for the current maps detail layout.
func DefaultSelectors() Selectors {
	return Selectors{
		Ready: "h1",
		Fields: map[Field][]Lookup{
			FieldName: {
				{Selector: "h1"},
				{Selector: "h1.DUwDvf"},
			},
			FieldAddress: {
				{Selector: `button[data-item-id="address"] div`},
				{Selector: `button[data-item-id="address"]`},
			},
			FieldWebsite: {
				{Selector: `a[data-item-id="authority"] div`},
				{Selector: `a[data-item-id="authority"]`, Attr: "href"},
			},
			FieldPhoneNumber: {
				{Selector: `button[data-item-id*="phone"] div`},
				{Selector: `button[data-item-id*="phone"]`},
			},
			FieldPlaceType: {
				{Selector: "button.DkEaL"},
				{Selector: "button.fontBodyMedium"},
			},
			FieldOpensAt: {
				{Selector: `button[data-item-id*="oh"] div`},
			},
			FieldReviewsCount: {
				{Selector: `span[aria-label*="review"]`},
			},
			FieldReviewsAverage: {
				{Selector: `div[jsaction="pane.rating.more"] span[aria-hidden="true"]`},
			},
			FieldIntroduction: {
				{Selector: "div.PYvSYb"},
			},
		},
	}
}

// LoadSelectors reads a YAML override file on top of DefaultSelectors. A
// field listed in the file replaces the default chain for that field.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors()
	if path == "" {
		return sel, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return sel, eris.Wrap(err, "extract: read selectors")
	}

	var override Selectors
	if err := yaml.Unmarshal(data, &override); err != nil {
		return sel, eris.Wrap(err, "extract: parse selectors")
	}

	if override.Ready != "" {
		sel.Ready = override.Ready
	}
	for field, lookups := range override.Fields {
		if _, ok := sel.Fields[field]; !ok {
			return sel, eris.Errorf("extract: unknown field %q", field)
		}
		for _, l := range lookups {
			if l.Selector == "" {
				return sel, eris.Errorf("extract: empty selector for field %q", field)
			}
		}
		sel.Fields[field] = lookups
	}
	return sel, nil
}
