// Package record holds the business profile being collected by the
// guided intake flows.
package record

import "strings"

// Field tags a single logical attribute of the business profile. Responses
// in the audit log and panel edits both refer to fields by tag.
type Field string

const (
	FieldName         Field = "name"
	FieldEmail        Field = "email"
	FieldJurisdiction Field = "jurisdiction"
	FieldWebsite      Field = "website"
	FieldCategory     Field = "category"
	FieldServices     Field = "services"
	FieldMarket       Field = "market"
	FieldPointOfSale  Field = "point_of_sale"
	FieldCoppa        Field = "coppa"
)

// Label returns the human-readable name of a field, as shown on panel
// controls and edit menus.
func Label(f Field) string {
	switch f {
	case FieldName:
		return "Business Name"
	case FieldEmail:
		return "Business Email"
	case FieldJurisdiction:
		return "Jurisdiction"
	case FieldWebsite:
		return "Website URL"
	case FieldCategory:
		return "Industry"
	case FieldServices:
		return "Services"
	case FieldMarket:
		return "Market"
	case FieldPointOfSale:
		return "Point of Sale"
	case FieldCoppa:
		return "COPPA Compliance"
	}
	return string(f)
}

// Market describes where the business primarily operates.
type Market struct {
	Type     string `json:"type"`
	Location string `json:"location,omitempty"`
}

// Business is the single mutable profile per session. The dialogue engine
// and panel are its only writers; the document assembler only reads it.
type Business struct {
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	Jurisdiction    string   `json:"jurisdiction"`
	Website         string   `json:"website"`
	Categories      []string `json:"categories"`
	Services        []string `json:"services"`
	Market          Market   `json:"market"`
	PointOfSale     []string `json:"point_of_sale"`
	CoppaCompliance bool     `json:"coppa_compliance"`
}

// Seed returns the demo profile a new session starts from.
func Seed() Business {
	return Business{
		Name:         "Yngwie's Guitars",
		Email:        "info@yngwiesfrets.com",
		Jurisdiction: "Illinois",
		Website:      "yngwiesfrets.com",
		Categories:   []string{"Music Shop"},
		Services: []string{
			"Guitar repair",
			"Guitar setup",
			"Amp and pedal fix",
		},
		Market:          Market{Type: "local", Location: "Chicago, IL"},
		PointOfSale:     []string{"storefront", "mobile"},
		CoppaCompliance: false,
	}
}

// Get renders the current value of a field as display text. List fields are
// comma-joined; the market renders as "type (location)".
func (b *Business) Get(f Field) string {
	switch f {
	case FieldName:
		return b.Name
	case FieldEmail:
		return b.Email
	case FieldJurisdiction:
		return b.Jurisdiction
	case FieldWebsite:
		return b.Website
	case FieldCategory:
		return strings.Join(b.Categories, ", ")
	case FieldServices:
		return strings.Join(b.Services, ", ")
	case FieldMarket:
		if b.Market.Location == "" {
			return b.Market.Type
		}
		return b.Market.Type + " (" + b.Market.Location + ")"
	case FieldPointOfSale:
		return strings.Join(b.PointOfSale, ", ")
	case FieldCoppa:
		if b.CoppaCompliance {
			return "Yes"
		}
		return "No"
	default:
		return ""
	}
}

// Set writes a field from free text, splitting list fields on commas or
// newlines. Field values arrive either typed in chat or through the panel.
func (b *Business) Set(f Field, value string) {
	value = strings.TrimSpace(value)
	switch f {
	case FieldName:
		b.Name = value
	case FieldEmail:
		b.Email = value
	case FieldJurisdiction:
		b.Jurisdiction = value
	case FieldWebsite:
		b.Website = value
	case FieldCategory:
		b.Categories = splitList(value)
	case FieldServices:
		b.Services = splitList(value)
	case FieldMarket:
		b.setMarket(value)
	case FieldPointOfSale:
		b.PointOfSale = splitList(value)
	case FieldCoppa:
		b.CoppaCompliance = TruthyAnswer(value)
	}
}

func (b *Business) setMarket(value string) {
	// Accepts the rendered "type (location)" form so a value read with Get
	// can be written back unchanged.
	if open := strings.Index(value, " ("); open > 0 && strings.HasSuffix(value, ")") && isMarketType(value[:open]) {
		b.Market = Market{
			Type:     strings.ToLower(value[:open]),
			Location: value[open+2 : len(value)-1],
		}
		return
	}

	// "local, Chicago, IL" keeps the first token as the market type; a bare
	// place name keeps the current type and replaces the location.
	parts := splitList(value)
	switch {
	case len(parts) == 0:
		b.Market = Market{}
	case isMarketType(parts[0]):
		b.Market.Type = strings.ToLower(parts[0])
		b.Market.Location = strings.Join(parts[1:], ", ")
	default:
		if b.Market.Type == "" {
			b.Market.Type = "local"
		}
		b.Market.Location = strings.Join(parts, ", ")
	}
}

func isMarketType(s string) bool {
	switch strings.ToLower(s) {
	case "local", "regional", "national", "online", "global":
		return true
	}
	return false
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';' || r == '•'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// TruthyAnswer reports whether a free-text answer reads as an affirmative.
func TruthyAnswer(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "yeah", "yep", "correct", "true", "1":
		return true
	}
	return false
}
