package entities

import (
	"encoding/json"
	"fmt"
	"slices"
)

// MetadataVersion is the current schema version of connection metadata.
const MetadataVersion = 1

// Attribute qualifies a connection (e.g. an adoptive parent, a known donor).
// The set is closed so that stored attributes always match the catalog.
type Attribute string

const (
	AttrBiological     Attribute = "biological"
	AttrAdoptive       Attribute = "adoptive"
	AttrStep           Attribute = "step"
	AttrFoster         Attribute = "foster"
	AttrLegal          Attribute = "legal"
	AttrKnownDonor     Attribute = "known_donor"
	AttrAnonymousDonor Attribute = "anonymous_donor"
	AttrOpenIDDonor    Attribute = "open_id_donor"
	AttrSurrogacy      Attribute = "surrogacy"
	AttrIVF            Attribute = "ivf"
	AttrEstranged      Attribute = "estranged"
	AttrFormer         Attribute = "former"
)

var knownAttributes = []Attribute{
	AttrBiological, AttrAdoptive, AttrStep, AttrFoster, AttrLegal,
	AttrKnownDonor, AttrAnonymousDonor, AttrOpenIDDonor,
	AttrSurrogacy, AttrIVF, AttrEstranged, AttrFormer,
}

// KnownAttributes returns the attribute catalog in display order.
func KnownAttributes() []Attribute {
	return slices.Clone(knownAttributes)
}

// IsValid reports whether a is in the attribute catalog.
func (a Attribute) IsValid() bool {
	return slices.Contains(knownAttributes, a)
}

// ParseAttribute converts a string to an Attribute.
func ParseAttribute(s string) (Attribute, error) {
	a := Attribute(s)
	if !a.IsValid() {
		return "", fmt.Errorf("unknown attribute %q", s)
	}
	return a, nil
}

// Metadata holds typed, versioned extra data for a connection.
type Metadata struct {
	Version    int         `json:"version"`
	Attributes []Attribute `json:"attributes"`
}

// NewMetadata builds current-version metadata from the given attributes.
func NewMetadata(attrs ...Attribute) Metadata {
	return Metadata{Version: MetadataVersion, Attributes: attrs}
}

// Has reports whether the metadata carries the attribute.
func (m Metadata) Has(a Attribute) bool {
	return slices.Contains(m.Attributes, a)
}

// Invalid returns the attributes that are not in the catalog.
func (m Metadata) Invalid() []Attribute {
	var bad []Attribute
	for _, a := range m.Attributes {
		if !a.IsValid() {
			bad = append(bad, a)
		}
	}
	return bad
}

// MarshalJSON always writes the current version and a non-null attribute list.
func (m Metadata) MarshalJSON() ([]byte, error) {
	attrs := m.Attributes
	if attrs == nil {
		attrs = []Attribute{}
	}
	return json.Marshal(struct {
		Version    int         `json:"version"`
		Attributes []Attribute `json:"attributes"`
	}{Version: MetadataVersion, Attributes: attrs})
}

// UnmarshalJSON accepts versioned metadata as well as the unversioned
// {"attributes": [...]} shape, upgrading the latter. Unknown attributes fail.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw struct {
		Version    int      `json:"version"`
		Attributes []string `json:"attributes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding metadata: %w", err)
	}
	if raw.Version > MetadataVersion {
		return fmt.Errorf("unsupported metadata version %d", raw.Version)
	}

	attrs := make([]Attribute, 0, len(raw.Attributes))
	for _, s := range raw.Attributes {
		a, err := ParseAttribute(s)
		if err != nil {
			return err
		}
		attrs = append(attrs, a)
	}

	m.Version = MetadataVersion
	m.Attributes = attrs
	return nil
}
