package domain

import "fmt"

// Geography is a census geography level. Units of every level are
// identified by fixed-length numeric strings whose first two digits
// are the state FIPS code.
type Geography string

const (
	GeographyState             Geography = "state"
	GeographyCounty            Geography = "county"
	GeographyCountySubdivision Geography = "county_subdivision"
	GeographyTract             Geography = "tract"
	GeographyBlockGroup        Geography = "block_group"
)

// Geographies lists the supported levels from coarsest to finest.
var Geographies = []Geography{
	GeographyState,
	GeographyCounty,
	GeographyCountySubdivision,
	GeographyTract,
	GeographyBlockGroup,
}

var geographyIDLength = map[Geography]int{
	GeographyState:             2,
	GeographyCounty:            5,
	GeographyCountySubdivision: 10,
	GeographyTract:             11,
	GeographyBlockGroup:        12,
}

// ParseGeography validates a geography name.
func ParseGeography(s string) (Geography, error) {
	g := Geography(s)
	if _, ok := geographyIDLength[g]; !ok {
		return "", &ValidationError{Field: "geography", Value: s, Reason: "unknown geography"}
	}
	return g, nil
}

// IDLength returns the number of digits in an identifier of this level.
func (g Geography) IDLength() int {
	return geographyIDLength[g]
}

// Valid reports whether g is a known geography.
func (g Geography) Valid() bool {
	_, ok := geographyIDLength[g]
	return ok
}

// Coarser reports whether g has shorter identifiers than other.
func (g Geography) Coarser(other Geography) bool {
	return g.IDLength() < other.IDLength()
}

// ValidateID checks that id is exactly IDLength ASCII digits.
func (g Geography) ValidateID(id string) error {
	n, ok := geographyIDLength[g]
	if !ok {
		return &ValidationError{Field: "geography", Value: string(g), Reason: "unknown geography"}
	}
	if len(id) != n || !isDigits(id) {
		return &ValidationError{
			Field:  "id",
			Value:  id,
			Reason: fmt.Sprintf("%s id must be %d digits", g, n),
		}
	}
	return nil
}

// GeoUnit is a single polygon of a geography, identified by its GEOID.
type GeoUnit struct {
	ID        string    `json:"id"`
	Geography Geography `json:"geography"`
}

// NewGeoUnit validates id against geography.
func NewGeoUnit(geography Geography, id string) (GeoUnit, error) {
	if err := geography.ValidateID(id); err != nil {
		return GeoUnit{}, err
	}
	return GeoUnit{ID: id, Geography: geography}, nil
}

// State returns the two-digit region key used to partition the dataset.
func (u GeoUnit) State() string {
	return u.ID[:2]
}

// Ancestor returns the enclosing unit at geography g, or false when units
// of u's geography do not nest inside g by id prefix.
func (u GeoUnit) Ancestor(g Geography) (GeoUnit, bool) {
	if g == u.Geography {
		return u, true
	}
	if !nestsIn(u.Geography, g) {
		return GeoUnit{}, false
	}
	return GeoUnit{ID: u.ID[:g.IDLength()], Geography: g}, true
}

// nestsIn reports whether every unit of child lies inside the parent unit
// named by its id prefix. County subdivisions and tracts partition a
// county independently, so neither nests in the other.
func nestsIn(child, parent Geography) bool {
	switch parent {
	case GeographyState, GeographyCounty:
		return child.Valid() && parent.Coarser(child)
	case GeographyTract:
		return child == GeographyBlockGroup
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
