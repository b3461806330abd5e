package domain

import (
	"fmt"
	"net/url"
	"strconv"
)

// Mode is a travel mode with its own precomputed dataset partition.
type Mode string

const (
	ModeCar     Mode = "car"
	ModeBicycle Mode = "bicycle"
	ModeFoot    Mode = "foot"
)

// Modes lists every supported travel mode.
var Modes = []Mode{ModeCar, ModeBicycle, ModeFoot}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", &ValidationError{Field: "mode", Value: s, Reason: "unknown mode"}
}

// QuerySelection is the user's current choice of what to show. It is an
// immutable value: the With* methods return modified copies.
type QuerySelection struct {
	Mode      Mode      `json:"mode"`
	Year      int       `json:"year"`
	Geography Geography `json:"geography"`
	ID        string    `json:"id,omitempty"`
}

func (s QuerySelection) WithMode(m Mode) QuerySelection {
	s.Mode = m
	return s
}

func (s QuerySelection) WithYear(y int) QuerySelection {
	s.Year = y
	return s
}

func (s QuerySelection) WithID(id string) QuerySelection {
	s.ID = id
	return s
}

// WithGeography switches level. A selected unit is narrowed to its
// ancestor when moving to a coarser level and dropped otherwise.
func (s QuerySelection) WithGeography(g Geography) QuerySelection {
	if s.ID != "" && g != s.Geography {
		s.ID = narrowID(s.Geography, s.ID, g)
	}
	s.Geography = g
	return s
}

func narrowID(from Geography, id string, to Geography) string {
	unit, err := NewGeoUnit(from, id)
	if err != nil {
		return ""
	}
	anc, ok := unit.Ancestor(to)
	if !ok {
		return ""
	}
	return anc.ID
}

// HasID reports whether a unit is selected.
func (s QuerySelection) HasID() bool { return s.ID != "" }

// Unit returns the selected unit after validating its id.
func (s QuerySelection) Unit() (GeoUnit, error) {
	return NewGeoUnit(s.Geography, s.ID)
}

// Validate checks mode, geography, and id.
func (s QuerySelection) Validate() error {
	if _, err := ParseMode(string(s.Mode)); err != nil {
		return err
	}
	if !s.Geography.Valid() {
		return &ValidationError{Field: "geography", Value: string(s.Geography), Reason: "unknown geography"}
	}
	if s.Year <= 0 {
		return &ValidationError{Field: "year", Value: strconv.Itoa(s.Year), Reason: "year must be positive"}
	}
	return s.Geography.ValidateID(s.ID)
}

// CacheKey identifies the selection for result caching.
func (s QuerySelection) CacheKey(version string) string {
	return fmt.Sprintf("times:%s:%s:%d:%s:%s", version, s.Mode, s.Year, s.Geography, s.ID)
}

// Values encodes the selection as query-string parameters.
func (s QuerySelection) Values() url.Values {
	v := url.Values{}
	v.Set("mode", string(s.Mode))
	v.Set("geography", string(s.Geography))
	v.Set("year", strconv.Itoa(s.Year))
	if s.ID != "" {
		v.Set("id", s.ID)
	}
	return v
}
