package domain_test

import (
	"testing"

	"github.com/samirrijal/traveltime/internal/core/domain"
)

func TestGeography_ValidateID(t *testing.T) {
	tests := []struct {
		geography domain.Geography
		id        string
		ok        bool
	}{
		{domain.GeographyCounty, "06037", true},
		{domain.GeographyTract, "06037", false},
		{domain.GeographyTract, "0603700010", false},
		{domain.GeographyCountySubdivision, "0603700010", true},
		{domain.GeographyTract, "06037000100", true},
		{domain.GeographyTract, "0603700010x", false},
		{domain.GeographyBlockGroup, "060370001001", true},
		{domain.GeographyState, "6", false},
		{domain.GeographyState, "", false},
		{domain.Geography("zip"), "12345", false},
	}
	for _, tt := range tests {
		err := tt.geography.ValidateID(tt.id)
		if tt.ok && err != nil {
			t.Errorf("%s %q: unexpected error %v", tt.geography, tt.id, err)
		}
		if !tt.ok && !domain.IsValidation(err) {
			t.Errorf("%s %q: expected validation error, got %v", tt.geography, tt.id, err)
		}
	}
}

func TestGeoUnit_Ancestor(t *testing.T) {
	bg, err := domain.NewGeoUnit(domain.GeographyBlockGroup, "060370001001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bg.State() != "06" {
		t.Errorf("expected state 06, got %s", bg.State())
	}

	for g, want := range map[domain.Geography]string{
		domain.GeographyState:      "06",
		domain.GeographyCounty:     "06037",
		domain.GeographyTract:      "06037000100",
		domain.GeographyBlockGroup: "060370001001",
	} {
		anc, ok := bg.Ancestor(g)
		if !ok || anc.ID != want {
			t.Errorf("%s: expected %s, got %s (%v)", g, want, anc.ID, ok)
		}
	}

	if _, ok := bg.Ancestor(domain.GeographyCountySubdivision); ok {
		t.Error("block groups do not nest in county subdivisions")
	}
	county, _ := domain.NewGeoUnit(domain.GeographyCounty, "06037")
	if _, ok := county.Ancestor(domain.GeographyTract); ok {
		t.Error("a finer geography is never an ancestor")
	}
}

func TestQuerySelection_WithGeography(t *testing.T) {
	sel := domain.QuerySelection{Mode: domain.ModeCar, Year: 2020, Geography: domain.GeographyTract, ID: "06037000100"}

	coarser := sel.WithGeography(domain.GeographyCounty)
	if coarser.ID != "06037" || coarser.Geography != domain.GeographyCounty {
		t.Errorf("unexpected %+v", coarser)
	}
	if sel.ID != "06037000100" {
		t.Error("WithGeography must not modify the receiver")
	}
	if finer := coarser.WithGeography(domain.GeographyBlockGroup); finer.HasID() {
		t.Errorf("expected id dropped, got %q", finer.ID)
	}
	if cousub := sel.WithGeography(domain.GeographyCountySubdivision); cousub.HasID() {
		t.Errorf("expected id dropped, got %q", cousub.ID)
	}
	if err := coarser.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDataset_FileURL(t *testing.T) {
	d := domain.Dataset{TimesBaseURL: "https://data.example/times/", TilesBaseURL: "https://data.example/tiles", Version: "0.0.1"}

	got := d.FileURL(domain.ModeFoot, 2022, domain.GeographyCounty, "17", 1)
	want := "https://data.example/times/mode=foot/year=2022/geography=county/state=17/times-0.0.1-foot-2022-county-17-1.parquet"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}

	got = d.PartitionIndexURL(2022, domain.GeographyCounty)
	want = "https://data.example/tiles/year=2022/geography=county/tiles-0.0.1-2022-county.json"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}
