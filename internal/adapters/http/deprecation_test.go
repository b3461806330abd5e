package http

import "testing"

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		path, pattern string
		want          bool
	}{
		{"/v1/tracts/06037000100/times", "/v1/tracts/:id/times", true},
		{"/v1/tracts/06037000100/times/", "/v1/tracts/:id/times", true},
		{"/v1/tracts/times", "/v1/tracts/:id/times", false},
		{"/v1/times/06037000100", "/v1/tracts/:id/times", false},
		{"/v1/catalog", "/v1/catalog", true},
		{"/v1/tracts//times", "/v1/tracts/:id/times", false},
	}
	for _, tt := range tests {
		if got := matchPattern(tt.path, tt.pattern); got != tt.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", tt.path, tt.pattern, got, tt.want)
		}
	}
}
