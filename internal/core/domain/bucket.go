package domain

import (
	"fmt"
	"math"
)

// ColorBucket is a discrete travel-time class. Bucket1 is the shortest;
// BucketNone is the open-ended class for durations past every threshold
// and for units that no longer belong to the current result.
type ColorBucket int

const (
	Bucket1 ColorBucket = iota + 1
	Bucket2
	Bucket3
	Bucket4
	Bucket5
	Bucket6
	BucketNone
)

// BucketCount is the number of bounded buckets.
const BucketCount = 6

func (b ColorBucket) String() string {
	if b >= Bucket1 && b <= Bucket6 {
		return fmt.Sprintf("bucket%d", int(b))
	}
	return "none"
}

// ZoomBand groups zoom levels that share one threshold table.
type ZoomBand int

const (
	ZoomCoarse ZoomBand = iota
	ZoomMedium
	ZoomFine
)

// Zoom levels at which the band changes.
const (
	ZoomMediumFrom = 6.0
	ZoomFineFrom   = 8.0
)

// BandForZoom maps a continuous zoom level to its band.
func BandForZoom(zoom float64) ZoomBand {
	switch {
	case zoom < ZoomMediumFrom:
		return ZoomCoarse
	case zoom < ZoomFineFrom:
		return ZoomMedium
	default:
		return ZoomFine
	}
}

func (z ZoomBand) String() string {
	switch z {
	case ZoomCoarse:
		return "coarse"
	case ZoomMedium:
		return "medium"
	default:
		return "fine"
	}
}

// Thresholds are strictly increasing upper bounds in seconds, one per
// bounded bucket.
type Thresholds [BucketCount]float64

// Bucket returns the first bucket whose bound exceeds d.
func (t Thresholds) Bucket(d float64) ColorBucket {
	for i, bound := range t {
		if d < bound {
			return ColorBucket(i + 1)
		}
	}
	return BucketNone
}

// Validate checks that bounds are positive and strictly increasing.
func (t Thresholds) Validate() error {
	prev := 0.0
	for i, bound := range t {
		if bound <= prev {
			return fmt.Errorf("threshold %d (%v) must exceed %v", i, bound, prev)
		}
		prev = bound
	}
	return nil
}

// BandScale is the threshold table and legend for one zoom band.
type BandScale struct {
	Thresholds Thresholds          `json:"thresholds"`
	Labels     [BucketCount]string `json:"labels"`
}

// ThresholdTable holds the scales of every zoom band.
type ThresholdTable [3]BandScale

// Scale returns the scale for a zoom level.
func (t ThresholdTable) Scale(zoom float64) BandScale {
	return t[BandForZoom(zoom)]
}

// Bucket classifies a duration at the given zoom level.
func (t ThresholdTable) Bucket(duration, zoom float64) ColorBucket {
	return t[BandForZoom(zoom)].Thresholds.Bucket(duration)
}

// Validate checks every band.
func (t ThresholdTable) Validate() error {
	for band, s := range t {
		if err := s.Thresholds.Validate(); err != nil {
			return fmt.Errorf("%s band: %w", ZoomBand(band), err)
		}
	}
	return nil
}

// DefaultThresholds is used for every mode unless configured otherwise.
var DefaultThresholds = ThresholdTable{
	ZoomCoarse: {
		Thresholds: Thresholds{3600, 7200, 10800, 14400, 21600, 28800},
		Labels:     [BucketCount]string{"< 1 hr", "1-2 hrs", "2-3 hrs", "3-4 hrs", "4-6 hrs", "6-8 hrs"},
	},
	ZoomMedium: {
		Thresholds: Thresholds{1800, 3600, 5400, 7200, 10800, 14400},
		Labels:     [BucketCount]string{"< 30 min", "30-60 min", "1.0-1.5 hrs", "1.5-2.0 hrs", "2.0-3.0 hrs", "3.0-4.0 hrs"},
	},
	ZoomFine: {
		Thresholds: Thresholds{900, 1800, 2700, 3600, 5400, 7200},
		Labels:     [BucketCount]string{"< 15 min", "15-30 min", "30-45 min", "45-60 min", "60-90 min", "90-120 min"},
	},
}

// ModeThresholds maps each mode to its table. Modes without an entry use
// DefaultThresholds.
type ModeThresholds map[Mode]ThresholdTable

// For returns the table for mode.
func (m ModeThresholds) For(mode Mode) ThresholdTable {
	if t, ok := m[mode]; ok {
		return t
	}
	return DefaultThresholds
}

// LabelsFor derives legend labels from bounds. Spans ending at or below
// two hours are shown in minutes, longer ones in hours.
func LabelsFor(t Thresholds) [BucketCount]string {
	var out [BucketCount]string
	prev := 0.0
	for i, bound := range t {
		if i == 0 {
			out[i] = "< " + formatBound(bound)
		} else {
			out[i] = formatSpan(prev, bound)
		}
		prev = bound
	}
	return out
}

func formatBound(sec float64) string {
	if sec >= 3600 && math.Mod(sec, 3600) == 0 {
		h := int(sec / 3600)
		if h == 1 {
			return "1 hr"
		}
		return fmt.Sprintf("%d hrs", h)
	}
	return fmt.Sprintf("%d min", int(math.Round(sec/60)))
}

func formatSpan(lo, hi float64) string {
	if hi <= 7200 {
		return fmt.Sprintf("%d-%d min", int(math.Round(lo/60)), int(math.Round(hi/60)))
	}
	if math.Mod(lo, 3600) == 0 && math.Mod(hi, 3600) == 0 {
		return fmt.Sprintf("%d-%d hrs", int(lo/3600), int(hi/3600))
	}
	return fmt.Sprintf("%.1f-%.1f hrs", lo/3600, hi/3600)
}
