package quality

import (
	"errors"
	"fmt"
)

// Suspect is the score reported for anomalous frames.
const Suspect = -1

// Score bands.
const (
	mediumFloor = 50
	goodFloor   = 75
)

// Points and saturation points of the two heuristics.
const (
	maxDarkPoints     = 40
	darkSaturationPct = 15

	maxContrastPoints     = 60
	contrastSaturationPct = 30

	maxScore = 100
)

// ErrFrameSize is returned when a frame does not match the stated dimensions.
var ErrFrameSize = errors.New("quality: frame size does not match dimensions")

// Params tunes presence detection and the suspect rule.
type Params struct {
	// DarkThreshold is the exclusive upper bound of a "dark" pixel value.
	DarkThreshold byte

	// MinDarkPixels is the absolute floor of the presence threshold.
	MinDarkPixels int

	// MinDarkPct scales the presence threshold with the frame area.
	// The effective threshold is the larger of the two.
	MinDarkPct float64

	// SuspectDarkPct and SuspectMaxContrastPct define an anomalous frame:
	// at least SuspectDarkPct dark and below SuspectMaxContrastPct contrast.
	SuspectDarkPct        int
	SuspectMaxContrastPct int
}

// DefaultParams returns the parameters tuned for ZK-family sensors.
func DefaultParams() Params {
	return Params{
		DarkThreshold:         128,
		MinDarkPixels:         1000,
		MinDarkPct:            1.0,
		SuspectDarkPct:        90,
		SuspectMaxContrastPct: 2,
	}
}

// Verdict is the outcome of evaluating one frame.
type Verdict struct {
	// Score is 0-100, or Suspect. Zero when no finger is present.
	Score int `json:"score"`

	// Present reports whether a finger was judged to be on the sensor.
	Present bool `json:"present"`

	DarkPixels  int `json:"dark_pixels"`
	DarkPct     int `json:"dark_pct"`
	ContrastPct int `json:"contrast_pct"`
}

// IsSuspect reports whether the frame was judged anomalous.
func (v Verdict) IsSuspect() bool {
	return v.Score == Suspect
}

// Band returns the display band for the verdict.
func (v Verdict) Band() Band {
	return BandFor(v.Score)
}

// Label returns the human-readable status for the verdict.
func (v Verdict) Label() string {
	return v.Band().Label()
}

// Scorer evaluates frames with a fixed set of parameters.
type Scorer struct {
	params Params
}

// NewScorer creates a Scorer. A zero DarkThreshold falls back to 128.
func NewScorer(params Params) *Scorer {
	if params.DarkThreshold == 0 {
		params.DarkThreshold = DefaultParams().DarkThreshold
	}
	return &Scorer{params: params}
}

// Params returns the scorer's parameters.
func (s *Scorer) Params() Params {
	return s.params
}

// PresenceThreshold returns the dark-pixel count a frame of totalPixels
// must exceed for a finger to be present.
func (s *Scorer) PresenceThreshold(totalPixels int) int {
	threshold := s.params.MinDarkPixels
	if s.params.MinDarkPct > 0 {
		scaled := int(s.params.MinDarkPct * float64(totalPixels) / 100)
		if scaled > threshold {
			threshold = scaled
		}
	}
	return threshold
}

// Present reports whether frame holds more dark pixels than the presence
// threshold. Counting stops as soon as the threshold is exceeded.
func (s *Scorer) Present(frame []byte) bool {
	threshold := s.PresenceThreshold(len(frame))
	dark := 0
	for _, px := range frame {
		if px < s.params.DarkThreshold {
			dark++
			if dark > threshold {
				return true
			}
		}
	}
	return false
}

// Evaluate checks presence and, when a finger is present, scores the frame.
func (s *Scorer) Evaluate(frame []byte, width, height int) (Verdict, error) {
	if width <= 0 || height <= 0 || len(frame) != width*height {
		return Verdict{}, fmt.Errorf("%w: %d bytes for %dx%d", ErrFrameSize, len(frame), width, height)
	}

	if !s.Present(frame) {
		return Verdict{}, nil
	}

	total := len(frame)
	dark := 0
	var contrast int64
	for i, px := range frame {
		if px < s.params.DarkThreshold {
			dark++
		}
		if i+1 < total {
			contrast += absDiff(px, frame[i+1])
		}
	}

	darkPct := 100 * dark / total
	contrastPct := int(100 * contrast / (int64(total) * 255))

	v := Verdict{
		Present:     true,
		DarkPixels:  dark,
		DarkPct:     darkPct,
		ContrastPct: contrastPct,
	}
	if darkPct >= s.params.SuspectDarkPct && contrastPct < s.params.SuspectMaxContrastPct {
		v.Score = Suspect
		return v, nil
	}
	// DarkPct and ContrastPct are truncated for display; the score uses the
	// exact ratios.
	v.Score = scoreRatios(int64(dark), int64(total), contrast, int64(total)*255)
	return v, nil
}

// Score combines darkness coverage and normalised contrast, both whole
// percentages, into a 0-100 score. It is non-decreasing in both arguments.
func Score(darkPct, contrastPct int) int {
	return scoreRatios(int64(max(0, darkPct)), 100, int64(max(0, contrastPct)), 100)
}

// scoreRatios scores dark/darkOf and contrast/contrastOf. Only the final
// points are truncated.
func scoreRatios(dark, darkOf, contrast, contrastOf int64) int {
	darkPoints := points(dark, darkOf, maxDarkPoints, darkSaturationPct)
	contrastPoints := points(contrast, contrastOf, maxContrastPoints, contrastSaturationPct)
	return min(maxScore, darkPoints+contrastPoints)
}

// points scales the percentage 100*num/den linearly so that saturationPct
// earns maxPoints, capped at maxPoints.
func points(num, den int64, maxPoints, saturationPct int) int {
	if num <= 0 || den <= 0 {
		return 0
	}
	p := num * 100 * int64(maxPoints) / (den * int64(saturationPct))
	return int(min(p, int64(maxPoints)))
}

func absDiff(a, b byte) int64 {
	if a > b {
		return int64(a - b)
	}
	return int64(b - a)
}
