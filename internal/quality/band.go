package quality

// Band is a display classification of a score.
type Band int

// Bands from worst to best. BandSuspect is kept apart from BandPoor.
const (
	BandSuspect Band = iota
	BandPoor
	BandMedium
	BandGood
)

// BandFor classifies a score.
func BandFor(score int) Band {
	switch {
	case score == Suspect:
		return BandSuspect
	case score < mediumFloor:
		return BandPoor
	case score < goodFloor:
		return BandMedium
	default:
		return BandGood
	}
}

// String returns the short band name used in logs and payloads.
func (b Band) String() string {
	switch b {
	case BandSuspect:
		return "suspect"
	case BandPoor:
		return "poor"
	case BandMedium:
		return "medium"
	case BandGood:
		return "good"
	default:
		return "unknown"
	}
}

// Label returns the operator-facing status string.
func (b Band) Label() string {
	switch b {
	case BandSuspect:
		return "Suspicious fingerprint detected"
	case BandPoor:
		return "Poor quality"
	case BandMedium:
		return "Medium quality"
	case BandGood:
		return "Good quality"
	default:
		return "Unknown quality"
	}
}
