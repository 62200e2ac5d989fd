package retrieval

import "fmt"

// Band labels, ordered best to worst.
const (
	BandExcellent  = "excellent"
	BandGood       = "good"
	BandAcceptable = "acceptable"
	BandPoor       = "poor"
)

// Calibration maps a distance to an advisory quality band. The cutoffs are
// configuration, not constants: two calibrations have been observed for the
// same embedding model (0.8/1.0/1.2 and 0.5/0.7/0.9), apparently from
// measurement drift, so neither is authoritative. Bands are presentation
// tiers only and never drop data — that is what an explicit threshold is for.
type Calibration struct {
	// Excellent is the upper distance bound of the "excellent" band.
	Excellent float64
	// Good is the upper distance bound of the "good" band.
	Good float64
	// Acceptable is the upper distance bound of the "acceptable" band.
	Acceptable float64
}

// DefaultCalibration is the wider of the two observed calibrations.
var DefaultCalibration = Calibration{Excellent: 0.8, Good: 1.0, Acceptable: 1.2}

// Validate checks that the cutoffs ascend.
func (c Calibration) Validate() error {
	if !(c.Excellent > 0 && c.Excellent < c.Good && c.Good < c.Acceptable) {
		return fmt.Errorf("retrieval: calibration cutoffs must ascend: excellent=%v good=%v acceptable=%v",
			c.Excellent, c.Good, c.Acceptable)
	}
	return nil
}

// Band returns the label for one distance.
func (c Calibration) Band(distance float64) string {
	switch {
	case distance < c.Excellent:
		return BandExcellent
	case distance < c.Good:
		return BandGood
	case distance < c.Acceptable:
		return BandAcceptable
	default:
		return BandPoor
	}
}
