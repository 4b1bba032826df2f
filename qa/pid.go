package qa

import "sort"

// PID detectors encoded in the bit-packed PID summary.
const (
	DetectorTPC    = 0 // TPC only, below the momentum threshold
	DetectorTPCTOF = 1 // combined TPC+TOF, above the threshold
	nDetectors     = 2
)

// pidBit returns the bit position for a (threshold, detector,
// species) triple. The producer packs bits from the most selective
// threshold down: for threshold index i (thresholds sorted
// descending), detector d and species s out of nSpecies, the bit is
//
//	((len(thresholds)-1-i)*nDetectors + (nDetectors-1-d))*nSpecies + (nSpecies-1-s)
func pidBit(thresholdIdx, nThresholds, detector, speciesIdx, nSpecies int) uint {
	return uint(((nThresholds-1-thresholdIdx)*nDetectors+(nDetectors-1-detector))*nSpecies +
		(nSpecies - 1 - speciesIdx))
}

// pidThresholdIndex locates nSigmaMax among the configured
// thresholds, which are compared after sorting in descending order.
// An unknown value falls back to index 1, matching the producer's
// behavior for misconfigured cutoffs.
func pidThresholdIndex(nSigmaMax float64, thresholds []float64) int {
	sorted := make([]float64, len(thresholds))
	copy(sorted, thresholds)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	for i, v := range sorted {
		if v == nSigmaMax {
			return i
		}
	}
	if len(sorted) > 1 {
		return 1
	}
	return 0
}

// PIDSelected reports whether the bit-packed PID summary accepts the
// species at the given n-sigma cutoff for one detector.
func PIDSelected(pidCut uint32, speciesIdx, nSpecies int, nSigmaMax float64, thresholds []float64, detector int) bool {
	if len(thresholds) == 0 || speciesIdx < 0 || speciesIdx >= nSpecies {
		return false
	}
	bit := uint32(1) << pidBit(pidThresholdIndex(nSigmaMax, thresholds), len(thresholds), detector, speciesIdx, nSpecies)
	return pidCut&bit == bit
}

// FullPIDSelected reports whether a particle passes the PID
// selection: TPC-only below the momentum threshold, combined TPC+TOF
// above it.
func FullPIDSelected(pidCut uint32, momentum, momentumThreshold float64, speciesIdx, nSpecies int, thresholds []float64, nSigmaMax float64) bool {
	detector := DetectorTPC
	if momentum >= momentumThreshold {
		detector = DetectorTPCTOF
	}
	return PIDSelected(pidCut, speciesIdx, nSpecies, nSigmaMax, thresholds, detector)
}
