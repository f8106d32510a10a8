package logic

import "gonum.org/v1/gonum/stat"

// Average reduces one burst of readings to a single window distance.
// Returns NoEcho for an empty burst, and under SentinelDrop when every
// reading is NoEcho.
func Average(readings []float64, policy SentinelPolicy) float64 {
	if policy == SentinelDrop {
		valid := make([]float64, 0, len(readings))
		for _, r := range readings {
			if r != NoEcho {
				valid = append(valid, r)
			}
		}
		readings = valid
	}
	if len(readings) == 0 {
		return NoEcho
	}
	return stat.Mean(readings, nil)
}
