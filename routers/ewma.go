package routers

// latencyAlpha is the weight given to a new latency sample.
const latencyAlpha = 0.1

// ewma folds sample into prev. Until the average is seeded the sample is
// taken as-is, so a first sample of 0 is kept like any other.
func ewma(prev, sample float64, seeded bool) float64 {
	if !seeded {
		return sample
	}
	return (1-latencyAlpha)*prev + latencyAlpha*sample
}
