package voice

import "math"

// DefaultConfidence is used when a backend reports nothing to derive one from.
const DefaultConfidence = 0.5

// ClampConfidence bounds c to [0, 1]. NaN becomes DefaultConfidence.
func ClampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c):
		return DefaultConfidence
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

// ConfidenceFromLogProbs maps mean segment log-probability to a confidence:
// 1 + mean(avg_logprob), clamped.
func ConfidenceFromLogProbs(logprobs []float64) float64 {
	if len(logprobs) == 0 {
		return DefaultConfidence
	}
	sum := 0.0
	for _, lp := range logprobs {
		sum += lp
	}
	return ClampConfidence(1 + sum/float64(len(logprobs)))
}
