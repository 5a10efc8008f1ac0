// Package statistics provides the bootstrap estimates used by the
// evaluation harness to compare pipeline variants.
package statistics

import (
	"math"
	"math/rand"
	"sort"
)

// ConfidenceInterval holds the result of a bootstrap confidence interval computation.
type ConfidenceInterval struct {
	Lower           float64 `json:"lower"`
	Upper           float64 `json:"upper"`
	Mean            float64 `json:"mean"`
	ConfidenceLevel float64 `json:"confidence_level"`
	NumBootstraps   int     `json:"num_bootstraps"`
}

// DefaultBootstrapIterations is the number of bootstrap resamples.
const DefaultBootstrapIterations = 10000

// BootstrapCI computes a bootstrap confidence interval over the given scores
// using the percentile method. confidenceLevel should be in (0, 1), e.g. 0.95.
// Returns a degenerate interval when fewer than 2 data points exist.
func BootstrapCI(scores []float64, confidenceLevel float64) ConfidenceInterval {
	return BootstrapCIWithSeed(scores, confidenceLevel, -1)
}

// BootstrapCIWithSeed is like BootstrapCI but accepts a seed for reproducibility.
// A negative seed uses a non-deterministic source.
func BootstrapCIWithSeed(scores []float64, confidenceLevel float64, seed int64) ConfidenceInterval {
	n := len(scores)
	if n < 2 {
		m := Mean(scores)
		return ConfidenceInterval{
			Lower:           m,
			Upper:           m,
			Mean:            m,
			ConfidenceLevel: confidenceLevel,
			NumBootstraps:   0,
		}
	}

	rng := newRNG(seed)
	m := Mean(scores)
	iters := DefaultBootstrapIterations

	// Resample with replacement, take the mean of each resample
	bootMeans := make([]float64, iters)
	sample := make([]float64, n)
	for i := 0; i < iters; i++ {
		for j := 0; j < n; j++ {
			sample[j] = scores[rng.Intn(n)]
		}
		bootMeans[i] = Mean(sample)
	}

	lo, hi := percentileBounds(bootMeans, confidenceLevel)

	return ConfidenceInterval{
		Lower:           lo,
		Upper:           hi,
		Mean:            m,
		ConfidenceLevel: confidenceLevel,
		NumBootstraps:   iters,
	}
}

// DifferenceCI bootstraps the difference in means between two independent
// score sets (b minus a). Used to compare the composed pipeline against its
// single-model baseline over the same task set.
func DifferenceCI(a, b []float64, confidenceLevel float64, seed int64) ConfidenceInterval {
	if len(a) < 2 || len(b) < 2 {
		m := Mean(b) - Mean(a)
		return ConfidenceInterval{Lower: m, Upper: m, Mean: m, ConfidenceLevel: confidenceLevel}
	}

	rng := newRNG(seed)
	iters := DefaultBootstrapIterations

	diffs := make([]float64, iters)
	sa := make([]float64, len(a))
	sb := make([]float64, len(b))
	for i := 0; i < iters; i++ {
		for j := range sa {
			sa[j] = a[rng.Intn(len(a))]
		}
		for j := range sb {
			sb[j] = b[rng.Intn(len(b))]
		}
		diffs[i] = Mean(sb) - Mean(sa)
	}

	lo, hi := percentileBounds(diffs, confidenceLevel)

	return ConfidenceInterval{
		Lower:           lo,
		Upper:           hi,
		Mean:            Mean(b) - Mean(a),
		ConfidenceLevel: confidenceLevel,
		NumBootstraps:   iters,
	}
}

// IsSignificant returns true if the confidence interval does not contain zero,
// indicating statistical significance at the given confidence level.
func IsSignificant(ci ConfidenceInterval) bool {
	return ci.Lower > 0 || ci.Upper < 0
}

// NormalizedGain computes Hake's normalized gain:
//
//	g = (post - pre) / (1 - pre)
//
// which controls for ceiling effects when comparing accuracy before and
// after composing the pipeline. Returns 0 if pre is already at ceiling or
// nothing changed, 1 if post reached ceiling.
func NormalizedGain(pre, post float64) float64 {
	if pre >= 1.0 {
		return 0.0
	}
	if post >= 1.0 {
		return 1.0
	}
	if math.Abs(post-pre) < 1e-12 {
		return 0.0
	}
	return (post - pre) / (1.0 - pre)
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func newRNG(seed int64) *rand.Rand {
	if seed >= 0 {
		return rand.New(rand.NewSource(seed))
	}
	return rand.New(rand.NewSource(rand.Int63()))
}

// percentileBounds sorts samples in place and returns the two-sided
// percentile-method bounds at the given confidence level.
func percentileBounds(samples []float64, confidenceLevel float64) (lo, hi float64) {
	sort.Float64s(samples)
	iters := len(samples)

	alpha := 1.0 - confidenceLevel
	loIdx := int(math.Floor(alpha / 2.0 * float64(iters)))
	hiIdx := int(math.Floor((1.0 - alpha/2.0) * float64(iters)))
	if hiIdx >= iters {
		hiIdx = iters - 1
	}
	return samples[loIdx], samples[hiIdx]
}
