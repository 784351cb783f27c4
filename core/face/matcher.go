package face

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// guards against division by zero on constant-intensity crops.
const normEpsilon = 1e-8

type (
	// Candidate pairs an identity with its stored enrollment template.
	Candidate struct {
		ID       string
		Template Descriptor
	}

	// MatchResult is transient, never persisted. When Matched is false the
	// Score is 0: the best sub-threshold score is discarded, not surfaced.
	MatchResult struct {
		Matched bool
		ID      string
		Score   float64 // in [-1, 1]
	}
)

// Score computes the similarity of two descriptors: both vectors are
// independently z-score-normalized (own mean, own standard deviation plus
// normEpsilon) and the Pearson correlation coefficient of the normalized
// vectors is returned. An undefined coefficient (zero-variance input)
// scores 0.0.
func Score(probe, tmpl Descriptor) float64 {
	if len(probe) == 0 || len(probe) != len(tmpl) {
		return 0
	}
	r := stat.Correlation(zscore(probe), zscore(tmpl), nil)
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// Match scores the probe against every candidate and selects the winner.
// A candidate becomes the new best only when its score is strictly greater
// than the running best AND at or above the threshold. Equal scores resolve
// to the candidate evaluated first; rosters are supplied sorted by ascending
// identity id, so ties deterministically go to the lowest id.
func Match(probe Descriptor, candidates []Candidate, threshold float64) MatchResult {
	var best MatchResult
	var bestScore float64
	for _, c := range candidates {
		if s := Score(probe, c.Template); s > bestScore && s >= threshold {
			bestScore = s
			best = MatchResult{Matched: true, ID: c.ID, Score: s}
		}
	}
	return best
}

// Confidence converts a match score to the percentage exposed by the API,
// rounded to 2 decimals.
func Confidence(score float64) float64 {
	return math.Round(score*100*100) / 100
}

func zscore(v Descriptor) []float64 {
	mean := stat.Mean(v, nil)
	std := stat.PopStdDev(v, nil)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = (x - mean) / (std + normEpsilon)
	}
	return out
}
