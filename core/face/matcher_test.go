package face

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func Test_Score_selfSimilarityIsMaximal(t *testing.T) {
	d := make(Descriptor, DescriptorLen)
	for i := range d {
		d[i] = float64(i % 256)
	}
	if s := Score(d, d); !almostEqual(s, 1.0, 1e-6) {
		t.Errorf("Score(d, d) = %v; want ~1.0", s)
	}
}

func Test_Score_zeroVarianceScoresZero(t *testing.T) {
	flat := make(Descriptor, DescriptorLen) // constant-intensity crop
	grad := make(Descriptor, DescriptorLen)
	for i := range grad {
		grad[i] = float64(i)
	}
	if s := Score(flat, grad); s != 0 {
		t.Errorf("Score(flat, grad) = %v; want 0", s)
	}
	if s := Score(flat, flat); s != 0 {
		t.Errorf("Score(flat, flat) = %v; want 0", s)
	}
}

func Test_Score_lengthMismatch(t *testing.T) {
	if s := Score(Descriptor{1, 2, 3}, Descriptor{1, 2}); s != 0 {
		t.Errorf("Score() = %v; want 0", s)
	}
	if s := Score(nil, nil); s != 0 {
		t.Errorf("Score(nil, nil) = %v; want 0", s)
	}
}

func Test_Score_antiCorrelated(t *testing.T) {
	up := Descriptor{1, 2, 3, 4, 5}
	down := Descriptor{5, 4, 3, 2, 1}
	if s := Score(up, down); !almostEqual(s, -1.0, 1e-6) {
		t.Errorf("Score(up, down) = %v; want ~-1.0", s)
	}
}

func Test_Match_emptyCandidates(t *testing.T) {
	probe := Descriptor{1, 2, 3, 4}
	res := Match(probe, nil, 0.55)
	if res.Matched {
		t.Error("Match() with no candidates must not match")
	}
	if res.Score != 0 {
		t.Errorf("Score = %v; want 0", res.Score)
	}
}

func Test_Match_thresholdBoundary(t *testing.T) {
	probe := Descriptor{1, 2, 3, 4, 6}
	cand := Descriptor{1, 2, 3, 4, 5} // close but not identical
	score := Score(probe, cand)
	if !(score > 0 && score < 1) {
		t.Fatalf("fixture score = %v; want within (0, 1)", score)
	}

	// a candidate scoring exactly the threshold is accepted
	res := Match(probe, []Candidate{{ID: "s1", Template: cand}}, score)
	if !res.Matched || res.ID != "s1" {
		t.Errorf("Match() at exact threshold = %+v; want match on s1", res)
	}

	// a candidate scoring just below the threshold is rejected, and the
	// rejected best score is not surfaced
	res = Match(probe, []Candidate{{ID: "s1", Template: cand}}, score+1e-9)
	if res.Matched {
		t.Errorf("Match() below threshold = %+v; want no match", res)
	}
	if res.Score != 0 {
		t.Errorf("rejected Score = %v; want 0", res.Score)
	}
}

func Test_Match_tieResolvesToFirstCandidate(t *testing.T) {
	probe := Descriptor{1, 2, 3, 4, 5}
	tmpl := Descriptor{2, 4, 6, 8, 10} // perfectly correlated with probe
	res := Match(probe, []Candidate{
		{ID: "s1", Template: tmpl},
		{ID: "s2", Template: tmpl},
	}, 0.55)
	if !res.Matched || res.ID != "s1" {
		t.Errorf("Match() = %+v; want the first of the tied candidates (s1)", res)
	}
}

func Test_Match_picksHighestScore(t *testing.T) {
	probe := Descriptor{1, 2, 3, 4, 5}
	res := Match(probe, []Candidate{
		{ID: "noisy", Template: Descriptor{1, 5, 2, 4, 3}},
		{ID: "exact", Template: Descriptor{1, 2, 3, 4, 5}},
	}, 0.55)
	if !res.Matched || res.ID != "exact" {
		t.Errorf("Match() = %+v; want exact", res)
	}
	if !almostEqual(res.Score, 1.0, 1e-6) {
		t.Errorf("Score = %v; want ~1.0", res.Score)
	}
}

func Test_Confidence(t *testing.T) {
	tests := []struct {
		score float64
		want  float64
	}{
		{1, 100},
		{0.55, 55},
		{0.61239, 61.24},
		{0, 0},
	}
	for _, tt := range tests {
		if got := Confidence(tt.score); got != tt.want {
			t.Errorf("Confidence(%v) = %v; want %v", tt.score, got, tt.want)
		}
	}
}
