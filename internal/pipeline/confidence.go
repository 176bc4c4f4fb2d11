package pipeline

import "github.com/joseph-ayodele/cv-extractor/internal/entity"

// Scorer rates a phase result between 0 and 1.
type Scorer interface {
	Score(r entity.PhaseResult) float64
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(r entity.PhaseResult) float64

func (f ScorerFunc) Score(r entity.PhaseResult) float64 { return f(r) }

// CompletenessScorer is a completeness proxy: a base score plus a fixed
// increment for every filled field, capped at 1.0. It says nothing about
// whether the values are correct.
type CompletenessScorer struct {
	Base      float64
	PerSignal float64
}

// DefaultScorer starts at 0.2 and adds 0.1 per filled field.
var DefaultScorer = CompletenessScorer{Base: 0.2, PerSignal: 0.1}

func (s CompletenessScorer) Score(r entity.PhaseResult) float64 {
	if r == nil {
		return 0
	}
	score := s.Base
	for _, ok := range r.Signals() {
		if ok {
			score += s.PerSignal
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
