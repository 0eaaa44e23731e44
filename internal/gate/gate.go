// Package gate admits or rejects published artifacts by coherence score.
// A Scorer rates an artifact against a corpus of previously admitted
// artifacts; the Gate compares the score with a threshold.
package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultThreshold is the minimum coherence score for an admissible artifact.
const DefaultThreshold = 0.954

// ErrIncoherent is returned when an artifact scores below the threshold.
var ErrIncoherent = errors.New("artifact below coherence threshold")

// Scorer rates artifact against corpus, returning a score in [0, 1].
type Scorer interface {
	Score(ctx context.Context, artifact []byte, corpus [][]byte) (float64, error)
}

// Gate applies a Scorer with a threshold. A nil *Gate admits everything.
type Gate struct {
	Threshold float64
	Scorer    Scorer
}

// New returns a Gate over s. A threshold outside (0, 1] selects DefaultThreshold.
func New(s Scorer, threshold float64) *Gate {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Gate{Threshold: threshold, Scorer: s}
}

// Admit scores artifact and returns ErrIncoherent if it falls below the
// threshold. The score is returned in both cases.
func (g *Gate) Admit(ctx context.Context, artifact []byte, corpus [][]byte) (float64, error) {
	if g == nil || g.Scorer == nil {
		return 1, nil
	}
	score, err := g.Scorer.Score(ctx, artifact, corpus)
	if err != nil {
		return 0, fmt.Errorf("gate: score: %w", err)
	}
	if score < 0 || score > 1 {
		return score, fmt.Errorf("gate: scorer returned %v outside [0, 1]", score)
	}
	if score < g.Threshold {
		return score, fmt.Errorf("%w: %.4f < %.4f", ErrIncoherent, score, g.Threshold)
	}
	return score, nil
}

// DiffScorer scores by edit distance: the best 1 - levenshtein/maxLen over
// the corpus. An empty corpus scores 1.
type DiffScorer struct{}

// Score implements Scorer.
func (DiffScorer) Score(ctx context.Context, artifact []byte, corpus [][]byte) (float64, error) {
	if len(corpus) == 0 {
		return 1, nil
	}
	dmp := diffmatchpatch.New()
	a := string(artifact)
	best := 0.0
	for _, ref := range corpus {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		b := string(ref)
		longest := max(len(a), len(b))
		if longest == 0 {
			return 1, nil
		}
		dist := dmp.DiffLevenshtein(dmp.DiffMain(a, b, false))
		if s := 1 - float64(dist)/float64(longest); s > best {
			best = s
		}
	}
	return best, nil
}
