package depgraph

import (
	"math"
	"sort"
)

// RankOptions configures Criticality.
type RankOptions struct {
	Damping       float64 // PageRank damping factor
	Epsilon       float64 // PageRank convergence threshold
	MaxIterations int     // PageRank iteration cap
	// Alpha weights PageRank against betweenness: Alpha*PR + (1-Alpha)*BC.
	Alpha float64
}

// DefaultRankOptions returns damping 0.85, epsilon 1e-6, 100 iterations,
// alpha 0.6.
func DefaultRankOptions() RankOptions {
	return RankOptions{
		Damping:       0.85,
		Epsilon:       1e-6,
		MaxIterations: 100,
		Alpha:         0.6,
	}
}

// Ranked is one package's criticality score.
type Ranked struct {
	ID          string
	Score       float64
	PageRank    float64
	Betweenness float64
	Dependents  int
}

// Criticality ranks packages by how much of the ecosystem rests on them:
// a blend of normalized PageRank (many important dependents) and
// betweenness (sits on many dependency chains). Results are sorted by
// score descending, then ID.
func (s *Snapshot) Criticality(opts RankOptions) []Ranked {
	if len(s.nodes) == 0 {
		return nil
	}
	pr := s.PageRank(opts)
	bc := s.Betweenness()

	maxPR := 0.0
	for _, v := range pr {
		maxPR = math.Max(maxPR, v)
	}

	out := make([]Ranked, 0, len(s.nodes))
	for id := range s.nodes {
		norm := 0.0
		if maxPR > 0 {
			norm = pr[id] / maxPR
		}
		out = append(out, Ranked{
			ID:          id,
			Score:       opts.Alpha*norm + (1-opts.Alpha)*bc[id],
			PageRank:    pr[id],
			Betweenness: bc[id],
			Dependents:  len(s.in[id]),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// PageRank computes scores where rank flows from a package to its
// dependencies. Packages without dependencies redistribute their rank
// uniformly. Scores sum to roughly 1.
func (s *Snapshot) PageRank(opts RankOptions) map[string]float64 {
	n := len(s.nodes)
	rank := make(map[string]float64, n)
	if n == 0 {
		return rank
	}

	nf := float64(n)
	for id := range s.nodes {
		rank[id] = 1 / nf
	}
	base := (1 - opts.Damping) / nf

	for iter := 0; iter < opts.MaxIterations; iter++ {
		var dangling float64
		for id := range s.nodes {
			if len(s.out[id]) == 0 {
				dangling += rank[id]
			}
		}
		share := opts.Damping * dangling / nf

		next := make(map[string]float64, n)
		delta := 0.0
		for v := range s.nodes {
			var sum float64
			for u := range s.in[v] {
				sum += rank[u] / float64(len(s.out[u]))
			}
			next[v] = base + opts.Damping*sum + share
			delta = math.Max(delta, math.Abs(next[v]-rank[v]))
		}
		rank = next
		if delta < opts.Epsilon {
			break
		}
	}
	return rank
}

// Betweenness computes normalized betweenness centrality (Brandes) over
// install-order edges, from a dependency to its dependents.
func (s *Snapshot) Betweenness() map[string]float64 {
	cb := make(map[string]float64, len(s.nodes))
	for id := range s.nodes {
		cb[id] = 0
	}
	n := len(s.nodes)
	if n < 3 {
		return cb
	}

	for src := range s.nodes {
		order, sigma, pred := s.brandesBFS(src)
		delta := make(map[string]float64, n)
		for i := len(order) - 1; i >= 0; i-- {
			w := order[i]
			for _, v := range pred[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != src {
				cb[w] += delta[w]
			}
		}
	}

	norm := float64((n - 1) * (n - 2))
	for id := range cb {
		cb[id] /= norm
	}
	return cb
}

func (s *Snapshot) brandesBFS(src string) ([]string, map[string]float64, map[string][]string) {
	order := make([]string, 0, len(s.nodes))
	sigma := map[string]float64{src: 1}
	dist := map[string]int{src: 0}
	pred := make(map[string][]string)

	queue := []string{src}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		order = append(order, v)
		for w := range s.in[v] {
			if _, seen := dist[w]; !seen {
				dist[w] = dist[v] + 1
				queue = append(queue, w)
			}
			if dist[w] == dist[v]+1 {
				sigma[w] += sigma[v]
				pred[w] = append(pred[w], v)
			}
		}
	}
	return order, sigma, pred
}
