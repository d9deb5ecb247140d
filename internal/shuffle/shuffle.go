// Package shuffle produces play orders and rejects reshuffles that look too much like the last one.
package shuffle

import (
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
)

// Dedup returns ids with empty entries and repeats removed, keeping first occurrences.
func Dedup(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Shuffle returns a uniformly random permutation of ids using r. ids is not modified.
func Shuffle(r *rand.Rand, ids []string) []string {
	out := slices.Clone(ids)
	r.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// Similarity is the fraction of the first window positions holding the same entry in a and b.
// It is 0 when either order is shorter than window.
func Similarity(a, b []string, window int) float64 {
	if window <= 0 || len(a) < window || len(b) < window {
		return 0
	}
	same := 0
	for i := range window {
		if a[i] == b[i] {
			same++
		}
	}
	return float64(same) / float64(window)
}

// NeighbourSimilarity is the fraction of adjacent pairs in a that are also adjacent, in the same
// direction, in b.
func NeighbourSimilarity(a, b []string) float64 {
	if len(a) < 2 || len(b) < 2 {
		return 0
	}
	next := make(map[string]string, len(b))
	for i := 0; i+1 < len(b); i++ {
		next[b[i]] = b[i+1]
	}
	shared := 0
	for i := 0; i+1 < len(a); i++ {
		if n, ok := next[a[i]]; ok && n == a[i+1] {
			shared++
		}
	}
	return float64(shared) / float64(len(a)-1)
}

// Guard regenerates candidate orders until one differs enough from the previous order.
type Guard struct {
	Threshold   float64
	Window      int
	MaxAttempts int
	Logger      *log.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGuard creates a [Guard]. A nil src seeds from the runtime's random source.
func NewGuard(threshold float64, window, maxAttempts int, src rand.Source, logger *log.Logger) *Guard {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Guard{
		Threshold:   threshold,
		Window:      window,
		MaxAttempts: max(maxAttempts, 1),
		Logger:      logger,
		rng:         rand.New(src),
	}
}

// Score rates how similar candidate is to prev; higher is more similar.
func (g *Guard) Score(candidate, prev []string) float64 {
	return max(Similarity(candidate, prev, g.Window), NeighbourSimilarity(candidate, prev))
}

// Reshuffle returns a permutation of the deduplicated tracks and the number of candidates drawn.
//
// With no previous order the first candidate is accepted. Otherwise candidates scoring above the
// threshold are redrawn up to MaxAttempts times and the last one is accepted regardless.
func (g *Guard) Reshuffle(tracks, prev []string) ([]string, int) {
	items := Dedup(tracks)
	attempts := max(g.MaxAttempts, 1)

	var candidate []string
	for attempt := 1; attempt <= attempts; attempt++ {
		candidate = g.draw(items)
		if len(prev) == 0 {
			return candidate, attempt
		}

		score := g.Score(candidate, prev)
		if score <= g.Threshold {
			return candidate, attempt
		}
		if attempt == attempts {
			if g.Logger != nil {
				g.Logger.Warn("similarity exhausted, accepting last candidate", "attempts", attempt, "score", score, "threshold", g.Threshold)
			}
			return candidate, attempt
		}
	}
	return candidate, attempts
}

func (g *Guard) draw(items []string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return Shuffle(g.rng, items)
}
