package news

import (
	"math"
	"sort"
)

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either vector is zero or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// topK returns the indices of the k candidates most similar to query, best first.
func topK(query []float32, candidates [][]float32, k int) []int {
	idx := make([]int, len(candidates))
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		idx[i] = i
		scores[i] = CosineSimilarity(query, c)
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	if k < len(idx) {
		idx = idx[:k]
	}
	return idx
}

// MaxMarginalRelevance selects up to k candidates, balancing similarity to
// query against similarity to already selected candidates. lambda = 1 ranks
// by relevance only; lambda = 0 by diversity only. The returned indices refer
// to candidates and are in selection order.
func MaxMarginalRelevance(query []float32, candidates [][]float32, k int, lambda float64) []int {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}

	relevance := make([]float64, len(candidates))
	best := 0
	for i, c := range candidates {
		relevance[i] = CosineSimilarity(query, c)
		if relevance[i] > relevance[best] {
			best = i
		}
	}

	selected := []int{best}
	used := make([]bool, len(candidates))
	used[best] = true

	for len(selected) < k {
		next, nextScore := -1, math.Inf(-1)
		for i, c := range candidates {
			if used[i] {
				continue
			}
			redundancy := math.Inf(-1)
			for _, j := range selected {
				if s := CosineSimilarity(c, candidates[j]); s > redundancy {
					redundancy = s
				}
			}
			score := lambda*relevance[i] - (1-lambda)*redundancy
			if score > nextScore {
				next, nextScore = i, score
			}
		}
		if next < 0 {
			break
		}
		used[next] = true
		selected = append(selected, next)
	}
	return selected
}
