package classifier

import (
	"math"
	"sort"
)

// ensemble is a fitted multinomial gradient boosting model. It is immutable
// once built.
type ensemble struct {
	classes []int // encoded classes seen in training, ascending
	init    []float64
	stages  [][]*node // stages[m][k] is the tree for classes[k] at stage m
	rate    float64
}

func fitEnsemble(x [][]float64, y []int, cfg Config) *ensemble {
	classes := distinct(y)
	k := len(classes)
	n := len(x)

	pos := make(map[int]int, k)
	counts := make([]float64, k)
	for i, c := range classes {
		pos[c] = i
	}
	for _, c := range y {
		counts[pos[c]]++
	}

	e := &ensemble{classes: classes, init: make([]float64, k), rate: cfg.LearningRate}
	for i := range counts {
		e.init[i] = math.Log(counts[i] / float64(n))
	}

	raw := make([][]float64, n)
	for i := range raw {
		raw[i] = append([]float64(nil), e.init...)
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	residual := make([]float64, n)
	prob := make([]float64, n)

	for m := 0; m < cfg.Estimators; m++ {
		probs := make([][]float64, n)
		for i := range raw {
			probs[i] = softmax(raw[i])
		}
		stage := make([]*node, k)
		for c := 0; c < k; c++ {
			for i := 0; i < n; i++ {
				target := 0.0
				if pos[y[i]] == c {
					target = 1
				}
				prob[i] = probs[i][c]
				residual[i] = target - prob[i]
			}
			b := &treeBuilder{
				x:        x,
				residual: residual,
				prob:     prob,
				maxDepth: cfg.MaxDepth,
				minLeaf:  cfg.MinSamplesLeaf,
				scale:    float64(k-1) / float64(k),
			}
			tree := b.build(idx, 0)
			stage[c] = tree
			for i := 0; i < n; i++ {
				raw[i][c] += cfg.LearningRate * tree.predict(x[i])
			}
		}
		e.stages = append(e.stages, stage)
	}
	return e
}

func (e *ensemble) proba(x []float64) []float64 {
	raw := append([]float64(nil), e.init...)
	for _, stage := range e.stages {
		for c, tree := range stage {
			raw[c] += e.rate * tree.predict(x)
		}
	}
	return softmax(raw)
}

// predict returns the encoded class with the highest probability and that probability.
func (e *ensemble) predict(x []float64) (int, float64) {
	p := e.proba(x)
	best := 0
	for c := 1; c < len(p); c++ {
		if p[c] > p[best] {
			best = c
		}
	}
	return e.classes[best], p[best]
}

func softmax(raw []float64) []float64 {
	out := make([]float64, len(raw))
	maxv := math.Inf(-1)
	for _, v := range raw {
		if v > maxv {
			maxv = v
		}
	}
	var sum float64
	for i, v := range raw {
		out[i] = math.Exp(v - maxv)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func distinct(y []int) []int {
	seen := map[int]bool{}
	var out []int
	for _, c := range y {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Ints(out)
	return out
}
