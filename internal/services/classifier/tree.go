package classifier

import (
	"math"
	"sort"
)

// node is a binary regression tree node. Leaves carry the Newton step value.
type node struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      *node
	right     *node
}

func (n *node) predict(x []float64) float64 {
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// treeBuilder fits one regression tree on the residuals of a single class.
type treeBuilder struct {
	x        [][]float64
	residual []float64
	prob     []float64
	maxDepth int
	minLeaf  int
	scale    float64 // (K-1)/K
}

func (b *treeBuilder) build(idx []int, depth int) *node {
	if depth >= b.maxDepth || len(idx) < 2*b.minLeaf {
		return b.leaf(idx)
	}
	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return b.leaf(idx)
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &node{
		feature:   feature,
		threshold: threshold,
		left:      b.build(left, depth+1),
		right:     b.build(right, depth+1),
	}
}

// leaf computes the multinomial deviance Newton step for the rows in idx.
func (b *treeBuilder) leaf(idx []int) *node {
	var num, den float64
	for _, i := range idx {
		num += b.residual[i]
		p := b.prob[i]
		den += p * (1 - p)
	}
	if math.Abs(den) < 1e-150 {
		return &node{leaf: true}
	}
	return &node{leaf: true, value: b.scale * num / den}
}

// bestSplit searches every feature for the threshold with the largest squared
// error reduction. Ties keep the first candidate found.
func (b *treeBuilder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	var total float64
	for _, i := range idx {
		total += b.residual[i]
	}
	base := total * total / float64(n)

	bestGain := 1e-12
	bestFeature, bestThreshold, found := -1, 0.0, false

	sorted := make([]int, n)
	for f := range b.x[idx[0]] {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.x[sorted[a]][f] < b.x[sorted[c]][f]
		})

		var leftSum float64
		for s := 1; s < n; s++ {
			leftSum += b.residual[sorted[s-1]]
			if s < b.minLeaf || n-s < b.minLeaf {
				continue
			}
			lo, hi := b.x[sorted[s-1]][f], b.x[sorted[s]][f]
			if lo >= hi {
				continue
			}
			rightSum := total - leftSum
			gain := leftSum*leftSum/float64(s) + rightSum*rightSum/float64(n-s) - base
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold >= hi {
					bestThreshold = lo
				}
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}
