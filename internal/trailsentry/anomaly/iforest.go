package anomaly

import (
	"math"
	"math/rand"
)

// forest is a fitted isolation forest. It is a per-run value: built by
// fitForest, used to score the same run's population, then discarded.
type forest struct {
	trees      []*node
	sampleSize int
}

// node is one isolation-tree node. Leaves have nil children and carry the
// size of the subsample that reached them.
type node struct {
	left    *node
	right   *node
	feature int
	split   float64
	size    int
}

func (n *node) leaf() bool { return n.left == nil }

// fitForest grows trees isolation trees over X, each on a random subsample
// of at most sampleSize rows. All randomness comes from rng, so a fixed
// seed yields a fixed model.
func fitForest(X [][]float64, trees, sampleSize int, rng *rand.Rand) *forest {
	n := len(X)
	if sampleSize > n {
		sampleSize = n
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sampleSize))))
	if maxDepth < 1 {
		maxDepth = 1
	}

	f := &forest{trees: make([]*node, 0, trees), sampleSize: sampleSize}
	for t := 0; t < trees; t++ {
		idx := rng.Perm(n)[:sampleSize]
		f.trees = append(f.trees, buildTree(X, idx, 0, maxDepth, rng))
	}
	return f
}

func buildTree(X [][]float64, idx []int, depth, maxDepth int, rng *rand.Rand) *node {
	if len(idx) <= 1 || depth >= maxDepth {
		return &node{size: len(idx)}
	}

	dim := len(X[idx[0]])
	// candidate features are those not constant over the subsample
	candidates := make([]int, 0, dim)
	for j := 0; j < dim; j++ {
		lo, hi := X[idx[0]][j], X[idx[0]][j]
		for _, i := range idx[1:] {
			v := X[i][j]
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if hi > lo {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return &node{size: len(idx)}
	}

	feature := candidates[rng.Intn(len(candidates))]
	lo, hi := X[idx[0]][feature], X[idx[0]][feature]
	for _, i := range idx[1:] {
		v := X[i][feature]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	split := lo + rng.Float64()*(hi-lo)

	var left, right []int
	for _, i := range idx {
		if X[i][feature] < split {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &node{size: len(idx)}
	}

	return &node{
		feature: feature,
		split:   split,
		left:    buildTree(X, left, depth+1, maxDepth, rng),
		right:   buildTree(X, right, depth+1, maxDepth, rng),
	}
}

// score returns the anomaly score s(x) = 2^(-E[h(x)]/c(sampleSize)),
// in (0,1), higher = more anomalous.
func (f *forest) score(x []float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range f.trees {
		sum += pathLength(t, x, 0)
	}
	avg := sum / float64(len(f.trees))
	return math.Exp2(-avg / avgPathLen(f.sampleSize))
}

func pathLength(n *node, x []float64, depth int) float64 {
	if n.leaf() {
		return float64(depth) + avgPathLen(n.size)
	}
	if x[n.feature] < n.split {
		return pathLength(n.left, x, depth+1)
	}
	return pathLength(n.right, x, depth+1)
}

const eulerMascheroni = 0.5772156649

// avgPathLen is c(n), the expected path length of an unsuccessful BST
// search over n points.
func avgPathLen(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	default:
		h := math.Log(float64(n-1)) + eulerMascheroni
		return 2*h - 2*float64(n-1)/float64(n)
	}
}
