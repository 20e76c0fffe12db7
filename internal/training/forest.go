package training

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

var ErrEmptyTrainingSet = errors.New("empty training set")

type ForestConfig struct {
	Trees           int
	MaxDepth        int
	MinSamplesSplit int
	// MaxFeatures is the number of features considered per split; 0 means sqrt.
	MaxFeatures int
	Seed        int64
	Workers     int
}

// Node is a decision node, or a leaf when Left is negative.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

func (n Node) IsLeaf() bool {
	return n.Left < 0
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) proba(x []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Forest is a bagged ensemble of Gini decision trees trained with balanced
// class weights.
type Forest struct {
	NumClasses   int       `json:"num_classes"`
	NumFeatures  int       `json:"num_features"`
	ClassWeights []float64 `json:"class_weights"`
	Trees        []Tree    `json:"trees"`
}

// PredictProba averages the leaf class distributions of all trees.
func (f *Forest) PredictProba(x []float64) []float64 {
	out := make([]float64, f.NumClasses)
	for i := range f.Trees {
		v := f.Trees[i].proba(x)
		for c := range out {
			out[c] += v[c]
		}
	}
	for c := range out {
		out[c] /= float64(len(f.Trees))
	}
	return out
}

func (f *Forest) Predict(x []float64) int {
	proba := f.PredictProba(x)
	best := 0
	for c := 1; c < len(proba); c++ {
		if proba[c] > proba[best] {
			best = c
		}
	}
	return best
}

// Validate checks structural integrity of a forest loaded from storage.
func (f *Forest) Validate() error {
	if f.NumClasses < 2 {
		return fmt.Errorf("forest has %d classes", f.NumClasses)
	}
	if len(f.Trees) == 0 {
		return errors.New("forest has no trees")
	}
	for ti := range f.Trees {
		nodes := f.Trees[ti].Nodes
		if len(nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range nodes {
			if n.IsLeaf() {
				if len(n.Value) != f.NumClasses {
					return fmt.Errorf("tree %d node %d: leaf has %d class values", ti, ni, len(n.Value))
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= f.NumFeatures {
				return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
			if n.Left <= ni || n.Left >= len(nodes) || n.Right <= ni || n.Right >= len(nodes) {
				return fmt.Errorf("tree %d node %d: invalid children", ti, ni)
			}
		}
	}
	return nil
}

func FitForest(ctx context.Context, x [][]float64, y []int, cfg ForestConfig) (*Forest, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, ErrEmptyTrainingSet
	}
	if cfg.Trees <= 0 {
		cfg.Trees = 100
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 10
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	numFeatures := len(x[0])
	maxFeatures := cfg.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(numFeatures)))
	}
	if maxFeatures < 1 {
		maxFeatures = 1
	}
	if maxFeatures > numFeatures {
		maxFeatures = numFeatures
	}

	numClasses := 2
	for _, label := range y {
		if label < 0 {
			return nil, fmt.Errorf("negative class label %d", label)
		}
		if label+1 > numClasses {
			numClasses = label + 1
		}
	}
	classWeights := balancedWeights(y, numClasses)

	master := rand.New(rand.NewSource(cfg.Seed))
	seeds := make([]int64, cfg.Trees)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]Tree, cfg.Trees)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seeds[i]))
			gr := &grower{
				x:           x,
				y:           y,
				numClasses:  numClasses,
				maxDepth:    cfg.MaxDepth,
				minSplit:    cfg.MinSamplesSplit,
				maxFeatures: maxFeatures,
				numFeatures: numFeatures,
				rng:         rng,
			}
			idx, weights := bootstrap(rng, y, classWeights)
			gr.w = weights
			gr.build(idx, 0)
			trees[i] = Tree{Nodes: gr.nodes}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Forest{
		NumClasses:   numClasses,
		NumFeatures:  numFeatures,
		ClassWeights: classWeights,
		Trees:        trees,
	}, nil
}

// balancedWeights returns n / (k * n_c) for each class present, where k is
// the number of classes present.
func balancedWeights(y []int, numClasses int) []float64 {
	counts := make([]int, numClasses)
	for _, label := range y {
		counts[label]++
	}
	present := 0
	for _, c := range counts {
		if c > 0 {
			present++
		}
	}

	weights := make([]float64, numClasses)
	for c, count := range counts {
		if count > 0 {
			weights[c] = float64(len(y)) / float64(present*count)
		}
	}
	return weights
}

// bootstrap draws len(y) samples with replacement. It returns the distinct
// indices drawn and per-index weights folding draw counts with class weights.
func bootstrap(rng *rand.Rand, y []int, classWeights []float64) ([]int, []float64) {
	n := len(y)
	draws := make([]int, n)
	for i := 0; i < n; i++ {
		draws[rng.Intn(n)]++
	}

	weights := make([]float64, n)
	idx := make([]int, 0, n)
	for i, count := range draws {
		if count == 0 {
			continue
		}
		weights[i] = float64(count) * classWeights[y[i]]
		idx = append(idx, i)
	}
	return idx, weights
}

type grower struct {
	x           [][]float64
	y           []int
	w           []float64
	numClasses  int
	numFeatures int
	maxDepth    int
	minSplit    int
	maxFeatures int
	rng         *rand.Rand
	nodes       []Node
}

func (g *grower) build(idx []int, depth int) int {
	dist, total := g.distribution(idx)

	id := len(g.nodes)
	g.nodes = append(g.nodes, Node{Left: -1, Right: -1})

	if depth >= g.maxDepth || len(idx) < g.minSplit || pure(dist) {
		g.nodes[id].Value = normalize(dist, total)
		return id
	}

	feature, threshold, ok := g.bestSplit(idx, dist, total)
	if !ok {
		g.nodes[id].Value = normalize(dist, total)
		return id
	}

	var left, right []int
	for _, i := range idx {
		if g.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := g.build(left, depth+1)
	r := g.build(right, depth+1)

	g.nodes[id].Feature = feature
	g.nodes[id].Threshold = threshold
	g.nodes[id].Left = l
	g.nodes[id].Right = r
	return id
}

func (g *grower) distribution(idx []int) ([]float64, float64) {
	dist := make([]float64, g.numClasses)
	var total float64
	for _, i := range idx {
		dist[g.y[i]] += g.w[i]
		total += g.w[i]
	}
	return dist, total
}

// bestSplit evaluates up to maxFeatures non-constant features in random
// order and returns the split with the largest weighted Gini decrease.
func (g *grower) bestSplit(idx []int, dist []float64, total float64) (int, float64, bool) {
	parent := gini(dist, total)
	bestFeature, bestThreshold, bestGain := -1, 0.0, 1e-12

	sorted := make([]int, len(idx))
	leftDist := make([]float64, g.numClasses)
	rightDist := make([]float64, g.numClasses)

	visited := 0
	for _, f := range g.rng.Perm(g.numFeatures) {
		if visited >= g.maxFeatures {
			break
		}

		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return g.x[sorted[a]][f] < g.x[sorted[b]][f] })
		if g.x[sorted[0]][f] == g.x[sorted[len(sorted)-1]][f] {
			continue
		}
		visited++

		for c := range leftDist {
			leftDist[c] = 0
		}
		var leftW float64

		for k := 0; k < len(sorted)-1; k++ {
			i := sorted[k]
			leftDist[g.y[i]] += g.w[i]
			leftW += g.w[i]

			v, next := g.x[i][f], g.x[sorted[k+1]][f]
			if v == next {
				continue
			}

			rightW := total - leftW
			for c := range rightDist {
				rightDist[c] = dist[c] - leftDist[c]
			}
			impurity := (leftW*gini(leftDist, leftW) + rightW*gini(rightDist, rightW)) / total
			if gain := parent - impurity; gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = v + (next-v)/2
				if bestThreshold >= next {
					bestThreshold = v
				}
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}

func gini(dist []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	sum := 0.0
	for _, d := range dist {
		p := d / total
		sum += p * p
	}
	return 1 - sum
}

func pure(dist []float64) bool {
	nonZero := 0
	for _, d := range dist {
		if d > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func normalize(dist []float64, total float64) []float64 {
	out := make([]float64, len(dist))
	if total <= 0 {
		return out
	}
	for c, d := range dist {
		out[c] = d / total
	}
	return out
}
