package reduce

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// Layout2D computes a UMAP-style 2D embedding for visualization. Points are
// initialized from the first two principal components and refined by
// stochastic gradient descent over the kNN edges: neighbors attract, random
// non-neighbors repel. The layout feeds nothing downstream; clustering and
// statistics run in full component space.
func Layout2D(points *mat.Dense, neighbors [][]int, seed int64, epochs int) *mat.Dense {
	n, d := points.Dims()
	if epochs <= 0 {
		epochs = 200
	}

	// Initialize from the first two components, rescaled to a ~10 unit box.
	coords := mat.NewDense(n, 2, nil)
	maxAbs := 0.0
	for i := 0; i < n; i++ {
		for c := 0; c < 2 && c < d; c++ {
			v := points.At(i, c)
			coords.Set(i, c, v)
			if a := math.Abs(v); a > maxAbs {
				maxAbs = a
			}
		}
	}
	if maxAbs > 0 {
		scale := 10.0 / maxAbs
		for i := 0; i < n; i++ {
			coords.Set(i, 0, coords.At(i, 0)*scale)
			coords.Set(i, 1, coords.At(i, 1)*scale)
		}
	}

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
	const (
		minDistSq = 0.01
		repulsion = 0.5
	)
	negSamples := 5

	for epoch := 0; epoch < epochs; epoch++ {
		alpha := 1.0 - float64(epoch)/float64(epochs)
		if alpha < 0.01 {
			alpha = 0.01
		}
		for i := 0; i < n; i++ {
			for _, j := range neighbors[i] {
				dx := coords.At(j, 0) - coords.At(i, 0)
				dy := coords.At(j, 1) - coords.At(i, 1)
				distSq := dx*dx + dy*dy
				// Attractive gradient of 1/(1+d^2) similarity.
				grad := alpha * distSq / (1 + distSq)
				norm := math.Sqrt(distSq)
				if norm < 1e-12 {
					continue
				}
				sx, sy := grad*dx/norm, grad*dy/norm
				coords.Set(i, 0, coords.At(i, 0)+sx)
				coords.Set(i, 1, coords.At(i, 1)+sy)
				coords.Set(j, 0, coords.At(j, 0)-sx)
				coords.Set(j, 1, coords.At(j, 1)-sy)

				for s := 0; s < negSamples; s++ {
					k := rng.IntN(n)
					if k == i || k == j {
						continue
					}
					dx := coords.At(k, 0) - coords.At(i, 0)
					dy := coords.At(k, 1) - coords.At(i, 1)
					distSq := dx*dx + dy*dy
					if distSq < minDistSq {
						distSq = minDistSq
					}
					grad := alpha * repulsion / (1 + distSq)
					norm := math.Sqrt(distSq)
					coords.Set(i, 0, coords.At(i, 0)-grad*dx/norm)
					coords.Set(i, 1, coords.At(i, 1)-grad*dy/norm)
				}
			}
		}
	}
	return coords
}
