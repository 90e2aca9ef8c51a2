package gamma

import (
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"dosegamma/internal/models"
	"dosegamma/pkg/interpolation"
)

// evalPoint is a refined evaluation sample stored in the k-d tree
type evalPoint struct {
	X    [models.MaxDims]float64
	N    int
	Dose float64
	// Index is the flat refined index, used to keep visiting order stable
	Index int
}

// Compare implements the kdtree.Comparable interface
func (p evalPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(evalPoint)
	return p.X[d] - q.X[d]
}

// Dims returns the number of dimensions for the k-d tree
func (p evalPoint) Dims() int { return p.N }

// Distance returns the squared Euclidean distance between two points
func (p evalPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(evalPoint)
	sum := 0.0
	for d := 0; d < p.N; d++ {
		diff := p.X[d] - q.X[d]
		sum += diff * diff
	}
	return sum
}

// evalPoints is a collection of evalPoint that satisfies kdtree.Interface
type evalPoints []evalPoint

func (p evalPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p evalPoints) Len() int                              { return len(p) }
func (p evalPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p evalPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(evalPlane{evalPoints: p, Dim: d}, kdtree.MedianOfRandoms(evalPlane{evalPoints: p, Dim: d}, 100))
}

// evalPlane implements sort.Interface and kdtree.SortSlicer for evalPoints
type evalPlane struct {
	evalPoints
	kdtree.Dim
}

func (p evalPlane) Less(i, j int) bool {
	return p.evalPoints[i].X[p.Dim] < p.evalPoints[j].X[p.Dim]
}

func (p evalPlane) Slice(start, end int) kdtree.SortSlicer {
	return evalPlane{evalPoints: p.evalPoints[start:end], Dim: p.Dim}
}

func (p evalPlane) Swap(i, j int) {
	p.evalPoints[i], p.evalPoints[j] = p.evalPoints[j], p.evalPoints[i]
}

// kdNeighbourhood answers candidate queries from a k-d tree holding every
// refined evaluation sample. The tree is built once and only read afterwards,
// so it is shared by all workers.
type kdNeighbourhood struct {
	tree *kdtree.Tree
	dims int
}

func newKDNeighbourhood(refined *interpolation.RefinedGrid) *kdNeighbourhood {
	dims := refined.NDims()
	points := make(evalPoints, refined.Len())

	var idxBuf [models.MaxDims]int
	var yBuf [models.MaxDims]float64
	idx, y := idxBuf[:dims], yBuf[:dims]
	for flat := range points {
		models.Unravel(flat, refined.Shape, idx)
		refined.Coords(idx, y)
		p := evalPoint{N: dims, Dose: refined.DoseAt(idx), Index: flat}
		copy(p.X[:], y)
		points[flat] = p
	}

	return &kdNeighbourhood{
		tree: kdtree.New(points, false),
		dims: dims,
	}
}

func (n *kdNeighbourhood) query(x []float64) evalPoint {
	q := evalPoint{N: n.dims}
	copy(q.X[:], x)
	return q
}

func (n *kdNeighbourhood) seed(x []float64, limit float64, s *pointSearch) {
	if s.zeroNorm() {
		return
	}
	c, dist2 := n.tree.Nearest(n.query(x))
	if c == nil || dist2 > limit*limit {
		return
	}
	s.add(dist2, c.(evalPoint).Dose)
}

func (n *kdNeighbourhood) visit(x []float64, radius float64, s *pointSearch) {
	keeper := kdtree.NewDistKeeper(radius * radius)
	n.tree.NearestSet(keeper, n.query(x))

	found := make([]kdtree.ComparableDist, 0, keeper.Len())
	for _, item := range keeper.Heap {
		// Skip the sentinel value
		if item.Comparable == nil {
			continue
		}
		found = append(found, item)
	}
	sort.Slice(found, func(i, j int) bool {
		return found[i].Comparable.(evalPoint).Index < found[j].Comparable.(evalPoint).Index
	})

	for _, item := range found {
		if !s.wants(item.Dist) {
			continue
		}
		if !s.add(item.Dist, item.Comparable.(evalPoint).Dose) {
			return
		}
	}
}
