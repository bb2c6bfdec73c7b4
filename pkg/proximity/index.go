package proximity

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"

	"resectionplan/internal/logging"
	"resectionplan/internal/models"
)

// Point3D is a mesh vertex stored in a k-d tree.
type Point3D r3.Vec

// Compare implements the kdtree.Comparable interface
func (p Point3D) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(Point3D)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p Point3D) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p Point3D) Distance(c kdtree.Comparable) float64 {
	q := c.(Point3D)
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return dx*dx + dy*dy + dz*dz
}

// Points3D is a collection of Point3D that satisfies kdtree.Interface
type Points3D []Point3D

func (p Points3D) Index(i int) kdtree.Comparable         { return p[i] }
func (p Points3D) Len() int                              { return len(p) }
func (p Points3D) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p Points3D) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(pointPlane{Points3D: p, Dim: d}, kdtree.MedianOfRandoms(pointPlane{Points3D: p, Dim: d}, 100))
}

// pointPlane implements sort.Interface and kdtree.SortSlicer for Points3D
type pointPlane struct {
	Points3D
	kdtree.Dim
}

func (p pointPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.Points3D[i].X < p.Points3D[j].X
	case 1:
		return p.Points3D[i].Y < p.Points3D[j].Y
	case 2:
		return p.Points3D[i].Z < p.Points3D[j].Z
	default:
		panic("illegal dimension")
	}
}

func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	return pointPlane{Points3D: p.Points3D[start:end], Dim: p.Dim}
}

func (p pointPlane) Swap(i, j int) {
	p.Points3D[i], p.Points3D[j] = p.Points3D[j], p.Points3D[i]
}

type cachedTree struct {
	mesh     *models.TriangleMesh
	points   int
	modified uint64
	tree     *kdtree.Tree
}

// stale reports whether the tree no longer describes mesh at counter modified.
func (c *cachedTree) stale(mesh *models.TriangleMesh, modified uint64) bool {
	return c.mesh != mesh || c.points != mesh.NumPoints() || c.modified != modified
}

// Index keeps one k-d tree per target, keyed by the target ID and rebuilt
// whenever the target's mesh, its vertex count or its modification counter
// differs from the one the tree was built at. Trees are never patched in place.
type Index struct {
	trees  map[string]*cachedTree
	builds int
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{trees: make(map[string]*cachedTree)}
}

// Invalidate drops every cached tree.
func (ix *Index) Invalidate() {
	ix.trees = make(map[string]*cachedTree)
}

// Builds returns the number of trees built so far.
func (ix *Index) Builds() int {
	return ix.builds
}

// Len returns the number of cached trees.
func (ix *Index) Len() int {
	return len(ix.trees)
}

// sync makes sure every target with vertices has a current tree and drops
// trees of targets no longer listed. It returns the trees to query.
func (ix *Index) sync(targets []Target) []*kdtree.Tree {
	seen := make(map[string]bool, len(targets))
	var out []*kdtree.Tree
	for _, t := range targets {
		if t == nil || seen[t.ID()] {
			continue
		}
		seen[t.ID()] = true
		mesh := t.Mesh()
		if mesh.IsEmpty() {
			continue
		}
		c, ok := ix.trees[t.ID()]
		if !ok || c.stale(mesh, t.Modified()) {
			logging.Logger().Debug("building target index",
				"target", t.ID(), "modified", t.Modified(), "points", mesh.NumPoints(), "stale", ok)
			c = &cachedTree{mesh: mesh, points: mesh.NumPoints(), modified: t.Modified(), tree: buildTree(mesh)}
			ix.trees[t.ID()] = c
			ix.builds++
		}
		out = append(out, c.tree)
	}
	for id := range ix.trees {
		if !seen[id] {
			delete(ix.trees, id)
		}
	}
	return out
}

func buildTree(mesh *models.TriangleMesh) *kdtree.Tree {
	points := make(Points3D, len(mesh.Points))
	for i, p := range mesh.Points {
		points[i] = Point3D(p)
	}
	return kdtree.New(points, true)
}

// nearest returns the Euclidean distance from q to the closest vertex held
// by any of the trees.
func nearest(trees []*kdtree.Tree, q r3.Vec) float64 {
	best := math.Inf(1)
	for _, tree := range trees {
		if _, d2 := tree.Nearest(Point3D(q)); d2 < best {
			best = d2
		}
	}
	return math.Sqrt(best)
}
