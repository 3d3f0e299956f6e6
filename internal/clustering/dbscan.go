// Package clustering implements density-based clustering over batch
// embeddings. It runs after the pairwise dedup passes to catch group-level
// duplicates that one-to-one comparison missed.
package clustering

import (
	"golang.org/x/sync/errgroup"

	"grievdedup/internal/similarity"
)

// Label values in the assignment array. Unvisited points start at -1, noise
// is 0, clusters count up from 1. A point keeps its first cluster label for
// the rest of the run; only noise may later be claimed as a border point.
const (
	labelUnvisited = -1
	labelNoise     = 0
)

// DBSCAN clusters points in embedding space using cosine distance
// (1 - cosine similarity).
type DBSCAN struct {
	Eps    float64 // Maximum distance for two points to be neighbors
	MinPts int     // Minimum neighborhood size (self included) for a core point
}

// NewDBSCAN creates a clusterer. The dedup pipeline uses
// eps = 1 - near_duplicate threshold and minPts = 2.
func NewDBSCAN(eps float64, minPts int) *DBSCAN {
	if minPts < 2 {
		minPts = 2
	}
	return &DBSCAN{Eps: eps, MinPts: minPts}
}

// Cluster groups the given vectors and returns each cluster with at least
// two members as a slice of input indices, in ascending index order.
// Singleton and noise points are omitted.
func (d *DBSCAN) Cluster(vectors [][]float32) [][]int {
	n := len(vectors)
	if n < d.MinPts {
		return nil
	}

	matrix := similarityMatrix(vectors)

	labels := make([]int, n)
	for i := range labels {
		labels[i] = labelUnvisited
	}

	clusterID := 0
	for i := 0; i < n; i++ {
		if labels[i] != labelUnvisited {
			continue
		}

		neighbors := d.regionQuery(matrix, i)
		if len(neighbors) < d.MinPts {
			labels[i] = labelNoise
			continue
		}

		clusterID++
		labels[i] = clusterID
		d.expand(matrix, labels, neighbors, clusterID)
	}

	clusters := make(map[int][]int)
	for i, label := range labels {
		if label > labelNoise {
			clusters[label] = append(clusters[label], i)
		}
	}

	var result [][]int
	for id := 1; id <= clusterID; id++ {
		if members := clusters[id]; len(members) >= 2 {
			result = append(result, members)
		}
	}
	return result
}

// expand grows a cluster from a core point's neighborhood. Points already
// holding a cluster label are never relabeled; noise points are absorbed as
// border members.
func (d *DBSCAN) expand(matrix [][]float64, labels []int, seeds []int, clusterID int) {
	for i := 0; i < len(seeds); i++ {
		point := seeds[i]

		if labels[point] == labelNoise {
			labels[point] = clusterID
			continue
		}
		if labels[point] != labelUnvisited {
			continue
		}

		labels[point] = clusterID
		neighbors := d.regionQuery(matrix, point)
		if len(neighbors) >= d.MinPts {
			seeds = append(seeds, neighbors...)
		}
	}
}

// regionQuery returns every point within Eps of point i, including i itself.
func (d *DBSCAN) regionQuery(matrix [][]float64, i int) []int {
	var neighbors []int
	for j := range matrix[i] {
		if 1-matrix[i][j] <= d.Eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}

// similarityMatrix precomputes all pairwise cosines. Rows are filled
// concurrently; the matrix is read-only afterwards.
func similarityMatrix(vectors [][]float32) [][]float64 {
	n := len(vectors)
	matrix := make([][]float64, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		row := i
		g.Go(func() error {
			matrix[row] = make([]float64, n)
			for j := 0; j < n; j++ {
				if row == j {
					matrix[row][j] = 1
					continue
				}
				matrix[row][j] = similarity.Cosine(vectors[row], vectors[j])
			}
			return nil
		})
	}
	// Workers never return errors; Wait only synchronizes completion.
	_ = g.Wait()
	return matrix
}
