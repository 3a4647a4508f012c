package discovery

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

const noiseLabel = -1

// cluster groups member indices into the reduced point batch.
type cluster struct {
	members  []int
	centroid []float64
}

// dbscan labels each point with a cluster index or noiseLabel. Clusters are
// discovered in input order, so the result is deterministic for a fixed
// batch. Brute-force neighbor queries are fine at the batch sizes one
// analysis produces.
func dbscan(points [][]float64, eps float64, minPts int) []int {
	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = noiseLabel
	}
	visited := make([]bool, n)

	next := 0
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		neighbors := regionQuery(points, i, eps)
		if len(neighbors) < minPts {
			continue
		}

		labels[i] = next
		for k := 0; k < len(neighbors); k++ {
			j := neighbors[k]
			if !visited[j] {
				visited[j] = true
				expanded := regionQuery(points, j, eps)
				if len(expanded) >= minPts {
					neighbors = append(neighbors, expanded...)
				}
			}
			if labels[j] == noiseLabel {
				labels[j] = next
			}
		}
		next++
	}
	return labels
}

func regionQuery(points [][]float64, idx int, eps float64) []int {
	var neighbors []int
	for j := range points {
		if floats.Distance(points[idx], points[j], 2) <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}

// estimateEps derives the density radius from the sorted k-distance curve:
// each point's distance to its k-th nearest neighbor, taken at the 75th
// percentile. Dense batches get a tight radius, sparse ones a looser one.
func estimateEps(points [][]float64, k int) float64 {
	n := len(points)
	if n < 2 {
		return 0
	}
	if k >= n {
		k = n - 1
	}
	if k < 1 {
		k = 1
	}

	kDists := make([]float64, 0, n)
	dists := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			dists[j] = floats.Distance(points[i], points[j], 2)
		}
		sort.Float64s(dists)
		kDists = append(kDists, dists[k])
	}
	sort.Float64s(kDists)

	eps := kDists[(len(kDists)*3)/4]
	if eps <= 0 {
		// All points coincide within the k-neighborhood.
		eps = math.SmallestNonzeroFloat64
		for _, d := range kDists {
			if d > 0 {
				eps = d
				break
			}
		}
	}
	return eps
}

// collectClusters turns dbscan labels into cluster structs with centroids,
// ordered by discovery index.
func collectClusters(points [][]float64, labels []int) []cluster {
	byLabel := map[int][]int{}
	maxLabel := -1
	for i, l := range labels {
		if l == noiseLabel {
			continue
		}
		byLabel[l] = append(byLabel[l], i)
		if l > maxLabel {
			maxLabel = l
		}
	}

	clusters := make([]cluster, 0, len(byLabel))
	for l := 0; l <= maxLabel; l++ {
		members, ok := byLabel[l]
		if !ok {
			continue
		}
		clusters = append(clusters, cluster{
			members:  members,
			centroid: centroidOf(points, members),
		})
	}
	return clusters
}

// dropUndersized removes clusters with fewer than minPts members, treating
// their points as noise. DBSCAN can leave such clusters behind when a border
// point shared by two dense regions is claimed by whichever region is
// discovered first.
func dropUndersized(clusters []cluster, minPts int) []cluster {
	out := clusters[:0]
	for _, c := range clusters {
		if len(c.members) >= minPts {
			out = append(out, c)
		}
	}
	return out
}

func centroidOf(points [][]float64, members []int) []float64 {
	if len(members) == 0 {
		return nil
	}
	dim := len(points[members[0]])
	centroid := make([]float64, dim)
	for _, idx := range members {
		floats.Add(centroid, points[idx])
	}
	floats.Scale(1/float64(len(members)), centroid)
	return centroid
}

// mergeToTarget folds the two closest clusters (by centroid proximity) into
// one until at most target clusters remain. No synthetic splitting happens
// in the opposite direction; fewer clusters than requested is acceptable.
func mergeToTarget(points [][]float64, clusters []cluster, target int) []cluster {
	if target <= 0 {
		return clusters
	}
	for len(clusters) > target && len(clusters) > 1 {
		bestA, bestB := 0, 1
		bestDist := math.Inf(1)
		for a := 0; a < len(clusters); a++ {
			for b := a + 1; b < len(clusters); b++ {
				d := floats.Distance(clusters[a].centroid, clusters[b].centroid, 2)
				if d < bestDist {
					bestDist = d
					bestA, bestB = a, b
				}
			}
		}

		merged := cluster{members: append(append([]int{}, clusters[bestA].members...), clusters[bestB].members...)}
		sort.Ints(merged.members)
		merged.centroid = centroidOf(points, merged.members)

		next := make([]cluster, 0, len(clusters)-1)
		for i, c := range clusters {
			if i == bestA || i == bestB {
				continue
			}
			next = append(next, c)
		}
		clusters = append(next, merged)
	}
	return clusters
}

// splitOversized re-clusters any cluster materially larger than the median
// with a tighter radius so one sprawling cluster cannot dominate the result.
// A split is kept only when it yields at least two dense sub-clusters.
func splitOversized(points [][]float64, clusters []cluster, eps float64, minPts, depth int) []cluster {
	if depth <= 0 || len(clusters) == 0 {
		return clusters
	}

	median := medianClusterSize(clusters)
	out := make([]cluster, 0, len(clusters))
	for _, c := range clusters {
		if len(c.members) <= 2*median || len(c.members) < 2*minPts {
			out = append(out, c)
			continue
		}

		sub := make([][]float64, len(c.members))
		for i, idx := range c.members {
			sub[i] = points[idx]
		}
		subLabels := dbscan(sub, eps*0.75, minPts)
		subClusters := dropUndersized(collectClusters(sub, subLabels), minPts)
		if len(subClusters) < 2 {
			out = append(out, c)
			continue
		}

		remapped := make([]cluster, 0, len(subClusters))
		for _, sc := range subClusters {
			members := make([]int, len(sc.members))
			for i, local := range sc.members {
				members[i] = c.members[local]
			}
			remapped = append(remapped, cluster{members: members, centroid: centroidOf(points, members)})
		}
		out = append(out, splitOversized(points, remapped, eps*0.75, minPts, depth-1)...)
	}
	return out
}

func medianClusterSize(clusters []cluster) int {
	sizes := make([]int, len(clusters))
	for i, c := range clusters {
		sizes[i] = len(c.members)
	}
	sort.Ints(sizes)
	return sizes[len(sizes)/2]
}

// cohesion measures how tightly members sit around the centroid, mapped into
// (0, 1] where 1 means all members coincide with the centroid.
func cohesion(points [][]float64, c cluster) float64 {
	if len(c.members) == 0 {
		return 0
	}
	total := 0.0
	for _, idx := range c.members {
		total += floats.Distance(points[idx], c.centroid, 2)
	}
	avg := total / float64(len(c.members))
	return 1 / (1 + avg)
}
