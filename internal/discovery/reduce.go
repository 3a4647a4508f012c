package discovery

import (
	"gonum.org/v1/gonum/mat"
)

const varianceFloor = 1e-9

// reduceDimensions projects the row vectors onto their top principal
// components. The projection keeps at most maxDim components and never more
// than n-1 for an n-row batch, which keeps density estimation stable on small
// batches. Returns the input unchanged when reduction is not applicable.
func reduceDimensions(vectors [][]float64, maxDim int) [][]float64 {
	n := len(vectors)
	if n == 0 {
		return vectors
	}
	d := len(vectors[0])

	target := maxDim
	if n-1 < target {
		target = n - 1
	}
	if target <= 0 || target >= d || n < 3 {
		return vectors
	}

	data := mat.NewDense(n, d, nil)
	for i, v := range vectors {
		data.SetRow(i, v)
	}
	centerColumns(data)

	var svd mat.SVD
	if ok := svd.Factorize(data, mat.SVDThin); !ok {
		return vectors
	}

	values := svd.Values(nil)
	var u mat.Dense
	svd.UTo(&u)

	if target > len(values) {
		target = len(values)
	}

	// Principal component scores are U scaled by the singular values.
	reduced := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, target)
		for j := 0; j < target; j++ {
			row[j] = u.At(i, j) * values[j]
		}
		reduced[i] = row
	}
	return reduced
}

// totalVariance sums per-column variance across the batch. Near-zero values
// indicate degenerate input (identical or near-duplicate embeddings).
func totalVariance(vectors [][]float64) float64 {
	n := len(vectors)
	if n < 2 {
		return 0
	}
	d := len(vectors[0])

	variance := 0.0
	for j := 0; j < d; j++ {
		mean := 0.0
		for i := 0; i < n; i++ {
			mean += vectors[i][j]
		}
		mean /= float64(n)

		for i := 0; i < n; i++ {
			diff := vectors[i][j] - mean
			variance += diff * diff
		}
	}
	return variance / float64(n)
}

func centerColumns(m *mat.Dense) {
	rows, cols := m.Dims()
	for j := 0; j < cols; j++ {
		mean := 0.0
		for i := 0; i < rows; i++ {
			mean += m.At(i, j)
		}
		mean /= float64(rows)
		for i := 0; i < rows; i++ {
			m.Set(i, j, m.At(i, j)-mean)
		}
	}
}

// reducedDim picks a conservative projection size for the batch: roughly a
// third of the batch, clamped so tiny batches do not produce degenerate
// projections and large batches stay cheap to cluster.
func reducedDim(batchSize int) int {
	dim := batchSize / 3
	if dim < 5 {
		dim = 5
	}
	if dim > 32 {
		dim = 32
	}
	return dim
}
