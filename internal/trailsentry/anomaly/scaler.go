package anomaly

import (
	"gonum.org/v1/gonum/stat"
)

// standardize returns a copy of X with each column scaled to zero mean and
// unit variance, so count-magnitude features cannot dominate the fit.
// Zero-variance columns become all zeros.
func standardize(X [][]float64) [][]float64 {
	n := len(X)
	if n == 0 {
		return nil
	}
	dim := len(X[0])
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, dim)
	}

	col := make([]float64, n)
	for j := 0; j < dim; j++ {
		for i := 0; i < n; i++ {
			col[i] = X[i][j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || n < 2 {
			continue // column stays zero
		}
		for i := 0; i < n; i++ {
			out[i][j] = (X[i][j] - mean) / std
		}
	}
	return out
}
