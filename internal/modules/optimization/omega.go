package optimization

// OmegaProportionalToPrior derives the diagonal view-uncertainty matrix
// from the picking matrix and the prior covariance:
//
//	Omega = diag(diag(P * diag(diag(Sigma)) * P^T) * tau)
//
// Each view's uncertainty is proportional to the variance of the assets
// it references, scaled by tau. Cross-view covariance is discarded to
// keep the posterior formula numerically stable. Callers may supply an
// explicit Omega instead, this estimator is only the default.
func OmegaProportionalToPrior(p [][]float64, sigma [][]float64, tau float64) ([][]float64, error) {
	if len(p) == 0 {
		return nil, ErrPickingMatrixNotSet
	}

	k := len(p)
	n := len(sigma)

	omega := make([][]float64, k)
	for i := 0; i < k; i++ {
		omega[i] = make([]float64, k)

		// Only the diagonal survives: omega[i][i] = tau * sum_j P[i][j]^2 * Sigma[j][j]
		var v float64
		for j := 0; j < n; j++ {
			v += p[i][j] * p[i][j] * sigma[j][j]
		}
		v *= tau

		// Zero-variance assets would make Omega singular
		if v < 1e-10 {
			v = 1e-10
		}
		omega[i][i] = v
	}

	return omega, nil
}
