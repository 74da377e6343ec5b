package optimization

import (
	"fmt"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// BlackLittermanModel blends a prior return estimate with investor
// views. All inputs are fixed at construction, so a model instance is
// immutable and safe to share across goroutines.
//
// Posterior formulas:
//
//	E[R]  = M * [(tau*Sigma)^-1 * pi + P^T * Omega^-1 * Q]
//	Cov   = Sigma + M
//	M     = [(tau*Sigma)^-1 + P^T * Omega^-1 * P]^-1
type BlackLittermanModel struct {
	tickers []string
	pi      *mat.VecDense
	sigma   *mat.Dense
	p       *mat.Dense
	q       *mat.VecDense
	omega   *mat.Dense
	tau     float64
	log     zerolog.Logger
}

// BlackLittermanOption configures model construction
type BlackLittermanOption func(*blConfig)

type blConfig struct {
	tau   float64
	omega [][]float64
}

// WithTau overrides the default confidence scale
func WithTau(tau float64) BlackLittermanOption {
	return func(c *blConfig) { c.tau = tau }
}

// WithOmega supplies an explicit view-uncertainty matrix, bypassing the
// proportional-to-prior estimator.
func WithOmega(omega [][]float64) BlackLittermanOption {
	return func(c *blConfig) { c.omega = omega }
}

// NewBlackLittermanModel builds a model from the prior, covariance and
// views. Returns ErrViewsNotSet when views are empty and
// UnknownAssetError when a view references a ticker outside the set.
func NewBlackLittermanModel(
	tickers []string,
	prior map[string]float64,
	covariance [][]float64,
	views []View,
	log zerolog.Logger,
	opts ...BlackLittermanOption,
) (*BlackLittermanModel, error) {
	if len(views) == 0 {
		return nil, ErrViewsNotSet
	}

	n := len(tickers)
	if len(covariance) != n {
		return nil, fmt.Errorf("covariance matrix size %d does not match %d tickers", len(covariance), n)
	}

	cfg := blConfig{tau: DefaultTau}
	for _, opt := range opts {
		opt(&cfg)
	}

	p, q, err := EncodeViews(tickers, views)
	if err != nil {
		return nil, err
	}

	omega := cfg.omega
	if omega == nil {
		omega, err = OmegaProportionalToPrior(p, covariance, cfg.tau)
		if err != nil {
			return nil, err
		}
	}
	if len(omega) != len(views) {
		return nil, fmt.Errorf("omega size %d does not match %d views", len(omega), len(views))
	}

	piVec := mat.NewVecDense(n, nil)
	for i, ticker := range tickers {
		ret, ok := prior[ticker]
		if !ok {
			return nil, fmt.Errorf("missing prior expected return for %s", ticker)
		}
		piVec.SetVec(i, ret)
	}

	return &BlackLittermanModel{
		tickers: tickers,
		pi:      piVec,
		sigma:   denseFromRows(covariance),
		p:       denseFromRows(p),
		q:       mat.NewVecDense(len(q), q),
		omega:   denseFromRows(omega),
		tau:     cfg.tau,
		log:     log.With().Str("component", "black_litterman").Logger(),
	}, nil
}

// PosteriorReturns computes the view-blended expected returns
func (m *BlackLittermanModel) PosteriorReturns() (map[string]float64, error) {
	mInv, tauSigmaInv, pTransOmegaInv, err := m.posteriorPieces()
	if err != nil {
		return nil, err
	}

	// (tau*Sigma)^-1 * pi
	var tauSigmaInvPi mat.VecDense
	tauSigmaInvPi.MulVec(tauSigmaInv, m.pi)

	// P^T * Omega^-1 * Q
	var pTransOmegaInvQ mat.VecDense
	pTransOmegaInvQ.MulVec(pTransOmegaInv, m.q)

	var rhs mat.VecDense
	rhs.AddVec(&tauSigmaInvPi, &pTransOmegaInvQ)

	var posterior mat.VecDense
	posterior.MulVec(mInv, &rhs)

	result := make(map[string]float64, len(m.tickers))
	for i, ticker := range m.tickers {
		result[ticker] = posterior.AtVec(i)
	}

	m.log.Debug().Int("views", m.q.Len()).Float64("tau", m.tau).Msg("Blended posterior returns")
	return result, nil
}

// PosteriorCovariance computes Sigma + M, the covariance of the
// posterior return estimate.
func (m *BlackLittermanModel) PosteriorCovariance() ([][]float64, error) {
	mInv, _, _, err := m.posteriorPieces()
	if err != nil {
		return nil, err
	}

	n := len(m.tickers)
	var posterior mat.Dense
	posterior.Add(m.sigma, mInv)

	result := make([][]float64, n)
	for i := 0; i < n; i++ {
		result[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			result[i][j] = posterior.At(i, j)
		}
	}
	return result, nil
}

// posteriorPieces computes M^-1 along with the intermediate inverses
// shared by both posterior formulas.
func (m *BlackLittermanModel) posteriorPieces() (*mat.Dense, *mat.Dense, *mat.Dense, error) {
	n := len(m.tickers)

	// (tau*Sigma)^-1
	tauSigma := mat.NewDense(n, n, nil)
	tauSigma.Scale(m.tau, m.sigma)

	var tauSigmaInv mat.Dense
	if err := tauSigmaInv.Inverse(tauSigma); err != nil {
		return nil, nil, nil, &SingularCovarianceError{Err: err}
	}

	// Omega^-1
	var omegaInv mat.Dense
	if err := omegaInv.Inverse(m.omega); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to invert omega: %w", err)
	}

	// P^T * Omega^-1
	var pTrans mat.Dense
	pTrans.CloneFrom(m.p.T())
	var pTransOmegaInv mat.Dense
	pTransOmegaInv.Mul(&pTrans, &omegaInv)

	// M = (tau*Sigma)^-1 + P^T * Omega^-1 * P
	var pTransOmegaInvP mat.Dense
	pTransOmegaInvP.Mul(&pTransOmegaInv, m.p)

	var precision mat.Dense
	precision.Add(&tauSigmaInv, &pTransOmegaInvP)

	var mInv mat.Dense
	if err := mInv.Inverse(&precision); err != nil {
		return nil, nil, nil, &SingularCovarianceError{Err: err}
	}

	return &mInv, &tauSigmaInv, &pTransOmegaInv, nil
}

// EquilibriumReturns computes CAPM-style implied equilibrium returns
// from market-capitalization weights: pi = delta * Sigma * w.
func EquilibriumReturns(
	tickers []string,
	marketWeights map[string]float64,
	covariance [][]float64,
	riskAversion float64,
) (map[string]float64, error) {
	n := len(tickers)
	if len(covariance) != n {
		return nil, fmt.Errorf("covariance matrix size %d does not match %d tickers", len(covariance), n)
	}

	w := mat.NewVecDense(n, nil)
	for i, ticker := range tickers {
		w.SetVec(i, marketWeights[ticker])
	}

	var sigmaW mat.VecDense
	sigmaW.MulVec(denseFromRows(covariance), w)

	result := make(map[string]float64, n)
	for i, ticker := range tickers {
		result[ticker] = riskAversion * sigmaW.AtVec(i)
	}
	return result, nil
}

func denseFromRows(rows [][]float64) *mat.Dense {
	r := len(rows)
	c := len(rows[0])
	d := mat.NewDense(r, c, nil)
	for i, row := range rows {
		d.SetRow(i, row)
	}
	return d
}
