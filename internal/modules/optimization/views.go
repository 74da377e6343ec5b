package optimization

import "fmt"

// EncodeViews converts investor views into the picking matrix P (k x n)
// and view-value vector Q (k). Row i of P corresponds to view i: an
// absolute view sets a single +1 at the asset's index, a relative view
// sets +1 for the outperformer and -1 for the underperformer.
//
// Pure function: the instrument order fixes index correspondence and
// output rows follow input view order.
func EncodeViews(tickers []string, views []View) ([][]float64, []float64, error) {
	index := make(map[string]int, len(tickers))
	for i, ticker := range tickers {
		index[ticker] = i
	}

	p := make([][]float64, len(views))
	q := make([]float64, len(views))

	for i, view := range views {
		row := make([]float64, len(tickers))

		switch view.Type {
		case ViewTypeAbsolute:
			idx, ok := index[view.Asset]
			if !ok {
				return nil, nil, &UnknownAssetError{Asset: view.Asset}
			}
			row[idx] = 1.0

		case ViewTypeRelative:
			idx1, ok := index[view.Asset1]
			if !ok {
				return nil, nil, &UnknownAssetError{Asset: view.Asset1}
			}
			idx2, ok := index[view.Asset2]
			if !ok {
				return nil, nil, &UnknownAssetError{Asset: view.Asset2}
			}
			row[idx1] = 1.0
			row[idx2] = -1.0

		default:
			return nil, nil, fmt.Errorf("view %d has unknown type %q", i, view.Type)
		}

		p[i] = row
		q[i] = view.Value
	}

	return p, q, nil
}
