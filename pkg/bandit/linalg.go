package bandit

// linucbSolve solves A.theta = b for theta via Gauss-Jordan elimination on
// the augmented [A|b] system, then separately solves A.z = x (the quantity
// LinUCB's confidence bonus needs, x.A^-1.x) reusing the same elimination.
// ContextDim is fixed at 6, so a dedicated solver beats pulling in a linear
// algebra dependency for one tiny dense system (documented in DESIGN.md).
func linucbSolve(a [ContextDim][ContextDim]float64, b [ContextDim]float64, x Context) (theta Context, z Context) {
	theta = gaussSolve(a, b)
	z = gaussSolve(a, x)
	return theta, z
}

// gaussSolve solves A.y = rhs for y via Gauss-Jordan elimination with
// partial pivoting. A is always symmetric positive-definite here (it
// starts as the identity and only accumulates x.x^T outer products), so
// elimination never hits a singular pivot in practice; a near-zero pivot
// is treated as a small epsilon to stay numerically safe regardless.
func gaussSolve(a [ContextDim][ContextDim]float64, rhs Context) Context {
	var m [ContextDim][ContextDim + 1]float64
	for i := 0; i < ContextDim; i++ {
		for j := 0; j < ContextDim; j++ {
			m[i][j] = a[i][j]
		}
		m[i][ContextDim] = rhs[i]
	}

	for col := 0; col < ContextDim; col++ {
		pivotRow := col
		pivotVal := abs(m[col][col])
		for r := col + 1; r < ContextDim; r++ {
			if abs(m[r][col]) > pivotVal {
				pivotRow = r
				pivotVal = abs(m[r][col])
			}
		}
		if pivotRow != col {
			m[col], m[pivotRow] = m[pivotRow], m[col]
		}

		pivot := m[col][col]
		if abs(pivot) < 1e-12 {
			pivot = 1e-12
		}
		for j := col; j <= ContextDim; j++ {
			m[col][j] /= pivot
		}

		for r := 0; r < ContextDim; r++ {
			if r == col {
				continue
			}
			factor := m[r][col]
			if factor == 0 {
				continue
			}
			for j := col; j <= ContextDim; j++ {
				m[r][j] -= factor * m[col][j]
			}
		}
	}

	var out Context
	for i := 0; i < ContextDim; i++ {
		out[i] = m[i][ContextDim]
	}
	return out
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
