// Package measure implements the dimensional measurement engine: body and
// terminal dimensions via band edge scanning and robust line fitting.
package measure

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"chipaoi/pkg/geometry"
)

const (
	// Iterative outlier rejection: refit with a shrinking residual
	// tolerance, starting wide enough to survive dust speckle and
	// finishing tight enough to pin the true edge.
	fitIterations = 6
	fitStartTol   = 15.0
	fitTolStep    = 2.0
	fitMinTol     = 5.0

	// minEdgePoints is the smallest point set a fit may rest on.
	minEdgePoints = 3
)

// FitLineRobust fits a line through edge points with iterative outlier
// rejection: refit repeatedly, discarding points whose residual exceeds a
// shrinking tolerance, stopping early if fewer than minEdgePoints survive.
// vertical selects x = f(y) instead of y = f(x). Returns the fitted line, the
// number of inlier points, and whether the fit is usable.
func FitLineRobust(points []geometry.Point2D, vertical bool) (geometry.Line, int, bool) {
	work := make([]geometry.Point2D, len(points))
	copy(work, points)
	if len(work) < minEdgePoints {
		return geometry.Line{}, len(work), false
	}

	line, ok := leastSquaresLine(work, vertical)
	if !ok {
		return geometry.Line{}, len(work), false
	}

	tol := fitStartTol
	for iter := 0; iter < fitIterations; iter++ {
		kept := work[:0:0]
		for _, p := range work {
			if residual(line, p) <= tol {
				kept = append(kept, p)
			}
		}
		if len(kept) < minEdgePoints {
			break
		}
		work = kept

		refit, ok := leastSquaresLine(work, vertical)
		if !ok {
			break
		}
		line = refit

		tol -= fitTolStep
		if tol < fitMinTol {
			tol = fitMinTol
		}
	}

	return line, len(work), true
}

// leastSquaresLine solves the overdetermined system [t 1] * [slope intercept]
// = dep via QR decomposition.
func leastSquaresLine(points []geometry.Point2D, vertical bool) (geometry.Line, bool) {
	n := len(points)
	if n < 2 {
		return geometry.Line{}, false
	}

	a := mat.NewDense(n, 2, nil)
	b := mat.NewVecDense(n, nil)
	for i, p := range points {
		t, dep := p.X, p.Y
		if vertical {
			t, dep = p.Y, p.X
		}
		a.Set(i, 0, t)
		a.Set(i, 1, 1)
		b.SetVec(i, dep)
	}

	var qr mat.QR
	qr.Factorize(a)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, b); err != nil {
		return geometry.Line{}, false
	}

	return geometry.Line{
		Slope:     params.AtVec(0),
		Intercept: params.AtVec(1),
		Vertical:  vertical,
	}, true
}

// residual returns the absolute distance of the point's dependent coordinate
// from the line.
func residual(line geometry.Line, p geometry.Point2D) float64 {
	if line.Vertical {
		return math.Abs(p.X - line.Eval(p.Y))
	}
	return math.Abs(p.Y - line.Eval(p.X))
}
