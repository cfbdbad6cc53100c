// Package curvefit fits and evaluates the quadratic curves that map a control
// voltage to a fan speed and a fan speed to a PWM duty.
package curvefit

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrLengthMismatch = errors.New("curvefit: x and y lengths differ")
	ErrTooFewSamples  = errors.New("curvefit: need at least 3 samples")
	ErrDegenerate     = errors.New("curvefit: samples do not determine a quadratic")
	ErrNonFinite      = errors.New("curvefit: sample is NaN or Inf")
)

// MinSamples is the smallest sample count with a unique least-squares quadratic.
const MinSamples = 3

// Coefficients describes y = A*x^2 + B*x + C.
type Coefficients struct {
	A float32 `json:"a"`
	B float32 `json:"b"`
	C float32 `json:"c"`
}

// Eval returns A*x^2 + B*x + C.
func (c Coefficients) Eval(x float32) float32 {
	return c.A*x*x + c.B*x + c.C
}

func (c Coefficients) String() string {
	return fmt.Sprintf("%g, %g, %g", c.A, c.B, c.C)
}

// Fit returns the quadratic minimizing the squared residual over the
// (xs[i], ys[i]) pairs.
//
// The design matrix has columns [x^2, x, 1] and is solved by QR
// factorization. Inputs that cannot determine a unique quadratic are
// rejected instead of producing a least-norm answer.
func Fit(xs, ys []float32) (Coefficients, error) {
	if len(xs) != len(ys) {
		return Coefficients{}, fmt.Errorf("%w (x=%d y=%d)", ErrLengthMismatch, len(xs), len(ys))
	}
	n := len(xs)
	if n < MinSamples {
		return Coefficients{}, fmt.Errorf("%w (got %d)", ErrTooFewSamples, n)
	}

	distinct := make(map[float32]struct{}, n)
	a := mat.NewDense(n, 3, nil)
	b := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		x := float64(xs[i])
		y := float64(ys[i])
		if !finite(x) || !finite(y) {
			return Coefficients{}, fmt.Errorf("%w (index %d)", ErrNonFinite, i)
		}
		distinct[xs[i]] = struct{}{}
		a.Set(i, 0, x*x)
		a.Set(i, 1, x)
		a.Set(i, 2, 1)
		b.SetVec(i, y)
	}
	if len(distinct) < MinSamples {
		return Coefficients{}, fmt.Errorf("%w (%d distinct x values)", ErrDegenerate, len(distinct))
	}

	var qr mat.QR
	qr.Factorize(a)
	var sol mat.VecDense
	if err := qr.SolveVecTo(&sol, false, b); err != nil {
		return Coefficients{}, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}

	return Coefficients{
		A: float32(sol.AtVec(0)),
		B: float32(sol.AtVec(1)),
		C: float32(sol.AtVec(2)),
	}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
