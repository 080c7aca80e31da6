package vecmath

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestInvertMatchesGonum(t *testing.T) {
	m := Mat3{A: [3][3]float64{
		{1.02, 0.01, -0.005},
		{0.003, 0.98, 0.02},
		{-0.01, 0.004, 1.01},
	}}

	inv, err := Invert(m)
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}

	dense := mat.NewDense(3, 3, []float64{
		m.A[0][0], m.A[0][1], m.A[0][2],
		m.A[1][0], m.A[1][1], m.A[1][2],
		m.A[2][0], m.A[2][1], m.A[2][2],
	})
	var want mat.Dense
	if err := want.Inverse(dense); err != nil {
		t.Fatalf("gonum inverse: %v", err)
	}

	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if d := math.Abs(inv.A[r][c] - want.At(r, c)); d > 1e-12 {
				t.Errorf("inv[%d][%d] = %g, gonum %g", r, c, inv.A[r][c], want.At(r, c))
			}
		}
	}
}

func TestInvertTimesOriginalIsIdentity(t *testing.T) {
	m := Mat3{A: [3][3]float64{
		{2, -1, 0},
		{-1, 2, -1},
		{0, -1, 2},
	}}
	inv, err := Invert(m)
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}

	for _, v := range []Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {3, -2, 7}} {
		got := inv.MulVec(m.MulVec(v))
		if got.Sub(v).Norm() > 1e-12 {
			t.Errorf("inv(m)·m·%v = %v", v, got)
		}
	}
}

func TestInvertSingular(t *testing.T) {
	m := Mat3{A: [3][3]float64{
		{1, 2, 3},
		{2, 4, 6},
		{0, 1, 1},
	}}
	if _, err := Invert(m); !errors.Is(err, ErrSingular) {
		t.Fatalf("expected ErrSingular, got %v", err)
	}
}

func TestIdentityInverse(t *testing.T) {
	inv, err := Invert(Identity())
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}
	if inv != Identity() {
		t.Errorf("inverse of identity = %v", inv)
	}
	if d := Identity().Det(); d != 1 {
		t.Errorf("det(I) = %g", d)
	}
}

func TestVectorOps(t *testing.T) {
	a := Vec3{X: 3, Y: 4, Z: 12}
	if n := a.Norm(); n != 13 {
		t.Errorf("norm = %g, want 13", n)
	}
	b := Vec3{X: 1, Y: 1, Z: 1}
	if got := a.Sub(b); got != (Vec3{X: 2, Y: 3, Z: 11}) {
		t.Errorf("sub = %v", got)
	}
	if got := a.Add(b); got != (Vec3{X: 4, Y: 5, Z: 13}) {
		t.Errorf("add = %v", got)
	}
	if rows := Identity().Rows(); rows[1][1] != 1 || rows[0][1] != 0 {
		t.Errorf("rows = %v", rows)
	}
}
