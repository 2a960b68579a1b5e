// Package geometry computes the radial/in-track/cross-track decomposition of
// a secondary object's position relative to a primary, and their relative
// velocity. Adapted from the vector-algebra helpers in
// ChristopherRabotin-smd/math.go (Norm/Unit/Cross/Dot), rebased onto
// gonum.org/v1/gonum/mat — the module's existing gonum dependency — instead
// of the smd teacher's now-superseded gonum/matrix/mat64 import.
package geometry

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// RIC holds the radial/in-track/cross-track miss components (km) and the
// relative velocity magnitude (km/s) at one epoch.
type RIC struct {
	RadialKm        float64
	InTrackKm       float64
	CrossTrackKm    float64
	RelativeVelKmS  float64
}

// Compute decomposes secondary position s (km) relative to primary position
// p (km) and velocity v (km/s) into the primary's RIC frame, per spec §4.2:
//
//	u_r = p / |p|
//	u_c = (p x v) / |p x v|
//	u_i = u_c x u_r
//	r   = s - p
//
// It is undefined (returns an error) if |p| or |p x v| is zero — the caller
// must guarantee non-degenerate state vectors, true for all LEO TLEs.
func Compute(p, v, secondaryPos, secondaryVel [3]float64) (RIC, error) {
	pVec := mat.NewVecDense(3, p[:])
	vVec := mat.NewVecDense(3, v[:])

	pNorm := mat.Norm(pVec, 2)
	if pNorm == 0 {
		return RIC{}, fmt.Errorf("geometry: degenerate primary position vector")
	}
	ur := scale(pVec, 1/pNorm)

	pCrossV := cross(p, v)
	pCrossVNorm := mat.Norm(mat.NewVecDense(3, pCrossV[:]), 2)
	if pCrossVNorm == 0 {
		return RIC{}, fmt.Errorf("geometry: degenerate angular momentum vector")
	}
	uc := scaleArr(pCrossV, 1/pCrossVNorm)
	ui := crossVec(uc, ur)

	r := [3]float64{
		secondaryPos[0] - p[0],
		secondaryPos[1] - p[1],
		secondaryPos[2] - p[2],
	}
	relVel := [3]float64{
		secondaryVel[0] - v[0],
		secondaryVel[1] - v[1],
		secondaryVel[2] - v[2],
	}

	return RIC{
		RadialKm:       dotArr(r, toArr(ur)),
		InTrackKm:      dotArr(r, ui),
		CrossTrackKm:   dotArr(r, uc),
		RelativeVelKmS: mat.Norm(mat.NewVecDense(3, relVel[:]), 2),
	}, nil
}

func scale(v *mat.VecDense, s float64) *mat.VecDense {
	out := mat.NewVecDense(3, nil)
	out.ScaleVec(s, v)
	return out
}

func toArr(v *mat.VecDense) [3]float64 {
	return [3]float64{v.AtVec(0), v.AtVec(1), v.AtVec(2)}
}

func scaleArr(a [3]float64, s float64) [3]float64 {
	return [3]float64{a[0] * s, a[1] * s, a[2] * s}
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func crossVec(a [3]float64, b *mat.VecDense) [3]float64 {
	return cross(a, toArr(b))
}

func dotArr(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}
