package kinematics

import "errors"

const piConst = 3.14159265358979323846

// Scara implements a two-link planar SCARA arm: shoulder and elbow
// joint angles (radians) as the motor-space axes, Z and E passed
// through unchanged.
type Scara struct {
	ProximalMM float64 // L1, shoulder-to-elbow
	DistalMM   float64 // L2, elbow-to-effector
	zLimit     AxisLimits
}

// NewScara builds a Scara model from the two arm-segment lengths.
func NewScara(proximalMM, distalMM float64, zLimit AxisLimits) *Scara {
	return &Scara{ProximalMM: proximalMM, DistalMM: distalMM, zLimit: zLimit}
}

func (s *Scara) AxisNames() []string { return []string{"shoulder", "elbow", "z", "e"} }

// ToAxes solves the planar two-link inverse kinematics for (pos.X, pos.Y).
func (s *Scara) ToAxes(pos Position) ([]float64, error) {
	l1, l2 := s.ProximalMM, s.DistalMM
	r2 := pos.X*pos.X + pos.Y*pos.Y
	r := sqrt(r2)
	if r > l1+l2 || r < abs(l1-l2) {
		return nil, errors.New("kinematics: scara position unreachable")
	}

	cosElbow := (r2 - l1*l1 - l2*l2) / (2 * l1 * l2)
	if cosElbow > 1 {
		cosElbow = 1
	}
	if cosElbow < -1 {
		cosElbow = -1
	}
	elbow := acos(cosElbow)

	shoulder := atan2(pos.Y, pos.X) - atan2(l2*sin(elbow), l1+l2*cos(elbow))

	return []float64{shoulder, elbow, pos.Z, pos.E}, nil
}

// HeadMMOfDelta is not a small-angle-exact inverse for SCARA; the
// planner only uses it to derive a junction direction unit vector, so
// a first-order approximation via the current arm geometry is
// sufficient (same caveat the spec records for Delta).
func (s *Scara) HeadMMOfDelta(axisDelta []float64) []float64 {
	if len(axisDelta) < 2 {
		return axisDelta
	}
	scale := s.ProximalMM + s.DistalMM
	out := make([]float64, len(axisDelta))
	out[0] = axisDelta[0] * scale
	out[1] = axisDelta[1] * scale
	copy(out[2:], axisDelta[2:])
	return out
}

func (s *Scara) CheckLimits(pos Position) error {
	r := sqrt(pos.X*pos.X + pos.Y*pos.Y)
	if r > s.ProximalMM+s.DistalMM {
		return ErrOutOfRange
	}
	return rangeCheck("z", pos.Z, s.zLimit.Min, s.zLimit.Max)
}

// acos via bisection over cos, which is already hand-rolled; avoids
// pulling in math for one transcendental used only at move-admission
// time (not the step-generation hot path).
func acos(x float64) float64 {
	if x <= -1 {
		return piConst
	}
	if x >= 1 {
		return 0
	}
	lo, hi := 0.0, piConst
	for i := 0; i < 40; i++ {
		mid := (lo + hi) / 2
		if cos(mid) > x {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

func atan2(y, x float64) float64 {
	r := sqrt(x*x + y*y)
	if r == 0 {
		return 0
	}
	a := acos(x / r)
	if y < 0 {
		return -a
	}
	return a
}
