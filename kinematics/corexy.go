package kinematics

// CoreXY implements the belt-coupled H-bot/CoreXY transform: motor axis
// A and B each drive a combination of the X and Y head motion through a
// shared belt factor. Z and E stay 1:1.
type CoreXY struct {
	factor float64 // CORE_FACTOR, typically 1.0
	limits map[string]AxisLimits
}

// NewCoreXY builds a CoreXY model. factor <= 0 defaults to 1.0.
func NewCoreXY(factor float64, limits map[string]AxisLimits) *CoreXY {
	if factor <= 0 {
		factor = 1.0
	}
	return &CoreXY{factor: factor, limits: limits}
}

func (k *CoreXY) AxisNames() []string { return []string{"a", "b", "z", "e"} }

func (k *CoreXY) ToAxes(pos Position) ([]float64, error) {
	a := pos.X + k.factor*pos.Y
	b := pos.X - k.factor*pos.Y
	return []float64{a, b, pos.Z, pos.E}, nil
}

// HeadMMOfDelta inverts the CoreXY transform: dx = (da+db)/2k, dy = (da-db)/2k.
func (k *CoreXY) HeadMMOfDelta(axisDelta []float64) []float64 {
	if len(axisDelta) < 2 {
		return axisDelta
	}
	da, db := axisDelta[0], axisDelta[1]
	dx := (da + db) / (2 * k.factor)
	dy := (da - db) / (2 * k.factor)
	out := make([]float64, len(axisDelta))
	out[0], out[1] = dx, dy
	copy(out[2:], axisDelta[2:])
	return out
}

func (k *CoreXY) CheckLimits(pos Position) error {
	if l, ok := k.limits["x"]; ok {
		if err := rangeCheck("x", pos.X, l.Min, l.Max); err != nil {
			return err
		}
	}
	if l, ok := k.limits["y"]; ok {
		if err := rangeCheck("y", pos.Y, l.Min, l.Max); err != nil {
			return err
		}
	}
	if l, ok := k.limits["z"]; ok {
		if err := rangeCheck("z", pos.Z, l.Min, l.Max); err != nil {
			return err
		}
	}
	return nil
}
