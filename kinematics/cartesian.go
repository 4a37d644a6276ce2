package kinematics

// AxisLimits is the travel range of one motor-space axis, in mm (or
// degrees for angular axes).
type AxisLimits struct {
	Min, Max float64
}

// Cartesian is a 1:1 mapping between head space and motor space: the
// common case for i3-style and gantry printers.
type Cartesian struct {
	limits map[string]AxisLimits
}

// NewCartesian builds a Cartesian model. limits may be nil or partial;
// axes absent from the map are unconstrained.
func NewCartesian(limits map[string]AxisLimits) *Cartesian {
	return &Cartesian{limits: limits}
}

func (c *Cartesian) AxisNames() []string { return []string{"x", "y", "z", "e"} }

func (c *Cartesian) ToAxes(pos Position) ([]float64, error) {
	return []float64{pos.X, pos.Y, pos.Z, pos.E}, nil
}

func (c *Cartesian) HeadMMOfDelta(axisDelta []float64) []float64 {
	out := make([]float64, len(axisDelta))
	copy(out, axisDelta)
	return out
}

func (c *Cartesian) CheckLimits(pos Position) error {
	if l, ok := c.limits["x"]; ok {
		if err := rangeCheck("x", pos.X, l.Min, l.Max); err != nil {
			return err
		}
	}
	if l, ok := c.limits["y"]; ok {
		if err := rangeCheck("y", pos.Y, l.Min, l.Max); err != nil {
			return err
		}
	}
	if l, ok := c.limits["z"]; ok {
		if err := rangeCheck("z", pos.Z, l.Min, l.Max); err != nil {
			return err
		}
	}
	return nil
}
