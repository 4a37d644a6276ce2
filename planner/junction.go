package planner

// junctionMaxEntrySpeedSqr implements §4.3 step 10's two mutually
// exclusive policies for the upper bound on a new block's entry speed.
// Policy A (junction deviation) is preferred per spec; policy B
// (classic per-axis jerk) is kept for configurations that set
// UseJunctionDeviation = false.
func (p *Planner) junctionMaxEntrySpeedSqr(unit [MaxBlockAxes]float64, millimeters, nominalSpeedSqr float64) float64 {
	minSpeedSqr := p.cfg.Planner.MinimumPlannerSpeedMMS * p.cfg.Planner.MinimumPlannerSpeedMMS

	if !p.havePrevUnit {
		p.prevUnit = unit
		p.havePrevUnit = true
		return minSpeedSqr
	}

	var result float64
	if p.cfg.Planner.UseJunctionDeviation {
		result = p.junctionDeviationMaxEntrySpeedSqr(unit, millimeters, minSpeedSqr)
	} else {
		result = p.classicJerkMaxEntrySpeedSqr(unit, nominalSpeedSqr)
	}

	ceiling := minF(nominalSpeedSqr, p.previousNominalSpeedSqr)
	if result > ceiling {
		result = ceiling
	}

	p.prevUnit = unit
	return result
}

// junctionDeviationMaxEntrySpeedSqr is policy A of §4.3 step 10.
func (p *Planner) junctionDeviationMaxEntrySpeedSqr(unit [MaxBlockAxes]float64, millimeters, minSpeedSqr float64) float64 {
	dot := 0.0
	for i := 0; i < MaxBlockAxes; i++ {
		dot += p.prevUnit[i] * unit[i]
	}
	cosTheta := -dot

	if cosTheta > 1-junctionEpsilon {
		return minSpeedSqr
	}

	clamped := cosTheta
	if clamped < -1+junctionEpsilon {
		clamped = -1 + junctionEpsilon
	}

	sinHalf := sqrt((1 - clamped) / 2)

	var direction [MaxBlockAxes]float64
	for i := range direction {
		direction[i] = unit[i] - p.prevUnit[i]
	}
	aj := p.limitAccelAlong(direction)

	maxEntrySq := aj * p.cfg.Planner.JunctionDeviationMM * sinHalf / (1 - sinHalf)

	if millimeters < 1.0 && cosTheta < -0.70710678118654752 {
		theta := acos(cosTheta)
		if theta > minimumArcAngle {
			theta = minimumArcAngle
		}
		arcLimit := millimeters * aj / (piConst - theta)
		if arcLimit < maxEntrySq {
			maxEntrySq = arcLimit
		}
	}

	return maxEntrySq
}

// classicJerkMaxEntrySpeedSqr is policy B of §4.3 step 10: a junction
// speed bound derived from each axis's configured jerk rather than a
// geometric deviation. For axes that reverse direction at the
// junction, the full velocity swing (the sum of magnitudes) must fit
// within the axis jerk; for axes that coast in the same direction,
// only the velocity delta must.
func (p *Planner) classicJerkMaxEntrySpeedSqr(unit [MaxBlockAxes]float64, nominalSpeedSqr float64) float64 {
	nominalSpeed := sqrt(nominalSpeedSqr)
	prevNominalSpeed := sqrt(p.previousNominalSpeedSqr)
	vmax := nominalSpeed

	for i := 0; i < MaxBlockAxes; i++ {
		jerk := p.axisMaxJerk(i)
		if jerk <= 0 {
			continue
		}
		vOld := p.prevUnit[i] * prevNominalSpeed
		vNew := unit[i] * nominalSpeed

		var vSwing float64
		if (vOld >= 0) == (vNew >= 0) {
			vSwing = absf(vNew - vOld)
		} else {
			vSwing = absf(vNew) + absf(vOld)
		}

		if vSwing > jerk && vSwing > 0 {
			allowed := jerk / vSwing * vmax
			if allowed < vmax {
				vmax = allowed
			}
		}
	}

	return vmax * vmax
}

// limitAccelAlong computes the maximum acceleration (mm/s^2) the
// per-axis acceleration limits allow along the junction direction
// vector (the unit-vector difference unit - prev_unit passed in
// un-renormalized, per-component magnitude up to 2 for a full
// reversal): each axis's own cap divided by its raw component of that
// vector, the smallest such cap wins. For an isotropic per-axis
// acceleration configuration this reduces to the axis limit itself at
// a right-angle corner, matching the spec's worked example.
func (p *Planner) limitAccelAlong(direction [MaxBlockAxes]float64) float64 {
	zero := true
	for _, d := range direction {
		if d != 0 {
			zero = false
			break
		}
	}
	if zero {
		return p.cfg.Planner.TravelAccelMMS2
	}

	limit := 1e18
	for i := 0; i < MaxBlockAxes; i++ {
		frac := absf(direction[i])
		if frac < 1e-9 {
			continue
		}
		cap := p.axisMaxAccel(i) / frac
		if cap < limit {
			limit = cap
		}
	}
	return limit
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
