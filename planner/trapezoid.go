package planner

// fitTrapezoid computes the accelerate/plateau/decelerate cut-points
// and edge rates for one block, given its entry and exit speeds
// (squared, (mm/s)^2) and its already-computed nominal rate and
// acceleration. It is called once per block by recalculateTrapezoids
// whenever that block (or a neighbour) is marked for recalculation.
func fitTrapezoid(b *Block, entrySpeedSqr, exitSpeedSqr float64, minimalStepRate uint32) {
	n := float64(b.StepEventCount)

	initialRate := maxU32(uint32(ceilf(sqrt(entrySpeedSqr)/sqrt(b.NominalSpeedSqr)*float64(b.NominalRate))), minimalStepRate)
	finalRate := maxU32(uint32(ceilf(sqrt(exitSpeedSqr)/sqrt(b.NominalSpeedSqr)*float64(b.NominalRate))), minimalStepRate)
	if b.NominalSpeedSqr == 0 {
		initialRate = minimalStepRate
		finalRate = minimalStepRate
	}
	if initialRate > b.NominalRate {
		initialRate = b.NominalRate
	}
	if finalRate > b.NominalRate {
		finalRate = b.NominalRate
	}

	accel := b.AccelerationStepsPerS2
	nominalRate2 := float64(b.NominalRate) * float64(b.NominalRate)
	initialRate2 := float64(initialRate) * float64(initialRate)
	finalRate2 := float64(finalRate) * float64(finalRate)

	accelSteps := ceilf((nominalRate2 - initialRate2) / (2 * accel))
	decelSteps := floorf((nominalRate2 - finalRate2) / (2 * accel))
	if accelSteps < 0 {
		accelSteps = 0
	}
	if decelSteps < 0 {
		decelSteps = 0
	}

	plateau := n - accelSteps - decelSteps
	if plateau < 0 {
		accelSteps = clampf(ceilf((2*accel*n+finalRate2-initialRate2)/(4*accel)), 0, n)
		plateau = 0
	}

	b.AccelerateUntil = uint32(accelSteps)
	b.DecelerateAfter = uint32(accelSteps + plateau)
	b.InitialRate = initialRate
	b.FinalRate = finalRate
}

// maxAllowableSpeedSqr solves v0^2 = v1^2 - 2*a*d for v0^2 (a <= 0 for
// deceleration), clamped at zero: the maximum entry speed (squared)
// that still lets the block decelerate to targetSpeedSqr within d mm.
func maxAllowableSpeedSqr(accel, targetSpeedSqr, d float64) float64 {
	v := targetSpeedSqr - 2*accel*d
	if v < 0 {
		return 0
	}
	return v
}
