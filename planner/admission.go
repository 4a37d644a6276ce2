package planner

import (
	"runtime"

	"machinecore/kinematics"
)

// BufferLine is the external move-admission entry point (§4.3). It
// converts a head-space target into a queued, trapezoid-fitted block,
// running the full position-modifier / kinematic-transform / step
// quantisation / speed-limiting / junction pipeline, then triggers the
// look-ahead recalculation. It returns false only when the clean-buffer
// flag set by quick_stop is still active; every other outcome —
// including a silently absorbed zero-length or cold-extrude move — is
// success.
func (p *Planner) BufferLine(rx, ry, rz, e, frMMS float64, extruder int, mmHint float64) bool {
	if p.cleanBuffer {
		if tickBefore(core_now(), p.cleanBufferUntil) {
			return false
		}
		p.cleanBuffer = false
	}

	p.SetActiveExtruder(extruder)

	target := kinematics.Position{X: rx, Y: ry, Z: rz, E: e}
	if err := p.kin.CheckLimits(target); err != nil {
		p.diag("position out of range, absorbing move: %v", err)
		return true
	}

	axisTarget, err := p.kin.ToAxes(target)
	if err != nil {
		p.diag("kinematic transform failed, absorbing move: %v", err)
		return true
	}

	return p.bufferSegment(axisTarget, frMMS, mmHint)
}

// bufferSegment operates in motor-axis space: it quantises the target
// into integer step counts and hands off to bufferSteps.
func (p *Planner) bufferSegment(axisTarget []float64, frMMS, mmHint float64) bool {
	var axisTargetMM [MaxBlockAxes]float64
	n := len(axisTarget)
	if n > MaxBlockAxes {
		n = MaxBlockAxes
	}
	for i := 0; i < n; i++ {
		axisTargetMM[i] = axisTarget[i]
	}

	var targetSteps [MaxBlockAxes]int64
	for i := 0; i < MaxBlockAxes; i++ {
		targetSteps[i] = int64(roundf(axisTargetMM[i] * p.axisStepsPerMM(i)))
	}

	return p.bufferSteps(axisTargetMM, targetSteps, frMMS, mmHint)
}

// bufferSteps is the bulk of §4.3's move-admission pipeline: it
// quantises the requested move against the current position, applies
// the admission rejects/absorbs, fills a new block, commits it to the
// ring buffer, and kicks off look-ahead recalculation.
func (p *Planner) bufferSteps(axisTargetMM [MaxBlockAxes]float64, targetSteps [MaxBlockAxes]int64, frMMS, mmHint float64) bool {
	pc := p.cfg.Planner
	extr := p.extruders.Get(p.activeExtruder)

	var deltaSteps [MaxBlockAxes]int64
	for i := 0; i < MaxBlockAxes; i++ {
		deltaSteps[i] = targetSteps[i] - p.positionSteps[i]
	}

	// §4.3 step 4: cold/over-long extrusion absorption.
	if deltaSteps[3] != 0 {
		if p.extruderTempC != nil && p.extruderTempC(p.activeExtruder) < extr.MinExtrudeTempC {
			p.diag("cold extrusion prevented, absorbing E move")
			p.positionSteps[3] = targetSteps[3]
			deltaSteps[3] = 0
		} else if absf(float64(deltaSteps[3])*extr.EFactor) > extr.StepsPerMM*extr.MaxExtrudeLenMM {
			p.diag("extrude length exceeds MAX_EXTRUDE_LENGTH, absorbing E move")
			p.positionSteps[3] = targetSteps[3]
			deltaSteps[3] = 0
		}
	}

	// §4.3 step 4: below-minimum-steps drop.
	geomMax := absI64(deltaSteps[0])
	if v := absI64(deltaSteps[1]); v > geomMax {
		geomMax = v
	}
	if v := absI64(deltaSteps[2]); v > geomMax {
		geomMax = v
	}
	if geomMax < int64(pc.MinStepsPerSegment) && absI64(deltaSteps[3]) < int64(pc.MinStepsPerSegment) {
		return true
	}

	var b Block
	b.DirectionBits = 0
	for i := 0; i < MaxBlockAxes; i++ {
		b.Steps[i] = uint32(absI64(deltaSteps[i]))
		if deltaSteps[i] < 0 {
			b.DirectionBits |= 1 << uint(i)
		}
	}

	b.StepEventCount = b.Steps[0]
	for i := 1; i < MaxBlockAxes; i++ {
		b.StepEventCount = maxU32(b.StepEventCount, b.Steps[i])
	}
	if b.StepEventCount == 0 {
		return true
	}

	// §4.3 step 5: millimeters, computed off the position_mm shadow to
	// avoid the rounding drift integer step positions would introduce.
	var deltaMM [MaxBlockAxes]float64
	for i := 0; i < MaxBlockAxes; i++ {
		deltaMM[i] = axisTargetMM[i] - p.positionMMAxis(i)
	}
	// Head direction bits come from the head-space delta, which differs
	// from the motor-space one on CoreXY.
	for i, d := range p.kin.HeadMMOfDelta(deltaMM[:]) {
		if i < MaxBlockAxes && d < 0 {
			b.HeadDirBits |= 1 << uint(i)
		}
	}
	if mmHint > 0 {
		b.Millimeters = mmHint
	} else {
		sum := 0.0
		for i := 0; i < 3; i++ {
			sum += deltaMM[i] * deltaMM[i]
		}
		if sum > 0 {
			b.Millimeters = sqrt(sum)
		} else {
			b.Millimeters = absf(deltaMM[3])
		}
	}
	if b.Millimeters <= 0 {
		b.Millimeters = float64(b.StepEventCount) / p.axisStepsPerMM(0)
		if b.Millimeters <= 0 {
			b.Millimeters = 1e-6
		}
	}

	// §4.3 step 6: feedrate floor.
	if deltaSteps[3] != 0 {
		if frMMS < pc.MinFeedrateMMS {
			frMMS = pc.MinFeedrateMMS
		}
	} else if frMMS < pc.MinTravelFeedrateMMS {
		frMMS = pc.MinTravelFeedrateMMS
	}

	// §4.3 step 7: provisional rate/speed.
	b.NominalSpeedSqr = frMMS * frMMS
	b.NominalRate = uint32(ceilf(float64(b.StepEventCount) * frMMS / b.Millimeters))

	// §4.3 step 8: per-axis feedrate cap.
	var currentSpeed [MaxBlockAxes]float64
	shrink := 1.0
	for i := 0; i < MaxBlockAxes; i++ {
		currentSpeed[i] = deltaMM[i] * (frMMS / b.Millimeters)
		maxFR := p.axisMaxFeedrate(i)
		if maxFR <= 0 {
			continue
		}
		if absf(currentSpeed[i]) > maxFR {
			required := maxFR / absf(currentSpeed[i])
			if required < shrink {
				shrink = required
			}
		}
	}
	if shrink < 1.0 {
		frMMS *= shrink
		b.NominalSpeedSqr = frMMS * frMMS
		b.NominalRate = uint32(ceilf(float64(b.StepEventCount) * frMMS / b.Millimeters))
	}

	// §4.3 step 9: effective acceleration. Travel/print/retract
	// acceleration is configured in mm/s^2; it is converted into the
	// step-rate domain via this move's blended steps/mm
	// (step_event_count/millimeters) so it can be min'd against each
	// axis's own steps/s^2 cap, then converted back to mm/s^2.
	blendedStepsPerMM := float64(b.StepEventCount) / b.Millimeters

	baseAccelMMS2 := pc.TravelAccelMMS2
	if deltaSteps[3] != 0 {
		baseAccelMMS2 = pc.PrintAccelMMS2
	}
	if geomMax == 0 {
		baseAccelMMS2 = pc.RetractAccelMMS2
	}

	accelStepsPerS2 := baseAccelMMS2 * blendedStepsPerMM
	for i := 0; i < MaxBlockAxes; i++ {
		if b.Steps[i] == 0 {
			continue
		}
		axisAccelStepsPerS2 := p.axisMaxAccel(i) * p.axisStepsPerMM(i)
		perAxisCap := axisAccelStepsPerS2 * float64(b.StepEventCount) / float64(b.Steps[i])
		if perAxisCap < accelStepsPerS2 {
			accelStepsPerS2 = perAxisCap
		}
	}
	b.AccelerationStepsPerS2 = accelStepsPerS2
	b.Acceleration = accelStepsPerS2 / blendedStepsPerMM

	// §4.3 step 10: max_entry_speed_sqr via the configured junction policy.
	var unit [MaxBlockAxes]float64
	mag := 0.0
	for i := 0; i < MaxBlockAxes; i++ {
		mag += deltaMM[i] * deltaMM[i]
	}
	mag = sqrt(mag)
	if mag > 0 {
		for i := range unit {
			unit[i] = deltaMM[i] / mag
		}
	}
	b.MaxEntrySpeedSqr = p.junctionMaxEntrySpeedSqr(unit, b.Millimeters, b.NominalSpeedSqr)

	// §4.3 step 11: initial entry speed.
	minSpeedSqr := pc.MinimumPlannerSpeedMMS * pc.MinimumPlannerSpeedMMS
	b.EntrySpeedSqr = minSpeedSqr

	// §4.3 step 12: flags.
	b.Flags = BlockRecalculate
	allowableAtNominal := maxAllowableSpeedSqr(-b.Acceleration, minSpeedSqr, b.Millimeters)
	b.setNominalLength(b.NominalSpeedSqr <= allowableAtNominal)

	// §4.3 step 13: commit. Back-pressure, not an error (§7): if the ring
	// buffer is momentarily full, yield to the step generator flow until
	// it retires a block and room exists.
	for p.rb.Full() {
		runtime.Gosched()
	}
	wasEmpty := p.rb.Empty()
	slot := p.rb.HeadSlot()
	*slot = b
	for i := 0; i < MaxBlockAxes; i++ {
		p.positionSteps[i] = targetSteps[i]
	}
	p.positionMM = kinematics.Position{
		X: axisTargetMM[0], Y: axisTargetMM[1], Z: axisTargetMM[2], E: axisTargetMM[3],
	}
	p.previousNominalSpeedSqr = b.NominalSpeedSqr
	p.previousAccelerationStepsS2 = b.AccelerationStepsPerS2
	p.rb.CommitHead()

	if wasEmpty {
		p.firstMoveDelayArmed = true
		p.firstMoveDeadlineTicks = core_now() + uint32(pc.BlockDelayFirstMoveMS)*coreTicksPerMS
	}

	// §4.3 step 14.
	p.recalculate()

	return true
}

// positionMMAxis returns the last committed head-axis position for
// axis i, from the floating-point shadow position (§3's position_mm)
// kept to regenerate direction-unit vectors without rounding drift.
func (p *Planner) positionMMAxis(i int) float64 {
	switch i {
	case 0:
		return p.positionMM.X
	case 1:
		return p.positionMM.Y
	case 2:
		return p.positionMM.Z
	case 3:
		return p.positionMM.E
	}
	return 0
}

func roundf(x float64) float64 {
	if x < 0 {
		return -floorf(-x + 0.5)
	}
	return floorf(x + 0.5)
}

func absI64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}
