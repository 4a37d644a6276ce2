package planner

import (
	"runtime"

	"machinecore/kinematics"
)

// SetQuickStopHandler installs the hook QuickStop invokes after
// swapping the ring buffer indices, giving the host a chance to signal
// the step generator to abandon whatever it is currently executing.
// Optional; QuickStop is safe to call with none installed.
func (p *Planner) SetQuickStopHandler(fn func()) { p.onQuickStop = fn }

// SetPositionSyncHandler installs the hook SetPositionMM /
// SetEPositionMM use to write the consumer's position register
// directly when the queue is empty (§4.6's set_position_mm).
// BufferSyncBlock does not call it: it always queues a sync block.
func (p *Planner) SetPositionSyncHandler(fn func(steps [MaxBlockAxes]int64)) {
	p.onPositionSync = fn
}

// SetEndstopHandler installs the hook EndstopTriggered delegates to;
// the planner itself never inspects or alters the queue on an endstop
// event (§4.6).
func (p *Planner) SetEndstopHandler(fn func(axis string)) { p.onEndstop = fn }

// Synchronize busy-waits until the ring buffer is empty and the
// clean-buffer flag (raised by QuickStop) has cleared, yielding to
// other goroutines each iteration — the hosted-Go equivalent of the
// teacher's idle-handler yield (§4.6, §5 "Suspension points").
func (p *Planner) Synchronize() {
	for {
		if p.cleanBuffer && !tickBefore(core_now(), p.cleanBufferUntil) {
			p.cleanBuffer = false
		}
		if p.rb.Empty() && !p.cleanBuffer {
			return
		}
		runtime.Gosched()
	}
}

// QuickStop discards the entire queue, raises the clean-buffer flag
// for the configured lockout window, and resets the junction-deviation
// direction history so the next admitted move starts a fresh chain
// (§4.6, P7). The queue is discarded by moving tail up to head; head
// itself is left where it is.
func (p *Planner) QuickStop() {
	p.rb.resetAll()
	p.cleanBuffer = true
	p.cleanBufferUntil = core_now() + uint32(p.cfg.Planner.QuickStopLockoutMS)*coreTicksPerMS
	p.firstMoveDelayArmed = false
	p.havePrevUnit = false
	p.previousNominalSpeedSqr = 0
	p.previousAccelerationStepsS2 = 0

	if p.onQuickStop != nil {
		p.onQuickStop()
	}
}

// BufferSyncBlock inserts a pseudo-block carrying no motion whose only
// effect on the consumer is to snapshot position_steps as the step
// generator's logical position at that point in the stream (§4.3).
// Back-pressure rules are the same as a motion block: if the ring
// buffer is momentarily full, it yields until a slot frees.
func (p *Planner) BufferSyncBlock() {
	p.bufferSyncBlock()
}

func (p *Planner) bufferSyncBlock() {
	for p.rb.Full() {
		runtime.Gosched()
	}
	var b Block
	b.Flags = BlockSyncPosition
	b.SyncPositionSteps = p.positionSteps
	slot := p.rb.HeadSlot()
	*slot = b
	p.rb.CommitHead()
}

// SetPositionMM implements set_position_mm: it recomputes the
// step-space counterpart of a head-space position, updates
// position_steps (and the position_mm shadow), and either publishes a
// sync block (queue non-empty) or writes the consumer's position
// register directly (queue empty). Two calls with the same argument
// are idempotent (P6): the second is a no-op.
func (p *Planner) SetPositionMM(x, y, z, e float64) {
	target := kinematics.Position{X: x, Y: y, Z: z, E: e}
	axisTarget, err := p.kin.ToAxes(target)
	if err != nil {
		p.diag("set_position_mm: kinematic transform failed: %v", err)
		return
	}

	var steps [MaxBlockAxes]int64
	n := len(axisTarget)
	if n > MaxBlockAxes {
		n = MaxBlockAxes
	}
	for i := 0; i < n; i++ {
		steps[i] = int64(roundf(axisTarget[i] * p.axisStepsPerMM(i)))
	}

	if steps == p.positionSteps {
		return
	}

	p.positionSteps = steps
	var mm [MaxBlockAxes]float64
	for i := 0; i < n; i++ {
		mm[i] = axisTarget[i]
	}
	p.positionMM = kinematics.Position{X: mm[0], Y: mm[1], Z: mm[2], E: mm[3]}
	p.havePrevUnit = false

	p.publishPositionUpdate()
}

// SetEPositionMM implements set_e_position_mm: it rewrites only the
// extruder axis's logical position, leaving geometric axes untouched
// (used after a filament-change or cold-pull reset).
func (p *Planner) SetEPositionMM(e float64) {
	steps := int64(roundf(e * p.extruders.Get(p.activeExtruder).StepsPerMM))
	if steps == p.positionSteps[3] {
		return
	}
	p.positionSteps[3] = steps
	p.positionMM.E = e
	p.publishPositionUpdate()
}

func (p *Planner) publishPositionUpdate() {
	if !p.rb.Empty() {
		p.bufferSyncBlock()
		return
	}
	if p.onPositionSync != nil {
		p.onPositionSync(p.positionSteps)
	}
}

// EndstopTriggered is a hook: the planner delegates the event to the
// step generator via the installed handler and never itself alters the
// queue (§4.6).
func (p *Planner) EndstopTriggered(axis string) {
	if p.onEndstop != nil {
		p.onEndstop(axis)
	}
}

// AxisPositionMM reports the planner's logical position for one axis,
// in mm (degrees for angular kinematics), for host-side status
// queries (M114-style reporting).
func (p *Planner) AxisPositionMM(axis string) float64 {
	if axis == "e" || axis == "E" {
		return float64(p.positionSteps[3]) / p.extruders.Get(p.activeExtruder).StepsPerMM
	}
	for i, name := range p.axisNames {
		if name == axis && i < MaxBlockAxes {
			return float64(p.positionSteps[i]) / p.axisStepsPerMM(i)
		}
	}
	return 0
}
