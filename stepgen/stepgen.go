// Package stepgen is the block consumer: a timer-driven step pulse
// generator that drains the planner's ring buffer one block at a time,
// honoring the trapezoidal rate profile fit_trapezoid computed rather
// than stepping at a single constant rate. Adapted from the teacher's
// standalone/stepgen.Stepper, which drove one axis at one fixed
// velocity with no ramp; this version drives every configured axis
// from one shared master timer via a digital differential analyzer
// (Bresenham), matching the per-step rate the block's profile
// prescribes at each point in the move.
package stepgen

import (
	"machinecore/core"
	"machinecore/planner"
)

// AxisPins names the GPIO pins one motor-space axis steps through.
type AxisPins struct {
	Step, Dir, Enable core.GPIOPin
	HasEnable         bool
	InvertDir         bool
	InvertEnable      bool
}

type axis struct {
	pins       AxisPins
	configured bool
	errAcc     int64
}

// Generator drives the planner's committed blocks onto GPIO step/dir
// pins in real time. One Generator serves every axis; there is exactly
// one master timer, not one per axis, since every axis in a block steps
// off the same step_event_count clock (§3's motor-space block shape).
type Generator struct {
	p    *planner.Planner
	gpio core.GPIODriver

	axes [planner.MaxBlockAxes]axis

	timer core.Timer

	cur     *planner.Block
	stepIdx uint32
	pulseUS uint32
	running bool

	onBlockDone func()
}

// New builds a Generator bound to p, draining blocks onto gpio. pulseUS
// is the step pulse high time (§5's MINIMUM_STEPPER_PULSE equivalent).
func New(p *planner.Planner, gpio core.GPIODriver, pulseUS uint32) *Generator {
	g := &Generator{p: p, gpio: gpio, pulseUS: pulseUS}
	g.timer.Handler = g.stepHandler
	return g
}

// ConfigurePin assigns the GPIO pins for motor-space axis index i
// (0..3, matching planner.Block.Steps indices) and puts them in their
// idle output state.
func (g *Generator) ConfigurePin(i int, pins AxisPins) error {
	if i < 0 || i >= planner.MaxBlockAxes {
		return errAxisRange
	}
	if err := g.gpio.ConfigureOutput(pins.Step); err != nil {
		return err
	}
	if err := g.gpio.ConfigureOutput(pins.Dir); err != nil {
		return err
	}
	if pins.HasEnable {
		if err := g.gpio.ConfigureOutput(pins.Enable); err != nil {
			return err
		}
		g.gpio.SetPin(pins.Enable, pins.InvertEnable)
	}
	g.axes[i] = axis{pins: pins, configured: true}
	return nil
}

// SetBlockDoneHandler installs a hook invoked on the scheduler's own
// goroutine each time a block finishes stepping, after it has been
// retired. Host code uses it to drive idle/status bookkeeping; it must
// not block.
func (g *Generator) SetBlockDoneHandler(fn func()) { g.onBlockDone = fn }

// Kick starts (or resumes) draining the ring buffer. It is a no-op if
// the generator is already running or the queue is currently empty;
// BufferLine and friends do not know to call this, so the host calls
// Kick after every admission that might have been the first into an
// idle generator.
func (g *Generator) Kick() {
	if g.running {
		return
	}
	if g.loadNextBlock() {
		g.running = true
		g.timer.WakeTime = core.GetTime()
		core.ScheduleTimer(&g.timer)
	}
}

// Stop immediately halts stepping without retiring the in-flight block,
// mirroring quick_stop's cut of whatever the consumer is mid-stride
// on (§4.6). The planner side of quick_stop (discarding the queue) is
// QuickStop's job, not this one; call both together.
func (g *Generator) Stop() {
	g.running = false
	g.cur = nil
}

func (g *Generator) loadNextBlock() bool {
	blk := g.p.PeekBlock()
	if blk == nil {
		return false
	}
	g.cur = blk
	g.stepIdx = 0
	for i := range g.axes {
		g.axes[i].errAcc = 0
	}

	if blk.IsSync() {
		g.p.SetBlockBusy(false)
		g.p.RetireBlock()
		if g.onBlockDone != nil {
			g.onBlockDone()
		}
		return g.loadNextBlock()
	}

	g.p.SetBlockBusy(true)
	core.RecordTiming(core.EvtLoadMove, 0, core.GetTime(), blk.StepEventCount, uint32(blk.DirectionBits))
	for i := range g.axes {
		if !g.axes[i].configured {
			continue
		}
		dir := blk.DirectionBits&(1<<uint(i)) != 0
		if g.axes[i].pins.InvertDir {
			dir = !dir
		}
		g.gpio.SetPin(g.axes[i].pins.Dir, dir)
	}
	return true
}

// stepHandler raises the step pulse on every axis due a step this
// tick, per the Bresenham accumulator driven off the master
// step_event_count clock, then schedules the pulse-down phase.
func (g *Generator) stepHandler(t *core.Timer) uint8 {
	blk := g.cur
	if blk == nil {
		g.running = false
		return core.SF_DONE
	}

	var fired uint32
	for i := range g.axes {
		if !g.axes[i].configured || blk.Steps[i] == 0 {
			continue
		}
		g.axes[i].errAcc += int64(blk.Steps[i])
		if g.axes[i].errAcc >= int64(blk.StepEventCount) {
			g.axes[i].errAcc -= int64(blk.StepEventCount)
			g.gpio.SetPin(g.axes[i].pins.Step, true)
			fired++
		}
	}
	if fired > 0 {
		core.AddStepCount(fired)
	}
	core.RecordTiming(core.EvtTimerFire, uint8(g.stepIdx%256), core.GetTime(), blk.StepEventCount, g.stepIdx)

	t.WakeTime = t.WakeTime + core.TimerFromUS(g.pulseUS)
	t.Handler = g.stepDownHandler
	return core.SF_RESCHEDULE
}

// stepDownHandler ends the pulse, advances the step index, and either
// schedules the next step at the profile's instantaneous rate or
// retires the finished block and loads the next one.
func (g *Generator) stepDownHandler(t *core.Timer) uint8 {
	for i := range g.axes {
		if g.axes[i].configured {
			g.gpio.SetPin(g.axes[i].pins.Step, false)
		}
	}

	blk := g.cur
	g.stepIdx++
	if g.stepIdx >= blk.StepEventCount {
		g.p.SetBlockBusy(false)
		g.p.RetireBlock()
		if g.onBlockDone != nil {
			g.onBlockDone()
		}
		if !g.loadNextBlock() {
			g.running = false
			return core.SF_DONE
		}
		blk = g.cur
	}

	rate := instantaneousRate(blk, g.stepIdx)
	interval := planner.IntervalFromRate(rate, core.TimerFreq)
	t.WakeTime += interval
	t.Handler = g.stepHandler
	return core.SF_RESCHEDULE
}

// instantaneousRate evaluates the block's three-segment trapezoid
// profile at step index i via the constant-acceleration speed/distance
// relation v^2 = v0^2 + 2as, rather than a precomputed per-step LUT.
func instantaneousRate(b *planner.Block, i uint32) uint32 {
	switch {
	case i < b.AccelerateUntil:
		v2 := float64(b.InitialRate)*float64(b.InitialRate) + 2*b.AccelerationStepsPerS2*float64(i)
		return clampRate(sqrtRate(v2), b.InitialRate, b.NominalRate)
	case i < b.DecelerateAfter:
		return b.NominalRate
	default:
		remaining := float64(b.StepEventCount - i)
		v2 := float64(b.FinalRate)*float64(b.FinalRate) + 2*b.AccelerationStepsPerS2*remaining
		return clampRate(sqrtRate(v2), b.FinalRate, b.NominalRate)
	}
}

func sqrtRate(v2 float64) uint32 {
	if v2 <= 0 {
		return 0
	}
	return uint32(isqrt(v2))
}

func isqrt(x float64) float64 {
	if x <= 0 {
		return 0
	}
	guess := x
	for i := 0; i < 20; i++ {
		guess = 0.5 * (guess + x/guess)
	}
	return guess
}

func clampRate(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type stepgenError string

func (e stepgenError) Error() string { return string(e) }

const errAxisRange = stepgenError("stepgen: axis index out of range")
