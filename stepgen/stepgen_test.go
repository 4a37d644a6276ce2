package stepgen

import (
	"testing"

	"machinecore/config"
	"machinecore/core"
	"machinecore/planner"
)

// fakeGPIO is an in-memory core.GPIODriver recording every pin write,
// standing in for the teacher's board-specific drivers under test.
type fakeGPIO struct {
	out      map[core.GPIOPin]bool
	pulls    map[core.GPIOPin]string
	stepHigh map[core.GPIOPin]int
}

func newFakeGPIO() *fakeGPIO {
	return &fakeGPIO{
		out:      make(map[core.GPIOPin]bool),
		pulls:    make(map[core.GPIOPin]string),
		stepHigh: make(map[core.GPIOPin]int),
	}
}

func (f *fakeGPIO) ConfigureOutput(pin core.GPIOPin) error { return nil }
func (f *fakeGPIO) ConfigureInputPullUp(pin core.GPIOPin) error {
	f.pulls[pin] = "up"
	return nil
}
func (f *fakeGPIO) ConfigureInputPullDown(pin core.GPIOPin) error {
	f.pulls[pin] = "down"
	return nil
}
func (f *fakeGPIO) SetPin(pin core.GPIOPin, value bool) error {
	f.out[pin] = value
	if value {
		f.stepHigh[pin]++
	}
	return nil
}
func (f *fakeGPIO) GetPin(pin core.GPIOPin) (bool, error) { return f.out[pin], nil }
func (f *fakeGPIO) ReadPin(pin core.GPIOPin) bool         { return f.out[pin] }

func newTestPlanner(t *testing.T) *planner.Planner {
	t.Helper()
	cfg := config.DefaultCartesianConfig()
	kin, err := planner.NewKinematicsModel(cfg)
	if err != nil {
		t.Fatalf("NewKinematicsModel: %v", err)
	}
	return planner.New(cfg, kin)
}

// runTimers pumps core's global timer scheduler until no timer is due
// at or before the given deadline, advancing core's clock in fixed
// steps the way a real ISR-driven scheduler would, one tick group at a
// time, rather than jumping straight to the deadline and risking the
// "timer in past" shutdown path.
func runTimers(t *testing.T, deadline uint32, step uint32) {
	t.Helper()
	for tick := core.GetTime(); tick < deadline; tick += step {
		core.SetTime(tick)
		core.ProcessTimers()
	}
	core.SetTime(deadline)
	core.ProcessTimers()
}

func TestGeneratorDrainsSingleBlock(t *testing.T) {
	core.SetTime(0)
	p := newTestPlanner(t)
	if !p.BufferLine(10, 0, 0, 0, 100, 0, 0) {
		t.Fatal("buffer_line rejected")
	}

	gpio := newFakeGPIO()
	g := New(p, gpio, 2)
	if err := g.ConfigurePin(0, AxisPins{Step: 1, Dir: 2}); err != nil {
		t.Fatalf("ConfigurePin: %v", err)
	}

	var done int
	g.SetBlockDoneHandler(func() { done++ })
	g.Kick()

	runTimers(t, core.TimerFreq, core.TimerFreq/20000)

	if p.QueueLen() != 0 {
		t.Fatalf("block never retired, QueueLen=%d", p.QueueLen())
	}
	if done != 1 {
		t.Errorf("onBlockDone fired %d times, want 1", done)
	}
	if gpio.stepHigh[1] != 800 {
		t.Errorf("recorded %d step pulses on axis 0, want 800", gpio.stepHigh[1])
	}
}

func TestGeneratorSkipsSyncBlock(t *testing.T) {
	core.SetTime(0)
	p := newTestPlanner(t)
	p.SetPositionSyncHandler(func(steps [planner.MaxBlockAxes]int64) {})
	p.BufferSyncBlock()

	gpio := newFakeGPIO()
	g := New(p, gpio, 2)
	g.Kick()

	if p.QueueLen() != 0 {
		t.Fatalf("sync block was not retired immediately, QueueLen=%d", p.QueueLen())
	}
	if g.running {
		t.Error("generator reports running with an empty queue")
	}
}

func TestInstantaneousRateStaysWithinBounds(t *testing.T) {
	core.SetTime(0)
	p := newTestPlanner(t)
	p.BufferLine(50, 0, 0, 0, 200, 0, 0)

	blk := p.PeekBlock()
	if blk == nil {
		t.Fatal("expected a block after buffer_line")
	}

	for i := uint32(0); i < blk.StepEventCount; i += blk.StepEventCount / 20 {
		rate := instantaneousRate(blk, i)
		if rate < blk.InitialRate && rate < blk.FinalRate {
			t.Errorf("step %d: rate %d below both initial (%d) and final (%d) rate", i, rate, blk.InitialRate, blk.FinalRate)
		}
		if rate > blk.NominalRate {
			t.Errorf("step %d: rate %d exceeds nominal_rate %d", i, rate, blk.NominalRate)
		}
	}
}

func TestHomerTriggersOnFirstMatch(t *testing.T) {
	core.SetTime(0)
	gpio := newFakeGPIO()
	core.SetGPIODriver(gpio)

	axes := []HomingAxis{
		{Index: 0, Pin: 10, PinHigh: true},
		{Index: 1, Pin: 11, PinHigh: true},
	}
	h := NewHomer(axes, core.TimerFromUS(100), 2, core.TimerFromUS(50))

	var triggered []int
	h.Start(func(axisIndex int) { triggered = append(triggered, axisIndex) })

	// Axis 0's endstop switch closes; axis 1's stays open throughout.
	gpio.SetPin(10, true)

	runTimers(t, core.TimerFromUS(100000), core.TimerFromUS(25))

	if len(triggered) != 1 {
		t.Fatalf("expected exactly one trigger callback, got %d: %v", len(triggered), triggered)
	}
	if triggered[0] != 0 {
		t.Errorf("triggered axis %d, want 0", triggered[0])
	}
	if gpio.pulls[10] != "up" || gpio.pulls[11] != "up" {
		t.Error("Homer did not configure endstop pins as pull-up inputs")
	}
}
