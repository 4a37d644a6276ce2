package planner

import (
	"math"
	"testing"
	"time"

	"machinecore/config"
	"machinecore/core"
)

func newTestPlanner(t *testing.T) *Planner {
	t.Helper()
	cfg := config.DefaultCartesianConfig()
	kin, err := NewKinematicsModel(cfg)
	if err != nil {
		t.Fatalf("NewKinematicsModel: %v", err)
	}
	return New(cfg, kin)
}

func drainAll(p *Planner) []*Block {
	var out []*Block
	for {
		blk := p.PeekBlock()
		if blk == nil {
			return out
		}
		cp := *blk
		out = append(out, &cp)
		p.SetBlockBusy(false)
		p.RetireBlock()
	}
}

// S1: a single straight move reaches the numbers the spec lays out for
// an 80 steps/mm X axis move of 10mm at 100 mm/s.
func TestSingleStraightMove(t *testing.T) {
	p := newTestPlanner(t)
	if !p.BufferLine(10, 0, 0, 0, 100, 0, 0) {
		t.Fatal("buffer_line rejected")
	}

	blocks := drainAll(p)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	b := blocks[0]

	if b.Steps[0] != 800 {
		t.Errorf("steps.x = %d, want 800", b.Steps[0])
	}
	if b.StepEventCount != 800 {
		t.Errorf("step_event_count = %d, want 800", b.StepEventCount)
	}
	if math.Abs(b.Millimeters-10) > 1e-9 {
		t.Errorf("millimeters = %v, want 10", b.Millimeters)
	}
	if b.NominalRate != 8000 {
		t.Errorf("nominal_rate = %d, want 8000", b.NominalRate)
	}

	minSpeedSqr := p.cfg.Planner.MinimumPlannerSpeedMMS * p.cfg.Planner.MinimumPlannerSpeedMMS
	if math.Abs(b.EntrySpeedSqr-minSpeedSqr) > 1e-9 {
		t.Errorf("entry_speed_sqr = %v, want %v", b.EntrySpeedSqr, minSpeedSqr)
	}

	// Entry and exit are both MINIMUM_PLANNER_SPEED, so the trapezoid is
	// symmetric: the acceleration ramp and the deceleration ramp differ
	// by at most the 1-step ceil/floor rounding of the fitter.
	decelSteps := int(b.StepEventCount) - int(b.DecelerateAfter)
	diff := int(b.AccelerateUntil) - decelSteps
	if diff > 1 || diff < -1 {
		t.Errorf("accelerate_until (%d) and deceleration steps (%d) not within 1 step of each other", b.AccelerateUntil, decelSteps)
	}
}

// S2: three successive colinear moves reach full plateau speed between
// each pair, not just the minimum junction speed.
func TestColinearChain(t *testing.T) {
	p := newTestPlanner(t)
	for i := 1; i <= 3; i++ {
		if !p.BufferLine(float64(i)*10, 0, 0, 0, 100, 0, 0) {
			t.Fatalf("move %d rejected", i)
		}
	}

	blocks := drainAll(p)
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}

	nominal := 100.0 * 100.0
	for i, b := range blocks[:2] {
		if math.Abs(b.NominalSpeedSqr-nominal) > 1e-6 {
			t.Errorf("block %d nominal_speed_sqr = %v, want %v", i, b.NominalSpeedSqr, nominal)
		}
	}
	// Blocks between two full-speed neighbours should reach the shared
	// plateau speed at their junctions once recalculation settles.
	if blocks[1].EntrySpeedSqr < 1.0 {
		t.Errorf("block 1 entry_speed_sqr too low for a colinear chain: %v", blocks[1].EntrySpeedSqr)
	}
}

// S3: a right-angle corner at known junction_deviation/accel produces
// the junction speed the spec derives by hand.
func TestRightAngleCorner(t *testing.T) {
	p := newTestPlanner(t)
	if !p.BufferLine(10, 0, 0, 0, 100, 0, 0) {
		t.Fatal("first move rejected")
	}
	if !p.BufferLine(10, 10, 0, 0, 100, 0, 0) {
		t.Fatal("second move rejected")
	}

	blocks := drainAll(p)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}

	wantEntrySqr := 3000.0 * 0.05 * (math.Sqrt2 / 2) / (1 - math.Sqrt2/2)
	got := blocks[1].MaxEntrySpeedSqr
	if math.Abs(got-wantEntrySqr) > wantEntrySqr*0.05 {
		t.Errorf("max_entry_speed_sqr = %v, want ~%v", got, wantEntrySqr)
	}
}

// S4: a sharp reversal clamps the junction speed down to the
// minimum-planner-speed floor instead of diverging.
func TestSharpReverse(t *testing.T) {
	p := newTestPlanner(t)
	if !p.BufferLine(0.5, 0, 0, 0, 60, 0, 0) {
		t.Fatal("first move rejected")
	}
	if !p.BufferLine(0, 0, 0, 0, 60, 0, 0) {
		t.Fatal("second move rejected")
	}

	blocks := drainAll(p)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}

	minSpeedSqr := p.cfg.Planner.MinimumPlannerSpeedMMS * p.cfg.Planner.MinimumPlannerSpeedMMS
	if blocks[1].MaxEntrySpeedSqr > minSpeedSqr+1e-9 {
		t.Errorf("reversal max_entry_speed_sqr = %v, want clamp to %v", blocks[1].MaxEntrySpeedSqr, minSpeedSqr)
	}
}

// S5: once the ring buffer is full, buffer_line blocks until the
// consumer retires a block, rather than dropping the move.
func TestQueueFullBackpressure(t *testing.T) {
	p := newTestPlanner(t)
	queueCap := int(p.rb.capacity())

	for i := 0; i < queueCap-1; i++ {
		if !p.BufferLine(float64(i+1)*1.0, 0, 0, 0, 10, 0, 1.0) {
			t.Fatalf("move %d rejected", i)
		}
	}
	if !p.rb.Full() {
		t.Fatalf("expected ring buffer full after %d moves, len=%d", queueCap-1, p.rb.Len())
	}

	admitted := make(chan bool, 1)
	go func() {
		admitted <- p.BufferLine(float64(queueCap)*1.0, 0, 0, 0, 10, 0, 1.0)
	}()

	select {
	case <-admitted:
		t.Fatal("buffer_line returned while queue was still full")
	case <-time.After(30 * time.Millisecond):
	}

	p.SetBlockBusy(false)
	p.RetireBlock()

	select {
	case ok := <-admitted:
		if !ok {
			t.Fatal("buffer_line returned false after room freed")
		}
	case <-time.After(time.Second):
		t.Fatal("buffer_line never returned after room freed")
	}
}

// S6/P7: quick_stop empties the queue, arms the clean-buffer lockout,
// and buffer_line refuses new moves until the lockout clears.
func TestQuickStopLockout(t *testing.T) {
	p := newTestPlanner(t)
	core.SetTime(0)

	for i := 0; i < 10; i++ {
		if !p.BufferLine(float64(i+1)*1.0, 0, 0, 0, 10, 0, 1.0) {
			t.Fatalf("move %d rejected", i)
		}
	}

	p.QuickStop()

	if p.rb.Head() != p.rb.Tail() {
		t.Fatalf("quick_stop left head(%d) != tail(%d)", p.rb.Head(), p.rb.Tail())
	}
	if !p.cleanBuffer {
		t.Fatal("quick_stop did not set the clean-buffer flag")
	}
	if p.BufferLine(1, 0, 0, 0, 10, 0, 1) {
		t.Fatal("buffer_line admitted a move during the lockout window")
	}

	core.SetTime(p.cleanBufferUntil + 1)
	if !p.BufferLine(1, 0, 0, 0, 10, 0, 1) {
		t.Fatal("buffer_line still refusing moves after the lockout window elapsed")
	}
}

// P6: two set_position_mm calls with the same argument are idempotent.
func TestSetPositionIdempotent(t *testing.T) {
	p := newTestPlanner(t)
	var synced int
	p.SetPositionSyncHandler(func(steps [MaxBlockAxes]int64) { synced++ })

	p.SetPositionMM(5, 5, 0, 0)
	if synced != 1 {
		t.Fatalf("first set_position_mm synced %d times, want 1", synced)
	}
	before := p.positionSteps

	p.SetPositionMM(5, 5, 0, 0)
	if synced != 1 {
		t.Fatalf("second (identical) set_position_mm synced again: %d", synced)
	}
	if before != p.positionSteps {
		t.Fatal("position_steps changed on an idempotent set_position_mm call")
	}
}

// P2: every produced block stays within the speed caps the spec
// requires, across a small representative move set.
func TestSpeedCaps(t *testing.T) {
	p := newTestPlanner(t)
	p.BufferLine(10, 0, 0, 0, 100, 0, 0)
	p.BufferLine(10, 10, 0, 0, 100, 0, 0)
	p.BufferLine(0, 10, 0, 0, 50, 0, 0)

	for i, b := range drainAll(p) {
		if b.EntrySpeedSqr > b.MaxEntrySpeedSqr+1e-6 {
			t.Errorf("block %d: entry_speed_sqr > max_entry_speed_sqr", i)
		}
		if b.MaxEntrySpeedSqr > b.NominalSpeedSqr+1e-6 {
			t.Errorf("block %d: max_entry_speed_sqr > nominal_speed_sqr", i)
		}
		if b.FinalRate > b.NominalRate {
			t.Errorf("block %d: final_rate > nominal_rate", i)
		}
		if b.InitialRate > b.NominalRate {
			t.Errorf("block %d: initial_rate > nominal_rate", i)
		}
	}
}

// P4: the trapezoid's accelerate/decelerate breakpoints never cross
// step_event_count's own ordering.
func TestTrapezoidIdentity(t *testing.T) {
	p := newTestPlanner(t)
	p.BufferLine(50, 0, 0, 0, 200, 0, 0)
	p.BufferLine(50, 50, 0, 0, 200, 0, 0)

	for i, b := range drainAll(p) {
		if b.AccelerateUntil > b.DecelerateAfter {
			t.Errorf("block %d: accelerate_until (%d) > decelerate_after (%d)", i, b.AccelerateUntil, b.DecelerateAfter)
		}
		if b.DecelerateAfter > b.StepEventCount {
			t.Errorf("block %d: decelerate_after (%d) > step_event_count (%d)", i, b.DecelerateAfter, b.StepEventCount)
		}
	}
}

// Below-minimum-steps moves are silently absorbed rather than queued.
func TestAbsorbsTinyMove(t *testing.T) {
	p := newTestPlanner(t)
	if !p.BufferLine(0.0001, 0, 0, 0, 100, 0, 0) {
		t.Fatal("tiny move returned false instead of being absorbed")
	}
	if p.QueueLen() != 0 {
		t.Fatalf("tiny move was queued: QueueLen=%d", p.QueueLen())
	}
}

// A full-pipeline sanity check against a non-Cartesian kinematics model,
// exercising kinematics.Model.ToAxes through buffer_line.
func TestBufferLineCoreXY(t *testing.T) {
	cfg := config.DefaultCartesianConfig()
	cfg.Kinematics = "corexy"
	kin, err := NewKinematicsModel(cfg)
	if err != nil {
		t.Fatalf("NewKinematicsModel: %v", err)
	}
	p := New(cfg, kin)

	if !p.BufferLine(10, 10, 0, 0, 100, 0, 0) {
		t.Fatal("buffer_line rejected")
	}
	blocks := drainAll(p)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	if blocks[0].StepEventCount == 0 {
		t.Fatal("corexy move produced zero steps")
	}
}
