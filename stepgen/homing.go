package stepgen

import "machinecore/core"

// HomingAxis binds one motor-space axis index to the endstop that
// should stop it during a homing move.
type HomingAxis struct {
	Index   int
	Pin     core.GPIOPin
	PinHigh bool
}

// Homer watches the endstops of a synchronized multi-axis homing move:
// the first endstop to trigger fires core.TriggerSync once and later
// triggers are ignored — the same cross-axis coordination Klipper's
// trsync protocol provides, adapted here to call back into the
// planner's EndstopTriggered hook instead of replying over a wire
// protocol. Homer does not stop any axis itself.
type Homer struct {
	endstops        []*core.Endstop
	axisIndex       []int
	pinHigh         []bool
	sampleTimeTicks uint32
	sampleCount     uint8
	restTimeTicks   uint32
}

// NewHomer configures each axis's endstop pin as a pull-up input and
// builds an oversampled endstop sampler for it; Start arms them.
// sampleTimeTicks/sampleCount/restTimeTicks follow core.Endstop's own
// debounce parameters (timer ticks, not milliseconds).
func NewHomer(axes []HomingAxis, sampleTimeTicks uint32, sampleCount uint8, restTimeTicks uint32) *Homer {
	h := &Homer{
		sampleTimeTicks: sampleTimeTicks,
		sampleCount:     sampleCount,
		restTimeTicks:   restTimeTicks,
	}
	for _, a := range axes {
		_ = core.MustGPIO().ConfigureInputPullUp(a.Pin)
		h.endstops = append(h.endstops, core.NewEndstop(a.Pin))
		h.axisIndex = append(h.axisIndex, a.Index)
		h.pinHigh = append(h.pinHigh, a.PinHigh)
	}
	return h
}

// Start arms every axis's endstop against a shared TriggerSync and
// invokes onTrigger (typically planner.Planner.EndstopTriggered) once,
// naming whichever axis's pin fired first. The caller is responsible
// for having already queued the probing move(s) on the planner; Start
// only watches for the physical trigger and reports it — it does not
// itself command a move or stop the step generator, since quick_stop
// (or a dedicated decelerate-to-stop move) is the planner's job.
func (h *Homer) Start(onTrigger func(axisIndex int)) *core.TriggerSync {
	ts := core.NewTriggerSync()
	// One shared signal: DoTrigger passes the triggering endstop's own
	// TriggerReason (the axis index it was armed with) through to every
	// signal, so the axis identity must come from that reason byte, not
	// from which axis happened to register the callback.
	ts.AddSignal(func(reason uint8) {
		if onTrigger != nil {
			onTrigger(int(reason))
		}
	})

	now := core.GetTime()
	for i, es := range h.endstops {
		axisIdx := h.axisIndex[i]
		es.StartHoming(now, h.sampleTimeTicks, h.sampleCount, h.restTimeTicks, h.pinHigh[i], ts, uint8(axisIdx))
	}
	return ts
}
