// Trigger synchronization for multi-axis homing.
// Adapted from Klipper's trsync protocol: coordinates endstop triggers
// across several axes without the MCU wire-command dictionary, which
// has no place in an in-process planner.
package core

// TriggerSync flags.
const (
	TSF_CAN_TRIGGER = 1 << 0 // trigger is still armed
	TSF_TRIGGERED   = 1 << 1 // trigger has fired
)

// TriggerSignal is a callback registered with a TriggerSync.
type TriggerSignal struct {
	Callback func(reason uint8)
	Next     *TriggerSignal
}

// TriggerSync coordinates multiple endstops during a homing move: the
// first endstop to fire disarms the rest and notifies every registered
// signal exactly once.
type TriggerSync struct {
	Flags         uint8
	TriggerReason uint8
	Signals       *TriggerSignal
}

// NewTriggerSync returns an armed TriggerSync ready to receive triggers.
func NewTriggerSync() *TriggerSync {
	return &TriggerSync{Flags: TSF_CAN_TRIGGER}
}

// DoTrigger fires the synchronization event. Only the first call after
// arming has any effect; later calls (from other axes racing to the
// same corner) are no-ops.
func (ts *TriggerSync) DoTrigger(reason uint8) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if ts.Flags&TSF_CAN_TRIGGER == 0 {
		return
	}
	ts.Flags &^= TSF_CAN_TRIGGER
	ts.Flags |= TSF_TRIGGERED
	ts.TriggerReason = reason

	for sig := ts.Signals; sig != nil; sig = sig.Next {
		if sig.Callback != nil {
			sig.Callback(reason)
		}
	}
}

// AddSignal registers a callback invoked once when the sync triggers.
func (ts *TriggerSync) AddSignal(callback func(reason uint8)) *TriggerSignal {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	sig := &TriggerSignal{Callback: callback, Next: ts.Signals}
	ts.Signals = sig
	return sig
}

// Triggered reports whether the sync has already fired.
func (ts *TriggerSync) Triggered() bool {
	return ts.Flags&TSF_TRIGGERED != 0
}

// Rearm resets the sync so it can be reused for the next homing move.
func (ts *TriggerSync) Rearm() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	ts.Flags = TSF_CAN_TRIGGER
	ts.TriggerReason = 0
	ts.Signals = nil
}
