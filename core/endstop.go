// Endstop sampling for GPIO-based sensors.
// Adapted from Klipper's endstop-sampling state machine: oversampled,
// timer-driven debounce with no MCU wire-command dictionary attached —
// the planner's endstop_triggered hook (see the planner package) is a
// plain function call, not a serial response.
package core

// Endstop flags.
const (
	ESF_PIN_HIGH = 1 << 0 // expected pin level when triggered (1=high)
	ESF_HOMING   = 1 << 1 // currently homing
)

// Endstop represents one configured GPIO endstop input.
type Endstop struct {
	Pin           GPIOPin
	Flags         uint8
	Timer         Timer
	SampleTime    uint32
	SampleCount   uint8
	TriggerCount  uint8
	RestTime      uint32
	NextWake      uint32
	TriggerSync   *TriggerSync
	TriggerReason uint8
}

// NewEndstop creates an endstop sampler for the given pin. The GPIO
// driver must already be configured (pull-up or pull-down) by the
// caller via core.MustGPIO().
func NewEndstop(pin GPIOPin) *Endstop {
	return &Endstop{Pin: pin}
}

// StartHoming arms oversampled debounce on this endstop: sampleCount
// consecutive reads matching pinHigh within sampleTime of each other
// fire ts with triggerReason. restTime paces the check cycle between
// debounce attempts.
func (es *Endstop) StartHoming(clock uint32, sampleTime uint32, sampleCount uint8, restTime uint32, pinHigh bool, ts *TriggerSync, triggerReason uint8) {
	es.Timer.Next = nil

	if sampleCount == 0 {
		es.TriggerSync = nil
		es.Flags = 0
		return
	}

	es.SampleTime = sampleTime
	es.SampleCount = sampleCount
	es.TriggerCount = sampleCount
	es.RestTime = restTime
	es.TriggerSync = ts
	es.TriggerReason = triggerReason
	es.Flags = ESF_HOMING
	if pinHigh {
		es.Flags |= ESF_PIN_HIGH
	}

	es.Timer.WakeTime = clock
	es.Timer.Handler = es.sampleEvent
	ScheduleTimer(&es.Timer)
}

// QueryState reports whether homing is active and the current pin level.
func (es *Endstop) QueryState() (homing bool, nextWake uint32, pinValue bool) {
	state := disableInterrupts()
	flags := es.Flags
	wake := es.NextWake
	restoreInterrupts(state)

	return flags&ESF_HOMING != 0, wake, MustGPIO().ReadPin(es.Pin)
}

func (es *Endstop) expectHigh() bool {
	return es.Flags&ESF_PIN_HIGH != 0
}

func (es *Endstop) matches() bool {
	pinHigh := MustGPIO().ReadPin(es.Pin)
	return pinHigh == es.expectHigh()
}

// sampleEvent is the first-stage check: it looks for one matching
// sample before committing to the oversampling confirmation pass.
func (es *Endstop) sampleEvent(t *Timer) uint8 {
	nextWake := t.WakeTime + es.RestTime

	if !es.matches() {
		t.WakeTime = nextWake
		return SF_RESCHEDULE
	}

	es.NextWake = nextWake
	t.Handler = es.oversampleEvent
	return es.oversampleEvent(t)
}

// oversampleEvent confirms the trigger with SampleCount consecutive
// matching reads before calling TriggerSync.DoTrigger.
func (es *Endstop) oversampleEvent(t *Timer) uint8 {
	if !es.matches() {
		t.Handler = es.sampleEvent
		t.WakeTime = es.NextWake
		es.TriggerCount = es.SampleCount
		return SF_RESCHEDULE
	}

	es.TriggerCount--
	if es.TriggerCount == 0 {
		if es.TriggerSync != nil {
			es.TriggerSync.DoTrigger(es.TriggerReason)
		}
		return SF_DONE
	}

	t.WakeTime += es.SampleTime
	return SF_RESCHEDULE
}
