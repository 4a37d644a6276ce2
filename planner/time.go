package planner

import "machinecore/core"

// coreTicksPerMS converts milliseconds into core timer ticks, for the
// quick-stop lockout and first-move delay windows which are configured
// in milliseconds but compared against core.GetTime()'s tick domain.
const coreTicksPerMS = core.TimerFreq / 1000

// core_now is the planner's one call site for the shared tick clock,
// named to match the teacher's scheduler.go convention of reading
// core.GetTime() through a single indirection per subsystem.
func core_now() uint32 { return core.GetTime() }

// tickBefore reports whether tick a has not yet reached deadline b,
// using the signed-wraparound-safe comparison core/scheduler.go uses
// for its own WakeTime ordering (int32(a-b) < 0 means a precedes b
// within the ~3 minute half-range of a 32-bit counter at 12MHz).
func tickBefore(a, b uint32) bool {
	return int32(a-b) < 0
}
