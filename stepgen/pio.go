//go:build rp2040 || rp2350

package stepgen

// PIO-backed step generation for RP2040/RP2350 targets: offloads pulse
// generation to a PIO state machine so step timing survives Go's GC
// pauses, the same motivation as the teacher's
// targets/pio.PIOStepperBackend. Adapted to the new domain: the
// teacher's backend only ever issued one-step bursts from the CPU-side
// velocity loop; PIOAxis instead accepts a (count, intervalTicks)
// burst straight from a planner.Block's current rate segment, so a
// whole constant-rate span of a trapezoid (the plateau, or one ramp
// step) can be handed to hardware at once.

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// buildBurstProgram is the teacher's stepperPIOOrigin program
// unchanged: pull a (count, delay, direction) command word, then pulse
// the step pin count times with delay cycles of spacing.
func buildBurstProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		asm.Pull(false, true).Encode(),
		asm.Out(rp2pio.OutDestX, 16).Encode(),
		asm.Out(rp2pio.OutDestY, 8).Encode(),
		asm.Out(rp2pio.OutDestPins, 1).Encode(),
		asm.Set(rp2pio.SetDestPins, 1).Delay(7).Encode(),
		asm.Set(rp2pio.SetDestPins, 0).Encode(),
		asm.Jmp(6, rp2pio.JmpYNZeroDec).Encode(),
		asm.Jmp(4, rp2pio.JmpXNZeroDec).Encode(),
	}
}

const burstProgramOrigin = 0

// PIOAxis drives one axis's step/dir pins through a dedicated PIO state
// machine, freeing the Go-side timer from having to fire once per step.
type PIOAxis struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	step   machine.Pin
	dir    machine.Pin
	offset uint8
}

// NewPIOAxis claims state machine smNum on pioNum (0 or 1).
func NewPIOAxis(pioNum, smNum uint8) *PIOAxis {
	hw := rp2pio.PIO0
	if pioNum != 0 {
		hw = rp2pio.PIO1
	}
	return &PIOAxis{pio: hw, sm: hw.StateMachine(smNum)}
}

// Init loads the burst program and configures the step/dir pins.
func (a *PIOAxis) Init(stepPin, dirPin uint8) error {
	a.step = machine.Pin(stepPin)
	a.dir = machine.Pin(dirPin)

	a.sm.TryClaim()

	program := buildBurstProgram()
	offset, err := a.pio.AddProgram(program, burstProgramOrigin)
	if err != nil {
		return err
	}
	a.offset = offset

	a.step.Configure(machine.PinConfig{Mode: a.pio.PinMode()})
	a.dir.Configure(machine.PinConfig{Mode: a.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(a.step, 1)
	cfg.SetOutPins(a.dir, 1)
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(1, 0)

	a.sm.Init(offset, cfg)
	a.sm.SetPindirsConsecutive(a.step, 1, true)
	a.sm.SetPindirsConsecutive(a.dir, 1, true)
	a.sm.SetPinsConsecutive(a.step, 1, false)
	a.sm.SetPinsConsecutive(a.dir, 1, false)
	a.sm.SetEnabled(true)

	return nil
}

// Burst queues count pulses spaced delayCycles apart, in the given
// direction, onto the state machine's FIFO. It does not block waiting
// for the burst to finish; the caller times the next burst off the
// planner block's own rate profile, not PIO completion.
func (a *PIOAxis) Burst(count uint16, delayCycles uint8, reverse bool) {
	cmd := uint32(count) | uint32(delayCycles)<<16
	if reverse {
		cmd |= 1 << 24
	}
	a.sm.TxPut(cmd)
}

// Stop disables the state machine, aborting any in-flight burst.
func (a *PIOAxis) Stop() {
	a.sm.SetEnabled(false)
}
