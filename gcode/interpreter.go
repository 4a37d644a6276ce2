package gcode

import "machinecore/planner"

// State is the interpreter's mode/position bookkeeping — the parts of
// a G-code session that live above the planner (units, absolute vs.
// relative, homed axes), mirroring the teacher's standalone.MachineState
// but trimmed to what this interpreter actually consults.
type State struct {
	X, Y, Z, E   float64
	FeedRateMMS  float64
	AbsoluteMode bool
	ExtrudeMode  bool // true = relative extrusion
	Homed        [3]bool
	TargetTempC  map[string]float64
}

// Interpreter executes parsed Commands against a Planner, translating
// G-code's absolute/relative move semantics into BufferLine calls.
type Interpreter struct {
	state        State
	defaultAccel float64
	p            *planner.Planner
}

// NewInterpreter builds an Interpreter bound to p. defaultFeedrateMMS
// seeds the modal feedrate used by a G1 line with no F word.
func NewInterpreter(p *planner.Planner, defaultFeedrateMMS float64) *Interpreter {
	return &Interpreter{
		state: State{
			AbsoluteMode: true,
			FeedRateMMS:  defaultFeedrateMMS,
			TargetTempC:  make(map[string]float64),
		},
		p: p,
	}
}

// State returns the interpreter's current mode/position state, for
// M114-style status reporting by the host.
func (in *Interpreter) State() State { return in.state }

// Execute dispatches one parsed command. A nil Command (blank or
// comment-only line) is a no-op.
func (in *Interpreter) Execute(cmd *Command) error {
	if cmd == nil || cmd.Type == 0 {
		return nil
	}
	switch cmd.Type {
	case 'G':
		return in.execG(cmd)
	case 'M':
		return in.execM(cmd)
	case 'T':
		return in.execT(cmd)
	}
	return nil
}

func (in *Interpreter) execG(cmd *Command) error {
	switch cmd.Number {
	case 0, 1:
		return in.doMove(cmd)
	case 4:
		in.p.Synchronize()
	case 28:
		return in.doHome(cmd)
	case 90:
		in.state.AbsoluteMode = true
	case 91:
		in.state.AbsoluteMode = false
	case 92:
		return in.doSetPosition(cmd)
	}
	return nil
}

func (in *Interpreter) execM(cmd *Command) error {
	switch cmd.Number {
	case 82:
		in.state.ExtrudeMode = false
	case 83:
		in.state.ExtrudeMode = true
	case 104:
		if cmd.HasParameter('S') {
			in.state.TargetTempC["extruder"] = cmd.GetParameter('S', 0)
		}
	case 109:
		if cmd.HasParameter('S') {
			in.state.TargetTempC["extruder"] = cmd.GetParameter('S', 0)
		}
	case 112:
		in.p.QuickStop()
	case 140:
		if cmd.HasParameter('S') {
			in.state.TargetTempC["bed"] = cmd.GetParameter('S', 0)
		}
	case 400:
		in.p.Synchronize()
	}
	return nil
}

func (in *Interpreter) execT(cmd *Command) error {
	in.p.SetActiveExtruder(cmd.Number)
	return nil
}

// doMove handles G0/G1: it resolves the target position per the
// current mode, skips degenerate zero-length moves, and hands the rest
// to BufferLine.
func (in *Interpreter) doMove(cmd *Command) error {
	if cmd.HasParameter('F') {
		in.state.FeedRateMMS = cmd.GetParameter('F', 0) / 60.0
	}

	target := State{X: in.state.X, Y: in.state.Y, Z: in.state.Z, E: in.state.E}

	if in.state.AbsoluteMode {
		if cmd.HasParameter('X') {
			target.X = cmd.GetParameter('X', in.state.X)
		}
		if cmd.HasParameter('Y') {
			target.Y = cmd.GetParameter('Y', in.state.Y)
		}
		if cmd.HasParameter('Z') {
			target.Z = cmd.GetParameter('Z', in.state.Z)
		}
	} else {
		target.X += cmd.GetParameter('X', 0)
		target.Y += cmd.GetParameter('Y', 0)
		target.Z += cmd.GetParameter('Z', 0)
	}

	if cmd.HasParameter('E') {
		if in.state.ExtrudeMode {
			target.E = in.state.E + cmd.GetParameter('E', 0)
		} else {
			target.E = cmd.GetParameter('E', in.state.E)
		}
	}

	if target.X == in.state.X && target.Y == in.state.Y &&
		target.Z == in.state.Z && target.E == in.state.E {
		return nil
	}

	ok := in.p.BufferLine(target.X, target.Y, target.Z, target.E, in.state.FeedRateMMS, 0, 0)
	if !ok {
		return ErrBufferLocked
	}

	in.state.X, in.state.Y, in.state.Z, in.state.E = target.X, target.Y, target.Z, target.E
	return nil
}

// doHome executes G28: this interpreter has no homing-switch sequencer
// of its own (that belongs to the host's endstop hook, §4.6's
// Non-goal), so it treats G28 as "mark the named axes homed and zero
// them" the way a host already physically homed would report it.
func (in *Interpreter) doHome(cmd *Command) error {
	all := !cmd.HasParameter('X') && !cmd.HasParameter('Y') && !cmd.HasParameter('Z')
	if all || cmd.HasParameter('X') {
		in.state.Homed[0] = true
		in.state.X = 0
	}
	if all || cmd.HasParameter('Y') {
		in.state.Homed[1] = true
		in.state.Y = 0
	}
	if all || cmd.HasParameter('Z') {
		in.state.Homed[2] = true
		in.state.Z = 0
	}
	in.p.SetPositionMM(in.state.X, in.state.Y, in.state.Z, in.state.E)
	return nil
}

// doSetPosition executes G92, relabeling the current physical position
// without commanding a move.
func (in *Interpreter) doSetPosition(cmd *Command) error {
	if cmd.HasParameter('X') {
		in.state.X = cmd.GetParameter('X', 0)
	}
	if cmd.HasParameter('Y') {
		in.state.Y = cmd.GetParameter('Y', 0)
	}
	if cmd.HasParameter('Z') {
		in.state.Z = cmd.GetParameter('Z', 0)
	}
	if cmd.HasParameter('E') {
		in.state.E = cmd.GetParameter('E', 0)
	}

	if cmd.HasParameter('E') && !cmd.HasParameter('X') && !cmd.HasParameter('Y') && !cmd.HasParameter('Z') {
		in.p.SetEPositionMM(in.state.E)
		return nil
	}

	in.p.SetPositionMM(in.state.X, in.state.Y, in.state.Z, in.state.E)
	return nil
}

type gcodeError string

func (e gcodeError) Error() string { return string(e) }

// ErrBufferLocked is returned by Execute when BufferLine rejects a move
// because quick_stop's lockout window is still active (§4.6).
const ErrBufferLocked = gcodeError("gcode: move buffer locked out after quick stop")
