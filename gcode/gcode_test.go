package gcode

import (
	"testing"

	"machinecore/config"
	"machinecore/planner"
)

func newTestInterpreter(t *testing.T) *Interpreter {
	t.Helper()
	cfg := config.DefaultCartesianConfig()
	kin, err := planner.NewKinematicsModel(cfg)
	if err != nil {
		t.Fatalf("NewKinematicsModel: %v", err)
	}
	p := planner.New(cfg, kin)
	return NewInterpreter(p, 50)
}

func TestParseG1Line(t *testing.T) {
	parser := NewParser()
	cmd, err := parser.ParseLine("G1 X10 Y-5.5 F1200 ; comment")
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if cmd.Type != 'G' || cmd.Number != 1 {
		t.Fatalf("got %c%d, want G1", cmd.Type, cmd.Number)
	}
	if !cmd.HasParameter('X') || cmd.GetParameter('X', 0) != 10 {
		t.Errorf("X parameter = %v, want 10", cmd.GetParameter('X', 0))
	}
	if !cmd.HasParameter('Y') || cmd.GetParameter('Y', 0) != -5.5 {
		t.Errorf("Y parameter = %v, want -5.5", cmd.GetParameter('Y', 0))
	}
	if cmd.GetParameter('F', 0) != 1200 {
		t.Errorf("F parameter = %v, want 1200", cmd.GetParameter('F', 0))
	}
	if cmd.Comment != "comment" {
		t.Errorf("comment = %q, want %q", cmd.Comment, "comment")
	}
}

func TestParseBlankAndCommentOnlyLines(t *testing.T) {
	parser := NewParser()
	for _, line := range []string{"", "   ", "; just a comment"} {
		cmd, err := parser.ParseLine(line)
		if err != nil {
			t.Fatalf("ParseLine(%q): %v", line, err)
		}
		if cmd != nil {
			t.Errorf("ParseLine(%q) = %+v, want nil", line, cmd)
		}
	}
}

func TestInterpreterAbsoluteMove(t *testing.T) {
	in := newTestInterpreter(t)
	parser := NewParser()

	cmd, _ := parser.ParseLine("G1 X10 Y0 F6000")
	if err := in.Execute(cmd); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	st := in.State()
	if st.X != 10 || st.Y != 0 {
		t.Errorf("position = (%v, %v), want (10, 0)", st.X, st.Y)
	}
	if st.FeedRateMMS != 100 {
		t.Errorf("feedrate_mms = %v, want 100 (F6000/60)", st.FeedRateMMS)
	}
}

func TestInterpreterRelativeMove(t *testing.T) {
	in := newTestInterpreter(t)
	parser := NewParser()

	for _, line := range []string{"G91", "G1 X5 F6000", "G1 X5"} {
		cmd, _ := parser.ParseLine(line)
		if err := in.Execute(cmd); err != nil {
			t.Fatalf("Execute(%q): %v", line, err)
		}
	}

	if in.State().X != 10 {
		t.Errorf("relative X accumulated to %v, want 10", in.State().X)
	}
}

func TestInterpreterZeroLengthMoveIsNoop(t *testing.T) {
	in := newTestInterpreter(t)
	parser := NewParser()

	cmd, _ := parser.ParseLine("G1 X0 Y0 Z0 F6000")
	if err := in.Execute(cmd); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if in.p.QueueLen() != 0 {
		t.Errorf("zero-length move was queued: QueueLen=%d", in.p.QueueLen())
	}
}

func TestInterpreterHomeZeroesPosition(t *testing.T) {
	in := newTestInterpreter(t)
	parser := NewParser()

	moveCmd, _ := parser.ParseLine("G1 X20 Y20 F6000")
	if err := in.Execute(moveCmd); err != nil {
		t.Fatalf("Execute move: %v", err)
	}

	homeCmd, _ := parser.ParseLine("G28")
	if err := in.Execute(homeCmd); err != nil {
		t.Fatalf("Execute G28: %v", err)
	}

	st := in.State()
	if st.X != 0 || st.Y != 0 || st.Z != 0 {
		t.Errorf("position after G28 = (%v, %v, %v), want (0, 0, 0)", st.X, st.Y, st.Z)
	}
	if !st.Homed[0] || !st.Homed[1] || !st.Homed[2] {
		t.Errorf("homed flags = %v, want all true", st.Homed)
	}
}

func TestInterpreterSetPositionE(t *testing.T) {
	in := newTestInterpreter(t)
	parser := NewParser()

	cmd, _ := parser.ParseLine("G92 E0")
	if err := in.Execute(cmd); err != nil {
		t.Fatalf("Execute G92: %v", err)
	}
	if in.State().E != 0 {
		t.Errorf("E = %v, want 0", in.State().E)
	}
}

func TestInterpreterQuickStopLocksBuffer(t *testing.T) {
	in := newTestInterpreter(t)
	parser := NewParser()

	stopCmd, _ := parser.ParseLine("M112")
	if err := in.Execute(stopCmd); err != nil {
		t.Fatalf("Execute M112: %v", err)
	}

	moveCmd, _ := parser.ParseLine("G1 X10 F6000")
	err := in.Execute(moveCmd)
	if err != ErrBufferLocked {
		t.Errorf("Execute after M112 returned %v, want ErrBufferLocked", err)
	}
}
