// Package planner is the look-ahead motion planner: it accepts a
// stream of target moves, fits a trapezoidal velocity profile to each
// one while chaining junction speeds through the look-ahead
// optimisation, and publishes the resulting blocks on a ring buffer a
// concurrently running step generator drains in strict FIFO order.
//
// The planner owns exactly one instance per machine; earlier file-scope
// global state (the teacher's standalone.Planner) is bundled here into
// one value the host constructs and injects a kinematics model and
// extruder table into.
package planner

import (
	"fmt"

	"machinecore/config"
	"machinecore/core"
	"machinecore/kinematics"
)

// Epsilon bounds for near-colinear / near-reversal junction tests (§4.3 step 10).
const (
	junctionEpsilon = 1e-6
	minimumArcAngle = 3.14159265358979323846 - 0.033 // spec's LUT-ceiling clamp
)

// Planner is the look-ahead motion planner described by this package's
// doc comment.
type Planner struct {
	cfg       *config.MachineConfig
	kin       kinematics.Model
	axisNames []string
	extruders *extruderTable

	activeExtruder int

	rb *ringBuffer

	positionSteps [MaxBlockAxes]int64
	positionMM    kinematics.Position

	prevUnit     [MaxBlockAxes]float64
	havePrevUnit bool

	previousNominalSpeedSqr     float64
	previousAccelerationStepsS2 float64

	cleanBuffer      bool
	cleanBufferUntil uint32 // core.GetTime() ticks

	firstMoveDelayArmed    bool
	firstMoveDeadlineTicks uint32

	// extruderTempC is the external temperature collaborator §4.3 step 4
	// queries before admitting an extruding move. Temperature control is
	// out of the planner's scope (§1); a nil hook treats every extruder
	// as always hot enough, which is the test/host-CLI default.
	extruderTempC func(extruder int) float64

	onQuickStop    func()
	onPositionSync func(steps [MaxBlockAxes]int64)
	onEndstop      func(axis string)
}

// SetExtruderTempProvider installs the external temperature query hook
// used by the cold-extrusion check in bufferSteps. Pass nil to disable
// the check (every extruder reads as always hot enough).
func (p *Planner) SetExtruderTempProvider(fn func(extruder int) float64) {
	p.extruderTempC = fn
}

// New builds a Planner for the given machine configuration and
// kinematics model. The caller selects the Model that matches
// cfg.Kinematics (see NewKinematicsModel).
func New(cfg *config.MachineConfig, kin kinematics.Model) *Planner {
	p := &Planner{
		cfg:       cfg,
		kin:       kin,
		axisNames: kin.AxisNames(),
		extruders: newExtruderTable(cfg.Extruders),
		rb:        newRingBuffer(cfg.Planner.QueueSize),
	}
	return p
}

// NewKinematicsModel constructs the Model named by cfg.Kinematics,
// the strategy-object dispatch the design notes call for in place of
// the teacher's single hard-coded Cartesian path.
func NewKinematicsModel(cfg *config.MachineConfig) (kinematics.Model, error) {
	limits := map[string]kinematics.AxisLimits{}
	for name, axis := range cfg.Axes {
		limits[name] = kinematics.AxisLimits{Min: axis.MinPositionMM, Max: axis.MaxPositionMM}
	}

	switch cfg.Kinematics {
	case "", "cartesian":
		return kinematics.NewCartesian(limits), nil
	case "corexy":
		return kinematics.NewCoreXY(cfg.CoreXYFactor, limits), nil
	case "delta":
		zLimit := kinematics.AxisLimits{}
		if z, ok := cfg.Axes["z"]; ok {
			zLimit = kinematics.AxisLimits{Min: z.MinPositionMM, Max: z.MaxPositionMM}
		}
		return kinematics.NewDelta(cfg.Delta.DiagonalRodMM, cfg.Delta.RadiusMM, cfg.Delta.TowerAngleDeg, zLimit), nil
	case "scara":
		zLimit := kinematics.AxisLimits{}
		if z, ok := cfg.Axes["z"]; ok {
			zLimit = kinematics.AxisLimits{Min: z.MinPositionMM, Max: z.MaxPositionMM}
		}
		return kinematics.NewScara(cfg.Scara.ProximalMM, cfg.Scara.DistalMM, zLimit), nil
	default:
		return nil, fmt.Errorf("planner: unknown kinematics %q", cfg.Kinematics)
	}
}

// axisStepsPerMM and the accessors below return the configured limits
// for motor-space axis index i (0..2 geometric, 3 extruder via the
// active extruder table entry).
func (p *Planner) axisStepsPerMM(i int) float64 {
	if i == 3 {
		return p.extruders.Get(p.activeExtruder).StepsPerMM
	}
	if i < len(p.axisNames) {
		if ac, ok := p.cfg.Axes[p.axisNames[i]]; ok {
			return ac.StepsPerMM
		}
	}
	return 1
}

func (p *Planner) axisMaxFeedrate(i int) float64 {
	if i == 3 {
		return p.extruders.Get(p.activeExtruder).MaxFeedrateMMS
	}
	if i < len(p.axisNames) {
		if ac, ok := p.cfg.Axes[p.axisNames[i]]; ok {
			return ac.MaxFeedrateMMS
		}
	}
	return 1e9
}

func (p *Planner) axisMaxAccel(i int) float64 {
	if i == 3 {
		return p.extruders.Get(p.activeExtruder).MaxAccelMMS2
	}
	if i < len(p.axisNames) {
		if ac, ok := p.cfg.Axes[p.axisNames[i]]; ok {
			return ac.MaxAccelMMS2
		}
	}
	return 1e9
}

func (p *Planner) axisMaxJerk(i int) float64 {
	if i == 3 {
		return p.extruders.Get(p.activeExtruder).MaxJerkMMS
	}
	if i < len(p.axisNames) {
		if ac, ok := p.cfg.Axes[p.axisNames[i]]; ok {
			return ac.MaxJerkMMS
		}
	}
	return 1e9
}

// SetActiveExtruder selects which extruder-table entry buffer_line's
// E axis uses.
func (p *Planner) SetActiveExtruder(idx int) {
	p.activeExtruder = idx
}

// QueueLen reports the number of blocks currently queued, for the
// slowdown hook and host-side diagnostics.
func (p *Planner) QueueLen() uint32 { return p.rb.Len() }

// diag emits an "absorbed-invalid" style diagnostic line on the shared
// debug channel (§7): quiet recovery, not an error return.
func (p *Planner) diag(format string, args ...interface{}) {
	core.DebugPrintln("[PLANNER] " + fmt.Sprintf(format, args...))
}
