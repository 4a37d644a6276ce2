package planner

import "sync/atomic"

// MaxBlockAxes bounds the per-block step arrays at four motor-space
// axes (a, b, c, e) — the largest axis count any supported kinematics
// model reports.
const MaxBlockAxes = 4

// Block flags (written by the planner; Busy is the one field the
// consumer writes — everything else is planner-private bookkeeping).
const (
	BlockRecalculate   uint8 = 1 << 0
	BlockNominalLength uint8 = 1 << 1
	BlockSyncPosition  uint8 = 1 << 2
	BlockContinued     uint8 = 1 << 3
)

// Block is one queued coordinated move together with its fitted
// trapezoidal velocity profile.
type Block struct {
	Steps         [MaxBlockAxes]uint32
	DirectionBits uint8 // bit i = motor direction for axis i
	HeadDirBits   uint8 // bit i = head direction (CoreXY only, may differ)

	StepEventCount uint32
	Millimeters    float64

	NominalRate     uint32
	NominalSpeedSqr float64

	AccelerationStepsPerS2 float64
	Acceleration           float64 // mm/s^2

	EntrySpeedSqr    float64
	MaxEntrySpeedSqr float64

	AccelerateUntil uint32
	DecelerateAfter uint32
	InitialRate     uint32
	FinalRate       uint32

	Flags uint8

	// SyncPositionSteps is only meaningful when Flags has
	// BlockSyncPosition set: the position_steps snapshot the consumer
	// should latch as its logical position when it reaches this slot.
	SyncPositionSteps [MaxBlockAxes]int64

	// Busy is the single field the step-generator flow writes; the
	// planner only reads it. It is the busy/recalculate handshake's
	// cross-goroutine half, so it is the one atomic field on Block.
	busy atomic.Bool
}

func (b *Block) IsBusy() bool     { return b.busy.Load() }
func (b *Block) SetBusy(v bool)   { b.busy.Store(v) }
func (b *Block) IsSync() bool     { return b.Flags&BlockSyncPosition != 0 }
func (b *Block) NominalLength() bool {
	return b.Flags&BlockNominalLength != 0
}
func (b *Block) NeedsRecalc() bool { return b.Flags&BlockRecalculate != 0 }

func (b *Block) setRecalc(v bool) {
	if v {
		b.Flags |= BlockRecalculate
	} else {
		b.Flags &^= BlockRecalculate
	}
}

func (b *Block) setNominalLength(v bool) {
	if v {
		b.Flags |= BlockNominalLength
	} else {
		b.Flags &^= BlockNominalLength
	}
}

// reset clears a block for reuse by a future fill_block call. Called
// only by the planner, and only on slots the consumer has already
// released (past tail).
func (b *Block) reset() {
	b.Steps = [MaxBlockAxes]uint32{}
	b.DirectionBits = 0
	b.HeadDirBits = 0
	b.StepEventCount = 0
	b.Millimeters = 0
	b.NominalRate = 0
	b.NominalSpeedSqr = 0
	b.AccelerationStepsPerS2 = 0
	b.Acceleration = 0
	b.EntrySpeedSqr = 0
	b.MaxEntrySpeedSqr = 0
	b.AccelerateUntil = 0
	b.DecelerateAfter = 0
	b.InitialRate = 0
	b.FinalRate = 0
	b.Flags = 0
	b.SyncPositionSteps = [MaxBlockAxes]int64{}
	b.busy.Store(false)
}
