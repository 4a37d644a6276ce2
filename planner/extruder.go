package planner

import "machinecore/config"

// extruderTable wraps the external extruder table §6 describes: a
// small non-negative index into per-extruder steps/mm, limits, and the
// e_factor unit-conversion scalar.
type extruderTable struct {
	entries []config.ExtruderConfig
}

func newExtruderTable(entries []config.ExtruderConfig) *extruderTable {
	return &extruderTable{entries: entries}
}

func (t *extruderTable) Get(idx int) config.ExtruderConfig {
	if idx < 0 || idx >= len(t.entries) {
		return config.ExtruderConfig{StepsPerMM: 1, EFactor: 1, MaxFeedrateMMS: 1e9, MaxAccelMMS2: 1e9, MaxJerkMMS: 1e9}
	}
	return t.entries[idx]
}

func (t *extruderTable) Count() int { return len(t.entries) }
