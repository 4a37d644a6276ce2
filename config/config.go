// Package config loads and defaults the machine description consumed by
// kinematics and planner: per-axis limits, extruder table, and the
// planner's own tunables (queue size, minimum speeds, slowdown floor).
package config

import "encoding/json"

// AxisConfig describes one motor-space axis's limits and optional wiring.
type AxisConfig struct {
	StepPin      string  `json:"step_pin,omitempty"`
	DirPin       string  `json:"dir_pin,omitempty"`
	EnablePin    string  `json:"enable_pin,omitempty"`
	InvertDir    bool    `json:"invert_dir,omitempty"`
	InvertEnable bool    `json:"invert_enable,omitempty"`

	StepsPerMM      float64 `json:"steps_per_mm"`
	MaxFeedrateMMS  float64 `json:"max_feedrate_mm_s"`
	MaxAccelMMS2    float64 `json:"max_acceleration_mm_s2"`
	MaxJerkMMS      float64 `json:"max_jerk_mm_s"`
	HomingFeedrate  float64 `json:"homing_feedrate_mm_s"`
	MinPositionMM   float64 `json:"min_position_mm"`
	MaxPositionMM   float64 `json:"max_position_mm"`
}

// ExtruderConfig is one entry of the external extruder table §6 refers
// to: per-extruder steps/mm, limits, and the e_factor unit-conversion
// scalar used for multi-extruder compensation.
type ExtruderConfig struct {
	StepsPerMM       float64 `json:"steps_per_mm"`
	MaxFeedrateMMS   float64 `json:"max_feedrate_mm_s"`
	MaxAccelMMS2     float64 `json:"max_acceleration_mm_s2"`
	MaxJerkMMS       float64 `json:"max_jerk_mm_s"`
	EFactor          float64 `json:"e_factor"`
	MinExtrudeTempC  float64 `json:"min_extrude_temp_c"`
	MaxExtrudeLenMM  float64 `json:"max_extrude_length_mm"`
}

// PlannerConfig holds the tunables listed in the external interfaces'
// configuration surface.
type PlannerConfig struct {
	QueueSize              int     `json:"queue_size"`
	MinimumPlannerSpeedMMS float64 `json:"minimum_planner_speed_mm_s"`
	MinStepsPerSegment     int     `json:"min_steps_per_segment"`
	MinimalStepRate        uint32  `json:"minimal_step_rate"`
	BlockDelayFirstMoveMS  int     `json:"block_delay_first_move_ms"`
	MinSegmentTimeUS       uint32  `json:"min_segment_time_us"`
	QuickStopLockoutMS     int     `json:"quick_stop_lockout_ms"`

	TravelAccelMMS2  float64 `json:"travel_acceleration_mm_s2"`
	PrintAccelMMS2   float64 `json:"print_acceleration_mm_s2"`
	RetractAccelMMS2 float64 `json:"retract_acceleration_mm_s2"`

	MinFeedrateMMS       float64 `json:"min_feedrate_mm_s"`
	MinTravelFeedrateMMS float64 `json:"min_travel_feedrate_mm_s"`

	JunctionDeviationMM float64 `json:"junction_deviation_mm"`
	UseJunctionDeviation bool   `json:"use_junction_deviation"`
}

// DeltaConfig carries the linear-delta geometry.
type DeltaConfig struct {
	DiagonalRodMM float64    `json:"diagonal_rod_mm"`
	RadiusMM      float64    `json:"radius_mm"`
	TowerAngleDeg [3]float64 `json:"tower_angle_deg"`
}

// ScaraConfig carries the two-link SCARA arm geometry.
type ScaraConfig struct {
	ProximalMM float64 `json:"proximal_mm"`
	DistalMM   float64 `json:"distal_mm"`
}

// MachineConfig is the complete machine description.
type MachineConfig struct {
	Mode       string `json:"mode"`       // "standalone" or "klipper"
	Kinematics string `json:"kinematics"` // "cartesian", "corexy", "delta", "scara"

	Axes      map[string]AxisConfig `json:"axes"`
	Extruders []ExtruderConfig      `json:"extruders"`

	CoreXYFactor float64     `json:"corexy_factor,omitempty"`
	Delta        DeltaConfig `json:"delta,omitempty"`
	Scara        ScaraConfig `json:"scara,omitempty"`

	Planner PlannerConfig `json:"planner"`
}

// Load parses a JSON machine configuration and fills in defaults for
// any field left at its zero value.
func Load(jsonData []byte) (*MachineConfig, error) {
	var cfg MachineConfig
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *MachineConfig) {
	if cfg.Mode == "" {
		cfg.Mode = "standalone"
	}
	if cfg.Kinematics == "" {
		cfg.Kinematics = "cartesian"
	}
	if cfg.CoreXYFactor == 0 {
		cfg.CoreXYFactor = 1.0
	}

	for name, axis := range cfg.Axes {
		if axis.StepsPerMM == 0 {
			axis.StepsPerMM = 80.0
		}
		if axis.MaxFeedrateMMS == 0 {
			axis.MaxFeedrateMMS = 300.0
		}
		if axis.MaxAccelMMS2 == 0 {
			axis.MaxAccelMMS2 = 3000.0
		}
		if axis.MaxJerkMMS == 0 {
			axis.MaxJerkMMS = 10.0
		}
		if axis.HomingFeedrate == 0 {
			axis.HomingFeedrate = 5.0
		}
		cfg.Axes[name] = axis
	}

	for i := range cfg.Extruders {
		e := &cfg.Extruders[i]
		if e.StepsPerMM == 0 {
			e.StepsPerMM = 96.0
		}
		if e.MaxFeedrateMMS == 0 {
			e.MaxFeedrateMMS = 50.0
		}
		if e.MaxAccelMMS2 == 0 {
			e.MaxAccelMMS2 = 5000.0
		}
		if e.MaxJerkMMS == 0 {
			e.MaxJerkMMS = 5.0
		}
		if e.EFactor == 0 {
			e.EFactor = 1.0
		}
		if e.MaxExtrudeLenMM == 0 {
			e.MaxExtrudeLenMM = 200.0
		}
	}
	if len(cfg.Extruders) == 0 {
		cfg.Extruders = []ExtruderConfig{{
			StepsPerMM: 96.0, MaxFeedrateMMS: 50.0, MaxAccelMMS2: 5000.0,
			MaxJerkMMS: 5.0, EFactor: 1.0, MaxExtrudeLenMM: 200.0,
		}}
	}

	p := &cfg.Planner
	if p.QueueSize == 0 {
		p.QueueSize = 16
	}
	if p.MinimumPlannerSpeedMMS == 0 {
		p.MinimumPlannerSpeedMMS = 0.05
	}
	if p.MinStepsPerSegment == 0 {
		p.MinStepsPerSegment = 6
	}
	if p.MinimalStepRate == 0 {
		p.MinimalStepRate = 120
	}
	if p.BlockDelayFirstMoveMS == 0 {
		p.BlockDelayFirstMoveMS = 100
	}
	if p.QuickStopLockoutMS == 0 {
		p.QuickStopLockoutMS = 1000
	}
	if p.TravelAccelMMS2 == 0 {
		p.TravelAccelMMS2 = 3000.0
	}
	if p.PrintAccelMMS2 == 0 {
		p.PrintAccelMMS2 = 3000.0
	}
	if p.RetractAccelMMS2 == 0 {
		p.RetractAccelMMS2 = 3000.0
	}
	if p.MinFeedrateMMS == 0 {
		p.MinFeedrateMMS = 0.5
	}
	if p.MinTravelFeedrateMMS == 0 {
		p.MinTravelFeedrateMMS = 1.0
	}
	if p.JunctionDeviationMM == 0 {
		p.JunctionDeviationMM = 0.05
		p.UseJunctionDeviation = true
	}

	if cfg.Delta.DiagonalRodMM == 0 {
		cfg.Delta.DiagonalRodMM = 220.0
	}
	if cfg.Delta.RadiusMM == 0 {
		cfg.Delta.RadiusMM = 105.0
	}
	if cfg.Scara.ProximalMM == 0 {
		cfg.Scara.ProximalMM = 150.0
	}
	if cfg.Scara.DistalMM == 0 {
		cfg.Scara.DistalMM = 150.0
	}
}

// DefaultCartesianConfig returns a reasonable i3-style Cartesian config,
// mirroring the teacher's DefaultCartesianConfig shape.
func DefaultCartesianConfig() *MachineConfig {
	cfg := &MachineConfig{
		Mode:       "standalone",
		Kinematics: "cartesian",
		Axes: map[string]AxisConfig{
			"x": {StepPin: "gpio0", DirPin: "gpio1", EnablePin: "gpio8", StepsPerMM: 80, MaxFeedrateMMS: 300, MaxAccelMMS2: 3000, MaxJerkMMS: 10, HomingFeedrate: 50, MinPositionMM: 0, MaxPositionMM: 220},
			"y": {StepPin: "gpio2", DirPin: "gpio3", EnablePin: "gpio8", StepsPerMM: 80, MaxFeedrateMMS: 300, MaxAccelMMS2: 3000, MaxJerkMMS: 10, HomingFeedrate: 50, MinPositionMM: 0, MaxPositionMM: 220},
			"z": {StepPin: "gpio4", DirPin: "gpio5", EnablePin: "gpio8", StepsPerMM: 400, MaxFeedrateMMS: 10, MaxAccelMMS2: 100, MaxJerkMMS: 0.3, HomingFeedrate: 5, MinPositionMM: 0, MaxPositionMM: 250},
		},
		Extruders: []ExtruderConfig{{StepsPerMM: 96, MaxFeedrateMMS: 50, MaxAccelMMS2: 5000, MaxJerkMMS: 5, EFactor: 1.0, MaxExtrudeLenMM: 200}},
	}
	applyDefaults(cfg)
	return cfg
}
