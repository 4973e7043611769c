package config

import "fmt"

// StressProfile is the set of load intensities for one run, each a
// percentage in [0, 100]. A zero percentage disables that category.
type StressProfile struct {
	CPUPct  int
	GPUPct  int
	VRAMPct int
}

// Built-in intensity presets.
var (
	PresetLow  = StressProfile{CPUPct: 30, GPUPct: 30, VRAMPct: 30}
	PresetMid  = StressProfile{CPUPct: 60, GPUPct: 60, VRAMPct: 60}
	PresetHigh = StressProfile{CPUPct: 80, GPUPct: 80, VRAMPct: 80}
)

// PresetByName resolves a preset name (case matters: "low", "mid",
// "high"). Unknown names are an error so a typo never silently runs at
// zero load.
func PresetByName(name string) (StressProfile, error) {
	switch name {
	case "low":
		return PresetLow, nil
	case "mid":
		return PresetMid, nil
	case "high":
		return PresetHigh, nil
	default:
		return StressProfile{}, fmt.Errorf("unknown preset %q", name)
	}
}

// Validate checks that every percentage is within [0, 100].
func (p StressProfile) Validate() error {
	for _, f := range []struct {
		name string
		pct  int
	}{
		{"cpu", p.CPUPct},
		{"gpu", p.GPUPct},
		{"vram", p.VRAMPct},
	} {
		if f.pct < 0 || f.pct > 100 {
			return fmt.Errorf("%s percentage %d out of range [0, 100]", f.name, f.pct)
		}
	}
	return nil
}
