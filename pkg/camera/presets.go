package camera

// Preset names for common configurations
const (
	PresetDefault   = "default"
	Preset720p      = "720p"
	Preset1080p     = "1080p"
	PresetSensitive = "sensitive"
	PresetCoarse    = "coarse"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault:   DefaultConfig(),
		Preset720p:      HD720Config(),
		Preset1080p:     HD1080Config(),
		PresetSensitive: SensitiveConfig(),
		PresetCoarse:    CoarseConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		Preset720p,
		Preset1080p,
		PresetSensitive,
		PresetCoarse,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// HD720Config returns 720p HD configuration.
func HD720Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	return cfg
}

// HD1080Config returns 1080p Full HD configuration.
// Edge filtering gets noticeably slower at this size.
func HD1080Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1920
	cfg.Height = 1080
	return cfg
}

// SensitiveConfig lowers the thresholds to pick up faint edges.
func SensitiveConfig() Config {
	cfg := DefaultConfig()
	cfg.Edges.Low = 5
	cfg.Edges.High = 15
	return cfg
}

// CoarseConfig keeps only strong outlines.
func CoarseConfig() Config {
	cfg := DefaultConfig()
	cfg.Edges.Low = 50
	cfg.Edges.High = 150
	return cfg
}
