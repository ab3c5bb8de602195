package camera

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Manager holds the current capture configuration and handles updates.
type Manager struct {
	config Config
	mu     sync.RWMutex

	// Callback when config changes (for applying to the session)
	OnConfigChange func(cfg Config) error
}

// NewManager creates a new camera manager seeded with cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{
		config: cfg,
	}
}

// GetConfig returns the current configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig validates and stores cfg, then notifies OnConfigChange.
func (m *Manager) SetConfig(cfg Config) error {
	if errors := cfg.Validate(); len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}

	m.mu.Lock()
	m.config = cfg
	callback := m.OnConfigChange
	m.mu.Unlock()

	if callback != nil {
		if err := callback(cfg); err != nil {
			return fmt.Errorf("failed to apply config: %w", err)
		}
	}

	return nil
}

// restartOnly lists update keys that only take effect on restart.
var restartOnly = []string{"framerate", "height", "width"}

// UpdateConfig updates specific fields of the configuration.
// Accepts a map of field names to values; "preset" is applied first.
// Source, resolution and framerate are fixed while running: naming them,
// or choosing a preset that changes them, fails with ErrRestartRequired.
func (m *Manager) UpdateConfig(params map[string]interface{}) error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	var fixed []string
	for _, key := range restartOnly {
		if _, ok := params[key]; ok {
			fixed = append(fixed, key)
		}
	}

	if presetName, ok := params["preset"].(string); ok {
		preset := GetPreset(presetName)
		if preset == nil {
			return fmt.Errorf("unknown preset: %s", presetName)
		}
		if preset.Width != cfg.Width || preset.Height != cfg.Height {
			fixed = append(fixed, "width", "height")
		}
		if preset.Framerate != cfg.Framerate {
			fixed = append(fixed, "framerate")
		}
		cfg.Edges = preset.Edges
	}

	if len(fixed) > 0 {
		sort.Strings(fixed)
		return fmt.Errorf("%w: %s", ErrRestartRequired, strings.Join(dedup(fixed), ", "))
	}

	for key, value := range params {
		switch key {
		case "edge_low":
			if v, ok := toFloat(value); ok {
				cfg.Edges.Low = float32(v)
			}
		case "edge_high":
			if v, ok := toFloat(value); ok {
				cfg.Edges.High = float32(v)
			}
		case "output_dir":
			if v, ok := value.(string); ok {
				cfg.OutputDir = v
			}
		}
	}

	return m.SetConfig(cfg)
}

// GetConfigJSON returns the current config as a map for JSON serialization.
func (m *Manager) GetConfigJSON() map[string]interface{} {
	cfg := m.GetConfig()

	data, _ := json.Marshal(cfg)
	var result map[string]interface{}
	json.Unmarshal(data, &result)

	return result
}

func dedup(sorted []string) []string {
	var out []string
	for _, s := range sorted {
		if len(out) == 0 || out[len(out)-1] != s {
			out = append(out, s)
		}
	}
	return out
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		if err == nil {
			return f, true
		}
	}
	return 0, false
}
