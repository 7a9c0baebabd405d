package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration tree. It is applied atomically
// via ApplyConfig and affects only frames processed after the call.
type Config struct {
	EchoCanceller    EchoCanceller    `yaml:"echo_canceller"`
	NoiseSuppression NoiseSuppression `yaml:"noise_suppression"`
	GainController1  GainController1  `yaml:"gain_controller1"`
	GainController2  GainController2  `yaml:"gain_controller2"`
	HighPassFilter   HighPassFilter   `yaml:"high_pass_filter"`
}

type EchoCanceller struct {
	Enabled                  bool `yaml:"enabled"`
	MobileMode               bool `yaml:"mobile_mode"`
	ExportLinearAECOutput    bool `yaml:"export_linear_aec_output"`
	EnforceHighPassFiltering bool `yaml:"enforce_high_pass_filtering"`
}

type NoiseSuppression struct {
	Enabled                             bool                  `yaml:"enabled"`
	Level                               NoiseSuppressionLevel `yaml:"level"`
	AnalyzeLinearAECOutputWhenAvailable bool                  `yaml:"analyze_linear_aec_output_when_available"`
}

type NoiseSuppressionLevel int

const (
	NoiseSuppressionLow NoiseSuppressionLevel = iota
	NoiseSuppressionModerate
	NoiseSuppressionHigh
	NoiseSuppressionVeryHigh
)

func (l NoiseSuppressionLevel) String() string {
	switch l {
	case NoiseSuppressionLow:
		return "low"
	case NoiseSuppressionModerate:
		return "moderate"
	case NoiseSuppressionHigh:
		return "high"
	case NoiseSuppressionVeryHigh:
		return "very_high"
	default:
		return fmt.Sprintf("unknown_level_%d", int(l))
	}
}

func (l NoiseSuppressionLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *NoiseSuppressionLevel) UnmarshalText(b []byte) error {
	switch string(b) {
	case "low":
		*l = NoiseSuppressionLow
	case "moderate":
		*l = NoiseSuppressionModerate
	case "high":
		*l = NoiseSuppressionHigh
	case "very_high":
		*l = NoiseSuppressionVeryHigh
	default:
		return fmt.Errorf("unknown noise suppression level: '%s'", b)
	}
	return nil
}

func (l NoiseSuppressionLevel) MarshalYAML() (any, error) {
	return l.String(), nil
}

// yaml.v3 ignores encoding.TextUnmarshaler, so the YAML hook is explicit.
func (l *NoiseSuppressionLevel) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return l.UnmarshalText([]byte(s))
}

type GainController1 struct {
	Enabled           bool                `yaml:"enabled"`
	Mode              GainController1Mode `yaml:"mode"`
	TargetLevelDBFS   int                 `yaml:"target_level_dbfs"`
	CompressionGainDB int                 `yaml:"compression_gain_db"`
	EnableLimiter     bool                `yaml:"enable_limiter"`
}

type GainController1Mode int

const (
	GainControllerAdaptiveAnalog GainController1Mode = iota
	GainControllerAdaptiveDigital
	GainControllerFixedDigital
)

func (m GainController1Mode) String() string {
	switch m {
	case GainControllerAdaptiveAnalog:
		return "adaptive_analog"
	case GainControllerAdaptiveDigital:
		return "adaptive_digital"
	case GainControllerFixedDigital:
		return "fixed_digital"
	default:
		return fmt.Sprintf("unknown_mode_%d", int(m))
	}
}

func (m GainController1Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *GainController1Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "adaptive_analog":
		*m = GainControllerAdaptiveAnalog
	case "adaptive_digital":
		*m = GainControllerAdaptiveDigital
	case "fixed_digital":
		*m = GainControllerFixedDigital
	default:
		return fmt.Errorf("unknown gain controller mode: '%s'", b)
	}
	return nil
}

func (m GainController1Mode) MarshalYAML() (any, error) {
	return m.String(), nil
}

func (m *GainController1Mode) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return m.UnmarshalText([]byte(s))
}

type GainController2 struct {
	Enabled bool `yaml:"enabled"`
}

type HighPassFilter struct {
	Enabled         bool `yaml:"enabled"`
	ApplyInFullBand bool `yaml:"apply_in_full_band"`
}

// DefaultConfig enables the full enhancement chain: echo cancellation,
// moderate noise suppression, adaptive-analog gain control with a limiter,
// the digital gain controller and the high-pass filter.
func DefaultConfig() Config {
	return Config{
		EchoCanceller: EchoCanceller{
			Enabled:    true,
			MobileMode: false,
		},
		NoiseSuppression: NoiseSuppression{
			Enabled: true,
			Level:   NoiseSuppressionModerate,
		},
		GainController1: GainController1{
			Enabled:           true,
			Mode:              GainControllerAdaptiveAnalog,
			TargetLevelDBFS:   3,
			CompressionGainDB: 9,
			EnableLimiter:     true,
		},
		GainController2: GainController2{
			Enabled: true,
		},
		HighPassFilter: HighPassFilter{
			Enabled: true,
		},
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("unable to read the config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unable to parse the config file: %w", err)
	}
	return cfg, nil
}
