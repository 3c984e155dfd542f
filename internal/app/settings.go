package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/simuwork/internal/models"
)

// Settings represents configuration loaded from config.yaml and SIMUWORK_*
// environment variables. Field names match snake_case YAML keys.
type Settings struct {
	Speed              float64       `yaml:"speed" env:"SIMUWORK_SPEED" json:"speed"`
	TickInterval       time.Duration `yaml:"tick_interval" env:"SIMUWORK_TICK_INTERVAL" json:"tick_interval"`
	NarrationDuration  time.Duration `yaml:"narration_duration" env:"SIMUWORK_NARRATION_DURATION" json:"narration_duration"`
	LogLevel           string        `yaml:"log_level" env:"SIMUWORK_LOG_LEVEL" json:"log_level"`
	Color              string        `yaml:"color" env:"SIMUWORK_COLOR" json:"color"`
	ScriptPath         string        `yaml:"script_path" env:"SIMUWORK_SCRIPT_PATH" json:"script_path,omitempty"`
	ResponseDelayScale float64       `yaml:"response_delay_scale" env:"SIMUWORK_RESPONSE_DELAY_SCALE" json:"response_delay_scale"`
}

const (
	defaultSpeed             = 1.0
	maxSpeed                 = 20.0
	defaultTickInterval      = time.Second
	defaultNarrationDuration = 18 * time.Second
	defaultLogLevel          = "info"
	defaultColor             = "auto"
	defaultDelayScale        = 1.0
)

// ConfigError reports an unreadable or malformed settings source.
type ConfigError struct {
	Source string
	Err    error
}

func (e *ConfigError) Error() string { return fmt.Sprintf("config %s: %v", e.Source, e.Err) }
func (e *ConfigError) Unwrap() error { return e.Err }
func (e *ConfigError) ErrorCode() string {
	return "INVALID_CONFIG"
}
func (e *ConfigError) Context() map[string]string {
	return map[string]string{"source": e.Source}
}
func (e *ConfigError) SuggestedAction() string {
	return "Fix or remove " + e.Source + ", then run: simuwork config"
}

var _ models.RecoverableError = (*ConfigError)(nil)

// settingsOnce, settings, settingsSource, settingsErr implement the sync.Once
// lazy-load singleton for config.yaml.
//
//nolint:gochecknoglobals // sync.Once singleton is intentional process-wide state
var (
	settingsOnce   sync.Once
	settings       Settings
	settingsSource string
	settingsErr    error
)

// LoadSettings loads config.yaml once using the documented lookup order.
// Lookup order (first found wins):
// 1) ~/.config/simuwork/config.yaml
// 2) /etc/simuwork/config.yaml
// 3) ./config.yaml (lowest priority; allows repo-local overrides if desired)
// Environment variables are applied by EffectiveSettings.
func LoadSettings() (Settings, error) {
	settingsOnce.Do(func() {
		settings = Settings{}

		dir, err := ConfigDir()
		if err != nil {
			settingsErr = err
			return
		}
		candidates := []string{
			filepath.Join(dir, "config.yaml"),
			filepath.Join(string(os.PathSeparator), "etc", "simuwork", "config.yaml"),
			"config.yaml",
		}
		for _, path := range candidates {
			s, err := loadSettingsFile(path)
			if err == nil {
				settings = s
				settingsSource = path
				return
			}
			if !errors.Is(err, os.ErrNotExist) {
				settingsErr = &ConfigError{Source: path, Err: err}
				return
			}
		}
	})

	return settings, settingsErr
}

// SettingsSource returns the config file LoadSettings used, or "" when none
// was found.
func SettingsSource() string {
	_, _ = LoadSettings()
	return settingsSource
}

func loadSettingsFile(path string) (Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}

	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// EffectiveSettings returns config.yaml values overlaid with SIMUWORK_*
// environment variables. Missing or out-of-range values fall back to
// defaults.
func EffectiveSettings() (Settings, error) {
	s, err := LoadSettings()
	if err != nil {
		return withDefaults(Settings{}), err
	}
	if err := env.Parse(&s); err != nil {
		return withDefaults(Settings{}), &ConfigError{Source: "environment", Err: err}
	}
	return withDefaults(s), nil
}

func withDefaults(s Settings) Settings {
	if s.Speed <= 0 {
		s.Speed = defaultSpeed
	}
	if s.Speed > maxSpeed {
		s.Speed = maxSpeed
	}
	if s.TickInterval <= 0 {
		s.TickInterval = defaultTickInterval
	}
	if s.NarrationDuration <= 0 {
		s.NarrationDuration = defaultNarrationDuration
	}
	if s.LogLevel == "" {
		s.LogLevel = defaultLogLevel
	}
	if s.Color == "" {
		s.Color = defaultColor
	}
	if s.ResponseDelayScale <= 0 {
		s.ResponseDelayScale = defaultDelayScale
	}
	return s
}
