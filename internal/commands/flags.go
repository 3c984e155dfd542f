package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/dotcommander/simuwork/internal/app"
	"github.com/dotcommander/simuwork/internal/clock"
	"github.com/dotcommander/simuwork/internal/models"
	"github.com/dotcommander/simuwork/internal/session"
	"github.com/dotcommander/simuwork/internal/timeline"
)

// playbackFlags are shared by play and run. They override config values
// only when set on the command line.
type playbackFlags struct {
	speed      float64
	script     string
	tick       time.Duration
	narration  time.Duration
	delayScale float64
}

func (f *playbackFlags) register(fs *pflag.FlagSet) {
	fs.Float64Var(&f.speed, "speed", 0, "Playback speed multiplier (default: config speed, 1)")
	fs.StringVar(&f.script, "script", "", "YAML or JSON script file (default: built-in demo)")
	fs.DurationVar(&f.tick, "tick-interval", 0, "Scenario time tick interval (default: config tick_interval, 1s)")
	fs.DurationVar(&f.narration, "narration-duration", 0, "Fallback narration duration (default: config narration_duration, 18s)")
	fs.Float64Var(&f.delayScale, "response-delay-scale", 0, "Multiplier for agent response delays (default: config, 1)")
}

// apply overlays the flags that were set onto s.
func (f *playbackFlags) apply(fs *pflag.FlagSet, s app.Settings) (app.Settings, error) {
	if fs.Changed("speed") {
		if f.speed <= 0 {
			return s, fmt.Errorf("--speed must be positive, got %v", f.speed)
		}
		s.Speed = f.speed
	}
	if fs.Changed("script") {
		s.ScriptPath = f.script
	}
	if fs.Changed("tick-interval") {
		if f.tick <= 0 {
			return s, fmt.Errorf("--tick-interval must be positive, got %s", f.tick)
		}
		s.TickInterval = f.tick
	}
	if fs.Changed("narration-duration") {
		if f.narration <= 0 {
			return s, fmt.Errorf("--narration-duration must be positive, got %s", f.narration)
		}
		s.NarrationDuration = f.narration
	}
	if fs.Changed("response-delay-scale") {
		if f.delayScale <= 0 {
			return s, fmt.Errorf("--response-delay-scale must be positive, got %v", f.delayScale)
		}
		s.ResponseDelayScale = f.delayScale
	}
	return s, nil
}

// resolveSettings returns config < env < flag settings.
func resolveSettings(fs *pflag.FlagSet, f *playbackFlags) (app.Settings, error) {
	s, err := app.EffectiveSettings()
	if err != nil {
		return s, err
	}
	return f.apply(fs, s)
}

// sessionOptions loads the script named in s, if any, and builds the
// session options for c.
func sessionOptions(s app.Settings, c clock.Clock, logger *slog.Logger) (session.Options, error) {
	var script []models.ScriptAction
	if s.ScriptPath != "" {
		loaded, err := timeline.LoadScript(s.ScriptPath)
		if err != nil {
			return session.Options{}, err
		}
		script = loaded
	}
	return session.Options{
		Clock:             c,
		Logger:            logger,
		Script:            script,
		Speed:             s.Speed,
		TickInterval:      s.TickInterval,
		NarrationDuration: s.NarrationDuration,
		DelayScale:        s.ResponseDelayScale,
	}, nil
}
