// Package timeline plays a scripted demo against the bus, the store and the
// narration guide.
//
// Playback tracks a script position: how far into the script's own time
// axis playback has got. It advances with the clock scaled by the current
// speed, so retiming after a speed change or a skip is always computed
// against script time rather than wall time.
package timeline

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dotcommander/simuwork/internal/bus"
	"github.com/dotcommander/simuwork/internal/clock"
	"github.com/dotcommander/simuwork/internal/models"
	"github.com/dotcommander/simuwork/internal/narration"
	"github.com/dotcommander/simuwork/internal/state"
)

const (
	// MinDelay floors every rescheduled delay.
	MinDelay = 50 * time.Millisecond
	// SkipFactor is the speed used while skipping to the next narration.
	SkipFactor = 5.0
	// TestRunDelay is how long the simulated suite takes at speed 1.
	TestRunDelay = 1500 * time.Millisecond
	// DefaultTypingDuration applies to user messages without one.
	DefaultTypingDuration = 2 * time.Second
)

// Options configures a Scheduler.
type Options struct {
	Bus    *bus.Bus
	Store  *state.Store
	Guide  *narration.Guide
	Clock  clock.Clock
	Logger *slog.Logger
	// Script defaults to the built-in demo.
	Script []models.ScriptAction
	// Speed is the playback speed a fresh start uses. Zero means 1.
	Speed float64
}

// Progress reports how far playback has got.
type Progress struct {
	Executed int     `json:"executed"`
	Total    int     `json:"total"`
	Percent  float64 `json:"percent"`
	Playing  bool    `json:"playing"`
	Speed    float64 `json:"speed"`
	Position float64 `json:"position_seconds"`
}

// Scheduler is the script player.
type Scheduler struct {
	bus       *bus.Bus
	store     *state.Store
	guide     *narration.Guide
	clock     clock.Clock
	log       *slog.Logger
	script    []models.ScriptAction
	baseSpeed float64

	mu           sync.Mutex
	started      bool
	playing      bool
	lastExecuted int
	speed        float64
	basePos      time.Duration
	baseWall     time.Time
	gen          uint64
	actionTimers map[int]clock.Timer

	effectGen    uint64
	effectTimers map[uint64]clock.Timer
	nextEffect   uint64

	skipping     bool
	skipTarget   int
	restoreSpeed float64

	codeChanged bool
	completed   bool
}

// New constructs a Scheduler. The script is copied.
func New(opts Options) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Speed <= 0 {
		opts.Speed = 1
	}
	script := opts.Script
	if script == nil {
		script = Script()
	}
	return &Scheduler{
		bus:          opts.Bus,
		store:        opts.Store,
		guide:        opts.Guide,
		clock:        opts.Clock,
		log:          opts.Logger,
		script:       slices.Clone(script),
		baseSpeed:    opts.Speed,
		lastExecuted: -1,
		speed:        opts.Speed,
		actionTimers: make(map[int]clock.Timer),
		effectTimers: make(map[uint64]clock.Timer),
	}
}

// Script returns a copy of the script being played.
func (s *Scheduler) Script() []models.ScriptAction {
	return slices.Clone(s.script)
}

// Start begins playback from the first action at the base speed. It returns
// false without doing anything while already playing.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	if s.playing {
		s.mu.Unlock()
		return false
	}
	s.cancelActionsLocked()
	s.started = true
	s.playing = true
	s.lastExecuted = -1
	s.speed = s.baseSpeed
	s.basePos = 0
	s.baseWall = s.clock.Now()
	s.skipping = false
	s.codeChanged = false
	s.completed = false
	s.scheduleLocked(0, len(s.script), false)
	speed := s.speed
	s.mu.Unlock()

	s.guide.SetSpeedMultiplier(speed)
	s.log.Info("timeline started", "actions", len(s.script), "speed", speed)
	return true
}

// SpeedUp retimes every action not yet executed to run factor times faster
// than script time, and hides the current narration.
func (s *Scheduler) SpeedUp(factor float64) {
	if factor <= 0 {
		return
	}
	s.mu.Lock()
	s.cancelActionsLocked()
	s.skipping = false
	s.setSpeedLocked(factor)
	if s.playing {
		s.scheduleLocked(s.lastExecuted+1, len(s.script), true)
	}
	s.mu.Unlock()

	s.guide.Hide()
	s.guide.SetSpeedMultiplier(factor)
	s.log.Info("timeline speed changed", "speed", factor)
}

// SkipToNextNarration fast-forwards to the next narration at SkipFactor and
// drops back to the previous speed when it is reached. With no narration
// ahead it only hides the current one.
func (s *Scheduler) SkipToNextNarration() bool {
	s.mu.Lock()
	next := -1
	for i := s.lastExecuted + 1; i < len(s.script); i++ {
		if s.script[i].Type == models.ActionShowNarration {
			next = i
			break
		}
	}
	if next < 0 || !s.playing {
		s.mu.Unlock()
		s.guide.Hide()
		return false
	}

	if !s.skipping {
		s.restoreSpeed = s.speed
	}
	s.skipping = true
	s.skipTarget = next
	s.cancelActionsLocked()
	s.setSpeedLocked(SkipFactor)
	s.scheduleLocked(s.lastExecuted+1, next+1, true)
	s.mu.Unlock()

	s.guide.Hide()
	s.guide.SetSpeedMultiplier(SkipFactor)
	s.log.Info("timeline skipping", "target", next)
	return true
}

// Stop cancels pending actions and pauses playback. The execution index and
// in-flight effects such as typing are kept.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return false
	}
	s.basePos = s.positionLocked()
	s.baseWall = s.clock.Now()
	s.playing = false
	if s.skipping {
		s.skipping = false
		s.speed = s.restoreSpeed
	}
	s.cancelActionsLocked()
	s.log.Info("timeline stopped", "last_executed", s.lastExecuted)
	return true
}

// Resume continues a stopped playback after the last executed action.
func (s *Scheduler) Resume() bool {
	s.mu.Lock()
	if s.playing || !s.started || s.lastExecuted >= len(s.script)-1 {
		s.mu.Unlock()
		return false
	}
	s.playing = true
	s.baseWall = s.clock.Now()
	s.cancelActionsLocked()
	s.scheduleLocked(s.lastExecuted+1, len(s.script), true)
	speed := s.speed
	s.mu.Unlock()

	s.guide.SetSpeedMultiplier(speed)
	s.log.Info("timeline resumed", "speed", speed)
	return true
}

// Reset stops playback, cancels in-flight effects and forgets progress.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	s.cancelActionsLocked()
	s.effectGen++
	for id, t := range s.effectTimers {
		t.Stop()
		delete(s.effectTimers, id)
	}
	s.started = false
	s.playing = false
	s.lastExecuted = -1
	s.speed = s.baseSpeed
	s.basePos = 0
	s.skipping = false
	s.codeChanged = false
	s.completed = false
	s.mu.Unlock()

	s.guide.Reset()
	s.store.Update(map[string]any{state.SectionUI: map[string]any{
		"userTyping":    false,
		"typingPreview": "",
	}}, models.SourceSystem)
	s.log.Info("timeline reset")
}

// Progress reports playback progress.
func (s *Scheduler) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := len(s.script)
	executed := s.lastExecuted + 1
	p := Progress{
		Executed: executed,
		Total:    total,
		Playing:  s.playing,
		Speed:    s.speed,
		Position: s.positionLocked().Seconds(),
	}
	if total > 0 {
		p.Percent = float64(executed) / float64(total) * 100
	}
	return p
}

// Playing reports whether actions are scheduled.
func (s *Scheduler) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Finished reports whether the last action has run.
func (s *Scheduler) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastExecuted >= len(s.script)-1
}

func (s *Scheduler) positionLocked() time.Duration {
	if !s.playing {
		return s.basePos
	}
	wall := s.clock.Now().Sub(s.baseWall)
	return s.basePos + time.Duration(float64(wall)*s.speed)
}

func (s *Scheduler) setSpeedLocked(speed float64) {
	s.basePos = s.positionLocked()
	s.baseWall = s.clock.Now()
	s.speed = speed
}

func (s *Scheduler) cancelActionsLocked() {
	s.gen++
	for idx, t := range s.actionTimers {
		t.Stop()
		delete(s.actionTimers, idx)
	}
}

// scheduleLocked arms actions [from, to) relative to the current position.
func (s *Scheduler) scheduleLocked(from, to int, floor bool) {
	pos := s.positionLocked()
	gen := s.gen
	for i := from; i < to; i++ {
		delay := time.Duration(float64(s.script[i].At()-pos) / s.speed)
		if floor {
			delay = max(MinDelay, delay)
		} else {
			delay = max(0, delay)
		}
		idx := i
		s.actionTimers[idx] = s.clock.AfterFunc(delay, func() { s.fire(gen, idx) })
	}
}

// fire runs action idx unless it is stale or already executed. Earlier
// actions still pending are run first, in order, so a timer delivered ahead
// of its predecessors never causes them to be skipped.
func (s *Scheduler) fire(gen uint64, idx int) {
	s.mu.Lock()
	if gen != s.gen || !s.playing || idx <= s.lastExecuted {
		s.mu.Unlock()
		return
	}
	from := s.lastExecuted + 1
	for i := from; i <= idx; i++ {
		if t, ok := s.actionTimers[i]; ok {
			t.Stop()
			delete(s.actionTimers, i)
		}
	}
	s.lastExecuted = idx
	actions := slices.Clone(s.script[from : idx+1])

	var restored float64
	if s.skipping && s.skipTarget <= idx {
		// Reached the narration being skipped to: back to the prior speed
		// for it and everything after it.
		s.skipping = false
		restored = s.restoreSpeed
		s.cancelActionsLocked()
		s.setSpeedLocked(restored)
		s.scheduleLocked(idx+1, len(s.script), true)
	}
	if idx == len(s.script)-1 {
		s.basePos = s.positionLocked()
		s.baseWall = s.clock.Now()
		s.playing = false
	}
	speed := s.speed
	s.mu.Unlock()

	if restored > 0 {
		s.guide.SetSpeedMultiplier(restored)
	}
	if from < idx {
		s.log.Debug("timeline catching up", "from", from, "to", idx)
	}
	for i, action := range actions {
		s.log.Debug("timeline action", "index", from+i, "type", action.Type, "at", action.Time)
		s.execute(action, speed)
	}
}

// after runs fn on the clock unless Reset intervenes. Effects survive
// SpeedUp and Stop.
func (s *Scheduler) after(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextEffect
	s.nextEffect++
	gen := s.effectGen
	s.effectTimers[id] = s.clock.AfterFunc(max(0, d), func() {
		s.mu.Lock()
		delete(s.effectTimers, id)
		stale := gen != s.effectGen
		s.mu.Unlock()
		if !stale {
			fn()
		}
	})
}

// PendingEffects returns how many effect timers are outstanding.
func (s *Scheduler) PendingEffects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.effectTimers)
}
