// Package narration holds the single current narration tooltip and its
// auto-hide timer.
package narration

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dotcommander/simuwork/internal/bus"
	"github.com/dotcommander/simuwork/internal/clock"
	"github.com/dotcommander/simuwork/internal/models"
)

// DefaultDuration applies to narrations that carry no duration.
const DefaultDuration = 18 * time.Second

// Subscriber is told about every change of the current narration. A nil
// argument means nothing is showing.
type Subscriber func(current *models.Narration)

// Options configures a Guide.
type Options struct {
	Bus    *bus.Bus
	Clock  clock.Clock
	Logger *slog.Logger
	// Duration applies to narrations without one. Zero means DefaultDuration.
	Duration time.Duration
}

type subscriberEntry struct {
	fn Subscriber
}

// Guide owns the current-narration slot.
type Guide struct {
	mu         sync.Mutex
	current    *models.Narration
	timer      clock.Timer
	generation uint64
	multiplier float64
	fallback   time.Duration
	subs       []*subscriberEntry

	bus      *bus.Bus
	clock    clock.Clock
	log      *slog.Logger
	failures atomic.Int64
}

// New constructs a Guide with a speed multiplier of 1.
func New(opts Options) *Guide {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	return &Guide{
		multiplier: 1,
		fallback:   opts.Duration,
		bus:        opts.Bus,
		clock:      opts.Clock,
		log:        opts.Logger,
	}
}

// Show replaces the current narration and arms its auto-hide timer for
// duration divided by the speed multiplier in effect now.
func (g *Guide) Show(n models.Narration) {
	g.mu.Lock()
	g.stopTimerLocked()
	g.generation++
	gen := g.generation
	shown := n
	g.current = &shown
	duration := n.Duration
	if duration <= 0 {
		duration = g.fallback
	}
	delay := time.Duration(float64(duration) / g.multiplier)
	g.mu.Unlock()

	g.log.Debug("narration shown", "agent", n.Agent, "hide_after", delay)
	g.notify(&shown)
	if g.bus != nil {
		g.bus.Publish(models.EventNarrationShown, map[string]any{"narration": n}, models.SourceSystem)
	}

	// Arm after publishing so a subscriber that shows another narration
	// does not leave this timer behind.
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.generation != gen {
		return
	}
	g.timer = g.clock.AfterFunc(delay, func() { g.expire(gen) })
}

func (g *Guide) expire(gen uint64) {
	g.mu.Lock()
	stale := g.generation != gen
	g.mu.Unlock()
	if stale {
		return
	}
	g.Hide()
}

// Hide cancels the auto-hide timer, clears the slot and publishes
// NarrationHidden.
func (g *Guide) Hide() {
	g.mu.Lock()
	g.stopTimerLocked()
	g.generation++
	g.current = nil
	g.mu.Unlock()

	g.notify(nil)
	if g.bus != nil {
		g.bus.Publish(models.EventNarrationHidden, nil, models.SourceSystem)
	}
}

func (g *Guide) stopTimerLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

// Current returns the narration showing, if any.
func (g *Guide) Current() (models.Narration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil {
		return models.Narration{}, false
	}
	return *g.current, true
}

// SetSpeedMultiplier changes the divisor applied to timers armed from now
// on. A timer already running keeps its deadline. Non-positive values are
// ignored.
func (g *Guide) SetSpeedMultiplier(m float64) {
	if m <= 0 {
		return
	}
	g.mu.Lock()
	g.multiplier = m
	g.mu.Unlock()
}

// SpeedMultiplier returns the current multiplier.
func (g *Guide) SpeedMultiplier() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.multiplier
}

// Reset hides the narration and restores a multiplier of 1.
func (g *Guide) Reset() {
	g.Hide()
	g.SetSpeedMultiplier(1)
}

// Subscribe registers fn and returns an idempotent unsubscribe.
func (g *Guide) Subscribe(fn Subscriber) func() {
	entry := &subscriberEntry{fn: fn}
	g.mu.Lock()
	g.subs = append(slices.Clone(g.subs), entry)
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			g.subs = slices.DeleteFunc(slices.Clone(g.subs), func(e *subscriberEntry) bool { return e == entry })
		})
	}
}

func (g *Guide) notify(current *models.Narration) {
	g.mu.Lock()
	subs := g.subs
	g.mu.Unlock()

	for _, s := range subs {
		g.call(s, current)
	}
}

func (g *Guide) call(s *subscriberEntry, current *models.Narration) {
	defer func() {
		if r := recover(); r != nil {
			g.failures.Add(1)
			g.log.Error("narration subscriber failed", "panic", fmt.Sprint(r))
		}
	}()
	var arg *models.Narration
	if current != nil {
		copied := *current
		arg = &copied
	}
	s.fn(arg)
}
