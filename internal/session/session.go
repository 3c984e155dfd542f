// Package session wires one demo together: clock, bus, store, narration
// guide, orchestrator and timeline. Every component is built once here and
// passed by reference; nothing is global.
package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dotcommander/simuwork/internal/bus"
	"github.com/dotcommander/simuwork/internal/clock"
	"github.com/dotcommander/simuwork/internal/models"
	"github.com/dotcommander/simuwork/internal/narration"
	"github.com/dotcommander/simuwork/internal/orchestrator"
	"github.com/dotcommander/simuwork/internal/report"
	"github.com/dotcommander/simuwork/internal/state"
	"github.com/dotcommander/simuwork/internal/timeline"
)

// ErrNotVirtual is returned by RunHeadless on a wall-clock session.
var ErrNotVirtual = errors.New("headless run needs a virtual clock")

// headlessStep is the virtual time advanced per headless iteration.
const headlessStep = 100 * time.Millisecond

// Options configures a Session. Zero values fall back to component defaults.
type Options struct {
	// Clock defaults to a virtual clock starting now.
	Clock             clock.Clock
	Logger            *slog.Logger
	Script            []models.ScriptAction
	Speed             float64
	TickInterval      time.Duration
	NarrationDuration time.Duration
	DelayScale        float64
	HistorySize       int
}

// Session is one wired demo.
type Session struct {
	Clock        clock.Clock
	Bus          *bus.Bus
	Store        *state.Store
	Guide        *narration.Guide
	Orchestrator *orchestrator.Orchestrator
	Timeline     *timeline.Scheduler

	log *slog.Logger

	mu          sync.Mutex
	done        chan struct{}
	completions int
	closed      bool
	unwatch     func()
}

// New builds every component. Nothing runs until Start.
func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewVirtual(time.Now())
	}

	b := bus.New(bus.Options{Clock: opts.Clock, Logger: opts.Logger, HistorySize: opts.HistorySize})
	store := state.New(state.Options{Bus: b, Clock: opts.Clock, Logger: opts.Logger})
	guide := narration.New(narration.Options{
		Bus:      b,
		Clock:    opts.Clock,
		Logger:   opts.Logger,
		Duration: opts.NarrationDuration,
	})
	orch := orchestrator.New(orchestrator.Options{
		Bus:          b,
		Store:        store,
		Clock:        opts.Clock,
		Logger:       opts.Logger,
		TickInterval: opts.TickInterval,
		DelayScale:   opts.DelayScale,
	})
	sched := timeline.New(timeline.Options{
		Bus:    b,
		Store:  store,
		Guide:  guide,
		Clock:  opts.Clock,
		Logger: opts.Logger,
		Script: opts.Script,
		Speed:  opts.Speed,
	})

	s := &Session{
		Clock:        opts.Clock,
		Bus:          b,
		Store:        store,
		Guide:        guide,
		Orchestrator: orch,
		Timeline:     sched,
		log:          opts.Logger,
		done:         make(chan struct{}),
	}
	s.unwatch = b.Subscribe(models.EventScenarioComplete, s.onComplete, "session")
	return s
}

func (s *Session) onComplete(models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completions++
	if s.completions == 1 {
		close(s.done)
	}
}

// Start initializes the agents and begins playback.
func (s *Session) Start() {
	s.Orchestrator.Initialize()
	s.Timeline.Start()
	s.log.Info("session started", "actions", len(s.Timeline.Script()))
}

// Restart rewinds the demo: playback and agents are torn down, the store is
// reset keeping the user profile, and playback begins again.
func (s *Session) Restart() {
	s.Timeline.Reset()
	s.Orchestrator.Restart()

	s.mu.Lock()
	s.completions = 0
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.Timeline.Start()
	s.log.Info("session restarted")
}

// TogglePause stops a playing timeline and pauses the agents, or resumes
// both. It returns true when the session is now paused.
func (s *Session) TogglePause() bool {
	if s.Timeline.Playing() {
		s.Timeline.Stop()
		s.Orchestrator.Pause()
		return true
	}
	s.Orchestrator.Resume()
	s.Timeline.Resume()
	return false
}

// AskCodeQuestion posts a user question for the code assistant: the chat
// message first, then the event carrying the current code buffer.
func (s *Session) AskCodeQuestion(question string) {
	s.Store.AddMessage(models.Message{
		AgentID: models.AgentUser,
		Content: question,
		Type:    models.MessageUserCode,
	})
	s.Bus.Publish(models.EventUserCodeQuestion, map[string]any{
		"question": question,
		"code":     s.Store.State().Code(),
	}, models.SourceUser)
}

// Done is closed when the scenario completes. Restart replaces it.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Completions counts ScenarioComplete events since the last (re)start.
func (s *Session) Completions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completions
}

// Report evaluates the current state.
func (s *Session) Report() report.Report {
	return report.Evaluate(s.Store.State())
}

// Close stops playback and destroys the agents. Safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unwatch := s.unwatch
	s.mu.Unlock()

	s.Timeline.Reset()
	s.Orchestrator.Destroy()
	unwatch()
	s.log.Info("session closed")
}

// RunHeadless drives a virtual-clock session until the scenario completes
// or limit of virtual time passes. It reports whether the scenario
// completed.
func (s *Session) RunHeadless(limit time.Duration) (bool, error) {
	vc, ok := s.Clock.(*clock.Virtual)
	if !ok {
		return false, ErrNotVirtual
	}
	s.Start()
	done := s.Done()
	for elapsed := time.Duration(0); elapsed < limit; elapsed += headlessStep {
		select {
		case <-done:
			return true, nil
		default:
		}
		vc.Advance(headlessStep)
	}
	select {
	case <-done:
		return true, nil
	default:
		return false, nil
	}
}
