// Package orchestrator owns the agent set and the periodic time tick.
package orchestrator

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dotcommander/simuwork/internal/agents"
	"github.com/dotcommander/simuwork/internal/bus"
	"github.com/dotcommander/simuwork/internal/clock"
	"github.com/dotcommander/simuwork/internal/models"
	"github.com/dotcommander/simuwork/internal/state"
)

// DefaultTickInterval is how often elapsed scenario time advances.
const DefaultTickInterval = time.Second

// Options configures an Orchestrator.
type Options struct {
	Bus          *bus.Bus
	Store        *state.Store
	Clock        clock.Clock
	Logger       *slog.Logger
	TickInterval time.Duration
	// DelayScale is passed to every agent.
	DelayScale float64
}

// Status is a point-in-time summary.
type Status struct {
	Initialized bool             `json:"initialized"`
	Running     bool             `json:"running"`
	AgentCount  int              `json:"agent_count"`
	TimeElapsed int              `json:"time_elapsed"`
	Agents      []agents.Metrics `json:"agents"`
}

// Orchestrator builds, pauses and tears down the agents.
type Orchestrator struct {
	opts Options
	log  *slog.Logger

	mu          sync.Mutex
	agents      []*agents.Agent
	initialized bool
	running     bool
	tick        clock.Timer
	tickGen     uint64
	unobserve   func()
}

// New constructs an Orchestrator. Nothing starts until Initialize.
func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	return &Orchestrator{opts: opts, log: opts.Logger}
}

// Initialize creates the agents, starts the tick and publishes SystemReady.
// Calling it again while initialized returns the existing agents.
func (o *Orchestrator) Initialize() []*agents.Agent {
	o.mu.Lock()
	if o.initialized {
		existing := o.agents
		o.mu.Unlock()
		return existing
	}

	env := agents.Env{
		Bus:        o.opts.Bus,
		Store:      o.opts.Store,
		Clock:      o.opts.Clock,
		Logger:     o.log,
		DelayScale: o.opts.DelayScale,
	}
	created := make([]*agents.Agent, 0, len(agents.Roles()))
	for _, role := range agents.Roles() {
		if a, ok := agents.New(role, env); ok {
			created = append(created, a)
		}
	}
	o.agents = created
	o.initialized = true
	o.running = true
	o.unobserve = o.opts.Store.Subscribe(o.observe)
	o.startTickLocked()
	o.mu.Unlock()

	o.log.Info("orchestrator initialized", "agents", len(created))
	o.opts.Bus.Publish(models.EventSystemReady, map[string]any{"agentCount": len(created)}, models.SourceSystem)
	return created
}

// observe logs scenario phase transitions as they land in the store.
func (o *Orchestrator) observe(s state.Snapshot, partial map[string]any) {
	scenario, _ := partial[state.SectionScenario].(map[string]any)
	if _, ok := scenario["phase"]; ok {
		o.log.Info("scenario phase observed", "phase", s.Phase(), "elapsed", s.TimeElapsed())
	}
}

func (o *Orchestrator) startTickLocked() {
	o.tickGen++
	o.scheduleTickLocked(o.tickGen)
}

func (o *Orchestrator) scheduleTickLocked(gen uint64) {
	o.tick = o.opts.Clock.AfterFunc(o.opts.TickInterval, func() { o.onTick(gen) })
}

func (o *Orchestrator) onTick(gen uint64) {
	o.mu.Lock()
	if gen != o.tickGen || !o.running {
		o.mu.Unlock()
		return
	}
	o.scheduleTickLocked(gen)
	o.mu.Unlock()

	elapsed := o.opts.Store.IncrementTime(1)
	o.opts.Bus.Publish(models.EventTimeTick, map[string]any{"elapsed": elapsed}, models.SourceSystem)
}

func (o *Orchestrator) stopTickLocked() {
	o.tickGen++
	if o.tick != nil {
		o.tick.Stop()
		o.tick = nil
	}
}

// Pause deactivates every agent and stops the tick. It returns false when
// already paused or not initialized.
func (o *Orchestrator) Pause() bool {
	o.mu.Lock()
	if !o.initialized || !o.running {
		o.mu.Unlock()
		return false
	}
	o.running = false
	o.stopTickLocked()
	current := o.agents
	o.mu.Unlock()

	for _, a := range current {
		a.SetActive(false)
	}
	o.log.Info("orchestrator paused")
	return true
}

// Resume reactivates the agents and restarts the tick. It returns false when
// already running or not initialized.
func (o *Orchestrator) Resume() bool {
	o.mu.Lock()
	if !o.initialized || o.running {
		o.mu.Unlock()
		return false
	}
	o.running = true
	o.startTickLocked()
	current := o.agents
	o.mu.Unlock()

	for _, a := range current {
		a.SetActive(true)
	}
	o.log.Info("orchestrator resumed")
	return true
}

// Restart tears everything down, resets the store and the bus history, and
// initializes again.
func (o *Orchestrator) Restart() []*agents.Agent {
	o.Destroy()
	o.opts.Store.Reset()
	o.opts.Bus.ClearHistory()
	return o.Initialize()
}

// Destroy stops the tick and destroys every agent. Safe to call twice.
func (o *Orchestrator) Destroy() {
	o.mu.Lock()
	o.stopTickLocked()
	current := o.agents
	o.agents = nil
	unobserve := o.unobserve
	o.unobserve = nil
	wasInitialized := o.initialized
	o.initialized = false
	o.running = false
	o.mu.Unlock()

	for _, a := range current {
		a.Destroy()
	}
	if unobserve != nil {
		unobserve()
	}
	if wasInitialized {
		o.log.Info("orchestrator destroyed", "agents", len(current))
	}
}

// Trigger routes a scripted action to one agent.
func (o *Orchestrator) Trigger(agentID, action string) {
	o.opts.Bus.Publish(models.EventDirectorTrigger, map[string]any{
		"agentId": agentID,
		"action":  action,
	}, models.SourceDirector)
}

// Agent returns the live agent with id.
func (o *Orchestrator) Agent(id string) (*agents.Agent, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, a := range o.agents {
		if a.ID == id {
			return a, true
		}
	}
	return nil, false
}

// Running reports whether the agents are active and the tick is running.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Status summarises the orchestrator and its agents.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	st := Status{
		Initialized: o.initialized,
		Running:     o.running,
		AgentCount:  len(o.agents),
	}
	current := o.agents
	o.mu.Unlock()

	for _, a := range current {
		st.Agents = append(st.Agents, a.Metrics())
	}
	st.TimeElapsed = o.opts.Store.State().TimeElapsed()
	return st
}
