// Package agents implements the rule-driven participants of the mentorship
// chat. Every agent is the same Agent record; what differs per role is the
// Behavior looked up from the dispatch table.
package agents

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dotcommander/simuwork/internal/bus"
	"github.com/dotcommander/simuwork/internal/clock"
	"github.com/dotcommander/simuwork/internal/models"
	"github.com/dotcommander/simuwork/internal/state"
	"github.com/dotcommander/simuwork/pkg/memory"
)

// MemorySize is how many observed events an agent remembers.
const MemorySize = 20

// Env is what an agent acts through. Agents never hold references to each
// other.
type Env struct {
	Bus    *bus.Bus
	Store  *state.Store
	Clock  clock.Clock
	Logger *slog.Logger
	// DelayScale multiplies every response delay. Zero means 1.
	DelayScale float64
}

// Metrics summarises an agent's activity.
type Metrics struct {
	AgentID         string `json:"agent_id"`
	Role            Role   `json:"role"`
	Active          bool   `json:"active"`
	EventsProcessed int    `json:"events_processed"`
	MessagesSent    int    `json:"messages_sent"`
	HintsGiven      int    `json:"hints_given"`
	QuestionsAsked  int    `json:"questions_asked"`
	PendingActions  int    `json:"pending_actions"`
	MemorySize      int    `json:"memory_size"`
}

// counters is the small per-agent scratch state role rules read and write.
type counters struct {
	testFailures  int
	askedForHelp  bool
	affectedUsers int
	escalated     bool
	resolved      bool
}

// Agent is one participant. Create agents with New.
type Agent struct {
	ID       string
	Role     Role
	behavior Behavior
	env      Env
	log      *slog.Logger
	memory   *memory.Ring[models.Event]

	mu        sync.Mutex
	active    bool
	destroyed bool
	unsubs    []func()
	timers    map[uint64]clock.Timer
	nextTimer uint64
	counters  counters
	metrics   Metrics
}

// New builds the agent for role and subscribes it to its event types.
// It returns false if role has no behavior.
func New(role Role, env Env) (*Agent, bool) {
	behavior, ok := behaviors[role]
	if !ok {
		return nil, false
	}
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	if env.DelayScale <= 0 {
		env.DelayScale = 1
	}

	a := &Agent{
		ID:       behavior.AgentID,
		Role:     role,
		behavior: behavior,
		env:      env,
		log:      env.Logger.With("agent", behavior.AgentID),
		memory:   memory.NewRing[models.Event](MemorySize),
		active:   true,
		timers:   make(map[uint64]clock.Timer),
		counters: counters{affectedUsers: initialAffectedUsers},
	}
	for _, eventType := range behavior.Subscriptions {
		a.unsubs = append(a.unsubs, env.Bus.Subscribe(eventType, a.handle, a.ID))
	}
	return a, true
}

// handle is the bus entry point: remember, then react if the rule says so.
func (a *Agent) handle(ev models.Event) {
	a.memory.Push(ev)

	a.mu.Lock()
	a.metrics.EventsProcessed++
	active := a.active && !a.destroyed
	a.mu.Unlock()
	if !active {
		return
	}

	if ev.Type == models.EventDirectorTrigger {
		a.handleTrigger(ev)
		return
	}
	if a.behavior.ShouldReact != nil && !a.behavior.ShouldReact(a, ev) {
		return
	}
	if a.behavior.React != nil {
		a.behavior.React(a, ev)
	}
}

// handleTrigger runs a scripted action addressed to this agent after one
// response delay. Unknown actions are ignored.
func (a *Agent) handleTrigger(ev models.Event) {
	if ev.String("agentId") != a.ID {
		return
	}
	action := ev.String("action")
	fn, ok := a.behavior.Triggers[action]
	if !ok {
		a.log.Debug("unknown director action", "action", action)
		return
	}
	a.log.Debug("director trigger", "action", action)
	a.after(a.ResponseDelay(), func() { fn(a) })
}

// ResponseDelay is the scaled delay before the agent's messages appear.
func (a *Agent) ResponseDelay() time.Duration {
	return time.Duration(float64(a.behavior.ResponseDelay) * a.env.DelayScale)
}

// after runs fn on the clock after d unless the agent is destroyed first.
func (a *Agent) after(d time.Duration, fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return
	}

	id := a.nextTimer
	a.nextTimer++
	a.timers[id] = a.env.Clock.AfterFunc(d, func() {
		a.mu.Lock()
		_, live := a.timers[id]
		delete(a.timers, id)
		dead := a.destroyed
		a.mu.Unlock()
		if live && !dead {
			fn()
		}
	})
}

// SendMessage appends a chat message after the response delay.
func (a *Agent) SendMessage(content, kind, severity string) {
	a.after(a.ResponseDelay(), func() {
		a.env.Store.AddMessage(models.Message{
			AgentID:   a.ID,
			AgentRole: string(a.Role),
			Content:   content,
			Type:      kind,
			Severity:  severity,
		})
		a.mu.Lock()
		a.metrics.MessagesSent++
		a.mu.Unlock()
	})
}

// GiveHint sends a hint and publishes AgentHint.
func (a *Agent) GiveHint(hint, severity string) {
	a.SendMessage(hint, models.MessageHint, severity)
	a.mu.Lock()
	a.metrics.HintsGiven++
	a.mu.Unlock()
	a.env.Bus.Publish(models.EventAgentHint, map[string]any{
		"agentId":  a.ID,
		"hint":     hint,
		"severity": severity,
	}, a.ID)
}

// AskQuestion sends a question and publishes AgentQuestion.
func (a *Agent) AskQuestion(question string) {
	a.SendMessage(question, models.MessageQuestion, "")
	a.mu.Lock()
	a.metrics.QuestionsAsked++
	a.mu.Unlock()
	a.env.Bus.Publish(models.EventAgentQuestion, map[string]any{
		"agentId":  a.ID,
		"question": question,
	}, a.ID)
}

// ReviewCode sends review feedback and publishes AgentCodeReview.
func (a *Agent) ReviewCode(code, feedback, severity string) {
	a.SendMessage(feedback, models.MessageCodeReview, severity)
	a.env.Bus.Publish(models.EventAgentCodeReview, map[string]any{
		"agentId":  a.ID,
		"code":     code,
		"feedback": feedback,
		"severity": severity,
	}, a.ID)
}

// update merges fields into this agent's record in the store.
func (a *Agent) update(fields map[string]any) {
	a.env.Store.UpdateAgent(a.ID, fields)
}

// SetActive toggles whether the agent reacts. Inactive agents still
// remember events.
func (a *Agent) SetActive(active bool) {
	a.mu.Lock()
	a.active = active
	a.mu.Unlock()
}

// Active reports whether the agent reacts to events.
func (a *Agent) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active && !a.destroyed
}

// Memory returns the remembered events, oldest first.
func (a *Agent) Memory() []models.Event {
	return a.memory.All()
}

// Metrics returns a copy of the agent's counters.
func (a *Agent) Metrics() Metrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	m := a.metrics
	m.AgentID = a.ID
	m.Role = a.Role
	m.Active = a.active && !a.destroyed
	m.PendingActions = len(a.timers)
	m.MemorySize = a.memory.Len()
	return m
}

// Destroy unsubscribes the agent and cancels its pending timers. It is safe
// to call more than once.
func (a *Agent) Destroy() {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return
	}
	a.destroyed = true
	unsubs := a.unsubs
	a.unsubs = nil
	timers := a.timers
	a.timers = make(map[uint64]clock.Timer)
	a.mu.Unlock()

	for _, unsubscribe := range unsubs {
		unsubscribe()
	}
	for _, t := range timers {
		t.Stop()
	}
	a.log.Debug("agent destroyed", "cancelled_timers", len(timers))
}
