// Package state owns the application state tree. Every write is a deep
// merge that produces a new tree, so a snapshot handed out earlier never
// changes underneath its holder.
package state

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dotcommander/simuwork/internal/bus"
	"github.com/dotcommander/simuwork/internal/clock"
	"github.com/dotcommander/simuwork/internal/models"
)

// Listener observes every committed update. state is a deep copy of the
// post-update tree, made once per update and shared by every listener of
// that update; partial is the patch that produced it. Writing into either
// never reaches the store.
type Listener func(state Snapshot, partial map[string]any)

// Options configures a Store.
type Options struct {
	Bus    *bus.Bus
	Clock  clock.Clock
	Logger *slog.Logger
	// Defaults builds the initial tree and the tree Reset rebuilds from.
	// Nil means Defaults.
	Defaults func() map[string]any
}

type listenerEntry struct {
	id int
	fn Listener
}

// Store is the single owner of the application state.
type Store struct {
	mu        sync.Mutex
	state     map[string]any
	listeners []*listenerEntry
	nextID    int

	defaults func() map[string]any
	bus      *bus.Bus
	clock    clock.Clock
	log      *slog.Logger
	failures atomic.Int64
}

// New constructs a Store holding the default state.
func New(opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Defaults == nil {
		opts.Defaults = Defaults
	}
	return &Store{
		state:    opts.Defaults(),
		defaults: opts.Defaults,
		bus:      opts.Bus,
		clock:    opts.Clock,
		log:      opts.Logger,
	}
}

// State returns a deep copy of the current tree.
func (s *Store) State() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot(Clone(s.state))
}

// Update deep-merges partial into the state and notifies listeners.
func (s *Store) Update(partial map[string]any, source string) {
	s.mutate(source, func(Snapshot) map[string]any { return partial })
}

// mutate computes a patch from the live tree and commits it atomically.
// A nil patch commits nothing and notifies nobody.
func (s *Store) mutate(source string, patchFn func(current Snapshot) map[string]any) bool {
	s.mu.Lock()
	partial := patchFn(Snapshot(s.state))
	if partial == nil {
		s.mu.Unlock()
		return false
	}
	next := Merge(s.state, partial)
	s.state = next
	listeners := s.listeners
	s.mu.Unlock()

	s.log.Debug("state update", "source", source, "sections", len(partial))

	if len(listeners) == 0 {
		return true
	}
	view := Snapshot(Clone(next))
	for _, l := range listeners {
		s.notify(l, view, partial)
	}
	return true
}

func (s *Store) notify(l *listenerEntry, view Snapshot, partial map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			s.failures.Add(1)
			s.log.Error("state listener failed", "listener", l.id, "panic", fmt.Sprint(r))
		}
	}()
	l.fn(view, partial)
}

// Subscribe registers a listener and returns an idempotent unsubscribe.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	entry := &listenerEntry{id: s.nextID, fn: l}
	s.nextID++
	next := make([]*listenerEntry, 0, len(s.listeners)+1)
	next = append(next, s.listeners...)
	s.listeners = append(next, entry)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.listeners = slices.DeleteFunc(slices.Clone(s.listeners), func(e *listenerEntry) bool { return e == entry })
		})
	}
}

// ListenerFailures returns how many listener invocations have panicked.
func (s *Store) ListenerFailures() int64 {
	return s.failures.Load()
}

// AddMessage appends a chat message, assigning an id and timestamp when
// absent, and evicts the oldest messages beyond MaxMessages. It returns the
// message id.
func (s *Store) AddMessage(msg models.Message) string {
	if msg.ID == "" {
		msg.ID = "msg_" + uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	if msg.AgentRole == "" {
		msg.AgentRole = models.AgentRoleName(msg.AgentID)
	}
	if msg.Type == "" {
		msg.Type = models.MessageResponse
	}

	s.mutate(msg.AgentID, func(cur Snapshot) map[string]any {
		existing := cur.Messages()
		messages := make([]models.Message, 0, len(existing)+1)
		messages = append(messages, existing...)
		messages = append(messages, msg)
		if over := len(messages) - MaxMessages; over > 0 {
			messages = messages[over:]
		}
		return map[string]any{SectionUI: map[string]any{"messages": messages}}
	})
	return msg.ID
}

// CompleteObjective marks objectiveID complete. It returns true and publishes
// ObjectiveComplete only when the objective was incomplete.
func (s *Store) CompleteObjective(objectiveID string) bool {
	var allComplete bool
	changed := s.mutate(models.SourceSystem, func(cur Snapshot) map[string]any {
		objectives := slices.Clone(cur.Objectives())
		idx := slices.IndexFunc(objectives, func(o models.Objective) bool { return o.ID == objectiveID })
		if idx < 0 || objectives[idx].Completed {
			return nil
		}
		objectives[idx].Completed = true
		allComplete = !slices.ContainsFunc(objectives, func(o models.Objective) bool { return !o.Completed })
		return map[string]any{SectionScenario: map[string]any{"objectives": objectives}}
	})
	if !changed {
		return false
	}

	s.log.Info("objective complete", "objective", objectiveID, "all_complete", allComplete)
	s.publish(models.EventObjectiveComplete, map[string]any{
		"objectiveId": objectiveID,
		"allComplete": allComplete,
	})
	return true
}

// AllObjectivesComplete reports whether every objective is complete.
func (s *Store) AllObjectivesComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range Snapshot(s.state).Objectives() {
		if !o.Completed {
			return false
		}
	}
	return true
}

// SetPhase moves the scenario to phase and publishes PhaseChange. Requesting
// the current phase is a no-op.
func (s *Store) SetPhase(phase models.Phase) bool {
	var from models.Phase
	changed := s.mutate(models.SourceSystem, func(cur Snapshot) map[string]any {
		from = cur.Phase()
		if from == phase {
			return nil
		}
		return map[string]any{SectionScenario: map[string]any{"phase": string(phase)}}
	})
	if !changed {
		return false
	}

	s.log.Info("phase change", "from", from, "to", phase)
	s.publish(models.EventPhaseChange, map[string]any{
		"from":  string(from),
		"to":    string(phase),
		"phase": string(phase),
	})
	return true
}

// UpdateAgent merges fields into the record of agentID.
func (s *Store) UpdateAgent(agentID string, fields map[string]any) {
	s.Update(map[string]any{SectionAgents: map[string]any{agentID: fields}}, agentID)
}

// AdjustSkill adds delta to a user skill, clamped to [MinSkill, MaxSkill],
// and returns the new level.
func (s *Store) AdjustSkill(name string, delta float64) float64 {
	var level float64
	s.mutate(SectionUser, func(cur Snapshot) map[string]any {
		level = min(MaxSkill, max(MinSkill, cur.Skill(name)+delta))
		return map[string]any{SectionUser: map[string]any{"skillLevels": map[string]any{name: level}}}
	})
	return level
}

// AdjustRelationship adds delta to an agent's relationship, clamped to
// [MinRelationship, MaxRelationship], and returns the new value.
func (s *Store) AdjustRelationship(agentID string, delta int) int {
	var value int
	s.mutate(agentID, func(cur Snapshot) map[string]any {
		value = min(MaxRelationship, max(MinRelationship, cur.Relationship(agentID)+delta))
		return map[string]any{SectionAgents: map[string]any{agentID: map[string]any{"relationship": value}}}
	})
	return value
}

// IncrementTime advances scenario and world elapsed seconds in one update
// and returns the new scenario total.
func (s *Store) IncrementTime(seconds int) int {
	var elapsed int
	s.mutate(models.SourceSystem, func(cur Snapshot) map[string]any {
		elapsed = cur.TimeElapsed() + seconds
		return map[string]any{
			SectionScenario: map[string]any{"timeElapsed": elapsed},
			SectionWorld:    map[string]any{"timeElapsed": elapsed},
		}
	})
	return elapsed
}

// RecordUserAction appends to both user.actionsHistory and
// scenario.userActions.
func (s *Store) RecordUserAction(action models.UserAction) {
	if action.At.IsZero() {
		action.At = s.now()
	}
	s.mutate(models.SourceUser, func(cur Snapshot) map[string]any {
		history, _ := cur.Get(SectionUser, "actionsHistory").([]models.UserAction)
		return map[string]any{
			SectionUser:     map[string]any{"actionsHistory": append(slices.Clone(history), action)},
			SectionScenario: map[string]any{"userActions": append(slices.Clone(cur.UserActions()), action)},
		}
	})
}

// Reset rebuilds the default tree, carrying over the named top-level
// sections from the current one. With no arguments the user section is
// preserved. Listeners are notified with an empty patch.
func (s *Store) Reset(preserve ...string) {
	if len(preserve) == 0 {
		preserve = []string{SectionUser}
	}

	s.mu.Lock()
	next := s.defaults()
	for _, section := range preserve {
		if v, ok := s.state[section]; ok {
			next[section] = v
		}
	}
	s.state = next
	listeners := s.listeners
	s.mu.Unlock()

	s.log.Info("state reset", "preserved", preserve)

	view := Snapshot(next)
	partial := map[string]any{}
	for _, l := range listeners {
		s.notify(l, view, partial)
	}
}

func (s *Store) publish(eventType models.EventType, payload map[string]any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventType, payload, models.SourceSystem)
}

func (s *Store) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}
