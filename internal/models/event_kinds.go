package models

// EventType identifies an event published on the bus. The vocabulary is
// closed: every producer in the system uses one of the constants below.
type EventType string

// EventWildcard subscribes to every event regardless of type.
const EventWildcard EventType = "*"

// User action event types.
const (
	EventUserCodeChange   EventType = "user_code_change"
	EventUserRunTests     EventType = "user_run_tests"
	EventUserAskQuestion  EventType = "user_ask_question"
	EventUserCodeQuestion EventType = "user_code_question"
	EventUserDecision     EventType = "user_decision"
)

// Agent action event types.
const (
	EventAgentMessage    EventType = "agent_message"
	EventAgentCodeReview EventType = "agent_code_review"
	EventAgentHint       EventType = "agent_hint"
	EventAgentQuestion   EventType = "agent_question"
	// EventDirectorTrigger routes a scripted action to one agent by
	// (agentId, action) pair.
	EventDirectorTrigger EventType = "director_trigger_agent"
)

// Scenario lifecycle event types.
const (
	EventPhaseChange       EventType = "scenario_phase_change"
	EventObjectiveComplete EventType = "scenario_objective_complete"
	EventScenarioComplete  EventType = "scenario_complete"
)

// Incident event types.
const (
	EventIncidentCreated   EventType = "incident_created"
	EventIncidentEscalated EventType = "incident_escalated"
	EventIncidentResolved  EventType = "incident_resolved"
)

// Test result event types.
const (
	EventTestsPassed EventType = "tests_passed"
	EventTestsFailed EventType = "tests_failed"
)

// Time, narration and system event types.
const (
	EventTimeTick        EventType = "time_tick"
	EventNarrationShown  EventType = "narration_shown"
	EventNarrationHidden EventType = "narration_hidden"
	EventSystemReady     EventType = "system_ready"
)

// Event sources.
const (
	SourceSystem   = "system"
	SourceUser     = "user"
	SourceDirector = "director"
)

// KnownEventTypes lists every non-wildcard event type in the vocabulary.
func KnownEventTypes() []EventType {
	return []EventType{
		EventUserCodeChange,
		EventUserRunTests,
		EventUserAskQuestion,
		EventUserCodeQuestion,
		EventUserDecision,
		EventAgentMessage,
		EventAgentCodeReview,
		EventAgentHint,
		EventAgentQuestion,
		EventDirectorTrigger,
		EventPhaseChange,
		EventObjectiveComplete,
		EventScenarioComplete,
		EventIncidentCreated,
		EventIncidentEscalated,
		EventIncidentResolved,
		EventTestsPassed,
		EventTestsFailed,
		EventTimeTick,
		EventNarrationShown,
		EventNarrationHidden,
		EventSystemReady,
	}
}
