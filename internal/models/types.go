package models

import (
	"time"
)

// Event is a single published occurrence on the bus. Events are immutable
// once published; handlers receive a copy and must not mutate Payload.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
}

// String returns the payload value at key when it is a string.
func (e Event) String(key string) string {
	s, _ := e.Payload[key].(string)
	return s
}

// Bool returns the payload value at key when it is a bool.
func (e Event) Bool(key string) bool {
	b, _ := e.Payload[key].(bool)
	return b
}

// Int returns the payload value at key when it is any integer or float kind.
func (e Event) Int(key string) int {
	switch v := e.Payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Phase is the coarse stage of the scenario storyline.
type Phase string

// Scenario phases, in their only intended order.
const (
	PhaseOrientation   Phase = "orientation"
	PhaseInvestigation Phase = "investigation"
	PhaseResolution    Phase = "resolution"
	PhaseAftermath     Phase = "aftermath"
)

// Rank returns the position of the phase in the forward order, or -1.
func (p Phase) Rank() int {
	switch p {
	case PhaseOrientation:
		return 0
	case PhaseInvestigation:
		return 1
	case PhaseResolution:
		return 2
	case PhaseAftermath:
		return 3
	}
	return -1
}

// IsTerminal returns true for the aftermath phase.
func (p Phase) IsTerminal() bool {
	return p == PhaseAftermath
}

// Objective is a monotonically completable sub-goal of the scenario.
type Objective struct {
	ID        string `json:"id" yaml:"id"`
	Text      string `json:"text" yaml:"text"`
	Completed bool   `json:"completed" yaml:"completed"`
}

// Agent identifiers used as chat authors and state keys.
const (
	AgentSeniorDev     = "senior_dev"
	AgentPM            = "pm"
	AgentJuniorDev     = "junior_dev"
	AgentIncident      = "incident"
	AgentCodeAssistant = "code_assistant"
	AgentUser          = "user"
)

// AgentRoleName returns the display role for an agent id.
func AgentRoleName(agentID string) string {
	switch agentID {
	case AgentSeniorDev:
		return "Senior Engineer"
	case AgentPM:
		return "Product Manager"
	case AgentJuniorDev:
		return "Junior Developer"
	case AgentIncident:
		return "Incident System"
	case AgentCodeAssistant:
		return "Code Assistant AI"
	case AgentUser:
		return "You"
	}
	return "System"
}

// Message kinds shown in the chat.
const (
	MessageResponse       = "response"
	MessageAlert          = "alert"
	MessageHint           = "hint"
	MessageQuestion       = "question"
	MessageWarning        = "warning"
	MessageApproval       = "approval"
	MessageEscalation     = "escalation"
	MessageCodeReview     = "code_review"
	MessageCodeAssistance = "code_assistance"
	MessageUser           = "user_message"
	MessageUserCode       = "user_code_question"
)

// Message is one chat entry in ui.messages.
type Message struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	AgentRole string    `json:"agent_role"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	Severity  string    `json:"severity,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// UserAction is one entry of the user's action history.
type UserAction struct {
	Type       string    `json:"type"`
	Content    string    `json:"content,omitempty"`
	DecisionID string    `json:"decision_id,omitempty"`
	Choice     string    `json:"choice,omitempty"`
	At         time.Time `json:"at"`
}

// Narration is a transient instructional tooltip driven by the script.
type Narration struct {
	Agent           string        `json:"agent" yaml:"agent"`
	AgentIcon       string        `json:"agent_icon,omitempty" yaml:"agent_icon,omitempty"`
	Title           string        `json:"title,omitempty" yaml:"title,omitempty"`
	Description     string        `json:"description" yaml:"description"`
	Position        string        `json:"position,omitempty" yaml:"position,omitempty"`
	Color           string        `json:"color,omitempty" yaml:"color,omitempty"`
	Duration        time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	HighlightTarget string        `json:"highlight_target,omitempty" yaml:"highlight_target,omitempty"`
	Highlight       string        `json:"highlight,omitempty" yaml:"highlight,omitempty"`
}

// ActionType discriminates script actions.
type ActionType string

// Script action types.
const (
	ActionShowNarration    ActionType = "show_narration"
	ActionUserMessage      ActionType = "user_message"
	ActionAgentMessage     ActionType = "agent_message"
	ActionCodeChange       ActionType = "code_change"
	ActionRunTests         ActionType = "run_tests"
	ActionUserDecisionAuto ActionType = "user_decision_auto"
	ActionScenarioComplete ActionType = "scenario_complete"
)

// IsValid returns true if t is a known action type.
func (t ActionType) IsValid() bool {
	switch t {
	case ActionShowNarration, ActionUserMessage, ActionAgentMessage, ActionCodeChange,
		ActionRunTests, ActionUserDecisionAuto, ActionScenarioComplete:
		return true
	}
	return false
}

// ScriptAction is one timestamped step of the demo timeline.
// Time is expressed in seconds from demo start.
type ScriptAction struct {
	Time           float64       `json:"time" yaml:"time"`
	Type           ActionType    `json:"type" yaml:"type"`
	Narration      *Narration    `json:"narration,omitempty" yaml:"narration,omitempty"`
	AgentID        string        `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
	Trigger        string        `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	Message        string        `json:"message,omitempty" yaml:"message,omitempty"`
	Content        string        `json:"content,omitempty" yaml:"content,omitempty"`
	TypingDuration time.Duration `json:"typing_duration,omitempty" yaml:"typing_duration,omitempty"`
	Code           string        `json:"code,omitempty" yaml:"code,omitempty"`
	DecisionID     string        `json:"decision_id,omitempty" yaml:"decision_id,omitempty"`
	Choice         string        `json:"choice,omitempty" yaml:"choice,omitempty"`
}

// At returns the scheduled offset of the action from demo start.
func (a ScriptAction) At() time.Duration {
	return time.Duration(a.Time * float64(time.Second))
}

// TestFailure describes one failing heuristic check of the code buffer.
type TestFailure struct {
	Test  string `json:"test"`
	Error string `json:"error"`
}
