package agents

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/simuwork/internal/bus"
	"github.com/dotcommander/simuwork/internal/clock"
	"github.com/dotcommander/simuwork/internal/models"
	"github.com/dotcommander/simuwork/internal/state"
)

var epoch = time.Date(2024, 11, 6, 14, 23, 0, 0, time.UTC)

type harness struct {
	env   Env
	bus   *bus.Bus
	store *state.Store
	clock *clock.Virtual
}

func newHarness(t *testing.T) harness {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	vc := clock.NewVirtual(epoch)
	b := bus.New(bus.Options{Clock: vc, Logger: logger})
	s := state.New(state.Options{Bus: b, Clock: vc, Logger: logger})
	return harness{
		env:   Env{Bus: b, Store: s, Clock: vc, Logger: logger},
		bus:   b,
		store: s,
		clock: vc,
	}
}

func (h harness) spawn(t *testing.T, role Role) *Agent {
	t.Helper()
	a, ok := New(role, h.env)
	require.True(t, ok)
	t.Cleanup(a.Destroy)
	return a
}

func (h harness) trigger(agentID, action string) {
	h.bus.Publish(models.EventDirectorTrigger, map[string]any{"agentId": agentID, "action": action}, models.SourceDirector)
}

func (h harness) messages() []models.Message {
	return h.store.State().Messages()
}

func TestNewRejectsUnknownRole(t *testing.T) {
	h := newHarness(t)
	_, ok := New(Role("Intern"), h.env)
	assert.False(t, ok)
}

func TestSendMessageAppearsAfterResponseDelay(t *testing.T) {
	h := newHarness(t)
	a := h.spawn(t, RoleProductManager)

	a.SendMessage("hello", models.MessageResponse, SeverityMedium)
	h.clock.Advance(999 * time.Millisecond)
	assert.Empty(t, h.messages())

	h.clock.Advance(time.Millisecond)
	require.Len(t, h.messages(), 1)
	msg := h.messages()[0]
	assert.Equal(t, models.AgentPM, msg.AgentID)
	assert.Equal(t, "Product Manager", msg.AgentRole)
	assert.Equal(t, 1, a.Metrics().MessagesSent)
}

func TestDelayScaleStretchesResponses(t *testing.T) {
	h := newHarness(t)
	h.env.DelayScale = 2
	a := h.spawn(t, RoleProductManager)

	assert.Equal(t, 2*time.Second, a.ResponseDelay())
}

func TestDestroyCancelsPendingMessagesAndIsIdempotent(t *testing.T) {
	h := newHarness(t)
	a := h.spawn(t, RoleSeniorEngineer)
	require.Positive(t, h.bus.SubscriberCount(""))

	a.SendMessage("never shown", models.MessageResponse, SeverityMedium)
	assert.Equal(t, 1, a.Metrics().PendingActions)

	a.Destroy()
	a.Destroy()
	h.clock.Advance(time.Minute)

	assert.Empty(t, h.messages())
	assert.Equal(t, 0, h.bus.SubscriberCount(""))
	assert.False(t, a.Active())
}

func TestInactiveAgentRemembersButDoesNotReact(t *testing.T) {
	h := newHarness(t)
	a := h.spawn(t, RoleSeniorEngineer)

	a.SetActive(false)
	h.bus.Publish(models.EventUserAskQuestion, map[string]any{"question": "what about zero?"}, models.SourceUser)
	h.clock.Advance(time.Minute)

	assert.Empty(t, h.messages())
	assert.Len(t, a.Memory(), 1)
	assert.Equal(t, 1, a.Metrics().EventsProcessed)

	a.SetActive(true)
	h.bus.Publish(models.EventUserAskQuestion, map[string]any{"question": "what about zero?"}, models.SourceUser)
	h.clock.Advance(time.Minute)
	assert.Len(t, h.messages(), 1)
}

func TestMemoryIsBounded(t *testing.T) {
	h := newHarness(t)
	a := h.spawn(t, RoleIncidentMonitor)

	for i := range MemorySize + 5 {
		h.bus.Publish(models.EventTimeTick, map[string]any{"elapsed": i}, models.SourceSystem)
	}

	mem := a.Memory()
	require.Len(t, mem, MemorySize)
	assert.Equal(t, 5, mem[0].Int("elapsed"))
}

func TestTriggerForAnotherAgentIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.spawn(t, RoleSeniorEngineer)

	h.trigger(models.AgentIncident, "auto")
	h.trigger(models.AgentSeniorDev, "no_such_action")
	h.clock.Advance(time.Minute)

	assert.Empty(t, h.messages())
}

func TestSeniorInitialGuidanceWaitsTwoDelays(t *testing.T) {
	h := newHarness(t)
	h.spawn(t, RoleSeniorEngineer)

	h.trigger(models.AgentSeniorDev, "initial_guidance")
	h.clock.Advance(2399 * time.Millisecond)
	assert.Empty(t, h.messages())

	h.clock.Advance(time.Millisecond)
	require.Len(t, h.messages(), 1)
	assert.Contains(t, h.messages()[0].Content, "P2 incident")
}

func TestSeniorEscalatesHintsOnRepeatedFailures(t *testing.T) {
	h := newHarness(t)
	a := h.spawn(t, RoleSeniorEngineer)

	for range 3 {
		h.bus.Publish(models.EventTestsFailed, map[string]any{"failedTests": []models.TestFailure{}}, models.SourceSystem)
	}
	h.clock.Advance(time.Minute)

	messages := h.messages()
	require.Len(t, messages, 3)
	assert.Equal(t, models.MessageResponse, messages[0].Type)
	assert.Equal(t, models.MessageHint, messages[1].Type)
	assert.Equal(t, SeverityMedium, messages[1].Severity)
	assert.Equal(t, models.MessageHint, messages[2].Type)
	assert.Equal(t, SeverityHigh, messages[2].Severity)

	assert.Len(t, h.bus.EventsByType(models.EventAgentHint), 2)
	assert.Equal(t, 2, a.Metrics().HintsGiven)
}

func TestSeniorReviewsBuggyCodeOnly(t *testing.T) {
	h := newHarness(t)
	h.spawn(t, RoleSeniorEngineer)

	h.bus.Publish(models.EventUserCodeChange, map[string]any{"code": "if amount <= 0:\n    raise ValueError()"}, models.SourceUser)
	h.clock.Advance(time.Minute)
	assert.Empty(t, h.messages())

	h.bus.Publish(models.EventUserCodeChange, map[string]any{"code": state.InitialCode}, models.SourceUser)
	h.clock.Advance(time.Minute)
	require.Len(t, h.messages(), 1)
	assert.Equal(t, models.MessageCodeReview, h.messages()[0].Type)
	assert.Contains(t, h.messages()[0].Content, "amount <= 0")
	assert.Len(t, h.bus.EventsByType(models.EventAgentCodeReview), 1)
}

func TestAnalyzeCode(t *testing.T) {
	assert.Empty(t, AnalyzeCode("if amount <= 0:\n    raise X"))

	issues := AnalyzeCode("if amount > 0:\n    return 1")
	require.Len(t, issues, 2)
	assert.Equal(t, SeverityCritical, issues[0].Severity)
	assert.Equal(t, SeverityWarning, issues[1].Severity)
}

func TestSeniorAnswersQuestionsByKeyword(t *testing.T) {
	h := newHarness(t)
	h.spawn(t, RoleSeniorEngineer)

	h.bus.Publish(models.EventUserAskQuestion, map[string]any{"question": "What about ZERO amounts?"}, models.SourceUser)
	h.bus.Publish(models.EventUserAskQuestion, map[string]any{"question": "How do I write a test?"}, models.SourceUser)
	h.bus.Publish(models.EventUserAskQuestion, map[string]any{"question": "Lunch plans?"}, models.SourceUser)
	h.clock.Advance(time.Minute)

	messages := h.messages()
	require.Len(t, messages, 2)
	assert.Contains(t, messages[0].Content, "Zero-dollar")
	assert.Contains(t, messages[1].Content, "test case first")
}

func TestSeniorAndPMReactToResolutionPhase(t *testing.T) {
	h := newHarness(t)
	h.spawn(t, RoleSeniorEngineer)
	h.spawn(t, RoleProductManager)

	h.store.SetPhase(models.PhaseResolution)
	h.clock.Advance(time.Minute)

	assert.Len(t, h.messages(), 2)
}

func TestPMOpensIncident(t *testing.T) {
	h := newHarness(t)
	h.spawn(t, RoleProductManager)
	h.spawn(t, RoleJuniorDeveloper)

	h.trigger(models.AgentPM, "phase_change_investigation")
	h.clock.Advance(time.Second)

	s := h.store.State()
	assert.Equal(t, models.PhaseInvestigation, s.Phase())
	assert.Equal(t, 40, s.Int(state.SectionAgents, models.AgentPM, "stress"))
	assert.Empty(t, s.Messages())

	h.clock.Advance(time.Minute)
	messages := h.messages()
	require.Len(t, messages, 2)
	assert.Equal(t, models.MessageAlert, messages[0].Type)
	assert.Contains(t, messages[0].Content, "127 users")
	assert.Equal(t, models.AgentJuniorDev, messages[1].AgentID)
}

func TestPMApprovesPassingTests(t *testing.T) {
	h := newHarness(t)
	h.spawn(t, RoleProductManager)

	h.bus.Publish(models.EventTestsPassed, map[string]any{"testCount": 12}, models.SourceSystem)
	h.clock.Advance(time.Minute)

	s := h.store.State()
	assert.Equal(t, 10, s.Int(state.SectionAgents, models.AgentPM, "stress"))
	assert.Equal(t, 65, s.Relationship(models.AgentPM))
	require.Len(t, s.Messages(), 1)
	assert.Equal(t, models.MessageApproval, s.Messages()[0].Type)
}

func TestJuniorAsksForHelpOnceAndThanksAfterPass(t *testing.T) {
	h := newHarness(t)
	a := h.spawn(t, RoleJuniorDeveloper)

	h.trigger(models.AgentJuniorDev, "teammate_help_request")
	h.trigger(models.AgentJuniorDev, "teammate_help_request")
	h.clock.Advance(time.Minute)

	require.Len(t, h.messages(), 1)
	assert.Equal(t, models.MessageQuestion, h.messages()[0].Type)
	assert.True(t, h.store.State().Bool(state.SectionAgents, models.AgentJuniorDev, "askedForHelp"))
	assert.Equal(t, 1, a.Metrics().QuestionsAsked)
	assert.Len(t, h.bus.EventsByType(models.EventAgentQuestion), 1)

	h.bus.Publish(models.EventTestsPassed, nil, models.SourceSystem)
	h.clock.Advance(time.Minute)
	require.Len(t, h.messages(), 2)
	assert.Contains(t, h.messages()[1].Content, "refund API")
}

func TestJuniorStaysQuietOnPassWithoutHelpRequest(t *testing.T) {
	h := newHarness(t)
	h.spawn(t, RoleJuniorDeveloper)

	h.bus.Publish(models.EventTestsPassed, nil, models.SourceSystem)
	h.clock.Advance(time.Minute)

	assert.Empty(t, h.messages())
}

func TestJuniorRewardsExplanation(t *testing.T) {
	h := newHarness(t)
	h.spawn(t, RoleJuniorDeveloper)

	h.bus.Publish(models.EventUserDecision, map[string]any{"decisionId": "other", "decision": ChoiceExplainRelated}, models.SourceUser)
	h.bus.Publish(models.EventUserDecision, map[string]any{"decisionId": DecisionHelpJunior, "decision": ChoiceExplainRelated}, models.SourceUser)
	h.clock.Advance(time.Minute)

	s := h.store.State()
	assert.Len(t, s.Messages(), 1)
	assert.InDelta(t, 5.5, s.Skill("communication"), 0.0001)
	assert.Equal(t, 65, s.Relationship(models.AgentJuniorDev))
}

func TestIncidentAlertCompletesFirstObjective(t *testing.T) {
	h := newHarness(t)
	h.spawn(t, RoleIncidentMonitor)

	h.trigger(models.AgentIncident, "auto")
	h.clock.Advance(300 * time.Millisecond)

	created := h.bus.EventsByType(models.EventIncidentCreated)
	require.Len(t, created, 1)
	assert.Equal(t, "P2", created[0].String("severity"))
	assert.Equal(t, 127, created[0].Int("affectedUsers"))
	assert.Equal(t, 1, h.store.State().CompletedObjectives())

	h.clock.Advance(300 * time.Millisecond)
	require.Len(t, h.messages(), 1)
	assert.Equal(t, models.MessageAlert, h.messages()[0].Type)
}

func TestIncidentClosesAfterPassingTests(t *testing.T) {
	h := newHarness(t)
	h.spawn(t, RoleIncidentMonitor)

	h.bus.Publish(models.EventTestsPassed, nil, models.SourceSystem)

	h.clock.Advance(800 * time.Millisecond)
	require.Len(t, h.messages(), 1)
	assert.Contains(t, h.messages()[0].Content, "VALIDATION COMPLETE")

	h.clock.Advance(700 * time.Millisecond)
	assert.Len(t, h.bus.EventsByType(models.EventIncidentResolved), 1)
	assert.Len(t, h.messages(), 1)

	h.clock.Advance(300 * time.Millisecond)
	require.Len(t, h.messages(), 2)
	assert.Contains(t, h.messages()[1].Content, "INCIDENT CLOSED")
}

func TestIncidentEscalatesOnceWhenUnresolved(t *testing.T) {
	h := newHarness(t)
	h.spawn(t, RoleIncidentMonitor)
	h.spawn(t, RoleProductManager)

	h.bus.Publish(models.EventTimeTick, map[string]any{"elapsed": 179}, models.SourceSystem)
	assert.Empty(t, h.bus.EventsByType(models.EventIncidentEscalated))

	h.bus.Publish(models.EventTimeTick, map[string]any{"elapsed": 180}, models.SourceSystem)
	h.bus.Publish(models.EventTimeTick, map[string]any{"elapsed": 181}, models.SourceSystem)
	h.clock.Advance(time.Minute)

	escalated := h.bus.EventsByType(models.EventIncidentEscalated)
	require.Len(t, escalated, 1)
	assert.Equal(t, 254, escalated[0].Int("affectedUsers"))

	s := h.store.State()
	assert.True(t, s.Bool(state.SectionAgents, models.AgentIncident, "escalated"))
	assert.Equal(t, "P1", s.String(state.SectionAgents, models.AgentIncident, "severity"))
	assert.Equal(t, 80, s.Int(state.SectionAgents, models.AgentPM, "stress"))

	var pmEscalation bool
	for _, m := range s.Messages() {
		if m.AgentID == models.AgentPM && m.Type == models.MessageEscalation {
			pmEscalation = true
			assert.Contains(t, m.Content, "254 affected users")
		}
	}
	assert.True(t, pmEscalation)
}

func TestIncidentDoesNotEscalateAfterResolution(t *testing.T) {
	h := newHarness(t)
	h.spawn(t, RoleIncidentMonitor)

	h.bus.Publish(models.EventTestsPassed, nil, models.SourceSystem)
	h.bus.Publish(models.EventTimeTick, map[string]any{"elapsed": 500}, models.SourceSystem)
	h.clock.Advance(time.Minute)

	assert.Empty(t, h.bus.EventsByType(models.EventIncidentEscalated))
}

func TestCodeAssistantAnswersCodeQuestions(t *testing.T) {
	h := newHarness(t)
	h.spawn(t, RoleCodeAssistant)

	h.bus.Publish(models.EventUserCodeQuestion, map[string]any{"question": "Is there a bug here?"}, models.SourceUser)
	h.clock.Advance(time.Second)

	require.Len(t, h.messages(), 1)
	msg := h.messages()[0]
	assert.Equal(t, models.MessageCodeAssistance, msg.Type)
	assert.Contains(t, msg.Content, "potential issues")
}

func TestAssistantReplyRouting(t *testing.T) {
	fixed := "if amount <= 0:\n    raise ValueError()"
	cases := []struct {
		question string
		code     string
		want     string
	}{
		{"What's the syntax for exceptions?", fixed, "help with the syntax"},
		{"How to write a class?", fixed, "help with the syntax"},
		{"Something is wrong", state.InitialCode, "doesn't catch zero values"},
		{"Any error left?", fixed, "structure looks good"},
		{"How do I validate it?", fixed, "you'll want to test"},
		{"Can I refactor this?", fixed, "improvement ideas"},
		{"Hello", fixed, "I'm here to help"},
	}
	for _, tc := range cases {
		t.Run(tc.question, func(t *testing.T) {
			assert.Contains(t, AssistantReply(tc.question, tc.code), tc.want)
		})
	}
}

func TestRolesHaveBehaviors(t *testing.T) {
	seen := map[string]bool{}
	for _, role := range Roles() {
		b, ok := BehaviorFor(role)
		require.True(t, ok, role)
		assert.Positive(t, b.ResponseDelay)
		assert.False(t, seen[b.AgentID], "agent ids are unique")
		seen[b.AgentID] = true
	}
	assert.Len(t, seen, 5)
}
