package timeline

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
	"github.com/dotcommander/simuwork/internal/narration"
	"github.com/dotcommander/simuwork/internal/state"
)

var epoch = time.Date(2024, 11, 6, 14, 23, 0, 0, time.UTC)

type rig struct {
	sched *Scheduler
	bus   *bus.Bus
	store *state.Store
	guide *narration.Guide
	clock *clock.Virtual
}

func newRig(t *testing.T, script []models.ScriptAction) rig {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	vc := clock.NewVirtual(epoch)
	b := bus.New(bus.Options{Clock: vc, Logger: logger, HistorySize: 500})
	s := state.New(state.Options{Bus: b, Clock: vc, Logger: logger})
	g := narration.New(narration.Options{Bus: b, Clock: vc, Logger: logger})
	return rig{
		sched: New(Options{Bus: b, Store: s, Guide: g, Clock: vc, Logger: logger, Script: script}),
		bus:   b,
		store: s,
		guide: g,
		clock: vc,
	}
}

func decision(at float64, id string) models.ScriptAction {
	return models.ScriptAction{Time: at, Type: models.ActionUserDecisionAuto, DecisionID: id, Choice: "x"}
}

func narrationAt(at float64, desc string) models.ScriptAction {
	return models.ScriptAction{
		Time:      at,
		Type:      models.ActionShowNarration,
		Narration: &models.Narration{Description: desc, Duration: 20 * time.Second},
	}
}

// decisions lists executed decision actions in order.
func (r rig) decisions() []string {
	var ids []string
	for _, ev := range r.bus.EventsByType(models.EventUserDecision) {
		ids = append(ids, ev.String("decisionId"))
	}
	return ids
}

func TestStartSchedulesAtScriptTime(t *testing.T) {
	r := newRig(t, []models.ScriptAction{decision(1, "a"), decision(2, "b"), decision(3, "c")})

	require.True(t, r.sched.Start())
	assert.False(t, r.sched.Start(), "start is idempotent while playing")

	r.clock.Advance(999 * time.Millisecond)
	assert.Empty(t, r.decisions())
	r.clock.Advance(time.Millisecond)
	assert.Equal(t, []string{"a"}, r.decisions())
	r.clock.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, r.decisions())
	assert.True(t, r.sched.Finished())
	assert.False(t, r.sched.Playing())
}

func TestBaseSpeedScalesFreshStart(t *testing.T) {
	r := newRig(t, []models.ScriptAction{decision(2, "a")})
	r.sched = New(Options{Bus: r.bus, Store: r.store, Guide: r.guide, Clock: r.clock, Script: r.sched.Script(), Speed: 2})

	r.sched.Start()
	r.clock.Advance(time.Second)

	assert.Equal(t, []string{"a"}, r.decisions())
}

func TestSpeedUpNeverReexecutes(t *testing.T) {
	r := newRig(t, []models.ScriptAction{decision(1, "a"), decision(2, "b"), decision(3, "c")})
	r.sched.Start()

	r.clock.Advance(1500 * time.Millisecond)
	require.Equal(t, []string{"a"}, r.decisions())

	r.sched.SpeedUp(5)
	r.clock.Advance(99 * time.Millisecond)
	assert.Equal(t, []string{"a"}, r.decisions())
	r.clock.Advance(time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, r.decisions(), "b remaining 0.5s at 5x")
	r.clock.Advance(200 * time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, r.decisions(), "c remaining 1.5s at 5x")

	r.clock.Advance(time.Minute)
	assert.Len(t, r.decisions(), 3)
}

func TestLateTimerRunsPendingPredecessorsFirst(t *testing.T) {
	r := newRig(t, []models.ScriptAction{decision(1, "a"), decision(2, "b"), decision(3, "c")})
	r.sched.Start()

	// The timer for c is delivered before those of a and b.
	r.sched.mu.Lock()
	gen := r.sched.gen
	r.sched.mu.Unlock()
	r.sched.fire(gen, 2)

	assert.Equal(t, []string{"a", "b", "c"}, r.decisions())
	assert.True(t, r.sched.Finished())

	r.clock.Advance(time.Minute)
	assert.Len(t, r.decisions(), 3, "stale timers of a and b do nothing")
	assert.Equal(t, 0, r.clock.Pending())
}

func TestRepeatedSpeedUpExecutesEachActionOnce(t *testing.T) {
	r := newRig(t, []models.ScriptAction{decision(1, "a"), decision(2, "b"), decision(3, "c")})
	r.sched.Start()

	r.clock.Advance(500 * time.Millisecond)
	r.sched.SpeedUp(2)
	r.sched.SpeedUp(4)
	r.clock.Advance(100 * time.Millisecond)
	r.sched.SpeedUp(10)
	r.clock.Advance(time.Minute)

	assert.Equal(t, []string{"a", "b", "c"}, r.decisions())
	assert.InDelta(t, 10.0, r.sched.Progress().Speed, 0.0001)
}

func TestSpeedUpFloorsOverdueDelays(t *testing.T) {
	r := newRig(t, []models.ScriptAction{decision(1, "a"), decision(1.02, "b")})
	r.sched.Start()
	r.clock.Advance(time.Second)
	require.Equal(t, []string{"a"}, r.decisions())

	r.sched.SpeedUp(5)
	r.clock.Advance(MinDelay - time.Millisecond)
	assert.Equal(t, []string{"a"}, r.decisions())
	r.clock.Advance(time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, r.decisions())
}

func TestSpeedUpHidesNarrationAndSetsMultiplier(t *testing.T) {
	r := newRig(t, []models.ScriptAction{narrationAt(0, "hello"), decision(10, "a")})
	r.sched.Start()
	r.clock.Advance(0)
	_, showing := r.guide.Current()
	require.True(t, showing)

	r.sched.SpeedUp(5)

	_, showing = r.guide.Current()
	assert.False(t, showing)
	assert.InDelta(t, 5.0, r.guide.SpeedMultiplier(), 0.0001)
	r.clock.Advance(2 * time.Second)
	assert.Equal(t, []string{"a"}, r.decisions())
}

func TestSkipToNextNarrationIsTwoPhase(t *testing.T) {
	r := newRig(t, []models.ScriptAction{
		decision(0, "a"),
		decision(10, "b"),
		narrationAt(20, "target"),
		decision(30, "c"),
		narrationAt(40, "later"),
	})
	r.sched.Start()
	r.clock.Advance(time.Second)
	require.Equal(t, []string{"a"}, r.decisions())

	require.True(t, r.sched.SkipToNextNarration())
	assert.InDelta(t, SkipFactor, r.guide.SpeedMultiplier(), 0.0001)

	r.clock.Advance(1800 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, r.decisions(), "b at (10-1)/5 s")

	r.clock.Advance(2 * time.Second)
	current, showing := r.guide.Current()
	require.True(t, showing, "target narration at (20-1)/5 s")
	assert.Equal(t, "target", current.Description)

	progress := r.sched.Progress()
	assert.InDelta(t, 1.0, progress.Speed, 0.0001, "prior speed restored on reaching the narration")
	assert.InDelta(t, 1.0, r.guide.SpeedMultiplier(), 0.0001)
	assert.InDelta(t, 20.0, progress.Position, 0.0001)

	r.clock.Advance(10*time.Second - time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, r.decisions())
	r.clock.Advance(time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, r.decisions(), "remainder runs at normal speed")

	_, showing = r.guide.Current()
	assert.True(t, showing, "narration shown at restored speed keeps its full duration")
}

func TestSkipRestoresSpeedUpFactor(t *testing.T) {
	r := newRig(t, []models.ScriptAction{decision(0, "a"), narrationAt(10, "n"), decision(20, "b")})
	r.sched.Start()
	r.clock.Advance(0)
	r.sched.SpeedUp(2)

	r.sched.SkipToNextNarration()
	r.clock.Advance(2 * time.Second)
	_, showing := r.guide.Current()
	require.True(t, showing)
	assert.InDelta(t, 2.0, r.sched.Progress().Speed, 0.0001)

	r.clock.Advance(5 * time.Second)
	assert.Equal(t, []string{"a", "b"}, r.decisions())
}

func TestSkipWithoutNarrationAheadOnlyHides(t *testing.T) {
	r := newRig(t, []models.ScriptAction{narrationAt(0, "only"), decision(10, "a")})
	r.sched.Start()
	r.clock.Advance(0)

	assert.False(t, r.sched.SkipToNextNarration())

	_, showing := r.guide.Current()
	assert.False(t, showing)
	assert.InDelta(t, 1.0, r.sched.Progress().Speed, 0.0001)
	r.clock.Advance(9 * time.Second)
	assert.Empty(t, r.decisions())
	r.clock.Advance(time.Second)
	assert.Equal(t, []string{"a"}, r.decisions())
}

func TestStopAndResumeContinueFromIndex(t *testing.T) {
	r := newRig(t, []models.ScriptAction{decision(1, "a"), decision(2, "b"), decision(3, "c")})
	r.sched.Start()
	r.clock.Advance(1500 * time.Millisecond)

	require.True(t, r.sched.Stop())
	assert.False(t, r.sched.Stop())
	r.clock.Advance(time.Minute)
	assert.Equal(t, []string{"a"}, r.decisions())
	assert.Equal(t, 1, r.sched.Progress().Executed)

	require.True(t, r.sched.Resume())
	assert.False(t, r.sched.Resume())
	r.clock.Advance(500 * time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, r.decisions())
	r.clock.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, r.decisions())
	assert.False(t, r.sched.Resume(), "nothing left to resume")
}

func TestResumeBeforeStartIsNoop(t *testing.T) {
	r := newRig(t, []models.ScriptAction{decision(1, "a")})
	assert.False(t, r.sched.Resume())
}

func TestStopKeepsEffectsRunning(t *testing.T) {
	r := newRig(t, []models.ScriptAction{{Time: 0, Type: models.ActionRunTests}, decision(5, "a")})
	r.sched.Start()
	r.clock.Advance(0)
	r.sched.Stop()

	r.clock.Advance(TestRunDelay)
	assert.Len(t, r.bus.EventsByType(models.EventTestsFailed), 1)
	assert.Empty(t, r.decisions())
}

func TestSpeedUpKeepsEffectTimers(t *testing.T) {
	r := newRig(t, []models.ScriptAction{{Time: 0, Type: models.ActionRunTests}})
	r.sched.Start()
	r.clock.Advance(0)
	require.Len(t, r.bus.EventsByType(models.EventUserRunTests), 1)

	r.sched.SpeedUp(5)
	r.clock.Advance(TestRunDelay - time.Millisecond)
	assert.Empty(t, r.bus.EventsByType(models.EventTestsFailed))
	r.clock.Advance(time.Millisecond)
	assert.Len(t, r.bus.EventsByType(models.EventTestsFailed), 1)
}

func TestResetCancelsEffectsAndIndex(t *testing.T) {
	r := newRig(t, []models.ScriptAction{
		{Time: 0, Type: models.ActionUserMessage, Content: "hi?", TypingDuration: time.Second},
		decision(5, "a"),
	})
	r.sched.Start()
	r.clock.Advance(0)
	require.Positive(t, r.sched.PendingEffects())
	assert.True(t, r.store.State().Bool(state.SectionUI, "userTyping"))

	r.sched.Reset()
	r.clock.Advance(time.Minute)

	s := r.store.State()
	assert.Empty(t, s.Messages())
	assert.False(t, s.Bool(state.SectionUI, "userTyping"))
	assert.Equal(t, 0, r.sched.PendingEffects())
	assert.Equal(t, 0, r.sched.Progress().Executed)
	assert.Empty(t, r.decisions())

	require.True(t, r.sched.Start())
	r.clock.Advance(5 * time.Second)
	assert.Equal(t, []string{"a"}, r.decisions())
	assert.Len(t, r.store.State().Messages(), 1)
}

func TestUserMessageTypesThenPosts(t *testing.T) {
	r := newRig(t, []models.ScriptAction{
		{Time: 0, Type: models.ActionUserMessage, Content: "Why?", TypingDuration: 400 * time.Millisecond},
		{Time: 1, Type: models.ActionUserMessage, Content: "Done."},
	})
	var previews []string
	r.store.Subscribe(func(s state.Snapshot, partial map[string]any) {
		ui, _ := partial[state.SectionUI].(map[string]any)
		if p, ok := ui["typingPreview"].(string); ok && p != "" {
			previews = append(previews, p)
		}
	})
	r.sched.Start()

	r.clock.Advance(300 * time.Millisecond)
	assert.Equal(t, []string{"W", "Wh", "Why", "Why?"}, previews)
	assert.Empty(t, r.store.State().Messages())

	r.clock.Advance(100 * time.Millisecond)
	messages := r.store.State().Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, models.AgentUser, messages[0].AgentID)
	assert.Equal(t, "You", messages[0].AgentRole)
	assert.Equal(t, models.MessageUser, messages[0].Type)
	questions := r.bus.EventsByType(models.EventUserAskQuestion)
	require.Len(t, questions, 1)
	assert.Equal(t, "Why?", questions[0].String("question"))

	r.clock.Advance(600*time.Millisecond + DefaultTypingDuration)
	assert.Len(t, r.store.State().Messages(), 2)
	assert.Len(t, r.bus.EventsByType(models.EventUserAskQuestion), 1, "statements are not questions")

	actions := r.store.State().UserActions()
	require.Len(t, actions, 2)
	assert.Equal(t, "question", actions[0].Type)
	assert.Equal(t, "user_message", actions[1].Type)
}

func TestAgentMessageTriggerOrDirect(t *testing.T) {
	r := newRig(t, []models.ScriptAction{
		{Time: 0, Type: models.ActionAgentMessage, AgentID: models.AgentPM, Trigger: "check_progress"},
		{Time: 0, Type: models.ActionAgentMessage, AgentID: models.AgentJuniorDev, Message: "hello"},
	})
	r.sched.Start()
	r.clock.Advance(0)

	triggers := r.bus.EventsByType(models.EventDirectorTrigger)
	require.Len(t, triggers, 1)
	assert.Equal(t, models.AgentPM, triggers[0].String("agentId"))
	assert.Equal(t, "check_progress", triggers[0].String("action"))
	assert.Equal(t, models.SourceDirector, triggers[0].Source)

	messages := r.store.State().Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "Junior Developer", messages[0].AgentRole)
	assert.Equal(t, "hello", messages[0].Content)
}

func TestCodeChangeAndPassingTests(t *testing.T) {
	r := newRig(t, []models.ScriptAction{
		{Time: 0, Type: models.ActionCodeChange, Code: FixedCode},
		{Time: 1, Type: models.ActionCodeChange, Code: FixedCode + "\n"},
		{Time: 2, Type: models.ActionRunTests},
	})
	r.sched.Start()
	r.clock.Advance(time.Second)

	s := r.store.State()
	assert.Equal(t, FixedCode+"\n", s.Code())
	assert.True(t, s.Bool(state.SectionScenario, "codebase", "hasChanges"))
	assert.Equal(t, state.ScenarioFile, s.String(state.SectionScenario, "codebase", "currentFile"))
	assert.Equal(t, models.PhaseResolution, s.Phase())
	assert.Len(t, r.bus.EventsByType(models.EventPhaseChange), 1, "only the first code change moves the phase")
	assert.Len(t, r.bus.EventsByType(models.EventUserCodeChange), 2)

	r.clock.Advance(time.Second + TestRunDelay)
	passed := r.bus.EventsByType(models.EventTestsPassed)
	require.Len(t, passed, 1)
	assert.Equal(t, SuiteSize, passed[0].Int("testCount"))

	s = r.store.State()
	assert.True(t, s.Bool(state.SectionScenario, "codebase", "testsPass"))
	assert.Equal(t, 2, s.CompletedObjectives())
	assert.Len(t, r.bus.EventsByType(models.EventObjectiveComplete), 2)
}

func TestFailingTestsReportFailures(t *testing.T) {
	r := newRig(t, []models.ScriptAction{
		{Time: 0, Type: models.ActionCodeChange, Code: "def process_payment(amount):\n    return 'ok'"},
		{Time: 0, Type: models.ActionRunTests},
	})
	r.sched.Start()
	r.clock.Advance(TestRunDelay)

	failed := r.bus.EventsByType(models.EventTestsFailed)
	require.Len(t, failed, 1)
	failures, ok := failed[0].Payload["failedTests"].([]models.TestFailure)
	require.True(t, ok)
	require.Len(t, failures, 2)
	assert.Equal(t, "zero_amount_rejected", failures[0].Test)
	assert.Equal(t, "invalid_amount_raises_error", failures[1].Test)
	assert.Equal(t, 0, r.store.State().CompletedObjectives())
}

func TestScenarioCompletePublishesOnce(t *testing.T) {
	r := newRig(t, []models.ScriptAction{
		{Time: 0, Type: models.ActionScenarioComplete},
		{Time: 1, Type: models.ActionScenarioComplete},
	})
	r.sched.Start()
	r.clock.Advance(time.Minute)

	done := r.bus.EventsByType(models.EventScenarioComplete)
	require.Len(t, done, 1)
	assert.False(t, done[0].Bool("objectivesComplete"))
	assert.Equal(t, models.PhaseAftermath, r.store.State().Phase())
}

func TestProgressReportsCounts(t *testing.T) {
	r := newRig(t, []models.ScriptAction{decision(1, "a"), decision(2, "b"), decision(3, "c"), decision(4, "d")})
	r.sched.Start()
	r.clock.Advance(2 * time.Second)

	p := r.sched.Progress()
	assert.Equal(t, 2, p.Executed)
	assert.Equal(t, 4, p.Total)
	assert.InDelta(t, 50.0, p.Percent, 0.0001)
	assert.True(t, p.Playing)
	assert.InDelta(t, 2.0, p.Position, 0.0001)
}

func TestStartAfterFinishReplays(t *testing.T) {
	r := newRig(t, []models.ScriptAction{decision(0, "a")})
	r.sched.Start()
	r.clock.Advance(0)
	require.True(t, r.sched.Finished())

	require.True(t, r.sched.Start())
	r.clock.Advance(0)
	assert.Equal(t, []string{"a", "a"}, r.decisions())
}
