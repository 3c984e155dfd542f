package timeline

import (
	"strings"
	"time"

	"github.com/dotcommander/simuwork/internal/models"
	"github.com/dotcommander/simuwork/internal/state"
)

// Objectives completed by a passing test run.
var testObjectives = []string{"obj_2", "obj_3"}

// User action kinds recorded in the store.
const (
	userActionMessage  = "user_message"
	userActionQuestion = "question"
	userActionCode     = "code_change"
	userActionTests    = "run_tests"
	userActionDecision = "decision"
)

func (s *Scheduler) execute(action models.ScriptAction, speed float64) {
	switch action.Type {
	case models.ActionShowNarration:
		if action.Narration != nil {
			s.guide.Show(*action.Narration)
		}
	case models.ActionUserMessage:
		s.typeUserMessage(action, speed)
	case models.ActionAgentMessage:
		s.agentMessage(action)
	case models.ActionCodeChange:
		s.applyCodeChange(action.Code)
	case models.ActionRunTests:
		s.runTests(speed)
	case models.ActionUserDecisionAuto:
		s.bus.Publish(models.EventUserDecision, map[string]any{
			"decisionId": action.DecisionID,
			"decision":   action.Choice,
		}, models.SourceUser)
		s.store.RecordUserAction(models.UserAction{
			Type:       userActionDecision,
			DecisionID: action.DecisionID,
			Choice:     action.Choice,
		})
	case models.ActionScenarioComplete:
		s.completeScenario()
	default:
		s.log.Warn("unknown timeline action", "type", action.Type)
	}
}

// typeUserMessage reveals the message one character at a time over the
// typing duration, then posts it.
func (s *Scheduler) typeUserMessage(action models.ScriptAction, speed float64) {
	typing := action.TypingDuration
	if typing <= 0 {
		typing = DefaultTypingDuration
	}
	total := time.Duration(float64(typing) / speed)
	content := action.Content
	runes := []rune(content)

	s.store.Update(map[string]any{state.SectionUI: map[string]any{
		"userTyping":    true,
		"typingPreview": "",
	}}, models.SourceUser)

	step := total / time.Duration(max(1, len(runes)))
	for i := range runes {
		preview := string(runes[:i+1])
		s.after(step*time.Duration(i), func() {
			s.store.Update(map[string]any{state.SectionUI: map[string]any{"typingPreview": preview}}, models.SourceUser)
		})
	}

	s.after(total, func() {
		s.store.Update(map[string]any{state.SectionUI: map[string]any{
			"userTyping":    false,
			"typingPreview": "",
		}}, models.SourceUser)
		s.store.AddMessage(models.Message{
			AgentID: models.AgentUser,
			Content: content,
			Type:    models.MessageUser,
		})

		kind := userActionMessage
		if strings.Contains(content, "?") {
			kind = userActionQuestion
			s.bus.Publish(models.EventUserAskQuestion, map[string]any{"question": content}, models.SourceUser)
		}
		s.store.RecordUserAction(models.UserAction{Type: kind, Content: content})
	})
}

func (s *Scheduler) agentMessage(action models.ScriptAction) {
	if action.Trigger != "" {
		s.bus.Publish(models.EventDirectorTrigger, map[string]any{
			"agentId": action.AgentID,
			"action":  action.Trigger,
		}, models.SourceDirector)
		return
	}
	if action.Message != "" {
		s.store.AddMessage(models.Message{
			AgentID: action.AgentID,
			Content: action.Message,
			Type:    models.MessageResponse,
		})
	}
}

func (s *Scheduler) applyCodeChange(code string) {
	s.store.Update(map[string]any{
		state.SectionUI: map[string]any{"codeEditorContent": code},
		state.SectionScenario: map[string]any{"codebase": map[string]any{
			"currentFile": state.ScenarioFile,
			"hasChanges":  true,
		}},
	}, models.SourceUser)
	s.bus.Publish(models.EventUserCodeChange, map[string]any{
		"code":       code,
		"hasChanges": true,
	}, models.SourceUser)
	s.store.RecordUserAction(models.UserAction{Type: userActionCode, Content: code})

	s.mu.Lock()
	first := !s.codeChanged
	s.codeChanged = true
	s.mu.Unlock()
	if first && s.store.State().Phase().Rank() < models.PhaseResolution.Rank() {
		s.store.SetPhase(models.PhaseResolution)
	}
}

func (s *Scheduler) runTests(speed float64) {
	code := s.store.State().Code()
	s.bus.Publish(models.EventUserRunTests, map[string]any{"code": code}, models.SourceUser)
	s.store.RecordUserAction(models.UserAction{Type: userActionTests})

	s.after(time.Duration(float64(TestRunDelay)/speed), func() {
		result := EvaluateTests(code)
		s.store.Update(map[string]any{state.SectionScenario: map[string]any{
			"codebase": map[string]any{"testsPass": result.Passed},
		}}, models.SourceSystem)

		if !result.Passed {
			s.log.Info("simulated tests failed", "failures", len(result.Failures))
			s.bus.Publish(models.EventTestsFailed, map[string]any{
				"code":        code,
				"failedTests": result.Failures,
			}, models.SourceSystem)
			return
		}

		s.log.Info("simulated tests passed", "tests", result.TestCount)
		s.bus.Publish(models.EventTestsPassed, map[string]any{
			"code":      code,
			"testCount": result.TestCount,
		}, models.SourceSystem)
		for _, id := range testObjectives {
			s.store.CompleteObjective(id)
		}
	})
}

// completeScenario moves to aftermath and announces completion once per run.
func (s *Scheduler) completeScenario() {
	s.mu.Lock()
	if s.completed {
		s.mu.Unlock()
		return
	}
	s.completed = true
	s.mu.Unlock()

	s.store.SetPhase(models.PhaseAftermath)
	snap := s.store.State()
	s.log.Info("scenario complete", "elapsed", snap.TimeElapsed(), "objectives", snap.CompletedObjectives())
	s.bus.Publish(models.EventScenarioComplete, map[string]any{
		"timeElapsed":        snap.TimeElapsed(),
		"objectivesComplete": s.store.AllObjectivesComplete(),
	}, models.SourceSystem)
}
