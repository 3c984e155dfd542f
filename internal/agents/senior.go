package agents

import (
	"strings"
	"time"

	"github.com/dotcommander/simuwork/internal/models"
)

// Message severities.
const (
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// CodeIssue is one finding of the senior engineer's code check.
type CodeIssue struct {
	Severity string
	Message  string
}

// AnalyzeCode flags the known validation bug and missing error handling.
func AnalyzeCode(code string) []CodeIssue {
	var issues []CodeIssue
	if strings.Contains(code, "amount > 0") && !strings.Contains(code, "amount <= 0") {
		issues = append(issues, CodeIssue{
			Severity: SeverityCritical,
			Message:  "The condition `amount > 0` won't catch zero-dollar transactions. Consider using `amount <= 0` instead.",
		})
	}
	if !strings.Contains(code, "raise") {
		issues = append(issues, CodeIssue{
			Severity: SeverityWarning,
			Message:  "Missing explicit error handling. Consider raising an exception for invalid amounts.",
		})
	}
	return issues
}

var seniorBehavior = Behavior{
	AgentID:       models.AgentSeniorDev,
	ResponseDelay: 1200 * time.Millisecond,
	Subscriptions: []models.EventType{
		models.EventUserCodeChange,
		models.EventUserAskQuestion,
		models.EventTestsFailed,
		models.EventPhaseChange,
		models.EventDirectorTrigger,
	},
	Triggers: map[string]func(*Agent){
		"initial_guidance": seniorInitialGuidance,
		"auto":             seniorInitialGuidance,
	},
	ShouldReact: func(_ *Agent, ev models.Event) bool {
		if ev.Type == models.EventUserCodeChange {
			return len(AnalyzeCode(ev.String("code"))) > 0
		}
		return true
	},
	React: func(a *Agent, ev models.Event) {
		switch ev.Type {
		case models.EventUserCodeChange:
			seniorOnCodeChange(a, ev)
		case models.EventUserAskQuestion:
			seniorOnQuestion(a, ev)
		case models.EventTestsFailed:
			seniorOnTestsFailed(a)
		case models.EventPhaseChange:
			if models.Phase(ev.String("phase")) == models.PhaseResolution {
				a.SendMessage("Now that you understand the bug, let's fix it. Remember to handle both zero and negative amounts.", models.MessageResponse, SeverityMedium)
			}
		}
	},
}

func seniorInitialGuidance(a *Agent) {
	a.SendMessage("I see we have a P2 incident with payment validation. Let's start by examining the process_payment function. What does the validation logic look like?", models.MessageResponse, SeverityMedium)
}

func seniorOnCodeChange(a *Agent, ev models.Event) {
	code := ev.String("code")
	for _, issue := range AnalyzeCode(code) {
		if issue.Severity == SeverityCritical {
			a.ReviewCode(code, issue.Message, SeverityHigh)
			return
		}
	}
}

func seniorOnQuestion(a *Agent, ev models.Event) {
	question := strings.ToLower(ev.String("question"))
	switch {
	case strings.Contains(question, "zero") || strings.Contains(question, "0"):
		a.SendMessage("Good catch! Zero-dollar amounts are tricky. They're often used for authorization checks in payment systems, but our current validation lets them slip through silently.", models.MessageResponse, SeverityMedium)
	case strings.Contains(question, "test") || strings.Contains(question, "validation"):
		a.SendMessage("For validation bugs like this, I always recommend writing a test case first. What values should we be checking? Positive, zero, and negative amounts.", models.MessageResponse, SeverityMedium)
	}
}

func seniorOnTestsFailed(a *Agent) {
	a.mu.Lock()
	a.counters.testFailures++
	count := a.counters.testFailures
	a.mu.Unlock()

	switch {
	case count == 1:
		a.SendMessage("Tests failed, but that's part of the process. Review the error messages carefully - they'll guide you.", models.MessageResponse, SeverityMedium)
	case count == 2:
		a.GiveHint("Hint: Look at the comparison operator in your validation. What's the difference between > and >=?", SeverityMedium)
	default:
		a.GiveHint("The fix is to change `amount > 0` to `amount <= 0` for the error condition.", SeverityHigh)
	}
}
