package timeline

import (
	"slices"
	"time"

	"github.com/dotcommander/simuwork/internal/models"
)

const narrationDuration = 20 * time.Second

// FixedCode is the code the scripted user types in as the fix.
const FixedCode = `class PaymentValidationError(ValueError):
    pass

def process_payment(amount):
    if amount <= 0:
        raise PaymentValidationError("Amount must be greater than zero")
    # Simulate gateway dispatch
    return "Success"`

// Script returns a fresh copy of the built-in demo timeline.
func Script() []models.ScriptAction {
	out := slices.Clone(canonical)
	for i := range out {
		if n := out[i].Narration; n != nil {
			copied := *n
			out[i].Narration = &copied
		}
	}
	return out
}

func narrate(at float64, n models.Narration) models.ScriptAction {
	if n.Duration == 0 {
		n.Duration = narrationDuration
	}
	return models.ScriptAction{Time: at, Type: models.ActionShowNarration, Narration: &n}
}

func trigger(at float64, agentID, action string) models.ScriptAction {
	return models.ScriptAction{Time: at, Type: models.ActionAgentMessage, AgentID: agentID, Trigger: action}
}

func say(at float64, agentID, message string) models.ScriptAction {
	return models.ScriptAction{Time: at, Type: models.ActionAgentMessage, AgentID: agentID, Message: message}
}

func typeMessage(at float64, content string, typing time.Duration) models.ScriptAction {
	return models.ScriptAction{Time: at, Type: models.ActionUserMessage, Content: content, TypingDuration: typing}
}

var canonical = []models.ScriptAction{
	narrate(0, models.Narration{
		Agent:       "SimuWork AI",
		AgentIcon:   "🎯",
		Title:       "Welcome to SimuWork",
		Description: "Watch multiple AI agents collaborate in real-time to mentor you through a Payment API debugging challenge.",
		Position:    "top-center",
		Color:       "blue",
	}),
	narrate(4, models.Narration{
		Agent:           "UI Guide",
		AgentIcon:       "📋",
		Description:     "Mission Objectives track your progress. Watch them update as you complete tasks.",
		Position:        "right",
		Color:           "teal",
		HighlightTarget: "#objectives-panel",
	}),
	trigger(7, models.AgentIncident, "auto"),
	narrate(9, models.Narration{
		Agent:           "Incident System",
		AgentIcon:       "🚨",
		Description:     "The Incident Agent automatically detects bugs and creates alerts. This is how real teams track production issues.",
		Position:        "right",
		Color:           "orange",
		HighlightTarget: "#agent-messages",
	}),
	trigger(12, models.AgentPM, "phase_change_investigation"),
	narrate(14, models.Narration{
		Agent:           "Product Manager",
		AgentIcon:       "👩‍💼",
		Description:     "The PM coordinates the team and tracks incident resolution. Notice how objectives update automatically.",
		Position:        "right",
		Color:           "purple",
		HighlightTarget: "#objectives-panel",
	}),
	trigger(17, models.AgentSeniorDev, "initial_guidance"),
	narrate(19, models.Narration{
		Agent:           "Senior Engineer",
		AgentIcon:       "💻",
		Description:     "Senior engineers provide Socratic guidance - asking questions to help you discover solutions yourself.",
		Position:        "right",
		Color:           "blue",
		HighlightTarget: "#agent-messages",
	}),
	typeMessage(22, "What's causing the payment validation failures?", time.Second),
	say(24, models.AgentSeniorDev, "Good question. Take a look at the process_payment function - specifically the validation logic. What condition is being checked before we process the payment?"),
	narrate(26, models.Narration{
		Agent:           "Team Chat",
		AgentIcon:       "💬",
		Description:     "Ask questions here to get guidance from team members. Each agent has unique expertise.",
		Position:        "top",
		Color:           "green",
		HighlightTarget: "#team-chat-input",
	}),
	typeMessage(29, "I see it checks if amount > 0. Is that the bug?", time.Second),
	say(31, models.AgentSeniorDev, "Exactly! Think about it - if amount is 0, does that condition catch it? What happens with zero-dollar authorizations?"),
	typeMessage(34, "Oh! Zero passes through because 0 is not > 0, but it's also not raising an error.", 1200*time.Millisecond),
	say(36, models.AgentSeniorDev, "Bingo! You've found the root cause. Zero-dollar amounts slip through the validation. Now, how would you fix this?"),
	trigger(39, models.AgentJuniorDev, "teammate_help_request"),
	narrate(41, models.Narration{
		Agent:           "Junior Developer",
		AgentIcon:       "🧑‍💻",
		Description:     "Junior developers learn by asking questions. Notice how they connect related issues across the codebase.",
		Position:        "right",
		Color:           "teal",
		HighlightTarget: "#agent-messages",
	}),
	{Time: 42, Type: models.ActionUserDecisionAuto, DecisionID: "help_junior_dev", Choice: "explain_likely_related"},
	trigger(45, models.AgentPM, "check_progress"),
	typeMessage(47, "Found the bug - the validation isn't catching zero amounts. Working on the fix now.", 1200*time.Millisecond),
	say(49, models.AgentPM, "Great work! Let me know once you have tests passing and I'll coordinate the deployment."),
	typeMessage(52, "How should I structure the fix? Should I create a custom exception?", 1200*time.Millisecond),
	say(54, models.AgentSeniorDev, "Good thinking! Yes, create a PaymentValidationError exception class. Then change the condition to `if amount <= 0:` and raise that exception. This makes the error explicit and easier to handle upstream."),
	{Time: 58, Type: models.ActionCodeChange, Code: FixedCode},
	narrate(61, models.Narration{
		Agent:           "Code Editor",
		AgentIcon:       "⌨️",
		Description:     "Write code here. AI agents analyze it in real-time, checking for bugs, security issues, and best practices.",
		Position:        "left",
		Color:           "purple",
		HighlightTarget: "#code-editor",
	}),
	say(63, models.AgentSeniorDev, "Looking good! The logic is now correct - rejecting zero and negative amounts. Run the tests to validate."),
	{Time: 66, Type: models.ActionRunTests},
	narrate(69, models.Narration{
		Agent:           "Test Output",
		AgentIcon:       "🧪",
		Description:     "Test results appear here instantly. Watch how objectives update automatically when tests pass.",
		Position:        "right",
		Color:           "green",
		HighlightTarget: "#terminal-output",
	}),
	say(71, models.AgentSeniorDev, "Perfect! All 12 tests passing. The fix correctly handles positive, zero, and negative amounts. Nice work!"),
	narrate(74, models.Narration{
		Agent:           "Objectives Panel",
		AgentIcon:       "✅",
		Description:     "Notice how objectives complete automatically as you progress. This tracks your learning journey.",
		Position:        "right",
		Color:           "teal",
		HighlightTarget: "#objectives-panel",
	}),
	say(75, models.AgentPM, "Tests passing - excellent! That's what I like to see. I'm updating the incident status to resolved."),
	say(78, models.AgentJuniorDev, "Just tested your fix against the refund API - working perfectly! Thanks for explaining the connection earlier."),
	say(81, models.AgentIncident, "✅ All tests passed!\n\n🎉 INCIDENT CLOSED\nTotal Duration: ~1 minute\nResolution: Payment validation logic updated\nCredential Awarded: Backend Debugging - Payments API"),
	narrate(83, models.Narration{
		Agent:       "SimuWork",
		AgentIcon:   "🎉",
		Title:       "Challenge Complete!",
		Description: "You earned a verified credential proving you can debug real production issues. These credentials are recognized by employers.",
		Position:    "top-center",
		Color:       "green",
		Highlight:   "Employer-recognized proof of your skills",
		Duration:    4 * time.Second,
	}),
	{Time: 88, Type: models.ActionScenarioComplete},
}
