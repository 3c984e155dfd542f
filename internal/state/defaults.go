package state

import "github.com/dotcommander/simuwork/internal/models"

// Top-level sections of the application state tree.
const (
	SectionUser     = "user"
	SectionWorld    = "world"
	SectionScenario = "scenario"
	SectionAgents   = "agents"
	SectionUI       = "ui"
)

// Skill and relationship bounds.
const (
	MinSkill        = 0.0
	MaxSkill        = 10.0
	MinRelationship = 0
	MaxRelationship = 100
)

// MaxMessages bounds ui.messages; older entries are evicted first.
const MaxMessages = 50

// ScenarioFile is the file under investigation in the payment scenario.
const ScenarioFile = "payments/utils.py"

// InitialCode is the buggy buffer the scenario opens with.
const InitialCode = `def process_payment(amount):
    if amount > 0:
        return "Success"
    else:
        raise ValueError("Invalid amount")`

// DefaultObjectives returns the scenario objectives, none completed.
func DefaultObjectives() []models.Objective {
	return []models.Objective{
		{ID: "obj_1", Text: "Understand the payment validation bug"},
		{ID: "obj_2", Text: "Fix the validation logic"},
		{ID: "obj_3", Text: "Ensure all tests pass"},
	}
}

// Defaults builds a fresh application state tree.
func Defaults() map[string]any {
	return map[string]any{
		SectionUser: map[string]any{
			"id": "student_1",
			"skillLevels": map[string]any{
				"debugging":      5.0,
				"systemDesign":   4.0,
				"testing":        4.0,
				"communication":  5.0,
				"problemSolving": 5.0,
			},
			"reputation":         75,
			"completedScenarios": []string{},
			"learningStyle":      "hands-on",
			"actionsHistory":     []models.UserAction{},
		},
		SectionWorld: map[string]any{
			"company": map[string]any{
				"name":      "PayFlow",
				"type":      "Fintech Startup",
				"techStack": []string{"Python", "Django", "PostgreSQL", "React"},
			},
			"incidents":    []any{},
			"techDebt":     []any{},
			"recentEvents": []any{},
			"timeElapsed":  0,
		},
		SectionScenario: map[string]any{
			"id":          "payment_api_debug",
			"type":        "debugging",
			"difficulty":  "intermediate",
			"phase":       string(models.PhaseOrientation),
			"timeElapsed": 0,
			"objectives":  DefaultObjectives(),
			"userActions": []models.UserAction{},
			"codebase": map[string]any{
				"currentFile": ScenarioFile,
				"hasChanges":  false,
				"testsPass":   false,
			},
		},
		SectionAgents: map[string]any{
			models.AgentSeniorDev: map[string]any{
				"mood":         "focused",
				"focus":        "code_review",
				"relationship": 50,
				"availability": "available",
			},
			models.AgentPM: map[string]any{
				"mood":         "concerned",
				"focus":        "incident_management",
				"relationship": 50,
				"availability": "available",
				"stress":       30,
			},
			models.AgentJuniorDev: map[string]any{
				"mood":         "curious",
				"focus":        "learning",
				"relationship": 50,
				"availability": "available",
				"askedForHelp": false,
			},
			models.AgentIncident: map[string]any{
				"mood":          "monitoring",
				"focus":         "incident_tracking",
				"relationship":  50,
				"availability":  "active",
				"escalated":     false,
				"severity":      "P2",
				"affectedUsers": 127,
			},
		},
		SectionUI: map[string]any{
			"messages":          []models.Message{},
			"codeEditorContent": InitialCode,
			"typingPreview":     "",
			"userTyping":        false,
		},
	}
}
