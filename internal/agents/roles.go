package agents

import (
	"time"

	"github.com/dotcommander/simuwork/internal/models"
)

// Role is the closed set of agent variants.
type Role string

const (
	RoleSeniorEngineer  Role = "Senior Engineer"
	RoleProductManager  Role = "Product Manager"
	RoleJuniorDeveloper Role = "Junior Developer"
	RoleIncidentMonitor Role = "Incident System"
	RoleCodeAssistant   Role = "Code Assistant AI"
)

// Behavior is a role's rule table.
type Behavior struct {
	AgentID       string
	ResponseDelay time.Duration
	Subscriptions []models.EventType
	// Triggers maps director action names to scripted reactions.
	Triggers map[string]func(*Agent)
	// ShouldReact filters non-trigger events; nil accepts every event.
	ShouldReact func(*Agent, models.Event) bool
	React       func(*Agent, models.Event)
}

var behaviors = map[Role]Behavior{
	RoleSeniorEngineer:  seniorBehavior,
	RoleProductManager:  pmBehavior,
	RoleJuniorDeveloper: juniorBehavior,
	RoleIncidentMonitor: incidentBehavior,
	RoleCodeAssistant:   assistantBehavior,
}

// Roles returns every role in the order agents are created.
func Roles() []Role {
	return []Role{
		RoleSeniorEngineer,
		RoleProductManager,
		RoleJuniorDeveloper,
		RoleIncidentMonitor,
		RoleCodeAssistant,
	}
}

// BehaviorFor returns the rule table of role.
func BehaviorFor(role Role) (Behavior, bool) {
	b, ok := behaviors[role]
	return b, ok
}
