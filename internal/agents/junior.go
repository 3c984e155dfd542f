package agents

import (
	"time"

	"github.com/dotcommander/simuwork/internal/models"
)

// Scripted decision the junior developer reacts to.
const (
	DecisionHelpJunior      = "help_junior_dev"
	ChoiceExplainRelated    = "explain_likely_related"
	communicationSkill      = "communication"
	juniorRelationshipBoost = 15
)

var juniorBehavior = Behavior{
	AgentID:       models.AgentJuniorDev,
	ResponseDelay: 1500 * time.Millisecond,
	Subscriptions: []models.EventType{
		models.EventPhaseChange,
		models.EventUserDecision,
		models.EventTestsPassed,
		models.EventDirectorTrigger,
	},
	Triggers: map[string]func(*Agent){
		"teammate_help_request": juniorRequestHelp,
	},
	React: func(a *Agent, ev models.Event) {
		switch ev.Type {
		case models.EventPhaseChange:
			if models.Phase(ev.String("phase")) == models.PhaseInvestigation {
				a.SendMessage("Interesting - I noticed the validation logic checks for positive amounts. Wonder if that's related?", models.MessageResponse, SeverityMedium)
			}
		case models.EventUserDecision:
			juniorOnDecision(a, ev)
		case models.EventTestsPassed:
			a.mu.Lock()
			asked := a.counters.askedForHelp
			a.mu.Unlock()
			if asked {
				a.SendMessage("Just tested your fix against the refund API - working perfectly! Thanks for explaining the connection earlier.", models.MessageApproval, SeverityMedium)
			}
		}
	},
}

// juniorRequestHelp asks for help once per agent lifetime.
func juniorRequestHelp(a *Agent) {
	a.mu.Lock()
	if a.counters.askedForHelp {
		a.mu.Unlock()
		return
	}
	a.counters.askedForHelp = true
	a.mu.Unlock()

	a.AskQuestion("Hey! I'm seeing similar errors in the refund API. Are they related to the payment validation bug you're fixing?")
	a.update(map[string]any{"askedForHelp": true})
}

func juniorOnDecision(a *Agent, ev models.Event) {
	if ev.String("decisionId") != DecisionHelpJunior || ev.String("decision") != ChoiceExplainRelated {
		return
	}
	a.SendMessage("That makes sense! So if we fix the payment validation, it should fix the refund API too. Thanks for explaining!", models.MessageResponse, SeverityMedium)
	a.env.Store.AdjustSkill(communicationSkill, 0.5)
	a.env.Store.AdjustRelationship(a.ID, juniorRelationshipBoost)
}
