package agents

import (
	"fmt"
	"time"

	"github.com/dotcommander/simuwork/internal/models"
)

var pmBehavior = Behavior{
	AgentID:       models.AgentPM,
	ResponseDelay: time.Second,
	Subscriptions: []models.EventType{
		models.EventPhaseChange,
		models.EventTestsPassed,
		models.EventIncidentEscalated,
		models.EventDirectorTrigger,
	},
	Triggers: map[string]func(*Agent){
		"phase_change_investigation": pmOpenIncident,
		"check_progress":             pmCheckProgress,
	},
	React: func(a *Agent, ev models.Event) {
		switch ev.Type {
		case models.EventPhaseChange:
			if models.Phase(ev.String("phase")) == models.PhaseResolution {
				a.SendMessage("Good, we're moving to resolution. Let me know once tests pass and we can coordinate the deployment.", models.MessageResponse, SeverityMedium)
			}
		case models.EventTestsPassed:
			a.SendMessage("Excellent! All tests passing. This is exactly what I wanted to see. Can you provide a brief summary for the incident report?", models.MessageApproval, SeverityHigh)
			a.update(map[string]any{"stress": 10, "mood": "relieved"})
			a.env.Store.AdjustRelationship(a.ID, 15)
		case models.EventIncidentEscalated:
			users := ev.Int("affectedUsers")
			a.SendMessage(fmt.Sprintf("This just escalated to P1! We now have %d affected users. We need this fixed ASAP.", users), models.MessageEscalation, SeverityCritical)
			a.update(map[string]any{"stress": 80, "mood": "stressed"})
		}
	},
}

func pmOpenIncident(a *Agent) {
	a.env.Store.SetPhase(models.PhaseInvestigation)
	a.SendMessage(fmt.Sprintf("Team - we have a P2 incident. Payment validation is failing for some transactions. This is affecting %d users. Can someone investigate ASAP?", initialAffectedUsers), models.MessageAlert, SeverityHigh)
	a.update(map[string]any{"stress": 40})
}

func pmCheckProgress(a *Agent) {
	a.SendMessage("Quick check - how are we progressing on the payment validation fix? Any blockers I should know about?", models.MessageResponse, SeverityMedium)
}
