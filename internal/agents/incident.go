package agents

import (
	"fmt"
	"time"

	"github.com/dotcommander/simuwork/internal/models"
)

const (
	initialAffectedUsers = 127
	// escalationAfter is the unresolved time after which the incident
	// becomes P1.
	escalationAfter = 180
	validationDelay = 500 * time.Millisecond
	closureDelay    = 1500 * time.Millisecond
	firstObjective  = "obj_1"
	severityP2      = "P2"
	severityP1      = "P1"
)

var incidentBehavior = Behavior{
	AgentID:       models.AgentIncident,
	ResponseDelay: 300 * time.Millisecond,
	Subscriptions: []models.EventType{
		models.EventTestsPassed,
		models.EventPhaseChange,
		models.EventTimeTick,
		models.EventDirectorTrigger,
	},
	Triggers: map[string]func(*Agent){
		"auto": incidentAlert,
	},
	ShouldReact: func(a *Agent, ev models.Event) bool {
		if ev.Type != models.EventTimeTick {
			return true
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		return !a.counters.escalated && !a.counters.resolved && ev.Int("elapsed") >= escalationAfter
	},
	React: func(a *Agent, ev models.Event) {
		switch ev.Type {
		case models.EventTestsPassed:
			incidentOnTestsPassed(a)
		case models.EventPhaseChange:
			if models.Phase(ev.String("phase")) == models.PhaseResolution {
				incidentStatusUpdate(a)
			}
		case models.EventTimeTick:
			incidentEscalate(a)
		}
	},
}

func (a *Agent) affectedUsers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counters.affectedUsers
}

func incidentAlert(a *Agent) {
	users := a.affectedUsers()
	a.SendMessage(fmt.Sprintf(`🚨 INCIDENT ALERT - P2
Severity: High
Affected Users: %d
Service: Payment Validation API

Error Pattern:
- Zero-dollar payment authorizations passing validation
- Expected: Reject invalid amounts
- Actual: Processing $0 transactions

Stack Trace:
  File "payments/utils.py", line 127, in process_payment
    if amount > 0:
      return "Success"

Investigation Required`, users), models.MessageAlert, SeverityHigh)

	a.env.Bus.Publish(models.EventIncidentCreated, map[string]any{
		"severity":      severityP2,
		"affectedUsers": users,
	}, a.ID)
	a.env.Store.CompleteObjective(firstObjective)
}

func incidentOnTestsPassed(a *Agent) {
	a.mu.Lock()
	a.counters.resolved = true
	a.mu.Unlock()

	a.after(validationDelay, func() {
		a.SendMessage(`✅ VALIDATION COMPLETE

All 12 tests passed:
✓ test_positive_amount_succeeds
✓ test_zero_amount_rejected
✓ test_negative_amount_rejected

Fix confirmed. Ready for deployment.`, models.MessageApproval, SeverityHigh)
	})

	a.after(closureDelay, func() {
		a.SendMessage(`✅ All tests passed!

🎉 INCIDENT CLOSED
Total Duration: ~2 minutes
Resolution: Payment validation logic updated
Credential Awarded: Backend Debugging - Payments API`, models.MessageApproval, SeverityHigh)
		a.update(map[string]any{"mood": "resolved", "availability": "idle"})
		a.env.Bus.Publish(models.EventIncidentResolved, map[string]any{
			"affectedUsers": a.affectedUsers(),
		}, a.ID)
	})
}

func incidentStatusUpdate(a *Agent) {
	minutes := a.env.Store.State().TimeElapsed() / 60
	a.SendMessage(fmt.Sprintf(`📊 STATUS UPDATE
Phase: Resolution
Affected Users: %d
Time Elapsed: %dm

Developer working on fix...`, a.affectedUsers(), minutes), models.MessageResponse, SeverityMedium)
}

// incidentEscalate raises the unresolved incident to P1 and doubles its
// reach. It runs at most once per agent lifetime.
func incidentEscalate(a *Agent) {
	a.mu.Lock()
	if a.counters.escalated || a.counters.resolved {
		a.mu.Unlock()
		return
	}
	a.counters.escalated = true
	a.counters.affectedUsers *= 2
	users := a.counters.affectedUsers
	a.mu.Unlock()

	a.log.Info("incident escalated", "severity", severityP1, "affected_users", users)
	a.update(map[string]any{
		"escalated":     true,
		"severity":      severityP1,
		"affectedUsers": users,
		"mood":          "alarmed",
	})
	a.SendMessage(fmt.Sprintf(`⚠️ INCIDENT ESCALATED - P1
Affected Users: %d
Unresolved for over %d minutes`, users, escalationAfter/60), models.MessageEscalation, SeverityCritical)
	a.env.Bus.Publish(models.EventIncidentEscalated, map[string]any{
		"severity":      severityP1,
		"affectedUsers": users,
	}, a.ID)
}
