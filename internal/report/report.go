// Package report evaluates the user's run once the scenario is over.
package report

import (
	"fmt"
	"strings"

	"github.com/dotcommander/simuwork/internal/models"
	"github.com/dotcommander/simuwork/internal/state"
	"github.com/dotcommander/simuwork/internal/timeline"
)

// Time score thresholds in scenario seconds.
const (
	excellentUnder = 120
	goodUnder      = 180
)

// Time scores.
const (
	TimeExcellent = "Excellent"
	TimeGood      = "Good"
	TimeFair      = "Fair"
)

// AgentEvaluation is one agent's verdict on the run.
type AgentEvaluation struct {
	AgentID    string   `json:"agent_id"`
	Role       string   `json:"role"`
	Evaluation string   `json:"evaluation"`
	Strengths  []string `json:"strengths"`
	Areas      []string `json:"areas,omitempty"`
	Rating     string   `json:"rating"`
}

// Report summarizes a finished (or abandoned) scenario.
type Report struct {
	ObjectivesCompleted int               `json:"objectives_completed"`
	ObjectivesTotal     int               `json:"objectives_total"`
	QuestionsAsked      int               `json:"questions_asked"`
	CodeChanged         bool              `json:"code_changed"`
	TestsPassed         bool              `json:"tests_passed"`
	TimeElapsed         int               `json:"time_elapsed"`
	Duration            string            `json:"duration"`
	TimeScore           string            `json:"time_score"`
	Agents              []AgentEvaluation `json:"agents"`
}

// AllObjectives reports whether every objective was completed.
func (r Report) AllObjectives() bool {
	return r.ObjectivesTotal > 0 && r.ObjectivesCompleted == r.ObjectivesTotal
}

// Evaluate builds the report from a store snapshot.
func Evaluate(snap state.Snapshot) Report {
	code := snap.Code()
	elapsed := snap.TimeElapsed()

	questions := 0
	for _, m := range snap.Messages() {
		if m.AgentID == models.AgentUser && strings.Contains(m.Content, "?") {
			questions++
		}
	}

	r := Report{
		ObjectivesCompleted: snap.CompletedObjectives(),
		ObjectivesTotal:     len(snap.Objectives()),
		QuestionsAsked:      questions,
		CodeChanged:         code != state.InitialCode,
		TestsPassed:         timeline.EvaluateTests(code).Passed,
		TimeElapsed:         elapsed,
		Duration:            FormatDuration(elapsed),
		TimeScore:           TimeScore(elapsed),
	}
	r.Agents = []AgentEvaluation{
		seniorEvaluation(r),
		pmEvaluation(r),
		juniorEvaluation(r),
		incidentEvaluation(r),
	}
	return r
}

// TimeScore grades the resolution time.
func TimeScore(seconds int) string {
	switch {
	case seconds < excellentUnder:
		return TimeExcellent
	case seconds < goodUnder:
		return TimeGood
	default:
		return TimeFair
	}
}

// FormatDuration renders seconds as "Xm Ys".
func FormatDuration(seconds int) string {
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}

func seniorEvaluation(r Report) AgentEvaluation {
	e := AgentEvaluation{
		AgentID: models.AgentSeniorDev,
		Role:    models.AgentRoleName(models.AgentSeniorDev),
		Evaluation: pick(r.QuestionsAsked > 2,
			"Strong analytical thinking demonstrated. You asked thoughtful questions and showed good debugging instincts. The code fix was clean and well-structured.",
			"Good problem-solving approach. Consider asking more questions when stuck - collaboration is key."),
		Strengths: []string{
			pick(r.CodeChanged, "Identified root cause quickly", "Methodical investigation"),
			pick(r.TestsPassed, "Clean code implementation", "Willing to iterate"),
			pick(r.QuestionsAsked > 0, "Proactive communication", "Independent problem-solving"),
		},
		Rating: "7/10",
	}
	if r.QuestionsAsked == 0 {
		e.Areas = append(e.Areas, "Ask questions earlier when stuck")
	}
	if r.TimeElapsed > goodUnder {
		e.Areas = append(e.Areas, "Work on time management")
	}
	switch {
	case r.TestsPassed && r.QuestionsAsked > 0:
		e.Rating = "9/10"
	case r.TestsPassed:
		e.Rating = "8/10"
	}
	return e
}

func pmEvaluation(r Report) AgentEvaluation {
	all := r.AllObjectives()
	e := AgentEvaluation{
		AgentID: models.AgentPM,
		Role:    models.AgentRoleName(models.AgentPM),
		Evaluation: pick(all,
			"Excellent execution! You completed all objectives and kept the team informed. The incident was resolved efficiently.",
			"Good progress, but some objectives remain incomplete. Focus on clear communication and follow-through."),
		Strengths: []string{
			pick(all, "100% objective completion", "Steady progress"),
			pick(r.TimeElapsed < goodUnder, "Fast resolution time", "Thorough investigation"),
			"Clear communication with team",
		},
		Rating: pick(all, "9/10", "7/10"),
	}
	if !all {
		e.Areas = append(e.Areas, "Complete all objectives before closing")
	}
	if r.TimeElapsed > goodUnder {
		e.Areas = append(e.Areas, "Improve time-to-resolution")
	}
	return e
}

func juniorEvaluation(r Report) AgentEvaluation {
	asked := r.QuestionsAsked > 0
	e := AgentEvaluation{
		AgentID: models.AgentJuniorDev,
		Role:    models.AgentRoleName(models.AgentJuniorDev),
		Evaluation: pick(asked,
			"Great collaboration! You explained concepts clearly and helped me understand the connection to related systems. Keep up the knowledge sharing!",
			"Good technical work. Consider explaining your thought process to help teammates learn."),
		Strengths: []string{
			"Technical problem-solving",
			pick(asked, "Knowledge sharing", "Independent work"),
			"Attention to related systems",
		},
		Rating: pick(asked, "8/10", "7/10"),
	}
	if !asked {
		e.Areas = append(e.Areas, "Share knowledge with team more")
	}
	e.Areas = append(e.Areas, "Document your approach for future reference")
	return e
}

func incidentEvaluation(r Report) AgentEvaluation {
	clean := r.TestsPassed && r.AllObjectives()
	e := AgentEvaluation{
		AgentID: models.AgentIncident,
		Role:    models.AgentRoleName(models.AgentIncident),
		Evaluation: pick(clean,
			"Incident resolved successfully. All validation checks passed. System stability restored.",
			"Incident partially resolved. Some validation issues may remain."),
		Strengths: []string{
			pick(r.TestsPassed, "All tests passing", "Progress made"),
			pick(r.AllObjectives(), "All objectives met", "Ongoing resolution"),
			"Resolution time: " + r.Duration,
		},
		Rating: pick(clean, "10/10", "7/10"),
	}
	if !r.TestsPassed {
		e.Areas = append(e.Areas, "Ensure all tests pass before deployment")
	}
	if !r.AllObjectives() {
		e.Areas = append(e.Areas, "Complete all validation checks")
	}
	return e
}
