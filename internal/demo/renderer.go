// Package demo renders a running session to a terminal: chat messages,
// narration, phase changes, test results and the closing report.
package demo

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/dotcommander/simuwork/internal/bus"
	"github.com/dotcommander/simuwork/internal/models"
	"github.com/dotcommander/simuwork/internal/narration"
	"github.com/dotcommander/simuwork/internal/report"
	"github.com/dotcommander/simuwork/internal/state"
	"github.com/dotcommander/simuwork/internal/timeline"
)

// ColorMode selects when output is colorized.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode accepts auto, always or never. Empty means auto.
func ParseColorMode(s string) (ColorMode, error) {
	switch ColorMode(strings.ToLower(s)) {
	case "", ColorAuto:
		return ColorAuto, nil
	case ColorAlways:
		return ColorAlways, nil
	case ColorNever:
		return ColorNever, nil
	}
	return "", fmt.Errorf("unknown color mode %q (valid: auto, always, never)", s)
}

const timeLayout = "15:04:05"

// Renderer prints session activity as it happens.
type Renderer struct {
	out   io.Writer
	color bool

	mu      sync.Mutex
	printed map[string]struct{}

	bold   *color.Color
	dim    *color.Color
	banner *color.Color
	green  *color.Color
	red    *color.Color
	yellow *color.Color
	agents map[string]*color.Color
}

// NewRenderer creates a renderer writing to out. In auto mode colour is used
// only when out is a terminal.
func NewRenderer(out io.Writer, mode ColorMode) *Renderer {
	enabled := mode == ColorAlways
	if mode == ColorAuto {
		if f, ok := out.(*os.File); ok {
			enabled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
	}

	r := &Renderer{
		out:     out,
		color:   enabled,
		printed: make(map[string]struct{}),
	}
	r.bold = r.newColor(color.Bold)
	r.dim = r.newColor(color.Faint)
	r.banner = r.newColor(color.Bold, color.BgBlue, color.FgWhite)
	r.green = r.newColor(color.FgGreen)
	r.red = r.newColor(color.FgRed)
	r.yellow = r.newColor(color.FgYellow)
	r.agents = map[string]*color.Color{
		models.AgentSeniorDev:     r.newColor(color.FgCyan, color.Bold),
		models.AgentPM:            r.newColor(color.FgMagenta, color.Bold),
		models.AgentJuniorDev:     r.newColor(color.FgGreen, color.Bold),
		models.AgentIncident:      r.newColor(color.FgRed, color.Bold),
		models.AgentCodeAssistant: r.newColor(color.FgBlue, color.Bold),
		models.AgentUser:          r.newColor(color.FgWhite, color.Bold),
	}
	return r
}

func (r *Renderer) newColor(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if r.color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func (r *Renderer) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// Attach subscribes the renderer to the store, the guide and the bus. The
// returned func detaches it.
func (r *Renderer) Attach(store *state.Store, guide *narration.Guide, b *bus.Bus) func() {
	unsubs := []func(){
		store.Subscribe(func(s state.Snapshot, _ map[string]any) { r.renderMessages(s.Messages()) }),
		guide.Subscribe(func(n *models.Narration) {
			if n != nil {
				r.PrintNarration(*n)
			}
		}),
		b.Subscribe(models.EventPhaseChange, func(ev models.Event) {
			r.PrintPhase(models.Phase(ev.String("from")), models.Phase(ev.String("to")))
		}, "renderer"),
		b.Subscribe(models.EventUserRunTests, func(models.Event) {
			r.printf("    %s\n", r.dim.Sprint("$ pytest tests/test_payments.py"))
		}, "renderer"),
		b.Subscribe(models.EventTestsPassed, func(ev models.Event) {
			r.PrintPass(fmt.Sprintf("%d tests passed", ev.Int("testCount")))
		}, "renderer"),
		b.Subscribe(models.EventTestsFailed, func(ev models.Event) {
			failures, _ := ev.Payload["failedTests"].([]models.TestFailure)
			r.PrintFail(failures)
		}, "renderer"),
		b.Subscribe(models.EventObjectiveComplete, func(ev models.Event) {
			r.printf("  %s %s\n", r.green.Sprint("✓"), r.green.Sprint("objective complete: "+ev.String("objectiveId")))
		}, "renderer"),
		b.Subscribe(models.EventIncidentEscalated, func(ev models.Event) {
			r.printf("  %s\n", r.red.Sprintf("incident escalated to %s, %d users affected", ev.String("severity"), ev.Int("affectedUsers")))
		}, "renderer"),
		b.Subscribe(models.EventScenarioComplete, func(models.Event) {
			r.PrintBanner("Scenario complete")
		}, "renderer"),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// renderMessages prints chat messages not printed yet. An empty list means
// the store was reset, so printing starts over.
func (r *Renderer) renderMessages(messages []models.Message) {
	var fresh []models.Message
	r.mu.Lock()
	if len(messages) == 0 {
		clear(r.printed)
	}
	for _, m := range messages {
		if _, ok := r.printed[m.ID]; ok {
			continue
		}
		r.printed[m.ID] = struct{}{}
		fresh = append(fresh, m)
	}
	r.mu.Unlock()

	for _, m := range fresh {
		r.PrintMessage(m)
	}
}

// PrintBanner prints a section header.
func (r *Renderer) PrintBanner(title string) {
	if r.color {
		r.printf("\n%s\n", r.banner.Sprintf("  %s  ", title))
		return
	}
	r.printf("\n=== %s ===\n", title)
}

// PrintMessage prints one chat message, indenting continuation lines.
func (r *Renderer) PrintMessage(m models.Message) {
	c, ok := r.agents[m.AgentID]
	if !ok {
		c = r.bold
	}
	label := m.AgentRole
	if label == "" {
		label = models.AgentRoleName(m.AgentID)
	}
	header := fmt.Sprintf("[%s] %s", m.Timestamp.Format(timeLayout), c.Sprint(label))
	if m.Type != "" && m.Type != models.MessageResponse && m.Type != models.MessageUser {
		header += " " + r.dim.Sprintf("(%s)", m.Type)
	}

	lines := strings.Split(m.Content, "\n")
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s\n", header, lines[0])
	for _, line := range lines[1:] {
		fmt.Fprintf(&sb, "    %s\n", line)
	}
	r.printf("%s", sb.String())
}

// PrintNarration prints a narration tooltip.
func (r *Renderer) PrintNarration(n models.Narration) {
	var sb strings.Builder
	head := strings.TrimSpace(n.AgentIcon + " " + n.Agent)
	if n.Title != "" {
		head += ": " + n.Title
	}
	fmt.Fprintf(&sb, "\n  %s\n", r.yellow.Sprint(head))
	fmt.Fprintf(&sb, "  %s\n", n.Description)
	if n.Highlight != "" {
		fmt.Fprintf(&sb, "    %s\n", r.dim.Sprint("→ "+n.Highlight))
	}
	sb.WriteString("\n")
	r.printf("%s", sb.String())
}

// PrintPhase prints a scenario phase transition.
func (r *Renderer) PrintPhase(from, to models.Phase) {
	r.printf("  %s %s\n", r.bold.Sprint("●"), r.bold.Sprintf("phase: %s → %s", from, to))
}

// PrintPass prints a passing test run.
func (r *Renderer) PrintPass(detail string) {
	r.printf("    %s %s\n", r.green.Sprint("✓"), r.green.Sprint(detail))
}

// PrintFail prints a failing test run.
func (r *Renderer) PrintFail(failures []models.TestFailure) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "    %s %s\n", r.red.Sprint("✗"), r.red.Sprintf("%d tests failed", len(failures)))
	for _, f := range failures {
		fmt.Fprintf(&sb, "      %s\n", r.dim.Sprintf("%s: %s", f.Test, f.Error))
	}
	r.printf("%s", sb.String())
}

// PrintProgress prints a one-line playback status.
func (r *Renderer) PrintProgress(p timeline.Progress) {
	status := "paused"
	if p.Playing {
		status = "playing"
	}
	r.printf("  %s\n", r.dim.Sprintf("[%s %d/%d %.0f%% speed %.1fx]", status, p.Executed, p.Total, p.Percent, p.Speed))
}

// PrintKeys prints the interactive key bindings.
func (r *Renderer) PrintKeys() {
	r.printf("  %s\n", r.dim.Sprint("keys: s speed up 5x · n next narration · p pause/resume · r restart · q quit · ?<question> ask the code assistant (then Enter)"))
}

// PrintReport prints the end-of-scenario evaluation.
func (r *Renderer) PrintReport(rep report.Report) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  Objectives: %d/%d   Time: %s (%s)   Questions asked: %d\n",
		rep.ObjectivesCompleted, rep.ObjectivesTotal, rep.Duration, rep.TimeScore, rep.QuestionsAsked)
	for _, e := range rep.Agents {
		c, ok := r.agents[e.AgentID]
		if !ok {
			c = r.bold
		}
		fmt.Fprintf(&sb, "\n  %s  %s\n", c.Sprint(e.Role), r.bold.Sprint(e.Rating))
		fmt.Fprintf(&sb, "    %s\n", e.Evaluation)
		for _, s := range e.Strengths {
			fmt.Fprintf(&sb, "    %s %s\n", r.green.Sprint("+"), s)
		}
		for _, a := range e.Areas {
			fmt.Fprintf(&sb, "    %s %s\n", r.yellow.Sprint("-"), a)
		}
	}
	r.PrintBanner("Performance evaluation")
	r.printf("%s", sb.String())
}
