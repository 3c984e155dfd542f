package state

import "github.com/dotcommander/simuwork/internal/models"

// Snapshot is a read-only view of the state tree. Snapshots returned by
// Store.State are independent deep copies.
type Snapshot map[string]any

// Get walks path through nested maps and returns the value found, or nil.
func (s Snapshot) Get(path ...string) any {
	var cur any = map[string]any(s)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

// Section returns a top-level section.
func (s Snapshot) Section(name string) map[string]any {
	m, _ := s[name].(map[string]any)
	return m
}

func (s Snapshot) String(path ...string) string {
	v, _ := s.Get(path...).(string)
	return v
}

func (s Snapshot) Bool(path ...string) bool {
	v, _ := s.Get(path...).(bool)
	return v
}

func (s Snapshot) Int(path ...string) int {
	return toInt(s.Get(path...))
}

func (s Snapshot) Float(path ...string) float64 {
	return toFloat(s.Get(path...))
}

// Phase returns scenario.phase.
func (s Snapshot) Phase() models.Phase {
	return models.Phase(s.String(SectionScenario, "phase"))
}

// Messages returns ui.messages, oldest first.
func (s Snapshot) Messages() []models.Message {
	v, _ := s.Get(SectionUI, "messages").([]models.Message)
	return v
}

// Objectives returns scenario.objectives in order.
func (s Snapshot) Objectives() []models.Objective {
	v, _ := s.Get(SectionScenario, "objectives").([]models.Objective)
	return v
}

// UserActions returns scenario.userActions.
func (s Snapshot) UserActions() []models.UserAction {
	v, _ := s.Get(SectionScenario, "userActions").([]models.UserAction)
	return v
}

// Code returns the current code-editor buffer.
func (s Snapshot) Code() string {
	return s.String(SectionUI, "codeEditorContent")
}

// TimeElapsed returns scenario.timeElapsed in seconds.
func (s Snapshot) TimeElapsed() int {
	return s.Int(SectionScenario, "timeElapsed")
}

// Agent returns the record for agentID, or nil.
func (s Snapshot) Agent(agentID string) map[string]any {
	v, _ := s.Get(SectionAgents, agentID).(map[string]any)
	return v
}

// Relationship returns the relationship score of agentID.
func (s Snapshot) Relationship(agentID string) int {
	return s.Int(SectionAgents, agentID, "relationship")
}

// Skill returns user.skillLevels[name].
func (s Snapshot) Skill(name string) float64 {
	return s.Float(SectionUser, "skillLevels", name)
}

// CompletedObjectives counts completed objectives.
func (s Snapshot) CompletedObjectives() int {
	n := 0
	for _, o := range s.Objectives() {
		if o.Completed {
			n++
		}
	}
	return n
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
