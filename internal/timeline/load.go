package timeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dotcommander/simuwork/internal/models"
)

// ErrInvalidScript is matched by every *ScriptError.
var ErrInvalidScript = errors.New("invalid script")

// ScriptError describes the first problem found in a script file.
type ScriptError struct {
	Path   string
	Index  int
	Field  string
	Reason string
}

func (e *ScriptError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("script %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("script %s: action %d: %s: %s", e.Path, e.Index, e.Field, e.Reason)
}
func (e *ScriptError) ErrorCode() string { return "INVALID_SCRIPT" }
func (e *ScriptError) Context() map[string]string {
	return map[string]string{
		"path":  e.Path,
		"index": fmt.Sprint(e.Index),
		"field": e.Field,
	}
}
func (e *ScriptError) SuggestedAction() string {
	return "simuwork script --format yaml > script.yaml"
}
func (e *ScriptError) Is(target error) bool { return target == ErrInvalidScript }

func (e *ScriptError) SlogAttrs() []any {
	return []any{
		"script_path", e.Path,
		"action_index", e.Index,
		"field", e.Field,
	}
}

var _ models.RecoverableError = (*ScriptError)(nil)

// Format is a script serialization format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat accepts "yaml", "yml" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown script format %q (valid: yaml, json)", s)
}

type scriptFile struct {
	Actions []models.ScriptAction `json:"actions" yaml:"actions"`
}

// LoadScript reads and validates a script file. The format follows the file
// extension; anything but .json is read as YAML.
func LoadScript(path string) ([]models.ScriptAction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", path, err)
	}

	format := FormatYAML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = FormatJSON
	}
	return ParseScript(path, data, format)
}

// ParseScript decodes and validates script data. name is only used in
// errors.
func ParseScript(name string, data []byte, format Format) ([]models.ScriptAction, error) {
	var file scriptFile
	var err error
	if format == FormatJSON {
		err = json.Unmarshal(data, &file)
	} else {
		err = yaml.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, &ScriptError{Path: name, Index: -1, Reason: err.Error()}
	}
	if err := Validate(name, file.Actions); err != nil {
		return nil, err
	}
	return file.Actions, nil
}

// Validate checks that actions are known, time-ordered and carry the fields
// their type needs.
func Validate(name string, actions []models.ScriptAction) error {
	if len(actions) == 0 {
		return &ScriptError{Path: name, Index: -1, Reason: "script has no actions"}
	}
	fail := func(i int, field, reason string) error {
		return &ScriptError{Path: name, Index: i, Field: field, Reason: reason}
	}

	prev := 0.0
	for i, a := range actions {
		if !a.Type.IsValid() {
			return fail(i, "type", fmt.Sprintf("unknown action type %q", a.Type))
		}
		if a.Time < 0 {
			return fail(i, "time", "must not be negative")
		}
		if a.Time < prev {
			return fail(i, "time", fmt.Sprintf("%.2fs is before the previous action at %.2fs", a.Time, prev))
		}
		prev = a.Time

		switch a.Type {
		case models.ActionShowNarration:
			if a.Narration == nil || a.Narration.Description == "" {
				return fail(i, "narration", "show_narration needs a narration with a description")
			}
		case models.ActionUserMessage:
			if a.Content == "" {
				return fail(i, "content", "user_message needs content")
			}
		case models.ActionAgentMessage:
			if a.AgentID == "" {
				return fail(i, "agent_id", "agent_message needs an agent_id")
			}
			if a.Trigger == "" && a.Message == "" {
				return fail(i, "message", "agent_message needs a trigger or a message")
			}
		case models.ActionCodeChange:
			if a.Code == "" {
				return fail(i, "code", "code_change needs code")
			}
		case models.ActionUserDecisionAuto:
			if a.DecisionID == "" || a.Choice == "" {
				return fail(i, "decision_id", "user_decision_auto needs decision_id and choice")
			}
		}
	}
	return nil
}

// WriteScript serializes actions in format.
func WriteScript(w io.Writer, actions []models.ScriptAction, format Format) error {
	file := scriptFile{Actions: actions}
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(file)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return err
	}
	return enc.Close()
}
