package output_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/simuwork/internal/app"
	"github.com/dotcommander/simuwork/internal/output"
	"github.com/dotcommander/simuwork/internal/timeline"
)

// encode renders resp the way the CLI does and decodes it back generically.
func encode(t *testing.T, resp output.Response) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, output.PrintWith(output.Config{Writer: &buf}, resp))
	require.True(t, strings.HasSuffix(buf.String(), "}\n"), "one compact line")

	var fields map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fields))
	return fields
}

func TestEnvelopeForProjectErrors(t *testing.T) {
	scriptErr := &timeline.ScriptError{Path: "short.yaml", Index: 1, Field: "time", Reason: "must not be negative"}
	configErr := &app.ConfigError{Source: "environment", Err: errors.New(`SIMUWORK_SPEED: "fast" is not a number`)}

	tests := []struct {
		name        string
		err         error
		wantError   string
		wantCode    string
		wantContext map[string]any
		wantAction  string
	}{
		{
			name:      "plain error carries only the message",
			err:       os.ErrNotExist,
			wantError: "file does not exist",
		},
		{
			name:        "script error",
			err:         scriptErr,
			wantError:   "script short.yaml: action 1: time: must not be negative",
			wantCode:    "INVALID_SCRIPT",
			wantContext: map[string]any{"path": "short.yaml", "index": "1", "field": "time"},
			wantAction:  "simuwork script --format yaml > script.yaml",
		},
		{
			name:        "config error wrapped by a command",
			err:         fmt.Errorf("run: %w", configErr),
			wantError:   `run: config environment: SIMUWORK_SPEED: "fast" is not a number`,
			wantCode:    "INVALID_CONFIG",
			wantContext: map[string]any{"source": "environment"},
			wantAction:  "Fix or remove environment, then run: simuwork config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := encode(t, output.Error(tt.err))

			assert.Equal(t, "v1", fields["schema_version"])
			assert.Equal(t, false, fields["success"])
			assert.Equal(t, tt.wantError, fields["error"])
			assert.NotContains(t, fields, "data")

			if tt.wantCode == "" {
				assert.NotContains(t, fields, "error_code")
				assert.NotContains(t, fields, "error_context")
				assert.NotContains(t, fields, "suggested_action")
				return
			}
			assert.Equal(t, tt.wantCode, fields["error_code"])
			assert.Equal(t, tt.wantContext, fields["error_context"])
			assert.Equal(t, tt.wantAction, fields["suggested_action"])
		})
	}
}

func TestEnvelopeForSuccess(t *testing.T) {
	type validated struct {
		Actions int `json:"actions"`
	}
	fields := encode(t, output.Success(validated{Actions: 35}))

	assert.Equal(t, true, fields["success"])
	assert.Equal(t, map[string]any{"actions": float64(35)}, fields["data"])
	assert.NotContains(t, fields, "error")
}

func TestPrettyJSONSwitch(t *testing.T) {
	for value, pretty := range map[string]bool{"": false, "0": false, "yes": false, "1": true, "true": true} {
		t.Run("value="+value, func(t *testing.T) {
			t.Setenv("SIMUWORK_PRETTY_JSON", value)
			cfg := output.DefaultConfig()
			assert.Equal(t, os.Stdout, cfg.Writer)
			assert.Equal(t, pretty, cfg.Pretty)

			var buf bytes.Buffer
			cfg.Writer = &buf
			require.NoError(t, output.PrintWith(cfg, map[string]int{"actions": 35}))
			assert.Equal(t, pretty, strings.Contains(buf.String(), "\n  \"actions\": 35\n"))
		})
	}
}

func TestPrintErrorWritesToStdout(t *testing.T) {
	t.Setenv("SIMUWORK_PRETTY_JSON", "")

	r, w, err := os.Pipe()
	require.NoError(t, err)
	original := os.Stdout
	os.Stdout = w
	printErr := output.PrintError(&timeline.ScriptError{Path: "x.yaml", Index: -1, Reason: "no actions"})
	os.Stdout = original
	require.NoError(t, printErr)
	require.NoError(t, w.Close())

	b, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	out := string(b)
	assert.Contains(t, out, `"error":"script x.yaml: no actions"`)
	assert.Contains(t, out, `"error_code":"INVALID_SCRIPT"`)
}
