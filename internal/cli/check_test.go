package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kryten.conf")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func executeCheck(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewCheckCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestCheck_ValidFile(t *testing.T) {
	path := writeConfig(t, `# tank farm
TANK:LEVEL 5.0 ~ 205.0 /usr/local/bin/tank_alarm
FLOW:RATE < 0.0 | >= 1.0e4 quit 3
`)

	out, err := executeCheck(t, "text", path)
	require.NoError(t, err)
	assert.Contains(t, out, "PV Name: TANK:LEVEL [1]")
	assert.Contains(t, out, "Matches: ~ 5.000 to 205.000")
	assert.Contains(t, out, "     or: >= 10000.000")
	assert.Contains(t, out, "2 entries, 0 error(s), 0 warning(s)")
}

func TestCheck_ReportsErrors(t *testing.T) {
	path := writeConfig(t, "TANK:LEVEL 5.0 ~ 205.0 /usr/local/bin/tank_alarm\nPUMP:STATE \"Running\"\n")

	out, err := executeCheck(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "configuration has 1 error(s)")
	assert.Contains(t, out, ":2 premature end of line")
	assert.Contains(t, out, "1 entries, 1 error(s), 0 warning(s)")
}

func TestCheck_Inline(t *testing.T) {
	out, err := executeCheck(t, "text", "--monitor", `PUMP:STATE [2] "Running" | "Starting" logger -t kryten %p is %v`)
	require.NoError(t, err)
	assert.Contains(t, out, "PV Name: PUMP:STATE [2]")
	assert.Contains(t, out, "Request: DBF_STRING")
	assert.Contains(t, out, "Command: logger -t kryten %p is %v")
}

func TestCheck_JSON(t *testing.T) {
	path := writeConfig(t, "FLOW:RATE > 100 /usr/bin/flow_alarm\nX 1\n")

	out, err := executeCheck(t, "json", path)
	require.Error(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
		Error  *CLIError   `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)

	assert.Equal(t, 1, resp.Data.Entries)
	assert.Equal(t, 1, resp.Data.Errors)
	require.Len(t, resp.Data.Diagnostics, 1)
	assert.Equal(t, 2, resp.Data.Diagnostics[0].Line)
	assert.Equal(t, "error", resp.Data.Diagnostics[0].Severity)
	require.Len(t, resp.Data.Channels, 1)
	assert.Equal(t, ChannelInfo{
		Name:    "FLOW:RATE",
		Index:   1,
		Request: "DBF_LONG",
		Command: "/usr/bin/flow_alarm",
		Matches: []string{"> 100"},
		Line:    1,
	}, resp.Data.Channels[0])
}

func TestCheck_MissingConfig(t *testing.T) {
	_, err := executeCheck(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing/null configuration file parameter")

	_, err = executeCheck(t, "text", filepath.Join(t.TempDir(), "absent.conf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PV client list creation failed")
}
