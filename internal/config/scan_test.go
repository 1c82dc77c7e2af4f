package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestScan_SkipsCommentsAndBlankLines(t *testing.T) {
	text := `
# tank monitoring
   # indented comment

TANK:LEVEL 5.0 ~ 205.0 /bin/echo
PUMP:STATE "Running" notify %p %v
`
	res, err := Scan(strings.NewReader(text), "tanks.cfg", nil)
	require.NoError(t, err)
	assert.Empty(t, res.Diagnostics)
	require.Len(t, res.Entries, 2)

	assert.Equal(t, "TANK:LEVEL", res.Entries[0].Name)
	assert.Equal(t, "tanks.cfg", res.Entries[0].Source)
	assert.Equal(t, 5, res.Entries[0].Line)
	assert.Equal(t, "PUMP:STATE", res.Entries[1].Name)
	assert.Equal(t, 6, res.Entries[1].Line)
}

func TestScan_SubLines(t *testing.T) {
	res, err := ScanString("A 1 run;B 2 run ; ;C 3 run", nil)
	require.NoError(t, err)
	assert.Empty(t, res.Diagnostics)

	require.Len(t, res.Entries, 3)
	for i, name := range []string{"A", "B", "C"} {
		assert.Equal(t, name, res.Entries[i].Name)
		assert.Equal(t, InlineSource, res.Entries[i].Source)
		assert.Equal(t, 1, res.Entries[i].Line)
	}
	assert.Equal(t, "run", res.Entries[1].Command)
}

func TestScan_BadLineIsSkipped(t *testing.T) {
	var logs bytes.Buffer
	text := "GOOD 1 run\nBAD [0] 1 run\nALSO:GOOD 2 run\n"

	res, err := Scan(strings.NewReader(text), "x.cfg", testLogger(&logs))
	require.NoError(t, err)

	require.Len(t, res.Entries, 2)
	assert.Equal(t, "GOOD", res.Entries[0].Name)
	assert.Equal(t, "ALSO:GOOD", res.Entries[1].Name)

	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, SeverityError, d.Severity)
	assert.Equal(t, 2, d.Line)
	assert.Equal(t, "invalid PV index: 0", d.Message)
	assert.Equal(t, "x.cfg:2 invalid PV index: 0", d.Error())
	assert.Equal(t, 1, res.Errors())

	assert.Contains(t, logs.String(), "level=ERROR")
	assert.Contains(t, logs.String(), "line=2")
}

func TestScan_WarningsKeepEntry(t *testing.T) {
	var logs bytes.Buffer
	res, err := Scan(strings.NewReader(`X 1.0 | "a" run`), "w.cfg", testLogger(&logs))
	require.NoError(t, err)

	require.Len(t, res.Entries, 1)
	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, SeverityWarning, d.Severity)
	assert.Equal(t, "w.cfg:1 warning: the value of sub-match 2 is string, expecting floating.", d.Error())
	assert.Equal(t, 0, res.Errors())
	assert.Contains(t, logs.String(), "level=WARN")
}

func TestScan_LongLine(t *testing.T) {
	line := "PV 1 run " + strings.Repeat("a ", MaxLineLength)
	res, err := ScanString(line, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, "line exceeds 255 characters", res.Diagnostics[0].Message)
}

func TestScan_CRLFAndMissingFinalNewline(t *testing.T) {
	res, err := ScanString("A 1 run\r\nB 2 run", nil)
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "run", res.Entries[0].Command)
	assert.Equal(t, 2, res.Entries[1].Line)
}

func TestScanFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kryten.cfg")
	require.NoError(t, os.WriteFile(path, []byte("FLOW:RATE < 0 | > 1.0e4 quit 3\n"), 0o644))

	res, err := ScanFile(path, nil)
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, path, res.Entries[0].Source)
	assert.Equal(t, "quit 3", res.Entries[0].Command)
	assert.Equal(t, 2, res.Entries[0].Rules.Len())
}

func TestScanFile_Missing(t *testing.T) {
	_, err := ScanFile(filepath.Join(t.TempDir(), "nope.cfg"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResult_Merge(t *testing.T) {
	a, err := ScanString("A 1 run", nil)
	require.NoError(t, err)
	b, err := Scan(strings.NewReader("B [0] 1 run\nC 2 run"), "f.cfg", nil)
	require.NoError(t, err)

	a.Merge(b)
	assert.Len(t, a.Entries, 2)
	assert.Len(t, a.Diagnostics, 1)
	assert.Equal(t, 1, a.Errors())
}
