package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestValidate_OK(t *testing.T) {
	out, err := execute(t, "validate", "testdata/addition.cue")
	require.NoError(t, err)

	assert.Contains(t, out, "ok   testdata/addition.cue (addition, 0 handlers)")
	assert.Contains(t, out, "1 programs ok")
}

func TestValidate_ReportsCompileError(t *testing.T) {
	out, err := execute(t, "validate", "testdata/broken.cue", "testdata/addition.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "FAIL testdata/broken.cue")
	assert.Contains(t, out, `unknown op "teleport"`)
	assert.Contains(t, out, "1 of 2 programs failed")
}

func TestValidate_JSON(t *testing.T) {
	out, err := execute(t, "validate", "testdata/addition.cue", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string             `json:"status"`
		Data   []ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.True(t, resp.Data[0].Valid)
	assert.Equal(t, "addition", resp.Data[0].Name)
}

func TestRun_Halts(t *testing.T) {
	out, err := execute(t, "run", "testdata/addition.cue")
	require.NoError(t, err)

	assert.Contains(t, out, "terminus:      halted")
	assert.Contains(t, out, "result:        5")
	assert.Contains(t, out, "gas remaining: 18")
}

func TestRun_TrapFailsWithCode(t *testing.T) {
	out, err := execute(t, "run", "testdata/divzero.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "terminus:      trapped (TYPE_MISMATCH)")
}

func TestRun_CompileErrorIsCommandError(t *testing.T) {
	_, err := execute(t, "run", "testdata/broken.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_ArchiveAndInspect(t *testing.T) {
	db := filepath.Join(t.TempDir(), "traces.db")

	out, err := execute(t, "run", "testdata/addition.cue", "--db", db, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   RunDoc `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Archived)
	require.Len(t, resp.Data.TraceHash, 64)

	listOut, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, listOut, "1 trace(s)")
	assert.Contains(t, listOut, resp.Data.TraceHash[:8])

	showOut, err := execute(t, "trace", resp.Data.TraceHash, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, showOut, "terminus:      halted")
	assert.Contains(t, showOut, "result:        5")
	assert.Contains(t, showOut, resp.Data.TraceHash)
}

func TestTrace_NotFound(t *testing.T) {
	db := filepath.Join(t.TempDir(), "traces.db")

	_, err := execute(t, "run", "testdata/addition.cue", "--db", db)
	require.NoError(t, err)

	missing := strings.Repeat("ab", 32)
	_, err = execute(t, "trace", missing, "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestReplay_VerifiesArchive(t *testing.T) {
	db := filepath.Join(t.TempDir(), "traces.db")

	_, err := execute(t, "run", "testdata/addition.cue", "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "replay", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "1 trace(s) verified")
}

func TestReplay_ReexecutesProgram(t *testing.T) {
	db := filepath.Join(t.TempDir(), "traces.db")

	_, err := execute(t, "run", "testdata/addition.cue", "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "replay", "testdata/addition.cue", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "addition (halted)")
}

func TestReplay_MissingFromArchiveFails(t *testing.T) {
	db := filepath.Join(t.TempDir(), "traces.db")

	// Archive one program, replay a different one.
	_, err := execute(t, "run", "testdata/addition.cue", "--db", db)
	require.NoError(t, err)

	out, err := execute(t, "replay", "testdata/divzero.cue", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "not found in archive")
}

func TestReplay_EmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "traces.db")

	out, err := execute(t, "replay", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No traces archived.")
}

func TestTest_RunsScenario(t *testing.T) {
	out, err := execute(t, "test", "testdata/addition.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "ok   addition (1 run(s), halted)")
	assert.Contains(t, out, "1 scenario(s) passed")
}

func TestTest_FailingExpectation(t *testing.T) {
	dir := t.TempDir()
	program := filepath.Join(dir, "addition.cue")
	data, err := os.ReadFile("testdata/addition.cue")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(program, data, 0o644))

	scenario := filepath.Join(dir, "wrong.yaml")
	require.NoError(t, os.WriteFile(scenario, []byte(`name: wrong
program: addition.cue
expect:
  terminus: halted
  result: {int: 6}
`), 0o644))

	out, err := execute(t, "test", scenario)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL wrong")
	assert.Contains(t, out, "expect.result")
}

func TestRootCommand_RejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "validate", "testdata/addition.cue", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
