package cli_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/lvot/config"
	"github.com/katalvlaran/lvot/internal/cli"
	"github.com/katalvlaran/lvot/solver"
)

// execute runs the root command with args and returns stdout and the log.
func execute(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	c := cli.New(&logs, cli.LogInfo)
	root := c.RootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)

	return out.String(), logs.String(), err
}

func TestSolveLinear(t *testing.T) {
	out, logs, err := execute(t, context.Background(), "solve", "--n", "20", "--m", "15", "--dims", "2", "--seed", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "lvot solve")
	assert.Contains(t, out, "linear")
	assert.Contains(t, out, "full")
	assert.Contains(t, out, "20x15")
	assert.Contains(t, logs, "solve finished")
	assert.Contains(t, logs, "Solved")
}

func TestSolveLowRankAndFused(t *testing.T) {
	out, _, err := execute(t, context.Background(), "solve", "--n", "16", "--m", "12", "--rank", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "16x12")
	assert.Regexp(t, `rank\s+3`, out)

	out, _, err = execute(t, context.Background(), "solve", "--family", "fused", "--alpha", "0.3", "--n", "10", "--m", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "fused")
}

func TestSolveFromConfig(t *testing.T) {
	f := config.Default()
	f.Solver.Family = "quadratic"
	f.Gromov.OuterIterations = 5
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf, config.FormatYAML))
	path := filepath.Join(t.TempDir(), "lvot.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	out, _, err := execute(t, context.Background(), "solve", "-c", path, "--n", "10", "--m", "9")
	require.NoError(t, err)
	assert.Contains(t, out, "quadratic")

	// flags win over the file
	out, _, err = execute(t, context.Background(), "solve", "-c", path, "--family", "linear", "--n", "10", "--m", "9")
	require.NoError(t, err)
	assert.Contains(t, out, "linear")
}

func TestSolveErrors(t *testing.T) {
	_, _, err := execute(t, context.Background(), "solve", "--family", "cubic")
	require.ErrorIs(t, err, solver.ErrUnknownFamily)

	_, _, err = execute(t, context.Background(), "solve", "--rank", "0")
	require.ErrorIs(t, err, solver.ErrInvalidRank)

	_, _, err = execute(t, context.Background(), "solve", "--n", "0")
	require.Error(t, err)

	_, _, err = execute(t, context.Background(), "solve", "-c", "lvot.ini")
	require.ErrorIs(t, err, config.ErrUnknownFormat)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = execute(t, ctx, "solve", "--n", "5", "--m", "5")
	require.ErrorIs(t, err, context.Canceled)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lvot.toml")

	out, _, err := execute(t, context.Background(), "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	f, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), f)

	_, _, err = execute(t, context.Background(), "config", "init", path)
	require.Error(t, err)
	_, _, err = execute(t, context.Background(), "config", "init", "--force", path)
	require.NoError(t, err)
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, context.Background(), "version")
	require.NoError(t, err)
	assert.Equal(t, "lvot "+cli.Version+"\n", out)
}
