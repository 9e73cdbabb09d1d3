package terraform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/cloudconsole/engine/pkg/errors"
	"github.com/cloudconsole/engine/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("error", "json"); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

const fakeTool = `#!/bin/sh
echo "args: $*"
case "$1" in
  workspace)
    if [ "$2" = "select" ]; then echo "workspace $3 does not exist" >&2; exit 1; fi ;;
  apply)
    echo "creating resources"
    echo "Error: quota exceeded" >&2
    exit 3 ;;
  show)
    echo '{"format_version":"1.0"}'
    exit 0 ;;
  sleep)
    exec sleep 10 ;;
  env)
    echo "auto=$TF_IN_AUTOMATION input=$TF_INPUT secret=$SECRET_X" ;;
esac
exit 0
`

func writeTool(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "terraform")
	require.NoError(t, os.WriteFile(path, []byte(fakeTool), 0o755))
	return path
}

func openLog(t *testing.T, id string) (*LogStore, *LogStream) {
	t.Helper()
	store := NewLogStore(t.TempDir())
	stream, err := store.Open(id)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stream.Close() })
	return store, stream
}

func TestRunSequenceAppendsInOrder(t *testing.T) {
	r := NewRunner(writeTool(t), 5)
	store, stream := openLog(t, "gcp-000000000001")

	err := r.Run(context.Background(), Spec{
		DeploymentID: "gcp-000000000001",
		Dir:          t.TempDir(),
		Steps: []Step{
			{Args: []string{"workspace", "select", "gcp-000000000001"}, Fallback: []string{"workspace", "new", "gcp-000000000001"}},
			{Args: []string{"init", "-input=false"}},
		},
		Log: stream,
	})
	require.NoError(t, err)

	out, err := store.Read("gcp-000000000001")
	require.NoError(t, err)
	log := string(out)
	sel := strings.Index(log, "==> "+r.Binary()+" workspace select")
	nw := strings.Index(log, "==> "+r.Binary()+" workspace new")
	ini := strings.Index(log, "args: init -input=false")
	require.True(t, sel >= 0 && nw > sel && ini > nw, "unexpected log:\n%s", log)
	assert.Contains(t, log, "workspace gcp-000000000001 does not exist")
}

func TestRunFailureCarriesExitCodeAndTail(t *testing.T) {
	r := NewRunner(writeTool(t), 2)
	store, stream := openLog(t, "aws-000000000001")

	err := r.Run(context.Background(), Spec{
		DeploymentID: "aws-000000000001",
		Dir:          t.TempDir(),
		Steps:        []Step{{Args: []string{"init"}}, {Args: []string{"apply", "-auto-approve"}}, {Args: []string{"never"}}},
		Log:          stream,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeProvision))

	var pf *ProvisionFailure
	require.True(t, errors.As(err, &pf))
	assert.Equal(t, 3, pf.ExitCode)
	assert.Equal(t, "creating resources\nError: quota exceeded", pf.Tail)

	out, err := store.Read("aws-000000000001")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(out), "Error: quota exceeded\n"))
	assert.NotContains(t, string(out), "args: never")
}

func TestRunPassesEnvironmentOverlay(t *testing.T) {
	r := NewRunner(writeTool(t), 5)
	store, stream := openLog(t, "aws-000000000002")

	require.NoError(t, r.Run(context.Background(), Spec{
		DeploymentID: "aws-000000000002",
		Dir:          t.TempDir(),
		Env:          map[string]string{"SECRET_X": "hunter2"},
		Steps:        []Step{{Args: []string{"env"}}},
		Log:          stream,
	}))

	tail, err := store.Tail("aws-000000000002", 1)
	require.NoError(t, err)
	assert.Equal(t, "auto=1 input=0 secret=hunter2", tail)
}

func TestSpawnErrorHasNegativeExitCode(t *testing.T) {
	r := NewRunner(filepath.Join(t.TempDir(), "missing"), 5)
	err := r.Run(context.Background(), Spec{DeploymentID: "aws-000000000003", Dir: t.TempDir(), Steps: []Step{{Args: []string{"init"}}}})

	var pf *ProvisionFailure
	require.True(t, errors.As(err, &pf))
	assert.Equal(t, -1, pf.ExitCode)
}

func TestTaskCancel(t *testing.T) {
	r := NewRunner(writeTool(t), 5)
	task := r.Start(context.Background(), Spec{DeploymentID: "aws-000000000004", Dir: t.TempDir(), Steps: []Step{{Args: []string{"sleep"}}}})

	assert.Nil(t, task.Err())
	task.Cancel()

	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("task did not stop after cancel")
	}
	require.Error(t, task.Wait())
	assert.ErrorIs(t, task.Err(), context.Canceled)
}

func TestOutputCapturesStdout(t *testing.T) {
	r := NewRunner(writeTool(t), 5)
	_, stream := openLog(t, "aws-000000000005")

	out, err := r.Output(context.Background(), Spec{DeploymentID: "aws-000000000005", Dir: t.TempDir(), Log: stream}, "show", "-json")
	require.NoError(t, err)
	assert.Contains(t, string(out), `"format_version":"1.0"`)
}

func TestLogStore(t *testing.T) {
	store := NewLogStore(filepath.Join(t.TempDir(), "logs"))

	_, err := store.Read("missing")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
	assert.False(t, store.Exists("missing"))
	require.NoError(t, store.Remove("missing"))

	s, err := store.Open("d1")
	require.NoError(t, err)
	s.Printf("one")
	_, _ = s.Write([]byte("two\nthree\n"))
	require.NoError(t, s.Close())

	s, err = store.Open("d1")
	require.NoError(t, err)
	s.Printf("four\n")
	require.NoError(t, s.Close())

	tail, err := store.Tail("d1", 2)
	require.NoError(t, err)
	assert.Equal(t, "three\nfour", tail)

	chunk, off, err := store.ReadFrom("d1", 4)
	require.NoError(t, err)
	assert.Equal(t, "two\nthree\nfour\n", string(chunk))
	assert.EqualValues(t, 19, off)

	require.NoError(t, store.Remove("d1"))
	assert.False(t, store.Exists("d1"))
}

func TestTailBuffer(t *testing.T) {
	tb := newTailBuffer(2)
	_, _ = tb.Write([]byte("a\nb\nc"))
	assert.Equal(t, "b\nc", tb.String())
	_, _ = tb.Write([]byte("d\n"))
	assert.Equal(t, "b\ncd", tb.String())
	assert.Equal(t, "b\nc", lastLines([]byte("a\nb\nc\n"), 2))
	assert.Equal(t, "a", lastLines([]byte("a"), 5))
}

func TestPreflight(t *testing.T) {
	_, err := Preflight(context.Background(), t.TempDir(), filepath.Join(t.TempDir(), "nope"))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnavailable))

	tool := filepath.Join(t.TempDir(), "terraform")
	script := "#!/bin/sh\necho '{\"terraform_version\":\"1.7.5\",\"platform\":\"linux_amd64\",\"provider_selections\":{},\"terraform_outdated\":false}'\n"
	require.NoError(t, os.WriteFile(tool, []byte(script), 0o755))

	v, err := Preflight(context.Background(), filepath.Join(t.TempDir(), "work"), tool)
	require.NoError(t, err)
	assert.Equal(t, "1.7.5", v)
}
