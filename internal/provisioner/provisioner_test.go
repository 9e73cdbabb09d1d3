package provisioner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloudconsole/engine/internal/credentials"
	"github.com/cloudconsole/engine/internal/provisioner/catalog"
	"github.com/cloudconsole/engine/internal/provisioner/compiler"
	"github.com/cloudconsole/engine/internal/provisioner/terraform"
	"github.com/cloudconsole/engine/internal/provisioner/workspace"
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
echo "$*"
case "$1" in
  workspace)
    if [ "$2" = "select" ] && [ ! -d "terraform.tfstate.d/$3" ]; then echo "workspace $3 does not exist" >&2; exit 1; fi
    mkdir -p "terraform.tfstate.d/$3" ;;
  apply)
    if [ -n "$FAKE_FAIL_APPLY" ]; then echo "Error: creating bucket: AccessDenied" >&2; exit 1; fi
    echo '{"version":4,"serial":1}' > terraform.tfstate ;;
  destroy)
    [ -f terraform.tfstate ] && echo "state present" ;;
  show)
    if [ -n "$FAKE_FAIL_SHOW" ]; then echo "Error: reading state: connection reset" >&2; exit 1; fi
    cat <<'JSON'
{"format_version":"1.0","values":{"root_module":{"child_modules":[{"address":"module.storage","resources":[{"address":"module.storage.aws_s3_bucket.this","mode":"managed","type":"aws_s3_bucket","name":"this","provider_name":"registry.terraform.io/hashicorp/aws","values":{"bucket":"assets"}}]}]}}}
JSON
    ;;
esac
exit 0
`

type fixture struct {
	prov       *TerraformProvisioner
	workspaces *workspace.Manager
	logs       *terraform.LogStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	base := t.TempDir()
	tool := filepath.Join(base, "terraform")
	require.NoError(t, os.WriteFile(tool, []byte(fakeTool), 0o755))
	lib := filepath.Join(base, "modules")
	require.NoError(t, os.MkdirAll(filepath.Join(lib, "aws", "storage"), 0o755))

	ws := workspace.NewManager(filepath.Join(base, "deployments"), workspace.NewDirLibrary(lib, workspace.ModeSymlink), workspace.WithCredentialDir(base))
	logs := terraform.NewLogStore(filepath.Join(base, "logs"))
	return fixture{
		prov:       NewTerraformProvisioner(terraform.NewRunner(tool, 10), ws, logs, time.Minute),
		workspaces: ws,
		logs:       logs,
	}
}

func storageDoc(t *testing.T, provider, region string) *compiler.Document {
	t.Helper()
	doc, err := compiler.Generate([]string{"storage"}, compiler.ModuleConfig{"storage": {"name": "assets"}},
		compiler.AccountContext{Provider: provider, Region: region, ProjectID: "demo"})
	require.NoError(t, err)
	return doc
}

func TestSteps(t *testing.T) {
	gcp, _ := catalog.Lookup("gcp")
	aws, _ := catalog.Lookup("aws")

	steps := ApplySteps(gcp, "gcp-0123456789ab")
	require.Len(t, steps, 3)
	assert.Equal(t, []string{"workspace", "select", "gcp-0123456789ab"}, steps[0].Args)
	assert.Equal(t, []string{"workspace", "new", "gcp-0123456789ab"}, steps[0].Fallback)
	assert.Equal(t, "init", steps[1].Args[0])
	assert.Equal(t, "apply", steps[2].Args[0])

	steps = DestroySteps(aws, "aws-0123456789ab", "module.storage.aws_s3_bucket.this")
	require.Len(t, steps, 2)
	assert.Equal(t, "-target=module.storage.aws_s3_bucket.this", steps[1].Args[len(steps[1].Args)-1])
	assert.Len(t, DestroySteps(aws, "aws-0123456789ab", "")[1].Args, len(destroyArgs))

	assert.Equal(t, filepath.Join("d", "terraform.tfstate.d", "x", "terraform.tfstate"), StatePath(gcp, "d", "x"))
	assert.Equal(t, filepath.Join("d", "terraform.tfstate"), StatePath(aws, "d", "x"))
}

func TestApplyReadsBackResourcesAndState(t *testing.T) {
	f := newFixture(t)
	creds := &credentials.Credentials{Provider: "aws", AccessKeyID: "a", SecretAccessKey: "b"}

	res, err := f.prov.Apply(context.Background(), Request{DeploymentID: "aws-0123456789ab", Document: storageDoc(t, "aws", "us-east-1"), Credentials: creds})
	require.NoError(t, err)
	require.Len(t, res.Resources, 1)
	assert.Equal(t, "module.storage.aws_s3_bucket.this", res.Resources[0].ID)
	assert.JSONEq(t, `{"version":4,"serial":1}`, string(res.State))

	log, err := f.logs.Read("aws-0123456789ab")
	require.NoError(t, err)
	assert.Contains(t, string(log), "apply -auto-approve")
	assert.True(t, f.workspaces.Exists("aws-0123456789ab"))

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(filepath.Dir(f.logs.Path("x"))), "aws-0123456789ab-aws-credentials-*"))
	assert.Empty(t, matches, "credential file must be removed after the run")
}

func TestApplyFailureKeepsWorkspace(t *testing.T) {
	f := newFixture(t)
	t.Setenv("FAKE_FAIL_APPLY", "1")

	_, err := f.prov.Apply(context.Background(), Request{DeploymentID: "aws-0000000000ff", Document: storageDoc(t, "aws", "us-east-1")})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeProvision))
	assert.True(t, f.workspaces.Exists("aws-0000000000ff"))

	tail, err := f.logs.Tail("aws-0000000000ff", 1)
	require.NoError(t, err)
	assert.Equal(t, "Error: creating bucket: AccessDenied", tail)
}

func TestApplySucceedsWhenReadBackFails(t *testing.T) {
	f := newFixture(t)
	t.Setenv("FAKE_FAIL_SHOW", "1")
	creds := &credentials.Credentials{Provider: "aws", AccessKeyID: "a", SecretAccessKey: "b"}

	res, err := f.prov.Apply(context.Background(), Request{DeploymentID: "aws-0000000000ee", Document: storageDoc(t, "aws", "us-east-1"), Credentials: creds})
	require.NoError(t, err)
	assert.Empty(t, res.Resources)
	assert.JSONEq(t, `{"version":4,"serial":1}`, string(res.State))
}

func TestDestroyRestoresSavedState(t *testing.T) {
	f := newFixture(t)

	_, err := f.prov.Destroy(context.Background(), Request{
		DeploymentID: "aws-00000000000a",
		Document:     storageDoc(t, "aws", "us-east-1"),
		State:        []byte(`{"version":4}`),
	})
	require.NoError(t, err)

	log, err := f.logs.Read("aws-00000000000a")
	require.NoError(t, err)
	assert.Contains(t, string(log), "state present")
}

func TestGCPSelectsIsolatedWorkspace(t *testing.T) {
	f := newFixture(t)
	id := "gcp-00000000000b"

	_, err := f.prov.Apply(context.Background(), Request{DeploymentID: id, Document: storageDoc(t, "gcp", "us-central1")})
	require.NoError(t, err)
	_, err = f.prov.Destroy(context.Background(), Request{DeploymentID: id, Document: storageDoc(t, "gcp", "us-central1")})
	require.NoError(t, err)

	log, err := f.logs.Read(id)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(log), "\nworkspace new "+id), "second run must select the existing workspace")
}
