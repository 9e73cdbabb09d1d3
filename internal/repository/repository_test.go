package repository

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/cloudconsole/engine/internal/models"
	"github.com/cloudconsole/engine/internal/tracker"
	"github.com/cloudconsole/engine/internal/tracker/trackertest"
	"github.com/cloudconsole/engine/pkg/database"
	apperrors "github.com/cloudconsole/engine/pkg/errors"
	"github.com/cloudconsole/engine/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("error", "json"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(context.Background(), database.Options{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestStatusStoreContract(t *testing.T) {
	trackertest.Run(t, func(t *testing.T) tracker.Store {
		return NewStatusStore(newTestDB(t))
	})
}

func seedDeployment(t *testing.T, repo DeploymentRepository, id, account string, started time.Time) {
	t.Helper()
	modules, _ := json.Marshal([]string{"vpc", "storage"})
	require.NoError(t, repo.Create(context.Background(), &models.Deployment{
		ID:        id,
		AccountID: account,
		Provider:  "aws",
		Region:    "us-east-1",
		Modules:   datatypes.JSON(modules),
		Status:    "deploying",
		StartedAt: started,
	}))
}

func TestDeploymentRepositoryLifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewDeploymentRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	seedDeployment(t, repo, "aws-0000000000a1", "acct-1", now)
	seedDeployment(t, repo, "aws-0000000000a2", "acct-2", now.Add(time.Second))

	resources := []models.Resource{
		{Address: "module.vpc.aws_vpc.this", Name: "main", Type: "aws_vpc", Status: "active"},
		{Address: "module.storage.aws_s3_bucket.this", Name: "logs", Type: "aws_s3_bucket", Status: "active"},
	}
	require.NoError(t, repo.ReplaceResources(ctx, "aws-0000000000a1", resources, []byte(`{"version":4}`)))

	got, err := repo.GetWithResources(ctx, "aws-0000000000a1")
	require.NoError(t, err)
	require.Len(t, got.Resources, 2)
	assert.Equal(t, "module.vpc.aws_vpc.this", got.Resources[0].Address)
	assert.Equal(t, "module.storage.aws_s3_bucket.this", got.Resources[1].Address)
	assert.NotEmpty(t, got.Resources[0].ID)
	assert.JSONEq(t, `{"version":4}`, string(got.TerraformState))

	// replacing drops the previous set
	require.NoError(t, repo.ReplaceResources(ctx, "aws-0000000000a1", resources[:1], nil))
	got, err = repo.GetWithResources(ctx, "aws-0000000000a1")
	require.NoError(t, err)
	require.Len(t, got.Resources, 1)
	assert.JSONEq(t, `{"version":4}`, string(got.TerraformState))

	require.NoError(t, repo.UpdateStatus(ctx, "aws-0000000000a1", "failed", "boom"))
	got, err = repo.GetWithResources(ctx, "aws-0000000000a1")
	require.NoError(t, err)
	assert.Equal(t, "failed", got.Status)
	assert.Equal(t, "boom", got.Error)
	require.NotNil(t, got.CompletedAt)
	completed := *got.CompletedAt

	require.NoError(t, repo.UpdateStatus(ctx, "aws-0000000000a1", "failed", "boom again"))
	got, err = repo.GetWithResources(ctx, "aws-0000000000a1")
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, completed.Equal(*got.CompletedAt), "rewriting the error keeps the completion time")

	second, err := repo.GetWithResources(ctx, "aws-0000000000a2")
	require.NoError(t, err)
	assert.Nil(t, second.CompletedAt)

	byAccount, err := repo.ListByAccount(ctx, "acct-2")
	require.NoError(t, err)
	require.Len(t, byAccount, 1)
	assert.Equal(t, "aws-0000000000a2", byAccount[0].ID)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "aws-0000000000a1", all[0].ID)
}

func TestDeploymentRepositoryDeleteResource(t *testing.T) {
	repo := NewDeploymentRepository(newTestDB(t))
	ctx := context.Background()
	seedDeployment(t, repo, "aws-0000000000b1", "acct-1", time.Now())

	require.NoError(t, repo.ReplaceResources(ctx, "aws-0000000000b1", []models.Resource{
		{Address: "module.storage.aws_s3_bucket.this", Type: "aws_s3_bucket"},
	}, nil))

	err := repo.DeleteResource(ctx, "aws-0000000000b1", "module.vpc.aws_vpc.this", nil)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound), "got %v", err)

	require.NoError(t, repo.DeleteResource(ctx, "aws-0000000000b1", "module.storage.aws_s3_bucket.this", []byte(`{}`)))
	got, err := repo.GetWithResources(ctx, "aws-0000000000b1")
	require.NoError(t, err)
	assert.Empty(t, got.Resources)
}

func TestDeploymentRepositoryPurge(t *testing.T) {
	repo := NewDeploymentRepository(newTestDB(t))
	ctx := context.Background()
	seedDeployment(t, repo, "aws-0000000000c1", "acct-1", time.Now())
	require.NoError(t, repo.ReplaceResources(ctx, "aws-0000000000c1", []models.Resource{{Address: "a.b", Type: "b"}}, nil))

	require.NoError(t, repo.Purge(ctx, "aws-0000000000c1"))

	_, err := repo.GetWithResources(ctx, "aws-0000000000c1")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound), "got %v", err)
	err = repo.Purge(ctx, "aws-0000000000c1")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound), "got %v", err)
}

func TestDeploymentRepositoryNotFound(t *testing.T) {
	repo := NewDeploymentRepository(newTestDB(t))
	var d models.Deployment
	err := repo.GetByID(context.Background(), "gcp-ffffffffffff", &d)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound), "got %v", err)

	err = repo.UpdateStatus(context.Background(), "gcp-ffffffffffff", "failed", "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound), "got %v", err)
}

func TestCloudAccountUpsert(t *testing.T) {
	repo := NewCloudAccountRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &models.CloudAccount{ID: "acct-1", Provider: "aws", Credentials: []byte(`{"access_key_id":"a"}`)}))
	require.NoError(t, repo.Upsert(ctx, &models.CloudAccount{ID: "acct-1", Provider: "aws", Credentials: []byte(`{"access_key_id":"b"}`)}))

	var got models.CloudAccount
	require.NoError(t, repo.GetByID(ctx, "acct-1", &got))
	assert.JSONEq(t, `{"access_key_id":"b"}`, string(got.Credentials))
}
