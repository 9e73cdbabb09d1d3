package credentials_test

import (
	"context"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/cloudconsole/engine/internal/credentials"
	"github.com/cloudconsole/engine/internal/models"
	"github.com/cloudconsole/engine/internal/repository"
	"github.com/cloudconsole/engine/pkg/database"
	apperrors "github.com/cloudconsole/engine/pkg/errors"
	"github.com/cloudconsole/engine/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("error", "json"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestValidate(t *testing.T) {
	c := &credentials.Credentials{AccountID: "a1", Provider: "aws", AccessKeyID: "AKIA"}
	err := c.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodePrecondition))

	var ae *apperrors.AppError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, []string{"secret_access_key"}, ae.Meta["missing"])

	c.SecretAccessKey = "s3cr3t"
	assert.NoError(t, c.Validate())

	bad := &credentials.Credentials{AccountID: "a2", Provider: "oracle"}
	assert.True(t, apperrors.IsCode(bad.Validate(), apperrors.CodePrecondition))
}

func TestRedacted(t *testing.T) {
	c := &credentials.Credentials{Provider: "gcp", ProjectID: "p", ClientEmail: "sa@p.iam", PrivateKey: "-----BEGIN"}
	r := c.Redacted()
	assert.Equal(t, "REDACTED", r.PrivateKey)
	assert.Equal(t, "sa@p.iam", r.ClientEmail)
	assert.Equal(t, "-----BEGIN", c.PrivateKey)
}

func TestDBStore(t *testing.T) {
	db, err := database.Open(context.Background(), database.Options{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))

	accounts := repository.NewCloudAccountRepository(db)
	require.NoError(t, accounts.Upsert(context.Background(), &models.CloudAccount{
		ID:          "acct-az",
		Provider:    "azure",
		Credentials: []byte(`{"subscription_id":"sub","tenant_id":"ten","client_id":"cid","client_secret":"sec"}`),
	}))
	require.NoError(t, accounts.Upsert(context.Background(), &models.CloudAccount{
		ID: "acct-broken", Provider: "aws", Credentials: []byte(`not json`),
	}))

	store := credentials.NewDBStore(accounts)

	c, err := store.Get(context.Background(), "acct-az")
	require.NoError(t, err)
	assert.Equal(t, "acct-az", c.AccountID)
	assert.Equal(t, "azure", c.Provider)
	assert.Equal(t, "sub", c.SubscriptionID)
	assert.NoError(t, c.Validate())

	_, err = store.Get(context.Background(), "acct-missing")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound), "got %v", err)

	_, err = store.Get(context.Background(), "acct-broken")
	assert.True(t, apperrors.IsCode(err, apperrors.CodePrecondition), "got %v", err)
}

type secretsMock struct {
	mock.Mock
}

func (m *secretsMock) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	args := m.Called(ctx, aws.ToString(in.SecretId))
	out, _ := args.Get(0).(*secretsmanager.GetSecretValueOutput)
	return out, args.Error(1)
}

func TestSecretsManagerStore(t *testing.T) {
	api := &secretsMock{}
	api.On("GetSecretValue", mock.Anything, "cloud-console/accounts/acct-gcp").Return(&secretsmanager.GetSecretValueOutput{
		SecretString: aws.String(`{"provider":"gcp","project_id":"proj","client_email":"sa@proj.iam.gserviceaccount.com","private_key":"pk"}`),
	}, nil)
	api.On("GetSecretValue", mock.Anything, "cloud-console/accounts/acct-none").Return(nil, &types.ResourceNotFoundException{Message: aws.String("nope")})

	store := credentials.NewSecretsManagerStoreWithClient(api, "cloud-console/accounts")

	c, err := store.Get(context.Background(), "acct-gcp")
	require.NoError(t, err)
	assert.Equal(t, "acct-gcp", c.AccountID)
	assert.Equal(t, "gcp", c.Provider)
	assert.Equal(t, "proj", c.ProjectID)

	_, err = store.Get(context.Background(), "acct-none")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound), "got %v", err)

	api.AssertExpectations(t)
}
