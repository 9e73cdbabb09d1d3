package credentials

import (
	"context"
	"errors"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	apperrors "github.com/cloudconsole/engine/pkg/errors"
)

// SecretsAPI is the subset of the Secrets Manager client the store uses.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerStore reads one JSON secret per account, named <prefix>/<accountID>.
type SecretsManagerStore struct {
	client SecretsAPI
	prefix string
}

var _ Store = (*SecretsManagerStore)(nil)

// NewSecretsManagerStore builds a store from the default AWS config chain.
func NewSecretsManagerStore(ctx context.Context, region, prefix string) (*SecretsManagerStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "load aws config failed")
	}
	return NewSecretsManagerStoreWithClient(secretsmanager.NewFromConfig(cfg), prefix), nil
}

func NewSecretsManagerStoreWithClient(client SecretsAPI, prefix string) *SecretsManagerStore {
	return &SecretsManagerStore{client: client, prefix: prefix}
}

// SecretName returns the secret id for an account.
func (s *SecretsManagerStore) SecretName(accountID string) string {
	if s.prefix == "" {
		return accountID
	}
	return path.Join(s.prefix, accountID)
}

func (s *SecretsManagerStore) Get(ctx context.Context, accountID string) (*Credentials, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.SecretName(accountID)),
	})
	if err != nil {
		var nf *types.ResourceNotFoundException
		if errors.As(err, &nf) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "account %s not found", accountID)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable, "read account secret failed").
			WithMeta("account_id", accountID)
	}

	var raw []byte
	switch {
	case out.SecretString != nil:
		raw = []byte(*out.SecretString)
	case out.SecretBinary != nil:
		raw = out.SecretBinary
	default:
		return nil, apperrors.Newf(apperrors.CodePrecondition, "secret for account %s is empty", accountID)
	}
	return decode(accountID, "", raw)
}
