package credentials

import (
	"context"
	"encoding/json"

	"github.com/cloudconsole/engine/internal/models"
	"github.com/cloudconsole/engine/internal/repository"
	apperrors "github.com/cloudconsole/engine/pkg/errors"
)

// DBStore reads credentials from the cloud_accounts table. The stored blob is the
// decrypted JSON document produced by the account service.
type DBStore struct {
	accounts repository.CloudAccountRepository
}

var _ Store = (*DBStore)(nil)

func NewDBStore(accounts repository.CloudAccountRepository) *DBStore {
	return &DBStore{accounts: accounts}
}

func (s *DBStore) Get(ctx context.Context, accountID string) (*Credentials, error) {
	var acct models.CloudAccount
	if err := s.accounts.GetByID(ctx, accountID, &acct); err != nil {
		if apperrors.IsCode(err, apperrors.CodeNotFound) {
			return nil, apperrors.Newf(apperrors.CodeNotFound, "account %s not found", accountID)
		}
		return nil, err
	}
	return decode(accountID, acct.Provider, acct.Credentials)
}

func decode(accountID, provider string, raw []byte) (*Credentials, error) {
	var c Credentials
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePrecondition, "account credentials are not readable").
			WithMeta("account_id", accountID)
	}
	c.AccountID = accountID
	if provider != "" {
		c.Provider = provider
	}
	return &c, nil
}
