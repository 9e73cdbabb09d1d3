// Package credentials resolves decrypted provider credentials by account id.
package credentials

import (
	"context"
	"sort"

	"github.com/cloudconsole/engine/internal/provisioner/catalog"
	apperrors "github.com/cloudconsole/engine/pkg/errors"
)

// Credentials is the decrypted material for one cloud account.
type Credentials struct {
	AccountID string `json:"account_id"`
	Provider  string `json:"provider"`

	// aws
	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`
	SessionToken    string `json:"session_token,omitempty"`

	// azure
	SubscriptionID string `json:"subscription_id,omitempty"`
	TenantID       string `json:"tenant_id,omitempty"`
	ClientID       string `json:"client_id,omitempty"`
	ClientSecret   string `json:"client_secret,omitempty"`

	// gcp
	ProjectID   string `json:"project_id,omitempty"`
	ClientEmail string `json:"client_email,omitempty"`
	PrivateKey  string `json:"private_key,omitempty"`
}

// Store fetches credentials. Implementations return a not_found AppError for unknown accounts.
type Store interface {
	Get(ctx context.Context, accountID string) (*Credentials, error)
}

// Field returns the value of a named credential field.
func (c *Credentials) Field(name string) string {
	switch name {
	case "access_key_id":
		return c.AccessKeyID
	case "secret_access_key":
		return c.SecretAccessKey
	case "session_token":
		return c.SessionToken
	case "subscription_id":
		return c.SubscriptionID
	case "tenant_id":
		return c.TenantID
	case "client_id":
		return c.ClientID
	case "client_secret":
		return c.ClientSecret
	case "project_id":
		return c.ProjectID
	case "client_email":
		return c.ClientEmail
	case "private_key":
		return c.PrivateKey
	}
	return ""
}

// Validate checks that every field the provider requires is present.
func (c *Credentials) Validate() error {
	spec, err := catalog.Lookup(c.Provider)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodePrecondition, "account has an unsupported provider").
			WithMeta("account_id", c.AccountID)
	}
	var missing []string
	for _, f := range spec.CredentialFields {
		if c.Field(f) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return apperrors.Newf(apperrors.CodePrecondition, "credentials for account %s are incomplete", c.AccountID).
			WithMeta("account_id", c.AccountID).
			WithMeta("missing", missing)
	}
	return nil
}

// Redacted returns a copy safe to log.
func (c *Credentials) Redacted() Credentials {
	r := *c
	for _, s := range []*string{&r.SecretAccessKey, &r.SessionToken, &r.ClientSecret, &r.PrivateKey} {
		if *s != "" {
			*s = "REDACTED"
		}
	}
	return r
}
