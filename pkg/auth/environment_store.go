package auth

import (
	"os"
	"time"
)

const (
	// EnvRefreshToken supplies a refresh token without any stored credentials
	EnvRefreshToken = "PHOTOSYNC_REFRESH_TOKEN"
	// EnvAccount names the environment account; it defaults to "default"
	EnvAccount = "PHOTOSYNC_ACCOUNT"
)

// EnvironmentStore is a read-only CredentialStore backed by environment variables
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account. An empty name matches it, as
// does the name in PHOTOSYNC_ACCOUNT.
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	token := os.Getenv(EnvRefreshToken)
	if token == "" {
		return nil, ErrCredentialsNotFound
	}

	envName := e.name()
	if name != "" && name != envName {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Name:         envName,
		RefreshToken: token,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if the environment supplies one
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist for name
func (e *EnvironmentStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}

func (e *EnvironmentStore) name() string {
	if n := os.Getenv(EnvAccount); n != "" {
		return n
	}
	return "default"
}
