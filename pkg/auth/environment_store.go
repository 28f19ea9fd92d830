package auth

import (
	"os"
	"strings"
	"time"
)

// KeyedProviders are the providers that accept an API key
var KeyedProviders = []string{"pixabay", "unsplash"}

// EnvironmentStore reads IMGSCRAPER_<PROVIDER>_KEY variables. It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// EnvVar returns the variable holding a provider's key
func EnvVar(provider string) string {
	name := strings.ToUpper(strings.ReplaceAll(provider, "-", "_"))
	return "IMGSCRAPER_" + name + "_KEY"
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve gets a key from the environment
func (e *EnvironmentStore) Retrieve(provider string) (*Credential, error) {
	if provider == "" {
		return nil, ErrInvalidCredentials
	}
	key := os.Getenv(EnvVar(provider))
	if key == "" {
		return nil, ErrCredentialsNotFound
	}
	return &Credential{Provider: provider, APIKey: key, LastModified: time.Now()}, nil
}

// List returns the keyed providers that have a variable set
func (e *EnvironmentStore) List() ([]*Credential, error) {
	var creds []*Credential
	for _, provider := range KeyedProviders {
		if cred, err := e.Retrieve(provider); err == nil {
			creds = append(creds, cred)
		}
	}
	return creds, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(provider string) error {
	return ErrStoreUnavailable
}

// Exists checks if the provider's variable is set
func (e *EnvironmentStore) Exists(provider string) bool {
	return os.Getenv(EnvVar(provider)) != ""
}
