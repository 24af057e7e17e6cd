package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "gpbackup"
	keyringUser    = "google-photos"
)

// KeyringStore implements CredentialStore using the system keychain
type KeyringStore struct {
	user string
}

// NewKeyringStore creates a keyring-backed store after checking the keychain is reachable
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "availability_probe"
	if err := keyring.Set(keyringService, testKey, "probe"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{user: keyringUser}, nil
}

func (k *KeyringStore) Name() string {
	return "keyring:" + keyringService
}

// Load reads the credential from the system keychain
func (k *KeyringStore) Load() (*Credential, error) {
	data, err := keyring.Get(keyringService, k.user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}
	return &cred, nil
}

// Save writes the credential to the system keychain
func (k *KeyringStore) Save(cred *Credential) error {
	if err := cred.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	if err := keyring.Set(keyringService, k.user, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

// Delete removes the credential from the system keychain
func (k *KeyringStore) Delete() error {
	if err := keyring.Delete(keyringService, k.user); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

func (k *KeyringStore) Exists() bool {
	_, err := keyring.Get(keyringService, k.user)
	return err == nil
}
