package keys

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/vault-client-go"

	"authd/internal/domain/models"
	"authd/internal/storage"
)

// VaultStore reads RSA signing key pairs from a Vault KV v2 secret. Each
// entry maps kid -> private key PEM. When the secret is empty or missing,
// the configured bootstrap public key (if any) is served as a verify-only
// fallback kid.
type VaultStore struct {
	client    *vault.Client
	mount     string
	path      string
	bootstrap *models.SigningKey
}

// NewVaultStore creates a Vault-backed key store.
func NewVaultStore(addr, token, mount, path, bootstrapPublicPEM string) (*VaultStore, error) {
	client, err := vault.New(
		vault.WithAddress(addr),
		vault.WithRequestTimeout(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("error while creating new vault client instance: %w", err)
	}
	if err := client.SetToken(token); err != nil {
		return nil, fmt.Errorf("error while setting token: %w", err)
	}

	store := &VaultStore{client: client, mount: mount, path: path}
	if bootstrapPublicPEM != "" {
		public, err := ParsePublicKeyPEM([]byte(bootstrapPublicPEM))
		if err != nil {
			return nil, fmt.Errorf("parse bootstrap public key: %w", err)
		}
		store.bootstrap = &models.SigningKey{KID: BootstrapKID, Public: public}
	}
	return store, nil
}

// ActiveKeys reads the current key material from Vault.
func (s *VaultStore) ActiveKeys(ctx context.Context) ([]models.SigningKey, error) {
	resp, err := s.client.Secrets.KvV2Read(ctx, s.path, vault.WithMountPath(s.mount))
	if err != nil {
		if s.bootstrap != nil {
			return []models.SigningKey{*s.bootstrap}, nil
		}
		return nil, fmt.Errorf("failed to read signing keys from vault: %w", err)
	}

	var keys []models.SigningKey
	for kid, raw := range resp.Data.Data {
		pemData, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("invalid key material for kid %s", kid)
		}
		private, err := ParsePrivateKeyPEM([]byte(pemData))
		if err != nil {
			return nil, fmt.Errorf("parse key %s: %w", kid, err)
		}
		keys = append(keys, models.SigningKey{
			KID:     kid,
			Private: private,
			Public:  &private.PublicKey,
		})
	}

	if len(keys) == 0 {
		if s.bootstrap != nil {
			return []models.SigningKey{*s.bootstrap}, nil
		}
		return nil, storage.ErrKeyNotFound
	}
	return keys, nil
}
