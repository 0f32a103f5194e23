package keys

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"authd/internal/domain/models"
	"authd/internal/storage"
)

// BootstrapKID names the verify-only fallback key derived from a configured
// public PEM when the primary store holds nothing.
const BootstrapKID = "bootstrap"

// StaticStore serves signing keys loaded once at startup from PEM files.
// The file name stem becomes the kid.
type StaticStore struct {
	keys []models.SigningKey
}

// NewStaticStore loads every *.pem private key from keyDir. When the
// directory yields no keys and bootstrapPublicPEM is set, a single
// verify-only bootstrap key is derived from it so JWKS and verification
// still work.
func NewStaticStore(keyDir, bootstrapPublicPEM string) (*StaticStore, error) {
	var loaded []models.SigningKey

	if keyDir != "" {
		entries, err := os.ReadDir(keyDir)
		if err != nil {
			return nil, fmt.Errorf("read key dir: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".pem") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(keyDir, entry.Name()))
			if err != nil {
				return nil, fmt.Errorf("read key file %s: %w", entry.Name(), err)
			}
			private, err := ParsePrivateKeyPEM(data)
			if err != nil {
				return nil, fmt.Errorf("parse key file %s: %w", entry.Name(), err)
			}
			loaded = append(loaded, models.SigningKey{
				KID:     strings.TrimSuffix(entry.Name(), ".pem"),
				Private: private,
				Public:  &private.PublicKey,
			})
		}
	}

	if len(loaded) == 0 && bootstrapPublicPEM != "" {
		public, err := ParsePublicKeyPEM([]byte(bootstrapPublicPEM))
		if err != nil {
			return nil, fmt.Errorf("parse bootstrap public key: %w", err)
		}
		loaded = append(loaded, models.SigningKey{KID: BootstrapKID, Public: public})
	}
	if len(loaded) == 0 {
		return nil, storage.ErrKeyNotFound
	}

	return &StaticStore{keys: loaded}, nil
}

// NewInMemory builds a store from already constructed keys.
func NewInMemory(keys ...models.SigningKey) *StaticStore {
	return &StaticStore{keys: keys}
}

// ActiveKeys returns the loaded key set.
func (s *StaticStore) ActiveKeys(_ context.Context) ([]models.SigningKey, error) {
	return s.keys, nil
}
