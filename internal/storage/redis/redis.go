package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"authd/internal/config"
	"authd/internal/domain/models"
	"authd/internal/storage"
)

const authRequestKeyPrefix = "authreq:"

// Store keeps the ephemeral authorization-request records. They live only as
// long as OAUTH_AUTH_REQUEST_EXPIRY; durable state stays in postgres.
type Store struct {
	rdb *redis.Client
}

// NewStore creates new instance of redis store
func NewStore(conf *config.RedisConfig) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Host + ":" + strconv.Itoa(conf.Port),
		Password: conf.Password,
		DB:       conf.DB,
	})
	return &Store{rdb: rdb}, nil
}

// SaveAuthRequest stores a new authorization request under its opaque id.
// The key expires together with the request itself.
func (s *Store) SaveAuthRequest(ctx context.Context, request *models.AuthorizationRequest) error {
	data, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal authorization request: %w", err)
	}
	ttl := time.Until(request.ExpiresAt)
	if ttl <= 0 {
		return storage.ErrTokenExpired
	}
	if err := s.rdb.Set(ctx, authRequestKeyPrefix+request.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save authorization request: %w", err)
	}
	return nil
}

// AuthRequest gets an authorization request by its id.
func (s *Store) AuthRequest(ctx context.Context, requestID string) (*models.AuthorizationRequest, error) {
	data, err := s.rdb.Get(ctx, authRequestKeyPrefix+requestID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrAuthRequestNotFound
		}
		return nil, fmt.Errorf("failed to get authorization request: %w", err)
	}
	var request models.AuthorizationRequest
	if err := json.Unmarshal(data, &request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authorization request: %w", err)
	}
	return &request, nil
}

// UpdateAuthRequest rewrites the record after a status transition, keeping
// the original expiry.
func (s *Store) UpdateAuthRequest(ctx context.Context, request *models.AuthorizationRequest) error {
	data, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal authorization request: %w", err)
	}
	if err := s.rdb.Set(ctx, authRequestKeyPrefix+request.ID, data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("failed to update authorization request: %w", err)
	}
	return nil
}

// Close shuts the redis connection down.
func (s *Store) Close() error {
	return s.rdb.Close()
}
