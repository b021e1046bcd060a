// Package apikey issues and verifies project-scoped API keys. The plaintext
// secret is shown once at creation; only a bcrypt hash is stored.
package apikey

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"lingx/api/internal/store"
	"lingx/api/internal/util"
)

var ErrInvalidKey = errors.New("invalid api key")

// Store is the persistence the service needs, satisfied by store.PostgresStore.
type Store interface {
	InsertAPIKey(ctx context.Context, key store.APIKey) error
	GetAPIKey(ctx context.Context, keyID string) (store.APIKey, error)
	TouchAPIKey(ctx context.Context, keyID string) error
}

type Service struct {
	store Store
}

func NewService(s Store) *Service {
	return &Service{store: s}
}

// Issue creates a key for the project and returns the record together with
// the plaintext token, formatted as lx_<id>_<secret>.
func (s *Service) Issue(ctx context.Context, projectID, name, createdBy string) (store.APIKey, string, error) {
	secretBytes := make([]byte, 24)
	if _, err := rand.Read(secretBytes); err != nil {
		return store.APIKey{}, "", fmt.Errorf("generate secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return store.APIKey{}, "", fmt.Errorf("hash secret: %w", err)
	}

	key := store.APIKey{
		ID:         util.NewID("ak"),
		ProjectID:  projectID,
		Name:       name,
		SecretHash: string(hash),
		CreatedBy:  createdBy,
		CreatedAt:  time.Now(),
	}
	if err := s.store.InsertAPIKey(ctx, key); err != nil {
		return store.APIKey{}, "", err
	}
	return key, "lx_" + key.ID + "_" + secret, nil
}

// Verify checks a plaintext token and returns the matching key record. Any
// parse or mismatch failure maps to ErrInvalidKey so callers cannot
// distinguish unknown ids from wrong secrets.
func (s *Service) Verify(ctx context.Context, token string) (store.APIKey, error) {
	keyID, secret, ok := splitToken(token)
	if !ok {
		return store.APIKey{}, ErrInvalidKey
	}

	key, err := s.store.GetAPIKey(ctx, keyID)
	if err != nil {
		return store.APIKey{}, ErrInvalidKey
	}
	if bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)) != nil {
		return store.APIKey{}, ErrInvalidKey
	}

	// Best effort; a failed timestamp must not fail the request.
	_ = s.store.TouchAPIKey(ctx, key.ID)
	return key, nil
}

func splitToken(token string) (keyID, secret string, ok bool) {
	rest, found := strings.CutPrefix(token, "lx_")
	if !found {
		return "", "", false
	}
	// The id itself contains one underscore (prefix_random), so split from
	// the right.
	idx := strings.LastIndex(rest, "_")
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}
