package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/apimeter/backend/internal/domain"
	"github.com/apimeter/backend/internal/repository"
	"github.com/apimeter/backend/pkg/crypto"
	"github.com/go-playground/validator/v10"
)

// keyPrefixLen is how many characters of the secret are shown in listings.
const keyPrefixLen = 10

// APIKeyService issues and manages API credentials. The plaintext secret is
// returned once at creation; at rest only the AES-GCM ciphertext is stored.
type APIKeyService struct {
	keys     *repository.APIKeyRepository
	enc      *crypto.Encryptor
	validate *validator.Validate
}

// NewAPIKeyService creates a new APIKeyService.
func NewAPIKeyService(keys *repository.APIKeyRepository, enc *crypto.Encryptor) *APIKeyService {
	return &APIKeyService{keys: keys, enc: enc, validate: validator.New()}
}

// generateSecret returns a new "am_"-prefixed random key.
func generateSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "am_" + hex.EncodeToString(buf), nil
}

// Issue creates a new key for an account and returns the one-time secret.
func (s *APIKeyService) Issue(ctx context.Context, accountID string, req *domain.CreateAPIKeyRequest) (*domain.APIKeyCreatedResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, domain.ErrInternal("failed to generate key", err)
	}
	encrypted, err := s.enc.Encrypt([]byte(secret))
	if err != nil {
		return nil, domain.ErrInternal("failed to encrypt key", err)
	}

	key := &domain.APIKey{
		ID:              domain.NewID(),
		AccountID:       accountID,
		Name:            req.Name,
		Prefix:          secret[:keyPrefixLen],
		Last4:           secret[len(secret)-4:],
		EncryptedSecret: encrypted,
		IsActive:        true,
		CreatedAt:       time.Now(),
	}
	if err := s.keys.Create(ctx, key); err != nil {
		return nil, domain.ErrInternal("failed to store key", err)
	}

	return &domain.APIKeyCreatedResponse{APIKey: *key, Secret: secret}, nil
}

// List returns an account's keys (prefix and last4 only).
func (s *APIKeyService) List(ctx context.Context, accountID string) ([]*domain.APIKey, error) {
	keys, err := s.keys.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, domain.ErrInternal("failed to list keys", err)
	}
	return keys, nil
}

// Update renames or toggles a key owned by the account.
func (s *APIKeyService) Update(ctx context.Context, id, accountID string, req *domain.UpdateAPIKeyRequest) (*domain.APIKey, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	key, err := s.keys.FindByID(ctx, id, accountID)
	if err != nil {
		return nil, domain.ErrInternal("failed to find key", err)
	}
	if key == nil {
		return nil, domain.ErrNotFound("api key not found")
	}

	if req.Name != nil {
		key.Name = *req.Name
	}
	if req.IsActive != nil {
		key.IsActive = *req.IsActive
	}

	if err := s.keys.Update(ctx, key); err != nil {
		return nil, domain.ErrInternal("failed to update key", err)
	}
	return key, nil
}

// Revoke deletes a key owned by the account.
func (s *APIKeyService) Revoke(ctx context.Context, id, accountID string) error {
	key, err := s.keys.FindByID(ctx, id, accountID)
	if err != nil {
		return domain.ErrInternal("failed to find key", err)
	}
	if key == nil {
		return domain.ErrNotFound("api key not found")
	}
	if err := s.keys.Delete(ctx, id, accountID); err != nil {
		return domain.ErrInternal("failed to revoke key", err)
	}
	return nil
}
