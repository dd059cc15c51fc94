package domain

import "time"

// APIKey is an issued API credential. The full secret is returned exactly
// once at creation and stored AES-GCM-encrypted at rest; listings only ever
// expose the prefix and last four characters.
type APIKey struct {
	ID              string     `json:"id"`
	AccountID       string     `json:"accountId"`
	Name            string     `json:"name"`
	Prefix          string     `json:"prefix"`
	Last4           string     `json:"last4"`
	EncryptedSecret string     `json:"-"`
	IsActive        bool       `json:"isActive"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastUsedAt      *time.Time `json:"lastUsedAt,omitempty"`
}

// CreateAPIKeyRequest is the validated input for issuing a key.
type CreateAPIKeyRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// UpdateAPIKeyRequest renames or toggles a key.
type UpdateAPIKeyRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=100"`
	IsActive *bool   `json:"isActive"`
}

// APIKeyCreatedResponse carries the one-time plaintext secret.
type APIKeyCreatedResponse struct {
	APIKey
	Secret string `json:"secret"`
}
