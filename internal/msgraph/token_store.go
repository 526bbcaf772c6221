package msgraph

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/christopherklint97/autosheet/internal/keyring"
)

const serviceTokens = "Graph.tokens"

// TokenData holds OAuth2 token data for Microsoft Graph API.
type TokenData struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        string    `json:"scope"`
}

// IsExpired returns true if the token is expired or will expire within 5 minutes.
func (t *TokenData) IsExpired() bool {
	return time.Now().Add(5 * time.Minute).After(t.ExpiresAt)
}

// TokenStore keeps Graph tokens in the credential store, one JSON blob per
// signed-in email.
type TokenStore struct {
	secrets *keyring.Namespaced
}

func NewTokenStore(secrets *keyring.Namespaced) *TokenStore {
	return &TokenStore{secrets: secrets}
}

// Load returns nil, nil if nothing is stored for email.
func (s *TokenStore) Load(email string) (*TokenData, error) {
	data, err := s.secrets.Get(serviceTokens, email)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var tokens TokenData
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("parsing stored Graph tokens: %w", err)
	}
	return &tokens, nil
}

// Save stores tokens. A missing refresh token keeps the previous one.
func (s *TokenStore) Save(email string, tokens *TokenData) error {
	if tokens.RefreshToken == "" {
		if prev, err := s.Load(email); err == nil && prev != nil {
			tokens.RefreshToken = prev.RefreshToken
		}
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("marshaling tokens: %w", err)
	}
	return s.secrets.Set(serviceTokens, email, data)
}

func (s *TokenStore) Delete(email string) error {
	return s.secrets.Delete(serviceTokens, email)
}
