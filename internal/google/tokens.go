package google

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/christopherklint97/autosheet/internal/keyring"
)

const (
	serviceAccessToken  = "Google.access_token"
	serviceRefreshToken = "Google.refresh_token"
	serviceExpiry       = "Google.expiry_timestamp"
)

// TokenStore keeps OAuth tokens in the credential store, scoped by the
// signed-in email.
type TokenStore struct {
	secrets *keyring.Namespaced
}

func NewTokenStore(secrets *keyring.Namespaced) *TokenStore {
	return &TokenStore{secrets: secrets}
}

// Load returns nil when nothing usable is stored for email.
func (s *TokenStore) Load(email string) (*oauth2.Token, error) {
	access, err := s.secrets.GetString(serviceAccessToken, email)
	if err != nil {
		return nil, err
	}
	refresh, err := s.secrets.GetString(serviceRefreshToken, email)
	if err != nil {
		return nil, err
	}
	if access == "" && refresh == "" {
		return nil, nil
	}

	tok := &oauth2.Token{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer"}
	raw, err := s.secrets.GetString(serviceExpiry, email)
	if err != nil {
		return nil, err
	}
	if raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing token expiry: %w", err)
		}
		tok.Expiry = time.UnixMilli(ms).UTC()
	}
	return tok, nil
}

// Save stores tok. An empty refresh token keeps the stored one, since
// refresh responses usually omit it.
func (s *TokenStore) Save(email string, tok *oauth2.Token) error {
	if err := s.secrets.SetString(serviceAccessToken, email, tok.AccessToken); err != nil {
		return err
	}
	if tok.RefreshToken != "" {
		if err := s.secrets.SetString(serviceRefreshToken, email, tok.RefreshToken); err != nil {
			return err
		}
	}
	if !tok.Expiry.IsZero() {
		if err := s.secrets.SetString(serviceExpiry, email, strconv.FormatInt(tok.Expiry.UnixMilli(), 10)); err != nil {
			return err
		}
	}
	return nil
}

func (s *TokenStore) Delete(email string) error {
	for _, service := range []string{serviceAccessToken, serviceRefreshToken, serviceExpiry} {
		if err := s.secrets.Delete(service, email); err != nil {
			return err
		}
	}
	return nil
}

// persistingSource writes refreshed tokens back to the store.
type persistingSource struct {
	mu     sync.Mutex
	base   oauth2.TokenSource
	store  *TokenStore
	email  string
	last   string
	logger *slog.Logger
}

func newPersistingSource(base oauth2.TokenSource, store *TokenStore, email string, current *oauth2.Token, logger *slog.Logger) *persistingSource {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &persistingSource{base: base, store: store, email: email, last: current.AccessToken, logger: logger}
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		p.logger.Debug("persisting refreshed Google token", "expiry", tok.Expiry)
		if err := p.store.Save(p.email, tok); err != nil {
			p.logger.Warn("failed to persist refreshed Google token", "error", err)
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}
