// Package google signs in to a Google account and reads its calendar.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
	gcal "google.golang.org/api/calendar/v3"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/christopherklint97/autosheet/internal/timesheet"
)

// SignInTimeout bounds the whole browser sign-in.
const SignInTimeout = 5 * time.Minute

const callbackPath = "/callback"

var scopes = []string{
	"openid",
	oauth2api.UserinfoEmailScope,
	oauth2api.UserinfoProfileScope,
	gcal.CalendarReadonlyScope,
}

// Identity caches the signed-in email.
type Identity interface {
	Email(ctx context.Context) (string, error)
	SetEmail(ctx context.Context, email string) error
}

// Auth runs the OAuth2 authorization code flow with PKCE against a
// loopback redirect and hands out refreshing token sources.
type Auth struct {
	config   oauth2.Config
	tokens   *TokenStore
	identity Identity
	logger   *slog.Logger

	// apiOptions are appended when calling Google APIs. Tests point them at
	// a local server.
	apiOptions []option.ClientOption
}

func NewAuth(clientID, clientSecret string, tokens *TokenStore, identity Identity, logger *slog.Logger) *Auth {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Auth{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoints.Google,
			Scopes:       scopes,
		},
		tokens:   tokens,
		identity: identity,
		logger:   logger,
	}
}

type callbackResult struct {
	code string
	err  error
}

// Login opens a loopback server, hands the consent URL to prompt and waits
// for Google to redirect back. On success the tokens and the account email
// are stored and the email is returned.
func (a *Auth) Login(ctx context.Context, prompt func(authURL string)) (string, error) {
	if a.config.ClientID == "" {
		return "", errors.New("google client_id is not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, SignInTimeout)
	defer cancel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("starting callback server: %w", err)
	}
	cfg := a.config
	cfg.RedirectURL = fmt.Sprintf("http://%s%s", listener.Addr().String(), callbackPath)
	a.logger.Info("started local web server to handle Google OAuth callback", "callback_url", cfg.RedirectURL)

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	results := make(chan callbackResult, 1)

	srv := &http.Server{
		Handler:           callbackRouter(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("callback server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)
	prompt(authURL)

	var res callbackResult
	select {
	case res = <-results:
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for Google sign-in: %w", ctx.Err())
	}
	if res.err != nil {
		return "", res.err
	}

	tok, err := cfg.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return "", fmt.Errorf("exchanging authorization code: %w", err)
	}
	a.logger.Debug("received tokens from Google", "expiry", tok.Expiry, "refresh_token", tok.RefreshToken != "")

	email, err := a.fetchEmail(ctx, cfg.TokenSource(ctx, tok))
	if err != nil {
		return "", err
	}
	if err := a.tokens.Save(email, tok); err != nil {
		return "", err
	}
	if err := a.identity.SetEmail(ctx, email); err != nil {
		return "", err
	}
	a.logger.Info("signed in with Google", "email", email)
	return email, nil
}

func callbackRouter(state string, results chan<- callbackResult) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	send := func(res callbackResult) {
		select {
		case results <- res:
		default:
		}
	}

	r.GET(callbackPath, func(c *gin.Context) {
		if c.Query("state") != state {
			c.String(http.StatusBadRequest, "Invalid sign-in state. Please start again.")
			return
		}
		if reason := c.Query("error"); reason != "" {
			send(callbackResult{err: fmt.Errorf("google sign-in was rejected: %s", reason)})
			c.String(http.StatusBadRequest, "Sign-in failed: %s. You can close this window.", reason)
			return
		}
		code := c.Query("code")
		if code == "" {
			c.String(http.StatusBadRequest, "Missing authorization code.")
			return
		}
		send(callbackResult{code: code})
		c.String(http.StatusOK, "Signed in. You can close this window and return to the terminal.")
	})
	return r
}

func (a *Auth) fetchEmail(ctx context.Context, ts oauth2.TokenSource) (string, error) {
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, a.apiOptions...)
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("creating userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("fetching user info: %w", convertError(err))
	}
	email := strings.TrimSpace(info.Email)
	if email == "" {
		return "", errors.New("google account has no email address")
	}
	return email, nil
}

// TokenSource returns a refreshing token source for the signed-in account.
func (a *Auth) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	email, err := a.identity.Email(ctx)
	if err != nil {
		return nil, err
	}
	if email == "" {
		return nil, &timesheet.AccountNotLinkedError{Service: "Google"}
	}
	tok, err := a.tokens.Load(email)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, &timesheet.AccountNotLinkedError{Service: "Google"}
	}
	base := a.config.TokenSource(context.WithoutCancel(ctx), tok)
	return newPersistingSource(base, a.tokens, email, tok, a.logger), nil
}

// Logout forgets the tokens and the cached identity.
func (a *Auth) Logout(ctx context.Context) error {
	email, err := a.identity.Email(ctx)
	if err != nil {
		return err
	}
	if email == "" {
		return nil
	}
	if err := a.tokens.Delete(email); err != nil {
		return err
	}
	return a.identity.SetEmail(ctx, "")
}
