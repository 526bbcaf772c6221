package msgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/christopherklint97/autosheet/internal/timesheet"
)

const defaultScope = "Calendars.Read User.Read offline_access"

const defaultAuthority = "https://login.microsoftonline.com"

// Identity caches the signed-in email.
type Identity interface {
	Email(ctx context.Context) (string, error)
	SetEmail(ctx context.Context, email string) error
}

// Auth handles OAuth2 device code flow for Microsoft Graph API.
type Auth struct {
	clientID   string
	tenantID   string
	authority  string
	tokens     *TokenStore
	identity   Identity
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAuth creates a new Auth instance for the given Azure AD app.
func NewAuth(clientID, tenantID string, tokens *TokenStore, identity Identity, logger *slog.Logger) *Auth {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if tenantID == "" {
		tenantID = "common"
	}
	return &Auth{
		clientID:  clientID,
		tenantID:  tenantID,
		authority: defaultAuthority,
		tokens:    tokens,
		identity:  identity,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// DeviceCodeResponse holds the response from the device code endpoint.
type DeviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
	Message         string `json:"message"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

func (t tokenResponse) tokenData() *TokenData {
	return &TokenData{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(t.ExpiresIn) * time.Second),
		Scope:        t.Scope,
	}
}

func (a *Auth) baseURL() string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0", a.authority, a.tenantID)
}

func (a *Auth) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// StartDeviceCodeFlow initiates the device code flow and returns the response
// containing the user code and verification URI.
func (a *Auth) StartDeviceCodeFlow(ctx context.Context) (*DeviceCodeResponse, error) {
	if a.clientID == "" {
		return nil, errors.New("graph client_id is not configured")
	}
	body, status, err := a.postForm(ctx, a.baseURL()+"/devicecode", url.Values{
		"client_id": {a.clientID},
		"scope":     {defaultScope},
	})
	if err != nil {
		return nil, fmt.Errorf("requesting device code: %w", err)
	}
	if status != http.StatusOK {
		return nil, &timesheet.ProviderRequestError{Service: "Microsoft identity", Status: status, Body: truncateStr(string(body), 200)}
	}

	var dcResp DeviceCodeResponse
	if err := json.Unmarshal(body, &dcResp); err != nil {
		return nil, fmt.Errorf("parsing device code response: %w", err)
	}
	return &dcResp, nil
}

// PollForToken polls the token endpoint until the user completes authorization.
func (a *Auth) PollForToken(ctx context.Context, deviceCode string, interval int) (*TokenData, error) {
	if interval < 1 {
		interval = 5
	}

	form := url.Values{
		"client_id":   {a.clientID},
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
		"device_code": {deviceCode},
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(interval) * time.Second):
		}

		body, _, err := a.postForm(ctx, a.baseURL()+"/token", form)
		if err != nil {
			return nil, fmt.Errorf("polling for token: %w", err)
		}

		var tokenResp tokenResponse
		if err := json.Unmarshal(body, &tokenResp); err != nil {
			return nil, fmt.Errorf("parsing token response: %w", err)
		}

		switch tokenResp.Error {
		case "":
			return tokenResp.tokenData(), nil
		case "authorization_pending":
			a.logger.Debug("waiting for user authorization")
		case "slow_down":
			interval += 5
			a.logger.Debug("slowing down polling", "interval", interval)
		case "expired_token":
			return nil, errors.New("device code expired, please try again")
		default:
			return nil, fmt.Errorf("token error: %s: %s", tokenResp.Error, tokenResp.ErrorDesc)
		}
	}
}

// RefreshAccessToken uses a refresh token to obtain a new access token.
func (a *Auth) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenData, error) {
	body, _, err := a.postForm(ctx, a.baseURL()+"/token", url.Values{
		"client_id":     {a.clientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"scope":         {defaultScope},
	})
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("parsing refresh response: %w", err)
	}
	if tokenResp.Error != "" {
		return nil, fmt.Errorf("refresh failed: %s: %s", tokenResp.Error, tokenResp.ErrorDesc)
	}
	return tokenResp.tokenData(), nil
}

// Complete stores tokens obtained from the device flow under the account's
// email and caches that email as the identity.
func (a *Auth) Complete(ctx context.Context, client *Client, tokens *TokenData) (string, error) {
	email, err := client.Me(ctx, tokens.AccessToken)
	if err != nil {
		return "", err
	}
	if err := a.tokens.Save(email, tokens); err != nil {
		return "", err
	}
	if err := a.identity.SetEmail(ctx, email); err != nil {
		return "", err
	}
	a.logger.Info("signed in with Microsoft", "email", email)
	return email, nil
}

// EnsureValidToken loads stored tokens, refreshes them when expired and
// returns a valid access token.
func (a *Auth) EnsureValidToken(ctx context.Context) (string, error) {
	email, err := a.identity.Email(ctx)
	if err != nil {
		return "", err
	}
	if email == "" {
		return "", &timesheet.AccountNotLinkedError{Service: "Microsoft Graph"}
	}
	tokens, err := a.tokens.Load(email)
	if err != nil {
		return "", fmt.Errorf("loading stored tokens: %w", err)
	}
	if tokens == nil {
		return "", &timesheet.AccountNotLinkedError{Service: "Microsoft Graph"}
	}

	if !tokens.IsExpired() {
		return tokens.AccessToken, nil
	}

	a.logger.Debug("access token expired, refreshing")
	newTokens, err := a.RefreshAccessToken(ctx, tokens.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("token refresh failed (run 'autosheet graph login' to re-authenticate): %w", err)
	}

	if err := a.tokens.Save(email, newTokens); err != nil {
		a.logger.Warn("failed to store refreshed tokens", "error", err)
	}
	return newTokens.AccessToken, nil
}
