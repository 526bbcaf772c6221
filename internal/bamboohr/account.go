package bamboohr

import (
	"context"
	"fmt"

	"github.com/christopherklint97/autosheet/internal/keyring"
	"github.com/christopherklint97/autosheet/internal/timesheet"
)

const (
	serviceAPIKey     = "BambooHR.api_key"
	serviceEmployeeID = "BambooHR.employee_id"
)

type Credentials struct {
	APIKey     string
	EmployeeID string
}

// EmailSource returns the identity secrets are scoped to.
type EmailSource interface {
	Email(ctx context.Context) (string, error)
}

// Account stores BambooHR credentials in the credential store, keyed by the
// linked calendar identity.
type Account struct {
	secrets  *keyring.Namespaced
	identity EmailSource
}

func NewAccount(secrets *keyring.Namespaced, identity EmailSource) *Account {
	return &Account{secrets: secrets, identity: identity}
}

// Credentials returns nil when no identity or no API key is stored.
func (a *Account) Credentials(ctx context.Context) (*Credentials, error) {
	email, err := a.identity.Email(ctx)
	if err != nil {
		return nil, err
	}
	if email == "" {
		return nil, nil
	}

	apiKey, err := a.secrets.GetString(serviceAPIKey, email)
	if err != nil {
		return nil, err
	}
	if apiKey == "" {
		return nil, nil
	}
	employeeID, err := a.secrets.GetString(serviceEmployeeID, email)
	if err != nil {
		return nil, err
	}
	return &Credentials{APIKey: apiKey, EmployeeID: employeeID}, nil
}

func (a *Account) email(ctx context.Context) (string, error) {
	email, err := a.identity.Email(ctx)
	if err != nil {
		return "", err
	}
	if email == "" {
		return "", &timesheet.AccountNotLinkedError{Service: "calendar"}
	}
	return email, nil
}

// Link verifies creds against the API and stores them.
func (a *Account) Link(ctx context.Context, client *Client, creds Credentials) (*Employee, error) {
	email, err := a.email(ctx)
	if err != nil {
		return nil, err
	}
	emp, err := client.Verify(ctx, creds)
	if err != nil {
		return nil, err
	}
	if err := a.secrets.SetString(serviceAPIKey, email, creds.APIKey); err != nil {
		return nil, err
	}
	if err := a.secrets.SetString(serviceEmployeeID, email, creds.EmployeeID); err != nil {
		return nil, fmt.Errorf("storing employee ID: %w", err)
	}
	return emp, nil
}

func (a *Account) Unlink(ctx context.Context) error {
	email, err := a.email(ctx)
	if err != nil {
		return err
	}
	if err := a.secrets.Delete(serviceAPIKey, email); err != nil {
		return err
	}
	return a.secrets.Delete(serviceEmployeeID, email)
}
