package auth

import (
	"fmt"
	"time"

	"github.com/lmaertin/pooldose-go/internal/infrastructure/config"
)

// Token is an issued access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Authenticator checks credentials against the configured accounts and
// issues and verifies access tokens.
//
// Thread Safety:
//   - Immutable after construction; safe for concurrent use.
type Authenticator struct {
	secret   string
	ttl      time.Duration
	accounts map[string]Account

	// dummyHash is verified for unknown usernames so both failure paths
	// cost one Argon2id derivation.
	dummyHash string
}

// NewAuthenticator creates an authenticator for the given accounts.
func NewAuthenticator(secret string, ttl time.Duration, accounts ...Account) (*Authenticator, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}

	a := &Authenticator{
		secret:   secret,
		ttl:      ttl,
		accounts: make(map[string]Account, len(accounts)),
	}
	for _, acc := range accounts {
		if !IsValidUsername(acc.Username) {
			return nil, fmt.Errorf("%w: username %q", ErrInvalidAccount, acc.Username)
		}
		if !IsValidRole(acc.Role) {
			return nil, fmt.Errorf("%w: %s has role %q", ErrInvalidAccount, acc.Username, acc.Role)
		}
		if _, _, _, err := decodePHC(acc.PasswordHash); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidAccount, acc.Username, err)
		}
		a.accounts[acc.Username] = acc
	}

	dummy, err := HashPassword("pooldose-unknown-account")
	if err != nil {
		return nil, err
	}
	a.dummyHash = dummy
	return a, nil
}

// FromConfig creates an authenticator for the configured admin account.
// Without a password hash no account exists and every login fails.
func FromConfig(cfg config.SecurityConfig) (*Authenticator, error) {
	var accounts []Account
	if cfg.Admin.PasswordHash != "" {
		accounts = append(accounts, Account{
			Username:     cfg.Admin.Username,
			PasswordHash: cfg.Admin.PasswordHash,
			Role:         RoleAdmin,
		})
	}
	return NewAuthenticator(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessTokenTTL)*time.Minute, accounts...)
}

// Login verifies credentials and issues an access token.
func (a *Authenticator) Login(username, password string) (Token, error) {
	acc, known := a.accounts[username]
	hash := acc.PasswordHash
	if !known {
		hash = a.dummyHash
	}

	ok, err := VerifyPassword(password, hash)
	if err != nil {
		return Token{}, fmt.Errorf("verifying password: %w", err)
	}
	if !known || !ok {
		return Token{}, ErrInvalidCredentials
	}

	signed, expires, err := GenerateAccessToken(acc, a.secret, a.ttl)
	if err != nil {
		return Token{}, err
	}
	return Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(expires).Round(time.Second).Seconds()),
		ExpiresAt:   expires.UTC(),
	}, nil
}

// Verify parses an access token and returns its principal. Tokens of
// accounts that no longer exist are rejected.
func (a *Authenticator) Verify(token string) (Principal, error) {
	claims, err := ParseToken(token, a.secret)
	if err != nil {
		return Principal{}, err
	}
	if _, ok := a.accounts[claims.Subject]; !ok {
		return Principal{}, fmt.Errorf("%w: unknown account %s", ErrTokenInvalid, claims.Subject)
	}
	return Principal{
		Username:  claims.Subject,
		Role:      claims.Role,
		SessionID: claims.SessionID,
	}, nil
}

// Accounts returns the number of configured accounts.
func (a *Authenticator) Accounts() int {
	return len(a.accounts)
}
