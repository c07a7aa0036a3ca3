package domain

import (
	"net/mail"
	"strings"
)

// User owns at most one API key, optional proxy credentials, and
// optional Google Sheets identifiers. Secrets are opaque strings here;
// generation and hashing are the credential collaborator's concern.
type User struct {
	ID            int64
	Email         string
	Password      string // opaque hash, never inspected here
	APIKeyName    string
	APIKey        string
	ProxyURL      string
	ProxyUsername string
	ProxyPassword string

	GoogleSheetsEmail  string
	GoogleSheetID      string
	GoogleAccessToken  string
	GoogleRefreshToken string
}

// Validate enforces the write-time invariants on a user record: email
// syntax and the proxy credential pairing rule.
func (u User) Validate() error {
	if u.Email == "" {
		return Invalid("email", "must not be empty")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return Invalid("email", "not a valid email address")
	}
	if strings.TrimSpace(u.ProxyUsername) != "" && u.ProxyPassword == "" {
		return Invalid("proxy_password", "required when proxy_username is set")
	}
	return nil
}
