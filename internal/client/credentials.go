package client

import (
	"encoding/json"
	"fmt"

	"collegestar/notes-portal/notes-portal-backend/internal/verification"
)

const sessionKey = "session"

// Credentials are what a signed-in terminal keeps between runs.
type Credentials struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type CredentialStore interface {
	// Load returns nil when nobody is signed in.
	Load() (*Credentials, error)
	Save(creds *Credentials) error
	Clear() error
}

type flagCredentials struct {
	flags verification.FlagStore
}

// NewFlagCredentials keeps credentials as JSON under one key of flags, next
// to the donor flag.
func NewFlagCredentials(flags verification.FlagStore) CredentialStore {
	return &flagCredentials{flags: flags}
}

func (s *flagCredentials) Load() (*Credentials, error) {
	raw, err := s.flags.Get(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var creds Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}
	return &creds, nil
}

func (s *flagCredentials) Save(creds *Credentials) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	return s.flags.Set(sessionKey, string(raw))
}

func (s *flagCredentials) Clear() error {
	return s.flags.Set(sessionKey, "")
}
