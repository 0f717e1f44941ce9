package config

import (
	"fmt"
	"os"
)

// Environment variables supplying portal credentials.
const (
	EnvUsername = "HARVEST_USERNAME"
	EnvPassword = "HARVEST_PASSWORD"
)

// Credentials holds the portal username and password. Credentials are
// held in memory only; they are never persisted with the config file.
type Credentials struct {
	Username string
	Password string
}

// CredentialsFromEnv reads credentials from the environment.
func CredentialsFromEnv() (Credentials, error) {
	creds := Credentials{
		Username: os.Getenv(EnvUsername),
		Password: os.Getenv(EnvPassword),
	}
	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// Validate checks that both fields are present.
func (c Credentials) Validate() error {
	if c.Username == "" {
		return fmt.Errorf("username is required (set %s)", EnvUsername)
	}
	if c.Password == "" {
		return fmt.Errorf("password is required (set %s)", EnvPassword)
	}
	return nil
}

// String implements fmt.Stringer and redacts both fields so credentials
// cannot leak through logging or error formatting.
func (c Credentials) String() string {
	return "Credentials{Username:<redacted> Password:<redacted>}"
}

// GoString implements fmt.GoStringer for %#v formatting.
func (c Credentials) GoString() string {
	return c.String()
}
