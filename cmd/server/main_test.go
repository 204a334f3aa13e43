package main

import (
	"testing"

	"vapetrack/backend/internal/config"
)

func TestValidateSecurityConfigRejectsShortSecretWithDatabase(t *testing.T) {
	err := validateSecurityConfig(config.Config{DatabaseURL: "postgres://x", AuthSecret: "short"})
	if err == nil {
		t.Fatalf("expected short AUTH_SECRET to be rejected when postgres is configured")
	}
}

func TestValidateSecurityConfigAcceptsStrongSecret(t *testing.T) {
	err := validateSecurityConfig(config.Config{DatabaseURL: "postgres://x", AuthSecret: "0123456789abcdef0123456789abcdef"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestValidateSecurityConfigAllowsDevModeWithoutSecret(t *testing.T) {
	err := validateSecurityConfig(config.Config{})
	if err != nil {
		t.Fatalf("expected in-memory dev mode to start without AUTH_SECRET, got %v", err)
	}
}
