package config

import (
	"strings"

	"github.com/google/uuid"
)

// generateToken returns 32 random hex characters for the control endpoint.
func generateToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
