package constants

// Sensitive field names that should be masked/redacted in logs and CLI output
// to prevent accidental exposure of credentials or secrets.
// Used in: logging/logger.go for automatic field masking
var SensitiveFields = []string{
	"password",
	"token",
	"secret",
	"auth_token",
	"control_auth_token",
	"key",
}

// RedactedPlaceholder is the string used to replace sensitive values in logs.
// Used in: logging/logger.go, commands/check.go
const RedactedPlaceholder = "***REDACTED***"
