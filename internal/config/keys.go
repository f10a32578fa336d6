package config

import "os"

// APIKeySource represents where a credential comes from.
type APIKeySource string

const (
	KeySourceEnv    APIKeySource = "env"
	KeySourceConfig APIKeySource = "config"
	KeySourceNone   APIKeySource = "none"
)

// KeyStatus represents the status of a credential.
type KeyStatus struct {
	Name   string       `json:"name"`
	Source APIKeySource `json:"source"`
	IsSet  bool         `json:"is_set"`
	Masked string       `json:"masked,omitempty"` // e.g., "jdo...com"
}

// CheckAPIKeys returns the status of all provider credentials.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	return []KeyStatus{
		checkKey("CIQ Username", cfg.CIQ.Username, "CIQ_USER", EnvPrefix+"_CIQ_USERNAME"),
		checkKey("CIQ Password", cfg.CIQ.Password, "CIQ_PASS", EnvPrefix+"_CIQ_PASSWORD"),
	}
}

// HasCIQCredentials reports whether both CIQ credentials are set.
func HasCIQCredentials(cfg *Config) bool {
	return cfg.CIQ.Username != "" && cfg.CIQ.Password != ""
}

// checkKey checks if a key is set and where it came from.
func checkKey(name, value string, envVars ...string) KeyStatus {
	status := KeyStatus{
		Name:   name,
		IsSet:  value != "",
		Source: KeySourceNone,
	}
	if value == "" {
		return status
	}
	status.Source = KeySourceConfig
	for _, e := range envVars {
		if os.Getenv(e) != "" {
			status.Source = KeySourceEnv
			break
		}
	}
	status.Masked = maskKey(value)
	return status
}

// maskKey masks a credential for display, showing only first 3 and last 3 chars.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
