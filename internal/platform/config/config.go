package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Server captures gateway level configuration.
type Server struct {
	Addr           string
	APIBaseURL     string
	CredentialFile string
	RequestTimeout time.Duration
	LogLevel       string
}

// DefaultRequestTimeout bounds every backend round-trip issued by the clients.
var DefaultRequestTimeout = 10 * time.Second

// FromEnv builds a Server config from environment variables so main stays lean.
// A local .env file is loaded first when present; real environment wins.
func FromEnv() Server {
	_ = godotenv.Load()

	addr := os.Getenv("TRAILHEAD_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	apiBaseURL := os.Getenv("TRAILHEAD_API_BASE_URL")
	if apiBaseURL == "" {
		apiBaseURL = "http://localhost:9000"
	}

	credentialFile := os.Getenv("TRAILHEAD_CREDENTIAL_FILE")
	if credentialFile == "" {
		credentialFile = ".trailhead-credential"
	}

	timeout := DefaultRequestTimeout
	if raw := os.Getenv("TRAILHEAD_REQUEST_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			timeout = d
		}
	}

	return Server{
		Addr:           addr,
		APIBaseURL:     apiBaseURL,
		CredentialFile: credentialFile,
		RequestTimeout: timeout,
		LogLevel:       os.Getenv("TRAILHEAD_LOG_LEVEL"),
	}
}
