package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Built-in model candidates tried after any configured ones.
var defaultModels = []string{"gpt-4o", "gpt-4o-mini"}

type Config struct {
	// Database
	DatabaseURL string

	// Web Server
	WebBind string

	// Session
	JWTSecret string

	// OAuth2 login
	OAuthClientID     string
	OAuthClientSecret string
	OAuthRedirectURI  string
	OAuthAuthURL      string
	OAuthTokenURL     string
	OAuthUserInfoURL  string

	// Receipt extraction provider
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	ReceiptModel   string
	FallbackModels []string
	ReceiptDebug   bool
}

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		WebBind:           getEnvDefault("WEB_BIND", "0.0.0.0:3000"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		OAuthClientID:     os.Getenv("OAUTH_CLIENT_ID"),
		OAuthClientSecret: os.Getenv("OAUTH_CLIENT_SECRET"),
		OAuthRedirectURI:  getEnvDefault("OAUTH_REDIRECT_URI", "http://localhost:3000/api/auth/callback"),
		OAuthAuthURL:      os.Getenv("OAUTH_AUTH_URL"),
		OAuthTokenURL:     os.Getenv("OAUTH_TOKEN_URL"),
		OAuthUserInfoURL:  os.Getenv("OAUTH_USERINFO_URL"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		ReceiptModel:      os.Getenv("RECEIPT_MODEL"),
		FallbackModels:    splitList(os.Getenv("RECEIPT_FALLBACK_MODELS")),
		ReceiptDebug:      os.Getenv("RECEIPT_DEBUG") == "1" || strings.EqualFold(os.Getenv("RECEIPT_DEBUG"), "true"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// ModelCandidates returns the ordered model list to try: the configured
// primary, configured fallbacks, then the built-in defaults. Duplicates keep
// their first position.
func (c *Config) ModelCandidates() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(m string) {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			return
		}
		seen[m] = true
		out = append(out, m)
	}
	add(c.ReceiptModel)
	for _, m := range c.FallbackModels {
		add(m)
	}
	for _, m := range defaultModels {
		add(m)
	}
	return out
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
