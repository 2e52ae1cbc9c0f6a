package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings" // strings normalizes enum-like values
)

// Config holds all runtime configuration values. Each field
// corresponds to an environment variable. Required variables are
// enforced by must(); everything else falls back to a sensible
// default so a development instance starts with only the database
// and a JWT secret configured.
type Config struct {
	Env    string // application environment (e.g. "dev", "prod")
	Port   string // HTTP port to listen on
	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	JWTSecret    string // secret used to sign dashboard session JWTs
	AccessTTLMin int    // session token time-to-live in minutes
	BcryptCost   int    // bcrypt cost for account passwords

	GitHubToken string // optional token for the GitHub API (higher rate limits)

	// LLM providers, tried in order: Claude first, then OpenAI.
	// Base URLs point at OpenAI-compatible chat-completion APIs.
	ClaudeAPIKey  string
	ClaudeBaseURL string
	ClaudeModel   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	TokenOracleURL string  // balance endpoint for the token-holder oracle
	TokenThreshold float64 // minimum balance that makes a wallet a token holder

	// StrictSignatures controls wallet registration: when true a bad
	// signature rejects the registration; when false it is logged and
	// registration proceeds (legacy behavior).
	StrictSignatures bool

	StripeWebhookSecret string // signing secret for the billing webhook
}

// Load reads configuration values from environment variables and
// returns a Config. Missing required values cause the program to
// exit with a fatal log message.
func Load() Config {
	return Config{
		Env:    must("APP_ENV"),
		Port:   must("APP_PORT"),
		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"), // empty allowed
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 60),
		BcryptCost:   envInt("BCRYPT_COST", 10),

		GitHubToken: os.Getenv("GITHUB_TOKEN"),

		ClaudeAPIKey:  os.Getenv("CLAUDE_API_KEY"),
		ClaudeBaseURL: envStr("CLAUDE_BASE_URL", "https://api.anthropic.com/v1"),
		ClaudeModel:   envStr("CLAUDE_MODEL", "claude-sonnet-4-20250514"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: envStr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   envStr("OPENAI_MODEL", "gpt-4o"),

		TokenOracleURL: os.Getenv("TOKEN_ORACLE_URL"),
		TokenThreshold: envFloat("TOKEN_HOLDER_THRESHOLD", 10000),

		StrictSignatures: !strings.EqualFold(envStr("SIGNATURE_ENFORCEMENT", "strict"), "permissive"),

		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
	}
}

// must retrieves the value of a required environment variable. If
// the variable is unset or empty, the application logs a fatal error
// and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// envFloat reads a float environment variable with a default.
func envFloat(key string, d float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return d
}
