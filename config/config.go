package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the portal. It is loaded once at
// startup and read-only afterwards.
// Tags use mapstructure for Viper unmarshalling and env var binding.
type ServerConfig struct {
	HTTPPort        string `mapstructure:"HTTP_PORT"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogPretty       bool   `mapstructure:"LOG_PRETTY"`
	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Identity provider trust configuration.
	OIDCMetadataURL    string `mapstructure:"OIDC_METADATA_URL"`
	OIDCClientID       string `mapstructure:"OIDC_CLIENT_ID"`
	OIDCClientSecret   string `mapstructure:"OIDC_CLIENT_SECRET"`
	OIDCRedirectURL    string `mapstructure:"OIDC_REDIRECT_URL"`
	OIDCResponseType   string `mapstructure:"OIDC_RESPONSE_TYPE"`
	OIDCResponseMode   string `mapstructure:"OIDC_RESPONSE_MODE"`
	OIDCValidateIssuer bool   `mapstructure:"OIDC_VALIDATE_ISSUER"`
	OIDCScopes         string `mapstructure:"OIDC_SCOPES"` // space separated
	OIDCClockSkewSec   int    `mapstructure:"OIDC_CLOCK_SKEW_SEC"`

	// Nonce policy for the handshake.
	NonceLifetimeSec int    `mapstructure:"NONCE_LIFETIME_SEC"`
	NonceMaxAmount   int    `mapstructure:"NONCE_MAX_AMOUNT"`
	NonceUseCookie   bool   `mapstructure:"NONCE_USE_COOKIE"`
	NonceCookieKey   string `mapstructure:"NONCE_COOKIE_KEY"` // 32 bytes, raw

	// Session store selection and lifecycle.
	SessionStore     string `mapstructure:"SESSION_STORE"` // "mongo" or "memory"
	SessionMaxAgeSec int    `mapstructure:"SESSION_MAX_AGE_SEC"`
	DirectoryStore   string `mapstructure:"DIRECTORY_STORE"` // "memory" or "mongo"

	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`

	// Post-auth navigation.
	LoginFailureRedirect string `mapstructure:"LOGIN_FAILURE_REDIRECT"`
	PostLogoutRedirect   string `mapstructure:"POST_LOGOUT_REDIRECT"`

	// External collaborators.
	TokenVerifierURL  string `mapstructure:"TOKEN_VERIFIER_URL"`
	TokenCacheEnabled bool   `mapstructure:"TOKEN_CACHE_ENABLED"`
	TokenCacheTTLSec  int    `mapstructure:"TOKEN_CACHE_TTL_SEC"`
	RedisAddr         string `mapstructure:"REDIS_ADDR"`
	NotifyEndpoint    string `mapstructure:"NOTIFY_ENDPOINT"`
}

// ScopeList splits the configured scope string.
func (c *ServerConfig) ScopeList() []string {
	return strings.Fields(c.OIDCScopes)
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/portal/")
	v.AddConfigPath("$HOME/.portal")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "portal")

	v.SetDefault("OIDC_RESPONSE_TYPE", "code")
	v.SetDefault("OIDC_RESPONSE_MODE", "form_post")
	v.SetDefault("OIDC_VALIDATE_ISSUER", true)
	v.SetDefault("OIDC_SCOPES", "openid profile email")
	v.SetDefault("OIDC_CLOCK_SKEW_SEC", 300)

	v.SetDefault("NONCE_LIFETIME_SEC", 300)
	v.SetDefault("NONCE_MAX_AMOUNT", 1000)
	v.SetDefault("NONCE_USE_COOKIE", false)

	v.SetDefault("SESSION_STORE", "memory")
	v.SetDefault("SESSION_MAX_AGE_SEC", 86400)
	v.SetDefault("DIRECTORY_STORE", "memory")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/portal_dev")
	v.SetDefault("MONGO_DB_NAME", "portal_dev")

	v.SetDefault("LOGIN_FAILURE_REDIRECT", "/")
	v.SetDefault("POST_LOGOUT_REDIRECT", "/")

	v.SetDefault("TOKEN_CACHE_ENABLED", false)
	v.SetDefault("TOKEN_CACHE_TTL_SEC", 60)
	v.SetDefault("REDIS_ADDR", "localhost:6379")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Missing config file is fine, defaults and env vars apply.
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
