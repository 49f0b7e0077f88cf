package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Environment selects which credential block a gateway driver is built from.
// Production and test credentials for the same driver never mix.
type Environment string

const (
	EnvProd Environment = "prod"
	EnvTest Environment = "test"
)

// AppConfig represents the application configuration
type AppConfig struct {
	Port             string
	Environment      Environment
	DefaultDriver    string
	DBPath           string
	EncryptKey       string
	OpenSearchURL    string
	OpenSearchUser   string
	OpenSearchPass   string
	EnableAuditLog   bool
	LoggingLevel     string
	LogRetentionDays int
}

// DriverConfig is the environment-scoped configuration block for one gateway
// driver. It is built once at driver construction time and handed to the
// driver by value; gateway code never reaches into process environment state.
type DriverConfig struct {
	Driver          string
	Environment     Environment
	APIURL          string
	HPPRedirectURL  string
	User            string
	Pass            string
	APIKey          string
	Currency        string
	Language        string
	CapturePurposes []string
}

var (
	appConfigInstance *AppConfig
	appConfigOnce     sync.Once
)

// GetAppConfig returns the application configuration
func GetAppConfig() *AppConfig {
	appConfigOnce.Do(func() {
		appConfigInstance = &AppConfig{
			Port:             GetEnv("APP_PORT", "9999"),
			Environment:      CurrentEnvironment(),
			DefaultDriver:    GetEnv("PAYMENT_DEFAULT_DRIVER", "kapitalbank"),
			DBPath:           GetEnv("DB_PATH", "data/paygate.db"),
			EncryptKey:       GetEnv("ENCRYPT_KEY", ""),
			OpenSearchURL:    GetEnv("OPENSEARCH_URL", "http://localhost:9200"),
			OpenSearchUser:   GetEnv("OPENSEARCH_USER", ""),
			OpenSearchPass:   GetEnv("OPENSEARCH_PASSWORD", ""),
			EnableAuditLog:   GetBoolEnv("ENABLE_OPENSEARCH_LOGGING", false),
			LoggingLevel:     GetEnv("LOGGING_LEVEL", "info"),
			LogRetentionDays: GetIntEnv("LOG_RETENTION_DAYS", 30),
		}
	})
	return appConfigInstance
}

// CurrentEnvironment maps the ENVIRONMENT variable to a credential
// environment. Only "production" selects the prod block; everything else
// (development, staging, test) uses test credentials.
func CurrentEnvironment() Environment {
	if GetEnv("ENVIRONMENT", "development") == "production" {
		return EnvProd
	}
	return EnvTest
}

// Driver loads the configuration block for a named driver in the given
// environment. The block is read from DRIVER_{ENV}_* variables, e.g.
// KAPITALBANK_PROD_API, KAPITALBANK_TEST_USER, STRIPE_TEST_API_KEY.
// A driver with neither an API URL nor an API key configured is treated
// as having no block at all.
func Driver(name string, env Environment) (DriverConfig, error) {
	prefix := fmt.Sprintf("%s_%s_", strings.ToUpper(name), strings.ToUpper(string(env)))

	cfg := DriverConfig{
		Driver:          name,
		Environment:     env,
		APIURL:          GetEnv(prefix+"API", ""),
		HPPRedirectURL:  GetEnv(prefix+"REDIRECT_URL", ""),
		User:            GetEnv(prefix+"USER", ""),
		Pass:            GetEnv(prefix+"PASS", ""),
		APIKey:          GetEnv(prefix+"API_KEY", ""),
		Currency:        GetEnv(prefix+"CURRENCY", "AZN"),
		Language:        GetEnv(prefix+"LANGUAGE", "az"),
		CapturePurposes: splitList(GetEnv(prefix+"CAPTURE_PURPOSES", "Cit")),
	}

	if cfg.APIURL == "" && cfg.APIKey == "" {
		return DriverConfig{}, fmt.Errorf("missing configuration for driver [%s] in environment [%s]", name, env)
	}

	return cfg, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
