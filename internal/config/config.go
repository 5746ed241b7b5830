package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Looker API connection
	LookerBaseURL      string
	LookerClientID     string
	LookerClientSecret string
	LookerVerifySSL    bool
	LookerTimeout      time.Duration

	// Provisioning defaults applied when a request omits them
	DefaultParentFolderID       int64
	DefaultTemplateDashboardIDs []int64

	// Policy knobs
	GroupMatchPolicy   string // "lenient" or "strict"
	UnknownTokenPolicy string // "keep" or "fail"

	// Pub/Sub
	GCPProjectID       string
	ResultsTopicID     string
	SubscriptionID     string
	PushAudience       string
	PushServiceAccount string

	// Optional MySQL audit trail; empty disables auditing
	AuditDSN string

	AllowedOrigins []string

	// Vault Configuration
	VaultAddr             string
	VaultToken            string
	VaultLookerSecretPath string
}

// Load loads configuration from environment variables and Vault secrets.
// Priority: 1) Environment variables, 2) Vault secrets at /vault/secrets
// Waits up to 120 seconds for required variables to appear in Vault.
func Load() (*Config, error) {
	loader := NewVaultLoader()

	lookerBaseURL, err := loader.LoadEnv("LOOKER_BASE_URL", true)
	if err != nil {
		return nil, fmt.Errorf("failed to load LOOKER_BASE_URL: %w", err)
	}

	// When a Vault KV path is configured the Looker credentials are fetched
	// at startup by the vault package instead of from secret files.
	vaultSecretPath := loader.LoadEnvWithDefault("VAULT_LOOKER_SECRET_PATH", "")

	var clientID, clientSecret string
	if vaultSecretPath == "" {
		clientID, err = loader.LoadEnv("LOOKER_CLIENT_ID", true)
		if err != nil {
			return nil, fmt.Errorf("failed to load LOOKER_CLIENT_ID: %w", err)
		}
		clientSecret, err = loader.LoadEnv("LOOKER_CLIENT_SECRET", true)
		if err != nil {
			return nil, fmt.Errorf("failed to load LOOKER_CLIENT_SECRET: %w", err)
		}
	}

	parentFolderID, err := parseOptionalInt64(loader.LoadEnvWithDefault("DEFAULT_PARENT_FOLDER_ID", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_PARENT_FOLDER_ID: %w", err)
	}

	templateDashboardIDs, err := parseIDList(loader.LoadEnvWithDefault("DEFAULT_TEMPLATE_DASHBOARD_IDS", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_TEMPLATE_DASHBOARD_IDS: %w", err)
	}

	auditDSN, err := buildAuditDSN(loader)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:         loader.LoadEnvWithDefault("PORT", "8080"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,

		LookerBaseURL:      strings.TrimRight(lookerBaseURL, "/"),
		LookerClientID:     clientID,
		LookerClientSecret: clientSecret,
		LookerVerifySSL:    loader.LoadEnvWithDefault("LOOKER_VERIFY_SSL", "true") != "false",
		LookerTimeout:      parseDurationWithDefault(loader.LoadEnvWithDefault("LOOKER_TIMEOUT", ""), 120*time.Second),

		DefaultParentFolderID:       parentFolderID,
		DefaultTemplateDashboardIDs: templateDashboardIDs,

		GroupMatchPolicy:   loader.LoadEnvWithDefault("GROUP_MATCH_POLICY", "lenient"),
		UnknownTokenPolicy: loader.LoadEnvWithDefault("UNKNOWN_TOKEN_POLICY", "keep"),

		GCPProjectID:       loader.LoadEnvWithDefault("GCP_PROJECT_ID", ""),
		ResultsTopicID:     loader.LoadEnvWithDefault("RESULTS_TOPIC_ID", ""),
		SubscriptionID:     loader.LoadEnvWithDefault("PROVISION_SUBSCRIPTION_ID", ""),
		PushAudience:       loader.LoadEnvWithDefault("PUSH_AUDIENCE", ""),
		PushServiceAccount: loader.LoadEnvWithDefault("PUSH_SERVICE_ACCOUNT", ""),

		AuditDSN: auditDSN,

		AllowedOrigins: parseAllowedOrigins(loader.LoadEnvWithDefault("ALLOWED_ORIGINS", "")),

		VaultAddr:             loader.LoadEnvWithDefault("VAULT_ADDR", ""),
		VaultToken:            loader.LoadEnvWithDefault("VAULT_TOKEN", ""),
		VaultLookerSecretPath: vaultSecretPath,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (cfg *Config) Validate() error {
	if cfg.LookerBaseURL == "" {
		return fmt.Errorf("LOOKER_BASE_URL is required")
	}
	if cfg.VaultLookerSecretPath == "" {
		if cfg.LookerClientID == "" {
			return fmt.Errorf("LOOKER_CLIENT_ID is required")
		}
		if cfg.LookerClientSecret == "" {
			return fmt.Errorf("LOOKER_CLIENT_SECRET is required")
		}
	} else if cfg.VaultAddr == "" {
		return fmt.Errorf("VAULT_ADDR is required when VAULT_LOOKER_SECRET_PATH is set")
	}
	if cfg.GroupMatchPolicy != "lenient" && cfg.GroupMatchPolicy != "strict" {
		return fmt.Errorf("GROUP_MATCH_POLICY must be \"lenient\" or \"strict\", got %q", cfg.GroupMatchPolicy)
	}
	if cfg.UnknownTokenPolicy != "keep" && cfg.UnknownTokenPolicy != "fail" {
		return fmt.Errorf("UNKNOWN_TOKEN_POLICY must be \"keep\" or \"fail\", got %q", cfg.UnknownTokenPolicy)
	}
	return nil
}

// buildAuditDSN assembles the audit database DSN from its parts.
// The password is read from a secret file, never from the environment.
// Auditing is disabled entirely when AUDIT_DB_PASSWORD_FILE is unset.
func buildAuditDSN(loader *VaultLoader) (string, error) {
	passwordFile := os.Getenv("AUDIT_DB_PASSWORD_FILE")
	if passwordFile == "" {
		return "", nil
	}

	password, err := os.ReadFile(passwordFile)
	if err != nil || len(password) == 0 {
		return "", fmt.Errorf("failed to read %s: %w", passwordFile, err)
	}

	user := loader.LoadEnvWithDefault("AUDIT_DB_USER", "provisioner")
	host := loader.LoadEnvWithDefault("AUDIT_DB_HOST", "mysql:3306")
	name := loader.LoadEnvWithDefault("AUDIT_DB_NAME", "provisioner")

	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", user, strings.TrimSpace(string(password)), host, name), nil
}

func parseOptionalInt64(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// parseIDList parses a comma-separated list of numeric IDs
// (e.g. "101,102,103"). An empty string yields nil.
func parseIDList(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseDurationWithDefault(s string, defaultValue time.Duration) time.Duration {
	if s == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}

// parseAllowedOrigins parses ALLOWED_ORIGINS as a comma-separated list.
// The push and provision endpoints are service-to-service, so the
// default is no browser origins at all.
func parseAllowedOrigins(originsEnv string) []string {
	if originsEnv == "" {
		return nil
	}

	origins := strings.Split(originsEnv, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}
