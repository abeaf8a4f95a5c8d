package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	EngineConfig   EngineConfig   `json:"engine"`
	AccountConfig  AccountConfig  `json:"account"`
	ServerConfig   ServerConfig   `json:"server"`
	AuthConfig     AuthConfig     `json:"auth"`
	VaultConfig    VaultConfig    `json:"vault"`
	DatabaseConfig DatabaseConfig `json:"database"`
	RedisConfig    RedisConfig    `json:"redis"`
	LoggingConfig  LoggingConfig  `json:"logging"`
}

// EngineConfig tunes the signal pipeline itself.
type EngineConfig struct {
	PatternDir            string  `json:"pattern_dir"`             // directory of pattern definition JSON files
	PolicyPath            string  `json:"policy_path"`             // policy ruleset file, empty disables the gate
	MinConfidence         float64 `json:"min_confidence"`          // minimum pattern confidence to act on
	UnknownOperatorPolicy string  `json:"unknown_operator_policy"` // permissive or strict
	DryRun                bool    `json:"dry_run"`                 // route plans to the dry-run executor only
}

// AccountConfig feeds the position sizer.
type AccountConfig struct {
	Size            float64 `json:"size"`               // account equity in dollars
	MaxRiskPerTrade float64 `json:"max_risk_per_trade"` // fraction of equity risked per trade
	MaxPositionSize float64 `json:"max_position_size"`  // fraction of equity per position
}

type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"` // CORS allowed origins
	ReadTimeout     int    `json:"read_timeout"`    // Seconds
	WriteTimeout    int    `json:"write_timeout"`   // Seconds
	ShutdownTimeout int    `json:"shutdown_timeout"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Enabled             bool          `json:"enabled"`
	JWTSecret           string        `json:"jwt_secret"`
	AccessTokenDuration time.Duration `json:"access_token_duration"`
	MinPasswordLength   int           `json:"min_password_length"`
}

// VaultConfig holds HashiCorp Vault configuration for secrets
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`  // KV secrets engine mount path
	SecretPath string `json:"secret_path"` // path prefix for engine secrets
}

type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Pretty bool   `json:"pretty"` // human-readable console output
}

func Load() (*Config, error) {
	return LoadFile("config.json")
}

// LoadFile reads the JSON config, then applies environment overrides.
// A missing file is not an error; the environment and defaults carry it.
func LoadFile(filename string) (*Config, error) {
	cfg, err := loadFromFile(filename)
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.EngineConfig.MinConfidence < 0 || c.EngineConfig.MinConfidence > 1 {
		return fmt.Errorf("engine.min_confidence must be within [0, 1], got %v", c.EngineConfig.MinConfidence)
	}
	if c.AccountConfig.Size <= 0 {
		return fmt.Errorf("account.size must be positive, got %v", c.AccountConfig.Size)
	}
	if c.AccountConfig.MaxRiskPerTrade < 0 || c.AccountConfig.MaxRiskPerTrade > 0.5 {
		return fmt.Errorf("account.max_risk_per_trade must be within [0, 0.5], got %v", c.AccountConfig.MaxRiskPerTrade)
	}
	if p := c.EngineConfig.UnknownOperatorPolicy; p != "" && p != "permissive" && p != "strict" {
		return fmt.Errorf("engine.unknown_operator_policy must be permissive or strict, got %q", p)
	}
	if c.AuthConfig.Enabled && c.AuthConfig.JWTSecret == "" && !c.VaultConfig.Enabled {
		return fmt.Errorf("auth enabled but no jwt_secret configured and vault disabled")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	// Engine config
	cfg.EngineConfig.PatternDir = getEnvOrDefault("ARK_PATTERN_DIR", defaultStr(cfg.EngineConfig.PatternDir, "patterns"))
	cfg.EngineConfig.PolicyPath = getEnvOrDefault("ARK_POLICY_PATH", cfg.EngineConfig.PolicyPath)
	cfg.EngineConfig.MinConfidence = getEnvFloatOrDefault("ARK_MIN_CONFIDENCE", defaultFloat(cfg.EngineConfig.MinConfidence, 0.6))
	cfg.EngineConfig.UnknownOperatorPolicy = getEnvOrDefault("ARK_UNKNOWN_OPERATOR_POLICY", defaultStr(cfg.EngineConfig.UnknownOperatorPolicy, "permissive"))
	cfg.EngineConfig.DryRun = getEnvOrDefault("ARK_DRY_RUN", "true") == "true"

	// Account config
	cfg.AccountConfig.Size = getEnvFloatOrDefault("ARK_ACCOUNT_SIZE", defaultFloat(cfg.AccountConfig.Size, 50000))
	cfg.AccountConfig.MaxRiskPerTrade = getEnvFloatOrDefault("ARK_MAX_RISK_PER_TRADE", defaultFloat(cfg.AccountConfig.MaxRiskPerTrade, 0.02))
	cfg.AccountConfig.MaxPositionSize = getEnvFloatOrDefault("ARK_MAX_POSITION_SIZE", defaultFloat(cfg.AccountConfig.MaxPositionSize, 0.10))

	// Server config
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", defaultInt(cfg.ServerConfig.Port, 8080))
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", defaultStr(cfg.ServerConfig.Host, "0.0.0.0"))
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", defaultStr(cfg.ServerConfig.AllowedOrigins, "*"))
	cfg.ServerConfig.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", defaultInt(cfg.ServerConfig.ReadTimeout, 30))
	cfg.ServerConfig.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", defaultInt(cfg.ServerConfig.WriteTimeout, 30))
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", defaultInt(cfg.ServerConfig.ShutdownTimeout, 10))

	// Auth config - secrets always come from environment or Vault
	cfg.AuthConfig.Enabled = getEnvOrDefault("AUTH_ENABLED", "false") == "true"
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", defaultDuration(cfg.AuthConfig.AccessTokenDuration, 15*time.Minute))
	cfg.AuthConfig.MinPasswordLength = getEnvIntOrDefault("AUTH_MIN_PASSWORD_LENGTH", defaultInt(cfg.AuthConfig.MinPasswordLength, 8))

	// Vault config
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", defaultStr(cfg.VaultConfig.Address, "http://localhost:8200"))
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", defaultStr(cfg.VaultConfig.MountPath, "secret"))
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", defaultStr(cfg.VaultConfig.SecretPath, "ark-engine"))

	// Database config
	cfg.DatabaseConfig.Enabled = getEnvOrDefault("DB_ENABLED", "false") == "true"
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", defaultStr(cfg.DatabaseConfig.Host, "localhost"))
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", defaultInt(cfg.DatabaseConfig.Port, 5432))
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", defaultStr(cfg.DatabaseConfig.User, "ark"))
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", defaultStr(cfg.DatabaseConfig.Database, "ark_signals"))
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", defaultStr(cfg.DatabaseConfig.SSLMode, "disable"))

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDR", defaultStr(cfg.RedisConfig.Address, "localhost:6379"))
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", defaultInt(cfg.RedisConfig.PoolSize, 10))

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", defaultStr(cfg.LoggingConfig.Level, "info"))
	cfg.LoggingConfig.Pretty = getEnvOrDefault("LOG_PRETTY", "false") == "true"
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func defaultStr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func defaultInt(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}

func defaultFloat(value, fallback float64) float64 {
	if value == 0 {
		return fallback
	}
	return value
}

func defaultDuration(value, fallback time.Duration) time.Duration {
	if value == 0 {
		return fallback
	}
	return value
}

// GenerateSampleConfig creates a sample configuration file
func GenerateSampleConfig(filename string) error {
	config := Config{
		EngineConfig: EngineConfig{
			PatternDir:            "patterns",
			PolicyPath:            "policy/hrm_rules.json",
			MinConfidence:         0.6,
			UnknownOperatorPolicy: "permissive",
			DryRun:                true,
		},
		AccountConfig: AccountConfig{
			Size:            50000,
			MaxRiskPerTrade: 0.02,
			MaxPositionSize: 0.10,
		},
		ServerConfig: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			AllowedOrigins:  "*",
			ReadTimeout:     30,
			WriteTimeout:    30,
			ShutdownTimeout: 10,
		},
		LoggingConfig: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}
