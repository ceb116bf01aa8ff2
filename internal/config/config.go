package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `json:"server"`
	Database     DatabaseConfig     `json:"database"`
	Security     SecurityConfig     `json:"security"`
	Verification VerificationConfig `json:"verification"`
	DataRoom     DataRoomConfig     `json:"data_room"`
	Attestation  AttestationConfig  `json:"attestation"`
	Storage      StorageConfig      `json:"storage"`
	Logging      LoggingConfig      `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// SecurityConfig holds JWT settings
type SecurityConfig struct {
	JWTSecret          string        `json:"jwt_secret"`
	AccessTokenExpiry  time.Duration `json:"access_token_expiry"`
	RefreshTokenExpiry time.Duration `json:"refresh_token_expiry"`
}

// VerificationConfig carries the workflow defaults. The checklists and
// score cut points match the stored data produced by earlier deployments;
// they are configuration, not business constants.
type VerificationConfig struct {
	RequiredDocuments map[string][]string `json:"required_documents"`
	RiskThresholds    RiskThresholds      `json:"risk_thresholds"`
}

// RiskThresholds maps an overall score to a qualitative risk level.
// Scores at or above Low are "low", at or above Medium "medium",
// at or above High "high", everything below "critical".
type RiskThresholds struct {
	Low    float64 `json:"low"`
	Medium float64 `json:"medium"`
	High   float64 `json:"high"`
}

// DataRoomConfig carries data-room defaults
type DataRoomConfig struct {
	NDAValidityDays int           `json:"nda_validity_days"`
	DefaultFolders  []string      `json:"default_folders"`
	SweepInterval   time.Duration `json:"sweep_interval"`
}

// AttestationConfig configures the ledger registration collaborator
type AttestationConfig struct {
	Network         string        `json:"network"`
	ContractAddress string        `json:"contract_address"`
	ExplorerBaseURL string        `json:"explorer_base_url"`
	Timeout         time.Duration `json:"timeout"`
}

// StorageConfig configures S3 file storage. An empty bucket disables
// presigned links and keeps documents as external references.
type StorageConfig struct {
	Bucket        string        `json:"bucket"`
	Region        string        `json:"region"`
	PresignExpiry time.Duration `json:"presign_expiry"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	config := defaultConfig()

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	return config, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "aip_portal",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
		},
		Security: SecurityConfig{
			AccessTokenExpiry:  30 * time.Minute,
			RefreshTokenExpiry: 7 * 24 * time.Hour,
		},
		Verification: VerificationConfig{
			RequiredDocuments: map[string][]string{
				"V0": {"project_summary"},
				"V1": {"sponsor_identity", "company_registration", "director_ids"},
				"V2": {"financial_statements", "legal_agreements", "permits", "technical_docs"},
				"V3": {"financial_model", "feasibility_study", "risk_assessment", "market_analysis", "management_cv"},
			},
			RiskThresholds: RiskThresholds{
				Low:    80,
				Medium: 60,
				High:   40,
			},
		},
		DataRoom: DataRoomConfig{
			NDAValidityDays: 365,
			DefaultFolders: []string{
				"Financial Documents",
				"Legal Documents",
				"Technical Documents",
				"Corporate Documents",
				"Miscellaneous",
			},
			SweepInterval: time.Hour,
		},
		Attestation: AttestationConfig{
			Network:         "polygon-mumbai",
			ContractAddress: "0x0000000000000000000000000000000000000000",
			ExplorerBaseURL: "https://polygonscan.com/tx/",
			Timeout:         10 * time.Second,
		},
		Storage: StorageConfig{
			Region:        "us-east-1",
			PresignExpiry: 15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DATABASE_PORT"); dbPort != "" {
		if p, err := strconv.Atoi(dbPort); err == nil {
			config.Database.Port = p
		}
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if bucket := os.Getenv("S3_BUCKET_NAME"); bucket != "" {
		config.Storage.Bucket = bucket
	}
	if region := os.Getenv("S3_REGION"); region != "" {
		config.Storage.Region = region
	}
	if network := os.Getenv("ATTESTATION_NETWORK"); network != "" {
		config.Attestation.Network = network
	}
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
