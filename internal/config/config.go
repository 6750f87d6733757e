package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `json:"server"`
	Database    DatabaseConfig    `json:"database"`
	Storage     StorageConfig     `json:"storage"`
	Security    SecurityConfig    `json:"security"`
	Donations   DonationsConfig   `json:"donations"`
	AWS         AWSConfig         `json:"aws"`
	Maintenance MaintenanceConfig `json:"maintenance"`
	Logging     LoggingConfig     `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	MaxUploadBytes  int64         `json:"max_upload_bytes"`
}

// DatabaseConfig selects the document store. Driver is "mongo", "postgres"
// or "memory".
type DatabaseConfig struct {
	Driver         string        `json:"driver"`
	MongoURI       string        `json:"mongo_uri"`
	Name           string        `json:"name"`
	PostgresDSN    string        `json:"postgres_dsn"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

// StorageConfig selects where uploaded files live. Driver is "local" or "s3".
type StorageConfig struct {
	Driver    string `json:"driver"`
	UploadDir string `json:"upload_dir"`
	PublicURL string `json:"public_url"`
	Bucket    string `json:"bucket"`
	Endpoint  string `json:"endpoint"`
	PathStyle bool   `json:"path_style"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret     string        `json:"jwt_secret"`
	JWTExpiration time.Duration `json:"jwt_expiration"`
	JWTIssuer     string        `json:"jwt_issuer"`
}

// DonationsConfig describes the UPI payee and the admin notification channels.
type DonationsConfig struct {
	PayeeVPA    string   `json:"payee_vpa"`
	PayeeName   string   `json:"payee_name"`
	PaymentNote string   `json:"payment_note"`
	Currency    string   `json:"currency"`
	Tiers       []int    `json:"tiers"`
	SNSTopicARN string   `json:"sns_topic_arn"`
	SESFrom     string   `json:"ses_from"`
	AdminEmails []string `json:"admin_emails"`
}

// AWSConfig
type AWSConfig struct {
	Region          string `json:"region"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// MaintenanceConfig controls the orphaned upload sweeper.
type MaintenanceConfig struct {
	SweepSchedule string        `json:"sweep_schedule"`
	OrphanGrace   time.Duration `json:"orphan_grace"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// Default returns the configuration used when no file or env overrides exist.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			MaxUploadBytes:  25 << 20,
		},
		Database: DatabaseConfig{
			Driver:         "mongo",
			MongoURI:       "mongodb://localhost:27017",
			Name:           "collegestar",
			ConnectTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver:    "local",
			UploadDir: "uploads",
			PublicURL: "/uploads",
		},
		Security: SecurityConfig{
			JWTExpiration: 7 * 24 * time.Hour,
			JWTIssuer:     "collegestar",
		},
		Donations: DonationsConfig{
			PayeeName:   "CollegeStar",
			PaymentNote: "Support CollegeStar - Buy us a coffee",
			Currency:    "INR",
			Tiers:       []int{20, 50, 70, 100, 200, 500},
		},
		AWS: AWSConfig{
			Region: "ap-south-1",
		},
		Maintenance: MaintenanceConfig{
			SweepSchedule: "@daily",
			OrphanGrace:   24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from file and environment variables.
// A .env file in the working directory is read first when present.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func overrideWithEnv(config *Config) {
	setString(&config.Server.Host, "SERVER_HOST")
	setInt(&config.Server.Port, "PORT")
	setInt(&config.Server.Port, "SERVER_PORT")

	setString(&config.Database.Driver, "DATABASE_DRIVER")
	setString(&config.Database.MongoURI, "MONGODB_URI")
	setString(&config.Database.Name, "DATABASE_NAME")
	setString(&config.Database.PostgresDSN, "POSTGRES_DSN")

	setString(&config.Storage.Driver, "STORAGE_DRIVER")
	setString(&config.Storage.UploadDir, "UPLOAD_DIR")
	setString(&config.Storage.PublicURL, "STORAGE_PUBLIC_URL")
	setString(&config.Storage.Bucket, "S3_BUCKET")
	setString(&config.Storage.Endpoint, "S3_ENDPOINT")

	setString(&config.Security.JWTSecret, "JWT_SECRET")

	setString(&config.Donations.PayeeVPA, "UPI_PAYEE_VPA")
	setString(&config.Donations.SNSTopicARN, "DONATION_SNS_TOPIC_ARN")
	setString(&config.Donations.SESFrom, "DONATION_SES_FROM")

	setString(&config.AWS.Region, "AWS_REGION")
	setString(&config.AWS.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&config.AWS.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")

	setString(&config.Logging.Level, "LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate reports configuration that cannot start a server.
func (c *Config) Validate() error {
	var problems []string
	if c.Security.JWTSecret == "" {
		problems = append(problems, "security.jwt_secret is required")
	}
	switch c.Database.Driver {
	case "mongo":
		if c.Database.MongoURI == "" {
			problems = append(problems, "database.mongo_uri is required for the mongo driver")
		}
	case "postgres":
		if c.Database.PostgresDSN == "" {
			problems = append(problems, "database.postgres_dsn is required for the postgres driver")
		}
	case "memory":
	default:
		problems = append(problems, fmt.Sprintf("unknown database driver %q", c.Database.Driver))
	}
	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.Storage.Bucket == "" {
			problems = append(problems, "storage.bucket is required for the s3 driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage driver %q", c.Storage.Driver))
	}
	if len(c.Donations.Tiers) == 0 {
		problems = append(problems, "donations.tiers must not be empty")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// UsesAWS reports whether any configured component needs AWS credentials.
func (c *Config) UsesAWS() bool {
	return c.Storage.Driver == "s3" || c.Donations.SNSTopicARN != "" || c.Donations.SESFrom != ""
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
