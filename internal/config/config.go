package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Security  SecurityConfig  `json:"security"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Documents DocumentsConfig `json:"documents"`
	Browser   BrowserConfig   `json:"browser"`
	Exports   ExportsConfig   `json:"exports"`
	// Demo serves a seeded SQLite registry, in memory unless database.driver is sqlite.
	Demo bool `json:"demo"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	PublicURL    string        `json:"public_url"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver         string        `json:"driver"`
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	Path           string        `json:"path"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
}

// SecurityConfig
type SecurityConfig struct {
	JWTSecret string        `json:"jwt_secret"`
	TokenTTL  time.Duration `json:"token_ttl"`
	// AdminUsername and AdminPassword bootstrap the first account when the
	// user table is empty. No account is created without a password.
	AdminUsername string `json:"admin_username"`
	AdminPassword string `json:"admin_password"`
	// AllowedOrigins limits cross-origin WebSocket handshakes; empty allows
	// same-origin only.
	AllowedOrigins []string `json:"allowed_origins"`
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// StorageConfig configures the S3-compatible bucket that archives generated documents
// and holds chairman photos.
type StorageConfig struct {
	Enabled      bool   `json:"enabled"`
	Region       string `json:"region"`
	Bucket       string `json:"bucket"`
	Endpoint     string `json:"endpoint"`
	AccessKey    string `json:"access_key"`
	SecretKey    string `json:"secret_key"`
	UsePathStyle bool   `json:"use_path_style"`
}

// DocumentsConfig points the document builders at their bundled assets and fonts.
type DocumentsConfig struct {
	// AssetDir holds images that replace the bundled ones of the same name.
	AssetDir     string `json:"asset_dir"`
	Watermark    string `json:"watermark"`
	Emblem       string `json:"emblem"`
	FontFamily   string `json:"font_family"`
	FontPath     string `json:"font_path"`
	FontBoldPath string `json:"font_bold_path"`
	// VerifyURL is a printf pattern taking the license number, e.g.
	// "https://registry.example.la/verify/%s". Empty disables the QR code.
	VerifyURL string `json:"verify_url"`
	Compress  bool   `json:"compress"`
}

// BrowserConfig configures the headless browser used for view snapshots
type BrowserConfig struct {
	Enabled        bool          `json:"enabled"`
	Bin            string        `json:"bin"`
	ControlURL     string        `json:"control_url"`
	ViewportWidth  int           `json:"viewport_width"`
	ViewportHeight int           `json:"viewport_height"`
	Timeout        time.Duration `json:"timeout"`
}

// ExportsConfig lists scheduled directory exports and how they are delivered
type ExportsConfig struct {
	Schedules []ScheduleConfig `json:"schedules"`
	Email     EmailConfig      `json:"email"`
	// Timezone the cron expressions are evaluated in.
	Timezone      string `json:"timezone"`
	ArchivePrefix string `json:"archive_prefix"`
}

// ScheduleConfig describes one recurring export
type ScheduleConfig struct {
	Name       string   `json:"name"`
	Cron       string   `json:"cron"`
	Format     string   `json:"format"`
	Locale     string   `json:"locale"`
	Status     string   `json:"status"`
	Recipients []string `json:"recipients"`
	Archive    bool     `json:"archive"`
}

// EmailConfig
type EmailConfig struct {
	Region string `json:"region"`
	From   string `json:"from"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Default config
	config := &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			PublicURL:    "http://localhost:8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:         "postgres",
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "coop_registry",
			SSLMode:        "disable",
			Path:           "coop_registry.db",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    30 * time.Minute,
		},
		Security: SecurityConfig{
			TokenTTL:      12 * time.Hour,
			AdminUsername: "admin",
		},
		Logging: LoggingConfig{
			Level:       "info",
			Development: true,
		},
		Storage: StorageConfig{
			Region: "ap-southeast-1",
			Bucket: "coop-registry-documents",
		},
		Documents: DocumentsConfig{
			Watermark:  "watermark.png",
			Emblem:     "emblem.png",
			FontFamily: "Phetsarath",
			Compress:   true,
		},
		Browser: BrowserConfig{
			ViewportWidth:  1280,
			ViewportHeight: 1800,
			Timeout:        30 * time.Second,
		},
		Exports: ExportsConfig{
			Email:         EmailConfig{Region: "ap-southeast-1"},
			Timezone:      "Asia/Vientiane",
			ArchivePrefix: "scheduled-exports",
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	// Override with environment variables
	overrideWithEnv(config)

	return config, nil
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
	if publicURL := os.Getenv("SERVER_PUBLIC_URL"); publicURL != "" {
		config.Server.PublicURL = publicURL
	}

	if driver := os.Getenv("DATABASE_DRIVER"); driver != "" {
		config.Database.Driver = driver
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
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
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if ttl := os.Getenv("JWT_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			config.Security.TokenTTL = d
		}
	}

	if user := os.Getenv("ADMIN_USERNAME"); user != "" {
		config.Security.AdminUsername = user
	}
	if pass := os.Getenv("ADMIN_PASSWORD"); pass != "" {
		config.Security.AdminPassword = pass
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.Security.AllowedOrigins = strings.Split(origins, ",")
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if enabled := os.Getenv("STORAGE_ENABLED"); enabled != "" {
		config.Storage.Enabled = parseBool(enabled, config.Storage.Enabled)
	}
	if bucket := os.Getenv("STORAGE_BUCKET"); bucket != "" {
		config.Storage.Bucket = bucket
	}
	if region := os.Getenv("STORAGE_REGION"); region != "" {
		config.Storage.Region = region
	}
	if endpoint := os.Getenv("STORAGE_ENDPOINT"); endpoint != "" {
		config.Storage.Endpoint = endpoint
	}
	if key := os.Getenv("STORAGE_ACCESS_KEY"); key != "" {
		config.Storage.AccessKey = key
	}
	if secret := os.Getenv("STORAGE_SECRET_KEY"); secret != "" {
		config.Storage.SecretKey = secret
	}

	if dir := os.Getenv("DOCUMENTS_ASSET_DIR"); dir != "" {
		config.Documents.AssetDir = dir
	}
	if font := os.Getenv("DOCUMENTS_FONT_PATH"); font != "" {
		config.Documents.FontPath = font
	}
	if font := os.Getenv("DOCUMENTS_FONT_BOLD_PATH"); font != "" {
		config.Documents.FontBoldPath = font
	}
	if verify := os.Getenv("DOCUMENTS_VERIFY_URL"); verify != "" {
		config.Documents.VerifyURL = verify
	}

	if enabled := os.Getenv("BROWSER_ENABLED"); enabled != "" {
		config.Browser.Enabled = parseBool(enabled, config.Browser.Enabled)
	}
	if bin := os.Getenv("BROWSER_BIN"); bin != "" {
		config.Browser.Bin = bin
	}
	if controlURL := os.Getenv("BROWSER_CONTROL_URL"); controlURL != "" {
		config.Browser.ControlURL = controlURL
	}

	if tz := os.Getenv("EXPORTS_TIMEZONE"); tz != "" {
		config.Exports.Timezone = tz
	}
	if from := os.Getenv("EXPORTS_EMAIL_FROM"); from != "" {
		config.Exports.Email.From = from
	}
	if demo := os.Getenv("DEMO_MODE"); demo != "" {
		config.Demo = parseBool(demo, config.Demo)
	}
}

func parseBool(value string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return b
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
