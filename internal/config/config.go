package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"co2nex/carbon-audit/audit-backend/internal/audit/band"
	"co2nex/carbon-audit/audit-backend/internal/audit/pipeline"
	"co2nex/carbon-audit/audit-backend/internal/audit/soil"
	"co2nex/carbon-audit/audit-backend/internal/audit/window"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Logging   LoggingConfig   `json:"logging"`
	Audit     AuditConfig     `json:"audit"`
	Storage   StorageConfig   `json:"storage"`
	Platform  PlatformConfig  `json:"platform"`
	Scheduler SchedulerConfig `json:"scheduler"`
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

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// AuditConfig holds the dataset conventions and thresholds of the pipeline.
type AuditConfig struct {
	DatasetVersion        string        `json:"dataset_version"`
	FullProfile           bool          `json:"full_profile"`
	BiomeScaleFactor      float64       `json:"biome_scale_factor"`
	CloudThreshold        float64       `json:"cloud_threshold"`
	Composite             string        `json:"composite"`
	FireBufferMeters      float64       `json:"fire_buffer_meters"`
	AlertBufferMeters     float64       `json:"alert_buffer_meters"`
	ReductionTimeout      time.Duration `json:"reduction_timeout"`
	SoilMoistureHeuristic bool          `json:"soil_moisture_heuristic"`
	WindowYears           int           `json:"window_years"`
}

// StorageConfig selects the S3 report archive.
type StorageConfig struct {
	Enabled  bool   `json:"enabled"`
	Bucket   string `json:"bucket"`
	Region   string `json:"region"`
	Prefix   string `json:"prefix"`
	Endpoint string `json:"endpoint"`
}

// PlatformConfig points at the reduction service, or at a fixture file
// served in its place.
type PlatformConfig struct {
	BaseURL     string        `json:"base_url"`
	Timeout     time.Duration `json:"timeout"`
	FixturePath string        `json:"fixture_path"`
}

// SchedulerConfig lists recurring audits.
type SchedulerConfig struct {
	Enabled bool             `json:"enabled"`
	Jobs    []ScheduledAudit `json:"jobs"`
}

// ScheduledAudit re-runs the pipeline for one project on a cron expression.
type ScheduledAudit struct {
	Name           string   `json:"name"`
	Cron           string   `json:"cron"`
	ProjectID      string   `json:"project_id"`
	ProjectName    string   `json:"project_name"`
	Classification string   `json:"classification"`
	Landowner      string   `json:"landowner"`
	PolygonFile    string   `json:"polygon_file"`
	Exports        []string `json:"exports"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	defaults := pipeline.DefaultConfig()
	config := &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "carbon_audit",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    5 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info"},
		Audit: AuditConfig{
			DatasetVersion:        defaults.DatasetVersion,
			BiomeScaleFactor:      defaults.BiomeScaleFactor,
			CloudThreshold:        defaults.CloudThreshold,
			Composite:             string(defaults.Composite),
			FireBufferMeters:      defaults.FireBufferMeters,
			AlertBufferMeters:     defaults.AlertBufferMeters,
			ReductionTimeout:      defaults.ReductionTimeout,
			SoilMoistureHeuristic: defaults.SoilMoistureHeuristic,
			WindowYears:           defaults.Period.Years,
		},
		Storage: StorageConfig{
			Region: "us-east-1",
			Prefix: "audits",
		},
		Platform: PlatformConfig{
			Timeout: 60 * time.Second,
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
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if v := os.Getenv("AUDIT_DATASET_VERSION"); v != "" {
		config.Audit.DatasetVersion = v
	}
	if v := os.Getenv("AUDIT_BIOME_SCALE_FACTOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Audit.BiomeScaleFactor = f
		}
	}
	if v := os.Getenv("AUDIT_SOIL_MOISTURE_HEURISTIC"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Audit.SoilMoistureHeuristic = b
		}
	}
	if v := os.Getenv("PLATFORM_BASE_URL"); v != "" {
		config.Platform.BaseURL = v
	}
	if v := os.Getenv("PLATFORM_FIXTURE_PATH"); v != "" {
		config.Platform.FixturePath = v
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		config.Storage.Bucket = bucket
		config.Storage.Enabled = true
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		config.Storage.Region = region
	}
	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		config.Storage.Endpoint = endpoint
	}
}

// ToPipelineConfig overlays the audit section on the pipeline defaults. The
// result is validated by pipeline.New.
func (a AuditConfig) ToPipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.DatasetVersion = a.DatasetVersion
	if a.FullProfile {
		cfg.SoilIntervals = soil.Profile100
	}
	cfg.BiomeScaleFactor = a.BiomeScaleFactor
	cfg.CloudThreshold = a.CloudThreshold
	cfg.Composite = band.Reducer(a.Composite)
	cfg.FireBufferMeters = a.FireBufferMeters
	cfg.AlertBufferMeters = a.AlertBufferMeters
	cfg.ReductionTimeout = a.ReductionTimeout
	cfg.SoilMoistureHeuristic = a.SoilMoistureHeuristic
	cfg.Period = window.Period{Years: a.WindowYears}
	return cfg
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
