package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/chainsafe/purgatory-reaper/pkg/reputation"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig          `yaml:"server"`
	Database   DatabaseConfig        `yaml:"database"`
	Sui        SuiConfig             `yaml:"sui"`
	Indexer    IndexerConfig         `yaml:"indexer"`
	Reaper     ReaperConfig          `yaml:"reaper"`
	Reputation reputation.Thresholds `yaml:"reputation"`
	Monitoring MonitoringConfig      `yaml:"monitoring"`
	Logging    LoggingConfig         `yaml:"logging"`
	Shutdown   ShutdownConfig        `yaml:"shutdown"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host         string        `yaml:"host" default:"0.0.0.0"`
	Port         int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"15s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" default:"60s"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host" default:"localhost" validate:"required"`
	Port     int    `yaml:"port" default:"5432" validate:"gt=0,lte=65535"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password"`
	Database string `yaml:"database" default:"purgatory" validate:"required"`
	SSLMode  string `yaml:"ssl_mode" default:"disable" validate:"oneof=disable require verify-ca verify-full"`
}

// SuiConfig contains ledger client settings
type SuiConfig struct {
	RPCURL            string        `yaml:"rpc_url" validate:"required,url"`
	PackageID         string        `yaml:"package_id" validate:"required,startswith=0x"`
	GlobalPurgatoryID string        `yaml:"global_purgatory_id" validate:"required,startswith=0x"`
	Module            string        `yaml:"module" default:"core" validate:"required"`
	ClockObjectID     string        `yaml:"clock_object_id" default:"0x6" validate:"required"`
	PrivateKey        string        `yaml:"private_key"`
	RequestTimeout    time.Duration `yaml:"request_timeout" default:"30s" validate:"gt=0"`
}

// IndexerConfig contains event indexer settings
type IndexerConfig struct {
	CursorName         string        `yaml:"cursor_name" default:"purgatory" validate:"required"`
	PageSize           int           `yaml:"page_size" default:"50" validate:"gt=0,lte=1000"`
	PollInterval       time.Duration `yaml:"poll_interval" default:"10s" validate:"gt=0"`
	ErrorBackoff       time.Duration `yaml:"error_backoff" default:"30s" validate:"gt=0"`
	BackfillRPS        float64       `yaml:"backfill_rps" default:"5" validate:"gt=0"`
	BackfillMaxRetries int           `yaml:"backfill_max_retries" default:"5" validate:"gte=0"`
	StartTxDigest      string        `yaml:"start_tx_digest"`
	StartEventSeq      string        `yaml:"start_event_seq"`
	ServiceFee         int64         `yaml:"service_fee" default:"10000000" validate:"gte=0"`
}

// ReaperConfig contains reclamation scheduler settings
type ReaperConfig struct {
	RetentionPeriod time.Duration `yaml:"retention_period" default:"2160h" validate:"gt=0"`
	FetchBatchSize  int           `yaml:"fetch_batch_size" default:"500" validate:"gt=0"`
	SubmitBatchSize int           `yaml:"submit_batch_size" default:"50" validate:"gt=0"`
	GasBudget       uint64        `yaml:"gas_budget" default:"100000000" validate:"gt=0"`
	Interval        time.Duration `yaml:"interval" default:"6h" validate:"gt=0"`
	BatchDelay      time.Duration `yaml:"batch_delay" default:"2s" validate:"gte=0"`
	RunTimeout      time.Duration `yaml:"run_timeout" default:"30m" validate:"gt=0"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	Enabled bool `yaml:"enabled" default:"true"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error dpanic panic fatal"`
	Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
	OutputPath string `yaml:"output_path" default:"stdout"`
}

// ShutdownConfig contains graceful shutdown settings
type ShutdownConfig struct {
	Timeout time.Duration `yaml:"timeout" default:"30s" validate:"gt=0"`
}

// Load reads the YAML file at configPath, expands ${ENV} references, applies
// defaults and validates the result.
func Load(configPath string) (*Config, error) {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(raw)
}

// Parse builds a Config from YAML bytes.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed on %q", fe.Namespace(), fe.Tag())
		}
		return err
	}
	if cfg.Reaper.SubmitBatchSize > cfg.Reaper.FetchBatchSize {
		return fmt.Errorf("reaper.submit_batch_size (%d) exceeds reaper.fetch_batch_size (%d)",
			cfg.Reaper.SubmitBatchSize, cfg.Reaper.FetchBatchSize)
	}
	return nil
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
