package configfx

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

const (
	EnvPrefix = "EMBEDCHECK"

	DefaultDBPath    = "embedcheck.db"
	DefaultEmbedURL  = "http://localhost:8000/embed"
	DefaultTransport = "http"
	DefaultTimeout   = 60 * time.Second
	DefaultTolerance = 1e-3
)

// Config holds the application configuration
type Config struct {
	DBPath          string        `mapstructure:"db_path"`
	VectorDBPath    string        `mapstructure:"vector_db_path"`
	EmbedURL        string        `mapstructure:"embed_url"`
	VectorDimension int           `mapstructure:"embed_dim"`
	ModelID         string        `mapstructure:"model_id"`
	TargetURL       string        `mapstructure:"target_url"`
	GRPCHost        string        `mapstructure:"grpc_host"`
	Transport       string        `mapstructure:"transport"`
	Insecure        bool          `mapstructure:"insecure"`
	Timeout         time.Duration `mapstructure:"timeout"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
	Tolerance       float64       `mapstructure:"tolerance"`
	Workers         int           `mapstructure:"workers"`
}

// Params represents the parameters needed to create configuration. Non-empty
// named values win over everything viper resolves.
type Params struct {
	fx.In

	Viper    *viper.Viper `optional:"true"`
	DBPath   string       `name:"dbPath"   optional:"true"`
	EmbedURL string       `name:"embedURL" optional:"true"`
}

// SetDefaults registers every key, which also lets AutomaticEnv see them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db_path", DefaultDBPath)
	v.SetDefault("vector_db_path", "")
	v.SetDefault("embed_url", DefaultEmbedURL)
	v.SetDefault("embed_dim", 0)
	v.SetDefault("model_id", "")
	v.SetDefault("target_url", "")
	v.SetDefault("grpc_host", "")
	v.SetDefault("transport", DefaultTransport)
	v.SetDefault("insecure", false)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("tolerance", DefaultTolerance)
	v.SetDefault("workers", 1)
}

// NewViper layers an optional config file over EMBEDCHECK_* environment
// variables and defaults. A .env file in the working directory is loaded first.
func NewViper(configFile string) (*viper.Viper, error) {
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	return v, nil
}

// FromViper materializes and validates a Config.
func FromViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &config, config.Validate()
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Transport {
	case "http", "grpc":
	default:
		errs = append(errs, fmt.Errorf("transport must be http or grpc, got %q", c.Transport))
	}
	if c.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("tolerance must be positive, got %g", c.Tolerance))
	}
	if c.VectorDimension < 0 {
		errs = append(errs, fmt.Errorf("embed_dim must not be negative, got %d", c.VectorDimension))
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return errors.Join(errs...)
}

// Target is the address of the service under test for the configured
// transport.
func (c *Config) Target() string {
	if c.Transport == "grpc" {
		return c.GRPCHost
	}
	return c.TargetURL
}

// NewConfig creates a new configuration with defaults
func NewConfig(params Params) (*Config, error) {
	v := params.Viper
	if v == nil {
		var err error
		if v, err = NewViper(""); err != nil {
			return nil, err
		}
	}
	config, err := FromViper(v)
	if err != nil {
		return nil, err
	}

	if params.DBPath != "" {
		config.DBPath = params.DBPath
	}
	if params.EmbedURL != "" {
		config.EmbedURL = params.EmbedURL
	}
	return config, nil
}

// Module provides configuration for the application
var Module = fx.Module("config",
	fx.Provide(NewConfig),
)
