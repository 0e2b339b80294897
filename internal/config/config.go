package config

import (
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/tempstation/internal/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix  = "TEMPSTATION"
	DefaultConfigFile = "/etc/tempstation.toml"
	DefaultEnvFile    = ".env"
	DefaultLogLevel   = "info"

	DefaultBaseURL         = "https://api.weatherapi.com/v1/"
	DefaultRefreshInterval = 5
	DefaultRetryInterval   = 10
	DefaultMaxRetries      = 10
	DefaultBufferSize      = 2048
	DefaultChunkSize       = 4096
	DefaultTimeout         = 20000
)

type Config struct {
	Weather WeatherConfig `mapstructure:"weather"`
	Server  ServerConfig  `mapstructure:"server"`
	Network NetworkConfig `mapstructure:"network"`
	Sensor  SensorConfig  `mapstructure:"sensor"`
	Journal JournalConfig `mapstructure:"journal"`
	Log     LogConfig     `mapstructure:"log"`
	Debug   bool          `mapstructure:"debug"`
	Verbose bool          `mapstructure:"verbose"`
}

type WeatherConfig struct {
	BaseURL  string `mapstructure:"base_url" validate:"required,url"`
	APIKey   string `mapstructure:"api_key" validate:"required"`
	Location string `mapstructure:"location" validate:"required"`
	CACert   string `mapstructure:"ca_cert"`
	// RefreshInterval is in minutes
	RefreshInterval int `mapstructure:"refresh_interval" validate:"gt=0"`
	// RetryInterval is in seconds
	RetryInterval int `mapstructure:"retry_interval" validate:"gte=0"`
	MaxRetries    int `mapstructure:"max_retries" validate:"gt=0"`
	BufferSize    int `mapstructure:"buffer_size" validate:"gt=0"`
	ChunkSize     int `mapstructure:"chunk_size" validate:"gt=0"`
	// Timeout is in milliseconds
	Timeout int `mapstructure:"timeout" validate:"gt=0"`
}

type ServerConfig struct {
	Listen string `mapstructure:"listen" validate:"required"`
	Index  string `mapstructure:"index"`
}

type NetworkConfig struct {
	ProbeAddress string `mapstructure:"probe_address"`
	// ProbeInterval and ProbeTimeout are in seconds
	ProbeInterval int `mapstructure:"probe_interval" validate:"gt=0"`
	ProbeTimeout  int `mapstructure:"probe_timeout" validate:"gt=0"`
}

type SensorConfig struct {
	TemperaturePath string `mapstructure:"temperature_path"`
	LightPath       string `mapstructure:"light_path"`
	LightThresholds []int  `mapstructure:"light_thresholds"`
	// Interval is in seconds
	Interval int `mapstructure:"interval" validate:"gt=0"`
	Window   int `mapstructure:"window" validate:"gt=0"`
}

type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path" validate:"required_if=Enabled true"`
	// Retention is in hours
	Retention int `mapstructure:"retention" validate:"gte=0"`
	BatchSize int `mapstructure:"batch_size" validate:"gte=0"`
	// BatchTimeout is in seconds
	BatchTimeout int `mapstructure:"batch_timeout" validate:"gte=0"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	BufferSize int    `mapstructure:"buffer_size" validate:"gt=0"`
}

var validate = validator.New()

// Load reads configuration from defaults, the config file, the environment and
// command line flags, in increasing order of precedence.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{
		envPrefix: DefaultEnvPrefix,
		envFile:   DefaultEnvFile,
		args:      os.Args[1:],
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
	}

	if err := loadEnvFile(o.envFile); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err).WithData(o.envFile)
	}

	v := viper.New()
	setDefaults(v)

	flags := pflag.NewFlagSet("tempstation", pflag.ContinueOnError)
	configFlag := flags.String("config", "", "Path to the configuration file")
	flags.Bool("debug", false, "Enable debugging mode")
	flags.Bool("verbose", false, "Enable verbose logging")
	flags.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	flags.String("log-file", "", "Append log lines to this file")
	flags.String("listen", "", "Status webserver listen address")
	flags.String("location", "", "Location query sent to the weather API")

	if err := flags.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	for key, flag := range map[string]string{
		"debug":            "debug",
		"verbose":          "verbose",
		"log.level":        "log-level",
		"log.file":         "log-file",
		"server.listen":    "listen",
		"weather.location": "location",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := resolveConfigPath(*configFlag, o)
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			if !isNotExist(err) || path != DefaultConfigFile {
				return nil, errFactory.Wrap(errors.ErrReadConfig, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("weather.base_url", DefaultBaseURL)
	v.SetDefault("weather.api_key", "")
	v.SetDefault("weather.location", "")
	v.SetDefault("weather.ca_cert", "")
	v.SetDefault("weather.refresh_interval", DefaultRefreshInterval)
	v.SetDefault("weather.retry_interval", DefaultRetryInterval)
	v.SetDefault("weather.max_retries", DefaultMaxRetries)
	v.SetDefault("weather.buffer_size", DefaultBufferSize)
	v.SetDefault("weather.chunk_size", DefaultChunkSize)
	v.SetDefault("weather.timeout", DefaultTimeout)

	v.SetDefault("server.listen", ":80")
	v.SetDefault("server.index", "")

	v.SetDefault("network.probe_address", "")
	v.SetDefault("network.probe_interval", 10)
	v.SetDefault("network.probe_timeout", 3)

	v.SetDefault("sensor.temperature_path", "")
	v.SetDefault("sensor.light_path", "")
	v.SetDefault("sensor.light_thresholds", []int{50, 200, 1000, 5000})
	v.SetDefault("sensor.interval", 30)
	v.SetDefault("sensor.window", 5)

	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.db_path", "/var/lib/tempstation/journal.db")
	v.SetDefault("journal.retention", 168)
	v.SetDefault("journal.batch_size", 10)
	v.SetDefault("journal.batch_timeout", 60)

	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.file", "")
	v.SetDefault("log.buffer_size", 4096)

	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)
}

// resolveConfigPath picks the config file: flag, then option, then
// <PREFIX>_CONFIG, then the system default. An explicitly empty
// <PREFIX>_CONFIG disables the config file.
func resolveConfigPath(flagValue string, o *options) string {
	if flagValue != "" {
		return flagValue
	}
	if o.configPath != "" {
		return o.configPath
	}
	if path, ok := os.LookupEnv(o.envPrefix + "_CONFIG"); ok {
		return path
	}
	return DefaultConfigFile
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !isNotExist(err) {
		return err
	}
	return nil
}

func isNotExist(err error) bool {
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound)
}

// Validate checks the configuration, returning a coded error describing the
// first problem found.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !LogLevel(c.Log.Level).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, FieldError{
			Field:  "log.level",
			Value:  c.Log.Level,
			Reason: "must be one of debug, info, warning, error",
		})
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errFactory.WithData(errors.ErrInvalidConfig, FieldError{
				Field:  fe.Namespace(),
				Value:  fe.Value(),
				Reason: fe.Tag(),
			})
		}
		return errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if !strings.HasSuffix(c.Weather.BaseURL, "/") {
		return errFactory.WithData(errors.ErrInvalidConfig, FieldError{
			Field:  "weather.base_url",
			Value:  c.Weather.BaseURL,
			Reason: "must end with /",
		})
	}

	for i := 1; i < len(c.Sensor.LightThresholds); i++ {
		if c.Sensor.LightThresholds[i] <= c.Sensor.LightThresholds[i-1] {
			return errFactory.WithData(errors.ErrInvalidConfig, FieldError{
				Field:  "sensor.light_thresholds",
				Value:  c.Sensor.LightThresholds,
				Reason: "must be strictly ascending",
			})
		}
	}

	return nil
}

func (w WeatherConfig) RefreshDuration() time.Duration {
	return time.Duration(w.RefreshInterval) * time.Minute
}

func (w WeatherConfig) RetryDuration() time.Duration {
	return time.Duration(w.RetryInterval) * time.Second
}

func (w WeatherConfig) TimeoutDuration() time.Duration {
	return time.Duration(w.Timeout) * time.Millisecond
}

func (n NetworkConfig) IntervalDuration() time.Duration {
	return time.Duration(n.ProbeInterval) * time.Second
}

func (n NetworkConfig) TimeoutDuration() time.Duration {
	return time.Duration(n.ProbeTimeout) * time.Second
}

// ProbeTarget returns the host:port the network monitor dials, derived from
// the weather base URL unless configured explicitly.
func (c *Config) ProbeTarget() string {
	if c.Network.ProbeAddress != "" {
		return c.Network.ProbeAddress
	}

	u, err := url.Parse(c.Weather.BaseURL)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Port() != "" {
		return u.Host
	}

	port := "443"
	if u.Scheme == "http" {
		port = "80"
	}
	return net.JoinHostPort(u.Hostname(), port)
}

func (s SensorConfig) IntervalDuration() time.Duration {
	return time.Duration(s.Interval) * time.Second
}

func (j JournalConfig) RetentionDuration() time.Duration {
	return time.Duration(j.Retention) * time.Hour
}

func (c *Config) String() string {
	return fmt.Sprintf("location=%q base_url=%q refresh=%s retry=%s max_retries=%d",
		c.Weather.Location, c.Weather.BaseURL, c.Weather.RefreshDuration(),
		c.Weather.RetryDuration(), c.Weather.MaxRetries)
}
