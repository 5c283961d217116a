// Package config loads the application configuration of the assistantstream
// command: defaults, then an optional YAML file, then ASSISTANTSTREAM_*
// environment variables.
//
//	cfg, err := config.Load("assistantstream.yaml")
//
// Nested fields map to underscore joined env names, for example
// ASSISTANTSTREAM_SERVER_ADDR or ASSISTANTSTREAM_RUN_GRACE_PERIOD.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/assistantstream/encoding"
	"github.com/hupe1980/assistantstream/logging"
)

// DefaultEnvPrefix prefixes every environment override.
const DefaultEnvPrefix = "ASSISTANTSTREAM"

// Config is the complete application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" env:"SERVER"`
	Run     RunConfig     `yaml:"run" env:"RUN"`
	Agent   AgentConfig   `yaml:"agent" env:"AGENT"`
	Log     LogConfig     `yaml:"log" env:"LOG"`
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr              string        `yaml:"addr" env:"ADDR"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	DefaultFormat     string        `yaml:"default_format" env:"DEFAULT_FORMAT"`
	// ThreadHistory is the number of messages kept per conversation thread.
	// Zero disables threads.
	ThreadHistory int `yaml:"thread_history" env:"THREAD_HISTORY"`
}

// RunConfig configures run lifecycle behavior.
type RunConfig struct {
	// GracePeriod is how long an early-closed run may finish cooperatively
	// before it is cancelled.
	GracePeriod time.Duration `yaml:"grace_period" env:"GRACE_PERIOD"`
}

// AgentConfig configures the demo chat agent.
type AgentConfig struct {
	Name             string        `yaml:"name" env:"NAME"`
	Provider         string        `yaml:"provider" env:"PROVIDER"` // mock, openai, anthropic
	Model            string        `yaml:"model" env:"MODEL"`
	APIKey           string        `yaml:"api_key" env:"API_KEY"`
	Instruction      string        `yaml:"instruction" env:"INSTRUCTION"`
	Temperature      float64       `yaml:"temperature" env:"TEMPERATURE"`
	MaxSteps         int           `yaml:"max_steps" env:"MAX_STEPS"`
	MaxParallelTools int           `yaml:"max_parallel_tools" env:"MAX_PARALLEL_TOOLS"`
	ToolTimeout      time.Duration `yaml:"tool_timeout" env:"TOOL_TIMEOUT"`
	Streaming        bool          `yaml:"streaming" env:"STREAMING"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"` // json or text
}

// MetricsConfig configures the Prometheus recorder.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			DefaultFormat:     encoding.FormatDataStream,
			ThreadHistory:     200,
		},
		Run: RunConfig{GracePeriod: 50 * time.Millisecond},
		Agent: AgentConfig{
			Name:        "assistant",
			Provider:    "mock",
			Temperature: 0.7,
			MaxSteps:    8,
			ToolTimeout: 15 * time.Second,
			Streaming:   true,
		},
		Log:     LogConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, Namespace: "assistantstream"},
	}
}

// LoadOptions configures Load.
type LoadOptions struct {
	EnvPrefix string
	// LookupEnv resolves environment variables; defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and environment overrides, then validates it.
func Load(path string, optFns ...func(o *LoadOptions)) (Config, error) {
	opts := LoadOptions{EnvPrefix: DefaultEnvPrefix, LookupEnv: os.LookupEnv}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := setFieldsFromEnv(reflect.ValueOf(&cfg).Elem(), opts.EnvPrefix, opts.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if _, err := encoding.ForFormat(c.Server.DefaultFormat); err != nil {
		errs = append(errs, fmt.Errorf("server.default_format: %w", err))
	}
	if c.Server.ThreadHistory < 0 {
		errs = append(errs, errors.New("server.thread_history must not be negative"))
	}
	if c.Run.GracePeriod < 0 {
		errs = append(errs, errors.New("run.grace_period must not be negative"))
	}
	switch c.Agent.Provider {
	case "mock", "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("agent.provider %q is not one of mock, openai, anthropic", c.Agent.Provider))
	}
	if c.Agent.MaxSteps < 1 {
		errs = append(errs, errors.New("agent.max_steps must be at least 1"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, text", c.Log.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

func setFieldsFromEnv(v reflect.Value, prefix string, lookup func(string) (string, bool)) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tag := t.Field(i).Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + "_" + tag

		if field.Kind() == reflect.Struct {
			if err := setFieldsFromEnv(field, key, lookup); err != nil {
				return err
			}
			continue
		}

		value, ok := lookup(key)
		if !ok || value == "" {
			continue
		}
		if err := setFieldValue(field, value); err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}

// ParseLogLevel returns the configured log level.
func (c LogConfig) ParseLogLevel() logging.LogLevel {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		return logging.LogLevelInfo
	}
	return level
}
