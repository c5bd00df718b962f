// Package config loads qaforge settings from defaults, an optional YAML file,
// a .env file, QAFORGE_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// QAFORGE_SCHEDULER_CONCURRENCY
const EnvPrefix = "QAFORGE"

// Config is the complete application configuration
type Config struct {
	DBPath     string `mapstructure:"db_path" validate:"required"`
	StatusAddr string `mapstructure:"status_addr"`

	Tree       TreeConfig       `mapstructure:"tree"`
	Generation GenerationConfig `mapstructure:"generation"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Resource   ResourceConfig   `mapstructure:"resource"`
	Log        LogConfig        `mapstructure:"log"`
}

// TreeConfig filters the files a run visits
type TreeConfig struct {
	MaxFileSize   int64    `mapstructure:"max_file_size" validate:"gte=0"`
	Extensions    []string `mapstructure:"extensions"`
	SkipDirs      []string `mapstructure:"skip_dirs"`
	IncludeHidden bool     `mapstructure:"include_hidden"`
}

// GenerationConfig selects the backend and shapes requests
type GenerationConfig struct {
	Backend             string        `mapstructure:"backend" validate:"oneof=openai ollama local"`
	BaseURL             string        `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey              string        `mapstructure:"api_key"`
	Model               string        `mapstructure:"model"`
	ModelLabel          string        `mapstructure:"model_label"`
	Temperature         float64       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	QuestionsPerSegment int           `mapstructure:"questions_per_segment" validate:"min=1,max=50"`
	MaxAnswerTokens     int           `mapstructure:"max_answer_tokens" validate:"min=1"`
	ContextWindow       int           `mapstructure:"context_window" validate:"min=256"`
	PromptMargin        int           `mapstructure:"prompt_margin" validate:"gte=0"`
	QuestionTimeout     time.Duration `mapstructure:"question_timeout" validate:"gt=0"`
	AnswerTimeout       time.Duration `mapstructure:"answer_timeout" validate:"gt=0"`
	ScaleTimeouts       bool          `mapstructure:"scale_timeouts"`
	MinQuestionLength   int           `mapstructure:"min_question_length" validate:"gte=0"`
	MaxQuestionLength   int           `mapstructure:"max_question_length" validate:"gtefield=MinQuestionLength"`
	PromptDir           string        `mapstructure:"prompt_dir"`
	Theme               string        `mapstructure:"theme"`
	RequestsPerSecond   float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	QuestionCacheSize   int           `mapstructure:"question_cache_size" validate:"gte=0"`
}

// RetryConfig is the per-operation retry policy
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1,max=10"`
	BaseDelay   time.Duration `mapstructure:"base_delay" validate:"gt=0"`
	MaxDelay    time.Duration `mapstructure:"max_delay" validate:"gtefield=BaseDelay"`
	Jitter      float64       `mapstructure:"jitter" validate:"gte=0,lte=1"`
}

// BreakerConfig is the circuit breaker shared by all generation calls
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold" validate:"min=1"`
	Cooldown         time.Duration `mapstructure:"cooldown" validate:"gt=0"`
	MaxCooldown      time.Duration `mapstructure:"max_cooldown" validate:"gtefield=Cooldown"`
}

// SchedulerConfig bounds concurrency and progress flushing
type SchedulerConfig struct {
	Concurrency          int           `mapstructure:"concurrency" validate:"min=1,max=10"`
	PerFileParallelism   int           `mapstructure:"per_file_parallelism" validate:"min=1"`
	MaxInflightCalls     int           `mapstructure:"max_inflight_calls" validate:"min=1"`
	FlushEvery           int           `mapstructure:"flush_every" validate:"min=1"`
	FlushInterval        time.Duration `mapstructure:"flush_interval" validate:"gt=0"`
	ResourcePollInterval time.Duration `mapstructure:"resource_poll_interval" validate:"gt=0"`
}

// ResourceConfig sets the admission predicates
type ResourceConfig struct {
	MinBatteryPercent    int `mapstructure:"min_battery_percent" validate:"gte=0,lte=100"`
	ResumeBatteryPercent int `mapstructure:"resume_battery_percent" validate:"gtefield=MinBatteryPercent,lte=100"`
	MaxHeapMB            int `mapstructure:"max_heap_mb" validate:"gte=0"`
}

// LogConfig configures the process logger
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// flagKeys maps command-line flag names to configuration keys
var flagKeys = map[string]string{
	"db":          "db_path",
	"backend":     "generation.backend",
	"base-url":    "generation.base_url",
	"model":       "generation.model",
	"theme":       "generation.theme",
	"questions":   "generation.questions_per_segment",
	"concurrency": "scheduler.concurrency",
	"log-level":   "log.level",
	"log-format":  "log.format",
	"status-addr": "status_addr",
}

// SetDefaults registers every key with its default value. Keys must be
// registered for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	v.SetDefault("db_path", filepath.Join(home, ".qaforge", "qaforge.db"))
	v.SetDefault("status_addr", "")

	v.SetDefault("tree.max_file_size", 5*1024*1024)
	v.SetDefault("tree.extensions", []string{})
	v.SetDefault("tree.skip_dirs", []string{})
	v.SetDefault("tree.include_hidden", false)

	v.SetDefault("generation.backend", "ollama")
	v.SetDefault("generation.base_url", "http://localhost:11434")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.model", "")
	v.SetDefault("generation.model_label", "")
	v.SetDefault("generation.temperature", 0.7)
	v.SetDefault("generation.questions_per_segment", 5)
	v.SetDefault("generation.max_answer_tokens", 1024)
	v.SetDefault("generation.context_window", 4096)
	v.SetDefault("generation.prompt_margin", 512)
	v.SetDefault("generation.question_timeout", 300*time.Second)
	v.SetDefault("generation.answer_timeout", 300*time.Second)
	v.SetDefault("generation.scale_timeouts", true)
	v.SetDefault("generation.min_question_length", 20)
	v.SetDefault("generation.max_question_length", 300)
	v.SetDefault("generation.prompt_dir", "")
	v.SetDefault("generation.theme", "")
	v.SetDefault("generation.requests_per_second", 0.0)
	v.SetDefault("generation.question_cache_size", 256)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", time.Second)
	v.SetDefault("retry.max_delay", 30*time.Second)
	v.SetDefault("retry.jitter", 0.2)

	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.cooldown", 30*time.Second)
	v.SetDefault("breaker.max_cooldown", 10*time.Minute)

	v.SetDefault("scheduler.concurrency", 3)
	v.SetDefault("scheduler.per_file_parallelism", 2)
	v.SetDefault("scheduler.max_inflight_calls", 4)
	v.SetDefault("scheduler.flush_every", 10)
	v.SetDefault("scheduler.flush_interval", 5*time.Second)
	v.SetDefault("scheduler.resource_poll_interval", 30*time.Second)

	v.SetDefault("resource.min_battery_percent", 15)
	v.SetDefault("resource.resume_battery_percent", 25)
	v.SetDefault("resource.max_heap_mb", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Options controls where Load looks for settings
type Options struct {
	File  string         // explicit config file; empty searches ./qaforge.yaml and ~/.qaforge/
	Flags *pflag.FlagSet // bound flags override every other source when set
}

// Load reads and validates the configuration
func Load(opts Options) (*Config, error) {
	// A missing .env is not an error; variables already set win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	SetDefaults(v)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("qaforge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".qaforge"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	if strings.HasPrefix(c.DBPath, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			c.DBPath = filepath.Join(home, c.DBPath[2:])
		}
	}
	c.Generation.Backend = strings.ToLower(c.Generation.Backend)
	if c.Generation.APIKey == "" && c.Generation.Backend == "openai" {
		c.Generation.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	for i, ext := range c.Tree.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Tree.Extensions[i] = ext
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks value ranges and cross-field constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Generation.Backend != "local" && c.Generation.BaseURL == "" {
		return fmt.Errorf("invalid configuration: generation.base_url is required for backend %q", c.Generation.Backend)
	}
	if c.Generation.ContextWindow-c.Generation.MaxAnswerTokens <= c.Generation.PromptMargin {
		return fmt.Errorf("invalid configuration: context_window %d leaves no room after max_answer_tokens %d and prompt_margin %d",
			c.Generation.ContextWindow, c.Generation.MaxAnswerTokens, c.Generation.PromptMargin)
	}
	return nil
}
