package config

import (
	"github.com/dshills/qaforge/internal/chunker"
	"github.com/dshills/qaforge/internal/filetree"
	"github.com/dshills/qaforge/internal/generation"
	"github.com/dshills/qaforge/internal/resilience"
	"github.com/dshills/qaforge/internal/scheduler"
)

// WalkerOptions returns the file filter, falling back to the stock extension
// and skip lists when none are configured
func (c *Config) WalkerOptions() filetree.Options {
	opts := filetree.DefaultOptions()
	if len(c.Tree.Extensions) > 0 {
		opts.Extensions = c.Tree.Extensions
	}
	if len(c.Tree.SkipDirs) > 0 {
		opts.SkipDirs = c.Tree.SkipDirs
	}
	if c.Tree.MaxFileSize > 0 {
		opts.MaxFileSize = c.Tree.MaxFileSize
	}
	opts.IncludeHidden = c.Tree.IncludeHidden
	return opts
}

// BackendConfig returns the settings for generation.NewBackend
func (c *Config) BackendConfig() generation.BackendConfig {
	g := c.Generation
	return generation.BackendConfig{
		Backend:           g.Backend,
		BaseURL:           g.BaseURL,
		APIKey:            g.APIKey,
		Model:             g.Model,
		PromptDir:         g.PromptDir,
		Theme:             g.Theme,
		RequestsPerSecond: g.RequestsPerSecond,
		QuestionCacheSize: g.QuestionCacheSize,
	}
}

// ClientConfig returns the settings for generation.NewClient
func (c *Config) ClientConfig() generation.ClientConfig {
	g := c.Generation
	return generation.ClientConfig{
		QuestionsPerSegment: g.QuestionsPerSegment,
		Temperature:         g.Temperature,
		MaxAnswerTokens:     g.MaxAnswerTokens,
		QuestionTimeout:     g.QuestionTimeout,
		AnswerTimeout:       g.AnswerTimeout,
		ScaleTimeouts:       g.ScaleTimeouts,
		Filter: generation.QuestionFilter{
			MinLength: g.MinQuestionLength,
			MaxLength: g.MaxQuestionLength,
		},
		ModelLabel: g.ModelLabel,
	}
}

// ChunkerConfig returns the segmenting settings
func (c *Config) ChunkerConfig() chunker.Config {
	cfg := chunker.DefaultConfig()
	cfg.Margin = c.Generation.PromptMargin
	return cfg
}

// RetryConfig returns the per-operation retry settings
func (c *Config) RetryConfig() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = c.Retry.MaxAttempts
	cfg.BaseDelay = c.Retry.BaseDelay
	cfg.MaxDelay = c.Retry.MaxDelay
	cfg.Jitter = c.Retry.Jitter
	return cfg
}

// BreakerConfig returns the circuit breaker settings
func (c *Config) BreakerConfig() resilience.BreakerConfig {
	return resilience.BreakerConfig{
		FailureThreshold: c.Breaker.FailureThreshold,
		Cooldown:         c.Breaker.Cooldown,
		MaxCooldown:      c.Breaker.MaxCooldown,
	}
}

// SchedulerConfig returns the batch scheduler settings
func (c *Config) SchedulerConfig() scheduler.Config {
	s := c.Scheduler
	return scheduler.Config{
		Concurrency:          s.Concurrency,
		PerFileParallelism:   s.PerFileParallelism,
		MaxInflightCalls:     s.MaxInflightCalls,
		FlushEvery:           s.FlushEvery,
		FlushInterval:        s.FlushInterval,
		ResourcePollInterval: s.ResourcePollInterval,
		ContextWindow:        c.Generation.ContextWindow,
		MaxAnswerTokens:      c.Generation.MaxAnswerTokens,
	}
}
