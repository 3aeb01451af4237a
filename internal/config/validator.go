package config

import (
	"fmt"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "ui.batch_size")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateUI()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateFeed()...)
	errors = append(errors, c.validateMetrics()...)

	return errors
}

// validateUI validates the UIConfig
func (c *Config) validateUI() []ValidationError {
	var errors []ValidationError

	const maxQueueCapacity = 100000
	if c.UI.QueueCapacity < 1 || c.UI.QueueCapacity > maxQueueCapacity {
		errors = append(errors, ValidationError{
			Field:   "ui.queue_capacity",
			Value:   c.UI.QueueCapacity,
			Message: fmt.Sprintf("must be between 1 and %d", maxQueueCapacity),
		})
	}

	if c.UI.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "ui.batch_size",
			Value:   c.UI.BatchSize,
			Message: "must be at least 1",
		})
	} else if c.UI.QueueCapacity >= 1 && c.UI.BatchSize > c.UI.QueueCapacity {
		errors = append(errors, ValidationError{
			Field:   "ui.batch_size",
			Value:   c.UI.BatchSize,
			Message: fmt.Sprintf("must not exceed ui.queue_capacity (%d)", c.UI.QueueCapacity),
		})
	}

	if c.UI.BatchYieldInterval < 0 {
		errors = append(errors, ValidationError{
			Field:   "ui.batch_yield_interval",
			Value:   c.UI.BatchYieldInterval,
			Message: "must be non-negative",
		})
	}

	const maxDebounce = 5 * time.Second
	if c.UI.ScrollDebounceWindow <= 0 || c.UI.ScrollDebounceWindow > maxDebounce {
		errors = append(errors, ValidationError{
			Field:   "ui.scroll_debounce_window",
			Value:   c.UI.ScrollDebounceWindow,
			Message: fmt.Sprintf("must be positive and at most %s", maxDebounce),
		})
	}

	if c.UI.ClearDelay <= 0 {
		errors = append(errors, ValidationError{
			Field:   "ui.clear_delay",
			Value:   c.UI.ClearDelay,
			Message: "must be positive",
		})
	}

	if c.UI.DedupTTL < 0 {
		errors = append(errors, ValidationError{
			Field:   "ui.dedup_ttl",
			Value:   c.UI.DedupTTL,
			Message: "must be non-negative (0 keeps identities for the whole session)",
		})
	}

	if c.UI.MaxNotices < 1 {
		errors = append(errors, ValidationError{
			Field:   "ui.max_notices",
			Value:   c.UI.MaxNotices,
			Message: "must be at least 1",
		})
	}

	if c.UI.ChatHistory < 1 {
		errors = append(errors, ValidationError{
			Field:   "ui.chat_history",
			Value:   c.UI.ChatHistory,
			Message: "must be at least 1",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateFeed validates the FeedConfig
func (c *Config) validateFeed() []ValidationError {
	var errors []ValidationError

	patterns := []struct {
		field   string
		pattern string
	}{
		{"feed.main_agent", c.Feed.MainAgent},
		{"feed.planner", c.Feed.Planner},
		{"feed.workers", c.Feed.Workers},
	}
	for i, p := range c.Feed.Hidden {
		patterns = append(patterns, struct {
			field   string
			pattern string
		}{fmt.Sprintf("feed.hidden[%d]", i), p})
	}

	for _, p := range patterns {
		if p.pattern == "" {
			errors = append(errors, ValidationError{
				Field:   p.field,
				Value:   p.pattern,
				Message: "must not be empty",
			})
			continue
		}
		if _, err := glob.Compile(p.pattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   p.field,
				Value:   p.pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}

	if c.Feed.Speed < 0 {
		errors = append(errors, ValidationError{
			Field:   "feed.speed",
			Value:   c.Feed.Speed,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateMetrics validates the MetricsConfig
func (c *Config) validateMetrics() []ValidationError {
	var errors []ValidationError

	if !c.Metrics.Enabled {
		return errors
	}
	if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
		errors = append(errors, ValidationError{
			Field:   "metrics.addr",
			Value:   c.Metrics.Addr,
			Message: "must be a host:port listen address",
		})
	}

	return errors
}
