package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validate 校验整份配置，返回收集到的所有问题。
func Validate(cfg *Config) error {
	var errs ValidationErrors

	addError := func(field, message string) {
		errs = append(errs, ValidationError{Field: field, Message: message})
	}

	if cfg.Run.Workers < 1 {
		addError("run.workers", "must be at least 1")
	}
	switch cfg.Run.OnFailure {
	case "abort", "skip_downstream":
	default:
		addError("run.on_failure", fmt.Sprintf("must be 'abort' or 'skip_downstream', got %q", cfg.Run.OnFailure))
	}
	switch cfg.Run.SchemaMode {
	case "strict", "lenient":
	default:
		addError("run.schema_mode", fmt.Sprintf("must be 'strict' or 'lenient', got %q", cfg.Run.SchemaMode))
	}
	if cfg.Run.TaskTimeout <= 0 {
		addError("run.task_timeout", "must be positive")
	}
	if cfg.Run.MaxToolAttempts < 1 {
		addError("run.max_tool_attempts", "must be at least 1")
	}

	if cfg.RateLimit.MaxCalls < 0 {
		addError("rate_limit.max_calls", "must not be negative")
	}
	if cfg.RateLimit.MaxCalls > 0 && cfg.RateLimit.Window <= 0 {
		addError("rate_limit.window", "must be positive when rate limiting is enabled")
	}
	if cfg.RateLimit.MaxWait < 0 {
		addError("rate_limit.max_wait", "must not be negative")
	}

	if cfg.Cache.Enabled {
		switch cfg.Cache.Backend {
		case "memory", "redis":
		default:
			addError("cache.backend", fmt.Sprintf("must be 'memory' or 'redis', got %q", cfg.Cache.Backend))
		}
		if cfg.Cache.TTL <= 0 {
			addError("cache.ttl", "must be positive")
		}
		if cfg.Cache.Backend == "redis" {
			if cfg.Cache.Redis.Host == "" {
				addError("cache.redis.host", "required for the redis backend")
			}
			if cfg.Cache.Redis.Port <= 0 || cfg.Cache.Redis.Port > 65535 {
				addError("cache.redis.port", "must be a valid port")
			}
		}
	}

	if cfg.Output.Dir == "" && (cfg.Output.JSON || cfg.Output.Text) {
		addError("output.dir", "required when file artifacts are enabled")
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		addError("logging.level", fmt.Sprintf("must be one of debug/info/warn/error, got %q", cfg.Logging.Level))
	}
	switch cfg.Logging.Format {
	case "json", "console":
	default:
		addError("logging.format", fmt.Sprintf("must be 'json' or 'console', got %q", cfg.Logging.Format))
	}
	switch cfg.Logging.Output {
	case "stdout", "file", "both":
	default:
		addError("logging.output", fmt.Sprintf("must be one of stdout/file/both, got %q", cfg.Logging.Output))
	}
	if (cfg.Logging.Output == "file" || cfg.Logging.Output == "both") && cfg.Logging.FilePath == "" {
		addError("logging.file_path", "required when logging to a file")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
