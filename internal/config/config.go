// Package config 提供引擎运行配置的加载：默认值 < YAML 文件 < 环境变量 < 命令行参数。
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete runtime configuration for the engine.
type Config struct {
	Run       RunConfig       `yaml:"run"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
	Output    OutputConfig    `yaml:"output"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RunConfig holds task scheduling configuration.
type RunConfig struct {
	// Workers 并发执行任务的 worker 数，1 表示严格串行
	Workers int `yaml:"workers" env:"CREW_RUN_WORKERS"`
	// OnFailure 失败策略: abort | skip_downstream
	OnFailure string `yaml:"on_failure" env:"CREW_RUN_ON_FAILURE"`
	// SchemaMode 输出校验策略: strict | lenient
	SchemaMode string `yaml:"schema_mode" env:"CREW_RUN_SCHEMA_MODE"`
	// TaskTimeout 单任务默认超时
	TaskTimeout Duration `yaml:"task_timeout" env:"CREW_RUN_TASK_TIMEOUT"`
	// MaxToolAttempts 工具传输失败的最大尝试次数
	MaxToolAttempts int `yaml:"max_tool_attempts" env:"CREW_RUN_MAX_TOOL_ATTEMPTS"`
}

// RateLimitConfig holds the shared tool-call rate limiter configuration.
type RateLimitConfig struct {
	// MaxCalls 窗口内允许的工具调用数，0 表示不限流
	MaxCalls int `yaml:"max_calls" env:"CREW_RATE_MAX_CALLS"`
	// Window 滑动窗口长度
	Window Duration `yaml:"window" env:"CREW_RATE_WINDOW"`
	// MaxWait 等待配额的最长时间，0 表示无限等待
	MaxWait Duration `yaml:"max_wait" env:"CREW_RATE_MAX_WAIT"`
}

// CacheConfig holds the tool response cache configuration.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" env:"CREW_CACHE_ENABLED"`
	// Backend: memory | redis
	Backend string   `yaml:"backend" env:"CREW_CACHE_BACKEND"`
	TTL     Duration `yaml:"ttl" env:"CREW_CACHE_TTL"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings for the redis cache backend.
type RedisConfig struct {
	Host     string `yaml:"host" env:"CREW_REDIS_HOST"`
	Port     int    `yaml:"port" env:"CREW_REDIS_PORT"`
	Password string `yaml:"password" env:"CREW_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"CREW_REDIS_DB"`
}

// OutputConfig holds run artifact output configuration.
type OutputConfig struct {
	// Dir 产物输出目录
	Dir string `yaml:"dir" env:"CREW_OUTPUT_DIR"`
	// Console 是否打印控制台摘要
	Console bool `yaml:"console" env:"CREW_OUTPUT_CONSOLE"`
	// JSON 是否写 JSON 产物
	JSON bool `yaml:"json" env:"CREW_OUTPUT_JSON"`
	// Text 是否写文本叙述产物
	Text bool `yaml:"text" env:"CREW_OUTPUT_TEXT"`
	// Color 控制台彩色输出
	Color bool `yaml:"color" env:"CREW_OUTPUT_COLOR"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" env:"CREW_LOG_LEVEL"`
	Format   string `yaml:"format" env:"CREW_LOG_FORMAT"`
	Output   string `yaml:"output" env:"CREW_LOG_OUTPUT"`
	FilePath string `yaml:"file_path" env:"CREW_LOG_FILE_PATH"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Run: RunConfig{
			Workers:         1,
			OnFailure:       "skip_downstream",
			SchemaMode:      "lenient",
			TaskTimeout:     Duration(10 * time.Minute),
			MaxToolAttempts: 3,
		},
		RateLimit: RateLimitConfig{
			MaxCalls: 10,
			Window:   Duration(time.Minute),
			MaxWait:  Duration(2 * time.Minute),
		},
		Cache: CacheConfig{
			Enabled: true,
			Backend: "memory",
			TTL:     Duration(15 * time.Minute),
			Redis: RedisConfig{
				Host: "localhost",
				Port: 6379,
			},
		},
		Output: OutputConfig{
			Dir:     "output",
			Console: true,
			JSON:    true,
			Text:    true,
			Color:   true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
	}
}

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	cmdArgs    map[string]string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		cmdArgs: make(map[string]string),
	}
}

// WithConfigPath sets the path to the YAML configuration file.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithCmdArgs sets command-line arguments for configuration override.
func (l *Loader) WithCmdArgs(args map[string]string) *Loader {
	l.cmdArgs = args
	return l
}

// Load loads configuration from all sources with proper precedence:
// defaults < YAML file < environment variables < command-line flags
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("从文件加载配置失败: %w", err)
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("应用环境变量覆盖失败: %w", err)
	}

	if err := l.applyCmdOverrides(cfg); err != nil {
		return nil, fmt.Errorf("应用命令行参数覆盖失败: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist, use defaults
		}
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	return l.applyEnvToStruct(reflect.ValueOf(cfg).Elem())
}

// applyEnvToStruct recursively applies environment variables to struct fields.
func (l *Loader) applyEnvToStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct {
			if err := l.applyEnvToStruct(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("从环境变量 %s 设置字段 %s 失败: %w", envTag, fieldType.Name, err)
		}
	}

	return nil
}

// applyCmdOverrides applies command-line argument overrides to the configuration.
func (l *Loader) applyCmdOverrides(cfg *Config) error {
	for key, value := range l.cmdArgs {
		if err := l.setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("设置配置值 %s 失败: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a configuration value by dot-notation path,
// e.g. "run.workers" or "rate_limit.max_calls".
func (l *Loader) setConfigValue(cfg *Config, path, value string) error {
	parts := strings.Split(path, ".")
	v := reflect.ValueOf(cfg).Elem()

	for i, part := range parts {
		fieldName := strings.ReplaceAll(part, "_", "")

		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName) || strings.EqualFold(name, part)
		})

		if !field.IsValid() {
			return fmt.Errorf("未知的配置路径: %s", path)
		}

		if i == len(parts)-1 {
			return setFieldValue(field, value)
		}

		if field.Kind() != reflect.Struct {
			return fmt.Errorf("期望 %s 是结构体，实际是 %s", part, field.Kind())
		}
		v = field
	}

	return nil
}

// setFieldValue sets a reflect.Value from a string value.
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("无法设置字段")
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// Durations accept "30s" style values
		if field.Type() == reflect.TypeOf(Duration(0)) || field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("无效的时间格式: %w", err)
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("无效的整数: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("无效的浮点数: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("无效的布尔值: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		} else {
			return fmt.Errorf("不支持的切片类型: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("不支持的字段类型: %s", field.Kind())
	}

	return nil
}
