package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1, cfg.Run.Workers)
	assert.Equal(t, "skip_downstream", cfg.Run.OnFailure)
	assert.Equal(t, "lenient", cfg.Run.SchemaMode)
	assert.Equal(t, 10*time.Minute, cfg.Run.TaskTimeout.Std())
	assert.Equal(t, 10, cfg.RateLimit.MaxCalls)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window.Std())
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL.Std())
	assert.Equal(t, "output", cfg.Output.Dir)

	require.NoError(t, Validate(cfg))
}

func TestLoad_FromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
run:
  workers: 3
  on_failure: skip_downstream
  task_timeout: 2m
rate_limit:
  max_calls: 5
  window: 30s
cache:
  backend: redis
  ttl: 1h
  redis:
    host: cache.internal
    port: 6380
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Run.Workers)
	assert.Equal(t, "skip_downstream", cfg.Run.OnFailure)
	assert.Equal(t, 2*time.Minute, cfg.Run.TaskTimeout.Std())
	assert.Equal(t, 5, cfg.RateLimit.MaxCalls)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window.Std())
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, time.Hour, cfg.Cache.TTL.Std())
	assert.Equal(t, "cache.internal", cfg.Cache.Redis.Host)
	assert.Equal(t, 6380, cfg.Cache.Redis.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// 未覆盖的字段保持默认值
	assert.Equal(t, "lenient", cfg.Run.SchemaMode)
	assert.Equal(t, "output", cfg.Output.Dir)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Run.Workers)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CREW_RUN_WORKERS", "4")
	t.Setenv("CREW_RATE_WINDOW", "45s")
	t.Setenv("CREW_CACHE_ENABLED", "false")
	t.Setenv("CREW_OUTPUT_DIR", "/tmp/artifacts")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Run.Workers)
	assert.Equal(t, 45*time.Second, cfg.RateLimit.Window.Std())
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "/tmp/artifacts", cfg.Output.Dir)
}

func TestLoad_CmdOverridesBeatEnv(t *testing.T) {
	t.Setenv("CREW_RUN_WORKERS", "4")

	cfg, err := NewLoader().
		WithCmdArgs(map[string]string{"run.workers": "8", "run.task_timeout": "90s"}).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Run.Workers)
	assert.Equal(t, 90*time.Second, cfg.Run.TaskTimeout.Std())
}

func TestLoad_UnknownCmdPath(t *testing.T) {
	_, err := NewLoader().WithCmdArgs(map[string]string{"run.bogus": "1"}).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "未知的配置路径")
}

func TestLoad_InvalidYAMLDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("run:\n  task_timeout: fast\n"), 0o644))

	_, err := NewLoader().WithConfigPath(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "无效的时间格式")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Run.Workers = 0
	cfg.Run.OnFailure = "explode"
	cfg.Cache.Backend = "disk"
	cfg.Logging.Level = "verbose"

	err := Validate(cfg)
	require.Error(t, err)

	var errs ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.Len(t, errs, 4)
	assert.Contains(t, err.Error(), "run.workers")
	assert.Contains(t, err.Error(), "run.on_failure")
	assert.Contains(t, err.Error(), "cache.backend")
	assert.Contains(t, err.Error(), "logging.level")
}

func TestValidate_RedisBackendRequiresHost(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Backend = "redis"
	cfg.Cache.Redis.Host = ""

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.redis.host")
}

func TestValidate_FileLoggingRequiresPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Output = "file"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.file_path")
}

func TestValidate_ZeroRateLimitDisables(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit.MaxCalls = 0
	cfg.RateLimit.Window = 0
	assert.NoError(t, Validate(cfg))
}
