package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("USAGEWATCH_PROVIDER_TYPE", "mock")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != defaultAddr {
		t.Errorf("expected addr %s, got %s", defaultAddr, cfg.Server.Addr)
	}
	if cfg.Provider.Timeout != 10*time.Second {
		t.Errorf("expected 10s provider timeout, got %v", cfg.Provider.Timeout)
	}
	if cfg.Storage.Local.Type != storageSQLite || cfg.Storage.Local.Path != "usagewatch.db" {
		t.Errorf("unexpected local storage %+v", cfg.Storage.Local)
	}
	if cfg.Storage.Synced.Type != storageSQLite || cfg.Storage.Synced.Path != "" {
		t.Errorf("synced scope should share the local database by default: %+v", cfg.Storage.Synced)
	}
	if cfg.Storage.Synced.Redis.Prefix != "usagewatch:" {
		t.Errorf("unexpected redis prefix %q", cfg.Storage.Synced.Redis.Prefix)
	}
	if !cfg.Notify.Log || cfg.Notify.History != 50 || cfg.Notify.Webhook.MaxRetries != 3 || cfg.Notify.Webhook.Deadline != 15*time.Second {
		t.Errorf("unexpected notify defaults %+v", cfg.Notify)
	}
	if cfg.Schedule.Unit != time.Minute {
		t.Errorf("expected 1m schedule unit, got %v", cfg.Schedule.Unit)
	}
	if loc, err := cfg.Notify.Location(); err != nil || loc != time.Local {
		t.Errorf("expected local timezone, got %v (%v)", loc, err)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("USAGEWATCH_PROVIDER_TYPE", "mock")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != defaultAddr {
		t.Errorf("expected default addr, got %s", cfg.Server.Addr)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: 127.0.0.1:9999
provider:
  type: claude
  session_key: sk-file
  timeout: 3s
storage:
  local:
    type: memory
  synced:
    type: redis
    redis:
      addr: localhost:6379
      db: 2
notify:
  timezone: America/New_York
  webhook:
    url: http://hooks.local/usage
    secret: s3cret
schedule:
  unit: 2s
logging:
  format: text
`)
	t.Setenv("USAGEWATCH_PROVIDER_SESSION_KEY", "sk-env")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9999" {
		t.Errorf("expected file addr, got %s", cfg.Server.Addr)
	}
	if cfg.Provider.SessionKey != "sk-env" {
		t.Errorf("environment should override the file, got %q", cfg.Provider.SessionKey)
	}
	if cfg.Provider.Timeout != 3*time.Second {
		t.Errorf("expected 3s timeout, got %v", cfg.Provider.Timeout)
	}
	if cfg.Storage.Synced.Redis.Addr != "localhost:6379" || cfg.Storage.Synced.Redis.DB != 2 {
		t.Errorf("unexpected redis config %+v", cfg.Storage.Synced.Redis)
	}
	if cfg.Notify.Webhook.Secret != "s3cret" || cfg.Notify.Webhook.Timeout != 5*time.Second {
		t.Errorf("unexpected webhook config %+v", cfg.Notify.Webhook)
	}
	if cfg.Schedule.Unit != 2*time.Second {
		t.Errorf("expected 2s unit, got %v", cfg.Schedule.Unit)
	}
	if loc, _ := cfg.Notify.Location(); loc.String() != "America/New_York" {
		t.Errorf("unexpected location %v", loc)
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name        string
		envVars     map[string]string
		errorSubstr string
	}{
		{
			name:        "claude without session key",
			envVars:     map[string]string{},
			errorSubstr: "provider.session_key is required",
		},
		{
			name:        "unknown provider",
			envVars:     map[string]string{"USAGEWATCH_PROVIDER_TYPE": "openai"},
			errorSubstr: "unsupported provider.type",
		},
		{
			name:        "empty addr",
			envVars:     map[string]string{"USAGEWATCH_PROVIDER_TYPE": "mock", "USAGEWATCH_SERVER_ADDR": " "},
			errorSubstr: "server.addr cannot be empty",
		},
		{
			name:        "non-positive timeout",
			envVars:     map[string]string{"USAGEWATCH_PROVIDER_TYPE": "mock", "USAGEWATCH_PROVIDER_TIMEOUT": "0s"},
			errorSubstr: "provider.timeout must be positive",
		},
		{
			name:        "negative schedule unit",
			envVars:     map[string]string{"USAGEWATCH_PROVIDER_TYPE": "mock", "USAGEWATCH_SCHEDULE_UNIT": "-1s"},
			errorSubstr: "schedule.unit must be positive",
		},
		{
			name:        "redis without addr",
			envVars:     map[string]string{"USAGEWATCH_PROVIDER_TYPE": "mock", "USAGEWATCH_STORAGE_SYNCED_TYPE": "redis"},
			errorSubstr: "storage.synced.redis.addr is required",
		},
		{
			name:        "unknown local storage",
			envVars:     map[string]string{"USAGEWATCH_PROVIDER_TYPE": "mock", "USAGEWATCH_STORAGE_LOCAL_TYPE": "bolt"},
			errorSubstr: "unsupported storage.local.type",
		},
		{
			name: "shared sqlite scope without local sqlite",
			envVars: map[string]string{
				"USAGEWATCH_PROVIDER_TYPE":      "mock",
				"USAGEWATCH_STORAGE_LOCAL_TYPE": "memory",
			},
			errorSubstr: "storage.synced.path is required",
		},
		{
			name: "non-positive webhook deadline",
			envVars: map[string]string{
				"USAGEWATCH_PROVIDER_TYPE":           "mock",
				"USAGEWATCH_NOTIFY_WEBHOOK_URL":      "http://127.0.0.1:9/hook",
				"USAGEWATCH_NOTIFY_WEBHOOK_DEADLINE": "0s",
			},
			errorSubstr: "notify.webhook.deadline must be positive",
		},
		{
			name:        "bad timezone",
			envVars:     map[string]string{"USAGEWATCH_PROVIDER_TYPE": "mock", "USAGEWATCH_NOTIFY_TIMEZONE": "Mars/Olympus"},
			errorSubstr: "invalid notify.timezone",
		},
		{
			name:        "bad log level",
			envVars:     map[string]string{"USAGEWATCH_PROVIDER_TYPE": "mock", "USAGEWATCH_LOGGING_LEVEL": "trace"},
			errorSubstr: "unsupported logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			_, err := LoadConfig("")
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.errorSubstr)
			}
			if !strings.Contains(err.Error(), tt.errorSubstr) {
				t.Errorf("expected error containing %q, got %q", tt.errorSubstr, err.Error())
			}
		})
	}
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	t.Setenv("USAGEWATCH_PROVIDER_TYPE", "mock")
	path := writeConfig(t, "server: [unclosed")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}
