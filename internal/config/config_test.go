package config

import (
	"log/slog"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"SS_DB_HOST":     "localhost",
		"SS_DB_NAME":     "sheetstore",
		"SS_DB_USER":     "sheetstore",
		"SS_DB_PASSWORD": "secret",
		"SS_DATA_DIR":    "/var/lib/sheetstore",
	}
}

func TestLoad_MinimalConfig(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, ожидается 8080", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.DBHost != "localhost" {
		t.Errorf("DBHost = %q, ожидается localhost", cfg.DBHost)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, ожидается disable", cfg.DBSSLMode)
	}
	if cfg.DataDir != "/var/lib/sheetstore" {
		t.Errorf("DataDir = %q, ожидается /var/lib/sheetstore", cfg.DataDir)
	}
	if cfg.MaxUploadSize != 50<<20 {
		t.Errorf("MaxUploadSize = %d, ожидается %d", cfg.MaxUploadSize, 50<<20)
	}
	if cfg.CacheSize != 256 {
		t.Errorf("CacheSize = %d, ожидается 256", cfg.CacheSize)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, ожидается 5m", cfg.CacheTTL)
	}
	if cfg.ETLMinDelay != 2*time.Second {
		t.Errorf("ETLMinDelay = %v, ожидается 2s", cfg.ETLMinDelay)
	}
	if cfg.ETLMaxDelay != 10*time.Second {
		t.Errorf("ETLMaxDelay = %v, ожидается 10s", cfg.ETLMaxDelay)
	}
	if cfg.ETLFailureRate != 0.2 {
		t.Errorf("ETLFailureRate = %g, ожидается 0.2", cfg.ETLFailureRate)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	envs := minimalEnvs()
	envs["SS_PORT"] = "9090"
	envs["SS_LOG_LEVEL"] = "debug"
	envs["SS_LOG_FORMAT"] = "text"
	envs["SS_DB_PORT"] = "5433"
	envs["SS_DB_SSL_MODE"] = "require"
	envs["SS_MAX_UPLOAD_SIZE"] = "1048576"
	envs["SS_CACHE_SIZE"] = "64"
	envs["SS_CACHE_TTL"] = "1m"
	envs["SS_ETL_MIN_DELAY"] = "100ms"
	envs["SS_ETL_MAX_DELAY"] = "500ms"
	envs["SS_ETL_FAILURE_RATE"] = "0.5"
	envs["SS_SHUTDOWN_TIMEOUT"] = "10s"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, ожидается 9090", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидается Debug", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, ожидается text", cfg.LogFormat)
	}
	if cfg.DBPort != 5433 {
		t.Errorf("DBPort = %d, ожидается 5433", cfg.DBPort)
	}
	if cfg.DBSSLMode != "require" {
		t.Errorf("DBSSLMode = %q, ожидается require", cfg.DBSSLMode)
	}
	if cfg.MaxUploadSize != 1048576 {
		t.Errorf("MaxUploadSize = %d, ожидается 1048576", cfg.MaxUploadSize)
	}
	if cfg.CacheSize != 64 {
		t.Errorf("CacheSize = %d, ожидается 64", cfg.CacheSize)
	}
	if cfg.CacheTTL != time.Minute {
		t.Errorf("CacheTTL = %v, ожидается 1m", cfg.CacheTTL)
	}
	if cfg.ETLMinDelay != 100*time.Millisecond {
		t.Errorf("ETLMinDelay = %v, ожидается 100ms", cfg.ETLMinDelay)
	}
	if cfg.ETLMaxDelay != 500*time.Millisecond {
		t.Errorf("ETLMaxDelay = %v, ожидается 500ms", cfg.ETLMaxDelay)
	}
	if cfg.ETLFailureRate != 0.5 {
		t.Errorf("ETLFailureRate = %g, ожидается 0.5", cfg.ETLFailureRate)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 10s", cfg.ShutdownTimeout)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	envs := minimalEnvs()
	delete(envs, "SS_DB_HOST")
	setEnvs(t, envs)
	t.Setenv("SS_DB_HOST", "")

	if _, err := Load(); err == nil {
		t.Error("Load() без SS_DB_HOST должен вернуть ошибку")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"некорректный порт", "SS_PORT", "abc"},
		{"порт вне диапазона", "SS_PORT", "70000"},
		{"некорректный уровень логов", "SS_LOG_LEVEL", "trace"},
		{"некорректный формат логов", "SS_LOG_FORMAT", "xml"},
		{"некорректный SSL режим", "SS_DB_SSL_MODE", "maybe"},
		{"некорректная длительность", "SS_CACHE_TTL", "five-minutes"},
		{"отрицательный размер кэша", "SS_CACHE_SIZE", "0"},
		{"failure rate вне диапазона", "SS_ETL_FAILURE_RATE", "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvs(t, minimalEnvs())
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("Load() с %s=%q должен вернуть ошибку", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_ETLDelayOrder(t *testing.T) {
	setEnvs(t, minimalEnvs())
	t.Setenv("SS_ETL_MIN_DELAY", "10s")
	t.Setenv("SS_ETL_MAX_DELAY", "1s")

	if _, err := Load(); err == nil {
		t.Error("Load() с max < min delay должен вернуть ошибку")
	}
}
