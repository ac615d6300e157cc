package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceplan/itpei/config"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "itpei.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(nil, env(nil))
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), cfg)
}

func TestLoad_LayerPrecedence(t *testing.T) {
	// GIVEN: A YAML file, environment and flags that overlap
	path := writeYAML(t, `
addr: ":9000"
driver: postgres
postgres_dsn: postgres://yaml/itpei
log_level: debug
cors_origins: ["https://planes.example"]
shutdown_timeout: 5s
`)
	vars := map[string]string{
		"ITPEI_CONFIG":       path,
		"ITPEI_POSTGRES_DSN": "postgres://env/itpei",
		"ITPEI_LOG_FORMAT":   "json",
		"ITPEI_SUBMIT_RATE":  "2.5",
	}

	// WHEN
	cfg, err := config.Load([]string{"-port", "7000", "-submit-burst", "3"}, env(vars))

	// THEN: flags > env > yaml > defaults, key by key
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, config.DriverPostgres, cfg.Driver)
	assert.Equal(t, "postgres://env/itpei", cfg.PostgresDSN)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"https://planes.example"}, cfg.CORSOrigins)
	assert.Equal(t, 2.5, cfg.SubmitRate)
	assert.Equal(t, 3, cfg.SubmitBurst)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "itpei.db", cfg.SQLitePath)
}

func TestLoad_ConfigFlagBeatsEnvPath(t *testing.T) {
	fromFlag := writeYAML(t, "driver: memory\n")
	cfg, err := config.Load([]string{"-config", fromFlag}, env(map[string]string{"ITPEI_CONFIG": "/does/not/exist.yaml"}))
	require.NoError(t, err)
	assert.Equal(t, config.DriverMemory, cfg.Driver)
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load([]string{"-config", "/does/not/exist.yaml"}, env(nil))
	assert.ErrorContains(t, err, "not found")

	_, err = config.Load(nil, env(map[string]string{"ITPEI_CONFIG": writeYAML(t, "addr: [")}))
	assert.ErrorContains(t, err, "parse config")

	_, err = config.Load(nil, env(map[string]string{"ITPEI_SUBMIT_BURST": "many"}))
	assert.ErrorContains(t, err, "ITPEI_SUBMIT_BURST")

	_, err = config.Load([]string{"-unknown"}, env(nil))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := config.Defaults()
	cfg.Driver = "mysql"
	assert.ErrorContains(t, cfg.Validate(), "unknown driver")

	cfg = config.Defaults()
	cfg.Driver = config.DriverPostgres
	assert.ErrorContains(t, cfg.Validate(), "needs a DSN")

	cfg = config.Defaults()
	cfg.LogLevel = "loud"
	cfg.LogFormat = "xml"
	err := cfg.Validate()
	assert.ErrorContains(t, err, "log level")
	assert.ErrorContains(t, err, "log format")

	cfg = config.Defaults()
	cfg.SubmitRate = 0
	cfg.SubmitBurst = 0
	assert.NoError(t, cfg.Validate(), "throttling off")
}

func TestLogger_HonoursFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Defaults()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"

	log := cfg.Logger(&buf)
	log.Info("hidden")
	log.Warn("shown", "unit", "23")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"unit":"23"`)
}
