package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "config.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "http://localhost:5000", cfg.BackendBaseURL)
	assert.Equal(t, "audit.events", cfg.AuditNatsSubject)
	assert.Equal(t, "task-logs", cfg.MinioLogsBucket)
	assert.Equal(t, "admin-backend", cfg.ServiceName)
	assert.Equal(t, "/health", cfg.HealthCheckPath)

	// The default file must have been written for the next start.
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLoadConfigReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := strings.Join([]string{
		"port: \":9999\"",
		"log_level: debug",
		"backend_base_url: http://compute:5000",
		"backend_request_timeout: 5s",
		"jwt_secret: supersecret",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://compute:5000", cfg.BackendBaseURL)
	assert.Equal(t, 5*time.Second, cfg.BackendRequestTimeout)
	assert.Equal(t, "supersecret", cfg.JwtSecret)

	// Unset fields fall back to defaults.
	assert.Equal(t, "audit.events", cfg.AuditNatsSubject)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "localhost:8500", cfg.ConsulAddress)
}

func TestLoadConfigRejectsMalformedYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unclosed"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestGenerateServiceID(t *testing.T) {
	id1 := GenerateServiceID("admin-backend-")
	id2 := GenerateServiceID("admin-backend-")

	assert.True(t, strings.HasPrefix(id1, "admin-backend-"))
	assert.NotEqual(t, id1, id2)
}
