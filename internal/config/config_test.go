package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServicePort)
	assert.Equal(t, "", cfg.APIBasePath)
	assert.Equal(t, "*", cfg.CORSOrigin)
	assert.Equal(t, DriverMySQL, cfg.DBDriver)
	assert.Equal(t, BlobBackendMinIO, cfg.BlobBackend)
	assert.Equal(t, int64(5*1024*1024), cfg.GetResumeMaxBytes())
	assert.Equal(t, int64(50*1024*1024), cfg.GetVideoMaxBytes())
	assert.Equal(t, int64(1024*1024), cfg.GetChunkSizeBytes())
	assert.Equal(t, "localhost:6379", cfg.GetRedisAddr())
}

func TestLoadConfig_FromEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("BLOB_BACKEND", "fs")
	t.Setenv("API_BASE_PATH", "/api/")
	t.Setenv("RESUME_MAX_MB", "2")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("TIDB_USER", "svc")
	t.Setenv("TIDB_PASSWORD", "pw")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, BlobBackendFS, cfg.BlobBackend)
	assert.Equal(t, "/api", cfg.APIBasePath)
	assert.Equal(t, int64(2*1024*1024), cfg.GetResumeMaxBytes())
	assert.False(t, cfg.CacheEnabled)
	assert.Contains(t, cfg.GetDSN(), "svc:pw@tcp(localhost:4000)/talentdrop")
}

func TestLoadConfig_InvalidNumbersFallBack(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("VIDEO_MAX_MB", "lots")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.VideoMaxMB)
}

func TestValidate_RejectsUnknownDriver(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DB_DRIVER", "mongo")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "DB_DRIVER")
}

func TestValidate_RejectsRelativeBasePath(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("API_BASE_PATH", "api")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "API_BASE_PATH")
}
