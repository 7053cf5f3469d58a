package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_EnvOnly(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://db:27017")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TWILIO_PHONE_NUMBER_PREFIX", "+44")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "mongodb://db:27017", cfg.Mongo.URI)
	assert.Equal(t, "blooddoc", cfg.Mongo.DBName)
	assert.Equal(t, "3001", cfg.Server.Port)
	assert.Equal(t, "+44", cfg.Twilio.PhonePrefix)
	assert.Equal(t, "gemini-1.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL())
	assert.Equal(t, 5*time.Second, cfg.LockTTL())
	assert.Equal(t, 50_000.0, cfg.SearchRadiusMeters())
}

func TestLoadConfig_FileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
mongo:
  uri: mongodb://from-file:27017
  dbName: filedb
jwt:
  secret: file-secret
  expiration: 2h
geo:
  searchRadiusKm: 10
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("MONGODB_DBNAME", "envdb")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "mongodb://from-file:27017", cfg.Mongo.URI)
	assert.Equal(t, "envdb", cfg.Mongo.DBName)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL())
	assert.Equal(t, 10_000.0, cfg.SearchRadiusMeters())
}

func TestLoadConfig_RequiresSecrets(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb://db:27017")
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}

func TestParseDuration_FallsBack(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("not-a-duration", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("-5s", time.Minute))
	assert.Equal(t, 3*time.Second, parseDuration("3s", time.Minute))
}
