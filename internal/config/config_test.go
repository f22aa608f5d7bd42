package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  port: 8080
database:
  driver: postgres
  host: db.internal
  port: 5432
  user: naturelens
  password: secret
  name: naturelens
minio:
  endpoint: minio.internal:9000
  accessKey: minio
  secretKey: miniosecret
  bucketName: naturelens-images
  region: us-east-1
  useSSL: true
openai:
  apiKey: file-key
  model: gpt-4o-mini
auth:
  tokens:
    tok-u1: u1
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "naturelens-images", cfg.Minio.BucketName)
	assert.True(t, cfg.Minio.UseSSL)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, "u1", cfg.Auth.Tokens["tok-u1"])
}

func TestLoadDefaultsDriver(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 8080\n"))
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Driver)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")
	t.Setenv("MINIO_SECRET_KEY", "env-secret")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.OpenAI.APIKey)
	assert.Equal(t, "env-secret", cfg.Minio.SecretKey)
	assert.Equal(t, "minio", cfg.Minio.AccessKey)
}

func TestDSNBuilders(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t,
		"naturelens:secret@tcp(db.internal:5432)/naturelens?parseTime=true&charset=utf8mb4&loc=UTC",
		cfg.MySQLDSN(),
	)
	assert.Equal(t,
		"host=db.internal port=5432 user=naturelens password=secret dbname=naturelens sslmode=disable",
		cfg.PostgresDSN(),
	)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
