package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
provider:
  api_key: "secret"
  api_version: "v2.2"
  min_request_interval_ms: 334
mailbox:
  server: "imap.example.org"
  port: 993
  username: "u"
  password: "p"
  security: "implicit_tls"
  dedicated: true
  lookback_hours: 24
  fetch_limit: 50
storage:
  backend: "redis"
  redis:
    host: "localhost"
    port: 6379
  postgres:
    host: "localhost"
    port: 5432
    username: "u"
    password: "p"
    name: "colisbox"
kafka:
  host: "localhost"
  port: 9092
  package_updated_topic_name: "colisbox.package.updated"
engine:
  http_addr: ":8080"
  update_interval_minutes: 30
  email_interval_minutes: 15
  archive_after_days: 2
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "secret", cfg.Provider.APIKey)
	require.Equal(t, "v2.2", cfg.Provider.APIVersion)
	require.True(t, cfg.Mailbox.Dedicated)
	require.Equal(t, "redis", cfg.Storage.Backend)
	require.Equal(t, "localhost:6379", cfg.Storage.Redis.Addr())
	require.Equal(t, "postgres://u:p@localhost:5432/colisbox?sslmode=disable", cfg.Storage.Postgres.ConnString())
	require.Equal(t, "colisbox.package.updated", cfg.Kafka.PackageUpdatedTopicName)
	require.Equal(t, ":8080", cfg.Engine.HTTPAddr)
	require.Equal(t, 30, cfg.Engine.UpdateIntervalMinutes)
}
