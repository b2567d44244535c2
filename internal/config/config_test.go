package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 9090
database:
  driver: sqlite
  name: shop
  path: /tmp/data
admin:
  default_page_size: 10
  max_page_size: 50
auth:
  enabled: true
  users:
    - username: admin
      password_hash: "$2a$10$abc"
      roles: [admin]
logging:
  env: prod
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoad_FromDirectory(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/data/shop.db", cfg.Database.DSN())
	assert.True(t, cfg.Database.IsSQL())
	assert.Equal(t, 10, cfg.Admin.DefaultPageSize)
	assert.Equal(t, 50, cfg.Admin.MaxPageSize)
	assert.Equal(t, "/admin/api", cfg.Admin.PathPrefix)
	require.Len(t, cfg.Auth.Users, 1)
	assert.Equal(t, "admin", cfg.Auth.Users[0].Username)
	assert.Equal(t, []string{"admin"}, cfg.Auth.Users[0].Roles)
	assert.Equal(t, "prod", cfg.Logging.Env)
}

func TestLoad_FromFile(t *testing.T) {
	dir := writeConfig(t, sampleYAML)
	cfg, err := Load(filepath.Join(dir, "app.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.False(t, cfg.Database.IsSQL())
	assert.Equal(t, 25, cfg.Admin.DefaultPageSize)
	assert.Equal(t, 200, cfg.Admin.MaxPageSize)
	assert.False(t, cfg.Auth.Enabled)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ENTITY_ADMIN_SERVER_PORT", "7070")
	t.Setenv("ENTITY_ADMIN_DATABASE_DRIVER", "postgres")
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://:@localhost:5432/shop?sslmode=disable", cfg.Database.DSN())
}

func TestLoad_MissingExplicitDirectory(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown driver", "database:\n  driver: oracle\n"},
		{"page size", "admin:\n  default_page_size: 0\n"},
		{"max below default", "admin:\n  default_page_size: 30\n  max_page_size: 20\n"},
		{"auth without users", "auth:\n  enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestDSN_SQLiteInMemory(t *testing.T) {
	d := DatabaseConfig{Driver: "sqlite", Name: ":memory:", Path: "./data"}
	assert.Equal(t, ":memory:", d.DSN())
}
