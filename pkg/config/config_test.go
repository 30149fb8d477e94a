// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-dlm.
//
// go-dlm is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "none", cfg.Server.Auth)
	assert.Equal(t, "http://localhost:5572", cfg.Agent.URL)
	assert.Equal(t, 5*time.Second, cfg.Agent.ReconcileInterval)
	assert.Equal(t, 2*time.Second, cfg.Agent.SweepInterval)
	assert.Equal(t, 24*time.Hour, cfg.Ingest.UIDExpiration)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dlm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
  auth: bearer
database:
  host: db.internal
  name: archive
agent:
  url: http://rclone:5572
  sweep_interval: 10s
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "bearer", cfg.Server.Auth)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 10*time.Second, cfg.Agent.SweepInterval)
	// Untouched keys keep their defaults.
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestSecretFileIndirection(t *testing.T) {
	dir := t.TempDir()
	secretPath := filepath.Join(dir, "db_password")
	require.NoError(t, os.WriteFile(secretPath, []byte("s3cret\n"), 0o600))

	path := filepath.Join(dir, "dlm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"database:\n  password: \"!"+secretPath+"\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Password)
}

func TestSecretFileMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dlm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"database:\n  password: \"!/nonexistent/secret\"\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "db", Port: 5432, User: "dlm", Password: "pw",
		Name: "archive", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://dlm:pw@db:5432/archive?sslmode=disable", d.DSN())
}
