package database

import (
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/pkg/config"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "lms",
		Password: "p@ss word",
		Name:     "lms",
		SSLMode:  "disable",
	}, 500*time.Millisecond)

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db.internal:5432", u.Host)
	assert.Equal(t, "/lms", u.Path)
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss word", password)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
	assert.Equal(t, "1", u.Query().Get("connect_timeout"))
}

func TestNewBoltCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "lms.db")
	db, err := NewBolt(config.StoreConfig{BoltPath: path, Timeout: time.Second})
	require.NoError(t, err)
	defer db.Close()
	assert.FileExists(t, path)
}
