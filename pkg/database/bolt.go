package database

import (
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/noah-isme/lms-api/pkg/config"
)

// NewBolt opens (or creates) the bbolt file named in the store config.
func NewBolt(cfg config.StoreConfig) (*bbolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.BoltPath), 0o755); err != nil {
		return nil, fmt.Errorf("create bolt directory: %w", err)
	}
	db, err := bbolt.Open(cfg.BoltPath, 0o600, &bbolt.Options{Timeout: cfg.Timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	return db, nil
}

