package repository

import (
	"fmt"

	"github.com/mr1hm/go-emergency-dispatch/internal/config"
)

// Open returns the store backend named in cfg.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryDB(), nil
	case "sqlite":
		db, err := NewSQLiteDB(cfg.Path)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
