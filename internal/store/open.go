package store

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/coronary-score-server/internal/domain"
)

// Open creates the store selected by config. fallbackDSN is used by the
// postgres driver when config.DSN is empty. The "none" driver returns a nil
// Store, which callers treat as history disabled.
func Open(config domain.StoreConfig, fallbackDSN string) (Store, error) {
	switch strings.ToLower(config.Driver) {
	case "", "sqlite":
		if config.DataDir == "" {
			return nil, fmt.Errorf("sqlite store requires a data directory")
		}
		s, err := NewSQLiteStore(filepath.Join(config.DataDir, "runs.db"))
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		dsn := config.DSN
		if dsn == "" {
			dsn = fallbackDSN
		}
		if dsn == "" {
			return nil, fmt.Errorf("postgres store requires a dsn")
		}
		s, err := NewPostgresStoreFromURL(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", config.Driver)
	}
}
