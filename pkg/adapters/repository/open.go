// Package repository selects a LinkRepository implementation from a database URL.
package repository

import (
	"context"
	"strings"

	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/repository/memory"
	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/repository/redis"
	"github.com/wadjakorntonsri/go-shortlink/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/go-shortlink/pkg/ports"
)

// Store is a LinkRepository holding resources that must be released.
type Store interface {
	ports.LinkRepository
	Close() error
}

// Open returns the store for databaseURL:
//
//	memory://              process-local map
//	redis://, rediss://    Redis
//	anything else          SQLite file or DSN, libsql:// and wss:// go to Turso
func Open(ctx context.Context, databaseURL string) (Store, error) {
	switch {
	case strings.HasPrefix(databaseURL, "memory://"):
		return memory.NewRepository(), nil
	case strings.HasPrefix(databaseURL, "redis://"), strings.HasPrefix(databaseURL, "rediss://"):
		repo, err := redis.NewRepositoryFromURL(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		repo, err := sqlite.NewSQLiteRepository(databaseURL)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
}
