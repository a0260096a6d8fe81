package database

import (
	"fmt"
	"path/filepath"
)

// Pool is the set of the three databases AEGIS writes to: universe
// (reference data + holdings), cache (ephemeral collected payloads), and
// ledger (append-mostly audit trail + recommendation history).
type Pool struct {
	Universe *DB
	Cache    *DB
	Ledger   *DB
}

// OpenPool opens and migrates all three databases under dataDir.
func OpenPool(dataDir string) (*Pool, error) {
	universe, err := New(Config{Path: filepath.Join(dataDir, "universe.db"), Profile: ProfileStandard, Name: "universe"})
	if err != nil {
		return nil, fmt.Errorf("open universe.db: %w", err)
	}
	if err := universe.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate universe.db: %w", err)
	}

	cache, err := New(Config{Path: filepath.Join(dataDir, "cache.db"), Profile: ProfileCache, Name: "cache"})
	if err != nil {
		return nil, fmt.Errorf("open cache.db: %w", err)
	}
	if err := cache.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate cache.db: %w", err)
	}

	ledger, err := New(Config{Path: filepath.Join(dataDir, "ledger.db"), Profile: ProfileLedger, Name: "ledger"})
	if err != nil {
		return nil, fmt.Errorf("open ledger.db: %w", err)
	}
	if err := ledger.Migrate(); err != nil {
		return nil, fmt.Errorf("migrate ledger.db: %w", err)
	}

	return &Pool{Universe: universe, Cache: cache, Ledger: ledger}, nil
}

// AsMap returns the pool in the map[string]*DB shape the reliability
// services (health/backup/monitoring) expect.
func (p *Pool) AsMap() map[string]*DB {
	return map[string]*DB{
		"universe": p.Universe,
		"cache":    p.Cache,
		"ledger":   p.Ledger,
	}
}

// Close closes all three databases, collecting the first error encountered.
func (p *Pool) Close() error {
	var firstErr error
	for _, db := range []*DB{p.Universe, p.Cache, p.Ledger} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
