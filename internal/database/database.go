package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

type Database struct {
	db *sql.DB
}

// New creates a new database connection. The schema is managed through
// migrations; call RunMigrations before first use.
func New(dataDir string) (*Database, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "quizrush.db")
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	// sqlite serializes writers; a single connection avoids SQLITE_BUSY loops
	db.SetMaxOpenConns(1)

	return &Database{db: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// RunMigrations applies all pending migrations from the given directory
func (d *Database) RunMigrations(migrationsDir string) error {
	manager := NewMigrationManager(d.db)
	return manager.MigrateUp(migrationsDir)
}
