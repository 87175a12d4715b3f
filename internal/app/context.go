package app

import (
	"database/sql"
	"fmt"

	"capworks/internal/config"
	"capworks/internal/db"
	"capworks/internal/migrate"
)

// Open prepares a workspace for engine use: ensures the directory, opens the
// database, applies migrations and loads the taxonomy config (falling back
// to the built-in default catalog when capworks.yml is absent).
func Open(workspace string) (*sql.DB, *config.Config, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, cfg, nil
}
