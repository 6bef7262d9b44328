package cmd

import (
	"github.com/jmoiron/sqlx"

	"github.com/pulse-analytics/pulse/internal/config"
	"github.com/pulse-analytics/pulse/internal/db"
)

type database struct {
	*sqlx.DB
	cfg   *config.Config
	close func() error
}

// openDatabase connects using the DB_* environment. Replaced in tests.
var openDatabase = func() (*database, error) {
	cfg := config.LoadDatabase()

	conn, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, err
	}

	return &database{DB: conn, cfg: cfg, close: conn.Close}, nil
}
