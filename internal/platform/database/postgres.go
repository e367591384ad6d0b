package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/vcontests/vscubing-back/internal/platform/config"
)

var (
	DB     *sql.DB
	Driver string
)

// Connect opens the store configured in config.AppConfig and keeps it in DB.
func Connect() error {
	var err error
	switch config.AppConfig.DBDriver {
	case config.DriverSQLite:
		DB, err = OpenSQLite(config.AppConfig.SQLitePath)
	default:
		DB, err = OpenPostgres(config.AppConfig.DBConnStr)
	}
	if err != nil {
		return err
	}
	Driver = config.AppConfig.DBDriver
	slog.Info("Connected to database", "driver", Driver)
	return nil
}

func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	return db, nil
}

func Close() {
	if DB != nil {
		DB.Close()
		slog.Info("Database connection closed")
	}
}
