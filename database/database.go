package database

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mberti/formdesk/config"
)

func Open(cfg config.Config) (db *sql.DB, err error) {
	dsn := cfg.DBUrl
	if !strings.Contains(dsn, "?") {
		// writers take the file lock upfront and wait on contention,
		// so concurrent publishes serialize instead of deadlocking
		dsn += "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	}

	db, err = sql.Open("sqlite3", dsn)
	if err != nil {
		return
	}

	// db tuning options
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	err = migrateDB(db)
	if err != nil {
		db.Close()
		return
	}

	return
}
