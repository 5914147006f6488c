// Package database handles the Postgres connection for the archive store.
//
// It provides a wrapper around GORM to configure the connection from the
// application's configuration. Schema creation and migration are managed
// outside this process; the engine only assumes the comment, version, and
// run-log tables exist.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", zap.Error(err))
//	}
package database
