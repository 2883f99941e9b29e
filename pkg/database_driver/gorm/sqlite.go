package gorm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectToSQLite func - Opens (and creates) a database file
func ConnectToSQLite(path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		logrus.Error(err)
		return nil, err
	}
	logrus.Infof("Connected to sqlite at %s", path)
	return &DB{Gorm: db, Driver: DriverSQLite}, nil
}

// Connect func - Opens the configured driver. DriverNone returns nil without error.
func Connect(driver, sqlitePath, host, port, username, pass, dbname string, sslmode bool) (*DB, error) {
	switch driver {
	case "", DriverNone:
		return nil, nil
	case DriverSQLite:
		return ConnectToSQLite(sqlitePath)
	case DriverPostgres:
		return ConnectToPostgreSQL(host, port, username, pass, dbname, sslmode)
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}
