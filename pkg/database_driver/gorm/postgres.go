package gorm

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported drivers
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB struct
type DB struct {
	Gorm   *gorm.DB
	Driver string
}

// ConnectToPostgreSQL func - Opens the ledger on a PostgreSQL server.
// The ledger sees little traffic, so the pool is kept small.
func ConnectToPostgreSQL(host, port, username, pass, dbname string, sslmode bool) (*DB, error) {
	if host == "" && port == "" && dbname == "" {
		return nil, errors.New("postgres ledger needs a host, port or database name")
	}

	mode := "disable"
	if sslmode {
		mode = "require"
	}
	dsn := fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v sslmode=%s connect_timeout=10",
		host, username, pass, dbname, port, mode)

	pg, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		logrus.Error(err)
		return nil, err
	}
	sqlDB, err := pg.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logrus.Infof("Connected to postgres at %s:%s/%s", host, port, dbname)
	return &DB{Gorm: pg, Driver: DriverPostgres}, nil
}

// Disconnect func
func Disconnect(db *DB) {
	if db == nil || db.Gorm == nil {
		return
	}
	sqlDb, err := db.Gorm.DB()
	if err != nil {
		logrus.Error(err)
		return
	}
	err = sqlDb.Close()
	if err != nil {
		logrus.Error(err)
	}
	logrus.Printf("Connected with %s has closed", db.Driver)
}
