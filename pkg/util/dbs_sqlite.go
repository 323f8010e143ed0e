package util

import (
	"io"
	"log"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDatabase opens a gorm handle for driver ("sqlite", "mysql" or "pg").
// An empty sqlite DSN means a private in-memory database.
func InitDatabase(logWriter io.Writer, driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	}
	if logWriter != nil {
		cfg.Logger = logger.New(
			log.New(logWriter, "\r\n", log.LstdFlags),
			logger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		)
	} else {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	db, err := createDatabaseInstance(cfg, driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "" || driver == "sqlite" {
		// sqlite serialises writers; a single connection also keeps
		// in-memory databases from splitting per connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func createDatabaseInstance(cfg *gorm.Config, driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "mysql":
		return gorm.Open(mysql.Open(dsn), cfg)
	case "pg":
		return gorm.Open(postgres.Open(dsn), cfg)
	}
	if dsn == "" {
		dsn = "file::memory:"
	}
	return gorm.Open(sqlite.Open(dsn), cfg)
}
