package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/resumeforge/ResumeForge/app/models"
	"github.com/resumeforge/ResumeForge/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

var db *gorm.DB

// GetDB returns the shared database handle. SetupDatabase must have
// been called first.
func GetDB() *gorm.DB {
	return db
}

// SetDB overrides the shared handle, intended for tests.
func SetDB(conn *gorm.DB) {
	db = conn
}

func SetupDatabase() {
	var err error
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		env.GetEnv("DB_USER", ""),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", "resumeforge"),
	)

	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       dsn,
			DefaultStringSize:         256,
			DisableDatetimePrecision:  true,  // not supported before MySQL 5.6
			DontSupportRenameIndex:    true,  // rename index not supported before MySQL 5.7, MariaDB
			DontSupportRenameColumn:   true,  // rename column not supported before MySQL 8, MariaDB
			SkipInitializeWithVersion: false, // auto configure based on the running MySQL version
		}), &gorm.Config{})
		if err == nil {
			db.AutoMigrate(
				&models.User{},
				&models.CreditAccount{},
				&models.LedgerEntry{},
				&models.WebhookEvent{},
				&models.Optimization{},
			)
			return
		}

		log.Printf("Failed to connect to database (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}
