package db

import (
	"time"

	"plura/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus"

	"gorm.io/driver/mysql" // MySQL driver for GORM
	"gorm.io/gorm"         // GORM ORM library
)

// defaultParameters seeds the admin parameter table on first migration
var defaultParameters = map[string]string{
	domain.ParamInitialCreditAmount:       "100",
	domain.ParamProposalFundingPeriodDays: "14",
	domain.ParamMatchingFundPercentage:    "20",
	domain.ParamMatchingFundInitialAmount: "1000",
}

// Migrate performs automatic migration for the database schema
func Migrate(dsn string) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{}) // Open a connection to the database
	if err != nil {
		logrus.Fatalf("failed to connect database: %v", err) // Log fatal error if connection fails
	}
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	err = db.AutoMigrate(
		&domain.User{},
		&domain.UserCredit{},
		&domain.CreditTransaction{},
		&domain.Proposal{},
		&domain.ProposalCredit{},
		&domain.MatchingFund{},
		&domain.Parameter{},
	)
	if err != nil {
		logrus.Fatalf("migration failed: %v", err) // Log fatal error if migration fails
	}
	// Seed default parameters without overwriting admin-set values
	for name, value := range defaultParameters {
		p := domain.Parameter{Name: name, Value: value, LastUpdated: time.Now()}
		if err := db.Where("name = ?", name).FirstOrCreate(&p).Error; err != nil {
			logrus.Fatalf("parameter seeding failed: %v", err)
		}
	}
	logrus.Info("Migration completed.") // Log successful migration
}
