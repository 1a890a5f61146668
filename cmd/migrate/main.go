package main

import (
	"plura/internal/config" // Custom import path (Config)
	"plura/internal/db"     // Custom import path (Database)
)

// Main entry point for migration: creates the schema and seeds the default
// admin parameters
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Database Source Name (DSN) for MySQL connection
	dsn := cfg.DBUser + ":" + cfg.DBPassword + "@tcp(" + cfg.DBHost + ":" + cfg.DBPort + ")/" + cfg.DBName + "?parseTime=true"
	db.Migrate(dsn) // Migrate models and seed missing parameters
}
