// Package config loads the environment-driven connection settings and the
// JSON migration plan.
package config

import (
	"errors"
	"os"
)

// Config holds connection settings, read from environment variables
// (populated from a .env file by main).
type Config struct {
	SourceDriver string // "postgres" or "sqlserver"
	SourceDSN    string
	TargetDriver string // "postgres", "sqlserver" or "mongo"
	TargetDSN    string
	// MongoDatabase names the target database when TargetDriver is "mongo".
	MongoDatabase string
}

// Load reads the connection settings from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		SourceDriver:  os.Getenv("SOURCE_DB_DRIVER"),
		SourceDSN:     os.Getenv("SOURCE_DB_URL"),
		TargetDriver:  os.Getenv("TARGET_DB_DRIVER"),
		TargetDSN:     os.Getenv("TARGET_DB_URL"),
		MongoDatabase: os.Getenv("TARGET_MONGO_DATABASE"),
	}
	switch {
	case cfg.SourceDriver == "":
		return nil, errors.New("SOURCE_DB_DRIVER environment variable not set")
	case cfg.SourceDSN == "":
		return nil, errors.New("SOURCE_DB_URL environment variable not set")
	case cfg.TargetDriver == "":
		return nil, errors.New("TARGET_DB_DRIVER environment variable not set")
	case cfg.TargetDSN == "":
		return nil, errors.New("TARGET_DB_URL environment variable not set")
	case cfg.TargetDriver == "mongo" && cfg.MongoDatabase == "":
		return nil, errors.New("TARGET_MONGO_DATABASE environment variable not set")
	}
	return cfg, nil
}
