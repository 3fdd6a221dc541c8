package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/FingerLiu/django-supertube/internal/cli"
	"github.com/FingerLiu/django-supertube/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	if logPath := os.Getenv("SUPERTUBE_LOG_FILE"); logPath != "" {
		if err := logger.InitFile(logPath); err != nil {
			log.Fatalf("failed to open log file %s: %v", logPath, err)
		}
	}

	rootCmd := cli.NewRootCmd()
	err := rootCmd.Execute()
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}
