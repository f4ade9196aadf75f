package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"tradejournal/internal/app"
)

func main() {
	// A missing .env file is fine; the OS environment and config
	// defaults take over.
	if err := godotenv.Load(); err == nil {
		slog.Info(".env file loaded")
	}

	application, err := app.New()
	if err != nil {
		slog.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
