package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mwhitby/lingoduel/internal/app"
	"github.com/mwhitby/lingoduel/internal/logger"
	"github.com/mwhitby/lingoduel/pkg/contentapi"
)

var (
	version = "dev"
)

// envOr returns the environment variable value or a default
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	port := flag.String("port", envOr("PORT", "8082"), "HTTP server port")
	dbPath := flag.String("db", envOr("DB_PATH", "lingoduel.db"), "SQLite database path")
	logLevel := flag.String("loglevel", envOr("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	contentURL := flag.String("content-url", envOr("CONTENT_API_URL", ""), "Question content API base URL")
	contentKey := flag.String("content-key", envOr("CONTENT_API_KEY", ""), "Question content API key")
	seed := flag.Bool("seed", false, "Seed the built-in sample question bank and exit")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("lingoduel %s\n", version)
		os.Exit(0)
	}

	appLog := logger.NewWithLevel(logger.ParseLevel(*logLevel))

	contentClient := contentapi.NewHTTPClient(*contentURL, *contentKey, appLog)

	a, err := app.New(appLog, *dbPath, contentClient)
	if err != nil {
		log.Fatal("Failed to initialize application:", err)
	}
	defer a.Close()

	if *seed {
		created, err := a.SeedQuestions()
		if err != nil {
			log.Fatal("Failed to seed questions:", err)
		}
		appLog.Info("seeded sample questions", "created", created)
		return
	}

	addr := ":" + *port

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.Run(addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatal(err)
		}
	case sig := <-stop:
		appLog.Info("shutting down", "signal", sig.String())
	}
}
