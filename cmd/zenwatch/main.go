package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/zenwatch/zenwatch/internal/config"
	"github.com/zenwatch/zenwatch/internal/currency"
	"github.com/zenwatch/zenwatch/internal/http_api"
	"github.com/zenwatch/zenwatch/internal/notificator"
	"github.com/zenwatch/zenwatch/internal/repository"
	"github.com/zenwatch/zenwatch/internal/scheduler"
	"github.com/zenwatch/zenwatch/internal/scraper"
	"github.com/zenwatch/zenwatch/internal/translate"
	"github.com/zenwatch/zenwatch/internal/zenwatch"
	"github.com/zenwatch/zenwatch/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "zenwatch",
		Usage: "Zenwatch is an auction tracking and alerting service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.StringFlag{Name: "rate-api-url", Aliases: []string{"r"}, Usage: "Currency rate source URL"},
			&cli.StringFlag{Name: "translate-api-url", Aliases: []string{"T"}, Usage: "Translation service URL"},
			&cli.IntFlag{Name: "api-port", Aliases: []string{"a"}, Usage: "API port"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
			&cli.BoolFlag{Name: "no-scheduler", Usage: "Disable the internal refresh/alert scheduler"},
		},
		Action: func(c *cli.Context) error {
			return run(c)
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("rate-api-url") {
		cfg.RateAPIURL = c.String("rate-api-url")
	}
	if c.IsSet("translate-api-url") {
		cfg.TranslateAPIURL = c.String("translate-api-url")
	}
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}
	if c.IsSet("no-scheduler") {
		cfg.SchedulerEnabled = !c.Bool("no-scheduler")
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}

	// Initialize database
	db, err := repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}

	// Initialize adapters
	auctionScraper := scraper.NewScraper(cfg.MarketplaceHosts, time.Duration(cfg.ScrapeTimeoutSec)*time.Second, log)
	converter := currency.NewConverter(cfg.RateAPIURL, time.Duration(cfg.RateCacheTTL)*time.Second, time.Duration(cfg.RateTimeoutSec)*time.Second, log)
	translator := translate.NewTranslator(cfg.TranslateAPIURL, cfg.TranslateAPIKey, time.Duration(cfg.TranslateSec)*time.Second, log)

	// Initialize notificator
	telegramNotif := notificator.NewTelegramNotificator(log)
	emailNotif := notificator.NewEmailNotificator(log, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPSender)
	notif := notificator.NewNotificator(log, telegramNotif, emailNotif)

	// Create Zenwatch instance
	zenwatchApp := zenwatch.NewZenwatch(db, auctionScraper, converter, translator, notif, log)

	// Initialize API server
	apiServer := http_api.NewHTTPServer(zenwatchApp, cfg.APIPort, log)
	go apiServer.Start()

	// Start the scheduler
	var sched *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		sched = scheduler.NewScheduler(zenwatchApp, db, log)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %v", err)
		}
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")
	if sched != nil {
		sched.Stop()
	}
	if err := apiServer.Shutdown(); err != nil {
		log.Error("Failed to shut down API server: ", err)
	}
	if err := db.Close(); err != nil {
		log.Error("Failed to close database: ", err)
	}

	return nil
}
