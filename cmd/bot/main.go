// Package main is the entry point for the lottery bot.
package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lottery-bot/internal/bot"
	"lottery-bot/internal/config"
	"lottery-bot/internal/draw"
	"lottery-bot/internal/model"
	"lottery-bot/internal/pkg/db"
	"lottery-bot/internal/repository"
	"lottery-bot/internal/scheduler"
	"lottery-bot/internal/service"
	"lottery-bot/internal/session"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	ticketRepo := repository.NewTicketRepository(dbPool.Pool)
	pendingRepo := repository.NewPendingRequestRepository(dbPool.Pool)
	winnerRepo := repository.NewWinnerRepository(dbPool.Pool)
	auditRepo := repository.NewAuditLogRepository(dbPool.Pool)
	settingsRepo := repository.NewSettingsRepository(dbPool.Pool)
	drawRepo := repository.NewDrawRepository(dbPool, auditRepo)

	if err := seedSettings(ctx, settingsRepo); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed settings")
	}

	// Initialize the bot first so the messenger can send; handlers are
	// wired afterwards through Wrap.
	teleBot, err := bot.NewTelebot(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}
	messenger := bot.NewMessenger(teleBot, cfg, settingsRepo)

	// Initialize services
	sessions := session.NewStore()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	admission := service.NewAdmissionService(dbPool, ticketRepo, pendingRepo, auditRepo, messenger, rng)
	control := service.NewDrawControlService(settingsRepo)
	stats := service.NewStatsService(ticketRepo, winnerRepo, settingsRepo)
	sweep := service.NewSweepService(pendingRepo, auditRepo, winnerRepo, sessions)

	// Initialize the draw engine
	engine := draw.NewEngine(
		repository.NewDrawStore(ticketRepo, drawRepo),
		control,
		messenger,
		draw.Config{
			CountdownSeconds: cfg.Draw.CountdownSeconds,
			BotLink:          cfg.Bot.Link(),
		},
		log.Logger,
	)

	// Initialize the scheduler
	sched, err := scheduler.New(engine, sweep, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}

	// Wire handlers into the bot
	telegramBot := bot.Wrap(teleBot, &bot.Dependencies{
		Config:     cfg,
		Sessions:   sessions,
		Admission:  admission,
		Stats:      stats,
		Control:    control,
		Tickets:    ticketRepo,
		Pending:    pendingRepo,
		Settings:   settingsRepo,
		Engine:     engine,
		RateLimits: bot.NewRateLimiter(),
	})

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sched.Start()

	// Start bot in a goroutine
	go func() {
		log.Info().Msg("Bot is starting...")
		telegramBot.Start()
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	// Graceful shutdown
	sched.Stop()
	telegramBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
}

// seedSettings writes the default settings rows, leaving existing values
// untouched.
func seedSettings(ctx context.Context, settings *repository.SettingsRepository) error {
	return settings.Seed(ctx, map[string]string{
		model.SettingDailyPrize:      "0",
		model.SettingCumulativePrize: "0",
		model.SettingAdminAlerts:     "1",
		model.SettingDisabledDraws:   "{}",
	})
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create tickets table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tickets (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			username VARCHAR(255) NOT NULL DEFAULT '',
			ticket_number VARCHAR(5) NOT NULL,
			purchase_date VARCHAR(10) NOT NULL,
			ticket_type VARCHAR(20) NOT NULL,
			is_winner BOOLEAN NOT NULL DEFAULT FALSE,
			receipt_number TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_tickets_window ON tickets(ticket_type, purchase_date);
		CREATE INDEX IF NOT EXISTS idx_tickets_user ON tickets(user_id);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: tickets table created")

	// Migration 2: Create pending_requests table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS pending_requests (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			username VARCHAR(255) NOT NULL DEFAULT '',
			ticket_type VARCHAR(20) NOT NULL,
			payment_method VARCHAR(50) NOT NULL,
			request_time VARCHAR(19) NOT NULL,
			receipt_number TEXT,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			quantity INT NOT NULL DEFAULT 1,
			admin_notes TEXT
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_pending_receipt
			ON pending_requests(receipt_number) WHERE receipt_number IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_pending_user ON pending_requests(user_id);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: pending_requests table created")

	// Migration 3: Create winners table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS winners (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			username VARCHAR(255) NOT NULL DEFAULT '',
			ticket_number VARCHAR(5) NOT NULL,
			purchase_date VARCHAR(10) NOT NULL,
			ticket_type VARCHAR(20) NOT NULL,
			win_date VARCHAR(19) NOT NULL,
			prize_amount BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_winners_win_date ON winners(win_date DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: winners table created")

	// Migration 4: Create audit_log table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS audit_log (
			id BIGSERIAL PRIMARY KEY,
			admin_id BIGINT NOT NULL,
			action VARCHAR(50) NOT NULL,
			target_id BIGINT NOT NULL DEFAULT 0,
			details TEXT NOT NULL DEFAULT '',
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: audit_log table created")

	// Migration 5: Create settings table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS settings (
			key VARCHAR(100) PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 5: settings table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
