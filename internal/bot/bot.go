// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"lottery-bot/internal/config"
	"lottery-bot/internal/handler"
	"lottery-bot/internal/repository"
	"lottery-bot/internal/service"
	"lottery-bot/internal/session"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	purchaseHandler *handler.PurchaseHandler
	infoHandler     *handler.InfoHandler
	adminHandler    *handler.AdminHandler
}

// Dependencies holds everything the bot handlers need.
type Dependencies struct {
	Config     *config.Config
	Sessions   *session.Store
	Admission  *service.AdmissionService
	Stats      *service.StatsService
	Control    *service.DrawControlService
	Tickets    *repository.TicketRepository
	Pending    *repository.PendingRequestRepository
	Settings   *repository.SettingsRepository
	Engine     handler.Triggerer
	RateLimits *RateLimiter
}

// NewTelebot creates the underlying telebot instance. It is created apart
// from Wrap so the messenger can send over the same instance before the
// handlers are wired.
func NewTelebot(cfg *config.Config) (*tele.Bot, error) {
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return teleBot, nil
}

// Wrap builds the Bot around an existing telebot instance and registers
// all middleware and handlers.
func Wrap(teleBot *tele.Bot, deps *Dependencies) *Bot {
	b := &Bot{
		bot: teleBot,
		cfg: deps.Config,
	}

	b.purchaseHandler = handler.NewPurchaseHandler(deps.Sessions, deps.Admission, deps.Control)
	b.infoHandler = handler.NewInfoHandler(deps.Stats, deps.Tickets, deps.Pending)
	b.adminHandler = handler.NewAdminHandler(deps.Admission, deps.Pending, deps.Settings, deps.Control, deps.Engine)

	b.registerMiddleware(deps.RateLimits)
	b.registerHandlers()

	return b
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware(limiter *RateLimiter) {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(LoggingMiddleware())
	if limiter != nil {
		b.bot.Use(RateLimitMiddleware(limiter))
	}
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	// Player commands
	b.bot.Handle("/start", b.purchaseHandler.HandleStart)
	b.bot.Handle("/buy", b.purchaseHandler.HandleBuy)
	b.bot.Handle("/cancel", b.purchaseHandler.HandleCancel)
	b.bot.Handle("/mytickets", b.infoHandler.HandleMyTickets)
	b.bot.Handle("/requests", b.infoHandler.HandleMyRequests)
	b.bot.Handle("/winners", b.infoHandler.HandleWinners)
	b.bot.Handle("/stats", b.infoHandler.HandleStats)

	// Dialogue input
	b.bot.Handle(tele.OnText, b.purchaseHandler.HandleText)
	b.bot.Handle(tele.OnPhoto, b.purchaseHandler.HandlePhoto)

	// Admin commands
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/pending", b.adminHandler.HandlePending)
	adminGroup.Handle("/draw", b.adminHandler.HandleDraw)
	adminGroup.Handle("/toggle", b.adminHandler.HandleToggle)
	adminGroup.Handle("/alerts", b.adminHandler.HandleAlerts)

	// Inline buttons
	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

// handleCallback routes inline button presses by their data prefix.
func (b *Bot) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}

	// Telebot v3 may add a \f prefix to callback data
	data := strings.TrimPrefix(callback.Data, "\f")

	switch {
	case strings.HasPrefix(data, handler.CallbackTierPrefix):
		return b.purchaseHandler.HandleTierCallback(c, data)
	case strings.HasPrefix(data, handler.CallbackPayPrefix):
		return b.purchaseHandler.HandlePayCallback(c, data)
	case strings.HasPrefix(data, handler.CallbackApprovePrefix),
		strings.HasPrefix(data, handler.CallbackRejectPrefix):
		return b.handleReviewCallback(c, data)
	default:
		log.Debug().Str("data", data).Msg("Ignoring unknown callback")
		return c.Respond(&tele.CallbackResponse{})
	}
}

// handleReviewCallback gates the approve/reject buttons on admin identity;
// the buttons live in a shared channel, so the group middleware does not
// cover them.
func (b *Bot) handleReviewCallback(c tele.Context, data string) error {
	sender := c.Sender()
	if sender == nil || !b.cfg.IsAdmin(sender.ID) {
		return c.Respond(&tele.CallbackResponse{Text: "Admins only"})
	}
	if strings.HasPrefix(data, handler.CallbackApprovePrefix) {
		return b.adminHandler.HandleApproveCallback(c, data)
	}
	return b.adminHandler.HandleRejectCallback(c, data)
}

// Start starts the bot polling. Blocks until Stop.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}

// Telebot returns the underlying telebot instance.
func (b *Bot) Telebot() *tele.Bot {
	return b.bot
}
