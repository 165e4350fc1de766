package draw

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lottery-bot/internal/clock"
	"lottery-bot/internal/model"
	"lottery-bot/internal/pkg/lock"
	"lottery-bot/internal/repository"
)

var (
	// ErrDrawInProgress is returned when a trigger races an already running
	// draw for the same tier.
	ErrDrawInProgress = errors.New("draw already in progress for this tier")
	// ErrDrawDisabled is returned when the tier is switched off in settings.
	ErrDrawDisabled = errors.New("draw is disabled")
	// ErrNoTickets is returned when the tier's window holds no tickets.
	ErrNoTickets = repository.ErrNoTickets
)

// Store is the persistence surface the engine needs: a pre-countdown pool
// check and the transactional settle step.
type Store interface {
	CountInWindow(ctx context.Context, tier model.Tier, w clock.Window) (int, error)
	Settle(ctx context.Context, tier model.Tier, w clock.Window, drawTime time.Time) (*model.DrawResult, error)
}

// DisableChecker reports whether a tier is currently switched off.
type DisableChecker interface {
	DisabledReason(ctx context.Context, tier model.Tier) (string, bool)
}

// Announcer delivers draw messages: public posts to the announcement
// channel, edits of the countdown message, and direct messages to winners.
type Announcer interface {
	Publish(text string) (messageID int, err error)
	Edit(messageID int, text string) error
	DirectMessage(userID int64, text string) error
}

// Config holds the engine knobs wired from the bot configuration.
type Config struct {
	CountdownSeconds int
	BotLink          string
}

// Engine runs draws: one at a time per tier, countdown first, then the
// transactional settle. Triggers return as soon as the countdown message is
// posted; the rest runs in a background goroutine.
type Engine struct {
	store   Store
	control DisableChecker
	ann     Announcer
	cfg     Config
	locks   *lock.Keyed[model.Tier]
	logger  zerolog.Logger

	// tick is the edit interval. Tests shorten it.
	tick time.Duration
}

// NewEngine creates a draw engine.
func NewEngine(store Store, control DisableChecker, ann Announcer, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.CountdownSeconds < 0 {
		cfg.CountdownSeconds = 0
	}
	return &Engine{
		store:   store,
		control: control,
		ann:     ann,
		cfg:     cfg,
		locks:   lock.NewKeyed[model.Tier](),
		logger:  logger.With().Str("component", "draw_engine").Logger(),
		tick:    time.Second,
	}
}

// Trigger starts a draw for the tier. It returns ErrDrawInProgress if a
// draw for the same tier is already running, ErrDrawDisabled if the tier is
// switched off, and ErrNoTickets if the window is empty. On success the
// countdown message has been posted and the draw continues in the
// background; concurrent triggers for other tiers are unaffected.
func (e *Engine) Trigger(ctx context.Context, tier model.Tier) error {
	if !e.locks.TryLock(tier) {
		e.logger.Warn().Str("tier", tier.String()).Msg("draw trigger rejected, already running")
		return ErrDrawInProgress
	}

	if reason, disabled := e.control.DisabledReason(ctx, tier); disabled {
		e.locks.Unlock(tier)
		e.logger.Info().Str("tier", tier.String()).Str("reason", reason).Msg("draw cancelled, tier disabled")
		e.publish(fmt.Sprintf("The %s is cancelled.\n\nReason: %s", tier.Title(), reason))
		return fmt.Errorf("%w: %s", ErrDrawDisabled, reason)
	}

	window := clock.WindowFor(tier, clock.Now())
	total, err := e.store.CountInWindow(ctx, tier, window)
	if err != nil {
		e.locks.Unlock(tier)
		return fmt.Errorf("failed to check ticket pool: %w", err)
	}
	if total == 0 {
		e.locks.Unlock(tier)
		e.logger.Info().Str("tier", tier.String()).Msg("draw skipped, no tickets in window")
		e.publish(fmt.Sprintf("The %s is postponed: no tickets were sold this period. Better luck next time!", tier.Title()))
		return ErrNoTickets
	}

	msgID, err := e.ann.Publish(RenderCountdown(tier.Title(), e.cfg.CountdownSeconds, e.cfg.CountdownSeconds))
	if err != nil {
		e.locks.Unlock(tier)
		return fmt.Errorf("failed to post countdown message: %w", err)
	}

	e.logger.Info().
		Str("tier", tier.String()).
		Int("tickets", total).
		Int("countdown_seconds", e.cfg.CountdownSeconds).
		Msg("draw started")

	go e.run(tier, msgID)
	return nil
}

// run owns the tier lock for the duration of the countdown and settle.
func (e *Engine) run(tier model.Tier, msgID int) {
	defer e.locks.Unlock(tier)

	e.countdown(tier, msgID)
	e.settle(tier, msgID)
}

func (e *Engine) countdown(tier model.Tier, msgID int) {
	for sec := e.cfg.CountdownSeconds - 1; sec >= 0; sec-- {
		time.Sleep(e.tick)
		err := e.ann.Edit(msgID, RenderCountdown(tier.Title(), sec, e.cfg.CountdownSeconds))
		if err != nil && !isNotModified(err) {
			// A missed edit only degrades the animation; keep counting.
			e.logger.Warn().Err(err).Str("tier", tier.String()).Int("seconds_left", sec).Msg("countdown edit failed")
		}
	}
}

func (e *Engine) settle(tier model.Tier, msgID int) {
	// Settle against a fresh window so a countdown spanning midnight still
	// draws from the window that is current at settle time.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := clock.Now()
	result, err := e.store.Settle(ctx, tier, clock.WindowFor(tier, now), now)
	if err != nil {
		if errors.Is(err, ErrNoTickets) {
			e.edit(msgID, fmt.Sprintf("The %s is postponed: no tickets were sold this period. Better luck next time!", tier.Title()))
			return
		}
		e.logger.Error().Err(err).Str("tier", tier.String()).Msg("draw settle failed")
		e.edit(msgID, fmt.Sprintf("The %s could not be completed due to a technical issue. It will be rescheduled.", tier.Title()))
		return
	}

	w := result.Winner
	e.logger.Info().
		Str("tier", tier.String()).
		Int64("winner_user_id", w.UserID).
		Str("ticket_number", w.TicketNumber).
		Int64("prize", w.PrizeAmount).
		Int("tickets", result.TotalTickets).
		Msg("draw settled")

	e.edit(msgID, e.winnerAnnouncement(tier, result))

	dm := fmt.Sprintf(
		"Congratulations! You won the %s!\n\n"+
			"Winning ticket: %s\n"+
			"Prize: %d SYP\n\n"+
			"Contact the administrators to collect your prize.",
		tier.Title(), w.TicketNumber, w.PrizeAmount,
	)
	if err := e.ann.DirectMessage(w.UserID, dm); err != nil {
		// Winners who blocked the bot still appear in the public post.
		e.logger.Warn().Err(err).Int64("user_id", w.UserID).Msg("failed to notify winner directly")
	}
}

func (e *Engine) winnerAnnouncement(tier model.Tier, result *model.DrawResult) string {
	w := result.Winner
	name := w.Username
	if name == "" {
		name = fmt.Sprintf("player %d", w.UserID)
	}
	text := fmt.Sprintf(
		"🎉 %s results 🎉\n\n"+
			"Winner: %s\n"+
			"Winning ticket: %s\n"+
			"Prize: %d SYP\n\n"+
			"Tickets in this draw: %d\n\n"+
			"Congratulations to the winner, and thank you to everyone who played!",
		tier.Title(), name, w.TicketNumber, w.PrizeAmount, result.TotalTickets,
	)
	if e.cfg.BotLink != "" {
		text += fmt.Sprintf("\n\nGet your ticket for the next draw: %s", e.cfg.BotLink)
	}
	return text
}

func (e *Engine) publish(text string) {
	if _, err := e.ann.Publish(text); err != nil {
		e.logger.Warn().Err(err).Msg("failed to publish draw announcement")
	}
}

func (e *Engine) edit(msgID int, text string) {
	err := e.ann.Edit(msgID, text)
	if err != nil && !isNotModified(err) {
		e.logger.Warn().Err(err).Int("message_id", msgID).Msg("failed to edit draw message")
	}
}

// isNotModified matches the Telegram error for edits that change nothing.
func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}
