package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"lottery-bot/internal/config"
	"lottery-bot/internal/model"
	"lottery-bot/internal/repository"
)

// Messenger is the outbound messaging surface: public posts and edits in
// the announcement channel, direct messages to users, and admin alerts in
// the payment-alerts channel. It satisfies both the draw engine's announcer
// and the admission service's notifier.
type Messenger struct {
	bot      *tele.Bot
	cfg      *config.Config
	settings *repository.SettingsRepository
}

// NewMessenger creates a Messenger over the bot instance.
func NewMessenger(bot *tele.Bot, cfg *config.Config, settings *repository.SettingsRepository) *Messenger {
	return &Messenger{bot: bot, cfg: cfg, settings: settings}
}

// Publish posts a message to the announcement channel and returns its
// message ID for later edits.
func (m *Messenger) Publish(text string) (int, error) {
	msg, err := m.bot.Send(tele.ChatID(m.cfg.Channels.Announce), text)
	if err != nil {
		return 0, fmt.Errorf("failed to post to announcement channel: %w", err)
	}
	return msg.ID, nil
}

// Edit replaces the text of a previously published announcement.
func (m *Messenger) Edit(messageID int, text string) error {
	ref := &tele.StoredMessage{
		MessageID: strconv.Itoa(messageID),
		ChatID:    m.cfg.Channels.Announce,
	}
	_, err := m.bot.Edit(ref, text)
	return err
}

// DirectMessage sends a private message to a user. Fails when the user has
// never started the bot or has blocked it.
func (m *Messenger) DirectMessage(userID int64, text string) error {
	_, err := m.bot.Send(&tele.User{ID: userID}, text)
	return err
}

// AlertAdmins posts to the payment-alerts channel unless alerts are
// switched off in settings. A missing setting counts as enabled.
func (m *Messenger) AlertAdmins(text string) error {
	if !m.adminAlertsEnabled() {
		return nil
	}
	_, err := m.bot.Send(tele.ChatID(m.cfg.Channels.PaymentAlerts), text)
	return err
}

// AlertAdminsPhoto posts a receipt photo with a caption to the
// payment-alerts channel, honoring the same alerts switch.
func (m *Messenger) AlertAdminsPhoto(fileID, caption string) error {
	if !m.adminAlertsEnabled() {
		return nil
	}
	photo := &tele.Photo{File: tele.File{FileID: fileID}, Caption: caption}
	_, err := m.bot.Send(tele.ChatID(m.cfg.Channels.PaymentAlerts), photo)
	return err
}

func (m *Messenger) adminAlertsEnabled() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	value, err := m.settings.Get(ctx, model.SettingAdminAlerts)
	if err != nil && !errors.Is(err, repository.ErrSettingNotFound) {
		log.Warn().Err(err).Msg("Failed to read admin alerts setting, sending anyway")
	}
	return alertsEnabled(value)
}

// alertsEnabled interprets the stored admin_alerts_enabled value: "1" on,
// "0" off, anything else (including a missing row) counts as enabled.
func alertsEnabled(value string) bool {
	return value != "0"
}
