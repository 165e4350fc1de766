package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"lottery-bot/internal/model"
	"lottery-bot/internal/repository"
)

// disabledEntry is the per-tier payload inside the disabled_draws setting.
type disabledEntry struct {
	Reason string `json:"reason"`
}

// DrawControlService manages the per-tier disable registry stored as a
// JSON object in the settings table. A missing or malformed value is
// treated as "all tiers enabled": a corrupted setting must never block a
// draw.
type DrawControlService struct {
	settings *repository.SettingsRepository
}

// NewDrawControlService creates a new DrawControlService instance.
func NewDrawControlService(settings *repository.SettingsRepository) *DrawControlService {
	return &DrawControlService{settings: settings}
}

// DisabledReason returns the disable reason for a tier, or ok=false when
// the tier is enabled.
func (s *DrawControlService) DisabledReason(ctx context.Context, tier model.Tier) (string, bool) {
	entries := s.load(ctx)
	entry, disabled := entries[tier.String()]
	return entry.Reason, disabled
}

// Toggle flips a tier's disable state. Disabling records an auto-generated
// reason; enabling removes the entry. Returns the new disabled state and
// its reason.
func (s *DrawControlService) Toggle(ctx context.Context, tier model.Tier) (bool, string, error) {
	entries := s.load(ctx)

	var disabled bool
	var reason string
	if _, ok := entries[tier.String()]; ok {
		delete(entries, tier.String())
	} else {
		reason = autoDisableReason(tier)
		entries[tier.String()] = disabledEntry{Reason: reason}
		disabled = true
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return false, "", err
	}
	if err := s.settings.Set(ctx, model.SettingDisabledDraws, string(raw)); err != nil {
		return false, "", err
	}

	log.Info().
		Str("tier", tier.String()).
		Bool("disabled", disabled).
		Str("reason", reason).
		Msg("Draw toggle changed")
	return disabled, reason, nil
}

// Snapshot returns the current tier -> reason mapping for the admin panel.
func (s *DrawControlService) Snapshot(ctx context.Context) map[string]string {
	entries := s.load(ctx)
	out := make(map[string]string, len(entries))
	for tier, e := range entries {
		out[tier] = e.Reason
	}
	return out
}

// load reads and parses the registry, failing open on any problem.
func (s *DrawControlService) load(ctx context.Context) map[string]disabledEntry {
	raw, err := s.settings.Get(ctx, model.SettingDisabledDraws)
	if err != nil {
		if !errors.Is(err, repository.ErrSettingNotFound) {
			log.Error().Err(err).Msg("Failed to read disabled draws setting, treating all tiers as enabled")
		}
		return map[string]disabledEntry{}
	}

	var entries map[string]disabledEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		log.Error().Err(err).Str("value", raw).Msg("Malformed disabled draws setting, treating all tiers as enabled")
		return map[string]disabledEntry{}
	}
	if entries == nil {
		entries = map[string]disabledEntry{}
	}
	return entries
}

func autoDisableReason(tier model.Tier) string {
	switch tier {
	case model.TierDaily:
		return "daily draw paused while a weekly or monthly draw is running"
	case model.TierWeekly:
		return "weekly draw paused while a monthly draw is running"
	case model.TierMonthly:
		return "monthly draw paused for maintenance"
	}
	return "draw disabled"
}
