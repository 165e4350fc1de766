// Package model defines the data models for the lottery bot.
package model

import (
	"fmt"
	"time"
)

// Tier identifies one of the three independent draw pools. Each tier
// accumulates tickets for its own window and is drawn on its own schedule.
type Tier int

const (
	TierDaily Tier = iota
	TierWeekly
	TierMonthly
)

// AllTiers returns every tier in a stable order.
func AllTiers() []Tier {
	return []Tier{TierDaily, TierWeekly, TierMonthly}
}

// String returns the tier name as stored in the tickets table.
func (t Tier) String() string {
	switch t {
	case TierDaily:
		return "daily"
	case TierWeekly:
		return "weekly"
	case TierMonthly:
		return "monthly"
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// Title returns the tier's display name for announcements.
func (t Tier) Title() string {
	switch t {
	case TierDaily:
		return "Daily Draw"
	case TierWeekly:
		return "Weekly Draw"
	case TierMonthly:
		return "Monthly Draw"
	}
	return t.String()
}

// ParseTier converts a stored tier name back into a Tier.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "daily":
		return TierDaily, nil
	case "weekly":
		return TierWeekly, nil
	case "monthly":
		return TierMonthly, nil
	}
	return 0, fmt.Errorf("unknown tier %q", s)
}

// Pricing constants. These are system-wide business rules, not configuration.
const (
	// TicketPrice is the unit price of one ticket in currency units.
	TicketPrice = 5000
	// PayoutRate is the share of collected revenue paid to the winner.
	PayoutRate = 0.85
	// MinTicketNumber and MaxTicketNumber bound the 5-digit ticket number space.
	MinTicketNumber = 10000
	MaxTicketNumber = 99999
	// MaxQuantity is the most tickets one pending request may cover.
	MaxQuantity = 10
)

// PrizeAmount computes the prize for a window holding count tickets:
// floor(count * price * rate).
func PrizeAmount(count int) int64 {
	return int64(float64(count) * TicketPrice * PayoutRate)
}

// Ticket is one sold lottery ticket. Its number is unique within the
// tier's current window; the whole window pool is deleted when drawn.
type Ticket struct {
	ID            int64   `db:"id"`
	UserID        int64   `db:"user_id"`
	Username      string  `db:"username"`
	TicketNumber  string  `db:"ticket_number"`
	PurchaseDate  string  `db:"purchase_date"`
	TicketType    string  `db:"ticket_type"`
	IsWinner      bool    `db:"is_winner"`
	ReceiptNumber *string `db:"receipt_number"`
}

// PendingRequest is a submitted ticket purchase awaiting admin review.
// Approval converts it into tickets; rejection deletes it. Either way the
// row is removed, so a surviving row always has status "pending".
type PendingRequest struct {
	ID            int64   `db:"id"`
	UserID        int64   `db:"user_id"`
	Username      string  `db:"username"`
	TicketType    string  `db:"ticket_type"`
	PaymentMethod string  `db:"payment_method"`
	RequestTime   string  `db:"request_time"`
	ReceiptNumber *string `db:"receipt_number"`
	Status        string  `db:"status"`
	Quantity      int     `db:"quantity"`
	AdminNotes    *string `db:"admin_notes"`
}

// Winner is the append-only record of one draw outcome.
type Winner struct {
	ID           int64  `db:"id"`
	UserID       int64  `db:"user_id"`
	Username     string `db:"username"`
	TicketNumber string `db:"ticket_number"`
	PurchaseDate string `db:"purchase_date"`
	TicketType   string `db:"ticket_type"`
	WinDate      string `db:"win_date"`
	PrizeAmount  int64  `db:"prize_amount"`
}

// AuditEntry records one admin action.
type AuditEntry struct {
	ID        int64     `db:"id"`
	AdminID   int64     `db:"admin_id"`
	Action    string    `db:"action"`
	TargetID  int64     `db:"target_id"`
	Details   string    `db:"details"`
	Timestamp time.Time `db:"timestamp"`
}

// DrawResult is the outcome of one settled draw: the recorded winner plus
// the size of the ticket pool it was selected from.
type DrawResult struct {
	Winner       *Winner
	TotalTickets int
}

// Audit actions.
const (
	AuditApprove = "approve"
	AuditReject  = "reject"
	AuditDraw    = "draw"
	AuditPurge   = "purge"
)

// Settings keys.
const (
	SettingDailyPrize      = "daily_prize"
	SettingCumulativePrize = "cumulative_prize"
	SettingAdminAlerts     = "admin_alerts_enabled"
	SettingDisabledDraws   = "disabled_draws"
)

// Payment methods accepted by the purchase dialogue.
const (
	PaymentShamCash     = "sham_cash"
	PaymentSyriatelCash = "syriatel_cash"
)

// PaymentMethods returns the accepted payment methods in display order.
func PaymentMethods() []string {
	return []string{PaymentShamCash, PaymentSyriatelCash}
}
