// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"lottery-bot/internal/clock"
	"lottery-bot/internal/model"
	"lottery-bot/internal/pkg/db"
	"lottery-bot/internal/repository"
)

// Admission errors.
var (
	ErrInvalidQuantity      = errors.New("quantity must be between 1 and 10")
	ErrInvalidPaymentMethod = errors.New("unknown payment method")
	ErrInvalidReceipt       = errors.New("receipt must be a photo or a numeric reference of at least 12 digits")
	ErrNumberSpaceExhausted = errors.New("ticket number space exhausted for window")
	ErrRequestNotFound      = repository.ErrRequestNotFound
	ErrDuplicateReceipt     = repository.ErrDuplicateReceipt
)

// numberAttemptsPerTicket caps generation retries. The window holds at most
// 90000 distinct numbers, so a healthy pool converges in a handful of
// draws; hitting the cap means the window is effectively full.
const numberAttemptsPerTicket = 10

// Notifier delivers post-commit notifications. Delivery failures are the
// caller's to log; they never roll back committed data.
type Notifier interface {
	DirectMessage(userID int64, text string) error
	AlertAdmins(text string) error
	AlertAdminsPhoto(fileID, caption string) error
}

// Receipt is the payment proof attached to a submission: either a typed
// transaction number or the Telegram file id of a receipt photo. Both are
// stored in the request's receipt column, so the duplicate check covers
// re-sent photos the same way it covers re-typed numbers.
type Receipt struct {
	Reference string
	Photo     bool
}

// AdmissionService converts submitted purchase requests into issued
// tickets. Approval and rejection are idempotent-safe: a second attempt on
// the same request id reports ErrRequestNotFound and mutates nothing.
type AdmissionService struct {
	pool     *db.Pool
	tickets  *repository.TicketRepository
	pending  *repository.PendingRequestRepository
	audit    *repository.AuditLogRepository
	notifier Notifier
	rng      *rand.Rand
}

// NewAdmissionService creates a new AdmissionService instance.
func NewAdmissionService(
	pool *db.Pool,
	tickets *repository.TicketRepository,
	pending *repository.PendingRequestRepository,
	audit *repository.AuditLogRepository,
	notifier Notifier,
	rng *rand.Rand,
) *AdmissionService {
	return &AdmissionService{
		pool:     pool,
		tickets:  tickets,
		pending:  pending,
		audit:    audit,
		notifier: notifier,
		rng:      rng,
	}
}

// Submit validates and stores a new pending purchase request.
// Validation failures reject synchronously with nothing inserted.
func (s *AdmissionService) Submit(ctx context.Context, userID int64, username string, tier model.Tier, paymentMethod string, quantity int, receipt *Receipt) (int64, error) {
	if quantity < 1 || quantity > model.MaxQuantity {
		return 0, ErrInvalidQuantity
	}
	if !validPaymentMethod(paymentMethod) {
		return 0, ErrInvalidPaymentMethod
	}

	var receiptRef *string
	if receipt != nil {
		receiptRef = &receipt.Reference
	}

	now := clock.Now()
	req := &model.PendingRequest{
		UserID:        userID,
		Username:      username,
		TicketType:    tier.String(),
		PaymentMethod: paymentMethod,
		RequestTime:   now.Format("2006-01-02 15:04:05"),
		ReceiptNumber: receiptRef,
		Quantity:      quantity,
	}

	id, err := s.pending.Create(ctx, req)
	if err != nil {
		return 0, err
	}

	log.Info().
		Int64("request_id", id).
		Int64("user_id", userID).
		Str("tier", tier.String()).
		Int("quantity", quantity).
		Msg("Pending request submitted")

	// Best-effort alert; the request is already durable. A photo receipt
	// goes out as the photo itself so admins can verify the payment.
	alert := fmt.Sprintf(
		"New purchase request #%d\nUser: @%s (%d)\nTier: %s\nQuantity: %d\nTotal: %d\nPayment: %s",
		id, username, userID, tier.Title(), quantity, int64(quantity)*model.TicketPrice, paymentMethod,
	)
	var alertErr error
	switch {
	case receipt != nil && receipt.Photo:
		alertErr = s.notifier.AlertAdminsPhoto(receipt.Reference, alert)
	case receipt != nil:
		alertErr = s.notifier.AlertAdmins(alert + "\nReceipt: " + receipt.Reference)
	default:
		alertErr = s.notifier.AlertAdmins(alert)
	}
	if alertErr != nil {
		log.Error().Err(alertErr).Int64("request_id", id).Msg("Failed to alert admins about new request")
	}

	return id, nil
}

// Approve converts a pending request into freshly numbered tickets.
// Ticket insertion, request deletion, and the audit entry commit as one
// transaction; the user notification is a post-commit side effect whose
// failure is logged only.
func (s *AdmissionService) Approve(ctx context.Context, requestID, adminID int64) ([]*model.Ticket, error) {
	req, err := s.pending.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	tier, err := model.ParseTier(req.TicketType)
	if err != nil {
		return nil, fmt.Errorf("pending request %d has invalid tier: %w", requestID, err)
	}

	now := clock.Now()
	window := clock.WindowFor(tier, now)

	// Numbers already issued for the tier's current window, queried fresh
	// so concurrent approvals since the request was listed are seen.
	existing, err := s.tickets.NumbersInWindow(ctx, tier, window)
	if err != nil {
		return nil, err
	}

	numbers, err := GenerateTicketNumbers(existing, req.Quantity, s.rng)
	if err != nil {
		return nil, err
	}

	purchaseDate := now.Format(clock.DateFormat)
	tickets := make([]*model.Ticket, 0, len(numbers))
	for _, n := range numbers {
		tickets = append(tickets, &model.Ticket{
			UserID:        req.UserID,
			Username:      req.Username,
			TicketNumber:  n,
			PurchaseDate:  purchaseDate,
			TicketType:    tier.String(),
			ReceiptNumber: req.ReceiptNumber,
		})
	}

	err = s.pool.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.tickets.InsertBatchTx(ctx, tx, tickets); err != nil {
			return err
		}
		// Deleting the request last makes a lost race surface as
		// ErrRequestNotFound and roll the whole batch back.
		if err := s.pending.DeleteTx(ctx, tx, requestID); err != nil {
			return err
		}
		details := fmt.Sprintf("request #%d, %d ticket(s)", requestID, len(tickets))
		return s.audit.RecordTx(ctx, tx, adminID, model.AuditApprove, req.UserID, details)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("request_id", requestID).
		Int64("admin_id", adminID).
		Int64("user_id", req.UserID).
		Int("tickets", len(tickets)).
		Str("tier", tier.String()).
		Msg("Pending request approved")

	var list string
	for i, n := range numbers {
		list += fmt.Sprintf("Ticket #%d: %s\n", i+1, n)
	}
	msg := fmt.Sprintf(
		"Your purchase was approved!\n\n%d ticket(s) reserved for the next %s:\n%s\nPurchase date: %s",
		len(tickets), tier.Title(), list, purchaseDate,
	)
	if err := s.notifier.DirectMessage(req.UserID, msg); err != nil {
		log.Error().Err(err).Int64("user_id", req.UserID).Msg("Failed to notify user of approval")
	}

	return tickets, nil
}

// Reject deletes a pending request and notifies the user.
// Rejecting an already-processed id reports ErrRequestNotFound as a no-op.
func (s *AdmissionService) Reject(ctx context.Context, requestID, adminID int64) error {
	req, err := s.pending.GetByID(ctx, requestID)
	if err != nil {
		return err
	}

	err = s.pool.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.pending.DeleteTx(ctx, tx, requestID); err != nil {
			return err
		}
		details := fmt.Sprintf("request #%d", requestID)
		return s.audit.RecordTx(ctx, tx, adminID, model.AuditReject, req.UserID, details)
	})
	if err != nil {
		return err
	}

	log.Info().
		Int64("request_id", requestID).
		Int64("admin_id", adminID).
		Int64("user_id", req.UserID).
		Msg("Pending request rejected")

	msg := "Sorry, your ticket purchase request was rejected.\n" +
		"The payment receipt you submitted was not accepted.\n" +
		"If you believe this is a mistake, please contact support."
	if err := s.notifier.DirectMessage(req.UserID, msg); err != nil {
		log.Error().Err(err).Int64("user_id", req.UserID).Msg("Failed to notify user of rejection")
	}

	return nil
}

// GenerateTicketNumbers draws quantity distinct 5-digit numbers that
// collide neither with each other nor with the existing set. Attempts are
// capped so a nearly full window fails loudly instead of spinning.
func GenerateTicketNumbers(existing map[string]struct{}, quantity int, rng *rand.Rand) ([]string, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	span := model.MaxTicketNumber - model.MinTicketNumber + 1
	numbers := make([]string, 0, quantity)
	taken := make(map[string]struct{}, quantity)

	maxAttempts := quantity * numberAttemptsPerTicket
	for attempts := 0; len(numbers) < quantity; attempts++ {
		if attempts >= maxAttempts {
			return nil, fmt.Errorf("%w: %d of %d generated after %d attempts",
				ErrNumberSpaceExhausted, len(numbers), quantity, attempts)
		}
		n := strconv.Itoa(model.MinTicketNumber + rng.Intn(span))
		if _, dup := existing[n]; dup {
			continue
		}
		if _, dup := taken[n]; dup {
			continue
		}
		taken[n] = struct{}{}
		numbers = append(numbers, n)
	}
	return numbers, nil
}

// ValidateReceiptReference checks a typed (non-photo) receipt reference:
// numeric, at least 12 digits.
func ValidateReceiptReference(text string) error {
	if len(text) < 12 {
		return ErrInvalidReceipt
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return ErrInvalidReceipt
		}
	}
	return nil
}

func validPaymentMethod(m string) bool {
	for _, pm := range model.PaymentMethods() {
		if m == pm {
			return true
		}
	}
	return false
}
