package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"lottery-bot/internal/draw"
	"lottery-bot/internal/model"
	"lottery-bot/internal/repository"
	"lottery-bot/internal/service"
)

// Callback data prefixes for the admin review buttons.
const (
	CallbackApprovePrefix = "approve_"
	CallbackRejectPrefix  = "reject_"
)

const pendingPageSize = 10

// Triggerer starts a draw for a tier.
type Triggerer interface {
	Trigger(ctx context.Context, tier model.Tier) error
}

// AdminHandler serves the admin commands: pending-request review, manual
// draw triggers, tier toggles, and the alerts switch.
type AdminHandler struct {
	admission *service.AdmissionService
	pending   *repository.PendingRequestRepository
	settings  *repository.SettingsRepository
	control   *service.DrawControlService
	engine    Triggerer
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	admission *service.AdmissionService,
	pending *repository.PendingRequestRepository,
	settings *repository.SettingsRepository,
	control *service.DrawControlService,
	engine Triggerer,
) *AdminHandler {
	return &AdminHandler{
		admission: admission,
		pending:   pending,
		settings:  settings,
		control:   control,
		engine:    engine,
	}
}

// HandlePending handles the /pending command: the oldest open requests,
// each with approve/reject buttons.
func (h *AdminHandler) HandlePending(c tele.Context) error {
	requests, err := h.pending.List(context.Background(), pendingPageSize, 0)
	if err != nil {
		return c.Reply("❌ Could not load pending requests.")
	}
	if len(requests) == 0 {
		return c.Reply("No pending requests. All caught up!")
	}

	for _, req := range requests {
		if err := c.Send(formatPendingRequest(req), reviewMarkup(req.ID)); err != nil {
			return err
		}
	}
	return nil
}

// HandleApproveCallback handles an approve button press.
func (h *AdminHandler) HandleApproveCallback(c tele.Context, data string) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	requestID, err := strconv.ParseInt(strings.TrimPrefix(data, CallbackApprovePrefix), 10, 64)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Malformed request id"})
	}

	tickets, err := h.admission.Approve(context.Background(), requestID, sender.ID)
	if err != nil {
		if errors.Is(err, service.ErrRequestNotFound) {
			// Another admin got there first.
			_ = c.Respond(&tele.CallbackResponse{Text: "Already handled"})
			_, editErr := c.Bot().Edit(c.Message(), c.Message().Text+"\n\n⚠️ Already handled by another admin.")
			return editErr
		}
		return c.Respond(&tele.CallbackResponse{Text: "Approval failed, see logs", ShowAlert: true})
	}

	numbers := make([]string, len(tickets))
	for i, t := range tickets {
		numbers[i] = t.TicketNumber
	}

	_ = c.Respond(&tele.CallbackResponse{Text: "Approved"})
	_, err = c.Bot().Edit(c.Message(), c.Message().Text+fmt.Sprintf(
		"\n\n✅ Approved by %s. Tickets: %s", adminName(sender), strings.Join(numbers, ", ")))
	return err
}

// HandleRejectCallback handles a reject button press.
func (h *AdminHandler) HandleRejectCallback(c tele.Context, data string) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	requestID, err := strconv.ParseInt(strings.TrimPrefix(data, CallbackRejectPrefix), 10, 64)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Malformed request id"})
	}

	if err := h.admission.Reject(context.Background(), requestID, sender.ID); err != nil {
		if errors.Is(err, service.ErrRequestNotFound) {
			_ = c.Respond(&tele.CallbackResponse{Text: "Already handled"})
			_, editErr := c.Bot().Edit(c.Message(), c.Message().Text+"\n\n⚠️ Already handled by another admin.")
			return editErr
		}
		return c.Respond(&tele.CallbackResponse{Text: "Rejection failed, see logs", ShowAlert: true})
	}

	_ = c.Respond(&tele.CallbackResponse{Text: "Rejected"})
	_, err = c.Bot().Edit(c.Message(), c.Message().Text+fmt.Sprintf("\n\n❌ Rejected by %s.", adminName(sender)))
	return err
}

// HandleDraw handles the /draw command: /draw <daily|weekly|monthly>.
func (h *AdminHandler) HandleDraw(c tele.Context) error {
	tier, ok := tierArg(c)
	if !ok {
		return c.Reply("Usage: /draw <daily|weekly|monthly>")
	}

	err := h.engine.Trigger(context.Background(), tier)
	switch {
	case err == nil:
		return c.Reply(fmt.Sprintf("🎲 %s started! Follow the countdown in the channel.", tier.Title()))
	case errors.Is(err, draw.ErrDrawInProgress):
		return c.Reply(fmt.Sprintf("The %s is already running.", tier.Title()))
	case errors.Is(err, draw.ErrDrawDisabled):
		return c.Reply(fmt.Sprintf("The %s is disabled. Use /toggle %s to enable it.", tier.Title(), tier))
	case errors.Is(err, draw.ErrNoTickets):
		return c.Reply(fmt.Sprintf("No tickets in the current %s window.", tier.Title()))
	default:
		return c.Reply("❌ Could not start the draw, see logs.")
	}
}

// HandleToggle handles the /toggle command: /toggle <daily|weekly|monthly>.
func (h *AdminHandler) HandleToggle(c tele.Context) error {
	tier, ok := tierArg(c)
	if !ok {
		return h.replyToggleStatus(c)
	}

	disabled, reason, err := h.control.Toggle(context.Background(), tier)
	if err != nil {
		return c.Reply("❌ Could not update the draw switch, see logs.")
	}
	if disabled {
		return c.Reply(fmt.Sprintf("⏸️ %s disabled.\nReason shown to players: %s", tier.Title(), reason))
	}
	return c.Reply(fmt.Sprintf("▶️ %s enabled.", tier.Title()))
}

// HandleAlerts handles the /alerts command: /alerts <on|off>.
func (h *AdminHandler) HandleAlerts(c tele.Context) error {
	var value string
	switch strings.TrimSpace(c.Message().Payload) {
	case "on":
		value = "1"
	case "off":
		value = "0"
	default:
		return c.Reply("Usage: /alerts <on|off>")
	}

	if err := h.settings.Set(context.Background(), model.SettingAdminAlerts, value); err != nil {
		return c.Reply("❌ Could not update the alerts switch, see logs.")
	}
	if value == "1" {
		return c.Reply("🔔 Admin alerts enabled.")
	}
	return c.Reply("🔕 Admin alerts disabled.")
}

func (h *AdminHandler) replyToggleStatus(c tele.Context) error {
	snapshot := h.control.Snapshot(context.Background())

	var b strings.Builder
	b.WriteString("Draw switches:\n\n")
	for _, tier := range model.AllTiers() {
		if reason, ok := snapshot[tier.String()]; ok {
			fmt.Fprintf(&b, "⏸️ %s — disabled (%s)\n", tier.Title(), reason)
		} else {
			fmt.Fprintf(&b, "▶️ %s — enabled\n", tier.Title())
		}
	}
	b.WriteString("\nUsage: /toggle <daily|weekly|monthly>")
	return c.Reply(b.String())
}

func tierArg(c tele.Context) (model.Tier, bool) {
	payload := strings.TrimSpace(c.Message().Payload)
	tier, err := model.ParseTier(payload)
	if err != nil {
		return 0, false
	}
	return tier, true
}

func reviewMarkup(requestID int64) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(
		markup.Data("✅ Approve", fmt.Sprintf("%s%d", CallbackApprovePrefix, requestID)),
		markup.Data("❌ Reject", fmt.Sprintf("%s%d", CallbackRejectPrefix, requestID)),
	))
	return markup
}

func formatPendingRequest(req *model.PendingRequest) string {
	receipt := receiptLabel(req.ReceiptNumber)
	tier, err := model.ParseTier(req.TicketType)
	title := req.TicketType
	if err == nil {
		title = tier.Title()
	}
	total := int64(req.Quantity) * model.TicketPrice
	return fmt.Sprintf(
		"Request #%d\n"+
			"User: @%s (%d)\n"+
			"Draw: %s\n"+
			"Quantity: %d (%d SYP)\n"+
			"Payment: %s\n"+
			"Receipt: %s\n"+
			"Submitted: %s",
		req.ID, req.Username, req.UserID, title,
		req.Quantity, total, paymentMethodTitle(req.PaymentMethod),
		receipt, req.RequestTime,
	)
}

// receiptLabel renders a stored receipt reference. Photo receipts hold
// the Telegram file id, which is no use to read, so those point the admin
// at the copy forwarded to the alerts channel.
func receiptLabel(ref *string) string {
	if ref == nil {
		return "—"
	}
	if service.ValidateReceiptReference(*ref) == nil {
		return *ref
	}
	return "📷 photo (forwarded to the alerts channel)"
}

func adminName(u *tele.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return strconv.FormatInt(u.ID, 10)
}
