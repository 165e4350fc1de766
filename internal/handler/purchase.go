// Package handler provides Telegram bot command and callback handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"lottery-bot/internal/model"
	"lottery-bot/internal/pkg/lock"
	"lottery-bot/internal/service"
	"lottery-bot/internal/session"
)

// Callback data prefixes for the purchase dialogue.
const (
	CallbackTierPrefix = "tier_"
	CallbackPayPrefix  = "pay_"
)

// dialogueLockWait bounds how long one dialogue input waits on another
// still in flight for the same user. Input that cannot get the lock in
// time is dropped rather than queued.
const dialogueLockWait = 3 * time.Second

// Submitter files a validated purchase request for admin review.
type Submitter interface {
	Submit(ctx context.Context, userID int64, username string, tier model.Tier, paymentMethod string, quantity int, receipt *service.Receipt) (int64, error)
}

// PurchaseHandler drives the ticket purchase dialogue: tier, quantity,
// payment method, then receipt. Dialogue state lives in the session store;
// a submitted request goes to the admission service for admin review.
// Each user's dialogue input is serialized by a per-user lock so a photo
// and a text arriving together cannot both submit the same dialogue.
type PurchaseHandler struct {
	sessions  *session.Store
	admission Submitter
	control   *service.DrawControlService
	userLock  *lock.Keyed[int64]
	lockWait  time.Duration
}

// NewPurchaseHandler creates a new PurchaseHandler.
func NewPurchaseHandler(sessions *session.Store, admission Submitter, control *service.DrawControlService) *PurchaseHandler {
	return &PurchaseHandler{
		sessions:  sessions,
		admission: admission,
		control:   control,
		userLock:  lock.NewKeyed[int64](),
		lockWait:  dialogueLockWait,
	}
}

// HandleStart handles the /start command.
func (h *PurchaseHandler) HandleStart(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	return c.Reply(fmt.Sprintf(
		"🎟️ Welcome to the lottery!\n\n"+
			"Tickets cost %d SYP each. Every draw pays out to one winner.\n\n"+
			"Commands:\n"+
			"/buy - Buy tickets\n"+
			"/mytickets - Your active tickets\n"+
			"/requests - Your requests under review\n"+
			"/winners - Recent winners\n"+
			"/stats - Draw statistics\n"+
			"/cancel - Abort a purchase in progress",
		model.TicketPrice,
	))
}

// HandleBuy handles the /buy command and opens the purchase dialogue.
func (h *PurchaseHandler) HandleBuy(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if c.Chat() != nil && c.Chat().Type != tele.ChatPrivate {
		return c.Reply("Please message me privately to buy tickets.")
	}

	username := sender.Username
	if username == "" {
		username = sender.FirstName
	}
	h.sessions.Begin(sender.ID, username)

	markup := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(model.AllTiers()))
	for _, tier := range model.AllTiers() {
		rows = append(rows, markup.Row(markup.Data(tier.Title(), CallbackTierPrefix+tier.String())))
	}
	markup.Inline(rows...)

	return c.Reply("Which draw would you like a ticket for?", markup)
}

// HandleCancel handles the /cancel command.
func (h *PurchaseHandler) HandleCancel(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if h.sessions.Get(sender.ID) == nil {
		return c.Reply("No purchase in progress.")
	}
	h.sessions.End(sender.ID)
	return c.Reply("Purchase cancelled.")
}

// HandleTierCallback handles a tier selection button press.
func (h *PurchaseHandler) HandleTierCallback(c tele.Context, data string) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	tier, err := model.ParseTier(strings.TrimPrefix(data, CallbackTierPrefix))
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Unknown draw"})
	}

	// Disabled tiers cannot accept new tickets: their window might never
	// settle.
	if reason, disabled := h.control.DisabledReason(context.Background(), tier); disabled {
		return c.Respond(&tele.CallbackResponse{
			Text:      fmt.Sprintf("The %s is currently unavailable: %s", tier.Title(), reason),
			ShowAlert: true,
		})
	}

	if err := h.sessions.SetTier(sender.ID, tier); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Please start over with /buy"})
	}

	_ = c.Respond(&tele.CallbackResponse{})
	return c.Send(fmt.Sprintf(
		"%s selected.\n\nHow many tickets? (1-%d, %d SYP each)",
		tier.Title(), model.MaxQuantity, model.TicketPrice,
	))
}

// HandlePayCallback handles a payment method button press.
func (h *PurchaseHandler) HandlePayCallback(c tele.Context, data string) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	method := strings.TrimPrefix(data, CallbackPayPrefix)
	if err := h.sessions.SetPaymentMethod(sender.ID, method); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Please start over with /buy"})
	}

	_ = c.Respond(&tele.CallbackResponse{})
	return c.Send(
		"Almost done! Send your payment receipt:\n\n" +
			"• a photo of the receipt, or\n" +
			"• the transaction number (at least 12 digits)",
	)
}

// HandleText consumes free-text input for the dialogue steps that expect
// it: the quantity and the receipt transaction number. Text outside a
// dialogue is ignored.
func (h *PurchaseHandler) HandleText(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	err := h.userLock.WithLockContext(context.Background(), sender.ID, h.lockWait, func() error {
		p := h.sessions.Get(sender.ID)
		if p == nil {
			return nil
		}

		switch p.State {
		case session.AwaitingQuantity:
			return h.consumeQuantity(c, sender.ID, c.Text())
		case session.AwaitingReceipt:
			return h.consumeReceiptText(c, sender.ID, c.Text())
		default:
			return nil
		}
	})
	if errors.Is(err, lock.ErrLockTimeout) {
		// Another input for this user is still being processed; drop.
		return nil
	}
	return err
}

// HandlePhoto consumes a receipt photo when the dialogue expects one. The
// photo's file id becomes the receipt reference, so a re-sent photo trips
// the same duplicate check as a re-typed transaction number.
func (h *PurchaseHandler) HandlePhoto(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	photo := c.Message().Photo
	if photo == nil {
		return nil
	}

	err := h.userLock.WithLockContext(context.Background(), sender.ID, h.lockWait, func() error {
		p := h.sessions.Get(sender.ID)
		if p == nil || p.State != session.AwaitingReceipt {
			return nil
		}
		return h.submit(c, p, &service.Receipt{Reference: photo.FileID, Photo: true})
	})
	if errors.Is(err, lock.ErrLockTimeout) {
		return nil
	}
	return err
}

func (h *PurchaseHandler) consumeQuantity(c tele.Context, userID int64, text string) error {
	quantity, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || quantity < 1 || quantity > model.MaxQuantity {
		return c.Reply(fmt.Sprintf("Please send a number between 1 and %d.", model.MaxQuantity))
	}

	if err := h.sessions.SetQuantity(userID, quantity); err != nil {
		return c.Reply("Please start over with /buy")
	}

	markup := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(model.PaymentMethods()))
	for _, method := range model.PaymentMethods() {
		rows = append(rows, markup.Row(markup.Data(paymentMethodTitle(method), CallbackPayPrefix+method)))
	}
	markup.Inline(rows...)

	total := int64(quantity) * model.TicketPrice
	return c.Reply(fmt.Sprintf(
		"%d ticket(s), %d SYP total.\n\nHow will you pay?",
		quantity, total,
	), markup)
}

func (h *PurchaseHandler) consumeReceiptText(c tele.Context, userID int64, text string) error {
	receipt := strings.TrimSpace(text)
	if err := service.ValidateReceiptReference(receipt); err != nil {
		return c.Reply("That doesn't look like a transaction number. Send a photo of the receipt or a number with at least 12 digits.")
	}
	p := h.sessions.Get(userID)
	if p == nil {
		return c.Reply("Please start over with /buy")
	}
	return h.submit(c, p, &service.Receipt{Reference: receipt})
}

func (h *PurchaseHandler) submit(c tele.Context, p *session.Purchase, receipt *service.Receipt) error {
	ctx := context.Background()

	_, err := h.admission.Submit(ctx, p.UserID, p.Username, p.Tier, p.PaymentMethod, p.Quantity, receipt)
	if err != nil {
		if errors.Is(err, service.ErrDuplicateReceipt) {
			return c.Reply("❌ This receipt has already been submitted.")
		}
		return c.Reply("❌ Could not submit your request, please try again later.")
	}

	h.sessions.End(p.UserID)
	return c.Reply(
		"✅ Your request has been submitted!\n\n" +
			"An administrator will verify your payment shortly. " +
			"You'll receive your ticket numbers once it's approved.",
	)
}

func paymentMethodTitle(method string) string {
	switch method {
	case model.PaymentShamCash:
		return "Sham Cash"
	case model.PaymentSyriatelCash:
		return "Syriatel Cash"
	}
	return method
}
