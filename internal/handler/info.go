package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"lottery-bot/internal/model"
	"lottery-bot/internal/repository"
	"lottery-bot/internal/service"
)

const recentWinnersShown = 10

// InfoHandler serves the read-only player commands.
type InfoHandler struct {
	stats   *service.StatsService
	tickets *repository.TicketRepository
	pending *repository.PendingRequestRepository
}

// NewInfoHandler creates a new InfoHandler.
func NewInfoHandler(stats *service.StatsService, tickets *repository.TicketRepository, pending *repository.PendingRequestRepository) *InfoHandler {
	return &InfoHandler{stats: stats, tickets: tickets, pending: pending}
}

// HandleMyRequests handles the /requests command: the user's purchase
// requests still waiting for review.
func (h *InfoHandler) HandleMyRequests(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	requests, err := h.pending.ListByUser(context.Background(), sender.ID)
	if err != nil {
		return c.Reply("❌ Could not load your requests, please try again later.")
	}
	if len(requests) == 0 {
		return c.Reply("You have no requests waiting for review.")
	}

	var b strings.Builder
	b.WriteString("⏳ Your requests under review:\n\n")
	for _, req := range requests {
		tier, err := model.ParseTier(req.TicketType)
		title := req.TicketType
		if err == nil {
			title = tier.Title()
		}
		fmt.Fprintf(&b, "• #%d — %d ticket(s) for the %s, submitted %s\n",
			req.ID, req.Quantity, title, req.RequestTime)
	}
	return c.Reply(b.String())
}

// HandleMyTickets handles the /mytickets command.
func (h *InfoHandler) HandleMyTickets(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	tickets, err := h.tickets.ListByUser(context.Background(), sender.ID)
	if err != nil {
		return c.Reply("❌ Could not load your tickets, please try again later.")
	}
	if len(tickets) == 0 {
		return c.Reply("You have no active tickets. Use /buy to get one!")
	}

	var b strings.Builder
	b.WriteString("🎟️ Your active tickets:\n\n")
	for _, t := range tickets {
		tier, err := model.ParseTier(t.TicketType)
		title := t.TicketType
		if err == nil {
			title = tier.Title()
		}
		fmt.Fprintf(&b, "• %s — %s (bought %s)\n", t.TicketNumber, title, t.PurchaseDate)
	}
	return c.Reply(b.String())
}

// HandleWinners handles the /winners command.
func (h *InfoHandler) HandleWinners(c tele.Context) error {
	winners, err := h.stats.RecentWinners(context.Background(), recentWinnersShown)
	if err != nil {
		return c.Reply("❌ Could not load winners, please try again later.")
	}
	if len(winners) == 0 {
		return c.Reply("No draws have completed yet. You could be the first winner!")
	}

	var b strings.Builder
	b.WriteString("🏆 Recent winners:\n\n")
	for _, w := range winners {
		name := w.Username
		if name == "" {
			name = fmt.Sprintf("player %d", w.UserID)
		}
		tier, err := model.ParseTier(w.TicketType)
		title := w.TicketType
		if err == nil {
			title = tier.Title()
		}
		fmt.Fprintf(&b, "• %s — %s, ticket %s, %d SYP (%s)\n",
			name, title, w.TicketNumber, w.PrizeAmount, w.WinDate)
	}
	return c.Reply(b.String())
}

// HandleStats handles the /stats command: current pool per tier plus
// all-time figures.
func (h *InfoHandler) HandleStats(c tele.Context) error {
	ctx := context.Background()

	var b strings.Builder
	b.WriteString("📊 Draw statistics\n\n")

	for _, tier := range model.AllTiers() {
		ts, err := h.stats.Window(ctx, tier)
		if err != nil {
			return c.Reply("❌ Could not load statistics, please try again later.")
		}
		fmt.Fprintf(&b, "%s (%s to %s):\n  %d tickets from %d players, current prize %d SYP\n\n",
			tier.Title(), ts.Window.Start, ts.Window.End, ts.Tickets, ts.Users, ts.Prize)
	}

	global, err := h.stats.Global(ctx)
	if err != nil {
		return c.Reply("❌ Could not load statistics, please try again later.")
	}
	fmt.Fprintf(&b, "All time: %d tickets sold to %d players, %d SYP paid out in prizes.",
		global.TotalTickets, global.TotalUsers, global.PaidOut)

	return c.Reply(b.String())
}
