package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"cricket-prediction-bot/internal/service"
)

// AccountHandler handles account-related commands.
type AccountHandler struct {
	accountService *service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
	}
}

// HandleStart handles the /start command.
// Creates an account with the initial coins if the user doesn't exist.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	name := displayName(sender)
	user, created, err := h.accountService.EnsureUser(ctx, sender.ID, name)
	if err != nil {
		return c.Reply(errorText("start", sender.ID, err))
	}

	if created {
		return c.Reply(fmt.Sprintf(
			"🏏 Welcome %s!\n\n"+
				"Your account is ready with %d coins.\n"+
				"Predict what the next ball brings and win big.\n\n"+
				"/live - see the live match\n"+
				"/join - join the live match\n"+
				"/help - all commands",
			name, user.Balance,
		))
	}

	return c.Reply(fmt.Sprintf(
		"👋 Welcome back %s!\n\n"+
			"Balance: %d coins",
		name, user.Balance,
	))
}

// HandleHelp handles the /help command.
func (h *AccountHandler) HandleHelp(c tele.Context) error {
	msg := "📖 Commands\n" + divider + "\n" +
		"/start - create your account\n" +
		"/coins - show your balance\n" +
		"/profile - your stats\n" +
		"/history - your last predictions\n" +
		"/myid - your Telegram ID\n" +
		"/live - live match dashboard\n" +
		"/join - join the live match\n" +
		"/stake <n> - set your stake\n" +
		"/predict - open the prediction panel\n" +
		"/leave - leave the match\n" +
		"/top - richest players\n" +
		"/leaders - best predictors this match\n" +
		divider + "\n" +
		FormatRules()
	return c.Reply(msg)
}

// HandleCoins handles the /coins command.
func (h *AccountHandler) HandleCoins(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	user, _, err := h.accountService.EnsureUser(ctx, sender.ID, displayName(sender))
	if err != nil {
		return c.Reply(errorText("coins", sender.ID, err))
	}

	return c.Reply(fmt.Sprintf("💰 Balance: %d coins", user.Balance))
}

// HandleProfile handles the /profile command.
func (h *AccountHandler) HandleProfile(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	user, _, err := h.accountService.EnsureUser(ctx, sender.ID, displayName(sender))
	if err != nil {
		return c.Reply(errorText("profile", sender.ID, err))
	}

	stats, err := h.accountService.Stats(ctx, sender.ID)
	if err != nil {
		return c.Reply(errorText("profile", sender.ID, err))
	}

	return c.Reply(fmt.Sprintf(
		"📊 Profile\n"+
			"%s\n"+
			"👤 %s\n"+
			"💰 Balance: %d\n"+
			"🎯 Predictions: %d\n"+
			"✅ Wins: %d  ·  ❌ Losses: %d\n"+
			"📈 Win rate: %.1f%%\n"+
			"💸 Staked: %d  ·  Won: %d\n"+
			"📉 ROI: %.1f%%\n"+
			"%s",
		divider,
		user.DisplayName,
		user.Balance,
		stats.Total,
		user.Wins, user.Losses,
		user.WinRate(),
		stats.TotalStake, stats.TotalWon,
		stats.ROI(),
		divider,
	))
}

// HandleHistory handles the /history command.
func (h *AccountHandler) HandleHistory(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	history, err := h.accountService.History(ctx, sender.ID, historyLimit)
	if err != nil {
		return c.Reply(errorText("history", sender.ID, err))
	}
	if len(history) == 0 {
		return c.Reply("📭 No predictions yet. Use /join to play.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📜 Last %d predictions\n%s\n", len(history), divider)
	for _, p := range history {
		b.WriteString(FormatPrediction(p) + "\n")
	}
	b.WriteString(divider)
	return c.Reply(b.String())
}

// HandleMyID handles the /myid command.
func (h *AccountHandler) HandleMyID(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	msg := fmt.Sprintf("🆔 Your ID: %d", sender.ID)
	if chat := c.Chat(); chat != nil && chat.Type != tele.ChatPrivate {
		msg += fmt.Sprintf("\n💬 Chat ID: %d", chat.ID)
	}
	return c.Reply(msg)
}
