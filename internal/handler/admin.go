package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v3"

	"cricket-prediction-bot/internal/cricket"
	"cricket-prediction-bot/internal/service"
)

const (
	// broadcastWindow limits broadcasts to recently active users.
	broadcastWindow = 7 * 24 * time.Hour
	// broadcastRate stays under Telegram's global send limit.
	broadcastRate = 25
)

// Messenger sends messages outside the current update. *tele.Bot
// satisfies it.
type Messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// AdminHandler handles admin-related commands.
type AdminHandler struct {
	accountService *service.AccountService
	matchService   *service.MatchService
	messenger      Messenger
	limiter        *rate.Limiter
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(accountService *service.AccountService, matchService *service.MatchService, messenger Messenger) *AdminHandler {
	return &AdminHandler{
		accountService: accountService,
		matchService:   matchService,
		messenger:      messenger,
		limiter:        rate.NewLimiter(rate.Limit(broadcastRate), 1),
	}
}

// parseStartMatch parses "<name> | <team a> | <team b> [overs]". Overs may
// also be given as a fourth "|" field.
func parseStartMatch(payload string) (service.StartMatchRequest, error) {
	parts := strings.Split(payload, "|")
	if len(parts) < 3 || len(parts) > 4 {
		return service.StartMatchRequest{}, errors.New("expected 3 or 4 fields")
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	req := service.StartMatchRequest{Name: parts[0], TeamA: parts[1], TeamB: parts[2]}
	if len(parts) == 4 {
		overs, err := strconv.Atoi(parts[3])
		if err != nil {
			return service.StartMatchRequest{}, fmt.Errorf("invalid overs %q", parts[3])
		}
		req.TotalOvers = overs
		return req, nil
	}

	if i := strings.LastIndexByte(req.TeamB, ' '); i > 0 {
		if overs, err := strconv.Atoi(req.TeamB[i+1:]); err == nil {
			req.TeamB = strings.TrimSpace(req.TeamB[:i])
			req.TotalOvers = overs
		}
	}
	return req, nil
}

// HandleStartMatch handles the /startmatch command.
// Format: /startmatch <name> | <team a> | <team b> [overs]
func (h *AdminHandler) HandleStartMatch(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	req, err := parseStartMatch(c.Data())
	if err != nil {
		return c.Reply("❌ Usage: /startmatch <name> | <team a> | <team b> [overs]\n" +
			"Example: /startmatch Final | India | Australia 20")
	}

	match, superseded, err := h.matchService.Start(ctx, sender.ID, req)
	if err != nil {
		return c.Reply(errorText("startmatch", sender.ID, err))
	}

	msg := fmt.Sprintf("✅ Match #%d started\n\n%s", match.ID, FormatDashboard(match, nil, 0))
	for _, m := range superseded {
		msg += fmt.Sprintf("\n🏁 Match #%d %s was completed", m.ID, m.Name)
	}
	if err := c.Reply(msg, cricket.JoinKeyboard(match.ID)); err != nil {
		return err
	}

	sent := h.broadcast(ctx, sender.ID, fmt.Sprintf(
		"🏏 %s is live!\n%s vs %s, %d overs\nUse /join to play.",
		match.Name, match.TeamA, match.TeamB, match.TotalOvers,
	))
	log.Info().
		Int64("admin_id", sender.ID).
		Int64("match_id", match.ID).
		Int("notified", sent).
		Msg("Match start announced")
	return nil
}

// HandleStopMatch handles the /stopmatch command.
func (h *AdminHandler) HandleStopMatch(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	match, err := h.matchService.Stop(ctx)
	if err != nil {
		return c.Reply(errorText("stopmatch", sender.ID, err))
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("match_id", match.ID).
		Str("operation", "stopmatch").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf("🏁 Match #%d stopped\n\n%s", match.ID, FormatDashboard(match, nil, 0)))
}

// HandlePauseMatch handles the /pausematch command.
func (h *AdminHandler) HandlePauseMatch(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	match, err := h.matchService.Pause(ctx)
	if err != nil {
		return c.Reply(errorText("pausematch", sender.ID, err))
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("match_id", match.ID).
		Str("operation", "pausematch").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf("⏸ Match #%d paused. Resume with /resumematch %d", match.ID, match.ID))
}

// HandleResumeMatch handles the /resumematch command.
// Format: /resumematch <match_id>
func (h *AdminHandler) HandleResumeMatch(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ Usage: /resumematch <match_id>")
	}
	matchID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Reply("❌ Match ID must be a number")
	}

	match, err := h.matchService.Resume(ctx, matchID)
	if err != nil {
		return c.Reply(errorText("resumematch", sender.ID, err))
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("match_id", match.ID).
		Str("operation", "resumematch").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf("▶️ Match #%d is live again", match.ID), cricket.JoinKeyboard(match.ID))
}

// HandleAddCoins handles the /addcoins command.
// Format: /addcoins <user_id> <amount>
func (h *AdminHandler) HandleAddCoins(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 2 {
		return c.Reply("❌ Usage: /addcoins <user_id> <amount>\nExample: /addcoins 123456789 100")
	}
	targetID, err := parseUserID(args[0])
	if err != nil {
		return c.Reply(err.Error())
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return c.Reply("❌ Amount must be a whole number")
	}

	user, err := h.accountService.AdminAddCoins(ctx, sender.ID, targetID, amount)
	if err != nil {
		return c.Reply(errorText("addcoins", sender.ID, err))
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("target_id", targetID).
		Int64("amount", amount).
		Str("operation", "addcoins").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf(
		"✅ Done\n\n"+
			"👤 User: %s (ID: %d)\n"+
			"➕ Added: %d coins\n"+
			"💰 Balance: %d coins",
		userLabel(user.ID, user.DisplayName), targetID, amount, user.Balance,
	))
}

// HandleResetCoins handles the /resetcoins command.
// Format: /resetcoins <user_id>
func (h *AdminHandler) HandleResetCoins(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ Usage: /resetcoins <user_id>")
	}
	targetID, err := parseUserID(args[0])
	if err != nil {
		return c.Reply(err.Error())
	}

	user, err := h.accountService.AdminResetCoins(ctx, sender.ID, targetID)
	if err != nil {
		return c.Reply(errorText("resetcoins", sender.ID, err))
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int64("target_id", targetID).
		Str("operation", "resetcoins").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf(
		"✅ Balance of %s (ID: %d) reset to %d coins",
		userLabel(user.ID, user.DisplayName), targetID, user.Balance,
	))
}

// HandleUserHistory handles the /userhistory command.
// Format: /userhistory <user_id>
func (h *AdminHandler) HandleUserHistory(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ Usage: /userhistory <user_id>")
	}
	targetID, err := parseUserID(args[0])
	if err != nil {
		return c.Reply(err.Error())
	}

	user, err := h.accountService.GetUser(ctx, targetID)
	if err != nil {
		return c.Reply(errorText("userhistory", sender.ID, err))
	}
	history, err := h.accountService.History(ctx, targetID, historyLimit)
	if err != nil {
		return c.Reply(errorText("userhistory", sender.ID, err))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📜 %s (ID: %d)\n💰 Balance: %d  ·  ✅ %d  ·  ❌ %d\n%s\n",
		userLabel(user.ID, user.DisplayName), user.ID, user.Balance, user.Wins, user.Losses, divider)
	if len(history) == 0 {
		b.WriteString("No predictions yet\n")
	}
	for _, p := range history {
		b.WriteString(FormatPrediction(p) + "\n")
	}
	b.WriteString(divider)
	return c.Reply(b.String())
}

// HandleBroadcast handles the /broadcast command.
// Format: /broadcast <text>
func (h *AdminHandler) HandleBroadcast(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	text := strings.TrimSpace(c.Data())
	if text == "" {
		return c.Reply("❌ Usage: /broadcast <text>")
	}

	sent := h.broadcast(ctx, sender.ID, "📢 "+truncate(text, broadcastLimit))

	log.Info().
		Int64("admin_id", sender.ID).
		Int("sent", sent).
		Str("operation", "broadcast").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf("✅ Broadcast sent to %d users", sent))
}

// broadcast sends text to every recently active user and returns how many
// deliveries succeeded.
func (h *AdminHandler) broadcast(ctx context.Context, adminID int64, text string) int {
	if h.messenger == nil {
		return 0
	}

	ids, err := h.accountService.ActiveUserIDs(ctx, broadcastWindow)
	if err != nil {
		log.Error().Err(err).Int64("admin_id", adminID).Msg("Failed to load broadcast recipients")
		return 0
	}

	sent := 0
	for _, id := range ids {
		if err := h.limiter.Wait(ctx); err != nil {
			break
		}
		if _, err := h.messenger.Send(&tele.User{ID: id}, text); err != nil {
			log.Debug().Err(err).Int64("user_id", id).Msg("Failed to deliver broadcast")
			continue
		}
		sent++
	}
	return sent
}

// parseUserID parses a Telegram user ID argument.
func parseUserID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("❌ User ID must be a positive number")
	}
	return id, nil
}
