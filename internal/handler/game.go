package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"cricket-prediction-bot/internal/cricket"
	"cricket-prediction-bot/internal/service"
)

// categoryAliases lets players type short names after /predict.
var categoryAliases = map[string]cricket.Category{
	"2":      cricket.CategoryTwoRuns,
	"two":    cricket.CategoryTwoRuns,
	"4":      cricket.CategoryFour,
	"four":   cricket.CategoryFour,
	"6":      cricket.CategorySix,
	"six":    cricket.CategorySix,
	"w":      cricket.CategoryWicket,
	"out":    cricket.CategoryWicket,
	"0":      cricket.CategoryDotBall,
	"dot":    cricket.CategoryDotBall,
	"wicket": cricket.CategoryWicket,
}

// parseCategory resolves a typed prediction name.
func parseCategory(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := categoryAliases[s]; ok {
		return string(c)
	}
	return s
}

// GameHandler handles the live match and prediction commands.
type GameHandler struct {
	accountService *service.AccountService
	gameService    *service.GameService
	matchService   *service.MatchService
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(
	accountService *service.AccountService,
	gameService *service.GameService,
	matchService *service.MatchService,
) *GameHandler {
	return &GameHandler{
		accountService: accountService,
		gameService:    gameService,
		matchService:   matchService,
	}
}

// panel renders the dashboard and keyboard for a user. Joined users get the
// prediction panel, others get the live match with a join button.
func (h *GameHandler) panel(ctx context.Context, userID int64) (string, *tele.ReplyMarkup, error) {
	if sess, ok := h.gameService.Session(userID); ok {
		match, err := h.matchService.Get(ctx, sess.MatchID)
		if err != nil {
			return "", nil, err
		}
		text := FormatDashboard(match, &sess, h.matchService.Players(match.ID))
		return text, cricket.PredictionKeyboard(cricket.Category(sess.Prediction), sess.Stake), nil
	}

	match, err := h.matchService.Live(ctx)
	if err != nil {
		return "", nil, err
	}
	return FormatDashboard(match, nil, h.matchService.Players(match.ID)), cricket.JoinKeyboard(match.ID), nil
}

// HandleLive handles the /live command.
func (h *GameHandler) HandleLive(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	text, markup, err := h.panel(ctx, sender.ID)
	if err != nil {
		return c.Reply(errorText("live", sender.ID, err))
	}
	return c.Reply(text, markup)
}

// HandleJoin handles the /join command.
// Format: /join [match_id]; without an ID the live match is joined.
func (h *GameHandler) HandleJoin(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	var matchID int64
	if args := c.Args(); len(args) > 0 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return c.Reply("❌ Usage: /join [match_id]")
		}
		matchID = id
	}

	if err := h.join(ctx, sender, matchID); err != nil {
		return c.Reply(errorText("join", sender.ID, err))
	}

	text, markup, err := h.panel(ctx, sender.ID)
	if err != nil {
		return c.Reply(errorText("join", sender.ID, err))
	}
	return c.Reply("✅ You joined the match!\n\n"+text, markup)
}

// join makes sure the player has an account, then binds them to matchID or
// the live match when matchID is zero.
func (h *GameHandler) join(ctx context.Context, sender *tele.User, matchID int64) error {
	if _, _, err := h.accountService.EnsureUser(ctx, sender.ID, displayName(sender)); err != nil {
		return err
	}

	var err error
	if matchID == 0 {
		_, _, err = h.gameService.JoinLive(ctx, sender.ID)
	} else {
		_, _, err = h.gameService.Join(ctx, sender.ID, matchID)
	}
	if err != nil {
		return err
	}

	log.Debug().
		Int64("user_id", sender.ID).
		Int64("match_id", matchID).
		Msg("Player joined match")
	return nil
}

// HandleStake handles the /stake command.
// Format: /stake <amount>
func (h *GameHandler) HandleStake(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ Usage: /stake <amount>")
	}
	amount, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Reply("❌ Stake must be a number")
	}

	sess, err := h.gameService.SetStake(sender.ID, amount)
	if err != nil {
		return c.Reply(errorText("stake", sender.ID, err))
	}
	return c.Reply(fmt.Sprintf("💰 Stake set to %d coins", sess.Stake))
}

// HandlePredict handles the /predict command.
// Format: /predict [category]; opens the prediction panel.
func (h *GameHandler) HandlePredict(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if _, ok := h.gameService.Session(sender.ID); !ok {
		return c.Reply(errorText("predict", sender.ID, service.ErrNotJoined))
	}

	if args := c.Args(); len(args) > 0 {
		if _, err := h.gameService.SetPrediction(sender.ID, parseCategory(args[0])); err != nil {
			return c.Reply(errorText("predict", sender.ID, err) + "\n\n" + FormatRules())
		}
	}

	text, markup, err := h.panel(ctx, sender.ID)
	if err != nil {
		return c.Reply(errorText("predict", sender.ID, err))
	}
	return c.Reply(text, markup)
}

// HandleLeave handles the /leave command.
func (h *GameHandler) HandleLeave(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if !h.gameService.Leave(sender.ID) {
		return c.Reply("⚠️ You are not in a match.")
	}
	return c.Reply("👋 You left the match. Use /join to come back.")
}

// HandleCallback handles prediction panel button presses.
func (h *GameHandler) HandleCallback(c tele.Context) error {
	ctx := context.Background()
	callback := c.Callback()
	sender := c.Sender()
	if callback == nil || sender == nil {
		return nil
	}

	action, param := cricket.DecodeCallback(callback.Data)
	log.Debug().
		Int64("user_id", sender.ID).
		Str("action", action).
		Str("param", param).
		Msg("Prediction callback")

	switch action {
	case cricket.ActionJoin:
		matchID, err := strconv.ParseInt(param, 10, 64)
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: "❌ Invalid action"})
		}
		if err := h.join(ctx, sender, matchID); err != nil {
			return h.respondErr(c, "join", sender.ID, err)
		}
		h.refresh(ctx, c, sender.ID)
		return c.Respond(&tele.CallbackResponse{Text: "✅ Joined!"})

	case cricket.ActionPick:
		if _, err := h.gameService.SetPrediction(sender.ID, param); err != nil {
			return h.respondErr(c, "pick", sender.ID, err)
		}
		h.refresh(ctx, c, sender.ID)
		return c.Respond(&tele.CallbackResponse{Text: "🔮 Prediction selected"})

	case cricket.ActionStake:
		amount, err := strconv.ParseInt(param, 10, 64)
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: "❌ Invalid action"})
		}
		if _, err := h.gameService.SetStake(sender.ID, amount); err != nil {
			return h.respondErr(c, "stake", sender.ID, err)
		}
		h.refresh(ctx, c, sender.ID)
		return c.Respond(&tele.CallbackResponse{Text: fmt.Sprintf("💰 Stake %d", amount)})

	case cricket.ActionConfirm:
		return h.confirm(ctx, c, sender)

	case cricket.ActionRefresh:
		h.refresh(ctx, c, sender.ID)
		return c.Respond()

	case cricket.ActionLeave:
		h.gameService.Leave(sender.ID)
		h.refresh(ctx, c, sender.ID)
		return c.Respond(&tele.CallbackResponse{Text: "👋 Left the match"})

	default:
		return c.Respond(&tele.CallbackResponse{Text: "❌ Invalid action"})
	}
}

// confirm settles the pending prediction and posts the result.
func (h *GameHandler) confirm(ctx context.Context, c tele.Context, sender *tele.User) error {
	result, err := h.gameService.Settle(ctx, sender.ID)
	if errors.Is(err, service.ErrSettleInProgress) {
		return c.Respond(&tele.CallbackResponse{Text: errorText("settle", sender.ID, err)})
	}
	if err != nil {
		return h.respondErr(c, "settle", sender.ID, err)
	}

	log.Debug().
		Int64("user_id", sender.ID).
		Int64("match_id", result.MatchID).
		Str("category", string(result.Category)).
		Str("outcome", result.Outcome.Outcome.String()).
		Bool("won", result.Won).
		Msg("Prediction settled")

	text := FormatSettlement(result)
	if chat := c.Chat(); chat != nil && chat.Type != tele.ChatPrivate {
		text = fmt.Sprintf("👤 %s\n%s", displayName(sender), text)
	}
	if err := c.Send(text); err != nil {
		log.Debug().Err(err).Msg("Failed to send settlement message")
	}

	h.refresh(ctx, c, sender.ID)

	short := fmt.Sprintf("❌ %s, lost %d", result.Outcome.Outcome, result.Stake)
	if result.Won {
		short = fmt.Sprintf("✅ %s, won %d!", result.Outcome.Outcome, result.Winnings)
	}
	return c.Respond(&tele.CallbackResponse{Text: short})
}

// refresh redraws the panel the button belongs to.
func (h *GameHandler) refresh(ctx context.Context, c tele.Context, userID int64) {
	text, markup, err := h.panel(ctx, userID)
	if err != nil {
		if !errors.Is(err, service.ErrNoLiveMatch) {
			log.Debug().Err(err).Int64("user_id", userID).Msg("Failed to render panel")
		}
		text, markup = "📭 No match is live right now.", nil
	}

	if markup == nil {
		err = c.Edit(text)
	} else {
		err = c.Edit(text, markup)
	}
	if err != nil && !errors.Is(err, tele.ErrSameMessageContent) && !errors.Is(err, tele.ErrMessageNotModified) {
		log.Debug().Err(err).Msg("Failed to edit prediction panel")
	}
}

// respondErr answers a button press with an alert describing err.
func (h *GameHandler) respondErr(c tele.Context, op string, userID int64, err error) error {
	return c.Respond(&tele.CallbackResponse{
		Text:      errorText(op, userID, err),
		ShowAlert: true,
	})
}
