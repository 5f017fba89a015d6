// Package handler provides Telegram bot command handlers.
package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"cricket-prediction-bot/internal/cricket"
	"cricket-prediction-bot/internal/model"
	"cricket-prediction-bot/internal/service"
	"cricket-prediction-bot/internal/session"
)

const (
	divider        = "━━━━━━━━━━━━━━━"
	progressWidth  = 10
	historyLimit   = 10
	maxNameRunes   = 24
	broadcastLimit = 3500
)

// displayName picks the name shown for a Telegram user.
func displayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return fmt.Sprintf("User%d", u.ID)
	}
	return name
}

// userLabel formats a stored user for leaderboards.
func userLabel(id int64, name string) string {
	if name == "" {
		return fmt.Sprintf("User%d", id)
	}
	return truncate(name, maxNameRunes)
}

// statusEmoji maps a match status onto its dashboard badge.
func statusEmoji(status model.MatchStatus) string {
	switch status {
	case model.MatchLive:
		return "🔴 LIVE"
	case model.MatchPaused:
		return "⏸ PAUSED"
	case model.MatchCompleted:
		return "🏁 COMPLETED"
	default:
		return "🕒 PENDING"
	}
}

// progressBar renders the share of the innings already bowled.
func progressBar(ballsBowled, totalOvers int) string {
	total := totalOvers * 6
	if total <= 0 {
		return strings.Repeat("░", progressWidth) + " 0%"
	}
	if ballsBowled > total {
		ballsBowled = total
	}
	filled := ballsBowled * progressWidth / total
	percent := ballsBowled * 100 / total
	return fmt.Sprintf("%s%s %d%%",
		strings.Repeat("▓", filled),
		strings.Repeat("░", progressWidth-filled),
		percent,
	)
}

// FormatDashboard renders the live match panel. sess may be nil for users
// who have not joined.
func FormatDashboard(m *model.Match, sess *session.Session, players int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🏏 %s\n", m.Name)
	fmt.Fprintf(&b, "%s vs %s  ·  %s\n", m.TeamA, m.TeamB, statusEmoji(m.Status))
	b.WriteString(divider + "\n")
	fmt.Fprintf(&b, "📊 Score: %d/%d\n", m.Score, m.Wickets)
	fmt.Fprintf(&b, "🎯 Over: %s of %d\n", m.BallLabel(), m.TotalOvers)
	fmt.Fprintf(&b, "📈 Run rate: %.2f\n", m.RunRate)
	fmt.Fprintf(&b, "⏳ %s\n", progressBar(m.BallsBowled, m.TotalOvers))
	if m.LastBallResult != nil && *m.LastBallResult != "" {
		fmt.Fprintf(&b, "🏐 Last ball: %s\n", *m.LastBallResult)
	}
	fmt.Fprintf(&b, "👥 Players: %d\n", players)

	if sess != nil {
		b.WriteString(divider + "\n")
		fmt.Fprintf(&b, "💰 Stake: %d\n", sess.Stake)
		if sess.HasPrediction() {
			label := sess.Prediction
			if p, ok := cricket.Lookup(cricket.Category(sess.Prediction)); ok {
				label = fmt.Sprintf("%s (x%.1f, %d-%d)", p.Label, p.Multiplier.Float(), p.MinStake, p.MaxStake)
			}
			fmt.Fprintf(&b, "🔮 Prediction: %s\n", label)
		} else {
			b.WriteString("🔮 Prediction: pick one below\n")
		}
	}

	b.WriteString(divider)
	return b.String()
}

// FormatSettlement renders the outcome of one settled prediction.
func FormatSettlement(r *service.SettlementResult) string {
	var b strings.Builder

	o := r.Outcome.Outcome
	fmt.Fprintf(&b, "%s Ball %s: %s\n", cricket.Emoji(o), r.Ball.Label(), o)
	fmt.Fprintf(&b, "🎙 %s\n", r.Outcome.Description)
	b.WriteString(divider + "\n")

	label := string(r.Category)
	if p, ok := cricket.Lookup(r.Category); ok {
		label = p.Label
	}
	if r.Won {
		fmt.Fprintf(&b, "✅ You predicted %s and won %d coins!\n", label, r.Winnings)
	} else {
		fmt.Fprintf(&b, "❌ You predicted %s and lost %d coins.\n", label, r.Stake)
	}
	fmt.Fprintf(&b, "📊 Score: %d/%d  ·  RR %.2f\n", r.Ball.Score, r.Ball.Wickets, r.Ball.RunRate)
	fmt.Fprintf(&b, "💰 Balance: %d\n", r.Balance)
	if r.Ball.Completed {
		b.WriteString("🏁 Innings complete!\n")
	}
	b.WriteString(divider)
	return b.String()
}

// FormatPrediction renders one history row.
func FormatPrediction(p *model.Prediction) string {
	mark := "❌"
	if p.IsWinner {
		mark = "✅"
	}
	net := p.Net()
	sign := ""
	if net > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s #%d ball %s: %s vs %s, stake %d, %s%d",
		mark, p.MatchID, p.BallLabel, p.Category, p.ActualResult, p.Stake, sign, net)
}

// FormatRules lists the prediction table.
func FormatRules() string {
	var b strings.Builder
	b.WriteString("🎲 Predictions\n")
	for _, p := range cricket.Categories() {
		fmt.Fprintf(&b, "• %s: x%.1f, stake %d-%d\n", p.Label, p.Multiplier.Float(), p.MinStake, p.MaxStake)
	}
	return b.String()
}

// errorText translates a service error into chat text. Store failures are
// logged here since handlers are the last stop for them.
func errorText(op string, userID int64, err error) string {
	var funds *service.InsufficientFundsError
	switch {
	case errors.As(err, &funds):
		return fmt.Sprintf("❌ Insufficient balance: you have %d, stake is %d.", funds.Balance, funds.Stake)
	case errors.Is(err, service.ErrInsufficientFunds):
		return "❌ Insufficient balance."
	case errors.Is(err, service.ErrNoPendingPrediction):
		return "⚠️ Pick a prediction first."
	case errors.Is(err, service.ErrNotJoined):
		return "⚠️ Join a match first with /join."
	case errors.Is(err, service.ErrNoLiveMatch):
		return "📭 No match is live right now."
	case errors.Is(err, service.ErrMatchNotLive):
		return "⏸ This match is not live."
	case errors.Is(err, service.ErrMatchAlreadyLive):
		return "❌ Another match is already live."
	case errors.Is(err, service.ErrInvalidStake):
		return "❌ Stake must be a positive number."
	case errors.Is(err, service.ErrStakeOutOfRange):
		return "❌ Stake is outside the range for this prediction."
	case errors.Is(err, service.ErrUnknownCategory):
		return "❌ Unknown prediction."
	case errors.Is(err, service.ErrInvalidAmount):
		return "❌ Amount must be positive."
	case errors.Is(err, service.ErrInvalidMatch):
		return "❌ Invalid match details."
	case errors.Is(err, service.ErrSettleInProgress):
		return "⏳ Settling your last prediction..."
	case errors.Is(err, service.ErrNotFound):
		return "❌ Not found."
	}

	logEvent := log.Error().Err(err).Str("op", op).Int64("user_id", userID)
	if errors.Is(err, service.ErrConcurrencyConflict) {
		logEvent.Msg("Operation gave up after repeated conflicts")
		return "⚠️ The server is busy, please try again."
	}
	logEvent.Msg("Operation failed")
	return "❌ Something went wrong, please try again later."
}

// truncate shortens s to n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
