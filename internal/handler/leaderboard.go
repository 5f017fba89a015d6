package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"cricket-prediction-bot/internal/service"
)

var medals = []string{"🥇", "🥈", "🥉"}

// rankLabel returns the medal or number shown for position i.
func rankLabel(i int) string {
	if i < len(medals) {
		return medals[i]
	}
	return fmt.Sprintf("%d.", i+1)
}

// LeaderboardHandler handles ranking commands.
type LeaderboardHandler struct {
	leaderboardService *service.LeaderboardService
	matchService       *service.MatchService
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(leaderboardService *service.LeaderboardService, matchService *service.MatchService) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboardService: leaderboardService,
		matchService:       matchService,
	}
}

// HandleTop handles the /top command.
// Displays the richest players.
func (h *LeaderboardHandler) HandleTop(c tele.Context) error {
	ctx := context.Background()
	var userID int64
	if sender := c.Sender(); sender != nil {
		userID = sender.ID
	}

	users, err := h.leaderboardService.TopByBalance(ctx, service.DefaultLeaderboardSize)
	if err != nil {
		return c.Reply(errorText("top", userID, err))
	}
	if len(users) == 0 {
		return c.Reply("📊 No players yet")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🏆 Richest players TOP %d\n%s\n", service.DefaultLeaderboardSize, divider)
	for i, u := range users {
		fmt.Fprintf(&b, "%s %s: %d\n", rankLabel(i), userLabel(u.ID, u.DisplayName), u.Balance)
	}
	b.WriteString(divider)
	return c.Reply(b.String())
}

// HandleLeaders handles the /leaders command.
// Format: /leaders [match_id]; defaults to the live match.
func (h *LeaderboardHandler) HandleLeaders(c tele.Context) error {
	ctx := context.Background()
	var userID int64
	if sender := c.Sender(); sender != nil {
		userID = sender.ID
	}

	var matchID int64
	var title string
	if args := c.Args(); len(args) > 0 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Reply("❌ Usage: /leaders [match_id]")
		}
		match, err := h.matchService.Get(ctx, id)
		if err != nil {
			return c.Reply(errorText("leaders", userID, err))
		}
		matchID, title = match.ID, match.Name
	} else {
		match, err := h.matchService.Live(ctx)
		if err != nil {
			return c.Reply(errorText("leaders", userID, err))
		}
		matchID, title = match.ID, match.Name
	}

	ranks, err := h.leaderboardService.TopPredictors(ctx, matchID, service.DefaultLeaderboardSize)
	if err != nil {
		return c.Reply(errorText("leaders", userID, err))
	}
	if len(ranks) == 0 {
		return c.Reply(fmt.Sprintf("📊 No predictions in %s yet", title))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎯 Top predictors: %s\n%s\n", title, divider)
	for i, r := range ranks {
		sign := ""
		if r.Net > 0 {
			sign = "+"
		}
		fmt.Fprintf(&b, "%s %s: %s%d (%d/%d won)\n",
			rankLabel(i), userLabel(r.UserID, r.DisplayName), sign, r.Net, r.Wins, r.Predictions)
	}
	b.WriteString(divider)
	return c.Reply(b.String())
}
