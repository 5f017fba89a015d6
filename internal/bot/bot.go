package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"cricket-prediction-bot/internal/config"
	"cricket-prediction-bot/internal/cricket"
	"cricket-prediction-bot/internal/handler"
	"cricket-prediction-bot/internal/service"
)

// limiterIdle is how long an unused per-user limiter is kept.
const limiterIdle = 10 * time.Minute

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot     *tele.Bot
	cfg     *config.Config
	private *PrivateUsers
	limiter *RateLimiter

	// Handlers
	accountHandler     *handler.AccountHandler
	gameHandler        *handler.GameHandler
	adminHandler       *handler.AdminHandler
	leaderboardHandler *handler.LeaderboardHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config             *config.Config
	AccountService     *service.AccountService
	GameService        *service.GameService
	MatchService       *service.MatchService
	LeaderboardService *service.LeaderboardService
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: deps.Config.Bot.PollTimeout},
		OnError: func(err error, c tele.Context) {
			logEvent := log.Error().Err(err)
			if c != nil && c.Sender() != nil {
				logEvent = logEvent.Int64("user_id", c.Sender().ID)
			}
			logEvent.Msg("Handler returned an error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:     teleBot,
		cfg:     deps.Config,
		private: NewPrivateUsers(),
		limiter: NewRateLimiter(deps.Config.RateLimit.PerSecond, deps.Config.RateLimit.Burst),
	}

	// Initialize handlers
	b.accountHandler = handler.NewAccountHandler(deps.AccountService)
	b.gameHandler = handler.NewGameHandler(deps.AccountService, deps.GameService, deps.MatchService)
	b.adminHandler = handler.NewAdminHandler(deps.AccountService, deps.MatchService, teleBot)
	b.leaderboardHandler = handler.NewLeaderboardHandler(deps.LeaderboardService, deps.MatchService)

	// Register middleware
	b.registerMiddleware()

	// Register handlers
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())

	// Whitelist middleware - check if chat is allowed
	b.bot.Use(WhitelistMiddleware(b.cfg, b.private))

	b.bot.Use(RateLimitMiddleware(b.limiter))

	// Logging middleware
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	// Account handlers
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/help", b.accountHandler.HandleHelp)
	b.bot.Handle("/coins", b.accountHandler.HandleCoins)
	b.bot.Handle("/profile", b.accountHandler.HandleProfile)
	b.bot.Handle("/history", b.accountHandler.HandleHistory)
	b.bot.Handle("/myid", b.accountHandler.HandleMyID)

	// Match and prediction handlers
	b.bot.Handle("/live", b.gameHandler.HandleLive)
	b.bot.Handle("/join", b.gameHandler.HandleJoin)
	b.bot.Handle("/stake", b.gameHandler.HandleStake)
	b.bot.Handle("/predict", b.gameHandler.HandlePredict)
	b.bot.Handle("/leave", b.gameHandler.HandleLeave)

	// Leaderboards
	b.bot.Handle("/top", b.leaderboardHandler.HandleTop)
	b.bot.Handle("/leaders", b.leaderboardHandler.HandleLeaders)

	// Admin handlers (with admin middleware)
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/startmatch", b.adminHandler.HandleStartMatch)
	adminGroup.Handle("/stopmatch", b.adminHandler.HandleStopMatch)
	adminGroup.Handle("/pausematch", b.adminHandler.HandlePauseMatch)
	adminGroup.Handle("/resumematch", b.adminHandler.HandleResumeMatch)
	adminGroup.Handle("/addcoins", b.adminHandler.HandleAddCoins)
	adminGroup.Handle("/resetcoins", b.adminHandler.HandleResetCoins)
	adminGroup.Handle("/userhistory", b.adminHandler.HandleUserHistory)
	adminGroup.Handle("/broadcast", b.adminHandler.HandleBroadcast)

	// Generic callback handler for the prediction panel
	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

// handleCallback routes callbacks to appropriate handlers
func (b *Bot) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}

	// Telebot v3 may add a \f prefix to callback data
	data := strings.TrimPrefix(callback.Data, "\f")
	if strings.HasPrefix(data, cricket.CallbackPrefix) {
		return b.gameHandler.HandleCallback(c)
	}

	log.Debug().Str("data", data).Msg("Ignoring unknown callback")
	return c.Respond()
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start(ctx context.Context) {
	log.Info().Msg("Starting bot...")

	b.limiter.StartCleanup(ctx, limiterIdle)

	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
