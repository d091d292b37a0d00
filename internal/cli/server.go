package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizbot/internal/app"
	"quizbot/internal/config"
	"quizbot/internal/infra/filesystem"
	"quizbot/internal/infra/memory"
	"quizbot/internal/infra/postgres"
	redisstore "quizbot/internal/infra/redis"
	transport "quizbot/internal/transport/http"
	"quizbot/internal/transport/telegram"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP server and, when a token is configured, the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	banks, err := newBankStore(ctx, cfg, redisClient)
	if err != nil {
		return err
	}
	library := app.NewLibrary(banks)
	engineOpts := []app.Option{app.WithRetryOffset(cfg.Quiz.RetryOffset)}

	// browser sessions are bound to their connection, so the WS engine keeps them local
	hub := transport.NewHub()
	wsEngine := app.NewEngine(memory.NewSessionStore(), memory.NewCorrelationStore(), banks, hub, engineOpts...)
	router := transport.NewRouter(transport.NewWSHandler(wsEngine, hub), library)

	if cfg.Telegram.Token != "" {
		bot, err := newTelegramBot(cfg, redisClient, banks, library, engineOpts)
		if err != nil {
			return err
		}
		go bot.Run(ctx)
	} else {
		log.Printf("telegram token not set, bot disabled")
	}

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quizbot on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newBankStore picks Postgres when configured and the quiz folder otherwise,
// behind a Redis or in-process cache of the raw bank text.
func newBankStore(ctx context.Context, cfg config.Config, redisClient *redis.Client) (app.BankStore, error) {
	var store app.BankStore
	if cfg.Postgres.URL != "" {
		if err := Migrate(ctx, cfg.Postgres.URL); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		store = postgres.NewBankStore(pool)
	} else {
		fsStore, err := filesystem.NewBankStore(cfg.Quiz.Folder, cfg.Quiz.SearchPaths...)
		if err != nil {
			return nil, err
		}
		store = fsStore
	}

	cacheTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)
	if redisClient != nil {
		return redisstore.NewBankCache(redisClient, store, cacheTTL), nil
	}
	return memory.NewBankCache(store, cacheTTL), nil
}

func newTelegramBot(cfg config.Config, redisClient *redis.Client, banks app.BankSource, library *app.Library, opts []app.Option) (*telegram.Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	api.Debug = cfg.Telegram.Debug
	log.Printf("authorized on account %s", api.Self.UserName)
	if cfg.Telegram.AdminID == 0 {
		log.Printf("telegram admin id not set, uploads and /delete disabled")
	}

	var sessions app.SessionRepository = memory.NewSessionStore()
	var pending app.CorrelationRepository = memory.NewCorrelationStore()
	if redisClient != nil {
		sessions = redisstore.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))
		pending = redisstore.NewCorrelationStore(redisClient)
	}

	engine := app.NewEngine(sessions, pending, banks, telegram.NewDelivery(api), opts...)
	return telegram.NewBot(api, engine, library, cfg.Telegram.AdminID, cfg.Telegram.PollTimeout), nil
}
