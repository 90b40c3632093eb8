package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edurumble-service/internal/app"
	"edurumble-service/internal/config"
	"edurumble-service/internal/events"
	"edurumble-service/internal/infra/memory"
	mongostore "edurumble-service/internal/infra/mongo"
	pgledger "edurumble-service/internal/infra/postgres"
	redisstore "edurumble-service/internal/infra/redis"
	"edurumble-service/internal/oracle"
	"edurumble-service/internal/session"
	transport "edurumble-service/internal/transport/http"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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
	configureLogging(cfg)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	// Quiz and user stores: MongoDB when configured, in-memory otherwise.
	var (
		quizStore app.QuizStore
		userStore app.UserStore
		connector *mongostore.Connector
	)
	if cfg.Mongo.URI != "" {
		connector = mongostore.NewConnector(cfg.Mongo.URI, cfg.Mongo.Database)
		mongoQuizzes := mongostore.NewQuizStore(connector)
		mongoUsers := mongostore.NewUserStore(connector)
		if err := mongoQuizzes.EnsureIndexes(ctx); err != nil {
			return err
		}
		if err := mongoUsers.EnsureIndexes(ctx); err != nil {
			return err
		}
		quizStore, userStore = mongoQuizzes, mongoUsers
	} else {
		log.Warn("mongo uri not configured, using in-memory stores")
		quizStore, userStore = memory.NewQuizStore(), memory.NewUserStore()
	}
	defer func() {
		if connector == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := connector.Disconnect(shutdownCtx); err != nil {
			log.WithError(err).Warn("disconnect mongo")
		}
	}()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var (
		quizzes app.QuizStore
		rooms   app.RoomRepository
	)
	if redisClient != nil {
		quizzes = redisstore.NewQuizCache(redisClient, quizStore, quizTTL)
		rooms = redisstore.NewRoomStore(redisClient, 24*time.Hour)
	} else {
		quizzes = memory.NewQuizCache(quizStore, quizTTL)
		rooms = memory.NewRoomStore()
	}

	var ledger app.CreditLedger = memory.NewLedger()
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		ledger = pgledger.NewLedger(pool)
	}

	publisher, err := events.NewPublisher(cfg.RabbitMQ.URI)
	if err != nil {
		return err
	}
	defer publisher.Close()

	sessions, err := session.NewManager(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, 7*24*time.Hour))
	if err != nil {
		return err
	}

	completions, err := oracle.New(oracle.Config{
		Provider:   cfg.Oracle.Provider,
		BaseURL:    cfg.Oracle.BaseURL,
		APIKey:     cfg.Oracle.APIKey,
		Model:      cfg.Oracle.Model,
		Timeout:    config.TTLDuration(cfg.Oracle.Timeout, 60*time.Second),
		MaxRetries: cfg.Oracle.MaxRetries,
	}, nil)
	if err != nil {
		return err
	}
	if cfg.Oracle.APIKey == "" {
		log.Warn("oracle api key not configured, quiz generation will fail")
	}

	generation := app.NewGenerationService(quizzes, userStore, ledger, completions, publisher)
	lifecycle := app.NewLifecycleService(quizzes, rooms, publisher)
	submissions := app.NewSubmissionService(quizzes, rooms, publisher)
	auth := app.NewAuthService(userStore, ledger, sessions, publisher, cfg.Auth.DefaultCredits)

	gin.SetMode(gin.ReleaseMode)
	router := transport.NewRouter(transport.RouterConfig{
		Quizzes:      transport.NewQuizHandler(generation, lifecycle, submissions),
		Auth:         transport.NewAuthHandler(auth),
		Live:         transport.NewWSHandler(submissions),
		Tokens:       sessions,
		AllowOrigins: cfg.Server.AllowOrigins,
	})

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.WithField("port", finalPort).Info("starting edurumble service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
