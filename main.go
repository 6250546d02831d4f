package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"social-sync/internal/apiclient"
	"social-sync/internal/config"
	"social-sync/internal/db"
	grpcclient "social-sync/internal/grpc"
	"social-sync/internal/handlers"
	"social-sync/internal/middleware"
	"social-sync/internal/observability"
	"social-sync/internal/rabbitmq"
	"social-sync/internal/realtime"
	"social-sync/internal/repositories"
	"social-sync/internal/session"
	"social-sync/internal/stream"
	"social-sync/internal/telemetry"
	"social-sync/internal/ws"
)

const serviceName = "social-sync"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load(os.Getenv("SYNC_CONFIG_FILE"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.App.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		slog.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	database, err := db.Open(cfg.Session.CookiePath)
	if err != nil {
		slog.Error("failed to open cookie db", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	sessions := session.NewManager(session.NewStore(database), logger)
	api := apiclient.New(cfg.API.BaseURL, sessions, nil, cfg.API.RequestTimeout)

	conversationRepo := repositories.NewConversationRepo(api)
	notificationRepo := repositories.NewNotificationRepo(api)
	friendRepo := repositories.NewFriendRepo(api)
	streamRepo := repositories.NewStreamRepo(api, cfg.Stream.URL)

	source, err := stream.NewSource(cfg.Stream, streamRepo, logger)
	if err != nil {
		slog.Error("failed to build stream source", "error", err)
		os.Exit(1)
	}

	publisher := rabbitmq.NewPublisher(cfg.Telemetry.AMQPURL, cfg.Telemetry.Exchange)
	defer publisher.Close()
	slog.Info("telemetry publisher ready",
		"mode", rabbitmq.PublisherMode(publisher),
		"noop_reason", rabbitmq.PublisherNoopReason(publisher),
	)
	emitter := telemetry.NewSyncEmitter(publisher, cfg.Telemetry.RoutingKey, serviceName, cfg.App.Environment)

	if cfg.Telemetry.AMQPURL != "" {
		amqpPublisher, err := observability.NewAMQPPublisher(cfg.Telemetry.AMQPURL, cfg.Telemetry.Exchange)
		if err != nil {
			slog.Warn("ws event publisher disabled", "error", err)
		} else {
			observability.SetPublisher(amqpPublisher)
			defer amqpPublisher.Close()
		}
	}

	supervisor := realtime.NewSupervisor(func(sess session.Session) *realtime.Controller {
		return realtime.NewController(conversationRepo, notificationRepo, source, realtime.Options{
			FallbackInterval:       cfg.Sync.FallbackInterval,
			PageSize:               cfg.Sync.PageSize,
			ConversationLimit:      cfg.Sync.ConversationLimit,
			StopFallbackOnRecovery: cfg.Sync.StopFallbackOnRecovery,
			Recorder:               emitter,
			Logger:                 logger.With("viewer_id", sess.ViewerID),
		})
	}, logger)

	hub := ws.NewHub()
	feed := handlers.NewStateFeed()
	supervisor.OnChange(hub.Broadcast)
	supervisor.OnChange(feed.Publish)
	sessions.OnChange(supervisor.HandleSessionChange)

	if _, err := sessions.Restore(); err != nil {
		slog.Info("no session restored", "reason", err)
	}

	var backend handlers.BackendChecker
	if cfg.App.BackendGRPCAddr != "" {
		conn, err := grpcclient.Dial(cfg.App.BackendGRPCAddr)
		if err != nil {
			slog.Error("failed to create backend grpc client", "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		backend = grpcclient.NewHealthClient(healthpb.NewHealthClient(conn), "")
	}

	controllers := handlers.FromSupervisor(supervisor)
	syncHandler := handlers.NewSyncHandler(controllers, feed)
	socialHandler := handlers.NewSocialHandler(conversationRepo, notificationRepo, friendRepo)
	sessionHandler := handlers.NewSessionHandler(sessions)
	healthHandler := handlers.NewHealthHandler(sessions, controllers, backend)
	stateWS := ws.NewStateWebSocketHandler(hub, supervisor)

	if cfg.App.Environment != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(middleware.RequestID())

	router.GET("/healthz", healthHandler.Healthz)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/session", sessionHandler.SignIn)
	router.DELETE("/session", sessionHandler.SignOut)

	authed := router.Group("/", middleware.RequireSession(sessions))
	authed.GET("/state", syncHandler.GetState)
	authed.GET("/state/events", syncHandler.StreamState)
	authed.GET("/ws/state", stateWS.Handle)

	authed.GET("/conversations", socialHandler.SearchConversations)
	authed.POST("/conversations/:id/open", syncHandler.OpenConversation)
	authed.DELETE("/conversations/active", syncHandler.CloseConversation)
	authed.POST("/conversations/:id/older", syncHandler.LoadOlder)
	authed.POST("/conversations/:id/messages", syncHandler.SendMessage)
	authed.POST("/conversations/:id/read", syncHandler.MarkRead)

	authed.GET("/notifications", socialHandler.ListNotifications)
	authed.GET("/notifications/unread", socialHandler.UnreadNotifications)
	authed.POST("/notifications/read", syncHandler.MarkNotificationsRead)

	authed.GET("/friends/requests", socialHandler.ListFriendRequests)
	authed.POST("/friends/requests", socialHandler.SendFriendRequest)
	authed.POST("/friends/requests/:id/accept", socialHandler.AcceptFriendRequest)
	authed.POST("/friends/requests/:id/reject", socialHandler.RejectFriendRequest)

	handlers.RegisterDebugRoutes(authed, emitter, cfg.App.Environment == "local")

	srv := &http.Server{Addr: cfg.App.Addr, Handler: router}
	go func() {
		slog.Info("local api listening", "addr", cfg.App.Addr, "stream_transport", cfg.Stream.Transport)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	if err := supervisor.Close(); err != nil {
		slog.Warn("sync teardown", "error", err)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
