package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"partner-chat/internal/config"
	"partner-chat/internal/db"
	"partner-chat/internal/grpcserver"
	"partner-chat/internal/handlers"
	"partner-chat/internal/logging"
	"partner-chat/internal/rabbitmq"
	"partner-chat/internal/repositories"
	"partner-chat/internal/telemetry"
	"partner-chat/internal/ws"
)

const auditRoutingKey = "audit.chat"

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Environment, os.Stderr)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName, cfg.Environment)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	database, err := db.Connect(ctx, cfg.Database.DSN, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to db: %w", err)
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	defer publisher.Close()
	logger.Info().Str("mode", rabbitmq.PublisherMode(publisher)).Str("noop_reason", rabbitmq.PublisherNoopReason(publisher)).Msg("event publisher ready")
	auditor := telemetry.NewAuditLog(publisher, auditRoutingKey, cfg.Tracing.ServiceName, cfg.Environment, logger)

	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	hub := ws.NewHub(publisher, logger)

	router := setupRouter(routerDeps{
		cfg:         cfg,
		logger:      logger,
		chats:       handlers.NewChatHandler(chatRepo, messageRepo, hub, publisher, auditor, logger),
		attachments: handlers.NewAttachmentHandler(cfg.Files.RootDir, logger),
		chatWS:      ws.NewChatWebSocketHandler(hub, chatRepo, cfg.Auth.JWTSecret, logger),
		rooms:       hub,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcServer := grpcserver.New(logger)
	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	errCh := make(chan error, 2)
	go func() { errCh <- grpcServer.Serve(grpcListener) }()
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("http listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	grpcServer.SetServing(true)

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err = <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("listener failed")
		}
	}

	grpcServer.SetServing(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		logger.Warn().Err(serr).Msg("http shutdown")
	}
	grpcServer.Stop(shutdownCtx)
	return err
}

type routerDeps struct {
	cfg         *config.Config
	logger      zerolog.Logger
	chats       *handlers.ChatHandler
	attachments *handlers.AttachmentHandler
	chatWS      *ws.ChatWebSocketHandler
	rooms       handlers.RoomStats
}
