package main

import (
	"chat-relay/auth"
	"chat-relay/clock"
	"chat-relay/infrastructure/http/server"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and owns the lifecycle so deferred cleanup always runs.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Account store
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	userRepository := repositories.NewUserRepository(db)
	tokens := auth.NewTokenIssuer(config.JWTSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(log, userRepository, tokens)
	gate := auth.NewGate(log, tokens, userRepository)

	// 3. Relay
	monitor := observability.NewRelayMonitor(log)
	registry := runtime.NewRegistry(log)
	relay := runtime.NewRelay(log, registry, monitor, clock.Real(), config.IntakeBufferSize, config.DeliveryTimeout)
	monitor.TrackQueue("relay_intake", relay.IntakeDepth)
	if err = withModeration(log, relay, config); err != nil {
		return err
	}

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewRelayWorker(relay),
		workers.NewReporterWorker(log, monitor, config.MetricInterval),
	)
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 5. HTTP Server Setup
	relayServer := server.NewRelayServer(log, gate, registry, relay, monitor, server.RelayConfig{
		ConnectionBufferSize: config.ConnectionBufferSize,
		WriteTimeout:         config.WriteTimeout,
		MaxMessageSize:       config.MaxMessageSize,
		AllowedOrigins:       config.Origins(),
	})
	mux := http.NewServeMux()
	mux.Handle("GET /ws", relayServer)
	server.NewAccountServer(log, authService).Register(mux)
	internal.RegisterDebugRoutes(mux, monitor, registry)

	httpServer := &http.Server{
		Addr:              config.Address(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting relay server", "address", config.Address(), "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 6. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err = <-errChan:
		stop()
		<-supDone
		return err
	}

	// 7. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err = httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	if err = relayServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("Some connections did not close in time", "error", err)
	}
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}

func withModeration(log *slog.Logger, relay *runtime.Relay, config internal.Config) error {
	if config.CensoredWordsFile == "" {
		return nil
	}
	char, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return err
	}
	words, err := moderation.LoadWords(config.CensoredWordsFile)
	if err != nil {
		return fmt.Errorf("loading censored words: %w", err)
	}
	moderator, err := moderation.NewModerator(words, char, log)
	if err != nil {
		return err
	}
	relay.WithFilter(moderator)
	log.Info("Moderation enabled", "words", len(words))
	return nil
}
