package main

import (
	"context"
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
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chat-hub/auth"
	"chat-hub/internal"
	"chat-hub/moderation"
	"chat-hub/observability"
	"chat-hub/repositories"
	"chat-hub/runtime"
	"chat-hub/search"
	"chat-hub/server"
	"chat-hub/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so every defer (database cleanup included)
// executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Stores
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	roomRepository, cleanup, err := openRoomRepository(ctx, config, db, log)
	if err != nil {
		return err
	}
	defer cleanup()

	index, err := search.NewIndex(config.BlugeFilepath, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing search index...")
		_ = index.Close()
	}()

	// 4. Presence & messaging core
	registry := runtime.NewRegistry()
	suppressor := runtime.NewSuppressor(config.SuppressWindow, config.PurgeHorizon)
	userRepository := repositories.NewUserRepository(db)
	verifier := auth.TokenVerifier{}

	monitor := observability.NewManager(log, registry, config.MetricInterval)

	hub := runtime.NewHub(log, registry, suppressor, roomRepository, userRepository,
		verifier, config.BufferSize).
		WithMetrics(monitor)

	if len(config.CensoredWords) > 0 {
		replacement, err := characterRune(config.CharReplacement)
		if err != nil {
			return err
		}
		moderator, err := moderation.NewModerator(config.CensoredWords, replacement)
		if err != nil {
			return fmt.Errorf("building moderator: %w", err)
		}
		hub.WithModerator(moderator)
	}

	indexSink := search.NewIndexSink(log, index, config.BufferSize)
	hub.Add(indexSink)

	// 5. Supervision
	sup := runtime.NewSupervisor(log, config.RestartInterval)
	sup.Add(hub, indexSink, monitor)
	go sup.Run(ctx)

	if config.DebugPort > 0 {
		log.Warn("Debug inspector enabled", "port", config.DebugPort)
		internal.StartDebugServer(db, config.DebugPort, internal.RoomMapper, func() map[string]any {
			stats := monitor.GetLatest()
			return map[string]any{
				"online_users":        stats.OnlineUsers,
				"rooms_with_sinks":    stats.RoomsWithListeners,
				"messages_posted":     stats.MessagesPosted,
				"messages_suppressed": stats.MessagesSuppressed,
				"mem_mb":              stats.AllocMemMb,
			}
		})
	}

	// 6. HTTP surface
	authService := services.NewAuthService(userRepository, config.AuthTokenDuration)
	chatService := services.NewChatService(roomRepository, index, config.LimitMessages)
	router := server.NewRouter(log, authService, chatService, hub)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:    address,
		Handler: router.Engine(verifier, config.ConnectionBufferSize),
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	log.Info("Program stopped cleanly")

	return nil
}

// openRoomRepository picks the room store from the configuration. Badger is
// the embedded default; mongo provides the native atomic array append for
// multi-process deployments.
func openRoomRepository(ctx context.Context, config Config, db *badger.DB,
	log *slog.Logger) (repositories.IRoomRepository, func(), error) {
	switch config.StoreBackend {
	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connection failed: %w", err)
		}
		cleanup := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}
		return repositories.NewMongoRoomRepository(client.Database(config.MongoDatabase), log), cleanup, nil
	case "badger":
		return repositories.NewBadgerRoomRepository(db, log), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", config.StoreBackend)
	}
}
