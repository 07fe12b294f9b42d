package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pix-server/internal/cache"
	"pix-server/internal/config"
	"pix-server/internal/handlers"
	"pix-server/internal/repository"
	"pix-server/internal/server"
	"pix-server/internal/services"
	"pix-server/internal/session"
	"pix-server/internal/utils"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	utils.SetDebug(cfg.Debug)

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Unable to open storage: %v", err)
	}
	defer store.Close()

	opts := services.LedgerOptions{
		StartingBalance: cfg.StartingBalance,
		HistoryMaxSpan:  cfg.HistoryMaxSpan(),
	}
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCache(cfg.RedisAddr)
		defer redisCache.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			utils.LogWarning("Main", "Redis at %s unreachable, reads go to storage until it recovers: %v", cfg.RedisAddr, err)
		}
		cancel()
		opts.Cache = redisCache
	}

	auth := services.NewAuthService(cfg.JWTSecret, cfg.SessionTTL)
	var tokens session.Tokens = session.UUIDTokens{}
	if cfg.JWTSecret != "" {
		tokens = auth
	}
	sessions := session.NewMemoryStore(tokens, cfg.SessionTTL)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	if cfg.SessionTTL > 0 {
		go sessions.RunSweeper(ctx, sweepInterval)
	}

	ledger := services.NewLedger(store, auth, opts)
	dispatcher := handlers.NewDispatcher(ledger, sessions, handlers.Options{HistoryMaxDays: cfg.HistoryMaxDays})
	metrics := server.NewMetrics(sessions.Len)

	srv := server.New(server.Options{
		Addr:                cfg.ListenAddr,
		MaxConnections:      cfg.MaxConnections,
		ConnectionQueue:     cfg.ConnectionQueue,
		IdleTimeout:         cfg.IdleTimeout,
		MalformedDiagnostic: cfg.MalformedDiagnostic,
		AcceptRPS:           cfg.AcceptRPS,
		AcceptBurst:         cfg.AcceptBurst,
	}, dispatcher, metrics)
	if err := srv.Listen(); err != nil {
		log.Fatalf("Unable to listen: %v", err)
	}

	serverErr := make(chan error, 2)
	go func() {
		serverErr <- srv.Serve()
	}()

	var admin *server.AdminServer
	if cfg.AdminAddr != "" {
		admin = server.NewAdminServer(server.AdminOptions{
			Addr:     cfg.AdminAddr,
			Storage:  store,
			Sessions: sessions.Len,
			Gateway:  handlers.NewGateway(dispatcher),
		}, srv, metrics)
		go func() {
			if err := admin.ListenAndServe(); err != nil {
				serverErr <- err
			}
		}()
	}

	shutdownChannel := make(chan os.Signal, 1)
	signal.Notify(shutdownChannel, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdownChannel:
		utils.LogInfo("Main", "Received %s", sig)
	case err := <-serverErr:
		if err != nil {
			utils.LogError("Main", "Server stopped unexpectedly", err)
		}
	}

	log.Println("Shutting down server...")
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if admin != nil {
		if err := admin.Shutdown(shutdownCtx); err != nil {
			log.Printf("Admin server forced to shutdown: %v", err)
		}
	}
	if err := srv.Shutdown(shutdownTimeout); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Server stopped")
}

func openStore(cfg config.Config) (repository.Store, error) {
	if cfg.Storage == config.StorageMemory {
		utils.LogWarning("Main", "Using in-memory storage; data is lost on exit")
		return repository.NewMemoryStore(), nil
	}

	pool, err := pgxpool.New(context.Background(), cfg.DBURL)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, errors.Join(errors.New("database unreachable"), err)
	}

	if cfg.MigrateOnStart {
		if err := repository.Migrate(pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Println("Migrations applied successfully")
	}
	return repository.NewPostgresStore(pool), nil
}
