package server

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"inviteflow/core/clock"
	"inviteflow/core/config"
	"inviteflow/core/constants"
	"inviteflow/core/crypto"
	"inviteflow/core/database"
	"inviteflow/core/lock"
	"inviteflow/core/logger"
	"inviteflow/core/middleware"
	coreRedis "inviteflow/core/redis"
	"inviteflow/modules/booking"
	"inviteflow/modules/campaign"
	"inviteflow/modules/inbox"
	inboxEntity "inviteflow/modules/inbox/entity"
	"inviteflow/modules/transport"
	"inviteflow/modules/worker"
)

// Run assembles the engine and serves until interrupted. The HTTP API and the
// background worker share one process; campaigns enqueued over HTTP are picked
// up by the worker through redis.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Logger.Level, cfg.Logger.Pretty)

	db, err := database.InitDB(database.DatabaseConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	redisClient, err := coreRedis.NewClient(context.Background(), cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()

	sealer, err := crypto.NewSealer(cfg.Crypto.CredentialKey)
	if err != nil {
		return fmt.Errorf("init credential sealer: %w", err)
	}

	var locker lock.Locker = lock.NewKeyedMutex(constants.InboxLockTimeoutSeconds * time.Second)
	if cfg.Redis.SharedLocks {
		locker = lock.NewRedisLocker(redisClient,
			constants.InboxLockLeaseSeconds*time.Second,
			constants.InboxLockTimeoutSeconds*time.Second)
	}

	clk := clock.System()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	mw := middleware.NewMiddleware()
	e.Use(mw.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := db.SQLx().PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": err.Error()})
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "redis": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	g := e.Group("/api/v1")

	registry, selector := inbox.Init(g, db, mw, clk, sealer)
	reservations := booking.Init(g, db, mw, clk, locker, selector, rng)
	registry.SetSlotReleaser(reservations)

	// OAuth-backed providers plug in here once their token brokers exist.
	transports := transport.NewRegistry()
	transports.Register(inboxEntity.ProviderAppPassword, transport.NewSMTPTransport(sealer, clk))

	queue := worker.NewClient(cfg.Redis)
	defer func() { _ = queue.Close() }()

	campaignSvc, processor := campaign.Init(g, db, mw, clk, reservations, registry, transports, queue)
	reservations.SetSettingsResolver(campaignSvc)
	reservations.SetProspectSyncer(campaignSvc)

	workers, err := worker.NewServer(cfg, processor, registry)
	if err != nil {
		return fmt.Errorf("init worker server: %w", err)
	}
	if err := workers.Start(); err != nil {
		return fmt.Errorf("start worker server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		logger.Info("Server:Run:Listening", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		workers.Shutdown()
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		logger.Info("Server:Run:Shutdown", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ServerShutdownTimeoutSeconds*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server:Run:Shutdown:HTTP:Error:", err)
	}
	workers.Shutdown()
	return nil
}
