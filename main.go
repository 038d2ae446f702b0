package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ordertrackgo/internal/config"
	"ordertrackgo/internal/database/db_client"
	"ordertrackgo/internal/http/http_server"
	"ordertrackgo/internal/redis/redis_client"
	"ordertrackgo/internal/redis/redis_functions"
	"ordertrackgo/internal/redis/watcher/trackwatcher"
	"ordertrackgo/internal/services/identity"
	"ordertrackgo/internal/services/order"
	"ordertrackgo/internal/syncloc"
	"ordertrackgo/internal/synctrack"
	"ordertrackgo/internal/ws"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client
	var orderService order.IOrderService

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis
	redisClient, err = redis_client.NewRedisClient(cfg.RedisOrdersHost, int(cfg.RedisOrdersPort))
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()
	Log.Debug("Redis client created successfully")

	// Load the Redis Functions lua
	if err := redis_functions.LoadAll(ctx, redisClient); err != nil {
		Log.Fatal("load-redis-funcs", zap.Error(err))
	}

	// 4. Postgres db client
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	// 5. Services: order storage + identity verification
	orderService = order.NewOrderService(redisClient, pgDb, cfg.TrackingTtlSeconds)
	identityService := identity.NewIdentityService(cfg.JwtSecret)

	// 6. Background: freshness‑timer watcher ➜ tracking_lost events
	go trackwatcher.Run(ctx, redisClient, orderService)

	// 7. Background: 10 s tracking synchroniser + location history tail
	synctrack.Run(ctx, redisClient, pgDb)
	syncloc.Run(ctx, redisClient, pgDb)

	// 8. Order tracking channel: registry + rooms + WS server
	registry := ws.NewRegistry()
	hub := ws.NewHub(registry, orderService)
	wsSrv := ws.NewWsServer(registry, hub, redisClient, orderService, identityService)

	// 9. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, orderService)
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
