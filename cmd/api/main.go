package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/plutohub/hub/internal/config"
	"github.com/plutohub/hub/internal/engine"
	"github.com/plutohub/hub/internal/identity"
	"github.com/plutohub/hub/internal/lobbysvc"
	"github.com/plutohub/hub/internal/platform/logging"
	"github.com/plutohub/hub/internal/store/redisstore"
	"github.com/plutohub/hub/internal/sweeper"
	"github.com/plutohub/hub/internal/tokens"
	transporthttp "github.com/plutohub/hub/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Dev: !cfg.IsProduction()})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	db, err := redisstore.New(ctx, redisstore.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer db.Close()

	codec := tokens.NewCodec(cfg.SessionTokenSecret)
	idVerifier := identity.NewJWTVerifier(cfg.SessionTokenSecret, cfg.IdentityProviderIssuer, cfg.IdentityProviderAudience)

	contractEngine := engine.New(engine.Deps{
		DB:       db,
		Ledger:   db,
		Balances: db,
		Catalog:  db,
		Sessions: db,
		Codec:    codec,
		Logger:   logger,
	})

	hub := lobbysvc.NewHub()
	lobbyService := lobbysvc.NewService(db, db, db, hub)

	done := make(chan struct{})
	defer close(done)
	go hub.RunHeartbeat(done, cfg.LobbyHeartbeatInterval)

	sweep := sweeper.New(db, contractEngine, logger, func() int64 { return time.Now().UnixMilli() })
	cronRunner, err := sweep.Start(secondsCronExpr(cfg.SweeperInterval))
	if err != nil {
		log.Fatalf("Failed to start expiry sweeper: %v", err)
	}
	defer cronRunner.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := transporthttp.NewRouter(transporthttp.Deps{
		Engine:   contractEngine,
		Lobby:    lobbyService,
		Hub:      hub,
		Balances: db,
		Ledger:   db,
		Catalog:  db,
		Identity: idVerifier,
	})

	logger.Sugar().Infof("server starting on %s", cfg.Addr())
	if err := router.Run(cfg.Addr()); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// secondsCronExpr turns a poll interval into a seconds-resolution cron
// expression for github.com/robfig/cron/v3 (cron.WithSeconds()), e.g. 15s
// becomes "*/15 * * * * *".
func secondsCronExpr(interval time.Duration) string {
	secs := int(interval.Seconds())
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("*/%d * * * * *", secs)
}
