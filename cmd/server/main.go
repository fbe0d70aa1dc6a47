package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/maribelle/sitterlink/internal/config"
	"github.com/maribelle/sitterlink/internal/database"
	"github.com/maribelle/sitterlink/internal/handler"
	"github.com/maribelle/sitterlink/internal/middleware"
	"github.com/maribelle/sitterlink/internal/queue"
	"github.com/maribelle/sitterlink/internal/repository"
	"github.com/maribelle/sitterlink/internal/router"
	"github.com/maribelle/sitterlink/internal/sms"
	"github.com/maribelle/sitterlink/internal/vault"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set env directly
	cfg := config.Load()

	// The vault keyset is all-or-nothing: a malformed key must stop the
	// process before it encrypts anything.
	keys, err := vault.LoadKeyset(cfg.VaultKeyHex, cfg.VaultPreviousKeyHex)
	if err != nil {
		log.Fatal(err)
	}
	store := vault.NewStore(keys)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal(err)
	}

	trips := repository.NewTripRepo(db)
	sitters := repository.NewSitterRepo(db)
	verifications := repository.NewVerificationRepo(db)
	secrets := repository.NewSecretRepo(db)
	properties := repository.NewPropertyRepo(db)
	audits := repository.NewAuditRepo(db)
	sessions := repository.NewSessionRepo(db)
	owners := repository.NewOwnerRepo(db)
	tokens := repository.NewTokenRepo(db)

	dispatcher := sms.New(cfg.SMSAccountID, cfg.SMSAuthToken, cfg.SMSFrom, cfg.SMSBaseURL)

	// Owner notifications are consumed in-process; the consumer reconnects
	// on its own and never brings the server down.
	go func() {
		if err := queue.StartNotifyConsumer(); err != nil {
			log.Printf("notify-consumer stopped: %v", err)
		}
	}()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable, rate limiting disabled")
	}
	limiter := middleware.RateLimit(config.LoadRateLimitConfig(), rdb)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, owners, tokens), cfg.JWTSecret)
	router.RegisterShare(e, handler.NewShareHandler(trips, properties, sessions), limiter)
	router.RegisterVault(e, handler.NewVaultHandler(
		trips, sitters, verifications, secrets, properties, audits, store, dispatcher), limiter)
	router.RegisterOwner(e, handler.NewOwnerHandler(trips, properties, secrets, audits, store), cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
