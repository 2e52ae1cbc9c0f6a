package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/unrepo/unrepo-api/internal/auth"
	"github.com/unrepo/unrepo-api/internal/config"
	"github.com/unrepo/unrepo-api/internal/database"
	"github.com/unrepo/unrepo-api/internal/github"
	"github.com/unrepo/unrepo-api/internal/handler"
	"github.com/unrepo/unrepo-api/internal/llm"
	"github.com/unrepo/unrepo-api/internal/middleware"
	"github.com/unrepo/unrepo-api/internal/queue"
	"github.com/unrepo/unrepo-api/internal/quota"
	"github.com/unrepo/unrepo-api/internal/repository"
	"github.com/unrepo/unrepo-api/internal/router"
	"github.com/unrepo/unrepo-api/internal/wallet"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Redis backs the edge limiter and the GitHub cache; nil means
	// both degrade gracefully.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("WARN: redis unavailable; rate limiting and repo caching disabled")
	}

	accounts := repository.NewAccountRepo(db)
	keys := repository.NewAPIKeyRepo(db)
	wallets := repository.NewWalletRepo(db)
	usage := repository.NewUsageEventRepo(db)

	authenticator := auth.NewAuthenticator(keys, accounts, wallets)
	enforcer := quota.NewEnforcer(keys, wallets, usage, quota.DefaultLimits())

	fetcher := github.NewClient(cfg.GitHubToken, rdb)
	analyzer := llm.NewClient([]llm.Provider{
		{Name: "claude", APIKey: cfg.ClaudeAPIKey, BaseURL: cfg.ClaudeBaseURL, Model: cfg.ClaudeModel},
		{Name: "openai", APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL, Model: cfg.OpenAIModel},
	})

	var oracle wallet.TokenOracle = wallet.NewHTTPOracle(cfg.TokenOracleURL, cfg.TokenThreshold)
	walletSvc := wallet.NewService(wallets, oracle, cfg.StrictSignatures)

	h := router.Handlers{
		API:     handler.NewAPIHandler(authenticator, enforcer, fetcher, analyzer, usage),
		Keys:    handler.NewKeysHandler(accounts, keys),
		Account: handler.NewAccountHandler(accounts, usage, cfg.JWTSecret, cfg.AccessTTLMin, cfg.BcryptCost),
		Wallet:  handler.NewWalletHandler(walletSvc, wallets),
		Billing: handler.NewBillingHandler(accounts, cfg.StripeWebhookSecret),
		Health:  handler.Health(db),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.Register(e, h, cfg.JWTSecret)

	// Best-effort analytics consumer; runs its own reconnect loop.
	go func() {
		if err := queue.StartUsageConsumer(); err != nil {
			log.Printf("WARN: usage consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
