package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"simpleswap/pkg/config"
	"simpleswap/pkg/protocol"
	"simpleswap/pkg/router"
	"simpleswap/pkg/sol"
	"simpleswap/pkg/subscription"
)

var (
	rpcEndpoints    = flag.String("rpc", "", "Comma-separated Solana RPC endpoints (defaults to RPC_ENDPOINTS)")
	port            = flag.Int("port", 8080, "HTTP server port")
	refreshInterval = flag.Int("refresh", 30, "Reserve refresh interval in seconds")
	rateLimit       = flag.Int("ratelimit", config.DefaultRateLimit, "RPC requests per second per endpoint")
	slippageBps     = flag.Int("slippage", 50, "Default slippage tolerance in basis points")
	useWebSocket    = flag.Bool("ws", true, "Subscribe to vault accounts for push updates")
	envFile         = flag.String("env", ".env", "Env file to load before reading the environment")
)

var startTime time.Time

func main() {
	flag.Parse()

	if err := config.LoadEnv(*envFile); err != nil {
		log.Warnf("Could not load %s: %v", *envFile, err)
	}
	if *rpcEndpoints != "" {
		os.Setenv("RPC_ENDPOINTS", *rpcEndpoints)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	config.ConfigureLogging(cfg.LogLevel)
	if *refreshInterval <= 0 {
		log.Fatalf("-refresh must be positive")
	}

	startTime = time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rpcPool, err := sol.NewRPCPool(ctx, cfg.RPCEndpoints, "", *rateLimit)
	if err != nil {
		log.Fatalf("Failed to create RPC pool: %v", err)
	}
	log.Infof("Initialized RPC pool with %d endpoint(s)", rpcPool.Size())
	client := rpcPool.GetClient()

	r := router.NewSimpleRouter(protocol.NewSimpleSwap(client, cfg.ProgramID))
	quoteCache := NewQuoteCache(client, r, cfg.TokenAMint.String(), cfg.TokenBMint.String(), *slippageBps)
	quoteCache.Track(
		QuotePair{InputMint: cfg.TokenBMint.String(), Amount: strconv.FormatUint(cfg.SwapBForAAmount, 10), Label: "B->A"},
		QuotePair{InputMint: cfg.TokenAMint.String(), Amount: strconv.FormatUint(cfg.SwapAForBAmount, 10), Label: "A->B"},
	)

	if err := quoteCache.LoadPools(ctx); err != nil {
		log.Warnf("Initial pool load failed, retrying on refresh: %v", err)
	}

	if *useWebSocket {
		log.Infof("Initializing WebSocket connection to %s", cfg.WSEndpoint)
		subscriptionMgr, err := subscription.NewSubscriptionManager(ctx, cfg.WSEndpoint, string(cfg.Commitment))
		if err != nil {
			log.Warnf("Failed to create WebSocket subscription manager, falling back to polling: %v", err)
		} else {
			defer subscriptionMgr.Close()
			quoteCache.AttachSubscriber(subscriptionMgr)
		}
	}

	quoteCache.Refresh(ctx)

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %ds", *refreshInterval), func() {
		quoteCache.Refresh(ctx)
	}); err != nil {
		log.Fatalf("Failed to schedule refresh: %v", err)
	}
	c.Start()
	defer c.Stop()

	gin.SetMode(gin.ReleaseMode)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: newRouter(quoteCache),
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Server shutdown error: %v", err)
		}
		cancel()
	}()

	log.Infof("Server listening on http://localhost:%d", *port)
	log.Info("  GET  /quote?inputMint=<mint>&amount=<amount>&slippageBps=<bps>")
	log.Info("  GET  /vaults")
	log.Info("  GET  /health")

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
	log.Info("Server stopped")
}

func newRouter(qc *QuoteCache) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), corsMiddleware())
	engine.GET("/quote", handleQuote(qc))
	engine.GET("/vaults", handleVaults(qc))
	engine.GET("/health", handleHealth(qc))
	engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "Simple Swap Quote Service",
			"status":  "running",
			"quotes":  qc.GetAllCached(),
		})
	})
	return engine
}

func handleQuote(qc *QuoteCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		inputMint := strings.TrimSpace(c.Query("inputMint"))
		amount := strings.TrimSpace(c.Query("amount"))
		if inputMint == "" || amount == "" {
			c.JSON(http.StatusBadRequest, QuoteError{Error: "Missing required parameters: inputMint, amount"})
			return
		}

		slippage := -1
		if param := c.Query("slippageBps"); param != "" {
			parsed, err := strconv.Atoi(param)
			if err != nil || parsed < 0 || parsed > 10000 {
				c.JSON(http.StatusBadRequest, QuoteError{Error: "Invalid slippageBps parameter (must be 0-10000)"})
				return
			}
			slippage = parsed
		}

		quote, err := qc.GetOrCalculateQuote(c.Request.Context(), inputMint, amount, slippage)
		if err != nil {
			c.JSON(http.StatusInternalServerError, QuoteError{Error: fmt.Sprintf("Failed to calculate quote: %v", err)})
			return
		}
		c.JSON(http.StatusOK, quote)
	}
}

func handleVaults(qc *QuoteCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, qc.Vaults())
	}
}

func handleHealth(qc *QuoteCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := qc.Health(startTime)
		status := http.StatusOK
		if health.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, health)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
