package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/phongdao-saigontechnology/miku-bot-gateway/internal/agent"
	"github.com/phongdao-saigontechnology/miku-bot-gateway/internal/api/router"
	"github.com/phongdao-saigontechnology/miku-bot-gateway/internal/channels"
	"github.com/phongdao-saigontechnology/miku-bot-gateway/internal/channels/botframework"
	appconfig "github.com/phongdao-saigontechnology/miku-bot-gateway/internal/config"
	"github.com/phongdao-saigontechnology/miku-bot-gateway/internal/conversation"
	"github.com/phongdao-saigontechnology/miku-bot-gateway/internal/observability/metrics"
	"github.com/phongdao-saigontechnology/miku-bot-gateway/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting miku-bot-gateway API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	channelMetrics := metrics.NewChannelMetrics(nil)

	history := newHistoryStore(cfg, logger)

	agentClient, err := agent.NewClient(agent.Config{
		BaseURL: cfg.AgentBaseURL,
		APIKey:  cfg.AgentAPIKey,
		Timeout: cfg.AgentTimeout,
	})
	if err != nil {
		logger.Error("failed to configure agent client", "error", err)
		os.Exit(1)
	}

	responder := conversation.NewResponder(agentClient, history, logger)

	// Channel startup failure keeps the process alive: health and
	// metrics still serve while the platform endpoints are unreachable.
	var input channels.InputChannel
	botInput, err := botframework.NewInput(botframework.InputConfig{
		AppID:           cfg.BotAppID,
		AppPassword:     cfg.BotAppPassword,
		OpenIDConfigURL: cfg.OpenIDConfigURL,
		TokenURL:        cfg.OAuthTokenURL,
		HTTPTimeout:     cfg.HTTPTimeout,
		Logger:          logger.WithComponent("botframework"),
		Metrics:         channelMetrics,
	})
	if err != nil {
		logger.Error("botframework channel unavailable", "error", err)
	} else {
		input = botInput
	}

	r := router.New(&router.Config{
		Logger:         logger,
		Input:          input,
		OnNewMessage:   responder.HandleMessage,
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newHistoryStore(cfg *appconfig.Config, logger *logging.Logger) conversation.HistoryStore {
	if cfg.HistoryBackend != appconfig.HistoryBackendRedis {
		logger.Info("using in-memory session history")
		return conversation.NewMemoryHistoryStore()
	}

	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	logger.Info("using redis session history", "addr", cfg.RedisAddr)
	return conversation.NewRedisHistoryStore(redis.NewClient(opts), nil)
}
