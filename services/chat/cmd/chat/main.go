package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geminichat/internal/usertoken"
	"geminichat/internal/util"
	"geminichat/pkg/conversation"
	"geminichat/pkg/storage"
	"geminichat/pkg/store"
	"geminichat/services/chat/internal/app"
	"geminichat/services/chat/internal/config"
	"geminichat/services/chat/internal/gatewayclient"
	"geminichat/services/chat/internal/server"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, cleanup := util.InitLogger(cfg.LogLevel, "chat", cfg.LogsDir)
	if cleanup != nil {
		defer cleanup()
	}

	// Config validation already parsed these.
	exchangeTimeout, _ := config.ParseDuration("exchangeTimeout", cfg.ExchangeTimeout)
	sessionTTL, _ := config.ParseDuration("sessionTTL", cfg.SessionTTL)
	summaryTTL, _ := config.ParseDuration("summaryTTL", cfg.SummaryTTL)
	jwtLeeway, _ := config.ParseDuration("jwtLeeway", cfg.JWTLeeway)
	if exchangeTimeout <= 0 {
		exchangeTimeout = conversation.DefaultExchangeTimeout
	}

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	var history store.HistoryStore = store.NewMemoryStore()
	if cfg.DatabaseURL != "" {
		gormStore, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			util.Fatal("failed to init history store", "err", err)
		}
		closers = append(closers, gormStore)
		history = gormStore
	} else {
		slog.Warn("databaseURL not set; history is kept in memory")
	}

	var summaries store.SummaryIndex
	switch cfg.SummaryIndex {
	case config.SummaryIndexRedis:
		idx, err := store.NewRedisSummaryIndex(cfg.RedisAddr, cfg.RedisPassword, "", summaryTTL)
		if err != nil {
			util.Fatal("failed to init summary index", "err", err)
		}
		closers = append(closers, idx)
		summaries = idx
	case config.SummaryIndexBolt:
		idx, err := store.NewBoltSummaryIndex(cfg.SummaryIndexPath)
		if err != nil {
			util.Fatal("failed to open summary index", "path", cfg.SummaryIndexPath, "err", err)
		}
		closers = append(closers, idx)
		summaries = idx
	default:
		summaries = store.NewMemorySummaryIndex()
	}

	var images storage.ObjectStore
	if cfg.ObjectStore.Endpoint != "" {
		minioStore, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.ObjectStore.Endpoint,
			AccessKey: cfg.ObjectStore.AccessKey,
			SecretKey: cfg.ObjectStore.SecretKey,
			Bucket:    cfg.ObjectStore.Bucket,
			UseSSL:    cfg.ObjectStore.UseSSL,
		})
		if err != nil {
			util.Fatal("failed to init object store", "err", err)
		}
		images = minioStore
	}

	var verifier server.IdentityVerifier
	if cfg.AuthJWKSURL != "" {
		initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		v, err := usertoken.NewVerifier(initCtx, usertoken.Config{
			JWKSURL:    cfg.AuthJWKSURL,
			Issuer:     cfg.JWTIssuer,
			Audience:   cfg.JWTAudience,
			Leeway:     jwtLeeway,
			HTTPClient: &http.Client{Timeout: 5 * time.Second},
		})
		cancel()
		if err != nil {
			util.Fatal("failed to init jwks verifier", "err", err)
		}
		verifier = v
	}

	appCore, err := app.New(app.Config{
		Gateway:         gatewayclient.NewClient(cfg.GatewayURL, exchangeTimeout),
		History:         history,
		Summaries:       summaries,
		Images:          images,
		Model:           cfg.Model,
		ExchangeTimeout: exchangeTimeout,
		SessionTTL:      sessionTTL,
	})
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}
	defer appCore.Close()

	httpServer := server.New(server.Config{App: appCore, Verifier: verifier})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("chat server listening", "addr", addr, "summary_index", cfg.SummaryIndex)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		appCore.RunEviction(gctx, 10*time.Minute)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// In-flight exchanges get their full timeout to settle before the
		// recorder is closed.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), exchangeTimeout+5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
}
