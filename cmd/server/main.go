package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"originmint/internal/api"
	"originmint/internal/auth"
	"originmint/internal/branding"
	"originmint/internal/chain"
	"originmint/internal/config"
	"originmint/internal/ipfs"
	"originmint/internal/llm"
	"originmint/internal/metrics"
	"originmint/internal/model"
	"originmint/internal/service"
	"originmint/internal/session"
	"originmint/internal/storage"
)

func main() {
	// 初始化配置
	cfg, err := config.ParseConfig()
	if err != nil {
		logrus.WithError(err).Error("Failed to parse config")
		os.Exit(1)
	}

	// 初始化logger
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(cfg.ParseLogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logrus.WithError(err).Error("服务器启动失败")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	repo, err := model.InitRepository(&cfg)
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}

	store, err := storage.NewStorage(cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	sessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init session store: %w", err)
	}

	brander, err := branding.NewBrander(cfg.LogoPath, cfg.LogoWidth, cfg.LogoInset)
	if err != nil {
		return fmt.Errorf("load logo: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"path": cfg.LogoPath,
		"size": brander.LogoSize().String(),
	}).Info("logo_loaded")

	generator, err := llm.NewImageGenerator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init image generator: %w", err)
	}

	m := metrics.NewDefault()
	auditor := service.NewRelayAuditor(repo)

	generation := service.NewGenerationService(generator, brander, store, sessions, m, service.GenerationOptions{
		Variants:        cfg.GenerationVariants,
		PromptMaxLength: cfg.PromptMaxLength,
		Timeout:         cfg.GenerationTimeout,
	})
	publisher := service.NewPublishService(newPinner(cfg), store, sessions, m, cfg.PinTimeout)

	// 未连接链时必须传 nil 接口而不是 nil 指针
	var (
		mintRelay service.ChainRelay
		repRelay  service.RepRelay
	)
	if relay := newRelay(ctx, cfg); relay != nil {
		mintRelay = relay
		repRelay = relay
	}

	authenticator, err := auth.NewAuthenticator(cfg)
	if err != nil {
		return fmt.Errorf("init authenticator: %w", err)
	}

	handler := api.NewHTTPHandler(cfg, api.Dependencies{
		Authenticator: authenticator,
		Generation:    generation,
		Publisher:     publisher,
		Rep:           service.NewRepService(repRelay, auditor, m),
		Mint:          service.NewMintOrchestrator(publisher, mintRelay, auditor, m),
		RelayLog:      auditor,
		Metrics:       m.Handler(),
	})

	generation.StartSweeper(ctx, cfg.SessionSweepInterval, cfg.SessionTTL)

	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)
	r := api.NewRouter(cfg, handler)

	serverHost := fmt.Sprintf("0.0.0.0:%s", cfg.HTTPPort)
	logrus.WithFields(logrus.Fields{
		"host":       serverHost,
		"provider":   generator.ProviderID(),
		"storage":    cfg.StorageType,
		"sessions":   cfg.SessionBackend,
		"audit_log":  auditor.Enabled(),
		"ipfs_ready": cfg.PinataJWT != "",
		"chain":      mintRelay != nil,
	}).Info("服务器启动")

	// 创建HTTP服务器
	httpServer := &http.Server{
		Addr:         serverHost,
		Handler:      r,
		ReadTimeout:  900 * time.Second,
		WriteTimeout: 900 * time.Second,
		IdleTimeout:  1200 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logrus.Info("服务器关闭中")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newSessionStore(ctx context.Context, cfg config.Config) (session.Store, error) {
	if strings.ToLower(strings.TrimSpace(cfg.SessionBackend)) != "redis" {
		return session.NewMemoryStore(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	return session.NewRedisStore(client, cfg.RedisKeyPrefix, cfg.SessionTTL), nil
}

// newPinner 未配置 PINATA_JWT 时返回 nil 接口，上传接口会报未配置
func newPinner(cfg config.Config) service.Pinner {
	if strings.TrimSpace(cfg.PinataJWT) == "" {
		logrus.Warn("PINATA_JWT not set, IPFS upload disabled")
		return nil
	}
	client, err := ipfs.NewClient(cfg.PinataJWT,
		ipfs.WithAPIURL(cfg.PinataAPIURL),
		ipfs.WithGatewayURL(cfg.IPFSGatewayURL),
	)
	if err != nil {
		logrus.WithError(err).Warn("failed to init pinata client, IPFS upload disabled")
		return nil
	}
	return client
}

// newRelay 连接失败时返回 nil，链上接口会报未配置
func newRelay(ctx context.Context, cfg config.Config) *chain.Relay {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	relay, err := chain.Dial(dialCtx, cfg.ChainRPCURL, chain.Config{
		ChainID:           cfg.ChainID,
		OriginNFTAddress:  cfg.OriginNFTAddress,
		RepManagerAddress: cfg.RepManagerAddress,
		BackendKey:        cfg.BackendWalletKey,
		Timeout:           cfg.ChainTimeout,
	})
	if err != nil {
		logrus.WithError(err).WithField("rpc", cfg.ChainRPCURL).Warn("chain relay unavailable")
		return nil
	}
	if !relay.HasBackendSigner() {
		logrus.Warn("BACKEND_WALLET_PRIVATE_KEY not set, /api/rep will fail")
	}
	return relay
}
