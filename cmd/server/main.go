package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	portalapi "go.pilab.hu/portal/api/echo"
	"go.pilab.hu/portal/config"
	"go.pilab.hu/portal/directory"
	"go.pilab.hu/portal/internal/metrics"
	"go.pilab.hu/portal/internal/server"
	"go.pilab.hu/portal/log"
	"go.pilab.hu/portal/middleware"
	"go.pilab.hu/portal/mongodb"
	"go.pilab.hu/portal/notify"
	"go.pilab.hu/portal/oidc"
	"go.pilab.hu/portal/session"
	"go.pilab.hu/portal/tracing"
	"go.pilab.hu/portal/verifier"
)

var (
	appLogger      log.Logger
	httpServer     *http.Server
	tracerProvider *sdktrace.TracerProvider
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	appLogger = log.NewZerologAdapter(logLevel, cfg.LogPretty)

	ctx := context.Background()
	appLogger.Info(ctx, "Starting portal server", map[string]interface{}{
		"http_port":       cfg.HTTPPort,
		"session_store":   cfg.SessionStore,
		"directory_store": cfg.DirectoryStore,
		"log_level":       logLevel.String(),
	})

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize TracerProvider", err)
	}
	tracerProvider = tp

	// Mongo is only dialed when a durable backend is selected.
	needsMongo := cfg.SessionStore == "mongo" || cfg.DirectoryStore == "mongo"
	if needsMongo {
		if err := mongodb.Init(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
			appLogger.Fatal(ctx, "Failed to initialize MongoDB connection", err)
		}
	}

	sessionMaxAge := time.Duration(cfg.SessionMaxAgeSec) * time.Second

	var store session.Store
	var cookieMaxAge time.Duration
	switch cfg.SessionStore {
	case "mongo":
		store, err = mongodb.NewSessionStore(ctx, mongodb.DB(), sessionMaxAge)
		if err != nil {
			appLogger.Fatal(ctx, "Failed to initialize durable session store", err)
		}
		// Durable backend: the cookie lifetime follows the configured
		// session age. The transient backend keeps browser-session cookies.
		cookieMaxAge = sessionMaxAge
	default:
		store = session.NewMemoryStore(sessionMaxAge)
	}
	sessions := session.NewManager(store, cookieMaxAge)

	var dir directory.Directory
	switch cfg.DirectoryStore {
	case "mongo":
		dir, err = mongodb.NewUserDirectory(ctx, mongodb.DB())
		if err != nil {
			appLogger.Fatal(ctx, "Failed to initialize user directory", err)
		}
	default:
		dir = directory.NewMemory()
	}

	idp, err := oidc.New(ctx, oidc.Config{
		MetadataURL:     cfg.OIDCMetadataURL,
		ClientID:        cfg.OIDCClientID,
		ClientSecret:    cfg.OIDCClientSecret,
		RedirectURL:     cfg.OIDCRedirectURL,
		ResponseType:    cfg.OIDCResponseType,
		ResponseMode:    cfg.OIDCResponseMode,
		ValidateIssuer:  cfg.OIDCValidateIssuer,
		Scopes:          cfg.ScopeList(),
		ClockSkew:       time.Duration(cfg.OIDCClockSkewSec) * time.Second,
		NonceLifetime:   time.Duration(cfg.NonceLifetimeSec) * time.Second,
		NonceMaxAmount:  cfg.NonceMaxAmount,
		UseCookieNonce:  cfg.NonceUseCookie,
		CookieSealKey:   []byte(cfg.NonceCookieKey),
		FailureRedirect: cfg.LoginFailureRedirect,
	}, nil)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize identity provider client", err)
	}

	var tokenVerifier verifier.Verifier = verifier.NewClient(cfg.TokenVerifierURL, nil)
	if cfg.TokenCacheEnabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		tokenVerifier = verifier.NewCachedVerifier(
			tokenVerifier, rdb, "portal",
			time.Duration(cfg.TokenCacheTTLSec)*time.Second,
		)
	}

	sender := notify.NewHTTPSender(cfg.NotifyEndpoint, nil)
	auth := middleware.NewAuth(sessions, dir, tokenVerifier)
	api := portalapi.NewPortalAPI(idp, sessions, dir, sender, auth, cfg.PostLogoutRedirect)

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	httpServer = server.NewHTTPServer(cfg, appLogger, api, registry)

	go func() {
		appLogger.Info(ctx, "HTTP server listening", map[string]interface{}{"addr": httpServer.Addr})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(ctx, "HTTP server failed", err)
		}
	}()

	waitForShutdown(needsMongo)
}

func waitForShutdown(closeMongo bool) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	appLogger.Info(ctx, "Shutting down")

	if err := httpServer.Shutdown(ctx); err != nil {
		appLogger.Error(ctx, "HTTP server shutdown failed", err)
	}
	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			appLogger.Error(ctx, "TracerProvider shutdown failed", err)
		}
	}
	if closeMongo {
		if err := mongodb.Close(ctx); err != nil {
			appLogger.Error(ctx, "MongoDB disconnect failed", err)
		}
	}

	appLogger.Info(ctx, "Shutdown complete")
}
