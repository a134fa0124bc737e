package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cwrk-planet/meeting-service/config"
	"github.com/cwrk-planet/meeting-service/internal/relay"
	"github.com/cwrk-planet/meeting-service/internal/security"
	"github.com/cwrk-planet/meeting-service/internal/service"
	"github.com/cwrk-planet/meeting-service/internal/store"
	grpcx "github.com/cwrk-planet/meeting-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/meeting-service/internal/transport/http"
	"github.com/cwrk-planet/meeting-service/internal/transport/ws"
	"github.com/cwrk-planet/meeting-service/pkg/logger"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		Level:     logger.ParseLevel(cfg.Logging.Level),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting meeting-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- store & relay ---
	hasher := security.NewPasswordHasher(cfg.Security.BcryptCost)
	sessions := store.New(hasher)
	engine := relay.NewEngine(relay.NewRegistry(), sessions)

	// --- services ---
	meetingSvc := service.NewMeetingService(sessions, hasher)
	meetingSvc.SetCodeLength(cfg.Meeting.CodeLength)

	// --- WS ---
	wsServer := ws.NewServer(engine, ws.Options{
		SendQueueSize:   cfg.Relay.SendQueueSize,
		MaxMessageBytes: cfg.Relay.MaxMessageBytes,
		PingInterval:    cfg.Relay.PingInterval,
		WriteTimeout:    cfg.Relay.WriteTimeout,
		RatePerSecond:   cfg.Relay.RateLimit.PerSecond,
		RateBurst:       cfg.Relay.RateLimit.Burst,
		AllowedOrigins:  cfg.Relay.AllowedOrigins,
	})

	// --- HTTP ---
	var ready atomic.Bool
	ready.Store(true)

	router := httpx.NewRouter(httpx.Deps{
		Handler:        httpx.NewHandler(meetingSvc),
		WSServer:       wsServer,
		Ready:          ready.Load,
		Connections:    engine.Connections,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// --- gRPC ---
	health := grpcx.NewHealth()
	grpcServer := grpcx.NewServer(cfg.GRPC.DeadlineGuard, health)

	// --- run both servers ---
	errCh := make(chan error, 2)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go func() {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			errCh <- err
			return
		}
		slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	// сначала перестаём считаться живыми, потом рвём соединения
	ready.Store(false)
	health.Shutdown()

	// hijacked websocket-соединения http.Server.Shutdown не ждёт, их закрывает relay
	if err := engine.Shutdown(ctxShutdown); err != nil {
		slog.Warn("relay shutdown incomplete", "err", err)
	}
	if err := httpSrv.Shutdown(ctxShutdown); err != nil {
		slog.Warn("http shutdown", "err", err)
	}
	grpcServer.GracefulStop()
	slog.Info("stopped")
}
