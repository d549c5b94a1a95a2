package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"legacyplanner.org/internal/app"
	"legacyplanner.org/internal/auth"
	"legacyplanner.org/internal/config"
	"legacyplanner.org/internal/httpapi"
	"legacyplanner.org/internal/obs"
)

var (
	version = "0.1.0"
	commit  = ""
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.Logger().Fatal("load config", zap.Error(err))
	}
	log := obs.NewLogger(os.Stdout, cfg.Log.Level)
	obs.SetLogger(log)
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	backend, err := app.OpenBackend(cfg.Database)
	if err != nil {
		log.Fatal("open backend", zap.Error(err))
	}
	defer func() { _ = backend.Close() }()

	if backend.Persistent() && cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := backend.Migrate(ctx, log)
		cancel()
		if err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
	}
	if !backend.Persistent() {
		log.Warn("no database configured, using in-memory stores")
	}

	services, err := app.NewServices(cfg, backend, log)
	if err != nil {
		log.Fatal("build services", zap.Error(err))
	}
	if services.Billing == nil {
		log.Warn("no payment provider key, billing routes disabled")
	}

	tokens, err := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.Issuer)
	if err != nil {
		log.Fatal("token verifier", zap.Error(err))
	}

	probe := httpapi.ReadyProbe{DB: backend.DB}
	api, err := httpapi.New(probe, version, httpapi.Deps{
		Plans:        services.Plans,
		Resolver:     services.Resolver,
		Access:       services.Access,
		Billing:      services.Billing,
		Mail:         services.Mail,
		Appointments: services.Appointments,
		KB:           services.KB,
		Tokens:       tokens,
	},
		httpapi.WithRateLimit(cfg.Server.RateBurst, cfg.Server.RatePerSecond),
		httpapi.WithAllowedOrigins(cfg.Server.AllowedOrigins),
	)
	if err != nil {
		log.Fatal("build api", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	grpcSrv := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, httpapi.NewGRPCServer(probe))

	log.Info("starting legacyplanner-api",
		zap.String("version", version),
		zap.String("addr", srv.Addr),
		zap.String("grpc_addr", cfg.Server.GRPCAddr),
		zap.String("env", cfg.Server.Env),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			log.Fatal("grpc listen", zap.Error(err))
		}
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				log.Error("grpc serve", zap.Error(err))
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcSrv.GracefulStop()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	log.Info("stopped")
}
