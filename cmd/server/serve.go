package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/kc-allan/at-insurance/internal/auth"
	"github.com/kc-allan/at-insurance/internal/claims"
	"github.com/kc-allan/at-insurance/internal/config"
	"github.com/kc-allan/at-insurance/internal/db"
	"github.com/kc-allan/at-insurance/internal/evidence"
	"github.com/kc-allan/at-insurance/internal/farmers"
	opsgrpc "github.com/kc-allan/at-insurance/internal/grpc"
	internalhttp "github.com/kc-allan/at-insurance/internal/http"
	"github.com/kc-allan/at-insurance/internal/jobs"
	"github.com/kc-allan/at-insurance/internal/logging"
	"github.com/kc-allan/at-insurance/internal/otp"
	"github.com/kc-allan/at-insurance/internal/payments"
	"github.com/kc-allan/at-insurance/internal/policies"
	"github.com/kc-allan/at-insurance/internal/ratelimit"
	"github.com/kc-allan/at-insurance/internal/repository"
	"github.com/kc-allan/at-insurance/internal/sms"
)

const (
	shutdownTimeout = 10 * time.Second
	smsTimeout      = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the gRPC health endpoint",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	deps, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close()

	tokens := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionTokenTTL)
	directory := farmers.NewDirectory(deps.records, tokens, logger)
	images, err := newEvidenceStore(ctx, cfg)
	if err != nil {
		return err
	}

	server := internalhttp.NewServer(cfg, internalhttp.Services{
		OTP: otp.NewAuthenticator(deps.otp, deps.records, tokens, newSMSSender(cfg, logger), deps.limiter, logger, otp.Options{
			TTL:         cfg.OTPTTL,
			MaxAttempts: cfg.OTPMaxAttempts,
			HashCost:    cfg.OTPHashCost,
		}),
		Farmers:  directory,
		Policies: policies.NewManager(deps.records, deps.records, logger),
		Claims: claims.NewManager(deps.records, deps.records, images,
			evidence.Limits{MaxFiles: cfg.MaxImages, MaxBytes: cfg.MaxImageBytes}, logger),
		Payments: payments.NewClient(cfg.MpesaServiceURL, payments.Timeouts{
			Initiate: cfg.MpesaInitiateTimeout,
			Status:   cfg.MpesaStatusTimeout,
			Health:   cfg.MpesaHealthTimeout,
		}, logger),
		Store: deps.pinger,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	healthServer := health.NewServer()
	grpcServer := opsgrpc.NewServer(healthServer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("env", cfg.Environment))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		listener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		logger.Info("grpc listening", zap.String("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		opsgrpc.RunHealthProbe(gctx, healthServer, deps.pinger, cfg.HealthProbeInterval, logger)
		return nil
	})
	if deps.sweepOTP {
		done := jobs.StartOTPSweepJob(gctx, deps.otp, cfg.OTPSweepInterval, cfg.OTPRetention, cfg.OTPSweepTimeout, logger)
		g.Go(func() error {
			<-done
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown error", zap.Error(err))
		}
		grpcServer.GracefulStop()
		return nil
	})
	return g.Wait()
}

type stores struct {
	records  repository.RecordStore
	otp      repository.OTPStore
	limiter  ratelimit.Limiter
	pinger   repository.Pinger
	sweepOTP bool
	closers  []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores picks Postgres when DATABASE_URL is set and the in-memory store
// otherwise. Redis, when configured, takes over OTP sessions and rate limits.
func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (*stores, error) {
	s := &stores{}
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("db connection failed: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		if cfg.MigrateOnStart {
			sqlDB := db.OpenSQL(pool)
			applied, err := db.Migrate(ctx, sqlDB, logger)
			_ = sqlDB.Close()
			if err != nil {
				s.close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			if len(applied) > 0 {
				logger.Info("migrations applied", zap.Strings("versions", applied))
			}
		}
		s.records = repository.NewPostgresStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, records are kept in memory")
		s.records = repository.NewMemoryStore()
	}
	s.otp = s.records
	s.limiter = ratelimit.NewMemoryLimiter(cfg.OTPRateLimit, cfg.OTPRateWindow)
	s.sweepOTP = true
	checks := pingers{s.records}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = client.Close()
			s.close()
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		s.closers = append(s.closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close error", zap.Error(err))
			}
		})
		otpStore := repository.NewRedisOTPStore(client, cfg.OTPRetention)
		s.otp = otpStore
		s.limiter = ratelimit.NewRedisLimiter(client, "otp_rate", cfg.OTPRateLimit, cfg.OTPRateWindow)
		s.sweepOTP = false
		checks = append(checks, otpStore)
	}
	s.pinger = checks
	return s, nil
}

type pingers []repository.Pinger

func (p pingers) Ping(ctx context.Context) error {
	for _, pinger := range p {
		if err := pinger.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

func newSMSSender(cfg config.Config, logger *zap.Logger) sms.Sender {
	// Validate refuses production without AT_API_KEY, so codes only reach the
	// log in development.
	if cfg.ATAPIKey == "" {
		logger.Warn("AT_API_KEY not set, OTP codes will only be logged")
		return sms.NewLogSender(logger)
	}
	return sms.NewAfricasTalkingSender(cfg.ATBaseURL, cfg.ATUsername, cfg.ATAPIKey, cfg.ATSenderID, smsTimeout, logger)
}

func newEvidenceStore(ctx context.Context, cfg config.Config) (evidence.Store, error) {
	if cfg.S3Bucket == "" {
		return evidence.NewLocalStore(cfg.UploadDir), nil
	}
	client, err := evidence.NewS3Client(ctx, cfg.AWSRegion, cfg.AWSEndpointURL)
	if err != nil {
		return nil, err
	}
	return evidence.NewS3Store(client, cfg.S3Bucket), nil
}
