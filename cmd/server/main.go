package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fekuna/omnipos-sales-service/config"
	"github.com/fekuna/omnipos-sales-service/internal/inventory"
	"github.com/fekuna/omnipos-sales-service/internal/sale"
	"github.com/fekuna/omnipos-sales-service/migrations"
	"github.com/fekuna/omnipos-sales-service/pkg/broker"
	"github.com/fekuna/omnipos-sales-service/pkg/cache"
	"github.com/fekuna/omnipos-sales-service/pkg/database/postgres"
	"github.com/fekuna/omnipos-sales-service/pkg/httpx"
	"github.com/fekuna/omnipos-sales-service/pkg/logger"
	appmw "github.com/fekuna/omnipos-sales-service/pkg/middleware"

	custRepoPkg "github.com/fekuna/omnipos-sales-service/internal/customer/repository"
	custUCPkg "github.com/fekuna/omnipos-sales-service/internal/customer/usecase"

	invH "github.com/fekuna/omnipos-sales-service/internal/inventory/handler"
	invListenerPkg "github.com/fekuna/omnipos-sales-service/internal/inventory/listener"
	invRepoPkg "github.com/fekuna/omnipos-sales-service/internal/inventory/repository"
	invUCPkg "github.com/fekuna/omnipos-sales-service/internal/inventory/usecase"

	outboxPub "github.com/fekuna/omnipos-sales-service/internal/outbox/publisher"
	outboxRepoPkg "github.com/fekuna/omnipos-sales-service/internal/outbox/repository"

	prodRepoPkg "github.com/fekuna/omnipos-sales-service/internal/product/repository"

	saleH "github.com/fekuna/omnipos-sales-service/internal/sale/handler"
	saleRepoPkg "github.com/fekuna/omnipos-sales-service/internal/sale/repository"
	saleUCPkg "github.com/fekuna/omnipos-sales-service/internal/sale/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     cfg.Server.AppEnv == "development" || cfg.Server.AppEnv == "dev",
		Encoding:          cfg.Logger.Encoding,
		Level:             cfg.Logger.Level,
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}
	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	if err := cfg.Sales.Validate(); err != nil {
		appLogger.Fatal("Invalid sales configuration", zap.Error(err))
	}

	// 3. Connect to Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	if cfg.Postgres.AutoMigrate {
		if err := postgres.RunMigrations(db, migrations.FS, migrations.Table); err != nil {
			appLogger.Fatal("Could not run migrations", zap.Error(err))
		}
		appLogger.Info("Database schema is up to date")
	}

	// 4. Initialize Repositories
	txManager := postgres.NewTxManager(db)
	custRepo := custRepoPkg.NewPGRepository(db)
	prodRepo := prodRepoPkg.NewPGRepository(db)
	invRepo := invRepoPkg.NewPGRepository(db)
	saleRepo := saleRepoPkg.NewPGRepository(db)
	outboxRepo := outboxRepoPkg.NewPGRepository(db)

	// 5. Initialize Redis. Without it checkouts are not deduplicated and
	// adjustments rely on row locks only.
	var (
		saleCache saleUCPkg.Cache
		invLocker invUCPkg.Locker
	)
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(&cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			appLogger.Warn("Could not connect to Redis, idempotency keys are ignored", zap.Error(err))
		} else {
			defer redisClient.Close()
			saleCache, invLocker = redisClient, redisClient
			appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
		}
	}

	// 6. Initialize UseCases
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	custResolver := custUCPkg.NewCustomerResolver(custRepo, cfg.Sales.GuestCustomerID, appLogger)
	if _, err := custResolver.LoadGuest(ctx); err != nil {
		appLogger.Fatal("Guest customer is not available", zap.Error(err))
	}

	invUC := invUCPkg.NewInventoryUseCase(invRepo, txManager, invLocker,
		inventory.UntrackedPolicy(cfg.Sales.UntrackedPolicy), appLogger)
	saleUC := saleUCPkg.NewSaleUseCase(txManager, saleRepo, prodRepo, custResolver, invUC, outboxRepo, saleCache,
		saleUCPkg.Options{
			TotalPolicy:    sale.TotalPolicy(cfg.Sales.TotalPolicy),
			TotalTolerance: cfg.Sales.TotalTolerance,
			IdempotencyTTL: cfg.Sales.IdempotencyTTL,
		}, appLogger)

	// 6.5 Initialize Kafka listener and outbox relay
	if cfg.Kafka.Enabled {
		kafkaConsumer := broker.NewConsumer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.RestockTopic,
			GroupID: cfg.Kafka.GroupID,
		})
		defer kafkaConsumer.Close()

		kafkaProducer := broker.NewProducer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.SalesTopic,
		})
		defer kafkaProducer.Close()

		invListener := invListenerPkg.NewInventoryListener(kafkaConsumer, invUC, appLogger)
		go invListener.Start(ctx)

		poller := outboxPub.NewOutboxPoller(outboxRepo, txManager, kafkaProducer,
			cfg.Kafka.OutboxPollInterval, cfg.Kafka.OutboxBatchSize, appLogger)
		go poller.Run(ctx)

		appLogger.Info("Connected to Kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("restock_topic", cfg.Kafka.RestockTopic),
			zap.String("sales_topic", cfg.Kafka.SalesTopic),
		)
	}

	// 7. Initialize Handlers
	saleHandler := saleH.NewSaleHandler(saleUC, cfg.Server.RequestTimeout, appLogger)
	saleGRPCHandler := saleH.NewSaleGRPCHandler(saleUC, appLogger)
	invHandler := invH.NewInventoryHandler(invUC, appLogger)

	// 8. Start HTTP Server
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			httpx.RespondError(w, http.StatusServiceUnavailable, "service_unavailable", "database unreachable", nil)
			return
		}
		httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api/v1/sales", saleHandler.Routes)
	r.Route("/api/v1/inventory", invHandler.Routes)

	httpServer := &http.Server{
		Addr:              withColon(cfg.Server.HTTPPort),
		Handler:           otelhttp.NewHandler(r, "sales-http"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		appLogger.Info("Starting HTTP server", zap.String("port", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("failed to serve http", zap.Error(err))
		}
	}()

	// 9. Start gRPC Server
	grpcPort := withColon(cfg.Server.GRPCPort)
	lis, err := net.Listen("tcp", grpcPort)
	if err != nil {
		appLogger.Fatal("failed to listen", zap.Error(err))
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(appmw.ContextInterceptor(appLogger)),
	)

	// Register Services
	saleH.RegisterSaleServiceServer(grpcServer, saleGRPCHandler)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(saleH.SaleServiceName, healthpb.HealthCheckResponse_SERVING)

	// Register Reflection
	reflection.Register(grpcServer)

	appLogger.Info("Starting gRPC server", zap.String("port", grpcPort))

	// Graceful Shutdown
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	healthServer.Shutdown()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	grpcServer.GracefulStop()
	appLogger.Info("Server stopped")
}

func withColon(port string) string {
	if !strings.HasPrefix(port, ":") {
		return ":" + port
	}
	return port
}
