package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gentle/pkg/app"
	"gentle/pkg/client"
	"gentle/pkg/config"
	"gentle/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	// 1. Load Config
	cfgFile := flag.String("config", "", "config file (default is ./.gentle/config.yaml or $HOME/.gentle/config.yaml)")
	flag.Parse()

	if err := config.Load(*cfgFile); err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}

	// 2. Init Core Application
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx := context.Background()
	application, err := app.NewApp(ctx, app.WithMetrics(reg))
	if err != nil {
		log.Fatalf("❌ Failed to initialize app: %v", err)
	}
	logger := application.Logger
	logger.Info("✅ gentle core initialized",
		zap.String("storage", viper.GetString("storage.type")),
		zap.String("config", config.Used()))

	// 3. Setup Network
	addr := viper.GetString("server.addr")
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal("❌ Failed to listen", zap.String("addr", addr), zap.Error(err))
	}

	// 4. Setup gRPC Server
	grpcServer := server.New(application.Store, logger.Named("grpc"),
		grpc.MaxRecvMsgSize(client.MaxMessageSize),
		grpc.MaxSendMsgSize(client.MaxMessageSize),
	)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	// 5. Metrics
	metricsAddr := viper.GetString("server.metrics_addr")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	metricsServer := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	// 6. Start Servers (Async)
	go func() {
		fmt.Printf("🚀 gRPC Server listening on %s...\n", addr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal("❌ Failed to serve", zap.Error(err))
		}
	}()
	if metricsAddr != "" {
		go func() {
			fmt.Printf("📈 Metrics on http://%s/metrics\n", metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	// 7. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\n⚠️  Shutting down server...")
	healthServer.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	if err := application.Close(); err != nil {
		logger.Warn("close store", zap.Error(err))
	}
	fmt.Println("👋 Server stopped.")
}
