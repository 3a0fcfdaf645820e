// cfmock gRPC Server
// Serves content fragment fixtures from an in-memory repository for inspection
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/nainya/cfmock/internal/logger"
	"github.com/nainya/cfmock/internal/metrics"
	"github.com/nainya/cfmock/internal/server"
	"github.com/nainya/cfmock/pkg/loader"
	"github.com/nainya/cfmock/pkg/resource"
)

var (
	port        = flag.Int("port", 50051, "The gRPC server port")
	metricsPort = flag.Int("metrics-port", 9090, "The metrics/health HTTP port (0 disables)")
	fixtures    = flag.String("fixtures", "", "Comma-separated YAML/JSON fixture files")
	root        = flag.String("root", "/content/dam", "Repository path fixtures are loaded below")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	pretty      = flag.Bool("pretty", false, "Pretty-print logs for development")
)

func main() {
	flag.Parse()

	logger.InitGlobalLogger(logger.Config{
		Level:  *logLevel,
		Pretty: *pretty,
	})
	log := logger.GetGlobalLogger()

	files := splitList(*fixtures)
	log.LogServerStart(*port, files)

	m := metrics.New(nil)
	repo := resource.NewRepository(
		resource.WithLogger(log),
		resource.WithMetrics(m),
	)
	srv := server.NewServer(repo, server.WithLogger(log))

	var obs *server.ObservabilityServer
	if *metricsPort > 0 {
		obs = server.NewObservabilityServer(*metricsPort, nil, log)
		go func() {
			if err := obs.Start(); err != nil {
				log.Error("Observability server failed").Err(err).Send()
			}
		}()
	}

	// Load fixtures
	err := srv.Update(func(repo *resource.Repository) error {
		for _, f := range files {
			if _, err := loader.LoadFile(repo, *root, f, loader.WithLogger(log), loader.WithMetrics(m)); err != nil {
				return fmt.Errorf("fixture %s: %w", f, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Failed to load fixtures").Err(err).Send()
	}

	// Create gRPC server
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		log.Fatal("Failed to listen").Err(err).Int("port", *port).Send()
	}

	grpcServer, healthServer := server.NewGRPCServer(srv, m, log,
		grpc.MaxRecvMsgSize(100*1024*1024), // 100 MB
		grpc.MaxSendMsgSize(100*1024*1024), // 100 MB
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.RunUptime(ctx, 15*time.Second)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.LogServerShutdown()
		healthServer.Shutdown()
		cancel()
		if obs != nil {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			obs.Shutdown(shutdownCtx)
		}
		grpcServer.GracefulStop()
	}()

	if obs != nil {
		obs.SetReady(true)
	}
	log.LogServerReady(*port)
	if err := grpcServer.Serve(lis); err != nil {
		log.Fatal("Failed to serve").Err(err).Send()
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
