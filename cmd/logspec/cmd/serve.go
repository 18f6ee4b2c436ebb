package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/solatis/logspec/internal/core/api"
	"github.com/solatis/logspec/internal/core/auth"
	"github.com/solatis/logspec/internal/core/config"
	"github.com/solatis/logspec/internal/core/db"
	"github.com/solatis/logspec/internal/core/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC (and optional HTTP) classification service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("rules", "", "rule table path (default: embedded table)")
	serveCmd.Flags().String("inference", "similarity", "inference strategy (similarity, none)")
	serveCmd.Flags().String("host", "0.0.0.0", "listen host")
	serveCmd.Flags().Int("grpc-port", 50061, "gRPC server port")
	serveCmd.Flags().Int("http-port", 8080, "HTTP server port (0 disables)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	engine, _, err := loadEngine(cfg, log)
	if err != nil {
		return err
	}

	authenticator, closeDB, err := openAuthenticator(log)
	if err != nil {
		return err
	}
	defer closeDB()

	service, err := api.NewService(engine, api.Options{
		MaxBatchSize:  cfg.Server.MaxBatchSize,
		ReloadEnabled: authenticator.Enabled(),
		Log:           log,
	})
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(&cfg.Server, service, authenticator)
	if err != nil {
		return fmt.Errorf("failed to create gRPC server: %w", err)
	}
	if err := grpcServer.Listen(); err != nil {
		return err
	}

	var httpServer *server.HTTPServer
	if cfg.Server.HTTPPort > 0 {
		httpServer, err = server.NewHTTPServer(&cfg.Server, service, authenticator, log)
		if err != nil {
			return fmt.Errorf("failed to create HTTP server: %w", err)
		}
		if err := httpServer.Listen(); err != nil {
			return err
		}
	}

	log.WithFields(logrus.Fields{
		"version":   Version,
		"grpc_addr": grpcServer.Addr().String(),
		"http_port": cfg.Server.HTTPPort,
		"reload":    authenticator.Enabled(),
	}).Info("starting logspec service")

	errChan := make(chan error, 2)
	go func() { errChan <- grpcServer.Serve() }()
	if httpServer != nil {
		go func() { errChan <- httpServer.Serve() }()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case serveErr = <-errChan:
		log.WithError(serveErr).Error("server stopped")
	case sig := <-sigChan:
		log.WithField("signal", sig.String()).Info("shutting down gracefully")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("HTTP shutdown")
		}
	}
	if err := grpcServer.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("gRPC shutdown")
	}
	return serveErr
}

// openAuthenticator wires API key verification when both HMAC secrets and a
// database are configured. Otherwise it returns nil, which disables reload.
func openAuthenticator(log logrus.FieldLogger) (*auth.Authenticator, func(), error) {
	noop := func() {}

	secrets, err := config.HMACSecrets()
	if err != nil {
		return nil, noop, fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 || dbURL == "" {
		log.Warn("rule reload disabled (requires LS_HMAC_SECRET and --db-url)")
		return nil, noop, nil
	}

	conn, queries, err := db.OpenAndMigrate(dbURL)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to open database: %w", err)
	}
	return auth.NewAuthenticator(secrets, queries), func() { conn.Close() }, nil
}
