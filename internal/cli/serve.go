package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"foodval-go/internal/config"
	logger "foodval-go/internal/logging"
	"foodval-go/internal/router"
	"foodval-go/internal/runner"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var projectRoot string
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the experiment server",
		Long:  "Start the HTTP server that runs participant sessions and a janitor that closes idle ones.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), projectRoot, port)
		},
	}

	cmd.Flags().StringVar(&projectRoot, "root", ".", "Project root holding config/, images/ and assets/")
	cmd.Flags().StringVar(&port, "port", "", "HTTP port, overrides server.port")

	return cmd
}

func serve(ctx context.Context, projectRoot, port string) error {
	// A .env file is optional; real environment variables win either way.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	v, err := config.Load(projectRoot)
	if err != nil {
		return err
	}
	conf := serverConfig(port)

	log, err := logger.Init(conf.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	config.Watch(v, projectRoot, log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := runner.NewRegistry()
	defer registry.CloseAll()
	runner.NewJanitor(log, registry, conf.Sessions.IdleTimeout, conf.Sessions.SweepInterval).Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              ":" + conf.Server.Port,
		Handler:           router.Setup(log, conf, registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server listening on http://localhost:" + conf.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("Failed to run server", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down", zap.Int("open_sessions", registry.Len()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// serverConfig copies the loaded configuration and applies the --port flag
// to the copy. Reloads replace the shared value and never see the flag.
func serverConfig(port string) *config.Config {
	conf := *config.Get()
	if port != "" {
		conf.Server.Port = port
	}
	return &conf
}
