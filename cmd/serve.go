package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/places-catalog/internal/api"
	"github.com/sells-group/places-catalog/internal/auth"
)

var servePort int

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the catalog HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		handler, err := buildHandler(env)
		if err != nil {
			return err
		}

		return startServer(ctx, handler, resolvePort(servePort))
	},
}

// buildHandler wires the API server over env.
func buildHandler(env *appEnv) (http.Handler, error) {
	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, err
	}

	var opts []api.Option
	if env.Mailer != nil {
		opts = append(opts, api.WithMailer(env.Mailer))
	}
	if env.Sheets != nil {
		opts = append(opts, api.WithAppender(env.Sheets))
	}
	return api.New(env.Pipeline, env.Store, tokens, opts...).Routes(), nil
}

// resolvePort prefers the --port flag over config.
func resolvePort(flag int) int {
	if flag != 0 {
		return flag
	}
	return cfg.Server.Port
}

// startServer serves handler until ctx is done, then drains in-flight requests.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}

	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
