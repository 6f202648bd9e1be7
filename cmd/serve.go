package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/abhisek/mathpad/internal/api"
	"github.com/abhisek/mathpad/internal/auth"
	"github.com/abhisek/mathpad/internal/config"
	"github.com/abhisek/mathpad/internal/gateway"
	"github.com/abhisek/mathpad/internal/llm"
	"github.com/abhisek/mathpad/internal/logging"
	"github.com/abhisek/mathpad/internal/session"
	"github.com/abhisek/mathpad/web"
)

const (
	shutdownTimeout = 15 * time.Second
	sweepInterval   = 5 * time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web app",
	Long: "Serve the drawing canvas, upload, chat, quiz and classifier over HTTP.\n\n" +
		"Configuration comes from the environment (a .env file is loaded when present):\n" +
		"PORT, MATHPAD_CREDENTIALS, MATHPAD_AUTH_SECRET, MATHPAD_REDIS_URL,\n" +
		"MATHPAD_SESSION_TTL, MATHPAD_LOG_MODE, MATHPAD_ALLOWED_ORIGINS,\n" +
		"MATHPAD_SECURE_COOKIES, MATHPAD_CANVAS_WIDTH and MATHPAD_CANVAS_HEIGHT.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd)
	},
}

func init() {
	serveCmd.Flags().String("port", "", "Port to listen on (overrides PORT)")
}

func runServer(cmd *cobra.Command) error {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if p, _ := cmd.Flags().GetString("port"); p != "" {
		cfg.Port = p
	}

	log, err := logging.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	if envErr != nil {
		log.Info("no .env file found, using environment variables")
	}
	log.Info("starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	st, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			log.Error("failed to close database", "error", closeErr)
		}
	}()
	events := st.EventRepo()

	creds, err := auth.OpenFileStore(cfg.CredentialsPath)
	if err != nil {
		return fmt.Errorf("open credentials: %w", err)
	}
	gate, err := auth.NewGate(creds, cfg.AuthSecret, log)
	if err != nil {
		return err
	}
	log.Info("credentials loaded", "path", creds.Path(), "users", len(creds.Usernames()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	llmCfg := llm.Resolve()

	sessStore, err := newSessionStore(ctx, cfg, session.LockTTL(llmCfg.Timeout), log)
	if err != nil {
		return err
	}
	defer sessStore.Close()

	model := gateway.New(llmCfg, events, log)
	if !model.Configured() {
		log.Warn("no model API key configured; solving, chat, quiz and classifier will report a configuration error",
			"provider", llmCfg.Provider)
	}

	srv := api.NewServer(api.Deps{
		Gate:           gate,
		Sessions:       session.NewManager(sessStore, cfg.CanvasSettings(), log),
		Model:          model,
		Events:         events,
		Log:            log,
		Provider:       llmCfg.Provider,
		AllowedOrigins: cfg.AllowedOrigins,
		SecureCookies:  cfg.SecureCookies,
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(web.SPAHandler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// newSessionStore returns a Redis store when MATHPAD_REDIS_URL is set and
// otherwise an in-memory store swept in the background until ctx ends.
// lockTTL has to outlast the slowest model call.
func newSessionStore(ctx context.Context, cfg *config.Config, lockTTL time.Duration, log *logging.Logger) (session.Store, error) {
	if cfg.RedisURL != "" {
		rs, err := session.NewRedisStore(ctx, cfg.RedisURL, cfg.SessionTTL, lockTTL)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		log.Info("session store ready", "backend", "redis", "lock_ttl", lockTTL)
		return rs, nil
	}

	ms := session.NewMemoryStore(cfg.SessionTTL)
	go func() {
		t := time.NewTicker(sweepInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := ms.Sweep(); n > 0 {
					log.Debug("expired sessions removed", "count", n)
				}
			}
		}
	}()
	log.Info("session store ready", "backend", "memory")
	return ms, nil
}

