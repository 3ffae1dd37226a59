package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/handler"
	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/otp"
	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/token"
	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/lms-api/shared/logger"
	"github.com/vasapolrittideah/lms-api/shared/mailer"
	"github.com/vasapolrittideah/lms-api/shared/metrics"
	"github.com/vasapolrittideah/lms-api/shared/security"
	"github.com/vasapolrittideah/lms-api/shared/validator"
)

const serviceName = "auth-service"

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var inMemory bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, inMemory)
		},
	}

	cmd.Flags().BoolVar(&inMemory, "in-memory", false, "keep all data in process memory instead of MongoDB")

	return cmd
}

func runServe(ctx context.Context, inMemory bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(serviceName, cfg.Log.Level, cfg.Log.Format)

	mailerCfg, err := mailer.LoadConfig()
	if err != nil {
		return err
	}

	hasher, err := security.NewHasher(security.Algorithm(cfg.Password.Algorithm))
	if err != nil {
		return err
	}

	v, err := validator.New()
	if err != nil {
		return fmt.Errorf("failed to set up validator: %w", err)
	}

	st, err := openStores(ctx, cfg, log, inMemory)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()

	issuer := token.NewIssuer(cfg.Token)
	otpManager := otp.NewManager(st.challenges, cfg.OTP.ExpiresIn)
	notifier := mailer.NewMailer(mailerCfg, log)

	authUsecase := usecase.NewAuthUsecase(log, st.accounts, hasher, issuer, cfg)
	passwordResetUsecase := usecase.NewPasswordResetUsecase(
		log, st.accounts, st.grants, otpManager, issuer, hasher, notifier, cfg,
	)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.NewRouter(log, authUsecase, passwordResetUsecase, v, metrics.New("lms_auth"), cfg),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("auth-service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}

	return nil
}
