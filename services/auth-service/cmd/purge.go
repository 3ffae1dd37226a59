package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/config"
	"github.com/vasapolrittideah/lms-api/services/auth-service/internal/repository"
	"github.com/vasapolrittideah/lms-api/shared/logger"
)

// NewPurgeCmd creates the purge subcommand.
func NewPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired OTP challenges and reset grants",
		Long: `Delete OTP challenges past their retention window and reset grants
past their expiry. The TTL indexes do the same lazily; purge runs it now.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			log := logger.New(serviceName, cfg.Log.Level, cfg.Log.Format)

			st, err := openStores(cmd.Context(), cfg, log, false)
			if err != nil {
				return err
			}
			defer func() { _ = st.close(context.Background()) }()

			challenges, grants, err := purgeExpired(cmd.Context(), st.challenges, st.grants, time.Now(), cfg.OTP.Retention)
			if err != nil {
				return err
			}

			log.Info().Int64("otp_challenges", challenges).Int64("reset_grants", grants).Msg("purged expired records")
			cmd.Printf("purged %d otp challenges and %d reset grants\n", challenges, grants)

			return nil
		},
	}
}

func purgeExpired(
	ctx context.Context,
	challengeRepo repository.OtpChallengeRepository,
	grantRepo repository.ResetGrantRepository,
	now time.Time,
	retention time.Duration,
) (int64, int64, error) {
	challenges, err := challengeRepo.DeleteExpiredChallenges(ctx, now.Add(-retention))
	if err != nil {
		return 0, 0, err
	}

	grants, err := grantRepo.DeleteExpiredGrants(ctx, now)
	if err != nil {
		return challenges, 0, err
	}

	return challenges, grants, nil
}
