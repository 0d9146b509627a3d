package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jrsteele09/go-admin-console/browser"
	"github.com/jrsteele09/go-admin-console/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var refreshBuffer time.Duration

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Sign in and keep the session alive until interrupted",
	Long: `Signs in, then refreshes the access token shortly before each expiry until interrupted.
Each refresh is logged. On exit the session is logged out.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := signIn(ctx, browser.WithRefreshBuffer(refreshBuffer))
		if err != nil {
			return err
		}

		signedIn := s.Facade.State()
		log.Info().
			Str("user", signedIn.User.DisplayName()).
			Time("expires_at", signedIn.TokenExpiresAt).
			Msg("signed in")

		lastExpiry := signedIn.TokenExpiresAt
		unsubscribe := s.Facade.Subscribe(func(state session.State) {
			switch {
			case !state.IsAuthenticated():
				log.Warn().Msg("session ended")
				stop()
			case !state.TokenExpiresAt.Equal(lastExpiry):
				lastExpiry = state.TokenExpiresAt
				log.Info().Time("expires_at", state.TokenExpiresAt).Msg("session refreshed")
			}
		})
		defer unsubscribe()

		s.Start(ctx)
		<-ctx.Done()
		s.Stop()

		if s.Facade.State().IsAuthenticated() {
			// The signal context is done; logout needs a live one.
			s.Facade.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
		}
		return nil
	},
}

func init() {
	sessionCmd.Flags().DurationVar(&refreshBuffer, "refresh-buffer", 30*time.Second, "refresh this long before the access token expires")
}
